package main

import "github.com/dealgrid/wallet-engine/cli"

func main() {
	cli.Execute()
}
