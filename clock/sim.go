package clock

import (
	"fmt"
	"time"
)

// =============================================================================
// SIMULATION STATE - Mirror of the orchestrator-owned singleton record
// =============================================================================

// DefaultTimeScale is the configured simulated-seconds-per-real-second factor.
// The observed operating range is 24-168.
const DefaultTimeScale = 96.0

// ResetTimeScale is the value operational tooling writes when resetting the
// simulation clock store to defaults.
const ResetTimeScale = 168.0

// CycleSimulatedDuration is how far one discrete cycle advances the simulated
// calendar: exactly one simulated hour.
const CycleSimulatedDuration = time.Hour

// SimulationState mirrors the persisted simulation clock singleton. It is
// owned by the simulation orchestrator and read-only to this subsystem.
type SimulationState struct {
	IsActive                bool
	CurrentSimulatedDate    *time.Time
	SimulationCalendarStart *time.Time
	SimulationStartTime     *time.Time // real clock
	RealStartTime           *time.Time
	TimeScale               float64
}

// =============================================================================
// MODEL - Pure conversions between simulated and real durations
// =============================================================================

// Model converts between the simulated calendar and real time. It owns no
// state beyond the scale factor and is never consulted when computing or
// checking wallet or coupon validity timestamps.
type Model struct {
	scale float64
}

// NewModel creates a conversion model for the given time scale.
// A non-positive scale is invalid.
func NewModel(timeScale float64) (Model, error) {
	if timeScale <= 0 {
		return Model{}, fmt.Errorf("time scale must be positive, got %v", timeScale)
	}
	return Model{scale: timeScale}, nil
}

// MustModel is NewModel for static configuration known to be valid.
func MustModel(timeScale float64) Model {
	m, err := NewModel(timeScale)
	if err != nil {
		panic(err)
	}
	return m
}

// TimeScale returns the simulated-seconds-per-real-second factor.
func (m Model) TimeScale() float64 { return m.scale }

// RealDurationOf converts a span of simulated time to the real time it costs.
func (m Model) RealDurationOf(simulated time.Duration) time.Duration {
	return time.Duration(float64(simulated) / m.scale)
}

// SimulatedDurationOf converts a span of real time to simulated time.
func (m Model) SimulatedDurationOf(real time.Duration) time.Duration {
	return time.Duration(float64(real) * m.scale)
}

// CycleRealCost is the real-time cost of one cycle (one simulated hour),
// i.e. 3600/scale seconds.
func (m Model) CycleRealCost() time.Duration {
	return m.RealDurationOf(CycleSimulatedDuration)
}

// SimulatedNow projects the simulated calendar forward from the recorded
// state using elapsed real time. For reporting only.
func (m Model) SimulatedNow(state SimulationState, realNow time.Time) (time.Time, bool) {
	if !state.IsActive || state.CurrentSimulatedDate == nil || state.RealStartTime == nil {
		return time.Time{}, false
	}
	elapsed := realNow.Sub(*state.RealStartTime)
	return state.CurrentSimulatedDate.Add(m.SimulatedDurationOf(elapsed)), true
}
