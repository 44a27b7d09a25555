/*
Package sqlite provides the SQLite-backed store for the wallet engine.

PURPOSE:
  Implements wallet.Store and wallet.UserDirectory plus the read side of the
  simulation clock singleton. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:            Roster records, owned by the external directory sync
  coupons:          Catalog records, owned by migration/seeding tooling
  wallet_entries:   The only rows this subsystem writes
  simulation_clock: Orchestrator-owned singleton, read-only here

UNIQUENESS:
  wallet_entries is keyed PRIMARY KEY (user_id, coupon_id). That constraint -
  not application locking - is what makes concurrent replenishment safe.
  Inserts go through ON CONFLICT DO NOTHING so a losing concurrent writer
  gets a silent no-op, and the affected-rows count tells the replenisher
  how many entries actually landed.

CLOCKS:
  Every timestamp column on coupons and wallet_entries is real wall-clock
  time, stored RFC3339. The simulated calendar lives only in
  simulation_clock and is never compared against validity columns.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  one writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/wallet.db")
  if err != nil { ... }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool with versioned migrations.

SEE ALSO:
  - wallet/store.go: interface contracts
  - wallet/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dealgrid/wallet-engine/clock"
	"github.com/dealgrid/wallet-engine/wallet"
)

// Store implements the wallet storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Roster (owned by the external directory sync; read-only here)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_created_at
		ON users(created_at);

	-- Catalog (owned by migration/seeding tooling; read-only here)
	CREATE TABLE IF NOT EXISTS coupons (
		id TEXT PRIMARY KEY,
		coupon_type TEXT NOT NULL CHECK (coupon_type IN ('frontstore', 'category', 'brand')),
		discount_type TEXT NOT NULL,
		discount_value TEXT NOT NULL,
		expiration_date TEXT NOT NULL,
		is_active BOOLEAN
	);

	CREATE INDEX IF NOT EXISTS idx_coupons_type_expiration
		ON coupons(coupon_type, expiration_date);

	-- Wallet entries: the only rows this subsystem writes.
	-- CRITICAL: the composite primary key enforces at-most-once assignment
	-- of a coupon to a user, for all time. Concurrent replenishment relies
	-- on this constraint, not on application locks.
	CREATE TABLE IF NOT EXISTS wallet_entries (
		user_id TEXT NOT NULL,
		coupon_id TEXT NOT NULL,
		status TEXT,
		assigned_at TEXT NOT NULL,
		eligible_until TEXT NOT NULL,
		PRIMARY KEY (user_id, coupon_id)
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_entries_user_until
		ON wallet_entries(user_id, eligible_until);

	-- Simulation clock singleton (owned by the orchestrator; read-only here,
	-- resettable by operational tooling)
	CREATE TABLE IF NOT EXISTS simulation_clock (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		current_simulated_date TEXT,
		simulation_calendar_start TEXT,
		simulation_start_time TEXT,
		real_start_time TEXT,
		time_scale REAL NOT NULL DEFAULT 96.0
	);

	INSERT OR IGNORE INTO simulation_clock (id) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER DIRECTORY (wallet.UserDirectory interface)
// =============================================================================

// SaveUser upserts a roster record. Used by sync tooling and test fixtures;
// the wallet subsystem itself never calls this.
func (s *Store) SaveUser(ctx context.Context, u wallet.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// ListUsers returns the roster in stable order, most recently created last.
func (s *Store) ListUsers(ctx context.Context) ([]wallet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, created_at FROM users ORDER BY created_at ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []wallet.User
	for rows.Next() {
		var u wallet.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Email, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser retrieves one roster record, or wallet.ErrUserNotFound.
func (s *Store) GetUser(ctx context.Context, id wallet.UserID) (*wallet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u wallet.User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, wallet.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// =============================================================================
// CATALOG
// =============================================================================

// SaveCoupon upserts a catalog record. Seeding/test fixtures only.
func (s *Store) SaveCoupon(ctx context.Context, c wallet.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO coupons (id, coupon_type, discount_type, discount_value, expiration_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			coupon_type = excluded.coupon_type,
			discount_type = excluded.discount_type,
			discount_value = excluded.discount_value,
			expiration_date = excluded.expiration_date,
			is_active = excluded.is_active
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Type, c.DiscountType, c.DiscountValue.String(),
		c.ExpirationDate.UTC().Format(time.RFC3339),
		nullBool(c.IsActive),
	)
	return err
}

// GetCoupon retrieves one catalog record, or wallet.ErrCouponNotFound.
func (s *Store) GetCoupon(ctx context.Context, id wallet.CouponID) (*wallet.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, coupon_type, discount_type, discount_value, expiration_date, is_active FROM coupons WHERE id = ?",
		id)
	c, err := scanCoupon(row)
	if err == sql.ErrNoRows {
		return nil, wallet.ErrCouponNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EligibleCouponIDs returns qualifying catalog ids: type in the set,
// unexpired at now, not explicitly deactivated, and not in exclude.
func (s *Store) EligibleCouponIDs(ctx context.Context, types []wallet.CouponType, exclude []wallet.CouponID, now time.Time) ([]wallet.CouponID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(types) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(types)+len(exclude)+1)

	sb.WriteString(`
		SELECT id FROM coupons
		WHERE coupon_type IN (` + placeholders(len(types)) + `)
		  AND expiration_date > ?
		  AND (is_active IS NULL OR is_active)
	`)
	for _, t := range types {
		args = append(args, string(t))
	}
	args = append(args, now.UTC().Format(time.RFC3339))

	if len(exclude) > 0 {
		sb.WriteString(" AND id NOT IN (" + placeholders(len(exclude)) + ")")
		for _, id := range exclude {
			args = append(args, string(id))
		}
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible coupons: %w", err)
	}
	defer rows.Close()

	var ids []wallet.CouponID
	for rows.Next() {
		var id wallet.CouponID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// WALLET ENTRIES (wallet.Store interface)
// =============================================================================

// HistoricalCouponIDs returns every coupon ever assigned to the user. This
// is the exclusion set for candidate selection: expired assignments still
// block re-assignment.
func (s *Store) HistoricalCouponIDs(ctx context.Context, userID wallet.UserID) ([]wallet.CouponID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT coupon_id FROM wallet_entries WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment history: %w", err)
	}
	defer rows.Close()

	var ids []wallet.CouponID
	for rows.Next() {
		var id wallet.CouponID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ActiveCounts counts the user's presentable entries per quota group at now.
// An entry counts only if both the entry and its coupon are usable.
func (s *Store) ActiveCounts(ctx context.Context, userID wallet.UserID, now time.Time) (wallet.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT c.coupon_type, COUNT(*)
		FROM wallet_entries w
		JOIN coupons c ON c.id = w.coupon_id
		WHERE w.user_id = ?
		  AND w.eligible_until > ?
		  AND (w.status IS NULL OR w.status = 'active')
		  AND c.expiration_date > ?
		  AND (c.is_active IS NULL OR c.is_active)
		GROUP BY c.coupon_type
	`

	nowStr := now.UTC().Format(time.RFC3339)
	rows, err := s.db.QueryContext(ctx, query, userID, nowStr, nowStr)
	if err != nil {
		return wallet.Counts{}, fmt.Errorf("failed to count active entries: %w", err)
	}
	defer rows.Close()

	var counts wallet.Counts
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return wallet.Counts{}, err
		}
		if wallet.CouponType(typ) == wallet.TypeFrontstore {
			counts.Frontstore += n
		} else {
			counts.CategoryBrand += n
		}
	}
	return counts, rows.Err()
}

// InsertEntries writes the batch in a single transaction. A conflicting
// (user, coupon) pair is a silent no-op - the first writer wins - and each
// row re-counts the user's active entries for its quota group before
// inserting, so a row that would push the group past its cap is dropped
// the same way. SQLite's single-writer serialization makes the re-count
// and the insert atomic; the returned count covers only rows actually
// inserted.
func (s *Store) InsertEntries(ctx context.Context, entries []wallet.WalletEntry, policy wallet.QuotaPolicy, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	nowStr := now.UTC().Format(time.RFC3339)
	inserted := 0
	for _, e := range entries {
		var typ string
		err := tx.QueryRowContext(ctx,
			"SELECT coupon_type FROM coupons WHERE id = ?", e.CouponID,
		).Scan(&typ)
		if err == sql.ErrNoRows {
			return 0, wallet.ErrCouponNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("failed to resolve coupon type: %w", err)
		}

		groupTypes := wallet.CategoryBrandTypes
		cap := policy.CategoryBrandCap
		if wallet.CouponType(typ) == wallet.TypeFrontstore {
			groupTypes = wallet.FrontstoreTypes
			cap = policy.FrontstoreCap
		}

		// Insert-if-absent with a transactional re-count of the group:
		// the SELECT's WHERE clause drops the row once the cap is reached.
		query := `
			INSERT INTO wallet_entries (user_id, coupon_id, status, assigned_at, eligible_until)
			SELECT ?, ?, ?, ?, ?
			WHERE (
				SELECT COUNT(*)
				FROM wallet_entries w
				JOIN coupons c ON c.id = w.coupon_id
				WHERE w.user_id = ?
				  AND w.eligible_until > ?
				  AND (w.status IS NULL OR w.status = 'active')
				  AND c.expiration_date > ?
				  AND (c.is_active IS NULL OR c.is_active)
				  AND c.coupon_type IN (` + placeholders(len(groupTypes)) + `)
			) < ?
			ON CONFLICT(user_id, coupon_id) DO NOTHING
		`
		args := []any{
			e.UserID, e.CouponID, nullString(e.Status),
			e.AssignedAt.UTC().Format(time.RFC3339),
			e.EligibleUntil.UTC().Format(time.RFC3339),
			e.UserID, nowStr, nowStr,
		}
		for _, t := range groupTypes {
			args = append(args, string(t))
		}
		args = append(args, cap)

		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert wallet entry: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit wallet entries: %w", err)
	}
	return inserted, nil
}

// WalletEntries returns all of the user's entries joined to their coupons,
// expired assignments included.
func (s *Store) WalletEntries(ctx context.Context, userID wallet.UserID) ([]wallet.EntryWithCoupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT w.user_id, w.coupon_id, w.status, w.assigned_at, w.eligible_until,
		       c.id, c.coupon_type, c.discount_type, c.discount_value, c.expiration_date, c.is_active
		FROM wallet_entries w
		JOIN coupons c ON c.id = w.coupon_id
		WHERE w.user_id = ?
		ORDER BY w.assigned_at ASC, w.coupon_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet entries: %w", err)
	}
	defer rows.Close()

	var out []wallet.EntryWithCoupon
	for rows.Next() {
		var (
			e             wallet.WalletEntry
			c             wallet.Coupon
			status        sql.NullString
			assignedAt    string
			eligibleUntil string
			discountValue string
			expiration    string
			isActive      sql.NullBool
		)
		if err := rows.Scan(
			&e.UserID, &e.CouponID, &status, &assignedAt, &eligibleUntil,
			&c.ID, &c.Type, &c.DiscountType, &discountValue, &expiration, &isActive,
		); err != nil {
			return nil, err
		}
		if status.Valid {
			e.Status = &status.String
		}
		e.AssignedAt, _ = time.Parse(time.RFC3339, assignedAt)
		e.EligibleUntil, _ = time.Parse(time.RFC3339, eligibleUntil)
		c.DiscountValue, _ = decimal.NewFromString(discountValue)
		c.ExpirationDate, _ = time.Parse(time.RFC3339, expiration)
		if isActive.Valid {
			c.IsActive = &isActive.Bool
		}
		out = append(out, wallet.EntryWithCoupon{Entry: e, Coupon: c})
	}
	return out, rows.Err()
}

// =============================================================================
// SIMULATION CLOCK (read side of the orchestrator-owned singleton)
// =============================================================================

// GetSimulationState reads the simulation clock singleton.
func (s *Store) GetSimulationState(ctx context.Context) (clock.SimulationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		state         clock.SimulationState
		simDate       sql.NullString
		calendarStart sql.NullString
		simStart      sql.NullString
		realStart     sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT is_active, current_simulated_date, simulation_calendar_start,
		       simulation_start_time, real_start_time, time_scale
		FROM simulation_clock WHERE id = 1
	`).Scan(&state.IsActive, &simDate, &calendarStart, &simStart, &realStart, &state.TimeScale)
	if err != nil {
		return clock.SimulationState{}, fmt.Errorf("failed to read simulation clock: %w", err)
	}

	state.CurrentSimulatedDate = parseNullTime(simDate)
	state.SimulationCalendarStart = parseNullTime(calendarStart)
	state.SimulationStartTime = parseNullTime(simStart)
	state.RealStartTime = parseNullTime(realStart)
	return state, nil
}

// SaveSimulationState overwrites the singleton. Orchestrator/test use only.
func (s *Store) SaveSimulationState(ctx context.Context, state clock.SimulationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE simulation_clock SET
			is_active = ?,
			current_simulated_date = ?,
			simulation_calendar_start = ?,
			simulation_start_time = ?,
			real_start_time = ?,
			time_scale = ?
		WHERE id = 1
	`,
		state.IsActive,
		formatNullTime(state.CurrentSimulatedDate),
		formatNullTime(state.SimulationCalendarStart),
		formatNullTime(state.SimulationStartTime),
		formatNullTime(state.RealStartTime),
		state.TimeScale,
	)
	return err
}

// ResetSimulationClock restores the singleton to operational defaults:
// inactive, all dates null, time_scale = 168.
func (s *Store) ResetSimulationClock(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE simulation_clock SET
			is_active = FALSE,
			current_simulated_date = NULL,
			simulation_calendar_start = NULL,
			simulation_start_time = NULL,
			real_start_time = NULL,
			time_scale = ?
		WHERE id = 1
	`, clock.ResetTimeScale)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears wallet data (for testing/demo). The simulation clock keeps
// its row; use ResetSimulationClock for that.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"wallet_entries", "coupons", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func scanCoupon(row *sql.Row) (wallet.Coupon, error) {
	var (
		c             wallet.Coupon
		discountValue string
		expiration    string
		isActive      sql.NullBool
	)
	err := row.Scan(&c.ID, &c.Type, &c.DiscountType, &discountValue, &expiration, &isActive)
	if err != nil {
		return c, err
	}
	c.DiscountValue, _ = decimal.NewFromString(discountValue)
	c.ExpirationDate, _ = time.Parse(time.RFC3339, expiration)
	if isActive.Valid {
		c.IsActive = &isActive.Bool
	}
	return c, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
