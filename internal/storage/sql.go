// Jellygate - Self-Service Signup and Trial Management for Jellyfin
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellygate

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers "duckdb"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/tomtom215/jellygate/internal/clock"
	"github.com/tomtom215/jellygate/internal/config"
	"github.com/tomtom215/jellygate/internal/logging"
	"github.com/tomtom215/jellygate/internal/models"
)

// settingsID is the primary key of the trial_settings singleton row.
const settingsID = 1

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_accounts (
		username    VARCHAR PRIMARY KEY,
		jellyfin_id VARCHAR NOT NULL,
		signup_ip   VARCHAR NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trial_users (
		username      VARCHAR PRIMARY KEY,
		signup_date   TIMESTAMP NOT NULL,
		expiry_date   TIMESTAMP NOT NULL,
		is_expired    BOOLEAN NOT NULL DEFAULT FALSE,
		duration_days INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trial_settings (
		id            INTEGER PRIMARY KEY,
		enabled       BOOLEAN NOT NULL,
		duration_days INTEGER NOT NULL,
		expiry_action VARCHAR NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trial_users_expiry ON trial_users (expiry_date)`,
}

// SQLRepository implements Repository over database/sql. Queries are written
// with ? placeholders and rebound for drivers that use $n.
type SQLRepository struct {
	db     *sql.DB
	driver string
	clock  clock.Clock
}

// OpenSQL opens dsn with the named driver (duckdb, postgres or sqlite) and
// creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string, maxOpenConns int, clk clock.Clock) (*SQLRepository, error) {
	driverName, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}
	if driver != config.SQLDriverPostgres {
		ensureParentDir(dsn)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	switch {
	case driver == config.SQLDriverSQLite:
		// SQLite allows one writer; a single connection also keeps
		// ":memory:" databases from splitting per connection.
		db.SetMaxOpenConns(1)
	case maxOpenConns > 0:
		db.SetMaxOpenConns(maxOpenConns)
	}

	r := &SQLRepository{db: db, driver: driver, clock: orClock(clk)}
	if err := r.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize %s schema: %w", driver, err)
	}
	logging.Debug().Str("driver", driver).Msg("SQL repository ready")
	return r, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case config.SQLDriverDuckDB:
		return "duckdb", nil
	case config.SQLDriverPostgres:
		return "pgx", nil
	case config.SQLDriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported sql driver %q", driver)
	}
}

// ensureParentDir creates the directory of a file-backed DSN. In-memory and
// URI-style DSNs are left alone.
func ensureParentDir(dsn string) {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, "file:") {
		return
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logging.Warn().Err(err).Str("dir", dir).Msg("Failed to create database directory")
		}
	}
}

func (r *SQLRepository) initialize(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, ... for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != config.SQLDriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// insertOnce runs an ON CONFLICT DO NOTHING insert and maps "no row written"
// to ErrAlreadyExists.
func (r *SQLRepository) insertOnce(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// CreateUserAccount implements Repository.
func (r *SQLRepository) CreateUserAccount(ctx context.Context, account *models.UserAccount) error {
	if err := checkUsername(account.Username); err != nil {
		return err
	}
	err := r.insertOnce(ctx, `
		INSERT INTO user_accounts (username, jellyfin_id, signup_ip, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		account.Username, account.JellyfinID, account.SignupIP, storeTime(account.CreatedAt))
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("insert user account: %w", err)
	}
	return err
}

// GetUserAccount implements Repository.
func (r *SQLRepository) GetUserAccount(ctx context.Context, username string) (*models.UserAccount, error) {
	var a models.UserAccount
	err := r.queryRow(ctx, `
		SELECT username, jellyfin_id, signup_ip, created_at
		FROM user_accounts WHERE username = ?`, username).
		Scan(&a.Username, &a.JellyfinID, &a.SignupIP, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user account: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

// ListUserAccounts implements Repository.
func (r *SQLRepository) ListUserAccounts(ctx context.Context) ([]models.UserAccount, error) {
	rows, err := r.query(ctx, `
		SELECT username, jellyfin_id, signup_ip, created_at
		FROM user_accounts ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list user accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.UserAccount, 0)
	for rows.Next() {
		var a models.UserAccount
		if err := rows.Scan(&a.Username, &a.JellyfinID, &a.SignupIP, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user account: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteUserAccount implements Repository.
func (r *SQLRepository) DeleteUserAccount(ctx context.Context, username string) error {
	if _, err := r.exec(ctx, `DELETE FROM user_accounts WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete user account: %w", err)
	}
	return nil
}

const trialColumns = `username, signup_date, expiry_date, is_expired, duration_days`

func scanTrial(scan func(dest ...interface{}) error) (models.TrialUser, error) {
	var t models.TrialUser
	err := scan(&t.Username, &t.SignupDate, &t.ExpiryDate, &t.IsExpired, &t.DurationDays)
	t.SignupDate = t.SignupDate.UTC()
	t.ExpiryDate = t.ExpiryDate.UTC()
	return t, err
}

// GetTrialUser implements Repository.
func (r *SQLRepository) GetTrialUser(ctx context.Context, username string) (*models.TrialUser, error) {
	row := r.queryRow(ctx, `SELECT `+trialColumns+` FROM trial_users WHERE username = ?`, username)
	t, err := scanTrial(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trial user: %w", err)
	}
	return &t, nil
}

// GetAllTrialUsers implements Repository.
func (r *SQLRepository) GetAllTrialUsers(ctx context.Context) ([]models.TrialUser, error) {
	return r.listTrials(ctx, `SELECT `+trialColumns+` FROM trial_users ORDER BY signup_date, username`)
}

// GetExpiredTrialUsers implements Repository.
func (r *SQLRepository) GetExpiredTrialUsers(ctx context.Context, now time.Time) ([]models.TrialUser, error) {
	return r.listTrials(ctx, `
		SELECT `+trialColumns+` FROM trial_users
		WHERE is_expired = ? OR expiry_date <= ?
		ORDER BY signup_date, username`, true, storeTime(now))
}

func (r *SQLRepository) listTrials(ctx context.Context, query string, args ...interface{}) ([]models.TrialUser, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trial users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.TrialUser, 0)
	for rows.Next() {
		t, err := scanTrial(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan trial user: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTrialUser implements Repository.
func (r *SQLRepository) CreateTrialUser(ctx context.Context, username string, signup, expiry time.Time, durationDays int) (*models.TrialUser, error) {
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	t := models.TrialUser{
		Username:     username,
		SignupDate:   storeTime(signup),
		ExpiryDate:   storeTime(expiry),
		DurationDays: durationDays,
	}
	err := r.insertOnce(ctx, `
		INSERT INTO trial_users (username, signup_date, expiry_date, is_expired, duration_days)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.Username, t.SignupDate, t.ExpiryDate, false, t.DurationDays)
	if errors.Is(err, ErrAlreadyExists) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("insert trial user: %w", err)
	}
	return &t, nil
}

// MarkTrialUserExpired implements Repository.
func (r *SQLRepository) MarkTrialUserExpired(ctx context.Context, username string) error {
	if _, err := r.exec(ctx, `UPDATE trial_users SET is_expired = ? WHERE username = ?`, true, username); err != nil {
		return fmt.Errorf("mark trial user expired: %w", err)
	}
	return nil
}

// DeleteTrialUser implements Repository.
func (r *SQLRepository) DeleteTrialUser(ctx context.Context, username string) error {
	if _, err := r.exec(ctx, `DELETE FROM trial_users WHERE username = ?`, username); err != nil {
		return fmt.Errorf("delete trial user: %w", err)
	}
	return nil
}

// GetTrialSettings implements Repository.
func (r *SQLRepository) GetTrialSettings(ctx context.Context) (*models.TrialSettings, error) {
	s, err := r.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SQLRepository) loadSettings(ctx context.Context) (models.TrialSettings, error) {
	s, err := r.readSettings(ctx)
	if !errors.Is(err, sql.ErrNoRows) {
		return s, err
	}

	def := defaultSettings(r.clock.Now())
	if _, err := r.exec(ctx, `
		INSERT INTO trial_settings (id, enabled, duration_days, expiry_action, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		settingsID, def.Enabled, def.DurationDays, string(def.ExpiryAction), def.UpdatedAt); err != nil {
		return s, fmt.Errorf("persist default trial settings: %w", err)
	}
	// Re-read so a concurrent first writer wins consistently.
	return r.readSettings(ctx)
}

func (r *SQLRepository) readSettings(ctx context.Context) (models.TrialSettings, error) {
	var (
		s      models.TrialSettings
		action string
	)
	err := r.queryRow(ctx, `
		SELECT enabled, duration_days, expiry_action, updated_at
		FROM trial_settings WHERE id = ?`, settingsID).
		Scan(&s.Enabled, &s.DurationDays, &action, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, err
	}
	if err != nil {
		return s, fmt.Errorf("get trial settings: %w", err)
	}
	s.ExpiryAction = models.ExpiryAction(action)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// UpdateTrialSettings implements Repository.
func (r *SQLRepository) UpdateTrialSettings(ctx context.Context, update models.TrialSettingsUpdate) (*models.TrialSettings, error) {
	current, err := r.loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	next, err := applySettings(current, update, r.clock.Now())
	if err != nil {
		return nil, err
	}

	if _, err := r.exec(ctx, `
		INSERT INTO trial_settings (id, enabled, duration_days, expiry_action, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			enabled = excluded.enabled,
			duration_days = excluded.duration_days,
			expiry_action = excluded.expiry_action,
			updated_at = excluded.updated_at`,
		settingsID, next.Enabled, next.DurationDays, string(next.ExpiryAction), next.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update trial settings: %w", err)
	}
	return &next, nil
}

// Ping implements Repository.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close implements Repository. DuckDB is checkpointed first so the WAL is
// flushed into the main file.
func (r *SQLRepository) Close() error {
	if r.driver == config.SQLDriverDuckDB {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := r.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return r.db.Close()
}

// Driver returns the configured driver name.
func (r *SQLRepository) Driver() string { return r.driver }
