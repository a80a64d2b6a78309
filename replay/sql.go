package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Load both drivers to allow configuring either, grounded on
	// sa/database.go's dialect dispatch in the teacher repo.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jmhodges/clock"
)

// Dialect selects the upsert statement SQLStore uses; the two drivers
// registered above support different single-statement compare-and-insert
// grammars.
type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

// SQLStore is a durable replay-store backend over database/sql, for
// deployments that already run a relational database and would rather not
// add Redis. Grounded on sa/database.go's NewDbMap/dialectMap shape, scaled
// down from a full ORM mapping (letsencrypt/borp — dropped, see
// DESIGN.md) to the one table this store needs.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	clk     clock.Clock
	table   string
}

var _ AtomicStore = (*SQLStore)(nil)

// NewSQLStore wraps an existing *sql.DB. table must already exist; see
// Schema for the DDL this store expects.
func NewSQLStore(db *sql.DB, dialect Dialect, clk clock.Clock, table string) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, clk: clk, table: table}
}

// Schema returns the DDL SQLStore expects for its table, for the given
// dialect.
func Schema(dialect Dialect, table string) string {
	switch dialect {
	case DialectMySQL:
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
			   replay_key VARCHAR(255) PRIMARY KEY,
			   expires_at DATETIME NOT NULL
			 ) ENGINE=InnoDB`, table)
	default:
		return fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (
			   replay_key TEXT PRIMARY KEY,
			   expires_at DATETIME NOT NULL
			 )`, table)
	}
}

func (s *SQLStore) Check(ctx context.Context, key string) (bool, error) {
	var expiresAt time.Time
	q := fmt.Sprintf(`SELECT expires_at FROM %s WHERE replay_key = ?`, s.table)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replay: sql check: %w", err)
	}
	if !s.clk.Now().Before(expiresAt) {
		_, _ = s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE replay_key = ?`, s.table), key)
		return false, nil
	}
	return true, nil
}

func (s *SQLStore) Store(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, s.upsertStmt(), key, s.clk.Now().Add(ttl), s.clk.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("replay: sql store: %w", err)
	}
	return nil
}

func (s *SQLStore) upsertStmt() string {
	switch s.dialect {
	case DialectMySQL:
		return fmt.Sprintf(
			`INSERT INTO %s (replay_key, expires_at) VALUES (?, ?)
			 ON DUPLICATE KEY UPDATE expires_at = ?`, s.table)
	default:
		return fmt.Sprintf(
			`INSERT INTO %s (replay_key, expires_at) VALUES (?, ?)
			 ON CONFLICT(replay_key) DO UPDATE SET expires_at = ?`, s.table)
	}
}

// CheckAndStore runs the check and the insert inside one transaction. On
// MySQL the SELECT carries FOR UPDATE, taking a row (or gap) lock that a
// second transaction for the same key blocks on until the first commits;
// the SQLite SELECT has no locking clause and relies on the transaction
// alone.
func (s *SQLStore) CheckAndStore(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("replay: sql checkAndStore begin: %w", err)
	}
	defer tx.Rollback()

	var expiresAt time.Time
	lockClause := ""
	if s.dialect == DialectMySQL {
		lockClause = " FOR UPDATE"
	}
	q := fmt.Sprintf(`SELECT expires_at FROM %s WHERE replay_key = ?%s`, s.table, lockClause)
	err = tx.QueryRowContext(ctx, q, key).Scan(&expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert
	case err != nil:
		return false, fmt.Errorf("replay: sql checkAndStore select: %w", err)
	case s.clk.Now().Before(expiresAt):
		return true, nil
	}

	now := s.clk.Now().Add(ttl)
	if _, err := tx.ExecContext(ctx, s.upsertStmtTx(), key, now, now); err != nil {
		return false, fmt.Errorf("replay: sql checkAndStore upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("replay: sql checkAndStore commit: %w", err)
	}
	return false, nil
}

func (s *SQLStore) upsertStmtTx() string { return s.upsertStmt() }

// Vacuum deletes all expired rows. Hosts should call this periodically
// (e.g. from a time.Ticker in cmd/openkitx403d) since, unlike the LRU and
// Redis backends, nothing sweeps this store's rows automatically.
func (s *SQLStore) Vacuum(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table), s.clk.Now())
	if err != nil {
		return 0, fmt.Errorf("replay: sql vacuum: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
