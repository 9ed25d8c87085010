// Package sqlite provides the SQLite-backed credit ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id TEXT NOT NULL PRIMARY KEY,
    credits INTEGER NOT NULL DEFAULT 0,
    premium INTEGER NOT NULL DEFAULT 0,
    server_status INTEGER NOT NULL DEFAULT 0,
    last_online INTEGER NOT NULL DEFAULT 0,
    stop_server INTEGER NOT NULL DEFAULT 0
);`

// Store persists the credit ledger in SQLite. Row-level upserts keep
// per-account read-modify-write serialized, so a billing debit and a
// concurrent grant cannot lose an update.
type Store struct {
	sqlDB *sql.DB
	clock ports.Clock
}

var _ ports.Ledger = (*Store)(nil)

// Open opens (creating if needed) the ledger database at path.
func Open(path string, clock ports.Clock) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ledger path is required")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ensure accounts table: %w", err)
	}
	return &Store{sqlDB: sqlDB, clock: clock}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, credits, premium, server_status, last_online, stop_server FROM accounts WHERE id = ?`, string(id))
	return scanAccount(row)
}

func (s *Store) Credits(ctx context.Context, id domain.AccountID) (int64, error) {
	var credits int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT credits FROM accounts WHERE id = ?`, string(id)).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credits: %w", err)
	}
	return credits, nil
}

func (s *Store) AdjustCredits(ctx context.Context, id domain.AccountID, delta int64) (int64, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin adjust tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO accounts (id, credits, premium, server_status, last_online, stop_server)
VALUES (?, max(0, ?), 0, 0, ?, 0)
ON CONFLICT(id) DO UPDATE SET credits = max(0, accounts.credits + ?)`,
		string(id), delta, s.clock.Now().Unix(), delta)
	if err != nil {
		return 0, fmt.Errorf("adjust credits: %w", err)
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT credits FROM accounts WHERE id = ?`, string(id)).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read adjusted balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjust tx: %w", err)
	}
	return balance, nil
}

func (s *Store) SetPremium(ctx context.Context, id domain.AccountID, premium bool) error {
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (id, credits, premium, server_status, last_online, stop_server)
VALUES (?, 0, ?, 0, ?, 0)
ON CONFLICT(id) DO UPDATE SET premium = excluded.premium`,
		string(id), boolToInt(premium), s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id domain.AccountID, active bool) error {
	return s.setFlag(ctx, id, "server_status", active)
}

func (s *Store) SetStopRequested(ctx context.Context, id domain.AccountID, requested bool) error {
	return s.setFlag(ctx, id, "stop_server", requested)
}

func (s *Store) StopRequested(ctx context.Context, id domain.AccountID) (bool, error) {
	var stop int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT stop_server FROM accounts WHERE id = ?`, string(id)).Scan(&stop)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrAccountNotFound
	}
	if err != nil {
		return false, fmt.Errorf("read stop flag: %w", err)
	}
	return stop != 0, nil
}

func (s *Store) Delete(ctx context.Context, id domain.AccountID) error {
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, credits, premium, server_status, last_online, stop_server FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

func (s *Store) setFlag(ctx context.Context, id domain.AccountID, column string, value bool) error {
	// column is one of two fixed names, never user input.
	query := fmt.Sprintf(`UPDATE accounts SET %s = ? WHERE id = ?`, column)
	result, err := s.sqlDB.ExecContext(ctx, query, boolToInt(value), string(id))
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if affected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		id         string
		credits    int64
		premium    int64
		active     int64
		lastOnline int64
		stop       int64
	)
	err := row.Scan(&id, &credits, &premium, &active, &lastOnline, &stop)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("scan account row: %w", err)
	}
	return domain.Account{
		ID:            domain.AccountID(id),
		Credits:       credits,
		Premium:       premium != 0,
		ActiveSession: active != 0,
		StopRequested: stop != 0,
		LastOnline:    time.Unix(lastOnline, 0).UTC(),
	}, nil
}

func boolToInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
