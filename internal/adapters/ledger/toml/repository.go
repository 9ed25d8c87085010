// Package toml provides a file-backed credit ledger for installs without
// sqlite. Writes replace the whole file atomically via a temp-file rename.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	ledgerFileMode  = 0o600
	ledgerDirMode   = 0o700
	tempFilePattern = ".ledger-*.toml.tmp"
)

// Repository implements ports.Ledger on a single TOML file. A per-path
// RWMutex serializes read-modify-write cycles, so concurrent debits and
// grants cannot lose updates.
type Repository struct {
	ledgerPath string
	clock      ports.Clock
	mu         *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.Ledger = (*Repository)(nil)

func NewRepository(path string, clock ports.Clock) (*Repository, error) {
	if path == "" {
		return nil, errors.New("ledger path is required")
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve ledger path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Repository{
		ledgerPath: absPath,
		clock:      clock,
		mu:         lockForPath(absPath),
	}, nil
}

func (r *Repository) Get(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Account{}, err
	}

	for _, entry := range file.Accounts {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}
	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *Repository) Credits(ctx context.Context, id domain.AccountID) (int64, error) {
	account, err := r.Get(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return account.Credits, nil
}

func (r *Repository) AdjustCredits(ctx context.Context, id domain.AccountID, delta int64) (int64, error) {
	var balance int64
	err := r.update(ctx, id, true, func(account *domain.Account) {
		account.Credits += delta
		if account.Credits < 0 {
			account.Credits = 0
		}
		balance = account.Credits
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *Repository) SetPremium(ctx context.Context, id domain.AccountID, premium bool) error {
	return r.update(ctx, id, true, func(account *domain.Account) {
		account.Premium = premium
	})
}

func (r *Repository) SetActive(ctx context.Context, id domain.AccountID, active bool) error {
	return r.update(ctx, id, false, func(account *domain.Account) {
		account.ActiveSession = active
	})
}

func (r *Repository) SetStopRequested(ctx context.Context, id domain.AccountID, requested bool) error {
	return r.update(ctx, id, false, func(account *domain.Account) {
		account.StopRequested = requested
	})
}

func (r *Repository) StopRequested(ctx context.Context, id domain.AccountID) (bool, error) {
	account, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return account.StopRequested, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.AccountID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	kept := file.Accounts[:0]
	found := false
	for _, entry := range file.Accounts {
		if entry.ID == string(id) {
			found = true
			continue
		}
		kept = append(kept, entry)
	}
	if !found {
		return domain.ErrAccountNotFound
	}
	file.Accounts = kept

	return r.writeSchema(file)
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		accounts = append(accounts, fromSchema(entry))
	}
	return accounts, nil
}

// update applies mutate to the account row under the write lock. When the
// account is unknown it is created first if createMissing is set, else
// domain.ErrAccountNotFound is returned.
func (r *Repository) update(ctx context.Context, id domain.AccountID, createMissing bool, mutate func(*domain.Account)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	for i, entry := range file.Accounts {
		if entry.ID == string(id) {
			account := fromSchema(entry)
			mutate(&account)
			file.Accounts[i] = toSchema(account)
			return r.writeSchema(file)
		}
	}

	if !createMissing {
		return domain.ErrAccountNotFound
	}

	account := domain.Account{ID: id, LastOnline: r.clock.Now()}
	mutate(&account)
	file.Accounts = append(file.Accounts, toSchema(account))
	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.ledgerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, nil
		}
		return fileSchema{}, fmt.Errorf("read ledger file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode ledger file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()
	return file, nil
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.ledgerPath), ledgerDirMode); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode ledger file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.ledgerPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tempFile.Chmod(ledgerFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp ledger file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp ledger file: %w", err)
	}

	if err := os.Rename(tempName, r.ledgerPath); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}
	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}
	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
