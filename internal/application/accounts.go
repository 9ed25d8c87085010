package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

// Accounts bundles the credit and account-management operations that sit
// outside the session lifecycle: balance queries, the daily grant, premium
// toggling and the withdrawal cascade.
type Accounts struct {
	ledger   ports.Ledger
	panel    ports.Panel
	cache    *Cache
	registry *Registry
	cfg      config.Credits
}

func NewAccounts(ledger ports.Ledger, panel ports.Panel, cache *Cache, registry *Registry, cfg config.Credits) *Accounts {
	return &Accounts{
		ledger:   ledger,
		panel:    panel,
		cache:    cache,
		registry: registry,
		cfg:      cfg,
	}
}

// Credits returns the balance; unknown accounts read as 0.
func (s *Accounts) Credits(ctx context.Context, id domain.AccountID) (int64, error) {
	return s.ledger.Credits(ctx, id)
}

// GrantDaily adds the daily allowance (doubled for premium accounts) and
// returns the amount granted. Rate limiting lives in the chat layer.
func (s *Accounts) GrantDaily(ctx context.Context, id domain.AccountID) (int64, error) {
	amount := s.cfg.Daily

	account, err := s.ledger.Get(ctx, id)
	if err == nil && account.Premium {
		amount = s.cfg.PremiumDaily
	} else if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return 0, fmt.Errorf("read ledger row: %w", err)
	}

	if _, err := s.ledger.AdjustCredits(ctx, id, amount); err != nil {
		return 0, fmt.Errorf("grant credits: %w", err)
	}
	return amount, nil
}

// Grant adds an arbitrary (possibly negative) amount and returns the new
// balance. Admin surface only.
func (s *Accounts) Grant(ctx context.Context, id domain.AccountID, amount int64) (int64, error) {
	balance, err := s.ledger.AdjustCredits(ctx, id, amount)
	if err != nil {
		return 0, fmt.Errorf("adjust credits: %w", err)
	}
	return balance, nil
}

// SetPremium flips the premium flag, creating the account when unknown.
func (s *Accounts) SetPremium(ctx context.Context, id domain.AccountID, premium bool) error {
	if err := s.ledger.SetPremium(ctx, id, premium); err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return nil
}

// Withdraw removes every trace of the account: its panel servers, its
// panel user, and its ledger row. Returns domain.ErrAccountNotFound when
// the snapshot has no panel user for it.
func (s *Accounts) Withdraw(ctx context.Context, id domain.AccountID) error {
	snap := s.cache.Current()

	user, ok := snap.UserByAccount(id)
	if !ok {
		return domain.ErrAccountNotFound
	}

	for _, server := range snap.ServersByUser(user.ID) {
		if err := s.panel.DeleteServer(ctx, server.ID); err != nil {
			return fmt.Errorf("delete server %d: %w", server.ID, err)
		}
	}

	if err := s.panel.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete panel user %d: %w", user.ID, err)
	}

	if err := s.ledger.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return fmt.Errorf("delete ledger row: %w", err)
	}

	log.Printf("[INFO] removed user %d and servers for %s", user.ID, id)
	return nil
}

// SessionStatus is one row of the operator status view.
type SessionStatus struct {
	Account domain.Account
	Active  bool
}

// Overview lists every ledger account with its live-session state, for the
// status command.
func (s *Accounts) Overview(ctx context.Context) ([]SessionStatus, error) {
	accounts, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	statuses := make([]SessionStatus, 0, len(accounts))
	for _, account := range accounts {
		statuses = append(statuses, SessionStatus{
			Account: account,
			Active:  s.registry.Contains(account.ID),
		})
	}
	return statuses, nil
}
