package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/viper"

	ledgersqlite "github.com/nextpie/sessiond/internal/adapters/ledger/sqlite"
	ledgertoml "github.com/nextpie/sessiond/internal/adapters/ledger/toml"
	"github.com/nextpie/sessiond/internal/adapters/notify"
	"github.com/nextpie/sessiond/internal/adapters/panel"
	"github.com/nextpie/sessiond/internal/application"
	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

type app struct {
	cfg       config.Config
	ledger    ports.Ledger
	panel     ports.Panel
	registry  *application.Registry
	cache     *application.Cache
	biller    *application.Biller
	admission *application.Admission
	queue     *application.Queue
	cleanup   *application.Cleanup
	accounts  *application.Accounts
	close     func() error
}

// wireApp builds the full service graph. loopCtx scopes the billing
// goroutines the admission controller spawns.
func wireApp(loopCtx context.Context) (*app, error) {
	cfg, err := config.Load(viper.New())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	clock := ports.SystemClock{}

	ledger, closeLedger, err := wireLedger(cfg.Ledger, clock)
	if err != nil {
		return nil, fmt.Errorf("wire ledger: %w", err)
	}

	panelClient, err := panel.NewClient(cfg.Panel.BaseURL, cfg.Panel.APIKey, http.DefaultClient, cfg.Panel.Timeout)
	if err != nil {
		_ = closeLedger()
		return nil, fmt.Errorf("wire panel client: %w", err)
	}

	notifier := notify.LogNotifier{}
	registry := application.NewRegistry(cfg.Billing.MaxSessions)
	cache := application.NewCache(panelClient, notify.LogPresence{}, clock, cfg.Panel.NodeID)
	biller := application.NewBiller(ledger, panelClient, registry, notifier, cfg.Billing)

	spawn := func(id domain.AccountID, serverID int) {
		go biller.Run(loopCtx, id, serverID)
	}

	admission := application.NewAdmission(ledger, panelClient, cache, registry, cfg.Profile, spawn)
	queue := application.NewQueue(ledger, registry, cfg.Queue)
	cleanup := application.NewCleanup(ledger, panelClient, cache, registry, clock, cfg.Cleanup)
	accounts := application.NewAccounts(ledger, panelClient, cache, registry, cfg.Credits)

	return &app{
		cfg:       cfg,
		ledger:    ledger,
		panel:     panelClient,
		registry:  registry,
		cache:     cache,
		biller:    biller,
		admission: admission,
		queue:     queue,
		cleanup:   cleanup,
		accounts:  accounts,
		close:     closeLedger,
	}, nil
}

func wireLedger(cfg config.Ledger, clock ports.Clock) (ports.Ledger, func() error, error) {
	switch cfg.Backend {
	case "toml":
		repo, err := ledgertoml.NewRepository(cfg.Path, clock)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() error { return nil }, nil
	default:
		store, err := ledgersqlite.Open(cfg.Path, clock)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}
