package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
)

func testBillingConfig() config.Billing {
	return config.Billing{
		Tick:          2 * time.Millisecond,
		GraceTicks:    1,
		WarningTicks:  1,
		StoppingTicks: 1,
		MaxSessions:   4,
	}
}

type billingFixture struct {
	ledger   *fakeLedger
	panel    *fakePanel
	registry *Registry
	notifier *fakeNotifier
	biller   *Biller
}

func newBillingFixture(t *testing.T, cfg config.Billing) *billingFixture {
	t.Helper()

	ledger := newFakeLedger()
	panel := newFakePanel()
	registry := NewRegistry(cfg.MaxSessions)
	notifier := newFakeNotifier()
	return &billingFixture{
		ledger:   ledger,
		panel:    panel,
		registry: registry,
		notifier: notifier,
		biller:   NewBiller(ledger, panel, registry, notifier, cfg),
	}
}

func (f *billingFixture) admit(t *testing.T, account domain.Account) {
	t.Helper()
	account.ActiveSession = true
	f.ledger.seed(account)
	require.NoError(t, f.registry.Reserve(account.ID))
}

func TestRunDrainsCreditsAndSuspends(t *testing.T) {
	f := newBillingFixture(t, testBillingConfig())
	f.admit(t, domain.Account{ID: "acc-1", Credits: 5})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.biller.Run(context.Background(), "acc-1", 40)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("billing loop did not terminate")
	}

	account := f.ledger.account("acc-1")
	assert.Equal(t, int64(0), account.Credits)
	assert.False(t, account.ActiveSession)
	assert.False(t, account.StopRequested)
	assert.Equal(t, []int{40}, f.panel.suspendedIDs())
	assert.False(t, f.registry.Contains("acc-1"))

	messages := f.notifier.sent("acc-1")
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "running out of credits")
	assert.Contains(t, messages[1], "has been stopped")
}

func TestRunHonorsStopRequestAtTickBoundary(t *testing.T) {
	f := newBillingFixture(t, testBillingConfig())
	f.admit(t, domain.Account{ID: "acc-1", Credits: 1000, StopRequested: true})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.biller.Run(context.Background(), "acc-1", 40)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("billing loop ignored the stop request")
	}

	account := f.ledger.account("acc-1")
	// Exactly the grace tick and one billed tick elapsed before the stop
	// flag was observed.
	assert.Equal(t, int64(999), account.Credits)
	assert.False(t, account.StopRequested)
	assert.False(t, account.ActiveSession)
	assert.Equal(t, []int{40}, f.panel.suspendedIDs())

	messages := f.notifier.sent("acc-1")
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "will stop in")
}

func TestRunReleasesSlotWhenSuspendFails(t *testing.T) {
	f := newBillingFixture(t, testBillingConfig())
	f.panel.suspendErr = domain.ErrPanelTransient
	f.admit(t, domain.Account{ID: "acc-1", Credits: 1, StopRequested: true})

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.biller.Run(context.Background(), "acc-1", 40)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("billing loop did not terminate")
	}

	// The suspend call failed but no session state may leak.
	assert.Empty(t, f.panel.suspendedIDs())
	assert.False(t, f.registry.Contains("acc-1"))
	account := f.ledger.account("acc-1")
	assert.False(t, account.ActiveSession)
	assert.False(t, account.StopRequested)
}

func TestRunDebitErrorKeepsSessionAlive(t *testing.T) {
	f := newBillingFixture(t, testBillingConfig())
	f.admit(t, domain.Account{ID: "acc-1", Credits: 3})
	f.ledger.failAll = domain.ErrPanelTransient

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.biller.Run(ctx, "acc-1", 40)
	}()

	// Several ticks with a broken ledger; the session must neither debit
	// nor terminate on its own.
	time.Sleep(30 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("billing loop terminated on a debit error")
	default:
	}

	f.ledger.mu.Lock()
	f.ledger.failAll = nil
	f.ledger.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("billing loop did not terminate after cancel")
	}
	assert.Equal(t, []int{40}, f.panel.suspendedIDs())
}

func TestRunCancelSkipsStraightToTermination(t *testing.T) {
	cfg := testBillingConfig()
	cfg.Tick = time.Hour
	f := newBillingFixture(t, cfg)
	f.admit(t, domain.Account{ID: "acc-1", Credits: 5})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.biller.Run(ctx, "acc-1", 40)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("billing loop did not react to cancellation")
	}

	account := f.ledger.account("acc-1")
	assert.Equal(t, int64(5), account.Credits)
	assert.False(t, account.ActiveSession)
	assert.Equal(t, []int{40}, f.panel.suspendedIDs())
	assert.False(t, f.registry.Contains("acc-1"))
}
