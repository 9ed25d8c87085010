package application

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nextpie/sessiond/internal/config"
	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

type billingPhase int

const (
	phaseRunning billingPhase = iota
	phaseWarning
	phaseStopping
)

// Biller runs one billing loop per active session. Each loop debits one
// credit per tick, honors stop requests at tick boundaries, and suspends
// the server when the session ends. The registry slot and ledger flags are
// always released on termination, even when the terminal suspend fails.
type Biller struct {
	ledger   ports.Ledger
	panel    ports.Panel
	registry *Registry
	notifier ports.Notifier
	cfg      config.Billing
}

func NewBiller(ledger ports.Ledger, panel ports.Panel, registry *Registry, notifier ports.Notifier, cfg config.Billing) *Biller {
	return &Biller{
		ledger:   ledger,
		panel:    panel,
		registry: registry,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Run drives one session from grace to termination. It blocks until the
// session ends and must be called with the account already registered and
// flagged active. Canceling ctx skips the remaining waits and goes straight
// to termination.
func (b *Biller) Run(ctx context.Context, id domain.AccountID, serverID int) {
	// Grace period before the first debit, so the user can actually start
	// the workload.
	alive := b.waitTicks(ctx, b.cfg.GraceTicks)

	phase := phaseRunning
	for alive && phase == phaseRunning {
		if !b.waitTicks(ctx, 1) {
			break
		}

		balance, err := b.ledger.AdjustCredits(ctx, id, -1)
		if err != nil {
			// No state change happened; try again next tick.
			log.Printf("[ERROR] billing debit for %s: %v", id, err)
			continue
		}

		stop, err := b.ledger.StopRequested(ctx, id)
		if err != nil {
			log.Printf("[ERROR] billing stop-flag read for %s: %v", id, err)
		}

		switch {
		case stop:
			b.notifier.Notify(ctx, id, fmt.Sprintf("Your server will stop in %s.", b.graceWindow(b.cfg.StoppingTicks)))
			phase = phaseStopping
		case balance == 0:
			b.notifier.Notify(ctx, id, fmt.Sprintf("You are running out of credits. Your server will stop in %s.",
				b.graceWindow(b.cfg.WarningTicks+b.cfg.StoppingTicks)))
			phase = phaseWarning
		}
	}

	if phase == phaseWarning && b.waitTicks(ctx, b.cfg.WarningTicks) {
		phase = phaseStopping
	}
	if phase == phaseStopping {
		b.waitTicks(ctx, b.cfg.StoppingTicks)
	}

	b.terminate(id, serverID)
}

// terminate suspends the server and releases every piece of session state.
// Suspend failures are logged and left for the cleanup sweep; the capacity
// slot is released regardless so it can never leak.
func (b *Biller) terminate(id domain.AccountID, serverID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("[INFO] stopping server %d", serverID)
	if err := b.panel.SuspendServer(ctx, serverID); err != nil {
		log.Printf("[ERROR] suspending server %d: %v", serverID, err)
	}

	if err := b.ledger.SetStopRequested(ctx, id, false); err != nil {
		log.Printf("[ERROR] clearing stop flag for %s: %v", id, err)
	}

	b.registry.Release(id)

	if err := b.ledger.SetActive(ctx, id, false); err != nil {
		log.Printf("[ERROR] clearing active flag for %s: %v", id, err)
	}

	b.notifier.Notify(ctx, id, "Your server has been stopped. Thanks for using and supporting Nextpie ❤")
}

// waitTicks sleeps for n billing ticks. It returns false when ctx was
// canceled before the wait completed.
func (b *Biller) waitTicks(ctx context.Context, n int) bool {
	for i := 0; i < n; i++ {
		timer := time.NewTimer(b.cfg.Tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
	return true
}

func (b *Biller) graceWindow(ticks int) time.Duration {
	return time.Duration(ticks) * b.cfg.Tick
}
