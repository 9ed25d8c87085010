// Package status renders the operator status view for the status command.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/nextpie/sessiond/internal/application"
)

// RenderOptions carries queue context shown in the footer.
type RenderOptions struct {
	ActiveSessions int
	MaxSessions    int
	WaitMinutes    int64
}

// Render formats ledger accounts and session occupancy as a terminal view.
func Render(statuses []application.SessionStatus, opts RenderOptions) string {
	return renderView(statuses, opts, newStyles())
}

func renderView(statuses []application.SessionStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Session Controller Status"),
		s.header.Render(fmt.Sprintf("accounts: %d | sessions: %d/%d", len(statuses), opts.ActiveSessions, opts.MaxSessions)),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No ledger accounts."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderAccount(status, s)))
	}

	lines = append(lines, s.section.Render(queueLine(opts, s)))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(status application.SessionStatus, s styles) string {
	account := status.Account

	title := string(account.ID)
	if account.Premium {
		title += " (premium)"
	}

	parts := []string{
		s.account.Render(title),
		s.detail.Render(fmt.Sprintf("credits: %d", account.Credits)),
	}

	switch {
	case status.Active && account.StopRequested:
		parts = append(parts, s.warning.Render("session: stopping"))
	case status.Active:
		parts = append(parts, s.active.Render("session: running"))
	case account.ActiveSession:
		// Ledger flag without a live loop; the sweep will reconcile it.
		parts = append(parts, s.warning.Render("session: stale flag"))
	default:
		parts = append(parts, s.detail.Render("session: none"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func queueLine(opts RenderOptions, s styles) string {
	if opts.ActiveSessions < opts.MaxSessions {
		return s.detail.Render("queue: none")
	}
	return s.warning.Render(fmt.Sprintf("queue: ~%d minute wait", opts.WaitMinutes))
}
