package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	statusrender "github.com/nextpie/sessiond/internal/adapters/render/status"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger accounts, sessions and queue state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			if err := app.cache.Refresh(cmd.Context()); err != nil {
				return fmt.Errorf("panel sync: %w", err)
			}

			statuses, err := app.accounts.Overview(cmd.Context())
			if err != nil {
				return err
			}

			wait, err := app.queue.EstimateWaitMinutes(cmd.Context())
			if err != nil {
				return err
			}

			view := statusrender.Render(statuses, statusrender.RenderOptions{
				ActiveSessions: app.registry.Size(),
				MaxSessions:    app.cfg.Billing.MaxSessions,
				WaitMinutes:    wait,
			})
			_, err = fmt.Fprintln(cmd.OutOrStdout(), view)
			return err
		},
	}
}
