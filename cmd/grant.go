package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextpie/sessiond/internal/domain"
)

func newGrantCmd() *cobra.Command {
	var amount int64

	cmd := &cobra.Command{
		Use:   "grant <account-id>",
		Short: "Grant credits to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			balance, err := app.accounts.Grant(cmd.Context(), domain.AccountID(args[0]), amount)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d credit(s)\n", args[0], balance)
			return err
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 60, "credits to add (negative to deduct)")

	return cmd
}
