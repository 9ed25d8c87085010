package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextpie/sessiond/internal/domain"
)

func newPremiumCmd() *cobra.Command {
	var disable bool

	cmd := &cobra.Command{
		Use:   "premium <account-id>",
		Short: "Toggle an account's premium flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := wireApp(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			if err := app.accounts.SetPremium(cmd.Context(), domain.AccountID(args[0]), !disable); err != nil {
				return err
			}

			state := "premium"
			if disable {
				state = "regular"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], state)
			return err
		},
	}

	cmd.Flags().BoolVar(&disable, "disable", false, "remove the premium flag instead")

	return cmd
}
