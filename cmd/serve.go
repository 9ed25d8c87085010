package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextpie/sessiond/internal/adapters/httpapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session controller daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := wireApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			// First sync before taking traffic, then suspend whatever was
			// left running from a previous process life.
			if err := app.cache.Refresh(ctx); err != nil {
				return fmt.Errorf("initial panel sync: %w", err)
			}
			app.cleanup.ReconcileStartup(ctx)

			go app.cache.Run(ctx, app.cfg.Cache.Refresh)
			go app.cleanup.Run(ctx)

			router := httpapi.NewRouter(httpapi.Deps{
				Admission: app.admission,
				Accounts:  app.accounts,
				Queue:     app.queue,
				Cache:     app.cache,
				Token:     app.cfg.HTTP.Token,
			})

			server := &http.Server{
				Addr:              app.cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("[INFO] gateway listening on %s", server.Addr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("gateway: %w", err)
			case <-ctx.Done():
			}

			log.Printf("[INFO] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("gateway shutdown: %w", err)
			}
			return nil
		},
	}
}
