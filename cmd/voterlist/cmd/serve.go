package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/VotersList/internal/extract"
	"github.com/JonMunkholm/VotersList/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host        string
		port        int
		databaseURL string
	)

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the conversion API over HTTP",
		Long: `Serve starts the HTTP API:

  GET  /health                       liveness and conversion slots
  POST /api/convert                  multipart "file", returns CSV (or JSON with ?format=json)
  GET  /api/documents                stored conversions (needs DATABASE_URL)
  GET  /api/documents/{id}           one conversion with its report trail
  GET  /api/documents/{id}/records   stored records`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("database-url") {
				a.cfg.Database.URL = databaseURL
			}
			if err := a.validate(); err != nil {
				return err
			}
			return a.runServe(cmd.Context())
		},
	}

	c.Flags().StringVar(&host, "host", "", "interface to bind (overrides SERVER_HOST)")
	c.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides SERVER_PORT)")
	c.Flags().StringVar(&databaseURL, "database-url", "", "store conversions in Postgres (overrides DATABASE_URL)")
	return c
}

func (a *app) runServe(ctx context.Context) error {
	opts := web.Options{
		Config:    a.cfg.Server,
		Extractor: extract.PDF{Options: a.extractOptions()},
		Output:    a.outputOptions(),
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		opts.Store = st
		slog.Info("document store enabled")
	}

	server := web.NewServer(opts)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start returns as soon as Shutdown begins; done closes once requests
	// and conversions in flight have finished.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		return err
	}
	<-done
	return nil
}
