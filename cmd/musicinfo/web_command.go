package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"musicinfo/internal/logger"
	"musicinfo/internal/session"
	"musicinfo/internal/web"
)

func newWebCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the info panel API and live state websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			if addr == "" {
				addr = cfg.WebAddr
			}

			log := ctx.newLogger(cmd)
			enableFileLog(log, "web")
			defer log.Close()

			svc, err := ctx.openServices(log)
			if err != nil {
				return err
			}
			settings := session.NewSettings(svc.kv, log.Named("settings"))
			panel := session.NewController(svc.enricher, settings, log.Named("panel"))
			ctx.shutdown.AddCleanup(func() {
				if err := svc.Close(); err != nil {
					log.Warn("Closing store: %v", err)
				}
			})
			ctx.shutdown.AddCleanup(panel.Close)

			runCtx := cmd.Context()
			jobs := web.NewJobManager()
			jobs.StartCleanup(runCtx)
			server := web.NewServer(runCtx, panel, svc.enricher, jobs, ctx.shutdown, log.Named("web"))

			httpServer := &http.Server{
				Addr:         addr,
				Handler:      server.Router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}
			return serveHTTP(runCtx, httpServer, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config web_addr)")
	return cmd
}

// serveHTTP runs srv until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting web server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
