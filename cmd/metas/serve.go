package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/anuntech/metas/internal/adapters/http/api"
	"github.com/anuntech/metas/internal/adapters/http/site"
	"github.com/anuntech/metas/internal/adapters/http/swagger"
	service "github.com/anuntech/metas/internal/app"
	"github.com/anuntech/metas/pkg/logger"
)

// HTTP server timeouts not covered by config.
const (
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides config")
	return cmd
}

// newRouter mounts the API, its documentation and the dashboard on one router.
func newRouter(svc api.Dependencies) chi.Router {
	r := chi.NewRouter()
	api.NewServer(svc).Register(r)
	swagger.Register(r)
	site.Register(r)
	return r
}

func (c *cli) serve(ctx context.Context) error {
	cfg, log := c.cfg, c.log

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close store failed", logger.Error(err))
		}
	}()

	svc := service.New(store, store, service.WithLogger(log.Named("engine")))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(svc),
		ReadTimeout:       cfg.ReadTimeout(),
		WriteTimeout:      cfg.WriteTimeout(),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr), logger.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}

	log.Info(ctx, "server stopped")
	return nil
}
