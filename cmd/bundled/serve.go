package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"bundled/internal/httpapi"
	"bundled/internal/manager"
)

// manifestRetry is the delay between catalog fetch attempts while serving.
var manifestRetry = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API and the download scheduler",
		Example: "  bundled serve --content-root https://cdn.example.com/bundles --platform android",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				opts.cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults BUNDLED_ADDR or config)")
	return cmd
}

func serve(ctx context.Context, opts *options) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	m, err := a.newManager(manager.LogPublisher{Logger: a.log.With().Str("component", "events").Logger()})
	if err != nil {
		return err
	}
	if err := prometheus.Register(httpapi.NewBundleCollector(m)); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}

	cfg := a.cfg
	httpapi.SetLogger(a.log.With().Str("component", "http").Logger())
	httpapi.SetBaseContext(ctx)
	handler := httpapi.NewMuxWith(m, httpapi.Options{
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxRequestWait: cfg.MaxRequestWait.Std(),
		CORSOrigins:    cfg.CORSOrigins,
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.Run(gctx) })
	g.Go(func() error { return loadManifestLoop(gctx, a, m) })
	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Str("base_url", a.baseURL).Str("cache_dir", cfg.CacheDir).Msg("bundled listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			a.log.Error().Err(err).Msg("graceful shutdown")
		}
		return nil
	})
	return g.Wait()
}

// loadManifestLoop retries the catalog fetch until it succeeds or ctx ends.
func loadManifestLoop(ctx context.Context, a *app, m *manager.Manager) error {
	for {
		err := m.LoadManifest(ctx, a.manifestSource())
		if err == nil || errors.Is(err, manager.ErrManifestAlreadySet) {
			return nil
		}
		a.log.Warn().Err(err).Dur("retry_in", manifestRetry).Msg("manifest unavailable")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(manifestRetry):
		}
	}
}
