package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/server"
	"github.com/klyr/seclang/internal/store"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve [FILES...]",
		Short: "Serve the compiled rule set and recompile on SIGHUP",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(configPath, args)
			if err != nil {
				return err
			}
			defer s.Close()
			return runServer(cmd.Context(), s)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	return cmd
}

func runServer(ctx context.Context, s *session) error {
	compile := s.compile
	if s.opts.Publish.Redis.Addr != "" {
		redisStore := newRedisStore(s.opts.Publish.Redis)
		defer func() { _ = redisStore.Close() }()
		compile = publishing(ctx, s, redisStore)
	}

	rs, err := compile()
	if err != nil {
		return err
	}
	srv, err := server.New(rs)
	if err != nil {
		return err
	}

	var metricsSrv *http.Server
	if s.opts.Metrics.Enabled {
		srv.SetMetrics(s.metrics, s.reg)
		if s.opts.Metrics.Listen != s.opts.Server.Listen {
			metricsSrv = startMetricsServer(s)
			defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
		}
	}

	httpSrv := &http.Server{
		Addr:              s.opts.Server.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpSrv.ListenAndServe()
	}()
	logging.Logger.Info().Str("listen", s.opts.Server.Listen).Msg("serving rule set")

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

loop:
	for {
		select {
		case <-signalCtx.Done():
			break loop
		case <-hup:
			_ = srv.Reload(compile)
		case err := <-serverErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			break loop
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// publishing wraps the session compile so every successful rule set is
// also published to pub.
func publishing(ctx context.Context, s *session, pub store.Publisher) server.CompileFunc {
	return func() (*rules.RuleSet, error) {
		rs, err := s.compile()
		if err != nil {
			return nil, err
		}
		pubCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := publish(pubCtx, pub, rs); err != nil {
			return nil, err
		}
		return rs, nil
	}
}

func startMetricsServer(s *session) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler(s.reg))

	srv := &http.Server{
		Addr:              s.opts.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
