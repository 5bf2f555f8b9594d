package main

import (
	"errors"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/klyr/seclang/internal/config"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/observability"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/seclang"
)

// session carries the options and sinks shared by every command that
// compiles rules.
type session struct {
	opts    *config.Options
	reg     *prometheus.Registry
	metrics *observability.Metrics
	diagLog *logging.DiagnosticLogger
	closers []func() error
}

// openSession loads configPath (optional) and appends args to the
// configured rule globs.
func openSession(configPath string, args []string) (*session, error) {
	if configPath == "" && len(args) == 0 {
		return nil, errors.New("config path or rule files are required")
	}
	opts, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, err
		}
		opts.Rules = append(opts.Rules, abs)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := logging.Configure(opts.Logging.Level, opts.Logging.Format); err != nil {
		return nil, err
	}

	s := &session{opts: opts, reg: prometheus.NewRegistry()}
	s.metrics = observability.NewMetrics(s.reg)

	if opts.Logging.DiagnosticsLog != "" {
		diagLog, closer, err := logging.OpenDiagnosticLog(opts.ResolvePath(opts.Logging.DiagnosticsLog))
		if err != nil {
			return nil, err
		}
		s.diagLog = diagLog
		s.closers = append(s.closers, closer)
	}
	return s, nil
}

// compile expands the rule globs again on every call so reloads pick up
// new files.
func (s *session) compile() (*rules.RuleSet, error) {
	files, err := s.opts.RuleFiles()
	if err != nil {
		return nil, err
	}
	return seclang.Compile(files,
		seclang.WithLogger(logging.Logger),
		seclang.WithMetrics(s.metrics),
		seclang.WithDiagnosticLog(s.diagLog),
	)
}

func (s *session) Close() {
	for _, closer := range s.closers {
		_ = closer()
	}
}
