// Package server exposes the current published rule set over HTTP and
// swaps it atomically on reload.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/observability"
	"github.com/klyr/seclang/internal/rules"
)

// CompileFunc produces a freshly published rule set.
type CompileFunc func() (*rules.RuleSet, error)

type Server struct {
	current atomic.Pointer[rules.RuleSet]
	mux     *http.ServeMux
	logger  zerolog.Logger
	metrics *observability.Metrics

	reloads      uint64
	requestCount uint64
}

func New(rs *rules.RuleSet) (*Server, error) {
	s := &Server{
		mux:    http.NewServeMux(),
		logger: logging.Logger.With().Str("component", "server").Logger(),
	}
	if err := s.Swap(rs); err != nil {
		return nil, err
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /rules", s.handleRules)
	s.mux.HandleFunc("GET /rules/{id}", s.handleRule)
	return s, nil
}

// SetMetrics mounts /metrics for reg and records publications on m.
func (s *Server) SetMetrics(m *observability.Metrics, reg *prometheus.Registry) {
	s.metrics = m
	s.mux.Handle("GET /metrics", m.Handler(reg))
}

func (s *Server) Current() *rules.RuleSet {
	return s.current.Load()
}

// Swap replaces the served rule set. Only published sets are accepted.
func (s *Server) Swap(rs *rules.RuleSet) error {
	if rs == nil {
		return errors.New("rule set is required")
	}
	if !rs.Published() {
		return errors.New("rule set is not published")
	}
	s.current.Store(rs)
	return nil
}

// Reload compiles a new rule set and swaps it in. On failure the previous
// set keeps serving.
func (s *Server) Reload(compile CompileFunc) error {
	rs, err := compile()
	if err == nil {
		err = s.Swap(rs)
	}
	s.metrics.ObservePublish(err)
	if err != nil {
		s.logger.Error().Err(err).Msg("reload failed, keeping current rule set")
		return err
	}
	n := atomic.AddUint64(&s.reloads, 1)
	s.logger.Info().
		Str("ruleset", rs.ID).
		Uint64("reloads", n).
		Msg("rule set reloaded")
	return nil
}

func (s *Server) Reloads() uint64 {
	return atomic.LoadUint64(&s.reloads)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = s.newRequestID()
	}
	w.Header().Set("X-Request-ID", requestID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	s.logger.Debug().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("elapsed", time.Since(start)).
		Msg("request")
}

type health struct {
	Status  string `json:"status"`
	RuleSet string `json:"ruleset"`
	Rules   int    `json:"rules"`
	Reloads uint64 `json:"reloads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rs := s.Current()
	writeJSON(w, http.StatusOK, health{
		Status:  "ok",
		RuleSet: rs.ID,
		Rules:   len(rs.Active()),
		Reloads: s.Reloads(),
	})
}

// handleRules serves the whole snapshot, or only the active rules of one
// phase when ?phase= is given.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rs := s.Current()
	raw := r.URL.Query().Get("phase")
	if raw == "" {
		writeJSON(w, http.StatusOK, rs.Snapshot())
		return
	}
	phase, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || phase < 1 || phase > 5 {
		http.Error(w, fmt.Sprintf("invalid phase %q", raw), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, rs.Phase(phase))
}

func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid rule id", http.StatusBadRequest)
		return
	}
	rule, ok := s.Current().Lookup(id)
	if !ok || rule.Removed {
		http.Error(w, "rule not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) newRequestID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	value := atomic.AddUint64(&s.requestCount, 1)
	return fmt.Sprintf("req-%d", value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
