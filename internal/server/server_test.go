package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/klyr/seclang/internal/observability"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/seclang"
)

func compile(t *testing.T, src string) *rules.RuleSet {
	t.Helper()
	c := seclang.New(seclang.WithLogger(zerolog.Nop()))
	c.CompileString("inline.conf", src)
	rs, err := c.Finalize()
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return rs
}

const sample = `SecRule ARGS "@rx attack" "id:1,phase:2,deny"
SecRule REQUEST_HEADERS:User-Agent "@pm nikto" "id:2,phase:1,deny"
`

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rs := compile(t, sample)
	srv, err := New(rs)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
	var body health
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.RuleSet != rs.ID || body.Rules != 2 {
		t.Fatalf("unexpected health %+v", body)
	}
}

func TestRulesEndpoints(t *testing.T) {
	srv, err := New(compile(t, sample))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	rec := get(t, srv, "/rules")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap struct {
		ID    string `json:"id"`
		Rules []struct {
			ID    int64 `json:"id"`
			Phase int64 `json:"phase"`
		} `json:"rules"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Rules) != 2 || snap.Rules[0].ID != 1 || snap.Rules[1].Phase != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	rec = get(t, srv, "/rules?phase=1")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id": 2`) {
		t.Fatalf("unexpected phase listing %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), `"id": 1,`) {
		t.Fatalf("phase 2 rule leaked into phase 1 listing")
	}

	cases := []struct {
		target string
		status int
	}{
		{"/rules/1", http.StatusOK},
		{"/rules/99", http.StatusNotFound},
		{"/rules/abc", http.StatusBadRequest},
		{"/rules?phase=9", http.StatusBadRequest},
		{"/missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		if rec := get(t, srv, tc.target); rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.status, rec.Code)
		}
	}
}

func TestRemovedRuleIsNotServed(t *testing.T) {
	srv, err := New(compile(t, sample+"SecRuleRemoveById 2\n"))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if rec := get(t, srv, "/rules/2"); rec.Code != http.StatusNotFound {
		t.Fatalf("removed rule: expected 404, got %d", rec.Code)
	}
	if rec := get(t, srv, "/rules/1"); rec.Code != http.StatusOK {
		t.Fatalf("active rule: expected 200, got %d", rec.Code)
	}
}

func TestNewRejectsUnpublished(t *testing.T) {
	if _, err := New(rules.NewRuleSet()); err == nil {
		t.Fatalf("expected error for unpublished rule set")
	}
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil rule set")
	}
}

func TestReloadSwapsAndKeepsOnFailure(t *testing.T) {
	first := compile(t, sample)
	srv, err := New(first)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	reg := prometheus.NewRegistry()
	srv.SetMetrics(observability.NewMetrics(reg), reg)

	second := compile(t, `SecRule ARGS "@rx other" "id:10,phase:2,deny"`)
	if err := srv.Reload(func() (*rules.RuleSet, error) { return second, nil }); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if srv.Current() != second || srv.Reloads() != 1 {
		t.Fatalf("expected second rule set to be served")
	}

	failure := errors.New("boom")
	if err := srv.Reload(func() (*rules.RuleSet, error) { return nil, failure }); !errors.Is(err, failure) {
		t.Fatalf("expected reload failure, got %v", err)
	}
	if srv.Current() != second || srv.Reloads() != 1 {
		t.Fatalf("failed reload must keep the current rule set")
	}

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `seclang_publishes_total{result="ok"} 1`) ||
		!strings.Contains(body, `seclang_publishes_total{result="failed"} 1`) {
		t.Fatalf("missing publish metrics:\n%s", body)
	}
}
