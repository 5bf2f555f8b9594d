package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDiagnosticLoggerWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	logger := NewDiagnosticLogger(&buf)
	logger.now = func() time.Time { return time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC) }

	first := Semanticf("SecDefaultAction must specify a disruptive action.").At("crs.conf", 12)
	second := Unsupportedf("geoLookup", "not compiled with geolocation support").At("crs.conf", 40)
	second.Err = errors.New("missing database")

	if err := logger.Write(first); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if err := logger.Write(second); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var parsed Diagnostic
	if err := json.Unmarshal([]byte(lines[1]), &parsed); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if parsed.Kind != "UNSUPPORTED" || parsed.Feature != "geoLookup" {
		t.Fatalf("unexpected record %+v", parsed)
	}
	if parsed.Line != 40 || parsed.File != "crs.conf" {
		t.Fatalf("unexpected location %s:%d", parsed.File, parsed.Line)
	}
	if parsed.Cause != "missing database" {
		t.Fatalf("expected cause, got %q", parsed.Cause)
	}
}

func TestOpenDiagnosticLogCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "diag.jsonl")
	logger, closer, err := OpenDiagnosticLog(path)
	if err != nil {
		t.Fatalf("OpenDiagnosticLog error: %v", err)
	}
	defer func() { _ = closer() }()

	if err := logger.Write(Syntaxf("Unknown directive: SecFoo").At("a.conf", 1)); err != nil {
		t.Fatalf("Write error: %v", err)
	}
}
