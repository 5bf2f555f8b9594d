package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Diagnostic is written as a single JSON object per compile error.
type Diagnostic struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	Feature   string    `json:"feature,omitempty"`
	File      string    `json:"file"`
	Line      int       `json:"line"`
	Message   string    `json:"message"`
	Cause     string    `json:"cause,omitempty"`
}

type DiagnosticLogger struct {
	w   io.Writer
	now func() time.Time
}

func NewDiagnosticLogger(w io.Writer) *DiagnosticLogger {
	return &DiagnosticLogger{w: w, now: time.Now}
}

func OpenDiagnosticLog(path string) (*DiagnosticLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDiagnosticLogger(file), file.Close, nil
}

func (l *DiagnosticLogger) Write(err *CompileError) error {
	if l == nil || err == nil {
		return nil
	}
	record := Diagnostic{
		Timestamp: l.now().UTC(),
		Kind:      string(err.Kind),
		Feature:   err.Feature,
		File:      err.File,
		Line:      err.Line,
		Message:   err.Message,
	}
	if err.Err != nil {
		record.Cause = err.Err.Error()
	}

	data, merr := json.Marshal(record)
	if merr != nil {
		return merr
	}
	_, werr := l.w.Write(append(data, '\n'))
	return werr
}
