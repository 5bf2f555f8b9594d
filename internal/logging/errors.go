package logging

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type ErrorKind string

const (
	KindSyntax      ErrorKind = "SYNTAX"
	KindSemantic    ErrorKind = "SEMANTIC"
	KindUnsupported ErrorKind = "UNSUPPORTED"
)

// CompileError is a diagnostic raised while compiling a directive.
// Feature is only set for KindUnsupported.
type CompileError struct {
	Kind    ErrorKind
	Feature string
	Message string
	File    string
	Line    int
	Err     error
}

func (e *CompileError) Error() string {
	label := string(e.Kind)
	if e.Feature != "" {
		label += "(" + e.Feature + ")"
	}
	if e.File == "" {
		return fmt.Sprintf("%s: %s", label, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, label, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// At sets the source location unless one is already attached.
func (e *CompileError) At(file string, line int) *CompileError {
	if e.File == "" && e.Line == 0 {
		e.File = file
		e.Line = line
	}
	return e
}

func NewError(kind ErrorKind, message string, err error) *CompileError {
	return &CompileError{Kind: kind, Message: message, Err: err}
}

func Syntaxf(format string, args ...any) *CompileError {
	return &CompileError{Kind: KindSyntax, Message: fmt.Sprintf(format, args...)}
}

func Semanticf(format string, args ...any) *CompileError {
	return &CompileError{Kind: KindSemantic, Message: fmt.Sprintf(format, args...)}
}

func Unsupportedf(feature, format string, args ...any) *CompileError {
	return &CompileError{Kind: KindUnsupported, Feature: feature, Message: fmt.Sprintf(format, args...)}
}

// AsCompileError returns err as a *CompileError, wrapping foreign errors
// as semantic ones.
func AsCompileError(err error) *CompileError {
	if err == nil {
		return nil
	}
	var cerr *CompileError
	if errors.As(err, &cerr) {
		return cerr
	}
	return &CompileError{Kind: KindSemantic, Message: err.Error(), Err: err}
}

// CompileErrors aggregates every diagnostic of a failed compile.
type CompileErrors struct {
	Problems []string
	Errors   []*CompileError
}

func (e *CompileErrors) Error() string {
	return fmt.Sprintf("%d compile error(s)", len(e.Problems))
}

// Diagnostics collects errors for a compile run in source order.
type Diagnostics struct {
	errs []*CompileError
}

func (d *Diagnostics) Add(err *CompileError) {
	if err == nil {
		return
	}
	d.errs = append(d.errs, err)
}

func (d *Diagnostics) Len() int {
	return len(d.errs)
}

func (d *Diagnostics) Errors() []*CompileError {
	return append([]*CompileError(nil), d.errs...)
}

// Counts returns the number of recorded errors per kind.
func (d *Diagnostics) Counts() map[ErrorKind]int {
	out := map[ErrorKind]int{}
	for _, err := range d.errs {
		out[err.Kind]++
	}
	return out
}

// Err returns nil when nothing was recorded.
func (d *Diagnostics) Err() error {
	if len(d.errs) == 0 {
		return nil
	}
	agg := &CompileErrors{Errors: d.Errors()}
	for _, err := range d.errs {
		agg.Problems = append(agg.Problems, err.Error())
	}
	return agg
}

// LogError writes err with its location fields.
func LogError(logger zerolog.Logger, err error) {
	var cerr *CompileError
	if !errors.As(err, &cerr) {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().
		Str("kind", string(cerr.Kind)).
		Str("file", cerr.File).
		Int("line", cerr.Line)
	if cerr.Feature != "" {
		event = event.Str("feature", cerr.Feature)
	}
	if cerr.Err != nil {
		event = event.AnErr("cause", cerr.Err)
	}
	event.Msg(cerr.Message)
}
