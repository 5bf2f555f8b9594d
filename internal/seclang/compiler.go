// Package seclang compiles SecLang configuration into a rules.RuleSet.
package seclang

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getlantern/mtime"
	"github.com/rs/zerolog"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/observability"
	"github.com/klyr/seclang/internal/rules"
	"github.com/klyr/seclang/internal/script"
)

// Compiler holds the state of one compile run. It is not safe for
// concurrent use; the published rule set is.
type Compiler struct {
	rules   *rules.RuleSet
	diags   *logging.Diagnostics
	logger  zerolog.Logger
	metrics *observability.Metrics
	diagLog *logging.DiagnosticLogger
	scripts rules.ScriptLoader

	refs      []string
	started   mtime.Instant
	finalized bool
}

type Option func(*Compiler)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithDiagnosticLog appends every recorded error to l as JSON.
func WithDiagnosticLog(l *logging.DiagnosticLogger) Option {
	return func(c *Compiler) { c.diagLog = l }
}

func WithScriptLoader(l rules.ScriptLoader) Option {
	return func(c *Compiler) { c.scripts = l }
}

func New(opts ...Option) *Compiler {
	c := &Compiler{
		rules:   rules.NewRuleSet(),
		diags:   &logging.Diagnostics{},
		logger:  logging.Logger,
		scripts: script.NewLoader(),
		started: mtime.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compiler) RuleSet() *rules.RuleSet {
	return c.rules
}

func (c *Compiler) Diagnostics() *logging.Diagnostics {
	return c.diags
}

// CompileFile compiles path. Errors are recorded, not returned; see Finalize.
func (c *Compiler) CompileFile(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		c.record(logging.NewError(logging.KindSemantic, "Failed to open file: "+path, err).At(path, 0))
		return
	}
	c.compile(abs, string(src))
}

// CompileString compiles src as if it were read from name.
func (c *Compiler) CompileString(name, src string) {
	c.compile(name, src)
}

func (c *Compiler) compile(name, src string) {
	c.refs = append(c.refs, name)
	defer func() { c.refs = c.refs[:len(c.refs)-1] }()

	directives, lexErrs := Lex(name, src)
	for _, err := range lexErrs {
		c.record(err)
	}
	for _, d := range directives {
		c.dispatch(d)
	}
}

func (c *Compiler) currentFile() string {
	if len(c.refs) == 0 {
		return ""
	}
	return c.refs[len(c.refs)-1]
}

// report records err against the directive's location. The directive
// contributes nothing to the rule set.
func (c *Compiler) report(d Directive, err error) {
	c.record(logging.AsCompileError(err).At(d.File, d.Line))
}

func (c *Compiler) record(err *logging.CompileError) {
	c.diags.Add(err)
	logging.LogError(c.logger, err)
	c.metrics.ObserveError(string(err.Kind))
	if c.diagLog != nil {
		if werr := c.diagLog.Write(err); werr != nil {
			c.logger.Warn().Err(werr).Msg("diagnostic log write failed")
		}
	}
}

// Finalize applies the recorded exceptions and publishes the rule set. It
// fails with every recorded diagnostic when any directive failed.
func (c *Compiler) Finalize() (*rules.RuleSet, error) {
	if c.finalized {
		return nil, rules.ErrPublished
	}
	c.finalized = true

	if open := c.rules.OpenChain(); open != nil {
		c.logger.Warn().
			Str("file", open.File).
			Int("line", open.Line).
			Msg("chain started but never continued")
	}

	applied, err := c.rules.Exceptions.Apply(c.rules)
	var failed *logging.CompileErrors
	switch {
	case errors.As(err, &failed):
		for _, e := range failed.Errors {
			c.record(e)
		}
	case err != nil:
		c.record(logging.AsCompileError(err))
	}
	c.logger.Debug().
		Int("exceptions", c.rules.Exceptions.Len()).
		Int("applied", applied).
		Msg("exceptions applied")

	elapsed := mtime.Now().Sub(c.started)
	if err := c.diags.Err(); err != nil {
		c.metrics.ObserveCompile(elapsed, false, nil)
		ev := c.logger.Error().Int("errors", c.diags.Len())
		for kind, n := range c.diags.Counts() {
			ev = ev.Int(strings.ToLower(string(kind)), n)
		}
		ev.Dur("elapsed", elapsed).Msg("compile failed")
		return nil, err
	}

	if err := c.rules.Publish(); err != nil {
		return nil, err
	}
	c.metrics.ObserveCompile(elapsed, true, ruleCounts(c.rules))
	c.logger.Info().
		Str("ruleset", c.rules.ID).
		Int("rules", len(c.rules.Active())).
		Dur("elapsed", elapsed).
		Msg("rule set published")
	return c.rules, nil
}

// Compile compiles files in order and finalizes the result.
func Compile(files []string, opts ...Option) (*rules.RuleSet, error) {
	c := New(opts...)
	for _, f := range files {
		c.CompileFile(f)
	}
	return c.Finalize()
}

func ruleCounts(rs *rules.RuleSet) []observability.RuleCount {
	type key struct {
		phase int64
		kind  string
	}
	counts := map[key]int{}
	for _, r := range rs.Active() {
		counts[key{r.Phase, r.Kind.String()}]++
	}
	out := make([]observability.RuleCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, observability.RuleCount{Phase: k.phase, Kind: k.kind, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
