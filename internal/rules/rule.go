// Package rules assembles compiled directives into rules and holds the
// rule set handed to the execution engine.
package rules

import (
	"path/filepath"
	"strings"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/operators"
	"github.com/klyr/seclang/internal/variables"
)

type Kind int

const (
	Conditional Kind = iota
	Unconditional
	Script
	Marker
)

func (k Kind) String() string {
	switch k {
	case Unconditional:
		return "unconditional"
	case Script:
		return "script"
	case Marker:
		return "marker"
	default:
		return "conditional"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DefaultPhase is the phase of rules that do not declare one.
const DefaultPhase = 2

// Rule is one compiled directive. The metadata fields (ID through Accuracy)
// are derived from Actions and refreshed whenever Actions change.
type Rule struct {
	ID    int64 `json:"id,omitempty" yaml:"id,omitempty"`
	Kind  Kind  `json:"kind" yaml:"kind"`
	Phase int64 `json:"phase" yaml:"phase"`

	Variables       []variables.Variable `json:"variables,omitempty" yaml:"variables,omitempty"`
	Operator        *operators.Operator  `json:"operator,omitempty" yaml:"operator,omitempty"`
	Actions         []actions.Action     `json:"actions,omitempty" yaml:"actions,omitempty"`
	Transformations []actions.Action     `json:"transformations,omitempty" yaml:"transformations,omitempty"`
	ScriptPath      string               `json:"script,omitempty" yaml:"script,omitempty"`
	Marker          string               `json:"marker,omitempty" yaml:"marker,omitempty"`

	Msg      string   `json:"msg,omitempty" yaml:"msg,omitempty"`
	LogData  string   `json:"logdata,omitempty" yaml:"logdata,omitempty"`
	Tags     []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Severity int64    `json:"severity,omitempty" yaml:"severity,omitempty"`
	Rev      string   `json:"rev,omitempty" yaml:"rev,omitempty"`
	Ver      string   `json:"ver,omitempty" yaml:"ver,omitempty"`
	Maturity int64    `json:"maturity,omitempty" yaml:"maturity,omitempty"`
	Accuracy int64    `json:"accuracy,omitempty" yaml:"accuracy,omitempty"`

	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`

	// Chained is set when the rule carries the chain action. Chain is the
	// rule that continues it.
	Chained bool  `json:"chained,omitempty" yaml:"chained,omitempty"`
	Chain   *Rule `json:"chain,omitempty" yaml:"chain,omitempty"`
	Removed bool  `json:"removed,omitempty" yaml:"removed,omitempty"`
}

// ScriptLoader validates a rule script at compile time.
type ScriptLoader interface {
	Load(path string) error
}

// NewConditional assembles a SecRule. raw is resolved before it is stored.
func NewConditional(raw []variables.Variable, op *operators.Operator, list []actions.Action, file string, line int) (*Rule, error) {
	if op == nil {
		return nil, logging.Syntaxf("SecRule requires an operator")
	}
	vars := variables.Resolve(raw)
	if len(vars) == 0 {
		return nil, logging.Semanticf("SecRule has no variables left after exclusions")
	}
	r := &Rule{Kind: Conditional, Variables: vars, Operator: op, File: file, Line: line}
	r.setActions(list)
	return r, nil
}

// NewUnconditional assembles a rule without operator that always matches.
func NewUnconditional(list []actions.Action, file string, line int) *Rule {
	r := &Rule{Kind: Unconditional, File: file, Line: line}
	r.setActions(list)
	return r
}

// NewScript assembles a SecRuleScript rule. The script is resolved against
// the declaring file and must load.
func NewScript(path string, list []actions.Action, file string, line int, loader ScriptLoader) (*Rule, error) {
	resolved := resolveRelative(file, path)
	if loader == nil {
		return nil, logging.Unsupportedf("SecRuleScript", "Failed to load script: no script support in this build")
	}
	if err := loader.Load(resolved); err != nil {
		ce := logging.AsCompileError(err)
		return nil, logging.NewError(ce.Kind, "Failed to load script: "+ce.Message, err)
	}
	r := &Rule{Kind: Script, ScriptPath: resolved, File: file, Line: line}
	r.setActions(list)
	return r, nil
}

// NewMarker returns a SecMarker jump target. Quotes around name are dropped.
func NewMarker(name, file string, line int) *Rule {
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	return &Rule{Kind: Marker, Marker: name, Phase: DefaultPhase, File: file, Line: line}
}

func (r *Rule) setActions(list []actions.Action) {
	r.Transformations, r.Actions = actions.Partition(list)
	r.derive()
}

func (r *Rule) derive() {
	r.ID, r.Phase = 0, DefaultPhase
	r.Msg, r.LogData, r.Rev, r.Ver = "", "", "", ""
	r.Severity, r.Maturity, r.Accuracy = 0, 0, 0
	r.Tags = nil
	r.Chained = false

	for _, a := range r.Actions {
		switch a.Name {
		case "id":
			r.ID = a.Number
		case "phase":
			r.Phase = a.Number
		case "chain":
			r.Chained = true
		case "msg":
			r.Msg = a.Param
		case "logdata":
			r.LogData = a.Param
		case "tag":
			r.Tags = append(r.Tags, a.Param)
		case "severity":
			r.Severity = a.Number
		case "rev":
			r.Rev = a.Param
		case "ver":
			r.Ver = a.Param
		case "maturity":
			r.Maturity = a.Number
		case "accuracy":
			r.Accuracy = a.Number
		}
	}
}

func (r *Rule) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Disruptive returns the rule's disruptive action, if any.
func (r *Rule) Disruptive() (actions.Action, bool) {
	return actions.FindDisruptive(r.Actions)
}

// Walk visits r and every rule of its chain.
func (r *Rule) Walk(fn func(*Rule)) {
	for cur := r; cur != nil; cur = cur.Chain {
		fn(cur)
	}
}

func resolveRelative(file, path string) string {
	if path == "" || file == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(file), path)
}
