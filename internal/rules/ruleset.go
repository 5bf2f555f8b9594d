package rules

import (
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/config"
	"github.com/klyr/seclang/internal/logging"
)

// ErrPublished is returned by every mutation attempted after Publish.
var ErrPublished = errors.New("rule set already published")

// RuleSet is the compiled policy: ordered rules, per-phase default actions,
// scalar properties and the exception records waiting to be applied.
type RuleSet struct {
	ID         string             `json:"id,omitempty" yaml:"id,omitempty"`
	Properties *config.Properties `json:"properties" yaml:"properties"`
	Exceptions *Exceptions        `json:"-" yaml:"-"`

	rules     []*Rule
	defaults  map[int64][]actions.Action
	byID      map[int64]*Rule
	tail      *Rule
	published bool
}

func NewRuleSet() *RuleSet {
	return &RuleSet{
		Properties: config.NewProperties(),
		Exceptions: NewExceptions(),
		defaults:   map[int64][]actions.Action{},
		byID:       map[int64]*Rule{},
	}
}

// AddRule registers a conditional or script rule. While the previous rule
// has an open chain, r becomes its continuation and takes its phase.
func (rs *RuleSet) AddRule(r *Rule) error {
	if rs.published {
		return ErrPublished
	}
	if rs.tail != nil {
		if _, ok := r.Disruptive(); ok {
			return logging.Semanticf("Disruptive actions can only be specified by chain starter rules.")
		}
		r.Phase = rs.tail.Phase
		rs.tail.Chain = r
		rs.tail = nil
		if r.Chained {
			rs.tail = r
		}
		return nil
	}

	if r.ID == 0 {
		return logging.Semanticf("Rules must have an ID. File: %s at line: %d", r.File, r.Line)
	}
	if err := rs.insert(r); err != nil {
		return err
	}
	if r.Chained {
		rs.tail = r
	}
	return nil
}

// AddUnconditionalRule registers a SecAction rule. It closes any open chain.
func (rs *RuleSet) AddUnconditionalRule(r *Rule) error {
	if rs.published {
		return ErrPublished
	}
	if r.ID == 0 {
		return logging.Semanticf("Rules must have an ID. File: %s at line: %d", r.File, r.Line)
	}
	if err := rs.insert(r); err != nil {
		return err
	}
	rs.tail = nil
	if r.Chained {
		rs.tail = r
	}
	return nil
}

// AddMarker registers a SecMarker jump target. It closes any open chain.
func (rs *RuleSet) AddMarker(name, file string, line int) error {
	if rs.published {
		return ErrPublished
	}
	if strings.Trim(strings.TrimSpace(name), `"'`) == "" {
		return logging.Syntaxf("SecMarker requires a name")
	}
	rs.tail = nil
	rs.rules = append(rs.rules, NewMarker(name, file, line))
	return nil
}

func (rs *RuleSet) insert(r *Rule) error {
	if _, dup := rs.byID[r.ID]; dup {
		return logging.Semanticf("Rule id: %d is duplicated", r.ID)
	}
	rs.byID[r.ID] = r
	rs.rules = append(rs.rules, r)
	return nil
}

// OpenChain returns the rule waiting for a chain continuation, or nil.
func (rs *RuleSet) OpenChain() *Rule {
	return rs.tail
}

// Rules returns every top-level rule in declaration order, markers and
// removed rules included.
func (rs *RuleSet) Rules() []*Rule {
	return append([]*Rule(nil), rs.rules...)
}

// Active returns the rules the engine evaluates: markers and removed rules
// are left out.
func (rs *RuleSet) Active() []*Rule {
	out := make([]*Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		if r.Kind == Marker || r.Removed {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Phase returns the active rules of phase in order.
func (rs *RuleSet) Phase(phase int64) []*Rule {
	var out []*Rule
	for _, r := range rs.Active() {
		if r.Phase == phase {
			out = append(out, r)
		}
	}
	return out
}

func (rs *RuleSet) Lookup(id int64) (*Rule, bool) {
	r, ok := rs.byID[id]
	return r, ok
}

func (rs *RuleSet) ByTag(tag string) []*Rule {
	var out []*Rule
	for _, r := range rs.rules {
		if r.Kind != Marker && r.HasTag(tag) {
			out = append(out, r)
		}
	}
	return out
}

func (rs *RuleSet) ByMsg(msg string) []*Rule {
	var out []*Rule
	for _, r := range rs.rules {
		if r.Kind != Marker && r.Msg == msg {
			out = append(out, r)
		}
	}
	return out
}

func (rs *RuleSet) Markers() []string {
	var out []string
	for _, r := range rs.rules {
		if r.Kind == Marker {
			out = append(out, r.Marker)
		}
	}
	return out
}

// Publish freezes the set and stamps it with a fresh id.
func (rs *RuleSet) Publish() error {
	if rs.published {
		return ErrPublished
	}
	rs.published = true
	rs.ID = uuid.NewString()
	rs.Exceptions.seal()
	return nil
}

func (rs *RuleSet) Published() bool {
	return rs.published
}

// Snapshot is the serializable view of a rule set.
type Snapshot struct {
	ID             string                     `json:"id,omitempty" yaml:"id,omitempty"`
	Properties     *config.Properties         `json:"properties" yaml:"properties"`
	DefaultActions map[int64][]actions.Action `json:"defaultActions,omitempty" yaml:"defaultActions,omitempty"`
	Rules          []*Rule                    `json:"rules" yaml:"rules"`
	Exceptions     []*Exception               `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
}

func (rs *RuleSet) Snapshot() Snapshot {
	defaults := make(map[int64][]actions.Action, len(rs.defaults))
	for phase, list := range rs.defaults {
		defaults[phase] = append([]actions.Action(nil), list...)
	}
	return Snapshot{
		ID:             rs.ID,
		Properties:     rs.Properties,
		DefaultActions: defaults,
		Rules:          rs.Rules(),
		Exceptions:     rs.Exceptions.Records(),
	}
}

func sortedPhases(m map[int64][]actions.Action) []int64 {
	phases := make([]int64, 0, len(m))
	for phase := range m {
		phases = append(phases, phase)
	}
	sort.Slice(phases, func(i, j int) bool { return phases[i] < phases[j] })
	return phases
}
