package rules

import (
	"strings"

	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/variables"
)

type ExceptionKind int

const (
	RemoveByID ExceptionKind = iota
	RemoveByTag
	RemoveByMsg
	UpdateTargetByID
	UpdateTargetByTag
	UpdateTargetByMsg
	UpdateActionByID
)

var exceptionDirectives = [...]string{
	RemoveByID:        "SecRuleRemoveById",
	RemoveByTag:       "SecRuleRemoveByTag",
	RemoveByMsg:       "SecRuleRemoveByMsg",
	UpdateTargetByID:  "SecRuleUpdateTargetById",
	UpdateTargetByTag: "SecRuleUpdateTargetByTag",
	UpdateTargetByMsg: "SecRuleUpdateTargetByMsg",
	UpdateActionByID:  "SecRuleUpdateActionById",
}

// String returns the directive that declares the exception.
func (k ExceptionKind) String() string {
	if k < 0 || int(k) >= len(exceptionDirectives) {
		return "unknown"
	}
	return exceptionDirectives[k]
}

func (k ExceptionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Exception is one recorded remove or update directive. IDs is set for the
// by-id kinds, Key holds the tag or message otherwise.
type Exception struct {
	Kind    ExceptionKind        `json:"kind" yaml:"kind"`
	IDs     []actions.IDRange    `json:"ids,omitempty" yaml:"ids,omitempty"`
	Key     string               `json:"key,omitempty" yaml:"key,omitempty"`
	Targets []variables.Variable `json:"targets,omitempty" yaml:"targets,omitempty"`
	Actions []actions.Action     `json:"actions,omitempty" yaml:"actions,omitempty"`
	File    string               `json:"file" yaml:"file"`
	Line    int                  `json:"line" yaml:"line"`
}

// targets returns the chain starters of rs the exception applies to.
func (e *Exception) targets(rs *RuleSet) []*Rule {
	switch e.Kind {
	case RemoveByTag, UpdateTargetByTag:
		return rs.ByTag(e.Key)
	case RemoveByMsg, UpdateTargetByMsg:
		return rs.ByMsg(e.Key)
	}
	var out []*Rule
	for _, r := range rs.rules {
		if r.Kind != Marker && r.ID != 0 && actions.AnyContains(e.IDs, r.ID) {
			out = append(out, r)
		}
	}
	return out
}

// Exceptions records exception directives in declaration order. They are
// applied to a rule set in one pass by Apply.
type Exceptions struct {
	records []*Exception
	sealed  bool
}

func NewExceptions() *Exceptions {
	return &Exceptions{}
}

func (e *Exceptions) LoadRemoveByID(raw, file string, line int) error {
	ids, err := actions.ParseIDRanges(raw)
	if err != nil {
		return loadError(RemoveByID, err)
	}
	return e.add(&Exception{Kind: RemoveByID, IDs: ids, File: file, Line: line})
}

func (e *Exceptions) LoadRemoveByTag(tag, file string, line int) error {
	if tag == "" {
		return loadError(RemoveByTag, logging.Syntaxf("a tag is required"))
	}
	return e.add(&Exception{Kind: RemoveByTag, Key: tag, File: file, Line: line})
}

func (e *Exceptions) LoadRemoveByMsg(msg, file string, line int) error {
	if msg == "" {
		return loadError(RemoveByMsg, logging.Syntaxf("a message is required"))
	}
	return e.add(&Exception{Kind: RemoveByMsg, Key: msg, File: file, Line: line})
}

func (e *Exceptions) LoadUpdateTargetByID(rawID, targets, file string, line int) error {
	ids, err := actions.ParseIDRanges(rawID)
	if err != nil {
		return loadError(UpdateTargetByID, err)
	}
	vars, err := parseTargets(targets)
	if err != nil {
		return loadError(UpdateTargetByID, err)
	}
	return e.add(&Exception{Kind: UpdateTargetByID, IDs: ids, Targets: vars, File: file, Line: line})
}

func (e *Exceptions) LoadUpdateTargetByTag(tag, targets, file string, line int) error {
	return e.loadUpdateTargetByKey(UpdateTargetByTag, tag, targets, file, line)
}

func (e *Exceptions) LoadUpdateTargetByMsg(msg, targets, file string, line int) error {
	return e.loadUpdateTargetByKey(UpdateTargetByMsg, msg, targets, file, line)
}

func (e *Exceptions) loadUpdateTargetByKey(kind ExceptionKind, key, targets, file string, line int) error {
	if key == "" {
		return loadError(kind, logging.Syntaxf("a match value is required"))
	}
	vars, err := parseTargets(targets)
	if err != nil {
		return loadError(kind, err)
	}
	return e.add(&Exception{Kind: kind, Key: key, Targets: vars, File: file, Line: line})
}

// LoadUpdateActionByID records a replacement action list for one rule id.
// id, phase and chain cannot be updated.
func (e *Exceptions) LoadUpdateActionByID(rawID, list, file string, line int) error {
	id, err := actions.ParseRuleID(rawID)
	if err != nil {
		return loadError(UpdateActionByID, err)
	}
	parsed, err := actions.ParseList(list)
	if err != nil {
		return loadError(UpdateActionByID, err)
	}
	if len(parsed) == 0 {
		return loadError(UpdateActionByID, logging.Syntaxf("an action list is required"))
	}
	for _, a := range parsed {
		switch a.Name {
		case "id", "phase", "chain":
			return loadError(UpdateActionByID, logging.Semanticf("action %s cannot be updated", a.Name))
		}
	}
	return e.add(&Exception{
		Kind:    UpdateActionByID,
		IDs:     []actions.IDRange{{From: id, To: id}},
		Actions: parsed,
		File:    file,
		Line:    line,
	})
}

func parseTargets(raw string) ([]variables.Variable, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, logging.Syntaxf("a variable list is required")
	}
	return variables.ParseList(raw)
}

func loadError(kind ExceptionKind, err error) error {
	ce := logging.AsCompileError(err)
	out := logging.NewError(ce.Kind, kind.String()+": failed to load: "+ce.Message, ce.Err)
	out.Feature = ce.Feature
	return out
}

func (e *Exceptions) add(ex *Exception) error {
	if e.sealed {
		return ErrPublished
	}
	e.records = append(e.records, ex)
	return nil
}

func (e *Exceptions) seal() {
	e.sealed = true
}

// Records returns every exception in declaration order.
func (e *Exceptions) Records() []*Exception {
	return append([]*Exception(nil), e.records...)
}

func (e *Exceptions) Len() int {
	return len(e.records)
}

// Apply runs every recorded exception against rs in declaration order and
// returns how many rule updates were made. Only chain starters are matched.
// Updates that cannot be applied are skipped and returned together as a
// *logging.CompileErrors.
func (e *Exceptions) Apply(rs *RuleSet) (int, error) {
	if rs.published {
		return 0, ErrPublished
	}
	applied := 0
	diags := &logging.Diagnostics{}
	for _, ex := range e.records {
		for _, r := range ex.targets(rs) {
			ok, err := ex.apply(r)
			if err != nil {
				diags.Add(err.At(ex.File, ex.Line))
				continue
			}
			if ok {
				applied++
			}
		}
	}
	return applied, diags.Err()
}

func (ex *Exception) apply(r *Rule) (bool, *logging.CompileError) {
	switch ex.Kind {
	case RemoveByID, RemoveByTag, RemoveByMsg:
		if r.Removed {
			return false, nil
		}
		r.Removed = true
	case UpdateTargetByID, UpdateTargetByTag, UpdateTargetByMsg:
		if r.Kind != Conditional {
			return false, nil
		}
		merged := variables.Merge(r.Variables, ex.Targets)
		if len(merged) == 0 {
			return false, logging.Semanticf("%s: rule %d has no variables left after the update", ex.Kind, r.ID)
		}
		r.Variables = merged
	case UpdateActionByID:
		transformations, list := actions.Partition(ex.Actions)
		kept := make([]actions.Action, 0, len(list)+3)
		for _, a := range r.Actions {
			switch a.Name {
			case "id", "phase", "chain":
				kept = append(kept, a)
			}
		}
		r.Actions = append(kept, list...)
		if len(transformations) > 0 {
			r.Transformations = transformations
		}
		r.derive()
	}
	return true, nil
}
