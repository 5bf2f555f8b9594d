package rules

import (
	"github.com/klyr/seclang/internal/actions"
	"github.com/klyr/seclang/internal/logging"
)

// DefaultActionPhase is used by SecDefaultAction lists without a phase.
const DefaultActionPhase = 1

// SetDefaultActions validates a SecDefaultAction list and stores it for its
// phase. Each phase accepts one list, and the list must carry a disruptive
// action other than block.
func (rs *RuleSet) SetDefaultActions(list []actions.Action) error {
	if rs.published {
		return ErrPublished
	}

	var (
		checked       []actions.Action
		hasDisruptive bool
		phase         int64 = -1
	)
	for _, a := range list {
		if a.Kind == actions.Disruptive && a.Name != "block" {
			hasDisruptive = true
		}
		switch {
		case a.Name == "phase":
			phase = a.Number
		case a.Stage == actions.OnlyIfMatch || a.Stage == actions.BeforeMatch:
			if a.IsNone() {
				return logging.Semanticf("The transformation none is not suitable to be part of the SecDefaultActions")
			}
			checked = append(checked, a)
		default:
			return logging.Semanticf("The action '%s' is not suitable to be part of the SecDefaultActions", a.Name)
		}
	}
	if phase == -1 {
		phase = DefaultActionPhase
	}

	if !hasDisruptive {
		return logging.Semanticf("SecDefaultAction must specify a disruptive action.")
	}
	if len(rs.defaults[phase]) > 0 {
		return logging.Semanticf("SecDefaultActions can only be placed once per phase and configuration context. Phase %d was informed already.", phase)
	}
	rs.defaults[phase] = checked
	return nil
}

// DefaultActions returns the default list of phase, transformations included.
func (rs *RuleSet) DefaultActions(phase int64) []actions.Action {
	return append([]actions.Action(nil), rs.defaults[phase]...)
}

// DefaultPhases lists the phases that have a default action list.
func (rs *RuleSet) DefaultPhases() []int64 {
	return sortedPhases(rs.defaults)
}

// EffectiveActions is what the engine runs for r: the phase defaults
// followed by r's own actions. A disruptive action on r replaces the
// default one.
func (rs *RuleSet) EffectiveActions(r *Rule) []actions.Action {
	_, ownDisruptive := r.Disruptive()
	var out []actions.Action
	for _, a := range rs.defaults[r.Phase] {
		if a.Kind == actions.Transformation {
			continue
		}
		if ownDisruptive && a.Kind == actions.Disruptive {
			continue
		}
		out = append(out, a)
	}
	return append(out, r.Actions...)
}

// EffectiveTransformations prefixes r's pipeline with the phase defaults.
// t:none discards everything before it.
func (rs *RuleSet) EffectiveTransformations(r *Rule) []actions.Action {
	var out []actions.Action
	for _, a := range rs.defaults[r.Phase] {
		if a.Kind == actions.Transformation {
			out = append(out, a)
		}
	}
	out = append(out, r.Transformations...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].IsNone() {
			return append([]actions.Action(nil), out[i+1:]...)
		}
	}
	return out
}
