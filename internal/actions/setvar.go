package actions

import (
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/runtimestring"
)

type SetVarOp int

const (
	SetVarSet SetVarOp = iota
	SetVarSetToOne
	SetVarUnset
	SetVarSum
	SetVarSubtract
)

func (op SetVarOp) String() string {
	switch op {
	case SetVarSetToOne:
		return "setToOne"
	case SetVarUnset:
		return "unset"
	case SetVarSum:
		return "sum"
	case SetVarSubtract:
		return "subtract"
	default:
		return "set"
	}
}

func (op SetVarOp) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// SetVar is a parsed setvar argument, e.g. tx.score=+%{tx.critical_score}.
type SetVar struct {
	Op         SetVarOp                     `json:"op" yaml:"op"`
	Collection string                       `json:"collection" yaml:"collection"`
	Key        *runtimestring.RunTimeString `json:"key" yaml:"key"`
	Value      *runtimestring.RunTimeString `json:"value,omitempty" yaml:"value,omitempty"`
}

var persistentCollections = map[string]bool{
	"TX": true, "IP": true, "SESSION": true, "USER": true, "GLOBAL": true, "RESOURCE": true,
}

func parseSetVar(raw string) (*SetVar, error) {
	sv := &SetVar{Op: SetVarSet}
	expr := strings.TrimSpace(raw)
	if strings.HasPrefix(expr, "!") {
		sv.Op = SetVarUnset
		expr = expr[1:]
	}

	target, value, assigned := strings.Cut(expr, "=")
	switch {
	case assigned && sv.Op == SetVarUnset:
		return nil, logging.Syntaxf("setvar: cannot assign while unsetting %s", raw)
	case !assigned && sv.Op != SetVarUnset:
		sv.Op = SetVarSetToOne
	case strings.HasPrefix(value, "+"):
		sv.Op = SetVarSum
		value = value[1:]
	case strings.HasPrefix(value, "-"):
		sv.Op = SetVarSubtract
		value = value[1:]
	}

	collection, key, found := strings.Cut(strings.TrimSpace(target), ".")
	collection = strings.ToUpper(collection)
	if !found || key == "" {
		return nil, logging.Syntaxf("setvar: variable name must be collection.key: %s", raw)
	}
	if !persistentCollections[collection] {
		return nil, logging.Syntaxf("setvar: cannot write to collection %s", collection)
	}
	sv.Collection = collection

	var err error
	if sv.Key, err = runtimestring.Parse(key); err != nil {
		return nil, err
	}
	if sv.Op == SetVarSet || sv.Op == SetVarSum || sv.Op == SetVarSubtract {
		if sv.Value, err = runtimestring.Parse(value); err != nil {
			return nil, err
		}
	}
	return sv, nil
}
