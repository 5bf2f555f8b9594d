// Package runtimestring models strings whose %{VAR} macros are expanded
// when a rule fires.
package runtimestring

import (
	"encoding/json"
	"strings"

	"github.com/klyr/seclang/internal/variables"
)

// Fragment is either literal text or a variable reference.
type Fragment struct {
	Literal string              `json:"literal,omitempty"`
	Var     *variables.Variable `json:"var,omitempty"`
}

func (f Fragment) IsVar() bool {
	return f.Var != nil
}

// RunTimeString is immutable once built.
type RunTimeString struct {
	fragments []Fragment
}

// Builder accumulates fragments left to right. Adjacent literals merge.
type Builder struct {
	fragments []Fragment
}

func NewText(text string) *Builder {
	return (&Builder{}).AppendText(text)
}

func NewVar(v variables.Variable) *Builder {
	return (&Builder{}).AppendVar(v)
}

func (b *Builder) AppendText(text string) *Builder {
	if text == "" {
		return b
	}
	if n := len(b.fragments); n > 0 && !b.fragments[n-1].IsVar() {
		b.fragments[n-1].Literal += text
		return b
	}
	b.fragments = append(b.fragments, Fragment{Literal: text})
	return b
}

func (b *Builder) AppendVar(v variables.Variable) *Builder {
	owned := v
	b.fragments = append(b.fragments, Fragment{Var: &owned})
	return b
}

// Build hands the fragments to the returned string and resets b.
func (b *Builder) Build() *RunTimeString {
	out := &RunTimeString{fragments: b.fragments}
	b.fragments = nil
	return out
}

func (r *RunTimeString) Fragments() []Fragment {
	if r == nil {
		return nil
	}
	return append([]Fragment(nil), r.fragments...)
}

// HasMacros reports whether any fragment needs expansion.
func (r *RunTimeString) HasMacros() bool {
	if r == nil {
		return false
	}
	for _, f := range r.fragments {
		if f.IsVar() {
			return true
		}
	}
	return false
}

// Literal returns the text when r holds no macros.
func (r *RunTimeString) Literal() (string, bool) {
	if r.HasMacros() {
		return "", false
	}
	return r.String(), true
}

// String re-serializes r in macro syntax.
func (r *RunTimeString) String() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, f := range r.fragments {
		if !f.IsVar() {
			b.WriteString(f.Literal)
			continue
		}
		b.WriteString("%{")
		b.WriteString(f.Var.Collection)
		if f.Var.Key != "" {
			b.WriteByte('.')
			b.WriteString(f.Var.Key)
		}
		b.WriteByte('}')
	}
	return b.String()
}

func (r *RunTimeString) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RunTimeString) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}
