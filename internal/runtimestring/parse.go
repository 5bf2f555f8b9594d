package runtimestring

import (
	"strings"

	"github.com/klyr/seclang/internal/logging"
	"github.com/klyr/seclang/internal/variables"
)

// Parse splits text into literal and %{COLLECTION.key} fragments. An
// unterminated "%{" is kept as literal text.
func Parse(text string) (*RunTimeString, error) {
	b := &Builder{}
	rest := text
	for {
		start := strings.Index(rest, "%{")
		if start < 0 {
			b.AppendText(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			b.AppendText(rest)
			break
		}
		end += start

		b.AppendText(rest[:start])
		v, err := parseMacro(rest[start+2 : end])
		if err != nil {
			return nil, err
		}
		b.AppendVar(v)
		rest = rest[end+1:]
	}
	return b.Build(), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) *RunTimeString {
	r, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return r
}

func parseMacro(body string) (variables.Variable, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return variables.Variable{}, logging.Syntaxf("Empty macro %%{}")
	}
	name, key, _ := strings.Cut(body, ".")
	if name2, key2, found := strings.Cut(body, ":"); found && !strings.Contains(name2, ".") {
		name, key = name2, key2
	}
	v, err := variables.New(name, key)
	if err != nil {
		return variables.Variable{}, logging.Syntaxf("Invalid macro %%{%s}: %s", body, logging.AsCompileError(err).Message)
	}
	return v, nil
}
