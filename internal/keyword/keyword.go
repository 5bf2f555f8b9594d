// Package keyword holds the case-insensitive name registries used by the
// directive, variable, operator and action parsers.
package keyword

import (
	"strings"

	iradix "github.com/hashicorp/go-immutable-radix"
)

type entry[V any] struct {
	name  string
	value V
}

// Table is an immutable, case-insensitive name table.
type Table[V any] struct {
	tree *iradix.Tree
}

// New builds a table. Names are matched case-insensitively, the spelling
// given here is the canonical one.
func New[V any](entries map[string]V) *Table[V] {
	txn := iradix.New().Txn()
	for name, value := range entries {
		txn.Insert(fold(name), entry[V]{name: name, value: value})
	}
	return &Table[V]{tree: txn.Commit()}
}

// With returns a copy of t that also contains name.
func (t *Table[V]) With(name string, value V) *Table[V] {
	tree, _, _ := t.tree.Insert(fold(name), entry[V]{name: name, value: value})
	return &Table[V]{tree: tree}
}

func (t *Table[V]) Lookup(name string) (V, bool) {
	raw, ok := t.tree.Get(fold(name))
	if !ok {
		var zero V
		return zero, false
	}
	return raw.(entry[V]).value, true
}

// Canonical returns the registered spelling of name.
func (t *Table[V]) Canonical(name string) (string, bool) {
	raw, ok := t.tree.Get(fold(name))
	if !ok {
		return "", false
	}
	return raw.(entry[V]).name, true
}

func (t *Table[V]) Len() int {
	return t.tree.Len()
}

// Names lists canonical names in lexical order of their folded form.
func (t *Table[V]) Names() []string {
	names := make([]string, 0, t.tree.Len())
	t.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		names = append(names, v.(entry[V]).name)
		return false
	})
	return names
}

// Suggest returns the closest registered name sharing the longest prefix
// with name, for "did you mean" hints. At least two characters must match.
func (t *Table[V]) Suggest(name string) (string, bool) {
	key := fold(name)
	for n := len(key); n >= 2; n-- {
		var found string
		t.tree.Root().WalkPrefix(key[:n], func(_ []byte, v interface{}) bool {
			found = v.(entry[V]).name
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

func fold(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}
