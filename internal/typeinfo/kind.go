// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"strings"
)

// Kind is a set of runtime value kinds.
type Kind uint8

const (
	Unknown Kind = 1 << iota
	Number
	String
	Buffer
	Null
	Any
)

// kindOrder is the canonical order in which the members of a Kind are
// spelled.
var kindOrder = []struct {
	kind Kind
	name string
}{
	{Unknown, "unknown"},
	{Number, "number"},
	{String, "string"},
	{Buffer, "Buffer"},
	{Null, "null"},
}

// Has reports whether every bit of o is set in k.
func (k Kind) Has(o Kind) bool {
	return o != 0 && k&o == o
}

// Union returns the kinds in k or o.
func (k Kind) Union(o Kind) Kind {
	return k | o
}

// Intersect returns the kinds in both k and o.
func (k Kind) Intersect(o Kind) Kind {
	return k & o
}

// Without returns k with the bits of o cleared.
func (k Kind) Without(o Kind) Kind {
	return k &^ o
}

// Expand replaces Any with the runtime kinds an ANY column can hold.
func (k Kind) Expand() Kind {
	if k&Any != 0 {
		return (k &^ Any) | Number | String | Buffer
	}
	return k
}

// Count returns the number of spelled members of the expanded kind.
func (k Kind) Count() int {
	return len(k.Members())
}

// Single reports whether k spells as exactly one member.
func (k Kind) Single() bool {
	return k.Count() == 1
}

// Members returns the single-bit members of the expanded kind in canonical
// spelling order.
func (k Kind) Members() []Kind {
	e := k.Expand()
	var ms []Kind
	for _, o := range kindOrder {
		if e&o.kind != 0 {
			ms = append(ms, o.kind)
		}
	}
	return ms
}

// String spells the kind as a union type, e.g. "number | null". The zero
// Kind spells as "unknown".
func (k Kind) String() string {
	ms := k.Members()
	if len(ms) == 0 {
		return "unknown"
	}
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.name())
	}
	return strings.Join(names, " | ")
}

func (k Kind) name() string {
	for _, o := range kindOrder {
		if o.kind == k {
			return o.name
		}
	}
	return ""
}

// KindOf returns the single kind a declared type name spells. It returns
// false for names that do not correspond to a kind.
func KindOf(name string) (Kind, bool) {
	for _, o := range kindOrder {
		if o.name == name {
			return o.kind, true
		}
	}
	return 0, false
}
