// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package decl

import (
	"fmt"
	"strings"
)

// Span is a half-open byte range of the input.
type Span struct {
	Start int
	End   int
}

// NodeKind identifies the syntax of a Type.
type NodeKind int

const (
	Keyword NodeKind = iota
	Reference
	Tuple
	Object
	Union
	Paren
	Literal
	Array
	Opaque
)

var nodeKindNames = []string{"Keyword", "Reference", "Tuple", "Object", "Union", "Paren", "Literal", "Array", "Opaque"}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Invalid"
}

// Type is a node of a type expression.
type Type struct {
	Kind NodeKind
	Span Span
	// Text is the input covered by Span.
	Text string
	// Name is the keyword or the referenced type name.
	Name string
	// Elems holds tuple elements, union members, the inner type of a
	// parenthesised type and the element type of an array.
	Elems   []*Type
	Members []*Member
}

// Member is a member of an object literal type.
type Member struct {
	// Key is the member name with quotes removed.
	Key  string
	Span Span
	// Type is the annotation of a property. It is nil when the member has
	// none.
	Type     *Type
	Optional bool
	// Method is true for method signatures such as "random(): number".
	Method bool
}

// Unparen strips any parentheses around t.
func (t *Type) Unparen() *Type {
	for t != nil && t.Kind == Paren {
		t = t.Elems[0]
	}
	return t
}

// Is reports whether t, without parentheses, is the keyword or reference
// name.
func (t *Type) Is(name string) bool {
	u := t.Unparen()
	return u != nil && (u.Kind == Keyword || u.Kind == Reference) && u.Name == name
}

// Property returns the property member with the given key.
func (t *Type) Property(key string) (*Member, bool) {
	for _, m := range t.Members {
		if !m.Method && m.Key == key {
			return m, true
		}
	}
	return nil, false
}

// String describes the structure of t. It is meant for tests and debugging.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Keyword, Reference, Literal, Opaque:
		return fmt.Sprintf("%s[%s]", t.Kind, t.Text)
	case Object:
		ms := make([]string, len(t.Members))
		for i, m := range t.Members {
			ms[i] = m.String()
		}
		return fmt.Sprintf("Object[%s]", strings.Join(ms, " "))
	}
	es := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		es[i] = e.String()
	}
	return fmt.Sprintf("%s[%s]", t.Kind, strings.Join(es, " "))
}

func (m *Member) String() string {
	s := m.Key
	if m.Method {
		s += "()"
	}
	if m.Optional {
		s += "?"
	}
	if m.Type != nil {
		s += ":" + m.Type.String()
	}
	return s
}

// TypeArgs is a type argument list.
type TypeArgs struct {
	// Span covers the angle brackets.
	Span Span
	Args []*Type
}
