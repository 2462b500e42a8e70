// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reconcile

import (
	"github.com/canonical/sqltype/internal/decl"
	"github.com/canonical/sqltype/internal/typeinfo"
)

// Status is the outcome of comparing a shape with a declaration.
type Status int

const (
	Valid Status = iota
	Missing
	Incorrect
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "valid"
	case Missing:
		return "missing"
	case Incorrect:
		return "incorrect"
	}
	return "invalid status"
}

// Verdict is the result of reconciling a shape with a declaration.
type Verdict struct {
	Status Status
	// Replacement is the declaration text matching the inferred shape. It
	// is empty when the declaration is valid.
	Replacement string
}

// Input reconciles the parameters of a query with the declared input
// type. A nil declaration is missing.
func Input(params typeinfo.Parameters, t *decl.Type) Verdict {
	if t == nil {
		return Verdict{Status: Missing, Replacement: InputText(params, nil)}
	}
	if InputValid(params, t) {
		return Verdict{Status: Valid}
	}
	return Verdict{Status: Incorrect, Replacement: InputText(params, UserTypes(t))}
}

// Result reconciles the columns of a query with the declared result type.
// A nil declaration is missing.
func Result(columns []typeinfo.Column, t *decl.Type) Verdict {
	if t == nil {
		return Verdict{Status: Missing, Replacement: ResultText(columns, nil)}
	}
	if ResultValid(columns, t) {
		return Verdict{Status: Valid}
	}
	return Verdict{Status: Incorrect, Replacement: ResultText(columns, UserTypes(t))}
}

// InputValid reports whether t declares the given parameters.
func InputValid(params typeinfo.Parameters, t *decl.Type) bool {
	t = t.Unparen()
	switch {
	case params.Count == 0:
		return t.Kind == decl.Tuple && len(t.Elems) == 0
	case params.Count == len(params.Names):
		return hasKeys(t, params.Names)
	}
	if t.Kind != decl.Tuple {
		return false
	}
	anonymous := params.Anonymous()
	slots := anonymous
	if len(params.Names) > 0 {
		slots++
	}
	if len(t.Elems) != slots {
		return false
	}
	for _, e := range t.Elems[:anonymous] {
		if !e.Is("unknown") {
			return false
		}
	}
	return len(params.Names) == 0 || hasKeys(t.Elems[anonymous], params.Names)
}

// hasKeys reports whether t is an object type whose members are exactly
// properties named keys.
func hasKeys(t *decl.Type, keys []string) bool {
	t = t.Unparen()
	if t.Kind != decl.Object || len(t.Members) != len(keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := t.Property(k); !ok {
			return false
		}
	}
	return true
}

// ResultValid reports whether t declares the given columns.
func ResultValid(columns []typeinfo.Column, t *decl.Type) bool {
	t = t.Unparen()
	if t.Kind != decl.Object || len(t.Members) != len(columns) {
		return false
	}
	for _, col := range columns {
		m, ok := t.Property(col.Name)
		if !ok || m.Type == nil {
			return false
		}
		if col.Kind == typeinfo.Unknown {
			continue
		}
		if !matches(m.Type, col.Kind) {
			return false
		}
	}
	return true
}

// matches reports whether t spells exactly the members of k. A kind with a
// single member must be declared as that type alone, and a kind with
// several as a union of them.
func matches(t *decl.Type, k typeinfo.Kind) bool {
	want := k.Expand() &^ typeinfo.Any
	if want == 0 {
		want = typeinfo.Unknown
	}
	t = t.Unparen()
	if want.Single() {
		got, ok := spelled(t)
		return ok && got == want
	}
	if t.Kind != decl.Union {
		return false
	}
	var got typeinfo.Kind
	for _, e := range flatten(t) {
		s, ok := spelled(e)
		if !ok || want&s == 0 {
			return false
		}
		got |= s
	}
	return got == want
}

// flatten returns the members of a union, looking through parenthesised
// unions.
func flatten(t *decl.Type) []*decl.Type {
	var out []*decl.Type
	for _, e := range t.Elems {
		e = e.Unparen()
		if e.Kind == decl.Union {
			out = append(out, flatten(e)...)
			continue
		}
		out = append(out, e)
	}
	return out
}

// spelled returns the kind named by a keyword or type reference.
func spelled(t *decl.Type) (typeinfo.Kind, bool) {
	if (t.Kind != decl.Keyword && t.Kind != decl.Reference) || len(t.Elems) != 0 {
		return 0, false
	}
	return typeinfo.KindOf(t.Name)
}

// UserTypes returns the declared type text of every annotated property of
// an object type, or of the object type in the last slot of a tuple.
func UserTypes(t *decl.Type) map[string]string {
	t = t.Unparen()
	if t == nil {
		return nil
	}
	if t.Kind == decl.Tuple {
		for i := len(t.Elems) - 1; i >= 0; i-- {
			if e := t.Elems[i].Unparen(); e.Kind == decl.Object {
				t = e
				break
			}
		}
	}
	if t.Kind != decl.Object {
		return nil
	}
	types := make(map[string]string)
	for _, m := range t.Members {
		if m.Method || m.Type == nil {
			continue
		}
		if _, ok := types[m.Key]; !ok {
			types[m.Key] = m.Type.Text
		}
	}
	return types
}
