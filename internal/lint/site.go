// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package lint

import (
	"fmt"
)

// CallSite is a query preparation call in host source code.
type CallSite interface {
	// Filename is the source file containing the call.
	Filename() string
	// Database is the logical name of the database the call is made on.
	Database() string
	// StaticQueryText returns the query text. It returns false when the
	// query is not a compile-time constant.
	StaticQueryText() (string, bool)
	// ExistingDeclaration returns the type argument list written at the
	// call, including angle brackets. It is blank when there is none.
	ExistingDeclaration() string
	// EmitFix applies an edit to the type argument list.
	EmitFix(e Edit) error
}

// Unit is a source file with query preparation calls.
type Unit interface {
	Filename() string
	CallSites() []CallSite
}

// Edit replaces the bytes [Start, End) of a type argument list with Text.
type Edit struct {
	Start int
	End   int
	Text  string
}

// Apply returns text with the edit applied.
func (e Edit) Apply(text string) (string, error) {
	if e.Start < 0 || e.End < e.Start || e.End > len(text) {
		return "", fmt.Errorf("edit [%d, %d) out of range for %q", e.Start, e.End, text)
	}
	return text[:e.Start] + e.Text + text[e.End:], nil
}

// TextCallSite is a CallSite over plain text.
type TextCallSite struct {
	File string
	DB   string
	// Query is the query text. NonStatic marks it as not known at compile
	// time.
	Query     string
	NonStatic bool
	// TypeArgs is the type argument list, updated by EmitFix.
	TypeArgs string
}

var _ CallSite = (*TextCallSite)(nil)

func (s *TextCallSite) Filename() string {
	return s.File
}

func (s *TextCallSite) Database() string {
	return s.DB
}

func (s *TextCallSite) StaticQueryText() (string, bool) {
	return s.Query, !s.NonStatic
}

func (s *TextCallSite) ExistingDeclaration() string {
	return s.TypeArgs
}

func (s *TextCallSite) EmitFix(e Edit) error {
	text, err := e.Apply(s.TypeArgs)
	if err != nil {
		return err
	}
	s.TypeArgs = text
	return nil
}

// TextUnit is a Unit made of TextCallSites.
type TextUnit struct {
	File  string
	Sites []*TextCallSite
}

var _ Unit = (*TextUnit)(nil)

func (u *TextUnit) Filename() string {
	return u.File
}

func (u *TextUnit) CallSites() []CallSite {
	sites := make([]CallSite, len(u.Sites))
	for i, s := range u.Sites {
		sites[i] = s
	}
	return sites
}
