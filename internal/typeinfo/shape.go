// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

// Column is a projected result column.
type Column struct {
	// Name is the projected (possibly aliased) column name.
	Name string
	Kind Kind
}

// Parameters describes the bind parameters a query expects.
type Parameters struct {
	// Count is the number of distinct bind slots.
	Count int

	// Names holds the distinct parameter names, without prefix, in order of
	// first occurrence. Count >= len(Names).
	Names []string
}

// Anonymous returns the number of slots that are not named.
func (p Parameters) Anonymous() int {
	return p.Count - len(p.Names)
}
