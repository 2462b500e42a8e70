// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typeinfo

import (
	"strings"
)

// Affinity returns the kind of values SQLite stores in a column with the
// given declared type. The rules follow SQLite's type affinity substring
// rules, checked in order. strict reports whether the table is a STRICT
// table; only there does ANY keep every kind.
func Affinity(declType string, strict bool) Kind {
	t := strings.ToUpper(strings.TrimSpace(declType))
	switch {
	case strings.Contains(t, "INT"):
		return Number
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return String
	case strings.Contains(t, "BLOB"), t == "":
		return Buffer
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return Number
	case t == "ANY" && strict:
		return Any
	}
	// NUMERIC affinity, and ANY outside STRICT tables.
	return Number
}

// ColumnKind returns the static kind of a column from its affinity and
// whether it is effectively NOT NULL.
func ColumnKind(affinity Kind, notNull bool) Kind {
	if notNull {
		return affinity
	}
	return affinity | Null
}
