// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package reconcile

import (
	"strconv"
	"strings"

	"github.com/canonical/sqltype/internal/typeinfo"
)

// InputText renders the input declaration for params. Named parameters
// keep the type text found in userTypes.
func InputText(params typeinfo.Parameters, userTypes map[string]string) string {
	var sb strings.Builder
	switch {
	case params.Count == 0:
		sb.WriteString("[]")
	case params.Count == len(params.Names):
		writeNamed(&sb, params.Names, userTypes)
	default:
		sb.WriteByte('[')
		for i := 0; i < params.Anonymous(); i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("unknown")
		}
		if len(params.Names) > 0 {
			sb.WriteString(", ")
			writeNamed(&sb, params.Names, userTypes)
		}
		sb.WriteByte(']')
	}
	return sb.String()
}

func writeNamed(sb *strings.Builder, names []string, userTypes map[string]string) {
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		text, ok := userTypes[name]
		if !ok {
			text = "unknown"
		}
		writeMember(sb, name, text)
	}
	sb.WriteByte('}')
}

// ResultText renders the result declaration for columns. Columns of
// unknown kind keep the type text found in userTypes.
func ResultText(columns []typeinfo.Column, userTypes map[string]string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		text := col.Kind.String()
		if col.Kind == typeinfo.Unknown {
			if user, ok := userTypes[col.Name]; ok {
				text = user
			}
		}
		writeMember(&sb, col.Name, text)
	}
	sb.WriteByte('}')
	return sb.String()
}

func writeMember(sb *strings.Builder, key, text string) {
	sb.WriteString(strconv.Quote(key))
	sb.WriteString(": ")
	sb.WriteString(text)
}
