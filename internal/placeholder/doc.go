// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package placeholder finds the bind parameter placeholders in the first
// statement of a SQLite query. It understands just enough of SQLite's lexical
// grammar (string literals, quoted identifiers and comments) to not mistake
// text inside them for placeholders.
package placeholder
