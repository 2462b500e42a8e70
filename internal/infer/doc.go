// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package infer derives the shape of a SQLite query: how many bind parameters
it takes and under which names, and the name and kind of every column it
returns.

Columns are resolved in stages. The query is compiled against the schema,
each result column is attributed to a table column where possible and given
that column's affinity and nullability, and if any column is left unknown or
nullable the compiled program is executed symbolically to narrow it down.
*/
package infer
