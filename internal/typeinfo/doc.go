// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package typeinfo contains the value model shared by the inference and
reconciliation stages: the Kind bitset describing which runtime values a
column may hold, the shapes inferred for a query's parameters and columns,
and the mapping from SQLite declared types to kinds.

A Kind is a set. Unknown means nothing could be proven, Null means the
column may be NULL and Any stands for a STRICT table's ANY column, which
expands to every non-null runtime kind when it is spelled or counted.
*/
package typeinfo
