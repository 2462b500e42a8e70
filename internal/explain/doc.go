// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package explain reasons about the bytecode programs SQLite compiles queries
into, as listed by EXPLAIN.

Origins makes one pass over a program in address order and attributes each
result column to the table column it is read from, if any. Prove executes a
program symbolically, forking at conditional jumps, and reports for each
result column whether it is NULL on every path, on no path, or on some, along
with the kinds of non-null values that were seen.

Neither touches a database: both work from the program and the b-tree column
layout of the schema.
*/
package explain
