// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package schema gives read-only access to a SQLite database for the purposes
of type inference. A Handle compiles queries without running them, exposing
the projected column names, the number of bind slots and the bytecode program
of the statement, and answers questions about the declared type and
nullability of table columns.

Table metadata is loaded on first use and cached on the Handle for its
lifetime. The schema is assumed not to change while a Handle is open.
*/
package schema
