// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package sqltype checks the type arguments of SQLite query preparation calls
against the queries they prepare.

A call such as

	db.prepare<[unknown], {"id": number, "name": string | null}>(
		"SELECT id, name FROM users WHERE id = ?")

declares the shape of the query's bind parameters in its first type
argument and the shape of the rows it returns in the second. sqltype infers
both shapes from the query text and the schema of the database the call is
made on, compares them with the declaration, and computes the type argument
list that matches.

# Parameters

Every distinct bind slot is a parameter. Anonymous and numbered slots ("?",
"?2") are declared as a tuple of unknown, named slots (":id", "@id", "$id")
as an object keyed by name without prefix, and a mix of both as a tuple
ending with that object:

	[]                          no parameters
	[unknown, unknown]          SELECT ?, ?
	{"id": unknown}             SELECT :id
	[unknown, {"id": unknown}]  SELECT ?, :id

Member types of named parameters are never checked, so they may be refined
by hand.

# Result columns

Each result column is declared as an object member named after the column.
Its type is derived from the declared type of the table column it reads,
following SQLite's affinity rules:

	INTEGER, INT, BIGINT, ...   number
	TEXT, VARCHAR, CLOB, ...    string
	BLOB or no type             Buffer
	REAL, FLOAT, DOUBLE, ...    number
	ANY in a STRICT table       number | string | Buffer

A column that may be NULL adds "| null". Columns computed by expressions
are unknown, and whatever type is declared for them is kept. When the
schema alone leaves a column nullable or unknown, the compiled program of
the query is executed symbolically to find whether the value can actually
be NULL, so that a "WHERE name IS NOT NULL" filter makes name non-null.

# Databases

An Analyzer resolves the database of each call site through a
DatabaseResolver, which returns either an open handle or the path of a
database file. Files are opened read-only and shared by every call site
that resolves to them.
*/
package sqltype
