// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package decl parses the type arguments attached to a query preparation call,
such as

	<[unknown, {"id": unknown}], {"id": number, "name": string | null}>

The accepted syntax is the subset of TypeScript type expressions needed to
spell parameter and result shapes: tuples, object literal types, unions,
parentheses, keywords and type references. Anything else that is balanced is
kept as an opaque node. Every node records its byte span in the input so
that a declaration can be edited in place.
*/
package decl
