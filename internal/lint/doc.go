// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

/*
Package lint checks query preparation call sites.

A call site is seen through the CallSite interface: the static text of its
query, the type argument list written at the call, and the database it is
made on. Rules inspect a call site and report diagnostics. A diagnostic may
carry an Edit on the type argument list that makes the call site correct;
Fix applies edits one at a time and re-checks the call site until no rule
has anything left to fix.
*/
package lint
