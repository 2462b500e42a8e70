// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package reconcile compares inferred parameter and column shapes with the
// type arguments declared at a call site, and renders the declaration text
// that matches an inferred shape.
package reconcile
