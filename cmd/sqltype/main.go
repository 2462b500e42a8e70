// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import "github.com/canonical/sqltype/cmd/sqltype/cmd"

func main() {
	cmd.Execute()
}
