// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltype

import (
	"github.com/canonical/sqltype/internal/schema"
)

var DatabasePath = databasePath

// Cache returns the handles cached by request and by path.
func (dc *DatabaseCache) Cache() (map[Request]*schema.Handle, map[string]*schema.Handle) {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	return dc.byRequest, dc.byPath
}
