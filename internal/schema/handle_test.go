// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package schema

import (
	"database/sql/driver"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/a.db?mode=ro", dsn("/tmp/a.db"))
	assert.Equal(t, "file:/tmp/a%3fb%23c%25.db?mode=ro", dsn("/tmp/a?b#c%.db"))
}

func TestFitArgs(t *testing.T) {
	args := fitArgs(nil, 2)
	assert.Equal(t, []driver.NamedValue{{Ordinal: 1}, {Ordinal: 2}}, args)

	args = fitArgs([]driver.NamedValue{{Ordinal: 1, Value: int64(7)}, {Ordinal: 3}}, 2)
	assert.Equal(t, []driver.NamedValue{{Ordinal: 1, Value: int64(7)}, {Ordinal: 2}}, args)

	args = fitArgs([]driver.NamedValue{{Name: "id"}}, 1)
	assert.Equal(t, []driver.NamedValue{{Name: "id"}, {Ordinal: 1}}, args)
}

func TestAsInt(t *testing.T) {
	assert.Equal(t, int64(3), asInt(int64(3)))
	assert.Equal(t, int64(12), asInt("12"))
	assert.Equal(t, int64(0), asInt(nil))
	assert.Equal(t, "", asString(nil))
	assert.Equal(t, "k(1,B)", asString([]byte("k(1,B)")))
	assert.Equal(t, "-5", asString(int64(-5)))
}
