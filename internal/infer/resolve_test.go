// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canonical/sqltype/internal/explain"
	"github.com/canonical/sqltype/internal/placeholder"
	"github.com/canonical/sqltype/internal/typeinfo"
)

func TestRefine(t *testing.T) {
	tests := []struct {
		static   typeinfo.Kind
		proof    explain.Proof
		expected typeinfo.Kind
	}{
		{typeinfo.Number | typeinfo.Null, explain.Proof{Null: explain.AlwaysNull}, typeinfo.Null},
		{typeinfo.Number | typeinfo.Null, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number}, typeinfo.Number},
		{typeinfo.Number | typeinfo.Null, explain.Proof{Null: explain.NullUnknown, Kind: typeinfo.String}, typeinfo.Number | typeinfo.Null},
		{typeinfo.Unknown, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.String}, typeinfo.String},
		{typeinfo.Unknown, explain.Proof{Null: explain.NullUnknown, Kind: typeinfo.String}, typeinfo.String | typeinfo.Null},
		{typeinfo.Unknown, explain.Proof{Null: explain.NeverNull}, typeinfo.Unknown},
		{typeinfo.Unknown, explain.Proof{Null: explain.NullUnknown}, typeinfo.Unknown},
		{typeinfo.Unknown, explain.Proof{Null: explain.AlwaysNull}, typeinfo.Null},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, refine(tt.static, tt.proof), "refine(%v, %+v)", tt.static, tt.proof)
	}
}

func TestAmbiguous(t *testing.T) {
	assert.False(t, ambiguous(nil))
	assert.False(t, ambiguous([]typeinfo.Kind{typeinfo.Number, typeinfo.String}))
	assert.True(t, ambiguous([]typeinfo.Kind{typeinfo.Number, typeinfo.Unknown}))
	assert.True(t, ambiguous([]typeinfo.Kind{typeinfo.Buffer | typeinfo.Null}))
}

func TestDedupe(t *testing.T) {
	cols := dedupe(
		[]string{"id", "name", "id"},
		[]typeinfo.Kind{typeinfo.String | typeinfo.Null, typeinfo.String, typeinfo.Number},
	)
	assert.Equal(t, []typeinfo.Column{
		{Name: "id", Kind: typeinfo.Number},
		{Name: "name", Kind: typeinfo.String},
	}, cols)
}

func TestSentinels(t *testing.T) {
	ps, err := placeholder.Scan("SELECT ?3, :a")
	assert.NoError(t, err)
	s := assignSlots(ps)
	assert.Equal(t, 2, s.parameters().Count)
	args := s.sentinels()
	assert.Len(t, args, 4)
	for i, a := range args {
		assert.Equal(t, i+1, a.Ordinal)
		assert.Nil(t, a.Value)
	}

	assert.Len(t, assignSlots(nil).sentinels(), 0)
}
