// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package explain

import (
	"fmt"
	"strings"
)

// Instruction is one row of the output of EXPLAIN.
type Instruction struct {
	Addr   int
	Opcode string
	P1     int
	P2     int
	P3     int
	P4     string
	P5     int
}

func (in Instruction) String() string {
	return fmt.Sprintf("%d %s %d %d %d %q %d", in.Addr, in.Opcode, in.P1, in.P2, in.P3, in.P4, in.P5)
}

// Program is a compiled statement's bytecode, indexed by address.
type Program []Instruction

func (p Program) String() string {
	var b strings.Builder
	for _, in := range p {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// BlockColumn describes one column of a table or index b-tree, as seen by
// the cursors of a program.
type BlockColumn struct {
	// DB is the schema number, 0 for main and 1 for temp.
	DB       int
	RootPage int
	// Column is the column number within the b-tree record.
	Column int
	Table  string
	// Name is the table column name. It is empty for index columns that do
	// not refer to a table column, such as the rowid or an expression.
	Name       string
	DeclType   string
	NotNull    bool
	PrimaryKey int
	Index      bool
	Strict     bool
	// WithoutRowid and PrimaryKeyIndex describe the table of the column.
	WithoutRowid    bool
	PrimaryKeyIndex bool
	// RowidAlias is set on the INTEGER PRIMARY KEY column of a rowid
	// table, whose value is the rowid.
	RowidAlias bool
}

type blockKey struct {
	db, rootPage int
}

// blocks indexes block columns by b-tree.
type blocks map[blockKey][]BlockColumn

func indexBlocks(cols []BlockColumn) blocks {
	bs := blocks{}
	for _, c := range cols {
		k := blockKey{c.DB, c.RootPage}
		bs[k] = append(bs[k], c)
	}
	return bs
}

func (bs blocks) column(db, rootPage, col int) (BlockColumn, bool) {
	for _, c := range bs[blockKey{db, rootPage}] {
		if c.Column == col {
			return c, true
		}
	}
	return BlockColumn{}, false
}

// rowidAlias returns the INTEGER PRIMARY KEY column of a rowid table.
func (bs blocks) rowidAlias(db, rootPage int) (BlockColumn, bool) {
	for _, c := range bs[blockKey{db, rootPage}] {
		if c.RowidAlias {
			return c, true
		}
	}
	return BlockColumn{}, false
}
