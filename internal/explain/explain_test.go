// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package explain_test

import (
	"strconv"
	"strings"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqltype/internal/explain"
	"github.com/canonical/sqltype/internal/typeinfo"
)

func TestExplain(t *testing.T) { TestingT(t) }

type explainSuite struct{}

var _ = Suite(&explainSuite{})

// program builds a Program from lines of the form
// "Opcode P1 P2 P3 [P4 [P5]]". A P4 of "-" is empty.
func program(c *C, lines ...string) explain.Program {
	var p explain.Program
	for i, line := range lines {
		f := strings.Fields(line)
		c.Assert(len(f) >= 4, Equals, true, Commentf("line %q", line))
		in := explain.Instruction{Addr: i, Opcode: f[0]}
		in.P1 = atoi(c, f[1])
		in.P2 = atoi(c, f[2])
		in.P3 = atoi(c, f[3])
		if len(f) > 4 && f[4] != "-" {
			in.P4 = f[4]
		}
		if len(f) > 5 {
			in.P5 = atoi(c, f[5])
		}
		p = append(p, in)
	}
	return p
}

func atoi(c *C, s string) int {
	n, err := strconv.Atoi(s)
	c.Assert(err, IsNil)
	return n
}

// fooBlocks is the layout of
//
//	CREATE TABLE foo (id INTEGER PRIMARY KEY, bar INT, baz TEXT NOT NULL)
//	CREATE INDEX foo_bar ON foo (bar)
//	CREATE TABLE qux (id INTEGER, name TEXT)
var fooBlocks = []explain.BlockColumn{
	{DB: 0, RootPage: 2, Column: 0, Table: "foo", Name: "id", DeclType: "INTEGER", NotNull: true, PrimaryKey: 1, RowidAlias: true},
	{DB: 0, RootPage: 2, Column: 1, Table: "foo", Name: "bar", DeclType: "INT"},
	{DB: 0, RootPage: 2, Column: 2, Table: "foo", Name: "baz", DeclType: "TEXT", NotNull: true},
	{DB: 0, RootPage: 3, Column: 0, Table: "foo", Name: "bar", DeclType: "INT", Index: true},
	{DB: 0, RootPage: 3, Column: 1, Table: "foo", Name: "", Index: true},
	{DB: 0, RootPage: 4, Column: 0, Table: "qux", Name: "id", DeclType: "INTEGER"},
	{DB: 0, RootPage: 4, Column: 1, Table: "qux", Name: "name", DeclType: "TEXT"},
}

// SELECT id, bar, baz FROM foo
var selectAll = []string{
	"Init 0 9 0",
	"OpenRead 0 2 0 3",
	"Rewind 0 8 0",
	"Rowid 0 1 0",
	"Column 0 1 2",
	"Column 0 2 3",
	"ResultRow 1 3 0",
	"Next 0 3 0 - 1",
	"Halt 0 0 0",
	"Transaction 0 0 1 0 1",
	"Goto 0 1 0",
}

func (s *explainSuite) TestOriginsTable(c *C) {
	origins := explain.Origins(program(c, selectAll...), fooBlocks, 3)
	c.Assert(origins, HasLen, 3)
	c.Check(*origins[0], Equals, explain.Origin{Schema: "main", Table: "foo", Column: "id"})
	c.Check(*origins[1], Equals, explain.Origin{Schema: "main", Table: "foo", Column: "bar"})
	c.Check(*origins[2], Equals, explain.Origin{Schema: "main", Table: "foo", Column: "baz"})
}

func (s *explainSuite) TestOriginsExpressions(c *C) {
	// SELECT CASE WHEN bar THEN baz ELSE 'x' END, 1, baz FROM foo
	p := program(c,
		"Init 0 12 0",
		"OpenRead 0 2 0 3",
		"Rewind 0 11 0",
		"Column 0 1 4",
		"IfNot 4 7 1",
		"Column 0 2 1",
		"Goto 0 8 0",
		"String8 0 1 0 x",
		"Integer 1 2 0",
		"Column 0 2 3",
		"ResultRow 1 3 0",
		"Halt 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	origins := explain.Origins(p, fooBlocks, 3)
	c.Check(origins[0], IsNil)
	c.Check(origins[1], IsNil)
	c.Check(origins[2], NotNil)
	c.Check(origins[2].Column, Equals, "baz")
}

func (s *explainSuite) TestOriginsIndexAndSorter(c *C) {
	// SELECT bar FROM foo ORDER BY baz, reading bar through a sorter.
	p := program(c,
		"Init 0 19 0",
		"SorterOpen 1 3 0",
		"OpenRead 0 2 0 3",
		"Rewind 0 9 0",
		"Column 0 1 3",
		"Column 0 2 2",
		"MakeRecord 2 2 4",
		"SorterInsert 1 4 0",
		"Next 0 4 0 - 1",
		"OpenPseudo 2 5 2",
		"SorterSort 1 15 0",
		"SorterData 1 5 2",
		"Column 2 1 1",
		"ResultRow 1 1 0",
		"SorterNext 1 11 0",
		"Halt 0 0 0",
		"Noop 0 0 0",
		"Noop 0 0 0",
		"Noop 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	origins := explain.Origins(p, fooBlocks, 1)
	c.Assert(origins[0], NotNil)
	c.Check(*origins[0], Equals, explain.Origin{Schema: "main", Table: "foo", Column: "bar"})

	// The same column read from a covering index.
	p = program(c,
		"Init 0 6 0",
		"OpenRead 1 3 0 k(2,,)",
		"Rewind 1 5 0",
		"Column 1 0 1",
		"ResultRow 1 1 0",
		"Halt 0 0 0",
		"Goto 0 1 0",
	)
	origins = explain.Origins(p, fooBlocks, 1)
	c.Assert(origins[0], NotNil)
	c.Check(origins[0].Column, Equals, "bar")
}

// SELECT qux.name FROM foo LEFT JOIN qux ON qux.id = foo.bar
//
// qux is read through an automatic index, which gets the NullRow.
var leftJoin = []string{
	"Init 0 31 0",
	"OpenRead 2 3 0 k(2,,)",
	"OpenRead 1 4 0 2",
	"Rewind 2 30 1 0",
	"Once 0 15 0",
	"OpenAutoindex 3 3 0 k(3,B,,)",
	"Blob 10000 1 0",
	"Rewind 1 15 0",
	"Column 1 0 3",
	"Column 1 1 4",
	"Rowid 1 5 0",
	"MakeRecord 3 3 2",
	"FilterAdd 1 0 3 1",
	"IdxInsert 3 2 0 - 16",
	"Next 1 8 0 - 3",
	"Integer 0 6 0",
	"Column 2 0 7",
	"IsNull 7 26 0",
	"Affinity 7 1 0 C",
	"Filter 1 26 7 1",
	"SeekGE 3 26 7 1",
	"IdxGT 3 26 7 1",
	"Integer 1 6 0",
	"Column 3 1 8",
	"ResultRow 8 1 0",
	"Next 3 21 0",
	"IfPos 6 29 0",
	"NullRow 3 0 0",
	"Goto 0 22 0",
	"Next 2 4 0 - 1",
	"Halt 0 0 0",
	"Transaction 0 0 3 0 1",
	"Goto 0 1 0",
}

// SELECT foo.baz FROM qux FULL JOIN foo ON qux.id = foo.id + 10
//
// The result row is produced by a subroutine that is entered by falling
// into it for matched rows and by Gosub for unmatched rows of foo.
var fullJoin = []string{
	"Init 0 39 0",
	"OpenRead 0 4 0 1",
	"OpenRead 1 2 0 3",
	"Blob 65536 1 0",
	"Null 0 2 0",
	"OpenEphemeral 2 1 0 k(1,)",
	"Rewind 0 30 0",
	"Integer 0 3 0",
	"Rewind 1 25 0",
	"Column 0 0 4",
	"Rowid 1 6 0",
	"Integer 10 7 0",
	"Add 7 6 5",
	"Ne 5 23 4 BINARY-8 84",
	"Rowid 1 9 0",
	"Found 2 19 9 1",
	"MakeRecord 9 1 8",
	"IdxInsert 2 8 9 1",
	"FilterAdd 1 0 9 1 16",
	"Integer 1 3 0",
	"BeginSubrtn 0 2 0",
	"Column 1 2 10",
	"ResultRow 10 1 0",
	"Return 2 21 1",
	"Next 1 9 0 - 1",
	"Return 2 0 1",
	"IfPos 3 29 0",
	"NullRow 1 0 0",
	"Goto 0 19 0",
	"Next 0 7 0 - 1",
	"NullRow 0 0 0",
	"OpenRead 1 2 0 3",
	"Rewind 1 38 0",
	"Rowid 1 11 0",
	"Filter 1 36 11 1",
	"Found 2 37 11 1",
	"Gosub 2 21 0",
	"Next 1 33 0 - 1",
	"Halt 0 0 0",
	"Transaction 0 0 3 0 1",
	"Goto 0 1 0",
}

func (s *explainSuite) TestOriginsOuterJoin(c *C) {
	origins := explain.Origins(program(c, leftJoin...), fooBlocks, 1)
	c.Assert(origins[0], NotNil)
	c.Check(*origins[0], Equals, explain.Origin{Schema: "main", Table: "qux", Column: "name", Outer: true})
}

func (s *explainSuite) TestOriginsFullJoin(c *C) {
	origins := explain.Origins(program(c, fullJoin...), fooBlocks, 1)
	c.Assert(origins[0], NotNil)
	c.Check(*origins[0], Equals, explain.Origin{Schema: "main", Table: "foo", Column: "baz", Outer: true})
}

func (s *explainSuite) TestProveSelectAll(c *C) {
	proofs, err := explain.Prove(program(c, selectAll...), fooBlocks, 3, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs, DeepEquals, []explain.Proof{
		{Null: explain.NeverNull, Kind: typeinfo.Number},
		{Null: explain.NullUnknown, Kind: typeinfo.Number},
		{Null: explain.NeverNull, Kind: typeinfo.String},
	})
}

func (s *explainSuite) TestProveIsNull(c *C) {
	// SELECT bar FROM foo WHERE bar IS NULL
	p := program(c,
		"Init 0 9 0",
		"OpenRead 0 2 0 2",
		"Rewind 0 8 0",
		"Column 0 1 2",
		"NotNull 2 7 0",
		"Column 0 1 1",
		"ResultRow 1 1 0",
		"Next 0 3 0 - 1",
		"Halt 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0].Null, Equals, explain.AlwaysNull)
	c.Check(proofs[0].Kind, Equals, typeinfo.Kind(0))
}

func (s *explainSuite) TestProveIsNotNull(c *C) {
	// SELECT bar FROM foo WHERE bar IS NOT NULL
	p := program(c,
		"Init 0 9 0",
		"OpenRead 0 2 0 2",
		"Rewind 0 8 0",
		"Column 0 1 2",
		"IsNull 2 7 0",
		"Column 0 1 1",
		"ResultRow 1 1 0",
		"Next 0 3 0 - 1",
		"Halt 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number})
}

func (s *explainSuite) TestProveComparison(c *C) {
	// SELECT bar FROM foo WHERE bar = ?1
	p := program(c,
		"Init 0 9 0",
		"OpenRead 0 2 0 2",
		"Rewind 0 8 0",
		"Column 0 1 2",
		"Ne 3 7 2 BINARY-8 81",
		"Column 0 1 1",
		"ResultRow 1 1 0",
		"Next 0 3 0 - 1",
		"Halt 0 0 0",
		"Transaction 0 0 1 0 1",
		"Variable 1 3 0",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number})

	// With NULLEQ (IS) nothing is learnt.
	p[4].P5 = 0x80
	proofs, err = explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0].Null, Equals, explain.NullUnknown)
}

func (s *explainSuite) TestProveOuterJoin(c *C) {
	proofs, err := explain.Prove(program(c, leftJoin...), fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0].Null, Equals, explain.NullUnknown)
	c.Check(proofs[0].Kind, Equals, typeinfo.String)
}

func (s *explainSuite) TestProveFullJoin(c *C) {
	// baz is NOT NULL, but foo rows without a match in qux are not.
	proofs, err := explain.Prove(program(c, fullJoin...), fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NullUnknown, Kind: typeinfo.String})
}

func (s *explainSuite) TestProveReturnFallsThrough(c *C) {
	// A subroutine body entered without Gosub continues past a Return
	// with P3 set, and ends the path without it.
	p := program(c,
		"Init 0 8 0",
		"Null 0 1 0",
		"BeginSubrtn 0 1 0",
		"Integer 7 2 0",
		"ResultRow 2 1 0",
		"Return 1 3 1",
		"String8 0 2 0 x",
		"ResultRow 2 1 0",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, nil, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number | typeinfo.String})

	p[5].P3 = 0
	proofs, err = explain.Prove(p, nil, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number})
}

func (s *explainSuite) TestProveLiteralsAndFunctions(c *C) {
	// SELECT 1, 'a', NULL, x'00', random(), current_time, count(*) FROM foo
	p := program(c,
		"Init 0 17 0",
		"Null 0 7 0",
		"OpenRead 0 2 0 1",
		"Rewind 0 6 0",
		"AggStep 0 0 7 count(0) 0",
		"Next 0 4 0 - 1",
		"AggFinal 7 0 0 count(0)",
		"Integer 1 1 0",
		"String8 0 2 0 a",
		"Null 0 3 0",
		"Blob 1 4 0 00",
		"Function 0 0 5 random(0)",
		"Function 0 0 6 current_time(0)",
		"Copy 7 8 0",
		"ResultRow 1 8 0",
		"Halt 0 0 0",
		"Noop 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 8, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number})
	c.Check(proofs[1], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.String})
	c.Check(proofs[2], Equals, explain.Proof{Null: explain.AlwaysNull})
	c.Check(proofs[3], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Buffer})
	c.Check(proofs[4], Equals, explain.Proof{Null: explain.NullUnknown})
	c.Check(proofs[5], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.String})
	c.Check(proofs[6], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.Number})
}

func (s *explainSuite) TestProveCoroutine(c *C) {
	// SELECT x FROM (SELECT baz AS x FROM foo), with the subquery as a
	// coroutine.
	p := program(c,
		"Init 0 15 0",
		"InitCoroutine 1 9 2",
		"OpenRead 0 2 0 3",
		"Rewind 0 8 0",
		"Column 0 2 2",
		"Yield 1 0 0",
		"Next 0 4 0 - 1",
		"Noop 0 0 0",
		"EndCoroutine 1 0 0",
		"InitCoroutine 1 0 2",
		"Yield 1 14 0",
		"Copy 2 3 0",
		"ResultRow 3 1 0",
		"Goto 0 10 0",
		"Halt 0 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NeverNull, Kind: typeinfo.String})
}

func (s *explainSuite) TestProveSubroutine(c *C) {
	// A scalar subquery evaluated by a subroutine.
	p := program(c,
		"Init 0 11 0",
		"Gosub 2 5 0",
		"Copy 3 1 0",
		"ResultRow 1 1 0",
		"Halt 0 0 0",
		"Null 0 3 0",
		"OpenRead 1 2 0 3",
		"Rewind 1 10 0",
		"Column 1 2 3",
		"Noop 0 0 0",
		"Return 2 0 0",
		"Transaction 0 0 1 0 1",
		"Goto 0 1 0",
	)
	proofs, err := explain.Prove(p, fooBlocks, 1, explain.Budget{})
	c.Assert(err, IsNil)
	c.Check(proofs[0], Equals, explain.Proof{Null: explain.NullUnknown, Kind: typeinfo.String})
	c.Check(explain.Origins(p, fooBlocks, 1)[0], IsNil)
}

func (s *explainSuite) TestProveNoInformation(c *C) {
	// INSERT INTO qux VALUES (1, 'a')
	p := program(c,
		"Init 0 6 0",
		"OpenWrite 0 4 0 2",
		"Integer 1 2 0",
		"String8 0 3 0 a",
		"MakeRecord 2 2 4",
		"Halt 0 0 0",
		"Transaction 0 1 1 0 1",
		"Goto 0 1 0",
	)
	_, err := explain.Prove(p, fooBlocks, 0, explain.Budget{})
	c.Check(err, Equals, explain.ErrNoInformation)

	_, err = explain.Prove(program(c, selectAll...), fooBlocks, 3, explain.Budget{MaxSteps: 3})
	c.Check(err, Equals, explain.ErrNoInformation)
}

func (s *explainSuite) TestProveBranchBudget(c *C) {
	// Every conditional doubles the number of paths.
	lines := []string{"Init 0 1 0"}
	for i := 0; i < 12; i++ {
		lines = append(lines, "Variable 1 1 0", "If 1 "+strconv.Itoa(len(lines)+3)+" 0", "Integer 1 2 0")
	}
	lines = append(lines, "ResultRow 2 1 0", "Halt 0 0 0")
	_, err := explain.Prove(program(c, lines...), nil, 1, explain.Budget{MaxBranches: 16})
	c.Check(err, Equals, explain.ErrNoInformation)
}
