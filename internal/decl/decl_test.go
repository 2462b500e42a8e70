// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package decl_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqltype/internal/decl"
)

// Hook up gocheck into the "go test" runner.
func TestDecl(t *testing.T) { TestingT(t) }

type DeclSuite struct{}

var _ = Suite(&DeclSuite{})

var parseTests = []struct {
	summary  string
	input    string
	expected []string
}{{
	"empty tuple and object",
	"<[], {}>",
	[]string{"Tuple[]", "Object[]"},
}, {
	"mixed parameters and nullable result",
	`<[unknown, {"id": unknown}], {"id": number, "name": string | null}>`,
	[]string{
		"Tuple[Keyword[unknown] Object[id:Keyword[unknown]]]",
		"Object[id:Keyword[number] name:Union[Keyword[string] Keyword[null]]]",
	},
}, {
	"semicolons quotes and optional members",
	"<{a: number; 'b'?: Buffer}>",
	[]string{"Object[a:Keyword[number] b?:Reference[Buffer]]"},
}, {
	"method signature and parentheses",
	"<{random(): number, x: (string | null)}>",
	[]string{"Object[random():Keyword[number] x:Paren[Union[Keyword[string] Keyword[null]]]]"},
}, {
	"generic reference and array",
	"<Array<number>, string[]>",
	[]string{"Reference[Array<number>]", "Array[Keyword[string]]"},
}, {
	"function type",
	"<(x: number) => string>",
	[]string{"Opaque[(x: number) => string]"},
}, {
	"literals",
	`<"a" | 1 | true>`,
	[]string{`Union[Literal["a"] Literal[1] Literal[true]]`},
}, {
	"intersection",
	"<A & B>",
	[]string{"Opaque[A & B]"},
}, {
	"comments and trailing comma",
	"<\n  // none\n  [],\n>",
	[]string{"Tuple[]"},
}, {
	"members without annotation",
	"<{a, b}>",
	[]string{"Object[a b]"},
}, {
	"readonly modifier and key",
	"<{readonly a: number, readonly: string}>",
	[]string{"Object[a:Keyword[number] readonly:Keyword[string]]"},
}, {
	"escaped key",
	`<{"a\"b": null}>`,
	[]string{`Object[a"b:Keyword[null]]`},
}, {
	"qualified reference",
	"<Types.Row>",
	[]string{"Reference[Types.Row]"},
}}

func (s *DeclSuite) TestParseTypeArguments(c *C) {
	for i, t := range parseTests {
		ta, err := decl.ParseTypeArguments(t.input)
		c.Assert(err, IsNil, Commentf("test %d: %s", i, t.summary))
		c.Assert(ta, NotNil, Commentf("test %d: %s", i, t.summary))
		args := make([]string, len(ta.Args))
		for j, a := range ta.Args {
			args[j] = a.String()
		}
		c.Check(args, DeepEquals, t.expected, Commentf("test %d: %s", i, t.summary))
	}
}

func (s *DeclSuite) TestAbsentAndEmpty(c *C) {
	ta, err := decl.ParseTypeArguments("  ")
	c.Assert(err, IsNil)
	c.Check(ta, IsNil)

	ta, err = decl.ParseTypeArguments("  <>")
	c.Assert(err, IsNil)
	c.Assert(ta, NotNil)
	c.Check(ta.Args, HasLen, 0)
	c.Check(ta.Span, Equals, decl.Span{Start: 2, End: 4})
}

func (s *DeclSuite) TestSpans(c *C) {
	input := `<[], {"id": number}>`
	ta, err := decl.ParseTypeArguments(input)
	c.Assert(err, IsNil)
	c.Check(ta.Span, Equals, decl.Span{Start: 0, End: 20})
	c.Assert(ta.Args, HasLen, 2)
	c.Check(ta.Args[0].Span, Equals, decl.Span{Start: 1, End: 3})
	c.Check(ta.Args[1].Span, Equals, decl.Span{Start: 5, End: 19})
	c.Check(ta.Args[1].Text, Equals, `{"id": number}`)

	m, ok := ta.Args[1].Property("id")
	c.Assert(ok, Equals, true)
	c.Check(m.Span, Equals, decl.Span{Start: 6, End: 18})
	c.Check(m.Type.Span, Equals, decl.Span{Start: 12, End: 18})
	c.Check(input[m.Type.Span.Start:m.Type.Span.End], Equals, "number")
}

var errorTests = []struct {
	input string
	err   string
}{{
	input: "[]",
	err:   `cannot parse type arguments: column 1: expected "<"`,
}, {
	input: "<[number>",
	err:   `cannot parse type arguments: column 9: expected "," or "]"`,
}, {
	input: `<{"id: number}>`,
	err:   "cannot parse type arguments: column 3: missing closing quote in string literal",
}, {
	input: "<number> x",
	err:   "cannot parse type arguments: column 10: unexpected text after type arguments",
}, {
	input: "<number",
	err:   `cannot parse type arguments: column 8: expected "," or ">"`,
}, {
	input: "<{a: }>",
	err:   `cannot parse type arguments: column 6: unexpected '}'`,
}, {
	input: "<[\n  number\n  string]>",
	err:   `cannot parse type arguments: line 3, column 3: expected "," or "]"`,
}}

func (s *DeclSuite) TestParseErrors(c *C) {
	for i, t := range errorTests {
		_, err := decl.ParseTypeArguments(t.input)
		c.Assert(err, NotNil, Commentf("test %d: %q", i, t.input))
		c.Check(err.Error(), Equals, t.err, Commentf("test %d: %q", i, t.input))
	}
}

func (s *DeclSuite) TestParseType(c *C) {
	t, err := decl.ParseType("((string)) | null")
	c.Assert(err, IsNil)
	c.Assert(t.Kind, Equals, decl.Union)
	c.Assert(t.Elems, HasLen, 2)
	c.Check(t.Elems[0].Kind, Equals, decl.Paren)
	c.Check(t.Elems[0].Is("string"), Equals, true)
	c.Check(t.Elems[0].Unparen().Kind, Equals, decl.Keyword)
	c.Check(t.Elems[1].Is("null"), Equals, true)
	c.Check(t.Is("null"), Equals, false)

	t, err = decl.ParseType("{f(): number}")
	c.Assert(err, IsNil)
	_, ok := t.Property("f")
	c.Check(ok, Equals, false)
	c.Check(t.Members, HasLen, 1)

	_, err = decl.ParseType("number string")
	c.Check(err, ErrorMatches, "cannot parse type: column 8: unexpected text after type")
}
