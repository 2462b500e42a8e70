// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package decl

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var keywords = map[string]bool{
	"any":       true,
	"bigint":    true,
	"boolean":   true,
	"never":     true,
	"null":      true,
	"number":    true,
	"object":    true,
	"string":    true,
	"symbol":    true,
	"undefined": true,
	"unknown":   true,
	"void":      true,
}

// ParseTypeArguments parses a type argument list such as "<A, B>". Blank
// input means the list is absent and yields nil without error. An empty
// list "<>" yields a TypeArgs with no arguments.
func ParseTypeArguments(input string) (ta *TypeArgs, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse type arguments: %w", err)
		}
	}()

	p := newParser(input)
	p.skipBlanks()
	if p.pos == len(p.input) {
		return nil, nil
	}
	start := p.pos
	if !p.skipChar('<') {
		return nil, p.errorf("expected %q", "<")
	}
	ta = &TypeArgs{}
	for {
		p.skipBlanks()
		if p.skipChar('>') {
			break
		}
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		ta.Args = append(ta.Args, t)
		p.skipBlanks()
		if p.skipChar(',') {
			continue
		}
		if !p.skipChar('>') {
			return nil, p.errorf("expected %q or %q", ",", ">")
		}
		break
	}
	ta.Span = Span{Start: start, End: p.pos}
	p.skipBlanks()
	if p.pos != len(p.input) {
		return nil, p.errorf("unexpected text after type arguments")
	}
	return ta, nil
}

// ParseType parses a single type expression.
func ParseType(input string) (t *Type, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("cannot parse type: %w", err)
		}
	}()

	p := newParser(input)
	t, err = p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipBlanks()
	if p.pos != len(p.input) {
		return nil, p.errorf("unexpected text after type")
	}
	return t, nil
}

type parser struct {
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. It is 0 at the end of input.
	char      rune
	lineNum   int
	lineStart int
}

func newParser(input string) *parser {
	p := &parser{input: input, lineNum: 1}
	p.advanceChar()
	return p
}

func (p *parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

func (p *parser) colNum() int {
	return p.pos - p.lineStart + 1
}

func (p *parser) errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	if strings.ContainsRune(p.input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", p.lineNum, p.colNum(), err)
	}
	return fmt.Errorf("column %d: %w", p.colNum(), err)
}

// unexpected reports the char under the parser.
func (p *parser) unexpected() error {
	if p.pos >= len(p.input) {
		return p.errorf("unexpected end of input")
	}
	return p.errorf("unexpected %q", p.char)
}

type checkpoint struct {
	parser    *parser
	pos       int
	nextPos   int
	char      rune
	lineNum   int
	lineStart int
}

func (p *parser) save() *checkpoint {
	return &checkpoint{
		parser:    p,
		pos:       p.pos,
		nextPos:   p.nextPos,
		char:      p.char,
		lineNum:   p.lineNum,
		lineStart: p.lineStart,
	}
}

func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

func (p *parser) peekChar(c rune) bool {
	return p.pos < len(p.input) && p.char == c
}

func (p *parser) skipChar(c rune) bool {
	if p.peekChar(c) {
		p.advanceChar()
		return true
	}
	return false
}

func (p *parser) skipString(s string) bool {
	if !strings.HasPrefix(p.input[p.pos:], s) {
		return false
	}
	for end := p.pos + len(s); p.pos < end; {
		p.advanceChar()
	}
	return true
}

// skipComment jumps over a line or block comment. An unterminated block
// comment runs to the end of input.
func (p *parser) skipComment() bool {
	switch {
	case p.skipString("//"):
		for p.pos < len(p.input) && p.char != '\n' {
			p.advanceChar()
		}
		return true
	case p.skipString("/*"):
		for p.pos < len(p.input) && !p.skipString("*/") {
			p.advanceChar()
		}
		return true
	}
	return false
}

func (p *parser) skipBlanks() bool {
	mark := p.pos
	for p.pos < len(p.input) {
		if p.skipComment() {
			continue
		}
		if !unicode.IsSpace(p.char) {
			break
		}
		p.advanceChar()
	}
	return p.pos != mark
}

func isInitialNameChar(c rune) bool {
	return unicode.IsLetter(c) || c == '_' || c == '$'
}

func isNameChar(c rune) bool {
	return isInitialNameChar(c) || unicode.IsDigit(c)
}

// parseName returns the identifier under the parser.
func (p *parser) parseName() (string, bool) {
	if p.pos >= len(p.input) || !isInitialNameChar(p.char) {
		return "", false
	}
	mark := p.pos
	for p.pos < len(p.input) && isNameChar(p.char) {
		p.advanceChar()
	}
	return p.input[mark:p.pos], true
}

// parseStringLiteral returns the unquoted value of a quoted string.
func (p *parser) parseStringLiteral() (string, bool, error) {
	q := p.char
	if q != '"' && q != '\'' && q != '`' {
		return "", false, nil
	}
	cp := p.save()
	p.advanceChar()
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.char
		p.advanceChar()
		switch c {
		case q:
			return sb.String(), true, nil
		case '\\':
			sb.WriteRune(p.parseEscape())
		default:
			sb.WriteRune(c)
		}
	}
	cp.restore()
	return "", false, p.errorf("missing closing quote in string literal")
}

// parseEscape decodes the escape sequence following a backslash.
func (p *parser) parseEscape() rune {
	c := p.char
	p.advanceChar()
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'v':
		return '\v'
	case '0':
		return 0
	case 'u':
		var r rune
		for i := 0; i < 4 && p.pos < len(p.input); i++ {
			d := hexValue(p.char)
			if d < 0 {
				break
			}
			r = r<<4 | rune(d)
			p.advanceChar()
		}
		return r
	}
	return c
}

func hexValue(c rune) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// skipNumber jumps over a numeric literal, with an optional leading minus.
func (p *parser) skipNumber() bool {
	cp := p.save()
	p.skipChar('-')
	if p.pos >= len(p.input) || !unicode.IsDigit(p.char) {
		cp.restore()
		return false
	}
	for p.pos < len(p.input) && (isNameChar(p.char) || p.char == '.') {
		p.advanceChar()
	}
	return true
}

// skipEnclosed jumps over a balanced group opened by the char under the
// parser, skipping string literals.
func (p *parser) skipEnclosed(open, close rune) (bool, error) {
	if !p.peekChar(open) {
		return false, nil
	}
	cp := p.save()
	depth := 0
	for p.pos < len(p.input) {
		if _, ok, err := p.parseStringLiteral(); err != nil {
			return false, err
		} else if ok {
			continue
		}
		switch p.char {
		case open:
			depth++
		case close:
			depth--
		}
		p.advanceChar()
		if depth == 0 {
			return true, nil
		}
	}
	cp.restore()
	return false, p.errorf("missing closing %q", close)
}

func (p *parser) node(kind NodeKind, start, end int) *Type {
	return &Type{Kind: kind, Span: Span{Start: start, End: end}, Text: p.input[start:end]}
}

// parseType parses a union of postfix types. An intersection is kept as an
// opaque node.
func (p *parser) parseType() (*Type, error) {
	p.skipBlanks()
	start := p.pos
	if p.skipChar('|') {
		p.skipBlanks()
	}
	var elems []*Type
	intersection := false
	for {
		t, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		cp := p.save()
		p.skipBlanks()
		if p.skipChar('|') {
			continue
		}
		if p.peekChar('&') && !strings.HasPrefix(p.input[p.pos:], "&&") {
			p.advanceChar()
			intersection = true
			continue
		}
		cp.restore()
		break
	}
	end := elems[len(elems)-1].Span.End
	switch {
	case intersection:
		return p.node(Opaque, start, end), nil
	case len(elems) == 1:
		return elems[0], nil
	}
	u := p.node(Union, start, end)
	u.Elems = elems
	return u, nil
}

// parsePostfix parses a primary type followed by any array or indexed
// access suffixes.
func (p *parser) parsePostfix() (*Type, error) {
	t, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		cp := p.save()
		p.skipBlanks()
		if !p.skipChar('[') {
			cp.restore()
			return t, nil
		}
		p.skipBlanks()
		if p.skipChar(']') {
			a := p.node(Array, t.Span.Start, p.pos)
			a.Elems = []*Type{t}
			t = a
			continue
		}
		if _, err := p.parseType(); err != nil {
			return nil, err
		}
		p.skipBlanks()
		if !p.skipChar(']') {
			return nil, p.errorf("expected %q", "]")
		}
		t = p.node(Opaque, t.Span.Start, p.pos)
	}
}

func (p *parser) parsePrimary() (*Type, error) {
	p.skipBlanks()
	start := p.pos
	if p.pos >= len(p.input) {
		return nil, p.unexpected()
	}

	switch p.char {
	case '(':
		return p.parseParen()
	case '[':
		return p.parseTuple()
	case '{':
		return p.parseObject()
	}

	if _, ok, err := p.parseStringLiteral(); err != nil {
		return nil, err
	} else if ok {
		return p.node(Literal, start, p.pos), nil
	}
	if p.skipNumber() {
		return p.node(Literal, start, p.pos), nil
	}

	name, ok := p.parseName()
	if !ok {
		return nil, p.unexpected()
	}
	switch name {
	case "typeof", "keyof", "readonly", "unique", "infer":
		if _, err := p.parsePostfix(); err != nil {
			return nil, err
		}
		return p.node(Opaque, start, p.pos), nil
	case "true", "false":
		return p.node(Literal, start, p.pos), nil
	}
	if keywords[name] {
		t := p.node(Keyword, start, p.pos)
		t.Name = name
		return t, nil
	}
	for p.skipChar('.') {
		if _, ok := p.parseName(); !ok {
			return nil, p.errorf("expected name after %q", ".")
		}
	}
	t := p.node(Reference, start, p.pos)
	t.Name = t.Text
	if p.peekChar('<') {
		args, err := p.parseGenericArgs()
		if err != nil {
			return nil, err
		}
		t.Elems = args
		t.Span.End = p.pos
		t.Text = p.input[start:p.pos]
	}
	return t, nil
}

func (p *parser) parseGenericArgs() ([]*Type, error) {
	p.skipChar('<')
	var args []*Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		p.skipBlanks()
		if p.skipChar(',') {
			continue
		}
		if p.skipChar('>') {
			return args, nil
		}
		return nil, p.errorf("expected %q or %q", ",", ">")
	}
}

// parseParen parses a parenthesised type. A function type such as
// "(x: number) => string" is kept as an opaque node.
func (p *parser) parseParen() (*Type, error) {
	start := p.pos
	cp := p.save()
	p.advanceChar()
	inner, err := p.parseType()
	if err == nil {
		p.skipBlanks()
		if p.skipChar(')') {
			after := p.save()
			p.skipBlanks()
			if !p.skipString("=>") {
				after.restore()
				t := p.node(Paren, start, p.pos)
				t.Elems = []*Type{inner}
				return t, nil
			}
		}
	}
	cp.restore()
	if _, err := p.skipEnclosed('(', ')'); err != nil {
		return nil, err
	}
	p.skipBlanks()
	if !p.skipString("=>") {
		return nil, p.errorf("expected %q", "=>")
	}
	if _, err := p.parseType(); err != nil {
		return nil, err
	}
	return p.node(Opaque, start, p.pos), nil
}

func (p *parser) parseTuple() (*Type, error) {
	start := p.pos
	p.advanceChar()
	var elems []*Type
	for {
		p.skipBlanks()
		if p.skipChar(']') {
			break
		}
		p.skipString("...")
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
		p.skipBlanks()
		if p.skipChar(',') {
			continue
		}
		if !p.skipChar(']') {
			return nil, p.errorf("expected %q or %q", ",", "]")
		}
		break
	}
	t := p.node(Tuple, start, p.pos)
	t.Elems = elems
	return t, nil
}

func (p *parser) parseObject() (*Type, error) {
	start := p.pos
	p.advanceChar()
	var members []*Member
	for {
		p.skipBlanks()
		if p.skipChar('}') {
			break
		}
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		p.skipBlanks()
		if p.skipChar(',') || p.skipChar(';') {
			continue
		}
		if !p.skipChar('}') {
			return nil, p.errorf("expected %q or %q", ",", "}")
		}
		break
	}
	t := p.node(Object, start, p.pos)
	t.Members = members
	return t, nil
}

func (p *parser) parseMember() (*Member, error) {
	start := p.pos
	m := &Member{}

	// A leading "readonly" is a modifier unless it is the key itself.
	cp := p.save()
	if name, ok := p.parseName(); ok && name == "readonly" && p.skipBlanks() && !p.peekChar(':') && !p.peekChar('?') && !p.peekChar('(') {
		start = p.pos
	} else {
		cp.restore()
	}

	switch {
	case p.peekChar('['):
		if _, err := p.skipEnclosed('[', ']'); err != nil {
			return nil, err
		}
		m.Key = p.input[start:p.pos]
	default:
		if key, ok, err := p.parseStringLiteral(); err != nil {
			return nil, err
		} else if ok {
			m.Key = key
		} else if name, ok := p.parseName(); ok {
			m.Key = name
		} else if p.skipNumber() {
			m.Key = p.input[start:p.pos]
		} else {
			return nil, p.unexpected()
		}
	}
	end := p.pos

	p.skipBlanks()
	if p.skipChar('?') {
		m.Optional = true
		end = p.pos
		p.skipBlanks()
	}
	if p.peekChar('(') || p.peekChar('<') {
		m.Method = true
		if _, err := p.skipEnclosed('<', '>'); err != nil {
			return nil, err
		}
		p.skipBlanks()
		if ok, err := p.skipEnclosed('(', ')'); err != nil {
			return nil, err
		} else if !ok {
			return nil, p.errorf("expected %q", "(")
		}
		end = p.pos
		after := p.save()
		p.skipBlanks()
		if !p.peekChar(':') {
			after.restore()
			m.Span = Span{Start: start, End: end}
			return m, nil
		}
	}
	if p.skipChar(':') {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		m.Type = t
		end = t.Span.End
	}
	m.Span = Span{Start: start, End: end}
	return m, nil
}
