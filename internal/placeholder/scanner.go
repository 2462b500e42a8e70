// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package placeholder

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNumber is the largest index a numbered placeholder can use.
const MaxNumber = 32766

// Kind identifies the placeholder syntax.
type Kind int

const (
	// Anonymous is a bare "?".
	Anonymous Kind = iota
	// Numbered is "?NNN".
	Numbered
	// Named is ":name", "@name" or "$name".
	Named
)

func (k Kind) String() string {
	switch k {
	case Anonymous:
		return "anonymous"
	case Numbered:
		return "numbered"
	case Named:
		return "named"
	}
	return "invalid"
}

// Placeholder is a single placeholder occurrence in a query.
type Placeholder struct {
	Kind Kind

	// Text is the placeholder as written, including its prefix.
	Text string

	// Name is the identifier of a named placeholder without its prefix.
	Name string

	// Number is the index of a numbered placeholder.
	Number int

	// Pos is the byte offset of the placeholder in the query.
	Pos int
}

// Prefix returns the prefix character of the placeholder.
func (p Placeholder) Prefix() byte {
	return p.Text[0]
}

func (p Placeholder) String() string {
	return fmt.Sprintf("%s[%s]", p.Kind, p.Text)
}

// Scan returns the placeholders of the first statement in the query in the
// order they appear.
func Scan(query string) ([]Placeholder, error) {
	s := &scanner{}
	s.init(query)
	return s.scan()
}

type scanner struct {
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int
	found     []Placeholder
}

// init resets the state of the scanner and sets the input string.
func (s *scanner) init(input string) {
	s.input = input
	s.pos = 0
	s.nextPos = 0
	s.char = 0
	s.lineNum = 1
	s.lineStart = 0
	s.found = nil
	s.advanceChar()
}

func (s *scanner) scan() ([]Placeholder, error) {
	for s.pos < len(s.input) {
		if ok, err := s.skipQuoted(); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		if s.skipComment() {
			continue
		}
		switch s.char {
		case ';':
			return s.found, nil
		case '?':
			if err := s.scanQuestion(); err != nil {
				return nil, err
			}
			continue
		case ':', '@', '$':
			if err := s.scanNamed(); err != nil {
				return nil, err
			}
			continue
		}
		if isIDChar(s.char) {
			// Skip whole words so that a '$' inside an identifier such as
			// "a$b" is not read as a placeholder.
			for s.pos < len(s.input) && isIDChar(s.char) {
				s.advanceChar()
			}
			continue
		}
		s.advanceChar()
	}
	return s.found, nil
}

// colNum calculates the current column number taking into account line breaks.
func (s *scanner) colNum() int {
	return s.pos - s.lineStart + 1
}

// advanceChar moves the scanner to the next character in the input.
func (s *scanner) advanceChar() bool {
	if s.nextPos >= len(s.input) {
		s.char = 0
		s.pos = s.nextPos
		return false
	}
	if s.char == '\n' {
		s.lineStart = s.nextPos
		s.lineNum++
	}
	var size int
	s.char, size = utf8.DecodeRuneInString(s.input[s.nextPos:])
	s.pos = s.nextPos
	s.nextPos += size
	return true
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	if strings.ContainsRune(input, '\n') {
		return fmt.Errorf("line %d, column %d: %w", line, column, err)
	}
	return fmt.Errorf("column %d: %w", column, err)
}

// skipQuoted jumps over string literals and quoted identifiers. Doubled up
// quote characters are escaped. Square bracket identifiers have no escapes.
func (s *scanner) skipQuoted() (bool, error) {
	var end rune
	switch s.char {
	case '\'', '"', '`':
		end = s.char
	case '[':
		end = ']'
	default:
		return false, nil
	}
	line, col := s.lineNum, s.colNum()
	s.advanceChar()
	for s.pos < len(s.input) {
		if s.char == end {
			s.advanceChar()
			if end != ']' && s.pos < len(s.input) && s.char == end {
				s.advanceChar()
				continue
			}
			return true, nil
		}
		s.advanceChar()
	}
	if end == ']' {
		return false, errorAt(fmt.Errorf("missing closing bracket in identifier"), line, col, s.input)
	}
	return false, errorAt(fmt.Errorf("missing closing quote in string literal"), line, col, s.input)
}

// skipComment jumps over comments as SQLite defines them. Both kinds
// of comment may be left open at the end of input.
func (s *scanner) skipComment() bool {
	if !strings.HasPrefix(s.input[s.pos:], "--") && !strings.HasPrefix(s.input[s.pos:], "/*") {
		return false
	}
	block := s.char == '/'
	s.advanceChar()
	s.advanceChar()
	for s.pos < len(s.input) {
		if !block && s.char == '\n' {
			return true
		}
		if block && strings.HasPrefix(s.input[s.pos:], "*/") {
			s.advanceChar()
			s.advanceChar()
			return true
		}
		s.advanceChar()
	}
	return true
}

// scanQuestion reads "?" or "?NNN".
func (s *scanner) scanQuestion() error {
	start := s.pos
	line, col := s.lineNum, s.colNum()
	s.advanceChar()
	digits := s.pos
	for s.pos < len(s.input) && s.char >= '0' && s.char <= '9' {
		s.advanceChar()
	}
	if s.pos == digits {
		s.found = append(s.found, Placeholder{Kind: Anonymous, Text: "?", Pos: start})
		return nil
	}
	n, err := strconv.Atoi(s.input[digits:s.pos])
	if err != nil || n < 1 || n > MaxNumber {
		return errorAt(fmt.Errorf("variable number must be between ?1 and ?%d", MaxNumber), line, col, s.input)
	}
	s.found = append(s.found, Placeholder{Kind: Numbered, Text: s.input[start:s.pos], Number: n, Pos: start})
	return nil
}

// scanNamed reads ":name", "@name" or "$name". A "$" name may contain "::"
// separators and end with a parenthesised suffix, as in TCL variables.
func (s *scanner) scanNamed() error {
	start := s.pos
	line, col := s.lineNum, s.colNum()
	prefix := s.char
	s.advanceChar()
	nameStart := s.pos
	for s.pos < len(s.input) {
		if isIDChar(s.char) {
			s.advanceChar()
			continue
		}
		if prefix == '$' && strings.HasPrefix(s.input[s.pos:], "::") {
			s.advanceChar()
			s.advanceChar()
			continue
		}
		if prefix == '$' && s.char == '(' && s.pos > nameStart {
			if err := s.skipSuffix(); err != nil {
				return err
			}
			break
		}
		break
	}
	if s.pos == nameStart {
		return errorAt(fmt.Errorf("unrecognized token: %q", string(prefix)), line, col, s.input)
	}
	text := s.input[start:s.pos]
	s.found = append(s.found, Placeholder{Kind: Named, Text: text, Name: text[1:], Pos: start})
	return nil
}

// skipSuffix jumps over the parenthesised suffix of a "$" name. The suffix
// ends at the first ')' and may not contain white space.
func (s *scanner) skipSuffix() error {
	line, col := s.lineNum, s.colNum()
	for s.pos < len(s.input) {
		if unicode.IsSpace(s.char) {
			break
		}
		if s.char == ')' {
			s.advanceChar()
			return nil
		}
		s.advanceChar()
	}
	return errorAt(fmt.Errorf("missing closing parenthesis"), line, col, s.input)
}

// isIDChar returns true if the given char can be part of an identifier.
func isIDChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '$' || c >= 0x80
}

// NamedWithoutPrefix returns the named placeholders that do not use the
// given prefix.
func NamedWithoutPrefix(ps []Placeholder, prefix byte) []Placeholder {
	var out []Placeholder
	for _, p := range ps {
		if p.Kind == Named && p.Prefix() != prefix {
			out = append(out, p)
		}
	}
	return out
}
