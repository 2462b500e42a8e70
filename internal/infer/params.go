// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package infer

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/canonical/sqltype/internal/placeholder"
	"github.com/canonical/sqltype/internal/typeinfo"
)

// ErrIndeterminate is returned when the shape of a query cannot be known,
// because it cannot be scanned or compiled.
var ErrIndeterminate = errors.New("indeterminate query")

// slots is the result of assigning placeholders to bind slots the way
// SQLite does.
type slots struct {
	// max is the largest slot index.
	max int
	// positional holds the indices used by "?" and "?N".
	positional map[int]bool
	// named holds the indices used by named placeholders.
	named map[int]bool
	// names holds the prefix-stripped names in first-occurrence order.
	names *orderedmap.OrderedMap[string, bool]
}

func assignSlots(ps []placeholder.Placeholder) *slots {
	s := &slots{
		positional: map[int]bool{},
		named:      map[int]bool{},
		names:      orderedmap.NewOrderedMap[string, bool](),
	}
	byText := map[string]int{}
	for _, p := range ps {
		switch p.Kind {
		case placeholder.Anonymous:
			s.max++
			s.positional[s.max] = true
		case placeholder.Numbered:
			s.positional[p.Number] = true
			if p.Number > s.max {
				s.max = p.Number
			}
		case placeholder.Named:
			if _, ok := byText[p.Text]; !ok {
				s.max++
				byText[p.Text] = s.max
				s.named[s.max] = true
			}
			if _, ok := s.names.Get(p.Name); !ok {
				s.names.Set(p.Name, true)
			}
		}
	}
	return s
}

func (s *slots) parameters() typeinfo.Parameters {
	params := typeinfo.Parameters{Names: s.names.Keys()}
	for i := range s.positional {
		if !s.named[i] {
			params.Count++
		}
	}
	params.Count += s.names.Len()
	if params.Names == nil {
		params.Names = []string{}
	}
	return params
}

// sentinels returns a NULL argument for every slot.
func (s *slots) sentinels() []driver.NamedValue {
	args := make([]driver.NamedValue, s.max)
	for i := range args {
		args[i] = driver.NamedValue{Ordinal: i + 1}
	}
	return args
}

// ParametersOf reduces placeholder occurrences to a parameter shape. Every
// distinct positional slot not shared with a named placeholder counts once,
// and so does every distinct name once its prefix is stripped.
func ParametersOf(ps []placeholder.Placeholder) typeinfo.Parameters {
	return assignSlots(ps).parameters()
}

// Parameters returns the parameter shape of query.
func Parameters(query string) (typeinfo.Parameters, error) {
	ps, err := placeholder.Scan(query)
	if err != nil {
		return typeinfo.Parameters{}, fmt.Errorf("%w: %w", ErrIndeterminate, err)
	}
	return ParametersOf(ps), nil
}
