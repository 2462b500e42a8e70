// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package lint

import (
	"context"
	"errors"
	"fmt"

	"github.com/canonical/sqltype/internal/placeholder"
	"github.com/canonical/sqltype/internal/reconcile"
	"github.com/canonical/sqltype/internal/schema"
)

// Rule checks one aspect of a call site.
type Rule interface {
	Name() string
	Check(ctx context.Context, env *Env, site CallSite) ([]Diagnostic, error)
}

// Rule names.
const (
	TypedInput      = "typed-input"
	TypedResult     = "typed-result"
	ValidQuery      = "valid-query"
	ParameterPrefix = "parameter-prefix"
)

// DefaultRules returns every rule, checking named parameters against
// prefix.
func DefaultRules(prefix byte) []Rule {
	return []Rule{ValidQueryRule{}, InputRule{}, ResultRule{}, PrefixRule{Prefix: prefix}}
}

// InputRule checks the declared input type, the first type argument.
type InputRule struct{}

func (InputRule) Name() string {
	return TypedInput
}

func (InputRule) Check(ctx context.Context, env *Env, site CallSite) ([]Diagnostic, error) {
	shape, err := env.shape(ctx, site)
	if err != nil || shape == nil {
		return nil, err
	}
	ta, err := typeArgs(site)
	if err != nil {
		return nil, err
	}

	missing := func(e *Edit) []Diagnostic {
		return []Diagnostic{{Kind: MissingInputType, Message: "Missing input type for query", Fix: e}}
	}
	text := reconcile.InputText(shape.Parameters, nil)
	switch {
	case ta == nil:
		return missing(&Edit{Text: "<" + text + ">"}), nil
	case len(ta.Args) == 0:
		return missing(&Edit{Start: ta.Span.Start, End: ta.Span.End, Text: "<" + text + ">"}), nil
	}
	input := ta.Args[0]
	v := reconcile.Input(shape.Parameters, input)
	if v.Status == reconcile.Valid {
		return nil, nil
	}
	return []Diagnostic{{
		Kind:    IncorrectInputType,
		Message: "Incorrect input type for query",
		Fix:     &Edit{Start: input.Span.Start, End: input.Span.End, Text: v.Replacement},
	}}, nil
}

// ResultRule checks the declared result type, the second type argument.
type ResultRule struct{}

func (ResultRule) Name() string {
	return TypedResult
}

func (ResultRule) Check(ctx context.Context, env *Env, site CallSite) ([]Diagnostic, error) {
	shape, err := env.shape(ctx, site)
	if err != nil || shape == nil {
		return nil, err
	}
	ta, err := typeArgs(site)
	if err != nil {
		return nil, err
	}

	if len(shape.Columns) == 0 {
		if ta == nil || len(ta.Args) < 2 {
			return nil, nil
		}
		return []Diagnostic{{
			Kind:    ExtraneousResultType,
			Message: "Query doesn't return any data",
			Fix:     &Edit{Start: ta.Args[0].Span.End, End: ta.Args[1].Span.End},
		}}, nil
	}

	missing := func(e *Edit) []Diagnostic {
		return []Diagnostic{{Kind: MissingResultType, Message: "Missing result type for query", Fix: e}}
	}
	text := reconcile.ResultText(shape.Columns, nil)
	switch {
	case ta == nil:
		return missing(&Edit{Text: "<[], " + text + ">"}), nil
	case len(ta.Args) == 0:
		return missing(&Edit{Start: ta.Span.Start, End: ta.Span.End, Text: "<[], " + text + ">"}), nil
	case len(ta.Args) == 1:
		end := ta.Args[0].Span.End
		return missing(&Edit{Start: end, End: end, Text: ", " + text}), nil
	}
	result := ta.Args[1]
	v := reconcile.Result(shape.Columns, result)
	if v.Status == reconcile.Valid {
		return nil, nil
	}
	return []Diagnostic{{
		Kind:    IncorrectResultType,
		Message: "Incorrect result type for query",
		Fix:     &Edit{Start: result.Span.Start, End: result.Span.End, Text: v.Replacement},
	}}, nil
}

// ValidQueryRule reports queries that are not static or that the database
// rejects.
type ValidQueryRule struct{}

func (ValidQueryRule) Name() string {
	return ValidQuery
}

func (ValidQueryRule) Check(ctx context.Context, env *Env, site CallSite) ([]Diagnostic, error) {
	query, ok := site.StaticQueryText()
	if !ok {
		return []Diagnostic{{Kind: NonStaticQuery, Message: "Unable to determine a static query value"}}, nil
	}
	invalid := func(err error) []Diagnostic {
		return []Diagnostic{{Kind: InvalidQuery, Message: "Invalid query: " + err.Error()}}
	}
	if _, err := placeholder.Scan(query); err != nil {
		return invalid(err), nil
	}
	h, err := env.handle(ctx, site)
	if err != nil {
		return nil, err
	}
	_, err = h.Compile(ctx, query)
	var ce *schema.CompileError
	if errors.As(err, &ce) {
		return invalid(ce.Err), nil
	} else if err != nil {
		return nil, err
	}
	return nil, nil
}

// PrefixRule reports named parameters that do not use Prefix.
type PrefixRule struct {
	Prefix byte
}

func (PrefixRule) Name() string {
	return ParameterPrefix
}

func (r PrefixRule) Check(ctx context.Context, env *Env, site CallSite) ([]Diagnostic, error) {
	query, ok := site.StaticQueryText()
	if !ok {
		return nil, nil
	}
	ps, err := placeholder.Scan(query)
	if err != nil {
		return nil, nil
	}
	if len(placeholder.NamedWithoutPrefix(ps, r.Prefix)) == 0 {
		return nil, nil
	}
	return []Diagnostic{{
		Kind:    IncorrectParameterPrefix,
		Message: fmt.Sprintf("Query uses a named parameter prefix that isn't permitted, use '%c' instead.", r.Prefix),
	}}, nil
}
