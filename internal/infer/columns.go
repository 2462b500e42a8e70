// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package infer

import (
	"context"
	"errors"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"go.uber.org/zap"

	"github.com/canonical/sqltype/internal/explain"
	"github.com/canonical/sqltype/internal/placeholder"
	"github.com/canonical/sqltype/internal/schema"
	"github.com/canonical/sqltype/internal/typeinfo"
)

// Resolver infers query shapes against a schema.
type Resolver struct {
	log    *zap.SugaredLogger
	budget explain.Budget
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug output.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithBudget bounds the symbolic execution of compiled queries.
func WithBudget(b explain.Budget) Option {
	return func(r *Resolver) {
		r.budget = b
	}
}

// NewResolver returns a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		log:    zap.NewNop().Sugar(),
		budget: explain.DefaultBudget,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Shape is everything inferred about a query.
type Shape struct {
	Parameters typeinfo.Parameters
	// Placeholders are the placeholder occurrences of the query.
	Placeholders []placeholder.Placeholder
	Columns      []typeinfo.Column
	Statement    *schema.Statement
}

// Infer scans and compiles query and resolves its parameters and columns.
// The returned error wraps ErrIndeterminate when the query cannot be
// scanned or compiled; a compile failure also wraps *schema.CompileError.
func (r *Resolver) Infer(ctx context.Context, h *schema.Handle, query string) (*Shape, error) {
	ps, err := placeholder.Scan(query)
	if err != nil {
		r.log.Debugw("cannot scan query", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIndeterminate, err)
	}
	s := assignSlots(ps)
	st, err := h.Compile(ctx, query, s.sentinels()...)
	if err != nil {
		r.log.Debugw("cannot compile query", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIndeterminate, err)
	}
	cols, err := r.columns(ctx, h, st)
	if err != nil {
		return nil, err
	}
	return &Shape{
		Parameters:   s.parameters(),
		Placeholders: ps,
		Columns:      cols,
		Statement:    st,
	}, nil
}

// Columns returns the result columns of query.
func (r *Resolver) Columns(ctx context.Context, h *schema.Handle, query string) ([]typeinfo.Column, error) {
	shape, err := r.Infer(ctx, h, query)
	if err != nil {
		return nil, err
	}
	return shape.Columns, nil
}

// columns resolves the kinds of the compiled statement's columns.
func (r *Resolver) columns(ctx context.Context, h *schema.Handle, st *schema.Statement) ([]typeinfo.Column, error) {
	n := len(st.Columns)
	kinds := make([]typeinfo.Kind, n)
	for i := range kinds {
		kinds[i] = typeinfo.Unknown
	}

	var blocks []explain.BlockColumn
	if st.Program != nil {
		var err error
		blocks, err = h.Blocks(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Debugw("cannot read schema layout", "error", err)
		}
		for i, o := range explain.Origins(st.Program, blocks, n) {
			if o == nil {
				continue
			}
			k, err := r.staticKind(ctx, h, o)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.log.Debugw("cannot read column metadata", "table", o.Table, "column", o.Column, "error", err)
				continue
			}
			kinds[i] = k
		}
	}

	if ambiguous(kinds) && st.Program != nil {
		proofs, err := explain.Prove(st.Program, blocks, n, r.budget)
		switch {
		case errors.Is(err, explain.ErrNoInformation):
			r.log.Debugw("nothing proven about columns", "query", st.Query)
		case err != nil:
			r.log.Debugw("cannot prove columns", "query", st.Query, "error", err)
		default:
			for i, p := range proofs {
				kinds[i] = refine(kinds[i], p)
			}
		}
	}

	return dedupe(st.Columns, kinds), nil
}

// staticKind returns the kind of a table column read by the query.
func (r *Resolver) staticKind(ctx context.Context, h *schema.Handle, o *explain.Origin) (typeinfo.Kind, error) {
	info, found, err := h.Column(ctx, o.Schema, o.Table, o.Column)
	if err != nil {
		return typeinfo.Unknown, err
	}
	if !found {
		return typeinfo.Unknown, nil
	}
	k := info.Kind()
	if o.Outer {
		k |= typeinfo.Null
	}
	return k, nil
}

// ambiguous reports whether any kind is unknown or nullable.
func ambiguous(kinds []typeinfo.Kind) bool {
	for _, k := range kinds {
		if k == typeinfo.Unknown || k.Has(typeinfo.Null) {
			return true
		}
	}
	return false
}

// refine narrows a statically resolved kind with what was proven about the
// column. An observed kind is only adopted by an unknown column.
func refine(k typeinfo.Kind, p explain.Proof) typeinfo.Kind {
	if p.Null == explain.AlwaysNull {
		return typeinfo.Null
	}
	if k == typeinfo.Unknown && p.Kind != 0 {
		k = p.Kind
		if p.Null != explain.NeverNull {
			k |= typeinfo.Null
		}
		return k
	}
	if p.Null == explain.NeverNull {
		k = k.Without(typeinfo.Null)
	}
	return k
}

// dedupe returns one column per distinct name, in the position the name
// first appears, with the kind of its last occurrence.
func dedupe(names []string, kinds []typeinfo.Kind) []typeinfo.Column {
	m := orderedmap.NewOrderedMap[string, typeinfo.Kind]()
	for i, name := range names {
		m.Set(name, kinds[i])
	}
	cols := make([]typeinfo.Column, 0, m.Len())
	for el := m.Front(); el != nil; el = el.Next() {
		cols = append(cols, typeinfo.Column{Name: el.Key, Kind: el.Value})
	}
	return cols
}
