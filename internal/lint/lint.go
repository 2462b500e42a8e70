// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package lint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/canonical/sqltype/internal/decl"
	"github.com/canonical/sqltype/internal/infer"
	"github.com/canonical/sqltype/internal/schema"
)

// Kind classifies a diagnostic.
type Kind string

const (
	MissingInputType         Kind = "missing-input-type"
	IncorrectInputType       Kind = "incorrect-input-type"
	MissingResultType        Kind = "missing-result-type"
	IncorrectResultType      Kind = "incorrect-result-type"
	ExtraneousResultType     Kind = "extraneous-result-type"
	InvalidQuery             Kind = "invalid-query"
	NonStaticQuery           Kind = "non-static-query"
	IncorrectParameterPrefix Kind = "incorrect-parameter-prefix"
)

// Diagnostic is a problem found at a call site.
type Diagnostic struct {
	Kind    Kind
	Message string
	// Fix is the edit to the type argument list that resolves the problem,
	// if any.
	Fix *Edit
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// HandleSource returns the schema handle for the database a call site is
// made on.
type HandleSource interface {
	Handle(ctx context.Context, filename, database string) (*schema.Handle, error)
}

// Env is what rules need to check a call site.
type Env struct {
	Handles  HandleSource
	Resolver *infer.Resolver
	Log      *zap.SugaredLogger
}

func (env *Env) log() *zap.SugaredLogger {
	if env.Log == nil {
		return zap.NewNop().Sugar()
	}
	return env.Log
}

func (env *Env) handle(ctx context.Context, site CallSite) (*schema.Handle, error) {
	h, err := env.Handles.Handle(ctx, site.Filename(), site.Database())
	if err != nil {
		return nil, fmt.Errorf("cannot get database %q for %s: %w", site.Database(), site.Filename(), err)
	}
	return h, nil
}

// shape infers the shape of the call site's query. It returns nil without
// error when the query is not static or cannot be analysed.
func (env *Env) shape(ctx context.Context, site CallSite) (*infer.Shape, error) {
	query, ok := site.StaticQueryText()
	if !ok {
		return nil, nil
	}
	h, err := env.handle(ctx, site)
	if err != nil {
		return nil, err
	}
	resolver := env.Resolver
	if resolver == nil {
		resolver = infer.NewResolver(infer.WithLogger(env.log()))
	}
	shape, err := resolver.Infer(ctx, h, query)
	if errors.Is(err, infer.ErrIndeterminate) {
		env.log().Debugw("skipping indeterminate query", "file", site.Filename(), "error", err)
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return shape, nil
}

// typeArgs parses the type argument list of the call site.
func typeArgs(site CallSite) (*decl.TypeArgs, error) {
	ta, err := decl.ParseTypeArguments(site.ExistingDeclaration())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", site.Filename(), err)
	}
	return ta, nil
}

// Check runs rules on a call site.
func Check(ctx context.Context, env *Env, site CallSite, rules []Rule) ([]Diagnostic, error) {
	var ds []Diagnostic
	for _, r := range rules {
		rds, err := r.Check(ctx, env, site)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name(), err)
		}
		ds = append(ds, rds...)
	}
	return ds, nil
}

// maxFixPasses bounds the number of edits Fix applies to a call site.
const maxFixPasses = 10

// Fix repeatedly checks a call site and applies the first available fix
// until no diagnostic has one. It returns the number of edits applied.
func Fix(ctx context.Context, env *Env, site CallSite, rules []Rule) (int, error) {
	applied := 0
	for applied < maxFixPasses {
		ds, err := Check(ctx, env, site, rules)
		if err != nil {
			return applied, err
		}
		edit := firstFix(ds)
		if edit == nil {
			break
		}
		if err := site.EmitFix(*edit); err != nil {
			return applied, fmt.Errorf("cannot apply fix: %w", err)
		}
		applied++
	}
	return applied, nil
}

func firstFix(ds []Diagnostic) *Edit {
	for _, d := range ds {
		if d.Fix != nil {
			return d.Fix
		}
	}
	return nil
}

// SiteDiagnostics holds the diagnostics reported for one call site.
type SiteDiagnostics struct {
	Site        CallSite
	Diagnostics []Diagnostic
}

// CheckUnit runs rules on every call site of a unit and returns those with
// diagnostics.
func CheckUnit(ctx context.Context, env *Env, u Unit, rules []Rule) ([]SiteDiagnostics, error) {
	var out []SiteDiagnostics
	for _, site := range u.CallSites() {
		ds, err := Check(ctx, env, site, rules)
		if err != nil {
			return nil, err
		}
		if len(ds) > 0 {
			out = append(out, SiteDiagnostics{Site: site, Diagnostics: ds})
		}
	}
	return out, nil
}

// FixUnit fixes every call site of a unit and returns the number of edits
// applied.
func FixUnit(ctx context.Context, env *Env, u Unit, rules []Rule) (int, error) {
	total := 0
	for _, site := range u.CallSites() {
		n, err := Fix(ctx, env, site, rules)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
