// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltype

import (
	"context"

	"go.uber.org/zap"

	"github.com/canonical/sqltype/internal/config"
	"github.com/canonical/sqltype/internal/explain"
	"github.com/canonical/sqltype/internal/infer"
	"github.com/canonical/sqltype/internal/lint"
)

type (
	CallSite        = lint.CallSite
	Unit            = lint.Unit
	TextCallSite    = lint.TextCallSite
	TextUnit        = lint.TextUnit
	Diagnostic      = lint.Diagnostic
	Edit            = lint.Edit
	SiteDiagnostics = lint.SiteDiagnostics
	Shape           = infer.Shape
	Rule            = lint.Rule
)

// Analyzer checks query preparation calls against the databases they are
// made on.
type Analyzer struct {
	cache *DatabaseCache
	env   *lint.Env
	rules []lint.Rule
}

type options struct {
	log    *zap.SugaredLogger
	budget explain.Budget
	rules  []lint.Rule
}

// Option configures an Analyzer.
type Option func(*options)

// WithLogger sets the logger of the Analyzer and everything it uses.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithBudget bounds the nullability prover.
func WithBudget(b explain.Budget) Option {
	return func(o *options) {
		o.budget = b
	}
}

// WithRules sets the rules run by Check and Fix. By default every rule is
// run and named parameters must use the ':' prefix.
func WithRules(rules ...lint.Rule) Option {
	return func(o *options) {
		o.rules = rules
	}
}

// New returns an Analyzer resolving databases with resolve.
func New(resolve DatabaseResolver, opts ...Option) *Analyzer {
	o := &options{
		log:    zap.NewNop().Sugar(),
		budget: explain.DefaultBudget,
		rules:  lint.DefaultRules(':'),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = zap.NewNop().Sugar()
	}
	cache := NewDatabaseCache(resolve, o.log)
	return &Analyzer{
		cache: cache,
		env: &lint.Env{
			Handles:  cache,
			Resolver: infer.NewResolver(infer.WithLogger(o.log), infer.WithBudget(o.budget)),
			Log:      o.log,
		},
		rules: o.rules,
	}
}

// NewFromConfig returns an Analyzer using the databases, rules and prover
// budget of cfg.
func NewFromConfig(cfg *config.Config, log *zap.SugaredLogger) *Analyzer {
	resolve := func(ctx context.Context, req Request) (Database, error) {
		path, err := cfg.DatabasePath(req.Name)
		if err != nil {
			return Database{}, err
		}
		return Database{Path: path}, nil
	}
	return New(resolve,
		WithLogger(log),
		WithBudget(explain.Budget{MaxSteps: cfg.Prover.MaxSteps, MaxBranches: cfg.Prover.MaxBranches}),
		WithRules(Rules(cfg)...),
	)
}

// Rules returns the rules enabled in cfg.
func Rules(cfg *config.Config) []lint.Rule {
	var rules []lint.Rule
	if cfg.Rules.ValidQuery {
		rules = append(rules, lint.ValidQueryRule{})
	}
	if cfg.Rules.TypedInput {
		rules = append(rules, lint.InputRule{})
	}
	if cfg.Rules.TypedResult {
		rules = append(rules, lint.ResultRule{})
	}
	if cfg.Rules.ParameterPrefix {
		rules = append(rules, lint.PrefixRule{Prefix: cfg.Prefix()})
	}
	return rules
}

// Infer returns the parameter and column shape of query on the named
// database of a source file.
func (a *Analyzer) Infer(ctx context.Context, filename, database, query string) (*Shape, error) {
	h, err := a.cache.Handle(ctx, filename, database)
	if err != nil {
		return nil, err
	}
	return a.env.Resolver.Infer(ctx, h, query)
}

// Check runs the rules on a call site.
func (a *Analyzer) Check(ctx context.Context, site CallSite) ([]Diagnostic, error) {
	return lint.Check(ctx, a.env, site, a.rules)
}

// Fix applies the fixes of the rules to a call site until none remain. It
// returns the number of edits applied.
func (a *Analyzer) Fix(ctx context.Context, site CallSite) (int, error) {
	return lint.Fix(ctx, a.env, site, a.rules)
}

// CheckUnit runs the rules on every call site of a unit.
func (a *Analyzer) CheckUnit(ctx context.Context, u Unit) ([]SiteDiagnostics, error) {
	return lint.CheckUnit(ctx, a.env, u, a.rules)
}

// FixUnit fixes every call site of a unit.
func (a *Analyzer) FixUnit(ctx context.Context, u Unit) (int, error) {
	return lint.FixUnit(ctx, a.env, u, a.rules)
}

// Close closes the databases the Analyzer opened.
func (a *Analyzer) Close() error {
	return a.cache.Close()
}
