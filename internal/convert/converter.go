// Package convert rewrites legacy-graph SPARQL into successor-graph SPARQL.
//
// A conversion runs preprocess, parse, walk, prologue rewrite and generate.
// Every failure stops at the Converter boundary and becomes an Outcome:
// callers see a recorded outcome and an absent result, never a propagated
// error or panic.
//
// The walk rewrites IRIs in place in a query tree that is parsed fresh for
// each attempt and never shared between attempts.
package convert

import (
	"fmt"
	"log/slog"

	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/preprocess"
	"github.com/roach88/kgbridge/internal/sparql"
)

// Attempt is the result of converting one query.
type Attempt struct {
	// QueryID identifies the raw input text (see QueryID).
	QueryID string

	// Output is the generated query; empty unless Outcome is success.
	Output string

	Outcome Outcome

	// Err describes the failure; nil on success.
	Err error
}

// OK reports whether the attempt converted.
func (a Attempt) OK() bool {
	return a.Outcome == OutcomeSuccess
}

// Converter converts single queries against fixed tables and namespaces.
// It holds no per-query state and is safe for concurrent use as long as
// each goroutine passes its own Tracker.
type Converter struct {
	ns        mapping.Namespaces
	entity    position
	relation  position
	normalize func(string) string
}

// Option configures a Converter.
type Option func(*Converter)

// WithNamespaces overrides the default namespaces. Empty fields keep their
// defaults.
func WithNamespaces(ns mapping.Namespaces) Option {
	return func(c *Converter) {
		c.ns = ns.WithDefaults()
	}
}

// WithPreprocessor replaces preprocess.Normalize.
func WithPreprocessor(fn func(string) string) Option {
	return func(c *Converter) {
		c.normalize = fn
	}
}

// New creates a Converter over the given tables.
func New(tables *mapping.Tables, opts ...Option) (*Converter, error) {
	if tables == nil {
		return nil, fmt.Errorf("mapping tables are required")
	}
	c := &Converter{
		ns:        mapping.DefaultNamespaces(),
		normalize: preprocess.Normalize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.ns.Validate(); err != nil {
		return nil, fmt.Errorf("invalid namespaces: %w", err)
	}
	c.entity = entityPosition(c.ns, tables.Entities)
	c.relation = relationPosition(c.ns, tables.Relations)
	return c, nil
}

// Namespaces returns the namespaces in effect.
func (c *Converter) Namespaces() mapping.Namespaces {
	return c.ns
}

// Attempt converts query and records exactly one outcome in tr. Missing
// identifiers met during the walk are added to tr's missing sets. A nil tr
// discards everything.
func (c *Converter) Attempt(query string, tr *Tracker) Attempt {
	if tr == nil {
		tr = NewTracker()
	}
	a := Attempt{QueryID: QueryID(query)}

	out, err := c.convert(query, tr)
	a.Outcome = OutcomeOf(err)
	if err != nil {
		a.Err = err
		slog.Debug("query not converted", "query_id", a.QueryID, "outcome", a.Outcome, "error", err)
	} else {
		a.Output = out
	}

	tr.Record(a.Outcome)
	return a
}

// Convert is Attempt reduced to the converted text and whether there is one.
func (c *Converter) Convert(query string, tr *Tracker) (string, bool) {
	a := c.Attempt(query, tr)
	return a.Output, a.OK()
}

func (c *Converter) convert(query string, tr *Tracker) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = &Error{Code: OutcomeUnknown, Message: fmt.Sprintf("panic during conversion: %v", r)}
		}
	}()

	q, err := sparql.Parse(c.normalize(query))
	if err != nil {
		return "", newUnknownError("parse", err)
	}

	if q.Where != nil {
		if err := walkWhere(q.Where, c.entity, c.relation, tr); err != nil {
			return "", err
		}
	}

	c.rewritePrologue(q)

	out, err = sparql.Generate(q)
	if err != nil {
		return "", newUnknownError("generate", err)
	}
	return out, nil
}

// rewritePrologue drops declarations of the legacy namespaces and of the
// successor labels, collapses redeclared prefixes to their effective
// binding, and declares the successor namespaces last.
func (c *Converter) rewritePrologue(q *sparql.Query) {
	effective := q.PrefixMap()
	seen := make(map[string]bool, len(q.Prefixes))
	kept := make([]sparql.Prefix, 0, len(q.Prefixes)+2)

	for _, p := range q.Prefixes {
		switch {
		case c.ns.IsLegacy(p.IRI) || c.ns.IsLegacy(effective[p.Name]):
		case p.Name == c.ns.EntityLabel || p.Name == c.ns.RelationLabel:
		case seen[p.Name]:
		default:
			seen[p.Name] = true
			kept = append(kept, sparql.Prefix{Name: p.Name, IRI: effective[p.Name]})
		}
	}

	q.Prefixes = append(kept,
		sparql.Prefix{Name: c.ns.EntityLabel, IRI: c.ns.SuccessorEntity},
		sparql.Prefix{Name: c.ns.RelationLabel, IRI: c.ns.SuccessorRelation},
	)
}
