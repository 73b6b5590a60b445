package convert

import (
	"fmt"
	"strings"

	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/sparql"
)

// termKind is the closed classification every position is checked against.
// kindOther is the catch-all: any term the parser learns to produce that is
// neither an IRI nor a variable lands there and is rejected.
type termKind int

const (
	kindIRI termKind = iota
	kindVariable
	kindOther
)

func classify(t sparql.Term) termKind {
	switch t.(type) {
	case *sparql.IRI:
		return kindIRI
	case *sparql.Variable:
		return kindVariable
	default:
		return kindOther
	}
}

// position describes one side of the triple: where legacy IRIs come from,
// where they go and how failures are reported.
type position struct {
	name        string
	legacy      string
	successor   string
	table       *mapping.Table
	unknown     Outcome
	noMapping   Outcome
	unsupported Outcome
}

func entityPosition(ns mapping.Namespaces, table *mapping.Table) position {
	return position{
		name:        "entity",
		legacy:      ns.LegacyEntity,
		successor:   ns.SuccessorEntity,
		table:       table,
		unknown:     OutcomeUnknownEntity,
		noMapping:   OutcomeNoEntityMapping,
		unsupported: OutcomeUnsupportedNodeType,
	}
}

func relationPosition(ns mapping.Namespaces, table *mapping.Table) position {
	return position{
		name:        "relation",
		legacy:      ns.LegacyRelation,
		successor:   ns.SuccessorRelation,
		table:       table,
		unknown:     OutcomeUnknownProperty,
		noMapping:   OutcomeNoPropertyMapping,
		unsupported: OutcomeUnsupportedPropertyType,
	}
}

// mapTerm rewrites t in place when it is a mapped legacy IRI. Variables are
// left alone. An unmapped local identifier is added to missing.
func mapTerm(t sparql.Term, pos position, missing MissingSet) error {
	switch classify(t) {
	case kindVariable:
		return nil

	case kindIRI:
		iri := t.(*sparql.IRI)
		if !strings.HasPrefix(iri.Value, pos.legacy) {
			return &Error{
				Code:    pos.unknown,
				Term:    iri.Value,
				Message: fmt.Sprintf("%s IRI outside legacy namespace %s", pos.name, pos.legacy),
			}
		}
		local := strings.TrimPrefix(iri.Value, pos.legacy)
		mapped, ok := pos.table.Lookup(local)
		if !ok {
			missing.Add(local)
			return &Error{
				Code:    pos.noMapping,
				Term:    iri.Value,
				Message: fmt.Sprintf("no %s mapping for %q", pos.name, local),
			}
		}
		iri.Value = pos.successor + mapped
		return nil

	default:
		return &Error{
			Code:    pos.unsupported,
			Term:    describeTerm(t),
			Message: fmt.Sprintf("unsupported term in %s position", pos.name),
		}
	}
}

func describeTerm(t sparql.Term) string {
	switch v := t.(type) {
	case *sparql.Literal:
		return fmt.Sprintf("%q", v.Lexical)
	case *sparql.BlankNode:
		return "_:" + v.Label
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", t)
	}
}
