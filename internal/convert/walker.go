package convert

import (
	"fmt"

	"github.com/roach88/kgbridge/internal/sparql"
)

// walkWhere maps every triple of every basic graph pattern in where, in
// document order: subject, predicate, object. The first failure stops the
// walk. Any clause other than a basic graph pattern fails as Unsupported
// without its contents being looked at.
func walkWhere(where *sparql.Group, entity, relation position, tr *Tracker) error {
	for _, pattern := range where.Patterns {
		bgp, ok := pattern.(*sparql.BGP)
		if !ok {
			return &Error{
				Code:    OutcomeUnsupported,
				Term:    clauseKind(pattern),
				Message: "WHERE clause is not a basic graph pattern",
			}
		}
		for _, t := range bgp.Triples {
			if err := mapTerm(t.Subject, entity, tr.MissingEntities); err != nil {
				return err
			}
			if err := mapTerm(t.Predicate, relation, tr.MissingRelations); err != nil {
				return err
			}
			if err := mapTerm(t.Object, entity, tr.MissingEntities); err != nil {
				return err
			}
		}
	}
	return nil
}

func clauseKind(p sparql.Pattern) string {
	switch p.(type) {
	case *sparql.Filter:
		return "FILTER"
	case *sparql.Optional:
		return "OPTIONAL"
	case *sparql.Union:
		return "UNION"
	case *sparql.Minus:
		return "MINUS"
	case *sparql.Bind:
		return "BIND"
	case *sparql.Values:
		return "VALUES"
	case *sparql.SubGroup:
		return "group"
	case *sparql.SubSelect:
		return "subquery"
	default:
		return fmt.Sprintf("%T", p)
	}
}
