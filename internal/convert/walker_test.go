package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kgbridge/internal/sparql"
	"github.com/roach88/kgbridge/internal/testutil"
)

func walk(t *testing.T, body string) (*sparql.Query, *Tracker, error) {
	t.Helper()
	q, err := sparql.Parse(testutil.Query(body))
	require.NoError(t, err)

	entity, relation := testPositions()
	tr := NewTracker()
	return q, tr, walkWhere(q.Where, entity, relation, tr)
}

func TestWalkWhere_RewritesAllPositions(t *testing.T) {
	q, _, err := walk(t, `SELECT ?x WHERE {
  ns:m.02mjmr ns:people.person.spouse_s ns:m.025s5v9 .
  ?x ns:people.person.nationality ns:m.09c7w0 .
}`)
	require.NoError(t, err)

	bgp := q.Where.Patterns[0].(*sparql.BGP)
	assert.Equal(t, "http://www.wikidata.org/entity/Q76", bgp.Triples[0].Subject.(*sparql.IRI).Value)
	assert.Equal(t, "http://www.wikidata.org/prop/direct/P26", bgp.Triples[0].Predicate.(*sparql.IRI).Value)
	assert.Equal(t, "http://www.wikidata.org/entity/Q13133", bgp.Triples[0].Object.(*sparql.IRI).Value)
	assert.Equal(t, &sparql.Variable{Name: "x"}, bgp.Triples[1].Subject)
	assert.Equal(t, "http://www.wikidata.org/entity/Q30", bgp.Triples[1].Object.(*sparql.IRI).Value)
}

func TestWalkWhere_SubjectFailureShortCircuits(t *testing.T) {
	_, tr, err := walk(t, `SELECT ?x WHERE { <http://example.org/x> ns:film.film.director ns:m.0nothere }`)

	assert.Equal(t, OutcomeUnknownEntity, OutcomeOf(err))
	assert.Empty(t, tr.MissingRelations, "predicate must not be looked at")
	assert.Empty(t, tr.MissingEntities, "object must not be looked at")
}

func TestWalkWhere_PredicateBeforeObject(t *testing.T) {
	_, tr, err := walk(t, `SELECT ?x WHERE { ns:m.02mjmr ns:film.film.director ns:m.0nothere }`)

	assert.Equal(t, OutcomeNoPropertyMapping, OutcomeOf(err))
	assert.True(t, tr.MissingRelations.Contains("film.film.director"))
	assert.Empty(t, tr.MissingEntities)
}

func TestWalkWhere_FirstTripleFailureStopsWalk(t *testing.T) {
	_, tr, err := walk(t, `SELECT ?x WHERE {
  ns:m.0first ns:people.person.nationality ?x .
  ns:m.0second ns:people.person.nationality ?x .
}`)

	assert.Equal(t, OutcomeNoEntityMapping, OutcomeOf(err))
	assert.Equal(t, []string{"0first"}, tr.MissingEntities.Sorted())
}

func TestWalkWhere_VariablesOnly(t *testing.T) {
	q, tr, err := walk(t, `SELECT ?s WHERE { ?s ?p ?o . ?o ?q ?r }`)
	require.NoError(t, err)

	bgp := q.Where.Patterns[0].(*sparql.BGP)
	assert.Equal(t, &sparql.Variable{Name: "s"}, bgp.Triples[0].Subject)
	assert.Equal(t, &sparql.Variable{Name: "p"}, bgp.Triples[0].Predicate)
	assert.Empty(t, tr.MissingEntities)
	assert.Empty(t, tr.MissingRelations)
}

func TestWalkWhere_NonBGPClausesUnsupported(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind string
	}{
		{"filter", `SELECT ?x WHERE { ?x ns:people.person.gender ?g . FILTER (?g = ns:m.05zppz) }`, "FILTER"},
		{"optional", `SELECT ?x WHERE { OPTIONAL { ns:m.02mjmr ns:people.person.nationality ?x } }`, "OPTIONAL"},
		{"union", `SELECT ?x WHERE { { ?x ns:a.b ?y } UNION { ?x ns:c.d ?y } }`, "UNION"},
		{"minus", `SELECT ?x WHERE { ?x ?p ?o MINUS { ?x ?p ?o } }`, "MINUS"},
		{"bind", `SELECT ?x WHERE { BIND (1 AS ?x) }`, "BIND"},
		{"values", `SELECT ?x WHERE { VALUES ?x { 1 2 } }`, "VALUES"},
		{"nested group", `SELECT ?x WHERE { { ns:m.02mjmr ns:people.person.nationality ?x } }`, "group"},
		{"subquery", `SELECT ?x WHERE { SELECT ?x WHERE { ?x ?p ?o } }`, "subquery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, tr, err := walk(t, tt.body)

			assert.Equal(t, OutcomeUnsupported, OutcomeOf(err))
			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.kind, ce.Term)
			assert.Empty(t, tr.MissingEntities)
			assert.Empty(t, tr.MissingRelations)
		})
	}
}

func TestWalkWhere_UnsupportedIgnoresContents(t *testing.T) {
	// The OPTIONAL holds an unmapped entity; it must not reach the missing set.
	_, tr, err := walk(t, `SELECT ?x WHERE {
  ns:m.02mjmr ns:people.person.nationality ?x .
  OPTIONAL { ns:m.0nothere ns:people.person.gender ?g }
}`)

	assert.Equal(t, OutcomeUnsupported, OutcomeOf(err))
	assert.Empty(t, tr.MissingEntities)
}

func TestWalkWhere_BGPFailureBeforeUnsupportedClause(t *testing.T) {
	_, _, err := walk(t, `SELECT ?x WHERE {
  ns:m.0nothere ns:people.person.nationality ?x .
  FILTER (?x != ns:m.09c7w0)
}`)

	assert.Equal(t, OutcomeNoEntityMapping, OutcomeOf(err))
}
