package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kgbridge/internal/mapping"
	"github.com/roach88/kgbridge/internal/sparql"
	"github.com/roach88/kgbridge/internal/testutil"
)

func testPositions() (position, position) {
	ns := mapping.DefaultNamespaces()
	tables := testutil.Tables()
	return entityPosition(ns, tables.Entities), relationPosition(ns, tables.Relations)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, kindIRI, classify(&sparql.IRI{Value: "http://x"}))
	assert.Equal(t, kindVariable, classify(&sparql.Variable{Name: "x"}))
	assert.Equal(t, kindOther, classify(&sparql.Literal{Lexical: "x"}))
	assert.Equal(t, kindOther, classify(&sparql.BlankNode{Label: "b"}))
	assert.Equal(t, kindOther, classify(nil))
}

func TestMapTerm_EntityRewritten(t *testing.T) {
	entity, _ := testPositions()
	missing := make(MissingSet)
	iri := &sparql.IRI{Value: mapping.FreebaseEntity + "02mjmr"}

	require.NoError(t, mapTerm(iri, entity, missing))
	assert.Equal(t, mapping.WikidataEntity+"Q76", iri.Value)
	assert.Empty(t, missing)
}

func TestMapTerm_RelationRewritten(t *testing.T) {
	_, relation := testPositions()
	iri := &sparql.IRI{Value: mapping.FreebaseRelation + "people.person.nationality"}

	require.NoError(t, mapTerm(iri, relation, make(MissingSet)))
	assert.Equal(t, mapping.WikidataRelation+"P27", iri.Value)
}

func TestMapTerm_VariableUntouched(t *testing.T) {
	entity, relation := testPositions()
	v := &sparql.Variable{Name: "x"}

	require.NoError(t, mapTerm(v, entity, make(MissingSet)))
	require.NoError(t, mapTerm(v, relation, make(MissingSet)))
	assert.Equal(t, &sparql.Variable{Name: "x"}, v)
}

func TestMapTerm_OutsideLegacyNamespace(t *testing.T) {
	entity, relation := testPositions()

	tests := []struct {
		name string
		pos  position
		iri  string
		code Outcome
	}{
		{"foreign entity", entity, "http://example.org/Obama", OutcomeUnknownEntity},
		{"relation in entity position", entity, mapping.FreebaseRelation + "people.person.gender", OutcomeUnknownEntity},
		{"foreign relation", relation, "http://www.w3.org/2000/01/rdf-schema#label", OutcomeUnknownProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			missing := make(MissingSet)
			iri := &sparql.IRI{Value: tt.iri}

			err := mapTerm(iri, tt.pos, missing)
			require.Error(t, err)
			assert.Equal(t, tt.code, OutcomeOf(err))

			var ce *Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.iri, ce.Term)
			assert.Equal(t, tt.iri, iri.Value, "failed IRI must not be rewritten")
			assert.Empty(t, missing)
		})
	}
}

func TestMapTerm_NoMappingAddsToMissingOnce(t *testing.T) {
	entity, relation := testPositions()
	entities := make(MissingSet)
	relations := make(MissingSet)

	for i := 0; i < 3; i++ {
		err := mapTerm(&sparql.IRI{Value: mapping.FreebaseEntity + "0unknown"}, entity, entities)
		assert.Equal(t, OutcomeNoEntityMapping, OutcomeOf(err))

		err = mapTerm(&sparql.IRI{Value: mapping.FreebaseRelation + "film.film.director"}, relation, relations)
		assert.Equal(t, OutcomeNoPropertyMapping, OutcomeOf(err))
	}

	assert.Equal(t, []string{"0unknown"}, entities.Sorted())
	assert.Equal(t, []string{"film.film.director"}, relations.Sorted())
}

func TestMapTerm_UnsupportedTerms(t *testing.T) {
	entity, relation := testPositions()

	terms := []sparql.Term{
		&sparql.Literal{Lexical: "Obama", Lang: "en"},
		&sparql.BlankNode{Label: "b0"},
		nil,
	}
	for _, term := range terms {
		err := mapTerm(term, entity, make(MissingSet))
		assert.Equal(t, OutcomeUnsupportedNodeType, OutcomeOf(err), "term %v", term)

		err = mapTerm(term, relation, make(MissingSet))
		assert.Equal(t, OutcomeUnsupportedPropertyType, OutcomeOf(err), "term %v", term)
	}
}

func TestDescribeTerm(t *testing.T) {
	assert.Equal(t, `"Obama"`, describeTerm(&sparql.Literal{Lexical: "Obama"}))
	assert.Equal(t, "_:b0", describeTerm(&sparql.BlankNode{Label: "b0"}))
	assert.Equal(t, "<nil>", describeTerm(nil))
}
