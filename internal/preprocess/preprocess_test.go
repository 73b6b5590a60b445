package preprocess

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kgbridge/internal/sparql"
)

// webqspQuery is a query as stored in the dataset: escaped newlines, a
// topic-entity filter and a language filter.
const webqspQuery = `PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT DISTINCT ?x\nWHERE {\nFILTER (?x != ns:m.0d3k14)\nFILTER (!isLiteral(?x) OR lang(?x) = '' OR langMatches(lang(?x), 'en'))\nns:m.0d3k14 ns:people.person.sibling_s ?y .\n?y ns:people.sibling_relationship.sibling ?x .\n}`

func TestNormalize_WebQSPQuery(t *testing.T) {
	got := Normalize(webqspQuery)

	expected := "PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>\n" +
		"PREFIX ns: <http://rdf.freebase.com/ns/>\n" +
		"SELECT DISTINCT ?x\n" +
		"WHERE {\n" +
		"ns:m.0d3k14 ns:people.person.sibling_s ?y .\n" +
		"?y ns:people.sibling_relationship.sibling ?x .\n" +
		"}"
	assert.Equal(t, expected, got)
}

func TestNormalize_OutputParses(t *testing.T) {
	q, err := sparql.Parse(Normalize(webqspQuery))
	require.NoError(t, err)

	require.Len(t, q.Where.Patterns, 1)
	bgp, ok := q.Where.Patterns[0].(*sparql.BGP)
	require.True(t, ok, "filters should have been stripped, got %T", q.Where.Patterns[0])
	assert.Len(t, bgp.Triples, 2)
}

func TestNormalize_TopicFilterRemoved(t *testing.T) {
	got := Normalize("SELECT ?x WHERE {\nFILTER (?x != ns:m.012345)\n?x ns:a.b ns:m.0c }")

	assert.NotContains(t, got, "FILTER")
	assert.NotContains(t, got, "m.012345")
}

func TestNormalize_PlainTextIsIdempotent(t *testing.T) {
	plain := "PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT ?x WHERE {\n  ?x ns:type.object.name \"Obama\"@en .\n}"
	assert.Equal(t, XSDPrologue+plain, Normalize(plain))

	withBlankLines := "SELECT ?x WHERE {\n\n\n  ?x ns:a.b ?y .\n\n}"
	assert.Equal(t, XSDPrologue+"SELECT ?x WHERE {\n  ?x ns:a.b ?y .\n}", Normalize(withBlankLines))
}

func TestRules_Order(t *testing.T) {
	names := make([]string, len(Rules))
	for i, r := range Rules {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"declare-xsd",
		"unescape-newlines",
		"strip-topic-filter",
		"strip-language-filters",
		"collapse-newlines",
		"or-operator",
		"parenthesise-having",
	}, names)
}

func TestRules_Individually(t *testing.T) {
	tests := []struct {
		rule string
		in   string
		want string
	}{
		{"declare-xsd", "ASK {}", XSDPrologue + "ASK {}"},
		{"unescape-newlines", `a\nb\n`, "a\nb\n"},
		{"strip-topic-filter", "x FILTER (?x != ns:m.0d3k14) y", "x  y"},
		{"strip-topic-filter", "FILTER(?y!=ns:m.01)", ""},
		{"strip-topic-filter", "FILTER (?x != ?y)", "FILTER (?x != ?y)"},
		{"strip-topic-filter", `FILTER (?x != "m.01")`, `FILTER (?x != "m.01")`},
		{
			"strip-language-filters",
			"FILTER (!isLiteral(?x) OR lang(?x) = '' OR langMatches(lang(?x), 'en'))",
			"",
		},
		{
			"strip-language-filters",
			"FILTER ( !isLiteral(?name) OR langMatches(lang(?name), '') OR langMatches(lang(?name), 'en') )",
			"",
		},
		{
			"strip-language-filters",
			"FILTER (!isLiteral(?x) OR langMatches(lang(?x), 'fr'))",
			"FILTER (!isLiteral(?x) OR langMatches(lang(?x), 'fr'))",
		},
		{"collapse-newlines", "a\n\n\nb\nc\n\n", "a\nb\nc\n"},
		{"or-operator", "FILTER (?a = 1 OR ?b = 2)", "FILTER (?a = 1 || ?b = 2)"},
		{"or-operator", "ORDER BY ?x", "ORDER BY ?x"},
		{"or-operator", "?a = 1\nOR ?b = 2", "?a = 1\n|| ?b = 2"},
		{"parenthesise-having", "HAVING COUNT(?x) > 1", "HAVING (COUNT(?x) > 1)"},
		{"parenthesise-having", "HAVING COUNT(DISTINCT ?x) >= 10", "HAVING (COUNT(DISTINCT ?x) >= 10)"},
		{"parenthesise-having", "HAVING (COUNT(?x) > 1)", "HAVING (COUNT(?x) > 1)"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			rule, ok := lookup(tt.rule)
			require.True(t, ok)
			assert.Equal(t, tt.want, rule.Apply(tt.in))
		})
	}
}

func TestRuleLookup_Unknown(t *testing.T) {
	_, ok := lookup("no-such-rule")
	assert.False(t, ok)
}

func TestNormalize_HavingAndOrParse(t *testing.T) {
	raw := `PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT ?x WHERE {\n?x ns:a.b ?y .\nFILTER (?y = 1 OR ?y = 2)\n}\nGROUP BY ?x\nHAVING COUNT(?y) > 1`

	out := Normalize(raw)
	assert.True(t, strings.HasSuffix(out, "HAVING (COUNT(?y) > 1)"))

	q, err := sparql.Parse(out)
	require.NoError(t, err)
	assert.Len(t, q.GroupBy, 1)
	assert.Len(t, q.Having, 1)
}
