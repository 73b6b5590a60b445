// Package testutil holds fixtures shared by tests across packages: small
// Freebase to Wikidata tables, dataset-style queries and deterministic
// clock and ID sources.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/kgbridge/internal/mapping"
)

// FreebasePrologue declares the prefix every dataset query uses.
const FreebasePrologue = "PREFIX ns: <http://rdf.freebase.com/ns/>\n"

// EntityEntries maps Freebase mids (without the "m." namespace part) to
// Wikidata items.
var EntityEntries = map[string]string{
	"02mjmr":  "Q76",      // Barack Obama
	"09c7w0":  "Q30",      // United States of America
	"0d3k14":  "Q9696",    // John F. Kennedy
	"05zppz":  "Q6581097", // male
	"02zsn":   "Q6581072", // female
	"03_r3":   "Q96",      // Mexico
	"0f8l9c":  "Q142",     // France
	"05qtj":   "Q90",      // Paris
	"025s5v9": "Q13133",   // Michelle Obama
	"0gzh":    "Q91",      // Abraham Lincoln
}

// RelationEntries maps Freebase relations to Wikidata properties.
var RelationEntries = map[string]string{
	"people.person.nationality":           "P27",
	"people.person.gender":                "P21",
	"people.person.spouse_s":              "P26",
	"people.person.place_of_birth":        "P19",
	"people.person.sibling_s":             "P3373",
	"people.sibling_relationship.sibling": "P3373",
	"location.country.capital":            "P36",
}

// Tables returns fresh tables built from EntityEntries and RelationEntries.
func Tables() *mapping.Tables {
	return &mapping.Tables{
		Entities:  mapping.NewTable(EntityEntries),
		Relations: mapping.NewTable(RelationEntries),
	}
}

// Query prepends FreebasePrologue to body.
func Query(body string) string {
	return FreebasePrologue + body
}

// WriteFile writes content under dir and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WebQSPDataset is a three-question dataset in the WebQSP layout. The
// second question's first parse has an unmapped entity and its second parse
// converts; the third question never converts.
const WebQSPDataset = `{
  "Version": "1.0",
  "Questions": [
    {
      "QuestionId": "WebQTest-0",
      "RawQuestion": "what is barack obama's nationality?",
      "Parses": [
        {"ParseId": "WebQTest-0.P0", "Sparql": "PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT DISTINCT ?x\nWHERE {\nFILTER (?x != ns:m.02mjmr)\nns:m.02mjmr ns:people.person.nationality ?x .\n}"}
      ]
    },
    {
      "QuestionId": "WebQTest-1",
      "RawQuestion": "who is jfk's sibling?",
      "Parses": [
        {"ParseId": "WebQTest-1.P0", "Sparql": "PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT DISTINCT ?x\nWHERE {\nns:m.0unmapped ns:people.person.sibling_s ?y .\n?y ns:people.sibling_relationship.sibling ?x .\n}"},
        {"ParseId": "WebQTest-1.P1", "Sparql": "PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT DISTINCT ?x\nWHERE {\nns:m.0d3k14 ns:people.person.sibling_s ?y .\n?y ns:people.sibling_relationship.sibling ?x .\n}"}
      ]
    },
    {
      "QuestionId": "WebQTest-2",
      "RawQuestion": "when did lincoln die?",
      "Parses": [
        {"ParseId": "WebQTest-2.P0", "Sparql": "PREFIX ns: <http://rdf.freebase.com/ns/>\nSELECT DISTINCT ?x\nWHERE {\nns:m.0gzh ns:people.deceased_person.date_of_death ?x .\n}"}
      ]
    }
  ]
}`
