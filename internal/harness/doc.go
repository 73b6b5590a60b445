// Package harness runs conversion scenarios for conformance testing.
//
// A scenario is a YAML file holding inline mapping tables, a list of
// dataset examples and assertions over the batch outcome:
//
//	name: obama-nationality
//	entities:
//	  02mjmr: Q76
//	relations:
//	  people.person.nationality: P27
//	examples:
//	  - question: what is barack obama's nationality?
//	    parses:
//	      - |
//	        PREFIX ns: <http://rdf.freebase.com/ns/>
//	        SELECT ?x WHERE { ns:m.02mjmr ns:people.person.nationality ?x . }
//	    expect:
//	      converted: true
//	      contains: ["wd:Q76 wdt:P27 ?x ."]
//	assertions:
//	  - type: outcome_count
//	    outcome: success
//	    count: 1
//
// Run converts the examples with the real converter, records the run into
// an in-memory store with a deterministic clock and run ids, and builds the
// attempt trace from what the store read back. Golden snapshots of that
// trace and the output records are compared with goldie in tests and with
// CompareGolden from the CLI.
package harness
