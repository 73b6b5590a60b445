// Package sparql parses SPARQL 1.1 SELECT and ASK queries into a mutable
// query tree and generates query text back from that tree.
//
// The package covers the query shapes found in question-answering datasets
// over Freebase-style graphs: a prologue of PREFIX/BASE declarations, a
// SELECT or ASK form, a WHERE group graph pattern and the usual solution
// modifiers. It is deliberately a syntax layer only; it never evaluates a
// query.
//
// TREE SHAPE:
//
//	Query
//	  Prefixes   []Prefix
//	  Projection []Projection          (SELECT only)
//	  Where      *Group
//	                Patterns []Pattern   BGP | Filter | Optional | Union | ...
//	                           BGP.Triples []*Triple{Subject, Predicate, Object Term}
//	  GroupBy / Having / OrderBy / Limit / Offset
//
// SEALED INTERFACES:
//
// Term, Pattern and Expression are sealed with marker methods. Only types in
// this package implement them, so consumers can switch exhaustively and treat
// the default branch as "a kind this code does not know about".
//
// A sub-select is always the only pattern of its Group; the group's braces
// are the sub-select's braces.
//
// Adjacent triples in a group are merged into one *BGP. Any other clause
// (FILTER, OPTIONAL, a nested group) ends the current BGP, so
//
//	{ ?a ?b ?c . FILTER (?c > 1) ?c ?d ?e }
//
// parses into [BGP, Filter, BGP].
//
// ALIASING:
//
// Every Triple owns its terms. Shorthand forms (';' and ',') copy the shared
// subject and predicate instead of sharing pointers, so rewriting one triple's
// IRI in place never changes another triple.
//
// GENERATION:
//
// Generate writes one clause per line. IRIs are compacted to prefixed names
// using the query's own prologue when the local part is a plain name;
// everything else is written as <iri>. Parse(Generate(q)) yields a tree equal
// to q.
package sparql
