// Package preprocess rewrites WebQSP-dialect SPARQL into text the sparql
// package can parse.
//
// Every rule is a literal or regular-expression substitution. No clause
// analysis happens here: a dialect variant the rules do not match is left
// alone and fails later at parse time.
package preprocess

import (
	"regexp"
	"strings"
)

// XSDPrologue is prepended to every query; the dialect uses xsd: datatypes
// without declaring the prefix.
const XSDPrologue = "PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>\n"

// Rule is one textual rewrite.
type Rule struct {
	Name  string
	Apply func(string) string
}

var (
	// FILTER (?x != ns:m.0d3k14)
	topicFilterPattern = regexp.MustCompile(`FILTER\s*\(\s*\?\w+\s*!=\s*ns:[A-Za-z0-9_.\-]+\s*\)`)

	// FILTER (!isLiteral(?x) OR lang(?x) = '' OR langMatches(lang(?x), 'en'))
	langFilterEqPattern = regexp.MustCompile(
		`FILTER\s*\(\s*!\s*isLiteral\s*\(\s*\?\w+\s*\)` +
			`\s+OR\s+lang\s*\(\s*\?\w+\s*\)\s*=\s*''` +
			`\s+OR\s+langMatches\s*\(\s*lang\s*\(\s*\?\w+\s*\)\s*,\s*'en'\s*\)\s*\)`)

	// FILTER (!isLiteral(?x) OR langMatches(lang(?x), '') OR langMatches(lang(?x), 'en'))
	langFilterMatchPattern = regexp.MustCompile(
		`FILTER\s*\(\s*!\s*isLiteral\s*\(\s*\?\w+\s*\)` +
			`\s+OR\s+langMatches\s*\(\s*lang\s*\(\s*\?\w+\s*\)\s*,\s*''\s*\)` +
			`\s+OR\s+langMatches\s*\(\s*lang\s*\(\s*\?\w+\s*\)\s*,\s*'en'\s*\)\s*\)`)

	newlineRunPattern = regexp.MustCompile(`\n{2,}`)
	orKeywordPattern  = regexp.MustCompile(`(\s)OR(\s)`)

	// HAVING COUNT(?x) > 1
	havingPattern = regexp.MustCompile(`HAVING\s+(COUNT\s*\([^()]*\)\s*(?:<=|>=|!=|=|<|>)\s*\d+)`)
)

// Rules lists the rewrites in the order Normalize applies them. Later rules
// see the output of earlier ones.
var Rules = []Rule{
	{Name: "declare-xsd", Apply: func(s string) string {
		return XSDPrologue + s
	}},
	{Name: "unescape-newlines", Apply: func(s string) string {
		return strings.ReplaceAll(s, `\n`, "\n")
	}},
	{Name: "strip-topic-filter", Apply: func(s string) string {
		return topicFilterPattern.ReplaceAllString(s, "")
	}},
	{Name: "strip-language-filters", Apply: func(s string) string {
		s = langFilterEqPattern.ReplaceAllString(s, "")
		return langFilterMatchPattern.ReplaceAllString(s, "")
	}},
	{Name: "collapse-newlines", Apply: func(s string) string {
		return newlineRunPattern.ReplaceAllString(s, "\n")
	}},
	{Name: "or-operator", Apply: func(s string) string {
		return orKeywordPattern.ReplaceAllString(s, "${1}||${2}")
	}},
	{Name: "parenthesise-having", Apply: func(s string) string {
		return havingPattern.ReplaceAllString(s, "HAVING ($1)")
	}},
}

// Normalize applies every rule in order.
func Normalize(text string) string {
	for _, r := range Rules {
		text = r.Apply(text)
	}
	return text
}

// lookup returns the rule with the given name.
func lookup(name string) (Rule, bool) {
	for _, r := range Rules {
		if r.Name == name {
			return r, true
		}
	}
	return Rule{}, false
}
