package sparql

// Well-known IRIs used by the parser for shorthand syntax.
const (
	XSDNamespace = "http://www.w3.org/2001/XMLSchema#"
	RDFType      = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	XSDInteger = XSDNamespace + "integer"
	XSDDecimal = XSDNamespace + "decimal"
	XSDDouble  = XSDNamespace + "double"
	XSDBoolean = XSDNamespace + "boolean"
)

// Form identifies the query form.
type Form int

const (
	FormSelect Form = iota
	FormAsk
)

func (f Form) String() string {
	switch f {
	case FormSelect:
		return "SELECT"
	case FormAsk:
		return "ASK"
	default:
		return "UNKNOWN"
	}
}

// Prefix is one PREFIX declaration from the prologue.
type Prefix struct {
	Name string // without the trailing ':'
	IRI  string
}

// Query is the parsed representation of a SELECT or ASK query.
//
// A Query is owned by whoever parsed it. The converter mutates IRIs in place
// and then regenerates text, so a Query must not be shared between
// conversions.
type Query struct {
	Base     string
	Prefixes []Prefix
	Form     Form

	// SELECT clause. Star is true for SELECT *.
	Distinct   bool
	Reduced    bool
	Star       bool
	Projection []Projection

	// Where is nil only for trees built by hand; Parse always sets it.
	Where *Group

	GroupBy []GroupCondition
	Having  []Expression
	OrderBy []OrderCondition
	Limit   *int64
	Offset  *int64
}

// Projection is a projected variable, optionally bound to an expression
// as in (COUNT(?x) AS ?n).
type Projection struct {
	Var  *Variable
	Expr Expression // nil for a plain variable
}

// GroupCondition is one GROUP BY key.
type GroupCondition struct {
	Expr Expression
	As   *Variable // set for (expr AS ?v)
}

// OrderDirection is the direction of an ORDER BY condition.
type OrderDirection int

const (
	OrderDefault OrderDirection = iota
	OrderAsc
	OrderDesc
)

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Direction OrderDirection
	Expr      Expression
}

// PrefixMap returns the effective prefix bindings; later declarations of the
// same name win.
func (q *Query) PrefixMap() map[string]string {
	m := make(map[string]string, len(q.Prefixes))
	for _, p := range q.Prefixes {
		m[p.Name] = p.IRI
	}
	return m
}

// Group is a group graph pattern: the body of a WHERE clause or of any
// nested { ... } block.
type Group struct {
	Patterns []Pattern
}

// Pattern is one clause of a group graph pattern.
//
// This is a sealed interface - only types in this package implement it.
//
// Pattern types:
//   - BGP: a run of adjacent triple patterns
//   - Filter, Bind, Values: non-triple clauses
//   - Optional, Minus, Union, SubGroup, SubSelect: nested groups
type Pattern interface {
	patternNode()
}

// BGP is a basic graph pattern: an ordered run of triple patterns.
type BGP struct {
	Triples []*Triple
}

func (*BGP) patternNode() {}

// Filter is a FILTER clause.
type Filter struct {
	Expr Expression
}

func (*Filter) patternNode() {}

// Optional is an OPTIONAL { ... } clause.
type Optional struct {
	Group *Group
}

func (*Optional) patternNode() {}

// Minus is a MINUS { ... } clause.
type Minus struct {
	Group *Group
}

func (*Minus) patternNode() {}

// Union is { ... } UNION { ... } [UNION { ... }]*.
type Union struct {
	Groups []*Group
}

func (*Union) patternNode() {}

// SubGroup is a nested { ... } block that is not part of a UNION.
type SubGroup struct {
	Group *Group
}

func (*SubGroup) patternNode() {}

// SubSelect is a nested SELECT query.
type SubSelect struct {
	Query *Query
}

func (*SubSelect) patternNode() {}

// Bind is BIND (expr AS ?v).
type Bind struct {
	Expr Expression
	Var  *Variable
}

func (*Bind) patternNode() {}

// Values is an inline VALUES block. A nil entry in a row is UNDEF.
type Values struct {
	Vars []*Variable
	Rows [][]Term
}

func (*Values) patternNode() {}

// Triple is a triple pattern. Subject and Object are entity positions,
// Predicate is the relation position.
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// Term is an RDF term or a variable.
//
// This is a sealed interface - only types in this package implement it.
type Term interface {
	termNode()
}

// IRI is an absolute or relative IRI. Prefixed names are expanded at parse
// time, so Value is always the full IRI.
type IRI struct {
	Value string
}

func (*IRI) termNode() {}

// Variable is ?name or $name; Name excludes the sigil.
type Variable struct {
	Name string
}

func (*Variable) termNode() {}

// Literal is an RDF literal. Bare literals (numbers, booleans) are written
// without quotes and carry their implied datatype.
type Literal struct {
	Lexical  string
	Lang     string
	Datatype string
	Bare     bool
}

func (*Literal) termNode() {}

// BlankNode is a labelled blank node _:label.
type BlankNode struct {
	Label string
}

func (*BlankNode) termNode() {}

// CloneTerm returns a copy of t that shares no pointers with it.
func CloneTerm(t Term) Term {
	switch v := t.(type) {
	case *IRI:
		c := *v
		return &c
	case *Variable:
		c := *v
		return &c
	case *Literal:
		c := *v
		return &c
	case *BlankNode:
		c := *v
		return &c
	default:
		return t
	}
}

// Expression is a FILTER, HAVING, BIND, ORDER BY or projection expression.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	exprNode()
}

// TermExpr is a term used as an expression.
type TermExpr struct {
	Term Term
}

func (*TermExpr) exprNode() {}

// Unary is !x, -x or +x.
type Unary struct {
	Op      string
	Operand Expression
}

func (*Unary) exprNode() {}

// Binary is a binary operator application. Op is one of
// || && = != < > <= >= + - * /.
type Binary struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*Binary) exprNode() {}

// In is x IN (...) or x NOT IN (...).
type In struct {
	Not  bool
	Expr Expression
	List []Expression
}

func (*In) exprNode() {}

// Call is a built-in function call such as lang(?x). Name keeps the
// spelling from the source text.
type Call struct {
	Name string
	Args []Expression
}

func (*Call) exprNode() {}

// FuncCall is a call whose function is named by an IRI, such as
// xsd:dateTime(?d).
type FuncCall struct {
	Func *IRI
	Args []Expression
}

func (*FuncCall) exprNode() {}

// Aggregate is COUNT, SUM, MIN, MAX, AVG, SAMPLE or GROUP_CONCAT.
type Aggregate struct {
	Name      string // upper-case
	Distinct  bool
	Star      bool // COUNT(*)
	Arg       Expression
	Separator *string // GROUP_CONCAT only
}

func (*Aggregate) exprNode() {}

// Exists is EXISTS { ... } or NOT EXISTS { ... }.
type Exists struct {
	Not   bool
	Group *Group
}

func (*Exists) exprNode() {}
