package sparql

import (
	"fmt"
	"strconv"
	"strings"
)

// SyntaxError reports a query that does not conform to the grammar.
type SyntaxError struct {
	Offset  int // byte offset into the input
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sparql syntax error at offset %d: %s", e.Offset, e.Message)
}

// Parse parses a SELECT or ASK query.
//
// Prefixed names must be declared before use; a name may be redeclared and
// the later declaration wins from that point on.
func Parse(text string) (*Query, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, prefixes: make(map[string]string)}

	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != tokEOF {
		return nil, p.errorAt(t, "unexpected %s after end of query", t)
	}
	return q, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for queries known to be valid.
func MustParse(text string) *Query {
	q, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return q
}

var aggregateNames = map[string]bool{
	"COUNT": true, "SUM": true, "MIN": true, "MAX": true,
	"AVG": true, "SAMPLE": true, "GROUP_CONCAT": true,
}

type parser struct {
	toks     []token
	pos      int
	prefixes map[string]string
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.Kind == tokPunct && t.Text == s
}

func (p *parser) acceptPunct(s string) bool {
	if p.isPunct(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectPunct(s string) error {
	if !p.acceptPunct(s) {
		return p.errorAt(p.peek(), "expected %q, found %s", s, p.peek())
	}
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.Kind == tokName && strings.EqualFold(t.Text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorAt(p.peek(), "expected %s, found %s", kw, p.peek())
	}
	return nil
}

func (p *parser) errorAt(t token, format string, args ...any) error {
	return &SyntaxError{Offset: t.Pos, Message: fmt.Sprintf(format, args...)}
}

// parseQuery parses the prologue and one SELECT or ASK query.
func (p *parser) parseQuery() (*Query, error) {
	q := &Query{}
	if err := p.parsePrologue(q); err != nil {
		return nil, err
	}

	switch {
	case p.acceptKeyword("SELECT"):
		q.Form = FormSelect
		if err := p.parseSelectClause(q); err != nil {
			return nil, err
		}
	case p.acceptKeyword("ASK"):
		q.Form = FormAsk
	default:
		return nil, p.errorAt(p.peek(), "expected SELECT or ASK, found %s", p.peek())
	}

	if err := p.parseWhereAndModifiers(q); err != nil {
		return nil, err
	}
	return q, nil
}

// parsePrologue reads BASE and PREFIX declarations into q and the
// parser's prefix map.
func (p *parser) parsePrologue(q *Query) error {
	for {
		switch {
		case p.acceptKeyword("BASE"):
			t := p.next()
			if t.Kind != tokIRI {
				return p.errorAt(t, "expected IRI after BASE, found %s", t)
			}
			q.Base = t.Text
		case p.acceptKeyword("PREFIX"):
			name := p.next()
			if name.Kind != tokPName || name.Local != "" {
				return p.errorAt(name, "expected prefix name after PREFIX, found %s", name)
			}
			iri := p.next()
			if iri.Kind != tokIRI {
				return p.errorAt(iri, "expected IRI for prefix %q, found %s", name.Prefix, iri)
			}
			q.Prefixes = append(q.Prefixes, Prefix{Name: name.Prefix, IRI: iri.Text})
			p.prefixes[name.Prefix] = iri.Text
		default:
			return nil
		}
	}
}

// parseSelectClause reads SELECT [DISTINCT|REDUCED] followed by "*" or a
// list of variables and (expr AS ?var) bindings.
func (p *parser) parseSelectClause(q *Query) error {
	if p.acceptKeyword("DISTINCT") {
		q.Distinct = true
	} else if p.acceptKeyword("REDUCED") {
		q.Reduced = true
	}

	if p.acceptPunct("*") {
		q.Star = true
		return nil
	}

	for {
		t := p.peek()
		switch {
		case t.Kind == tokVar:
			p.next()
			q.Projection = append(q.Projection, Projection{Var: &Variable{Name: t.Text}})
		case p.isPunct("("):
			p.next()
			expr, err := p.parseExpression()
			if err != nil {
				return err
			}
			if err := p.expectKeyword("AS"); err != nil {
				return err
			}
			v := p.next()
			if v.Kind != tokVar {
				return p.errorAt(v, "expected variable after AS, found %s", v)
			}
			if err := p.expectPunct(")"); err != nil {
				return err
			}
			q.Projection = append(q.Projection, Projection{Var: &Variable{Name: v.Text}, Expr: expr})
		default:
			if len(q.Projection) == 0 {
				return p.errorAt(t, "expected projection variables or '*', found %s", t)
			}
			return nil
		}
	}
}

// parseWhereAndModifiers parses the WHERE group and the solution
// modifiers in their fixed order: GROUP BY, HAVING, ORDER BY, then LIMIT and
// OFFSET in either order.
func (p *parser) parseWhereAndModifiers(q *Query) error {
	p.acceptKeyword("WHERE")
	where, err := p.parseGroup()
	if err != nil {
		return err
	}
	q.Where = where

	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for p.canStartCondition() {
			cond, err := p.parseGroupCondition()
			if err != nil {
				return err
			}
			q.GroupBy = append(q.GroupBy, cond)
		}
		if len(q.GroupBy) == 0 {
			return p.errorAt(p.peek(), "expected GROUP BY condition, found %s", p.peek())
		}
	}

	if p.acceptKeyword("HAVING") {
		for p.canStartConstraint() {
			expr, err := p.parseConstraint()
			if err != nil {
				return err
			}
			q.Having = append(q.Having, expr)
		}
		if len(q.Having) == 0 {
			return p.errorAt(p.peek(), "expected HAVING constraint, found %s", p.peek())
		}
	}

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return err
		}
		for p.canStartCondition() || p.isKeyword("ASC") || p.isKeyword("DESC") {
			cond, err := p.parseOrderCondition()
			if err != nil {
				return err
			}
			q.OrderBy = append(q.OrderBy, cond)
		}
		if len(q.OrderBy) == 0 {
			return p.errorAt(p.peek(), "expected ORDER BY condition, found %s", p.peek())
		}
	}

	for i := 0; i < 2; i++ {
		switch {
		case q.Limit == nil && p.acceptKeyword("LIMIT"):
			n, err := p.parseInteger()
			if err != nil {
				return err
			}
			q.Limit = &n
		case q.Offset == nil && p.acceptKeyword("OFFSET"):
			n, err := p.parseInteger()
			if err != nil {
				return err
			}
			q.Offset = &n
		}
	}
	return nil
}

func (p *parser) parseInteger() (int64, error) {
	t := p.next()
	if t.Kind != tokNumber || t.NumType != XSDInteger {
		return 0, p.errorAt(t, "expected integer, found %s", t)
	}
	n, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil {
		return 0, p.errorAt(t, "invalid integer %q", t.Text)
	}
	return n, nil
}

// canStartCondition reports whether the next token can begin a GROUP BY or
// ORDER BY condition: a variable, a bracketted expression or a call.
func (p *parser) canStartCondition() bool {
	return p.peek().Kind == tokVar || p.canStartConstraint()
}

// canStartConstraint reports whether the next token can begin a HAVING or
// FILTER constraint: a bracketted expression or a function call.
func (p *parser) canStartConstraint() bool {
	t := p.peek()
	if t.Kind == tokPunct && t.Text == "(" {
		return true
	}
	if t.Kind == tokName && (strings.EqualFold(t.Text, "EXISTS") || strings.EqualFold(t.Text, "NOT")) {
		return true
	}
	if t.Kind == tokName && isClauseKeyword(t.Text) {
		return false
	}
	next := p.peekAt(1)
	isCall := next.Kind == tokPunct && next.Text == "("
	return isCall && (t.Kind == tokName || t.Kind == tokIRI || t.Kind == tokPName)
}

// clauseKeywords start a solution modifier or trailing clause. They are never
// function names, so "HAVING (" after a GROUP BY list ends the list.
var clauseKeywords = []string{"GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET", "VALUES"}

func isClauseKeyword(word string) bool {
	for _, kw := range clauseKeywords {
		if strings.EqualFold(word, kw) {
			return true
		}
	}
	return false
}

func (p *parser) parseConstraint() (Expression, error) {
	if p.acceptPunct("(") {
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parsePrimary()
}

func (p *parser) parseGroupCondition() (GroupCondition, error) {
	if t := p.peek(); t.Kind == tokVar {
		p.next()
		return GroupCondition{Expr: &TermExpr{Term: &Variable{Name: t.Text}}}, nil
	}
	if p.acceptPunct("(") {
		expr, err := p.parseExpression()
		if err != nil {
			return GroupCondition{}, err
		}
		cond := GroupCondition{Expr: expr}
		if p.acceptKeyword("AS") {
			v := p.next()
			if v.Kind != tokVar {
				return GroupCondition{}, p.errorAt(v, "expected variable after AS, found %s", v)
			}
			cond.As = &Variable{Name: v.Text}
		}
		return cond, p.expectPunct(")")
	}
	expr, err := p.parsePrimary()
	return GroupCondition{Expr: expr}, err
}

func (p *parser) parseOrderCondition() (OrderCondition, error) {
	dir := OrderDefault
	switch {
	case p.acceptKeyword("ASC"):
		dir = OrderAsc
	case p.acceptKeyword("DESC"):
		dir = OrderDesc
	}

	if dir != OrderDefault {
		if err := p.expectPunct("("); err != nil {
			return OrderCondition{}, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return OrderCondition{}, err
		}
		return OrderCondition{Direction: dir, Expr: expr}, p.expectPunct(")")
	}

	if t := p.peek(); t.Kind == tokVar {
		p.next()
		return OrderCondition{Expr: &TermExpr{Term: &Variable{Name: t.Text}}}, nil
	}
	expr, err := p.parseConstraint()
	return OrderCondition{Expr: expr}, err
}

// parseGroup parses { ... } into a Group. Adjacent triple blocks merge into
// one BGP.
func (p *parser) parseGroup() (*Group, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	g := &Group{}

	if p.isKeyword("SELECT") {
		sub, err := p.parseSubSelect()
		if err != nil {
			return nil, err
		}
		g.Patterns = append(g.Patterns, &SubSelect{Query: sub})
		return g, p.expectPunct("}")
	}

	for {
		t := p.peek()
		if t.Kind == tokEOF {
			return nil, p.errorAt(t, "unterminated group graph pattern")
		}
		if p.acceptPunct("}") {
			return g, nil
		}
		if p.acceptPunct(".") {
			continue
		}

		pattern, err := p.parseGroupClause()
		if err != nil {
			return nil, err
		}
		if pattern != nil {
			g.Patterns = append(g.Patterns, pattern)
			continue
		}

		triples, err := p.parseTriplesSameSubject()
		if err != nil {
			return nil, err
		}
		g.appendTriples(triples)
	}
}

// appendTriples extends the trailing BGP or starts a new one.
func (g *Group) appendTriples(triples []*Triple) {
	if n := len(g.Patterns); n > 0 {
		if bgp, ok := g.Patterns[n-1].(*BGP); ok {
			bgp.Triples = append(bgp.Triples, triples...)
			return
		}
	}
	g.Patterns = append(g.Patterns, &BGP{Triples: triples})
}

// parseGroupClause parses a non-triple clause. It returns (nil, nil) when
// the next tokens start a triple pattern instead.
func (p *parser) parseGroupClause() (Pattern, error) {
	switch {
	case p.acceptKeyword("FILTER"):
		expr, err := p.parseConstraint()
		if err != nil {
			return nil, err
		}
		return &Filter{Expr: expr}, nil

	case p.acceptKeyword("OPTIONAL"):
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &Optional{Group: g}, nil

	case p.acceptKeyword("MINUS"):
		g, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return &Minus{Group: g}, nil

	case p.acceptKeyword("BIND"):
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AS"); err != nil {
			return nil, err
		}
		v := p.next()
		if v.Kind != tokVar {
			return nil, p.errorAt(v, "expected variable after AS, found %s", v)
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &Bind{Expr: expr, Var: &Variable{Name: v.Text}}, nil

	case p.acceptKeyword("VALUES"):
		return p.parseValues()

	case p.isPunct("{"):
		first, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		groups := []*Group{first}
		for p.acceptKeyword("UNION") {
			g, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			groups = append(groups, g)
		}
		if len(groups) == 1 {
			return &SubGroup{Group: first}, nil
		}
		return &Union{Groups: groups}, nil
	}
	return nil, nil
}

// parseSubSelect parses a nested SELECT; it shares the outer prefix map.
func (p *parser) parseSubSelect() (*Query, error) {
	q := &Query{Form: FormSelect}
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if err := p.parseSelectClause(q); err != nil {
		return nil, err
	}
	if err := p.parseWhereAndModifiers(q); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *parser) parseValues() (*Values, error) {
	v := &Values{}
	single := false

	if t := p.peek(); t.Kind == tokVar {
		p.next()
		v.Vars = []*Variable{{Name: t.Text}}
		single = true
	} else {
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		for p.peek().Kind == tokVar {
			v.Vars = append(v.Vars, &Variable{Name: p.next().Text})
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.acceptPunct("}") {
		if single {
			val, err := p.parseDataValue()
			if err != nil {
				return nil, err
			}
			v.Rows = append(v.Rows, []Term{val})
			continue
		}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		var row []Term
		for !p.acceptPunct(")") {
			val, err := p.parseDataValue()
			if err != nil {
				return nil, err
			}
			row = append(row, val)
		}
		if len(row) != len(v.Vars) {
			return nil, p.errorAt(p.peek(), "VALUES row has %d values for %d variables", len(row), len(v.Vars))
		}
		v.Rows = append(v.Rows, row)
	}
	return v, nil
}

// parseDataValue parses a VALUES entry; UNDEF yields a nil Term.
func (p *parser) parseDataValue() (Term, error) {
	if p.acceptKeyword("UNDEF") {
		return nil, nil
	}
	if t := p.peek(); t.Kind == tokVar || t.Kind == tokBlank {
		return nil, p.errorAt(t, "unexpected %s in VALUES", t)
	}
	return p.parseTerm()
}

// parseTriplesSameSubject expands the ";" and "," shorthand into one
// Triple per predicate-object pair. Each triple gets its own term copies.
func (p *parser) parseTriplesSameSubject() ([]*Triple, error) {
	subject, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	var triples []*Triple
	for {
		verb, err := p.parseVerb()
		if err != nil {
			return nil, err
		}
		for {
			object, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			triples = append(triples, &Triple{
				Subject:   CloneTerm(subject),
				Predicate: CloneTerm(verb),
				Object:    object,
			})
			if !p.acceptPunct(",") {
				break
			}
		}

		if !p.acceptPunct(";") {
			break
		}
		for p.acceptPunct(";") {
		}
		if p.isPunct(".") || p.isPunct("}") {
			break
		}
	}

	// Optional terminator; the group loop also tolerates a missing one.
	p.acceptPunct(".")
	return triples, nil
}

func (p *parser) parseVerb() (Term, error) {
	t := p.peek()
	switch t.Kind {
	case tokName:
		if t.Text == "a" {
			p.next()
			return &IRI{Value: RDFType}, nil
		}
	case tokVar, tokIRI, tokPName:
		return p.parseTerm()
	}
	return nil, p.errorAt(t, "expected predicate, found %s", t)
}

// parseTerm reads a subject or object: a variable, IRI, prefixed name,
// blank node, literal or number.
func (p *parser) parseTerm() (Term, error) {
	t := p.next()
	switch t.Kind {
	case tokVar:
		return &Variable{Name: t.Text}, nil
	case tokIRI:
		return &IRI{Value: t.Text}, nil
	case tokPName:
		iri, err := p.resolve(t)
		if err != nil {
			return nil, err
		}
		return &IRI{Value: iri}, nil
	case tokBlank:
		return &BlankNode{Label: t.Text}, nil
	case tokString:
		return p.finishLiteral(t)
	case tokNumber:
		return &Literal{Lexical: t.Text, Datatype: t.NumType, Bare: true}, nil
	case tokName:
		if strings.EqualFold(t.Text, "true") || strings.EqualFold(t.Text, "false") {
			return &Literal{Lexical: strings.ToLower(t.Text), Datatype: XSDBoolean, Bare: true}, nil
		}
	case tokPunct:
		if n := p.peek(); (t.Text == "-" || t.Text == "+") && n.Kind == tokNumber {
			p.next()
			return &Literal{Lexical: t.Text + n.Text, Datatype: n.NumType, Bare: true}, nil
		}
	}
	return nil, p.errorAt(t, "expected RDF term, found %s", t)
}

func (p *parser) finishLiteral(t token) (Term, error) {
	lit := &Literal{Lexical: t.Text}
	if tag := p.peek(); tag.Kind == tokLangTag {
		p.next()
		lit.Lang = tag.Text
		return lit, nil
	}
	if p.acceptPunct("^^") {
		dt := p.next()
		switch dt.Kind {
		case tokIRI:
			lit.Datatype = dt.Text
		case tokPName:
			iri, err := p.resolve(dt)
			if err != nil {
				return nil, err
			}
			lit.Datatype = iri
		default:
			return nil, p.errorAt(dt, "expected datatype IRI after '^^', found %s", dt)
		}
	}
	return lit, nil
}

// resolve expands a prefixed name against the declared prefixes.
func (p *parser) resolve(t token) (string, error) {
	ns, ok := p.prefixes[t.Prefix]
	if !ok {
		return "", p.errorAt(t, "undeclared prefix %q", t.Prefix)
	}
	return ns + t.Local, nil
}

// Expression grammar, lowest precedence first:
//
//	||  &&  relational/IN  + -  * /  unary  primary
func (p *parser) parseExpression() (Expression, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expression, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.acceptPunct("&&") {
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

var relationalOps = []string{"=", "!=", "<", ">", "<=", ">="}

// parseRelational handles the comparison operators and IN / NOT IN. At most
// one is applied per operand pair.
func (p *parser) parseRelational() (Expression, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	for _, op := range relationalOps {
		if p.acceptPunct(op) {
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &Binary{Op: op, Left: left, Right: right}, nil
		}
	}

	not := false
	if p.isKeyword("NOT") && strings.EqualFold(p.peekAt(1).Text, "IN") && p.peekAt(1).Kind == tokName {
		p.next()
		not = true
	}
	if p.acceptKeyword("IN") {
		list, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &In{Not: not, Expr: left, List: list}, nil
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expression, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.next().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") {
		op := p.next().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expression, error) {
	for _, op := range []string{"!", "-", "+"} {
		if p.acceptPunct(op) {
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &Unary{Op: op, Operand: operand}, nil
		}
	}
	return p.parsePrimary()
}

// parsePrimary parses a bracketted expression, a term, a function call, an
// aggregate or EXISTS / NOT EXISTS.
func (p *parser) parsePrimary() (Expression, error) {
	t := p.peek()
	switch t.Kind {
	case tokPunct:
		if t.Text == "(" {
			p.next()
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return expr, p.expectPunct(")")
		}

	case tokVar, tokString, tokNumber:
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &TermExpr{Term: term}, nil

	case tokIRI, tokPName:
		term, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		iri := term.(*IRI)
		if !p.isPunct("(") {
			return &TermExpr{Term: iri}, nil
		}
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		return &FuncCall{Func: iri, Args: args}, nil

	case tokName:
		upper := strings.ToUpper(t.Text)
		switch {
		case upper == "TRUE" || upper == "FALSE":
			term, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			return &TermExpr{Term: term}, nil
		case upper == "EXISTS":
			p.next()
			g, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			return &Exists{Group: g}, nil
		case upper == "NOT" && strings.EqualFold(p.peekAt(1).Text, "EXISTS"):
			p.next()
			p.next()
			g, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			return &Exists{Not: true, Group: g}, nil
		case aggregateNames[upper]:
			return p.parseAggregate()
		case p.peekAt(1).Kind == tokPunct && p.peekAt(1).Text == "(":
			p.next()
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &Call{Name: t.Text, Args: args}, nil
		}
	}
	return nil, p.errorAt(t, "unexpected %s in expression", t)
}

func (p *parser) parseArgList() ([]Expression, error) {
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var args []Expression
	if p.acceptPunct(")") {
		return args, nil
	}
	for {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.acceptPunct(",") {
			break
		}
	}
	return args, p.expectPunct(")")
}

// parseAggregate parses COUNT, SUM, MIN, MAX, AVG, SAMPLE and
// GROUP_CONCAT, with optional DISTINCT.
func (p *parser) parseAggregate() (Expression, error) {
	agg := &Aggregate{Name: strings.ToUpper(p.next().Text)}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	agg.Distinct = p.acceptKeyword("DISTINCT")

	if agg.Name == "COUNT" && p.acceptPunct("*") {
		agg.Star = true
		return agg, p.expectPunct(")")
	}

	arg, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	agg.Arg = arg

	if agg.Name == "GROUP_CONCAT" && p.acceptPunct(";") {
		if err := p.expectKeyword("SEPARATOR"); err != nil {
			return nil, err
		}
		if err := p.expectPunct("="); err != nil {
			return nil, err
		}
		sep := p.next()
		if sep.Kind != tokString {
			return nil, p.errorAt(sep, "expected separator string, found %s", sep)
		}
		agg.Separator = &sep.Text
	}
	return agg, p.expectPunct(")")
}
