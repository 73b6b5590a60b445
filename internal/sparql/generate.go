package sparql

import (
	"fmt"
	"regexp"
	"strings"
)

const indentUnit = "  "

// safeLocal matches local names that can be written as prefix:local without
// escaping.
var safeLocal = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_.\-]*[A-Za-z0-9_\-])?$`)

// Generate renders q as SPARQL text.
//
// Output is deterministic: the prologue in declaration order, one clause per
// line, two-space indentation inside groups, and no trailing newline.
func Generate(q *Query) (string, error) {
	if q == nil {
		return "", fmt.Errorf("cannot generate nil query")
	}
	g := newGenerator(q)
	if q.Base != "" {
		g.line(0, "BASE <%s>", q.Base)
	}
	for _, p := range q.Prefixes {
		g.line(0, "PREFIX %s: <%s>", p.Name, p.IRI)
	}
	if err := g.query(q, 0); err != nil {
		return "", err
	}
	return strings.Join(g.lines, "\n"), nil
}

type generator struct {
	lines []string

	// namespaces holds the effective prefix bindings, in declaration order,
	// used to compact IRIs.
	namespaces []Prefix
}

// newGenerator keeps only the prefix declarations still in effect at the
// end of the prologue; a redeclared name binds its last IRI.
func newGenerator(q *Query) *generator {
	effective := q.PrefixMap()
	var namespaces []Prefix
	seen := make(map[string]bool)
	for i := len(q.Prefixes) - 1; i >= 0; i-- {
		p := q.Prefixes[i]
		if seen[p.Name] || effective[p.Name] != p.IRI {
			continue
		}
		seen[p.Name] = true
		namespaces = append([]Prefix{p}, namespaces...)
	}
	return &generator{namespaces: namespaces}
}

func (g *generator) line(depth int, format string, args ...any) {
	g.lines = append(g.lines, strings.Repeat(indentUnit, depth)+fmt.Sprintf(format, args...))
}

func (g *generator) query(q *Query, depth int) error {
	var head strings.Builder
	switch q.Form {
	case FormSelect:
		head.WriteString("SELECT")
		if q.Distinct {
			head.WriteString(" DISTINCT")
		} else if q.Reduced {
			head.WriteString(" REDUCED")
		}
		if q.Star {
			head.WriteString(" *")
		} else {
			if len(q.Projection) == 0 {
				return fmt.Errorf("SELECT query has no projection")
			}
			for _, proj := range q.Projection {
				head.WriteString(" ")
				if proj.Expr == nil {
					head.WriteString("?" + proj.Var.Name)
					continue
				}
				expr, err := g.expr(proj.Expr, precLowest)
				if err != nil {
					return err
				}
				fmt.Fprintf(&head, "(%s AS ?%s)", expr, proj.Var.Name)
			}
		}
	case FormAsk:
		head.WriteString("ASK")
	default:
		return fmt.Errorf("unsupported query form: %v", q.Form)
	}
	g.line(depth, "%s", head.String())

	if q.Where == nil {
		return fmt.Errorf("%s query has no WHERE clause", q.Form)
	}
	g.line(depth, "WHERE {")
	if err := g.group(q.Where, depth+1); err != nil {
		return err
	}
	g.line(depth, "}")

	return g.modifiers(q, depth)
}

// modifiers writes one line per solution modifier. HAVING constraints are
// always bracketted so they re-parse as constraints.
func (g *generator) modifiers(q *Query, depth int) error {
	if len(q.GroupBy) > 0 {
		parts := make([]string, 0, len(q.GroupBy))
		for _, cond := range q.GroupBy {
			s, err := g.groupCondition(cond)
			if err != nil {
				return err
			}
			parts = append(parts, s)
		}
		g.line(depth, "GROUP BY %s", strings.Join(parts, " "))
	}

	if len(q.Having) > 0 {
		parts := make([]string, 0, len(q.Having))
		for _, h := range q.Having {
			s, err := g.expr(h, precLowest)
			if err != nil {
				return err
			}
			parts = append(parts, "("+s+")")
		}
		g.line(depth, "HAVING %s", strings.Join(parts, " "))
	}

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, cond := range q.OrderBy {
			s, err := g.orderCondition(cond)
			if err != nil {
				return err
			}
			parts = append(parts, s)
		}
		g.line(depth, "ORDER BY %s", strings.Join(parts, " "))
	}

	if q.Limit != nil {
		g.line(depth, "LIMIT %d", *q.Limit)
	}
	if q.Offset != nil {
		g.line(depth, "OFFSET %d", *q.Offset)
	}
	return nil
}

// groupCondition writes a bare variable as-is and brackets anything else.
func (g *generator) groupCondition(cond GroupCondition) (string, error) {
	if v, ok := asVariable(cond.Expr); ok && cond.As == nil {
		return "?" + v.Name, nil
	}
	s, err := g.expr(cond.Expr, precLowest)
	if err != nil {
		return "", err
	}
	if cond.As != nil {
		return fmt.Sprintf("(%s AS ?%s)", s, cond.As.Name), nil
	}
	return "(" + s + ")", nil
}

func (g *generator) orderCondition(cond OrderCondition) (string, error) {
	s, err := g.expr(cond.Expr, precLowest)
	if err != nil {
		return "", err
	}
	switch cond.Direction {
	case OrderAsc:
		return "ASC(" + s + ")", nil
	case OrderDesc:
		return "DESC(" + s + ")", nil
	}
	if _, ok := asVariable(cond.Expr); ok {
		return s, nil
	}
	return "(" + s + ")", nil
}

// asVariable reports whether e is a plain variable reference.
func asVariable(e Expression) (*Variable, bool) {
	te, ok := e.(*TermExpr)
	if !ok {
		return nil, false
	}
	v, ok := te.Term.(*Variable)
	return v, ok
}

func (g *generator) group(grp *Group, depth int) error {
	for _, pattern := range grp.Patterns {
		if err := g.pattern(pattern, depth); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) pattern(pattern Pattern, depth int) error {
	switch p := pattern.(type) {
	case *BGP:
		for _, t := range p.Triples {
			s, err := g.triple(t)
			if err != nil {
				return err
			}
			g.line(depth, "%s .", s)
		}
	case *Filter:
		s, err := g.expr(p.Expr, precLowest)
		if err != nil {
			return err
		}
		g.line(depth, "FILTER (%s)", s)
	case *Optional:
		return g.block(depth, "OPTIONAL {", p.Group)
	case *Minus:
		return g.block(depth, "MINUS {", p.Group)
	case *SubGroup:
		return g.block(depth, "{", p.Group)
	case *Union:
		for i, grp := range p.Groups {
			if i > 0 {
				g.line(depth, "UNION")
			}
			if err := g.block(depth, "{", grp); err != nil {
				return err
			}
		}
	case *SubSelect:
		// The enclosing group's braces are the sub-select's braces.
		return g.query(p.Query, depth)
	case *Bind:
		s, err := g.expr(p.Expr, precLowest)
		if err != nil {
			return err
		}
		g.line(depth, "BIND (%s AS ?%s)", s, p.Var.Name)
	case *Values:
		s, err := g.values(p)
		if err != nil {
			return err
		}
		g.line(depth, "%s", s)
	default:
		return fmt.Errorf("unsupported pattern type: %T", pattern)
	}
	return nil
}

func (g *generator) block(depth int, open string, grp *Group) error {
	g.line(depth, "%s", open)
	if err := g.group(grp, depth+1); err != nil {
		return err
	}
	g.line(depth, "}")
	return nil
}

// values renders a VALUES block on one line; nil entries are UNDEF.
func (g *generator) values(v *Values) (string, error) {
	var sb strings.Builder
	sb.WriteString("VALUES (")
	for i, variable := range v.Vars {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString("?" + variable.Name)
	}
	sb.WriteString(") {")
	for _, row := range v.Rows {
		sb.WriteString(" (")
		for i, val := range row {
			if i > 0 {
				sb.WriteString(" ")
			}
			if val == nil {
				sb.WriteString("UNDEF")
				continue
			}
			s, err := g.term(val)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
		}
		sb.WriteString(")")
	}
	sb.WriteString(" }")
	return sb.String(), nil
}

func (g *generator) triple(t *Triple) (string, error) {
	subject, err := g.term(t.Subject)
	if err != nil {
		return "", err
	}
	predicate, err := g.predicate(t.Predicate)
	if err != nil {
		return "", err
	}
	object, err := g.term(t.Object)
	if err != nil {
		return "", err
	}
	return subject + " " + predicate + " " + object, nil
}

// predicate writes rdf:type as "a".
func (g *generator) predicate(t Term) (string, error) {
	if iri, ok := t.(*IRI); ok && iri.Value == RDFType {
		return "a", nil
	}
	return g.term(t)
}

func (g *generator) term(t Term) (string, error) {
	switch v := t.(type) {
	case *IRI:
		return g.iri(v.Value), nil
	case *Variable:
		return "?" + v.Name, nil
	case *BlankNode:
		return "_:" + v.Label, nil
	case *Literal:
		if v.Bare {
			return v.Lexical, nil
		}
		s := quote(v.Lexical)
		if v.Lang != "" {
			return s + "@" + v.Lang, nil
		}
		if v.Datatype != "" {
			return s + "^^" + g.iri(v.Datatype), nil
		}
		return s, nil
	case nil:
		return "", fmt.Errorf("nil term")
	default:
		return "", fmt.Errorf("unsupported term type: %T", t)
	}
}

// iri compacts value against the longest matching namespace.
func (g *generator) iri(value string) string {
	best := -1
	for i, ns := range g.namespaces {
		if !strings.HasPrefix(value, ns.IRI) || !safeLocal.MatchString(value[len(ns.IRI):]) {
			continue
		}
		if best < 0 || len(ns.IRI) > len(g.namespaces[best].IRI) {
			best = i
		}
	}
	if best < 0 {
		return "<" + value + ">"
	}
	ns := g.namespaces[best]
	return ns.Name + ":" + value[len(ns.IRI):]
}

// quote writes s as a double-quoted string literal.
func quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// Operator precedence levels, lowest first.
const (
	precLowest = iota
	precOr
	precAnd
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func precedence(e Expression) int {
	switch v := e.(type) {
	case *Binary:
		switch v.Op {
		case "||":
			return precOr
		case "&&":
			return precAnd
		case "+", "-":
			return precAdditive
		case "*", "/":
			return precMultiplicative
		default:
			return precRelational
		}
	case *In:
		return precRelational
	case *Unary:
		return precUnary
	default:
		return precPrimary
	}
}

// expr renders e, parenthesising it when it binds looser than minPrec.
func (g *generator) expr(e Expression, minPrec int) (string, error) {
	s, err := g.exprBody(e)
	if err != nil {
		return "", err
	}
	if precedence(e) < minPrec {
		return "(" + s + ")", nil
	}
	return s, nil
}

func (g *generator) exprBody(e Expression) (string, error) {
	switch v := e.(type) {
	case *TermExpr:
		return g.term(v.Term)

	case *Binary:
		prec := precedence(v)
		leftMin, rightMin := prec, prec+1
		if prec == precRelational {
			leftMin = prec + 1
		}
		left, err := g.expr(v.Left, leftMin)
		if err != nil {
			return "", err
		}
		right, err := g.expr(v.Right, rightMin)
		if err != nil {
			return "", err
		}
		return left + " " + v.Op + " " + right, nil

	case *Unary:
		operand, err := g.expr(v.Operand, precUnary)
		if err != nil {
			return "", err
		}
		return v.Op + operand, nil

	case *In:
		left, err := g.expr(v.Expr, precRelational+1)
		if err != nil {
			return "", err
		}
		list, err := g.exprList(v.List)
		if err != nil {
			return "", err
		}
		op := " IN "
		if v.Not {
			op = " NOT IN "
		}
		return left + op + "(" + list + ")", nil

	case *Call:
		args, err := g.exprList(v.Args)
		if err != nil {
			return "", err
		}
		return v.Name + "(" + args + ")", nil

	case *FuncCall:
		args, err := g.exprList(v.Args)
		if err != nil {
			return "", err
		}
		return g.iri(v.Func.Value) + "(" + args + ")", nil

	case *Aggregate:
		var sb strings.Builder
		sb.WriteString(v.Name + "(")
		if v.Distinct {
			sb.WriteString("DISTINCT ")
		}
		if v.Star {
			sb.WriteString("*")
		} else {
			arg, err := g.expr(v.Arg, precLowest)
			if err != nil {
				return "", err
			}
			sb.WriteString(arg)
		}
		if v.Separator != nil {
			sb.WriteString("; SEPARATOR=" + quote(*v.Separator))
		}
		sb.WriteString(")")
		return sb.String(), nil

	case *Exists:
		inline, err := g.inlineGroup(v.Group)
		if err != nil {
			return "", err
		}
		if v.Not {
			return "NOT EXISTS " + inline, nil
		}
		return "EXISTS " + inline, nil

	case nil:
		return "", fmt.Errorf("nil expression")
	default:
		return "", fmt.Errorf("unsupported expression type: %T", e)
	}
}

func (g *generator) exprList(list []Expression) (string, error) {
	parts := make([]string, 0, len(list))
	for _, e := range list {
		s, err := g.expr(e, precLowest)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", "), nil
}

// inlineGroup renders a group on a single line, for use inside expressions.
func (g *generator) inlineGroup(grp *Group) (string, error) {
	inner := &generator{namespaces: g.namespaces}
	if err := inner.group(grp, 0); err != nil {
		return "", err
	}
	if len(inner.lines) == 0 {
		return "{ }", nil
	}
	parts := make([]string, len(inner.lines))
	for i, l := range inner.lines {
		parts[i] = strings.TrimSpace(l)
	}
	return "{ " + strings.Join(parts, " ") + " }", nil
}

