package sparql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokString
	tokNumber
	tokLangTag
	tokBlank
	tokName
	tokPunct
)

// token is one lexical unit. Text holds the decoded value: the IRI without
// angle brackets, the variable name without its sigil, the unescaped string
// body, and so on.
type token struct {
	Kind tokenKind
	Text string

	// Prefixed names only.
	Prefix string
	Local  string

	// Numbers only: the implied XSD datatype.
	NumType string

	Pos int
}

func (t token) String() string {
	switch t.Kind {
	case tokEOF:
		return "end of input"
	case tokIRI:
		return fmt.Sprintf("<%s>", t.Text)
	case tokPName:
		return fmt.Sprintf("%s:%s", t.Prefix, t.Local)
	case tokVar:
		return "?" + t.Text
	case tokString:
		return strconv.Quote(t.Text)
	case tokLangTag:
		return "@" + t.Text
	case tokBlank:
		return "_:" + t.Text
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// Operators, longest first so "<=" wins over "<".
var punctuation = []string{
	"&&", "||", "!=", "<=", ">=", "^^",
	"{", "}", "(", ")", ".", ";", ",", "*", "=", "<", ">", "!", "+", "-", "/",
}

type lexer struct {
	input string
	pos   int

	// nesting holds the open '(' and '{' brackets, innermost last.
	nesting []byte
	prev    token
}

// lex splits input into tokens. The returned slice always ends with a
// tokEOF token.
func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	var toks []token
	for {
		l.skipSpaceAndComments()
		if l.pos >= len(l.input) {
			toks = append(toks, token{Kind: tokEOF, Pos: l.pos})
			return toks, nil
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.track(tok)
		toks = append(toks, tok)
	}
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Offset: pos, Message: fmt.Sprintf(format, args...)}
}

// skipSpaceAndComments skips whitespace and "#" comments to end of line.
func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	start := l.pos
	c := l.input[l.pos]

	switch {
	case c == '<' && !l.afterOperand():
		if iri, ok := l.scanIRIRef(); ok {
			return token{Kind: tokIRI, Text: iri, Pos: start}, nil
		}
	case c == '?' || c == '$':
		l.pos++
		name := l.scanWhile(isNameChar)
		if name == "" {
			return token{}, l.errorf(start, "expected variable name after %q", string(c))
		}
		return token{Kind: tokVar, Text: name, Pos: start}, nil
	case c == '"' || c == '\'':
		s, err := l.scanString()
		if err != nil {
			return token{}, err
		}
		return token{Kind: tokString, Text: s, Pos: start}, nil
	case c == '@':
		l.pos++
		tag := l.scanWhile(func(r byte) bool { return isLetter(r) || isDigit(r) || r == '-' })
		if tag == "" {
			return token{}, l.errorf(start, "expected language tag after '@'")
		}
		return token{Kind: tokLangTag, Text: tag, Pos: start}, nil
	case c == '_' && l.peekByte(1) == ':':
		l.pos += 2
		label := l.scanWhile(isLocalChar)
		label = l.trimTrailingDots(label)
		if label == "" {
			return token{}, l.errorf(start, "expected blank node label after '_:'")
		}
		return token{Kind: tokBlank, Text: label, Pos: start}, nil
	case isDigit(c) || (c == '.' && isDigit(l.peekByte(1))):
		return l.scanNumber(), nil
	case isLetter(c) || c == ':':
		return l.scanNameOrPName()
	}

	for _, p := range punctuation {
		if strings.HasPrefix(l.input[l.pos:], p) {
			l.pos += len(p)
			return token{Kind: tokPunct, Text: p, Pos: start}, nil
		}
	}

	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return token{}, l.errorf(start, "unexpected character %q", r)
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) scanWhile(pred func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.input) && pred(l.input[l.pos]) {
		l.pos++
	}
	return l.input[start:l.pos]
}

// trimTrailingDots gives back trailing '.' characters so that "ns:m.0abc."
// lexes as a name followed by the triple terminator.
func (l *lexer) trimTrailingDots(s string) string {
	for strings.HasSuffix(s, ".") {
		s = s[:len(s)-1]
		l.pos--
	}
	return s
}

// track records bracket nesting and the previous token.
func (l *lexer) track(t token) {
	l.prev = t
	if t.Kind != tokPunct {
		return
	}
	switch t.Text {
	case "(", "{":
		l.nesting = append(l.nesting, t.Text[0])
	case ")", "}":
		if n := len(l.nesting); n > 0 {
			l.nesting = l.nesting[:n-1]
		}
	}
}

// afterOperand reports whether a '<' at the current position must be a
// comparison: inside parentheses, right after a variable, literal or closing
// parenthesis. Triple patterns sit directly inside braces, where a variable
// is followed by an IRI predicate or object.
func (l *lexer) afterOperand() bool {
	if n := len(l.nesting); n == 0 || l.nesting[n-1] != '(' {
		return false
	}
	switch l.prev.Kind {
	case tokVar, tokString, tokNumber, tokLangTag:
		return true
	case tokPunct:
		return l.prev.Text == ")"
	}
	return false
}

// scanIRIRef reads <...>. It reports false, without consuming input, when
// the '<' is a comparison operator instead.
func (l *lexer) scanIRIRef() (string, bool) {
	for i := l.pos + 1; i < len(l.input); i++ {
		c := l.input[i]
		switch {
		case c == '>':
			iri := l.input[l.pos+1 : i]
			l.pos = i + 1
			return iri, true
		case c <= ' ' || strings.IndexByte("<\"{}|^`\\", c) >= 0:
			return "", false
		}
	}
	return "", false
}

// scanString reads a single- or triple-quoted string with either quote
// character. Only the long form may span lines.
func (l *lexer) scanString() (string, error) {
	start := l.pos
	quote := l.input[l.pos]
	long := strings.HasPrefix(l.input[l.pos:], strings.Repeat(string(quote), 3))
	if long {
		l.pos += 3
	} else {
		l.pos++
	}

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case long && strings.HasPrefix(l.input[l.pos:], strings.Repeat(string(quote), 3)):
			l.pos += 3
			return sb.String(), nil
		case !long && c == quote:
			l.pos++
			return sb.String(), nil
		case !long && (c == '\n' || c == '\r'):
			return "", l.errorf(start, "unterminated string literal")
		case c == '\\':
			r, err := l.scanEscape()
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return "", l.errorf(start, "unterminated string literal")
}

// scanEscape decodes one backslash escape, including \uXXXX and
// \UXXXXXXXX.
func (l *lexer) scanEscape() (rune, error) {
	start := l.pos
	if l.pos+1 >= len(l.input) {
		return 0, l.errorf(start, "incomplete escape sequence")
	}
	c := l.input[l.pos+1]
	l.pos += 2
	switch c {
	case 't':
		return '\t', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 'b':
		return '\b', nil
	case 'f':
		return '\f', nil
	case '"', '\'', '\\':
		return rune(c), nil
	case 'u', 'U':
		width := 4
		if c == 'U' {
			width = 8
		}
		if l.pos+width > len(l.input) {
			return 0, l.errorf(start, "incomplete unicode escape")
		}
		code, err := strconv.ParseUint(l.input[l.pos:l.pos+width], 16, 32)
		if err != nil {
			return 0, l.errorf(start, "invalid unicode escape %q", l.input[start:l.pos+width])
		}
		l.pos += width
		return rune(code), nil
	default:
		return 0, l.errorf(start, "invalid escape sequence \\%c", c)
	}
}

// scanNumber reads an unsigned integer, decimal or double. A trailing
// "e" without digits is left for the next token.
func (l *lexer) scanNumber() token {
	start := l.pos
	numType := XSDInteger
	l.scanWhile(isDigit)
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		l.scanWhile(isDigit)
		numType = XSDDecimal
	}
	if e := l.peekByte(0); e == 'e' || e == 'E' {
		save := l.pos
		l.pos++
		if s := l.peekByte(0); s == '+' || s == '-' {
			l.pos++
		}
		if isDigit(l.peekByte(0)) {
			l.scanWhile(isDigit)
			numType = XSDDouble
		} else {
			l.pos = save
		}
	}
	return token{Kind: tokNumber, Text: l.input[start:l.pos], NumType: numType, Pos: start}
}

// scanNameOrPName reads a keyword/function name or a prefixed name.
func (l *lexer) scanNameOrPName() (token, error) {
	start := l.pos
	word := l.scanWhile(isNameChar)
	extended := word + l.scanWhile(func(c byte) bool { return isNameChar(c) || c == '.' || c == '-' })

	if l.peekByte(0) == ':' {
		prefix := extended
		if strings.HasSuffix(prefix, ".") {
			return token{}, l.errorf(start, "prefix %q must not end with '.'", prefix)
		}
		l.pos++
		local := l.trimTrailingDots(l.scanWhile(isLocalChar))
		return token{Kind: tokPName, Prefix: prefix, Local: local, Text: prefix + ":" + local, Pos: start}, nil
	}

	// Not a prefixed name: give back anything past the plain word.
	l.pos = start + len(word)
	if word == "" {
		return token{}, l.errorf(start, "unexpected character %q", l.input[start])
	}
	return token{Kind: tokName, Text: word, Pos: start}, nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

func isLocalChar(c byte) bool {
	return isNameChar(c) || c == '.' || c == '-'
}
