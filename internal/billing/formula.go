package billing

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Formula variables, bound from Quantities at evaluation time.
const (
	VarRecordCount    = "record_count"
	VarCharacterCount = "character_count"
	VarHoursWorked    = "hours_worked"
	VarTasksCompleted = "tasks_completed"
)

const (
	// DefaultFormulaMaxLength bounds the formula source accepted by ParseFormula.
	DefaultFormulaMaxLength = 1024
	// maxFormulaDepth bounds parenthesis and unary nesting.
	maxFormulaDepth = 64
)

// formulaVariables is the closed set of names a formula may reference.
var formulaVariables = map[string]struct{}{
	VarRecordCount:    {},
	VarCharacterCount: {},
	VarHoursWorked:    {},
	VarTasksCompleted: {},
}

// FormulaVariables returns the accepted variable names in sorted order.
func FormulaVariables() []string {
	out := make([]string, 0, len(formulaVariables))
	for name := range formulaVariables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Formula is a parsed arithmetic expression over numeric literals, the four quantity
// variables, parentheses and + - * /. It is immutable and safe for concurrent use.
type Formula struct {
	src  string
	root formulaNode
	vars []string
}

// ParseFormula parses src with the default length limit.
func ParseFormula(src string) (*Formula, error) {
	return ParseFormulaLimit(src, DefaultFormulaMaxLength)
}

// ParseFormulaLimit parses src, rejecting sources longer than maxLen bytes (maxLen <= 0 disables
// the limit). Any character outside digits, '.', whitespace, + - * / ( ) and the variable names
// is rejected before evaluation is ever attempted.
func ParseFormulaLimit(src string, maxLen int) (*Formula, error) {
	trimmed := strings.TrimSpace(src)
	if trimmed == "" {
		return nil, formulaErrorf(-1, "empty formula")
	}
	if maxLen > 0 && len(trimmed) > maxLen {
		return nil, formulaErrorf(-1, "formula longer than %d characters", maxLen)
	}

	tokens, errLex := lexFormula(trimmed)
	if errLex != nil {
		return nil, errLex
	}
	p := &formulaParser{tokens: tokens, vars: map[string]struct{}{}}
	root, errParse := p.parseExpr(0)
	if errParse != nil {
		return nil, errParse
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, formulaErrorf(tok.pos, "unexpected %q", tok.text)
	}

	vars := make([]string, 0, len(p.vars))
	for name := range p.vars {
		vars = append(vars, name)
	}
	sort.Strings(vars)
	return &Formula{src: trimmed, root: root, vars: vars}, nil
}

// String returns the normalised formula source.
func (f *Formula) String() string {
	if f == nil {
		return ""
	}
	return f.src
}

// Variables returns the variable names referenced by the formula, sorted.
func (f *Formula) Variables() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.vars))
	copy(out, f.vars)
	return out
}

// Eval evaluates the formula. Variables absent from vars evaluate to 0. Division by zero and
// non-finite results are reported as *FormulaError.
func (f *Formula) Eval(vars map[string]float64) (float64, error) {
	if f == nil || f.root == nil {
		return 0, formulaErrorf(-1, "empty formula")
	}
	value, err := f.root.eval(vars)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, formulaErrorf(-1, "result is not a finite number")
	}
	return value, nil
}

// EvaluateFormula parses and evaluates src in one step.
func EvaluateFormula(src string, vars map[string]float64) (float64, error) {
	f, errParse := ParseFormula(src)
	if errParse != nil {
		return 0, errParse
	}
	return f.Eval(vars)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
)

type formulaToken struct {
	kind  tokenKind
	text  string
	pos   int
	value float64
}

func lexFormula(src string) ([]formulaToken, error) {
	var tokens []formulaToken
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
			tokens = append(tokens, formulaToken{kind: tokOp, text: string(ch), pos: i})
			i++
		case ch == '(':
			tokens = append(tokens, formulaToken{kind: tokLParen, text: "(", pos: i})
			i++
		case ch == ')':
			tokens = append(tokens, formulaToken{kind: tokRParen, text: ")", pos: i})
			i++
		case isDigit(ch) || ch == '.':
			start := i
			dots := 0
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				if src[i] == '.' {
					dots++
				}
				i++
			}
			text := src[start:i]
			if dots > 1 || text == "." {
				return nil, formulaErrorf(start, "malformed number %q", text)
			}
			value, errParse := strconv.ParseFloat(text, 64)
			if errParse != nil {
				return nil, formulaErrorf(start, "malformed number %q", text)
			}
			tokens = append(tokens, formulaToken{kind: tokNumber, text: text, pos: start, value: value})
		case isIdentStart(ch):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			name := src[start:i]
			if _, ok := formulaVariables[name]; !ok {
				return nil, formulaErrorf(start, "unknown identifier %q", name)
			}
			tokens = append(tokens, formulaToken{kind: tokIdent, text: name, pos: start})
		default:
			return nil, formulaErrorf(i, "disallowed character %q", rune(ch))
		}
	}
	tokens = append(tokens, formulaToken{kind: tokEOF, text: "end of formula", pos: len(src)})
	return tokens, nil
}

func isDigit(ch byte) bool      { return ch >= '0' && ch <= '9' }
func isIdentStart(ch byte) bool { return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') }
func isIdentPart(ch byte) bool  { return isIdentStart(ch) || isDigit(ch) }

// formulaParser is a recursive-descent parser:
//
//	expr   := term (('+' | '-') term)*
//	term   := unary (('*' | '/') unary)*
//	unary  := ('+' | '-') unary | primary
//	primary:= number | variable | '(' expr ')'
type formulaParser struct {
	tokens []formulaToken
	pos    int
	vars   map[string]struct{}
}

func (p *formulaParser) peek() formulaToken {
	return p.tokens[p.pos]
}

func (p *formulaParser) next() formulaToken {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *formulaParser) parseExpr(depth int) (formulaNode, error) {
	if depth > maxFormulaDepth {
		return nil, formulaErrorf(p.peek().pos, "formula nested too deeply")
	}
	left, err := p.parseTerm(depth)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "+" && tok.text != "-") {
			return left, nil
		}
		p.next()
		right, errRight := p.parseTerm(depth)
		if errRight != nil {
			return nil, errRight
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right, pos: tok.pos}
	}
}

func (p *formulaParser) parseTerm(depth int) (formulaNode, error) {
	left, err := p.parseUnary(depth)
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokOp || (tok.text != "*" && tok.text != "/") {
			return left, nil
		}
		p.next()
		right, errRight := p.parseUnary(depth)
		if errRight != nil {
			return nil, errRight
		}
		left = &binaryNode{op: tok.text[0], left: left, right: right, pos: tok.pos}
	}
}

func (p *formulaParser) parseUnary(depth int) (formulaNode, error) {
	if depth > maxFormulaDepth {
		return nil, formulaErrorf(p.peek().pos, "formula nested too deeply")
	}
	tok := p.peek()
	if tok.kind == tokOp && (tok.text == "+" || tok.text == "-") {
		p.next()
		operand, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		if tok.text == "-" {
			return &negateNode{operand: operand}, nil
		}
		return operand, nil
	}
	return p.parsePrimary(depth)
}

func (p *formulaParser) parsePrimary(depth int) (formulaNode, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return numberNode(tok.value), nil
	case tokIdent:
		p.vars[tok.text] = struct{}{}
		return variableNode(tok.text), nil
	case tokLParen:
		inner, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, formulaErrorf(closing.pos, "expected ')' but found %q", closing.text)
		}
		return inner, nil
	default:
		return nil, formulaErrorf(tok.pos, "expected a number, variable or '(' but found %q", tok.text)
	}
}

type formulaNode interface {
	eval(vars map[string]float64) (float64, error)
}

type numberNode float64

func (n numberNode) eval(map[string]float64) (float64, error) { return float64(n), nil }

type variableNode string

func (n variableNode) eval(vars map[string]float64) (float64, error) {
	return vars[string(n)], nil
}

type negateNode struct {
	operand formulaNode
}

func (n *negateNode) eval(vars map[string]float64) (float64, error) {
	v, err := n.operand.eval(vars)
	if err != nil {
		return 0, err
	}
	return -v, nil
}

type binaryNode struct {
	op          byte
	left, right formulaNode
	pos         int
}

func (n *binaryNode) eval(vars map[string]float64) (float64, error) {
	l, err := n.left.eval(vars)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(vars)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		if r == 0 {
			return 0, formulaErrorf(n.pos, "division by zero")
		}
		return l / r, nil
	default:
		return 0, formulaErrorf(n.pos, "unsupported operator %q", n.op)
	}
}
