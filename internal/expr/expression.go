// Package expr evaluates the small Python-like expression language used by
// ifeval conditions and the eval system attribute.
//
// Supported are literals (strings, integers, floats, True, False, None and
// lists), arithmetic, comparison and membership operators, boolean
// operators, conditional expressions, a handful of builtin functions and
// the common string methods.
package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Value is the result of evaluating an expression: nil (None), bool, int64,
// float64, string or []Value.
type Value interface{}

// Node is a node of a parsed expression.
type Node interface {
	String() string
	Evaluate() (Value, error)
}

// LiteralNode is a literal value.
type LiteralNode struct {
	Value Value
}

func (n *LiteralNode) String() string { return fmt.Sprintf("Literal(%s)", Repr(n.Value)) }

// Evaluate returns the literal.
func (n *LiteralNode) Evaluate() (Value, error) { return n.Value, nil }

// NameNode references a name; only builtin functions are bound.
type NameNode struct {
	Name string
}

func (n *NameNode) String() string { return fmt.Sprintf("Name(%s)", n.Name) }

// Evaluate fails: names only have meaning when called.
func (n *NameNode) Evaluate() (Value, error) {
	return nil, fmt.Errorf("name %q is not defined", n.Name)
}

// ListNode is a list display.
type ListNode struct {
	Items []Node
}

func (n *ListNode) String() string {
	parts := make([]string, len(n.Items))
	for i, item := range n.Items {
		parts[i] = item.String()
	}
	return "List(" + strings.Join(parts, ", ") + ")"
}

// Evaluate evaluates every item.
func (n *ListNode) Evaluate() (Value, error) {
	list := make([]Value, len(n.Items))
	for i, item := range n.Items {
		v, err := item.Evaluate()
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

// BinaryOpNode is a binary operation.
type BinaryOpNode struct {
	Left     Node
	Operator string
	Right    Node
}

func (n *BinaryOpNode) String() string {
	return fmt.Sprintf("BinaryOp(%s %s %s)", n.Left, n.Operator, n.Right)
}

// Evaluate evaluates both operands, short circuiting "and" and "or".
func (n *BinaryOpNode) Evaluate() (Value, error) {
	left, err := n.Left.Evaluate()
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "and":
		if !Truthy(left) {
			return left, nil
		}
		return n.Right.Evaluate()
	case "or":
		if Truthy(left) {
			return left, nil
		}
		return n.Right.Evaluate()
	}
	right, err := n.Right.Evaluate()
	if err != nil {
		return nil, err
	}
	return EvaluateBinaryOperation(left, n.Operator, right)
}

// CompareNode is a chain of comparisons, as in "a < b <= c".
type CompareNode struct {
	Operands  []Node
	Operators []string
}

func (n *CompareNode) String() string {
	var sb strings.Builder
	sb.WriteString("Compare(")
	for i, op := range n.Operands {
		if i > 0 {
			fmt.Fprintf(&sb, " %s ", n.Operators[i-1])
		}
		sb.WriteString(op.String())
	}
	sb.WriteString(")")
	return sb.String()
}

// Evaluate evaluates the chain left to right, stopping at the first false
// comparison.
func (n *CompareNode) Evaluate() (Value, error) {
	left, err := n.Operands[0].Evaluate()
	if err != nil {
		return nil, err
	}
	for i, op := range n.Operators {
		right, err := n.Operands[i+1].Evaluate()
		if err != nil {
			return nil, err
		}
		ok, err := compare(left, op, right)
		if err != nil || !ok {
			return false, err
		}
		left = right
	}
	return true, nil
}

// UnaryOpNode is a unary operation.
type UnaryOpNode struct {
	Operator string
	Operand  Node
}

func (n *UnaryOpNode) String() string {
	return fmt.Sprintf("UnaryOp(%s %s)", n.Operator, n.Operand)
}

// Evaluate applies the operator.
func (n *UnaryOpNode) Evaluate() (Value, error) {
	v, err := n.Operand.Evaluate()
	if err != nil {
		return nil, err
	}
	switch n.Operator {
	case "not":
		return !Truthy(v), nil
	case "-":
		return EvaluateBinaryOperation(int64(0), "-", v)
	case "+":
		if _, ok := toNumber(v); !ok {
			return nil, fmt.Errorf("bad operand type for unary +: %s", typeName(v))
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown unary operator: %s", n.Operator)
}

// CondNode is a conditional expression "a if cond else b".
type CondNode struct {
	Cond, Then, Else Node
}

func (n *CondNode) String() string {
	return fmt.Sprintf("Cond(%s if %s else %s)", n.Then, n.Cond, n.Else)
}

// Evaluate evaluates one branch.
func (n *CondNode) Evaluate() (Value, error) {
	c, err := n.Cond.Evaluate()
	if err != nil {
		return nil, err
	}
	if Truthy(c) {
		return n.Then.Evaluate()
	}
	return n.Else.Evaluate()
}

// IndexNode is a subscript or slice.
type IndexNode struct {
	Object          Node
	Index, Low, Top Node
	Slice           bool
}

func (n *IndexNode) String() string {
	if n.Slice {
		return fmt.Sprintf("Slice(%s[%v:%v])", n.Object, n.Low, n.Top)
	}
	return fmt.Sprintf("Index(%s[%s])", n.Object, n.Index)
}

// Evaluate indexes a string or list.
func (n *IndexNode) Evaluate() (Value, error) {
	obj, err := n.Object.Evaluate()
	if err != nil {
		return nil, err
	}
	if !n.Slice {
		i, err := n.Index.Evaluate()
		if err != nil {
			return nil, err
		}
		return index(obj, i)
	}
	var lo, hi Value
	if n.Low != nil {
		if lo, err = n.Low.Evaluate(); err != nil {
			return nil, err
		}
	}
	if n.Top != nil {
		if hi, err = n.Top.Evaluate(); err != nil {
			return nil, err
		}
	}
	return slice(obj, lo, hi)
}

// CallNode calls a builtin function, or a method when Object is set.
type CallNode struct {
	Object Node
	Name   string
	Args   []Node
}

func (n *CallNode) String() string {
	parts := make([]string, len(n.Args))
	for i, arg := range n.Args {
		parts[i] = arg.String()
	}
	if n.Object != nil {
		return fmt.Sprintf("Call(%s.%s(%s))", n.Object, n.Name, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("Call(%s(%s))", n.Name, strings.Join(parts, ", "))
}

// Evaluate evaluates the arguments and dispatches the call.
func (n *CallNode) Evaluate() (Value, error) {
	args := make([]Value, len(n.Args))
	for i, arg := range n.Args {
		v, err := arg.Evaluate()
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if n.Object == nil {
		fn, ok := builtins[n.Name]
		if !ok {
			return nil, fmt.Errorf("name %q is not defined", n.Name)
		}
		return fn(args)
	}
	obj, err := n.Object.Evaluate()
	if err != nil {
		return nil, err
	}
	return callMethod(obj, n.Name, args)
}

// TokenType classifies expression tokens.
type TokenType int

// Token types.
const (
	TokenName TokenType = iota
	TokenNumber
	TokenString
	TokenOperator
	TokenEOF
)

// Token is a lexical token of an expression.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

var (
	nameRegex     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*`)
	numberRegex   = regexp.MustCompile(`^(0[xX][0-9a-fA-F]+|([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?)[lL]?`)
	stringRegex   = regexp.MustCompile(`^[rRuU]?("([^"\\]|\\.)*"|'([^'\\]|\\.)*')`)
	operatorRegex = regexp.MustCompile(`^(\*\*|//|==|!=|<=|>=|<>|[-+*/%<>()\[\],.:])`)
)

// Tokenize splits an expression into tokens.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	for pos := 0; pos < len(src); {
		switch src[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
			continue
		}
		rest := src[pos:]
		var tok Token
		if m := stringRegex.FindString(rest); m != "" {
			tok = Token{Type: TokenString, Value: m}
		} else if m := nameRegex.FindString(rest); m != "" {
			tok = Token{Type: TokenName, Value: m}
		} else if m := numberRegex.FindString(rest); m != "" {
			tok = Token{Type: TokenNumber, Value: m}
		} else if m := operatorRegex.FindString(rest); m != "" {
			tok = Token{Type: TokenOperator, Value: m}
		} else {
			return nil, fmt.Errorf("invalid syntax at position %d: %q", pos, rest)
		}
		tok.Pos = pos
		tokens = append(tokens, tok)
		pos += len(tok.Value)
	}
	return tokens, nil
}

// Parse parses an expression; trailing tokens are an error.
func Parse(src string) (Node, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, fmt.Errorf("invalid syntax: unexpected %q at position %d", tok.Value, tok.Pos)
	}
	return node, nil
}

// Eval parses and evaluates an expression.
func Eval(src string) (Value, error) {
	node, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return node.Evaluate()
}

// Parser parses expression tokens into nodes.
type Parser struct {
	tokens []Token
	pos    int
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF, Pos: -1}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek(offset int) Token {
	if i := p.pos + offset; i < len(p.tokens) {
		return p.tokens[i]
	}
	return Token{Type: TokenEOF, Pos: -1}
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

// is returns true if the current token is an operator or keyword with one
// of the given values.
func (p *Parser) is(values ...string) bool {
	tok := p.current()
	if tok.Type != TokenOperator && tok.Type != TokenName {
		return false
	}
	for _, v := range values {
		if tok.Value == v {
			return true
		}
	}
	return false
}

func (p *Parser) expect(value string) error {
	if !p.is(value) {
		tok := p.current()
		if tok.Type == TokenEOF {
			return fmt.Errorf("invalid syntax: expected %q at end of expression", value)
		}
		return fmt.Errorf("invalid syntax: expected %q at position %d", value, tok.Pos)
	}
	p.advance()
	return nil
}

// parseExpression parses a conditional expression (lowest precedence).
func (p *Parser) parseExpression() (Node, error) {
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.is("if") {
		return node, nil
	}
	p.advance()
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expect("else"); err != nil {
		return nil, err
	}
	alt, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &CondNode{Cond: cond, Then: node, Else: alt}, nil
}

func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.is("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: "or", Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.is("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: "and", Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (Node, error) {
	if p.is("not") {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Operator: "not", Operand: operand}, nil
	}
	return p.parseComparison()
}

// parseComparison parses comparison chains, including the membership and
// identity operators.
func (p *Parser) parseComparison() (Node, error) {
	first, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	cmp := &CompareNode{Operands: []Node{first}}
	for {
		var op string
		switch {
		case p.is("==", "!=", "<>", "<", ">", "<=", ">=", "in"):
			op = p.current().Value
			p.advance()
		case p.is("not") && p.peek(1).Value == "in":
			op = "not in"
			p.advance()
			p.advance()
		case p.is("is"):
			op = "is"
			p.advance()
			if p.is("not") {
				op = "is not"
				p.advance()
			}
		default:
			if len(cmp.Operators) == 0 {
				return first, nil
			}
			return cmp, nil
		}
		right, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		cmp.Operators = append(cmp.Operators, op)
		cmp.Operands = append(cmp.Operands, right)
	}
}

func (p *Parser) parseSum() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator && p.is("+", "-") {
		op := p.current().Value
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator && p.is("*", "/", "//", "%") {
		op := p.current().Value
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOpNode{Left: left, Operator: op, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Node, error) {
	if p.current().Type == TokenOperator && p.is("-", "+") {
		op := p.current().Value
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOpNode{Operator: op, Operand: operand}, nil
	}
	return p.parsePower()
}

func (p *Parser) parsePower() (Node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.current().Type == TokenOperator && p.is("**") {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &BinaryOpNode{Left: left, Operator: "**", Right: right}, nil
	}
	return left, nil
}

// parsePostfix parses calls, method calls and subscripts.
func (p *Parser) parsePostfix() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOperator {
		switch p.current().Value {
		case "(":
			name, ok := left.(*NameNode)
			if !ok {
				return nil, fmt.Errorf("invalid syntax: %s is not callable", left)
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			left = &CallNode{Name: name.Name, Args: args}

		case ".":
			p.advance()
			tok := p.current()
			if tok.Type != TokenName {
				return nil, fmt.Errorf("invalid syntax: expected name after '.'")
			}
			p.advance()
			if !p.is("(") {
				return nil, fmt.Errorf("attribute access is not supported: %s", tok.Value)
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			left = &CallNode{Object: left, Name: tok.Value, Args: args}

		case "[":
			p.advance()
			node := &IndexNode{Object: left}
			if !p.is(":") {
				if node.Index, err = p.parseExpression(); err != nil {
					return nil, err
				}
			}
			if p.is(":") {
				p.advance()
				node.Slice, node.Low, node.Index = true, node.Index, nil
				if !p.is("]") {
					if node.Top, err = p.parseExpression(); err != nil {
						return nil, err
					}
				}
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			left = node

		default:
			return left, nil
		}
	}
	return left, nil
}

func (p *Parser) parseArgs() ([]Node, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []Node
	for !p.is(")") {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.is(",") {
			break
		}
		p.advance()
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Node, error) {
	tok := p.current()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		v, err := parseNumber(tok.Value)
		if err != nil {
			return nil, err
		}
		return &LiteralNode{Value: v}, nil

	case TokenString:
		var sb strings.Builder
		for p.current().Type == TokenString {
			sb.WriteString(unquote(p.current().Value))
			p.advance()
		}
		return &LiteralNode{Value: sb.String()}, nil

	case TokenName:
		p.advance()
		switch tok.Value {
		case "True":
			return &LiteralNode{Value: true}, nil
		case "False":
			return &LiteralNode{Value: false}, nil
		case "None":
			return &LiteralNode{Value: nil}, nil
		case "and", "or", "not", "in", "is", "if", "else":
			return nil, fmt.Errorf("invalid syntax: unexpected %q at position %d", tok.Value, tok.Pos)
		}
		return &NameNode{Name: tok.Value}, nil

	case TokenOperator:
		switch tok.Value {
		case "(":
			p.advance()
			node, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			return node, nil
		case "[":
			p.advance()
			list := &ListNode{}
			for !p.is("]") {
				item, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				list.Items = append(list.Items, item)
				if !p.is(",") {
					break
				}
				p.advance()
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			return list, nil
		}
	case TokenEOF:
		return nil, fmt.Errorf("invalid syntax: unexpected end of expression")
	}
	return nil, fmt.Errorf("invalid syntax: unexpected %q at position %d", tok.Value, tok.Pos)
}

func parseNumber(s string) (Value, error) {
	s = strings.TrimRight(s, "lL")
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number: %s", s)
	}
	return f, nil
}

// unquote strips the quotes and optional prefix of a string token and
// resolves its escapes; raw strings keep their backslashes.
func unquote(tok string) string {
	raw := false
	switch tok[0] {
	case 'r', 'R':
		raw = true
		tok = tok[1:]
	case 'u', 'U':
		tok = tok[1:]
	}
	body := tok[1 : len(tok)-1]
	if raw || !strings.ContainsRune(body, '\\') {
		return body
	}
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case '\\', '\'', '"':
			sb.WriteByte(e)
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\n':
		default:
			sb.WriteByte('\\')
			sb.WriteByte(e)
		}
	}
	return sb.String()
}
