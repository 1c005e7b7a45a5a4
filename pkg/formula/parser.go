package formula

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Expr is a parsed formula ready for repeated evaluation.
type Expr struct {
	root node
}

type node interface {
	eval(values map[string]any) (any, error)
}

type litNode struct{ value any }

func (n litNode) eval(map[string]any) (any, error) { return n.value, nil }

// identNode resolves a whole identifier token against the value context.
// A missing field yields nil, which downstream coercions turn into NaN in
// arithmetic and false in boolean positions.
type identNode struct{ name string }

func (n identNode) eval(values map[string]any) (any, error) {
	if values == nil {
		return nil, nil
	}
	return values[n.name], nil
}

type unaryNode struct {
	op    tokenKind
	inner node
}

func (n unaryNode) eval(values map[string]any) (any, error) {
	inner, err := n.inner.eval(values)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokenNot:
		return !truthy(inner), nil
	case tokenMinus:
		num, _ := coerceNumber(inner)
		return -num, nil
	}
	return nil, fmt.Errorf("formula: unsupported unary operator")
}

type binaryNode struct {
	op    tokenKind
	left  node
	right node
}

func (n binaryNode) eval(values map[string]any) (any, error) {
	switch n.op {
	case tokenAnd:
		left, err := n.left.eval(values)
		if err != nil {
			return nil, err
		}
		if !truthy(left) {
			return false, nil
		}
		right, err := n.right.eval(values)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	case tokenOr:
		left, err := n.left.eval(values)
		if err != nil {
			return nil, err
		}
		if truthy(left) {
			return true, nil
		}
		right, err := n.right.eval(values)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := n.left.eval(values)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(values)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokenPlus:
		return addValues(left, right), nil
	case tokenMinus, tokenStar, tokenSlash, tokenPercent:
		return arithmetic(n.op, left, right), nil
	case tokenEq:
		return looseEqual(left, right), nil
	case tokenNeq:
		return !looseEqual(left, right), nil
	case tokenLt, tokenLte, tokenGt, tokenGte:
		return compareOrdered(n.op, left, right), nil
	}
	return nil, fmt.Errorf("formula: unsupported operator")
}

type callNode struct {
	name string
	args []node
}

func (n callNode) eval(values map[string]any) (any, error) {
	return callFunction(n.name, n.args, values)
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) || s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) peek() (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	return s.tokens[s.pos], true
}

// Parse compiles a formula into an Expr. The grammar is the fixed whitelist
// from the metadata contract: arithmetic, comparisons, boolean composition,
// literals, field identifiers, and the built-in function set.
func Parse(input string) (*Expr, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("formula: empty expression")
	}
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, errors.New("formula: empty expression")
	}

	stream := &tokenStream{tokens: tokens}
	root, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("formula: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return &Expr{root: root}, nil
}

func parseOr(stream *tokenStream) (node, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (node, error) {
	left, err := parseComparison(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseComparison(stream)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func parseComparison(stream *tokenStream) (node, error) {
	left, err := parseAdditive(stream)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := stream.peek()
		if !ok {
			return left, nil
		}
		switch tok.kind {
		case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
			stream.pos++
			right, err := parseAdditive(stream)
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: tok.kind, left: left, right: right}
		default:
			return left, nil
		}
	}
}

func parseAdditive(stream *tokenStream) (node, error) {
	left, err := parseMultiplicative(stream)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := stream.peek()
		if !ok {
			return left, nil
		}
		switch tok.kind {
		case tokenPlus, tokenMinus:
			stream.pos++
			right, err := parseMultiplicative(stream)
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: tok.kind, left: left, right: right}
		default:
			return left, nil
		}
	}
}

func parseMultiplicative(stream *tokenStream) (node, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := stream.peek()
		if !ok {
			return left, nil
		}
		switch tok.kind {
		case tokenStar, tokenSlash, tokenPercent:
			stream.pos++
			right, err := parseUnary(stream)
			if err != nil {
				return nil, err
			}
			left = binaryNode{op: tok.kind, left: left, right: right}
		default:
			return left, nil
		}
	}
}

func parseUnary(stream *tokenStream) (node, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokenNot, inner: inner}, nil
	}
	if stream.match(tokenMinus) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokenMinus, inner: inner}, nil
	}
	return parsePrimary(stream)
}

func parsePrimary(stream *tokenStream) (node, error) {
	tok, ok := stream.peek()
	if !ok {
		return nil, errors.New("formula: unexpected end of expression")
	}

	switch tok.kind {
	case tokenLParen:
		stream.pos++
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("formula: missing closing ')'")
		}
		return inner, nil
	case tokenNumber:
		stream.pos++
		value, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("formula: invalid number literal %q", tok.raw)
		}
		return litNode{value: value}, nil
	case tokenString:
		stream.pos++
		return litNode{value: tok.raw}, nil
	case tokenBool:
		stream.pos++
		return litNode{value: tok.raw == "true"}, nil
	case tokenNull:
		stream.pos++
		return litNode{value: nil}, nil
	case tokenIdentifier:
		stream.pos++
		if stream.match(tokenLParen) {
			return parseCall(stream, tok.raw)
		}
		return identNode{name: tok.raw}, nil
	}
	return nil, fmt.Errorf("formula: unexpected token %q", tok.raw)
}

func parseCall(stream *tokenStream, name string) (node, error) {
	upper := strings.ToUpper(name)
	if !isFunction(upper) {
		return nil, fmt.Errorf("formula: unknown function %q", name)
	}

	call := callNode{name: upper}
	if stream.match(tokenRParen) {
		return call, nil
	}
	for {
		arg, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		if stream.match(tokenComma) {
			continue
		}
		if stream.match(tokenRParen) {
			return call, nil
		}
		return nil, fmt.Errorf("formula: missing ')' in call to %s", name)
	}
}
