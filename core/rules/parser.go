package rules

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

type parseConfig struct {
	implicitAnd bool
}

// WithImplicitAnd controls whether adjacent terms without an operator between
// them are joined with AND. It is enabled by default.
func WithImplicitAnd(enabled bool) ParseOption {
	return func(c *parseConfig) {
		c.implicitAnd = enabled
	}
}

// Parse turns rule text into an expression tree. Nested groups of the same
// kind are flattened, so `a & (b & c)` yields a single AndNode with three
// operands.
func Parse(rule string, opts ...ParseOption) (Node, error) {
	cfg := parseConfig{implicitAnd: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	tokens, err := Lex(rule)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 1 {
		return nil, ErrEmptyExpression
	}

	p := &parser{tokens: tokens, cfg: cfg}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != TokenEOF {
		if tok.Kind == TokenRParen {
			return nil, syntaxErrorf(tok.Pos, "unmatched ')'")
		}
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Kind)
	}
	return node, nil
}

type parser struct {
	tokens []Token
	pos    int
	cfg    parseConfig
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	tok := p.tokens[p.pos]
	if tok.Kind != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	operands := []Node{first}
	for p.peek().Kind == TokenOr {
		p.next()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return &OrNode{Operands: flattenOr(operands)}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	operands := []Node{first}
	for {
		tok := p.peek()
		if tok.Kind == TokenAnd {
			p.next()
		} else if !p.cfg.implicitAnd || !startsUnary(tok.Kind) {
			break
		}
		next, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		operands = append(operands, next)
	}
	if len(operands) == 1 {
		return first, nil
	}
	return &AndNode{Operands: flattenAnd(operands)}, nil
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.next()
	switch tok.Kind {
	case TokenNot:
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NotNode{Operand: operand, Pos: tok.Pos}, nil
	case TokenLParen:
		if p.peek().Kind == TokenRParen {
			return nil, syntaxErrorf(tok.Pos, "empty parentheses")
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.Kind != TokenRParen {
			return nil, syntaxErrorf(tok.Pos, "missing ')' for '(' (found %s at %d)", closing.Kind, closing.Pos)
		}
		return inner, nil
	case TokenTerm:
		return &TermNode{Operator: tok.Operator, Operand: tok.Operand, Pos: tok.Pos}, nil
	case TokenEOF:
		return nil, syntaxErrorf(tok.Pos, "expression ends early")
	default:
		return nil, syntaxErrorf(tok.Pos, "unexpected %s", tok.Kind)
	}
}

func startsUnary(k TokenKind) bool {
	return k == TokenTerm || k == TokenNot || k == TokenLParen
}

// flattenOr lifts the operands of nested OrNodes into the parent list.
func flattenOr(operands []Node) []Node {
	out := make([]Node, 0, len(operands))
	for _, n := range operands {
		if child, ok := n.(*OrNode); ok {
			out = append(out, child.Operands...)
			continue
		}
		out = append(out, n)
	}
	return out
}

// flattenAnd lifts the operands of nested AndNodes into the parent list.
func flattenAnd(operands []Node) []Node {
	out := make([]Node, 0, len(operands))
	for _, n := range operands {
		if child, ok := n.(*AndNode); ok {
			out = append(out, child.Operands...)
			continue
		}
		out = append(out, n)
	}
	return out
}
