package expr

import (
	"fmt"
	"strings"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
)

// Node is an expression tree node: *Identity, *BinaryOperator or *Literal.
type Node interface {
	String() string
	node()
}

// Identity references a tag, optionally one value of an enum tag.
type Identity struct {
	Tag   string
	Value string
}

// BinaryOperator combines two operands with a set operator.
type BinaryOperator struct {
	Op          TokenType
	Left, Right Node
}

// Literal is an inline block list.
type Literal struct {
	Blocks *block.Collection
}

func (*Identity) node()       {}
func (*BinaryOperator) node() {}
func (*Literal) node()        {}

func (n *Identity) String() string {
	if n.Value != "" {
		return n.Tag + ":" + n.Value
	}
	return n.Tag
}

func (n *BinaryOperator) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

func (n *Literal) String() string {
	return "[" + n.Blocks.String() + "]"
}

var (
	termStart = []TokenType{TokenLParen, TokenIdent, TokenLiteral}
	operators = []TokenType{TokenUnion, TokenDifference, TokenIntersection, TokenXor}
)

type parser struct {
	tokens []Token
	pos    int
}

// Parse parses src into an expression tree.
//
//	expr := term (OP term)*
//	term := '(' expr ')' | IDENT | LITERAL
func Parse(src string) (Node, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, p.unexpected(operators)
	}
	return n, nil
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) eat(want ...TokenType) (Token, error) {
	tok, ok := p.peek()
	if !ok {
		return Token{}, fmt.Errorf("%w, expected one of %s", ErrUnexpectedEOF, expected(want))
	}
	for _, w := range want {
		if tok.Type == w {
			p.pos++
			return tok, nil
		}
	}
	return Token{}, p.unexpected(want)
}

func (p *parser) unexpected(want []TokenType) error {
	tok := p.tokens[p.pos]
	return fmt.Errorf("%w %q at offset %d, expected one of %s", ErrUnexpectedToken, tok.Text, tok.Pos, expected(want))
}

func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok || !tok.Type.IsOperator() {
			return left, nil
		}
		p.pos++
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &BinaryOperator{Op: tok.Type, Left: left, Right: right}
	}
}

func (p *parser) term() (Node, error) {
	tok, err := p.eat(termStart...)
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case TokenLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.eat(TokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case TokenIdent:
		id := &Identity{Tag: tok.Text}
		if i := strings.LastIndex(tok.Text, ":"); i >= 0 {
			id.Tag, id.Value = tok.Text[:i], tok.Text[i+1:]
		}
		return id, nil
	default:
		blocks, err := block.ParseFields(strings.Trim(tok.Text, "[]"))
		if err != nil {
			return nil, fmt.Errorf("%w: literal at offset %d: %w", apperrors.ErrInvalidExpression, tok.Pos, err)
		}
		return &Literal{Blocks: blocks}, nil
	}
}

func expected(types []TokenType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = "'" + t.String() + "'"
	}
	return strings.Join(names, ", ")
}
