// Package expr implements the tag expression language.
//
// An expression combines tag references and literal block lists with the
// set operators + (union), - (difference), & (intersection) and ^
// (symmetric difference). Operators have no precedence and apply left to
// right; parentheses group.
//
//	stairs + slab/top - [minecraft:oak_stairs:half=top]
//	(color:red ^ wool) & solid
package expr

import (
	"fmt"
	"regexp"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
)

var (
	ErrUnknownToken    = fmt.Errorf("%w: unknown token", apperrors.ErrInvalidExpression)
	ErrUnexpectedToken = fmt.Errorf("%w: unexpected token", apperrors.ErrInvalidExpression)
	ErrUnexpectedEOF   = fmt.Errorf("%w: unexpected end of expression", apperrors.ErrInvalidExpression)
)

// TokenType identifies a lexical class.
type TokenType int

const (
	TokenIdent TokenType = iota + 1
	TokenLParen
	TokenRParen
	TokenUnion
	TokenDifference
	TokenIntersection
	TokenXor
	TokenLiteral
)

func (t TokenType) String() string {
	switch t {
	case TokenIdent:
		return "IDENT"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	case TokenUnion:
		return "+"
	case TokenDifference:
		return "-"
	case TokenIntersection:
		return "&"
	case TokenXor:
		return "^"
	case TokenLiteral:
		return "LITERAL"
	default:
		return "?"
	}
}

// IsOperator reports whether t is a binary set operator.
func (t TokenType) IsOperator() bool {
	return t >= TokenUnion && t <= TokenXor
}

// Token is one lexeme and its byte offset in the source.
type Token struct {
	Type TokenType
	Text string
	Pos  int
}

type rule struct {
	re  *regexp.Regexp
	typ TokenType // zero means skip
}

// Rules are tried in order; the first match wins.
var rules = []rule{
	{regexp.MustCompile(`^\s+`), 0},
	{regexp.MustCompile(`^[a-zA-Z]+([/:\-_][a-zA-Z0-9]+)*`), TokenIdent},
	{regexp.MustCompile(`^\(`), TokenLParen},
	{regexp.MustCompile(`^\)`), TokenRParen},
	{regexp.MustCompile(`^\+`), TokenUnion},
	{regexp.MustCompile(`^-`), TokenDifference},
	{regexp.MustCompile(`^&`), TokenIntersection},
	{regexp.MustCompile(`^\^`), TokenXor},
	{regexp.MustCompile(`^\[[a-zA-Z0-9_:=,\s]+\]`), TokenLiteral},
}

var delimiter = regexp.MustCompile(`[\s()&^+\-]`)

// Lex splits src into tokens, dropping whitespace.
func Lex(src string) ([]Token, error) {
	var tokens []Token
	pos := 0
	for pos < len(src) {
		rest := src[pos:]
		matched := false
		for _, r := range rules {
			loc := r.re.FindStringIndex(rest)
			if loc == nil {
				continue
			}
			if r.typ != 0 {
				tokens = append(tokens, Token{Type: r.typ, Text: rest[:loc[1]], Pos: pos})
			}
			pos += loc[1]
			matched = true
			break
		}
		if !matched {
			bad := delimiter.Split(rest, 2)[0]
			return nil, fmt.Errorf("%w %q at offset %d", ErrUnknownToken, bad, pos)
		}
	}
	return tokens, nil
}
