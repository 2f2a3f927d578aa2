package expr

import (
	"testing"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/block"
	"github.com/duynguyendang/blockbaker/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLex(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Token
	}{
		{
			name:  "operators",
			input: "a + b",
			want: []Token{
				{TokenIdent, "a", 0},
				{TokenUnion, "+", 2},
				{TokenIdent, "b", 4},
			},
		},
		{
			name:  "enum value and grouping",
			input: "color:red&(x^y)",
			want: []Token{
				{TokenIdent, "color:red", 0},
				{TokenIntersection, "&", 9},
				{TokenLParen, "(", 10},
				{TokenIdent, "x", 11},
				{TokenXor, "^", 12},
				{TokenIdent, "y", 13},
				{TokenRParen, ")", 14},
			},
		},
		{
			name:  "dash inside identifier",
			input: "a-b",
			want:  []Token{{TokenIdent, "a-b", 0}},
		},
		{
			name:  "dash as operator",
			input: "a -b",
			want: []Token{
				{TokenIdent, "a", 0},
				{TokenDifference, "-", 2},
				{TokenIdent, "b", 3},
			},
		},
		{
			name:  "literal",
			input: " [stone oak_stairs:half=top,bottom]",
			want:  []Token{{TokenLiteral, "[stone oak_stairs:half=top,bottom]", 1}},
		},
		{
			name:  "literal with digits",
			input: "[wheat:age=7]",
			want:  []Token{{TokenLiteral, "[wheat:age=7]", 0}},
		},
		{
			name:  "nested path",
			input: "stairs/solid/north",
			want:  []Token{{TokenIdent, "stairs/solid/north", 0}},
		},
		{
			name:  "empty",
			input: "   ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Lex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexUnknownToken(t *testing.T) {
	tests := []struct {
		input string
		bad   string
	}{
		{"a + $foo", `"$foo"`},
		{"a + b!c d", `"!c"`},
		{"[stone", `"[stone"`},
		{"9lives", `"9lives"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Lex(tt.input)
			require.ErrorIs(t, err, ErrUnknownToken)
			assert.ErrorIs(t, err, apperrors.ErrInvalidExpression)
			assert.Contains(t, err.Error(), tt.bad)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"a", "a"},
		{"color:red", "color:red"},
		{"a/b:c:d", "a/b:c:d"},
		{"a + b - c", "((a + b) - c)"},
		{"a + (b - c)", "(a + (b - c))"},
		{"a & b ^ c", "((a & b) ^ c)"},
		{"((a))", "a"},
		{"[oak_stairs:half=top]", "[minecraft:oak_stairs:half=top]"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseIdentitySplitsOnLastColon(t *testing.T) {
	n, err := Parse("a/b:c:d")
	require.NoError(t, err)
	id, ok := n.(*Identity)
	require.True(t, ok)
	assert.Equal(t, "a/b:c", id.Tag)
	assert.Equal(t, "d", id.Value)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrUnexpectedEOF},
		{"dangling operator", "a +", ErrUnexpectedEOF},
		{"unclosed group", "(a", ErrUnexpectedEOF},
		{"leading operator", "+ a", ErrUnexpectedToken},
		{"missing operator", "a b", ErrUnexpectedToken},
		{"stray paren", "a )", ErrUnexpectedToken},
		{"empty group", "()", ErrUnexpectedToken},
		{"unknown token", "a % b", ErrUnknownToken},
		{"bad literal", "[a:b:c]", apperrors.ErrInvalidExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, apperrors.ErrInvalidExpression)
		})
	}

	_, err := Parse("(a")
	assert.Contains(t, err.Error(), "expected one of ')'")
}

func library(t *testing.T, contents map[string][]string) *tags.Library {
	t.Helper()
	lib := tags.New(nil)
	for p, items := range contents {
		tag, err := lib.CreateBool(p)
		require.NoError(t, err)
		require.NoError(t, tag.Add(block.MustParseCollection(items...)))
	}
	return lib
}

func TestEvaluate(t *testing.T) {
	lib := library(t, map[string][]string{
		"a":      {"x"},
		"b":      {"y", "z"},
		"c":      {"x", "z"},
		"stairs": {"oak_stairs:half=bottom,top", "stone"},
	})
	color, err := lib.CreateEnum("color", []string{"red", "blue"})
	require.NoError(t, err)
	require.NoError(t, color.AddValue("red", block.MustParseCollection("red_wool")))
	require.NoError(t, color.AddValue("blue", block.MustParseCollection("blue_wool")))

	tests := []struct {
		input string
		want  []string
	}{
		{"a + b - c", []string{"y"}},
		{"a + (b - c)", []string{"x", "y"}},
		{"b & c", []string{"z"}},
		{"b ^ c", []string{"x", "y"}},
		{"color", []string{"red_wool", "blue_wool"}},
		{"color:red", []string{"red_wool"}},
		{"a:ignored", []string{"x"}},
		{"stairs & [oak_stairs:half=top]", []string{"oak_stairs:half=top"}},
		{"stairs - [oak_stairs:half=top]", []string{"oak_stairs:half=bottom", "stone"}},
		{"[x y] - a", []string{"y"}},
	}

	e, err := NewEvaluator(lib)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := e.Evaluate(tt.input)
			require.NoError(t, err)
			assert.True(t, block.MustParseCollection(tt.want...).Equal(got), "got %s", got)

			direct, err := Evaluate(tt.input, lib)
			require.NoError(t, err)
			assert.True(t, got.Equal(direct))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	lib := library(t, map[string][]string{"a": {"x"}})
	color, err := lib.CreateEnum("color", []string{"red"})
	require.NoError(t, err)
	require.NoError(t, color.AddValue("red", block.MustParseCollection("red_wool")))

	e, err := NewEvaluator(lib, WithCacheSize(4))
	require.NoError(t, err)

	_, err = e.Evaluate("a + missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = e.Evaluate("color:green")
	assert.ErrorIs(t, err, apperrors.ErrNoSuchValue)
	_, err = e.Evaluate("a +")
	assert.ErrorIs(t, err, apperrors.ErrInvalidExpression)
}

func TestEvaluatorDoesNotMutate(t *testing.T) {
	lib := library(t, map[string][]string{"a": {"x"}, "b": {"x", "y"}})
	e, err := NewEvaluator(lib)
	require.NoError(t, err)

	first, err := e.Evaluate("[z] + a")
	require.NoError(t, err)
	first.Insert(block.MustParse("w"))

	again, err := e.Evaluate("[z] + a")
	require.NoError(t, err)
	assert.True(t, block.MustParseCollection("z", "x").Equal(again))

	_, err = e.Evaluate("b - a")
	require.NoError(t, err)
	b, err := lib.Get("b")
	require.NoError(t, err)
	contents, err := b.Get()
	require.NoError(t, err)
	assert.True(t, block.MustParseCollection("x", "y").Equal(contents))
}

func TestCompileCache(t *testing.T) {
	e, err := NewEvaluator(tags.New(nil), WithCacheSize(1))
	require.NoError(t, err)

	first, err := e.Compile("a + b")
	require.NoError(t, err)
	second, err := e.Compile("a + b")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = e.Compile("c")
	require.NoError(t, err)
	third, err := e.Compile("a + b")
	require.NoError(t, err)
	assert.NotSame(t, first, third, "evicted entry is parsed again")
	assert.Equal(t, first.String(), third.String())

	_, err = e.Compile("a +")
	assert.Error(t, err)
}
