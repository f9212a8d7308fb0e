package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func wordGrammar() *RawGrammar {
	return &RawGrammar{
		ScopeName: "source.words",
		Patterns: []*RawRule{
			{Match: `hello`, Name: "keyword.hello"},
			{Match: `world`, Name: "keyword.world"},
		},
	}
}

func TestTokenizeLineTilesTheLine(t *testing.T) {
	g := NewGrammar(wordGrammar())

	result := g.TokenizeLine("hello world", Stack{})

	require.NotEmpty(t, result.Tokens)
	require.Equal(t, 0, result.Tokens[0].Start)
	for i := 0; i < len(result.Tokens)-1; i++ {
		require.Equal(t, result.Tokens[i].End, result.Tokens[i+1].Start)
	}
	require.Equal(t, len("hello world"), result.Tokens[len(result.Tokens)-1].End)
}

func TestTokenizeLineScopesStartWithTopLevelScope(t *testing.T) {
	g := NewGrammar(wordGrammar())

	result := g.TokenizeLine("hello world", Stack{})

	for _, tok := range result.Tokens {
		require.NotEmpty(t, tok.Scopes)
		require.Equal(t, "source.words", tok.Scopes[0])
	}
}

func TestTokenizeLineMatchesKeywords(t *testing.T) {
	g := NewGrammar(wordGrammar())

	result := g.TokenizeLine("hello world", Stack{})

	var sawHello, sawWorld bool
	for _, tok := range result.Tokens {
		for _, s := range tok.Scopes {
			if s == "keyword.hello" {
				sawHello = true
			}
			if s == "keyword.world" {
				sawWorld = true
			}
		}
	}
	require.True(t, sawHello)
	require.True(t, sawWorld)
}

func beginEndGrammar() *RawGrammar {
	return &RawGrammar{
		ScopeName: "source.strings",
		Patterns: []*RawRule{
			{
				Name:  "string.quoted.double",
				Begin: `"`,
				End:   `"`,
			},
		},
	}
}

func TestTokenizeLineThreadsStackAcrossLines(t *testing.T) {
	g := NewGrammar(beginEndGrammar())

	first := g.TokenizeLine(`"unterminated`, Stack{})
	require.Equal(t, 2, first.Stack.top.depth(), "still inside the quoted string")

	second := g.TokenizeLine(`still inside"`, first.Stack)
	require.Equal(t, 1, second.Stack.top.depth(), "closing quote pops back to the root frame")
}

func TestTokenizeLineDeterministicOnSameStack(t *testing.T) {
	g := NewGrammar(wordGrammar())

	a := g.TokenizeLine("hello world", Stack{})
	b := g.TokenizeLine("hello world", Stack{})

	require.Equal(t, a.Tokens, b.Tokens)
	require.True(t, a.Stack.Equal(b.Stack))
}

func TestRuleGraphCompilationIsIdempotent(t *testing.T) {
	raw := wordGrammar()
	g1 := NewGrammar(raw)
	g2 := NewGrammar(raw)

	require.Equal(t, g1.RuleCount(), g2.RuleCount())
	require.Equal(t, g1.ScopeNames(), g2.ScopeNames())
}
