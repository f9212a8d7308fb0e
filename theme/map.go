package theme

import (
	"strings"

	"github.com/go-textmate/grammar"
)

// ColorMapping attaches the resolved TokenColor to one span of a
// tokenized line.
type ColorMapping struct {
	TokenColor
	Start, End int
}

func getSplitted(current map[string]TokenColor, name string) (TokenColor, bool) {
	for name != "" {
		s, ok := current[name]
		if ok {
			return s, true
		}
		i := strings.LastIndexByte(name, '.')
		if i == -1 {
			break
		}
		name = name[:i]
	}
	return TokenColor{}, false
}

// getToken walks a token's scope list root->leaf, preferring the most
// specific (innermost) scope the theme defines a rule for but falling
// back to an outer ancestor when the leaf itself is unstyled.
func (t *Theme) getToken(scopes []string) (TokenColor, bool) {
	var last TokenColor
	found := false

	for _, name := range scopes {
		c, ok := getSplitted(t.Tokens, name)
		if !ok {
			continue
		}
		last = c
		found = true
	}

	return last, found
}

// MapTokens resolves every token of a tokenized line against the theme,
// in order. Tokens from this package already tile the line (spec.md
// §4.6), so consumers no longer need the old overlap-resolution pass.
func (t *Theme) MapTokens(tokens []textmate.Token) []ColorMapping {
	res := make([]ColorMapping, 0, len(tokens))
	for _, tok := range tokens {
		s, _ := t.getToken(tok.Scopes)
		res = append(res, ColorMapping{TokenColor: s, Start: tok.Start, End: tok.End})
	}
	return res
}
