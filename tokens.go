package textmate

// Token is a scoped span of one tokenized line. Tokens tile the line
// exactly: Start of the first token is 0, End of the last equals the line
// length, and End of each token equals Start of the next. Unlike the
// teacher's Token (which carries a single Scope and a Depth, because its
// tokens may overlap), Scopes is the full root->leaf scope stack at the
// point of emission and tokens from this package never overlap.
type Token struct {
	Start  int
	End    int
	Scopes []string
}

// lineTokensBuilder accumulates non-overlapping tokens for one line.
type lineTokensBuilder struct {
	lastEmitted int
	tokens      []Token
}

func newLineTokensBuilder() *lineTokensBuilder {
	return &lineTokensBuilder{}
}

// produce emits a token spanning [lastEmitted, end) using the flattened
// scopes of the frame's content-name scope list. Zero-width spans are
// dropped, matching spec.md §4.6.
func (b *lineTokensBuilder) produce(top *stackFrame, end int) {
	b.produceFromScopes(top.contentScopes, end)
}

func (b *lineTokensBuilder) produceFromScopes(scopes *scopeList, end int) {
	if end <= b.lastEmitted {
		return
	}
	b.tokens = append(b.tokens, Token{
		Start:  b.lastEmitted,
		End:    end,
		Scopes: scopes.flatten(),
	})
	b.lastEmitted = end
}

// getResult emits a trailing token up to lineLength (using the current
// top-of-stack scopes) and returns the accumulated tokens for the line.
// Tokens produced over the "\n" the tokenizer appends for matching are
// dropped or cut back, so the result ends exactly at lineLength.
func (b *lineTokensBuilder) getResult(top *stackFrame, lineLength int) []Token {
	b.produce(top, lineLength)
	for len(b.tokens) > 0 && b.tokens[len(b.tokens)-1].Start >= lineLength {
		b.tokens = b.tokens[:len(b.tokens)-1]
	}
	if n := len(b.tokens); n > 0 && b.tokens[n-1].End > lineLength {
		b.tokens[n-1].End = lineLength
	}
	return b.tokens
}
