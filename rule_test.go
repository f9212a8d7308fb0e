package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-textmate/grammar/regexp"
)

func TestHasBackReferences(t *testing.T) {
	require.True(t, hasBackReferences(`end\1`))
	require.False(t, hasBackReferences(`end`))
	require.False(t, hasBackReferences(`\\1`)) // escaped backslash, not a back-reference
}

func TestSubstituteCaptureRefs(t *testing.T) {
	text := "foobar"
	captures := []regexp.Range{
		{Start: 0, End: 6},
		{Start: 0, End: 3},
		{Start: 3, End: 6},
	}
	got := substituteCaptureRefs("tag.$1.$2", text, captures)
	require.Equal(t, "tag.foo.bar", got)
}

func TestSubstituteCaptureRefsAbsentCapture(t *testing.T) {
	text := "foo"
	captures := []regexp.Range{{Start: 0, End: 3}, {Start: -1, End: -1}}
	got := substituteCaptureRefs("tag.$1.end", text, captures)
	require.Equal(t, "tag..end", got)
}

func TestResolveBackReferences(t *testing.T) {
	text := "<<<MARKER"
	captures := []regexp.Range{{Start: 0, End: 9}, {Start: 3, End: 9}}
	got := resolveBackReferences(`end\1\.`, text, captures)
	require.Equal(t, `endMARKER\.`, got)
}

func TestCollectPatternsRecursiveTerminatesOnCycle(t *testing.T) {
	matchRaw := &RawRule{Match: `foo`, Name: "keyword.foo"}
	groupRaw := &RawRule{Patterns: []*RawRule{matchRaw, {Include: "#group"}}}

	raw := &RawGrammar{
		ScopeName:  "source.test",
		Repository: map[string]*RawRule{"group": groupRaw},
	}
	g := NewGrammar(raw)

	id := g.compileRuleIDFor(groupRaw)
	r := g.registry.getRule(id)

	var alts []regexAlt
	r.collectPatternsRecursive(g, &alts, map[int]bool{})

	require.Len(t, alts, 1)
	require.Equal(t, `foo`, alts[0].source)
}
