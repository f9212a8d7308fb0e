package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopeListPushFlatten(t *testing.T) {
	var root *scopeList
	withA := root.push("source.c")
	withAB := withA.push("meta.preprocessor.c")

	require.Equal(t, []string{"source.c"}, withA.flatten())
	require.Equal(t, []string{"source.c", "meta.preprocessor.c"}, withAB.flatten())
}

func TestScopeListPushEmptyIsNoOp(t *testing.T) {
	var root *scopeList
	withA := root.push("source.c")

	require.True(t, withA == withA.push(""))
}

func TestScopeListEqual(t *testing.T) {
	var root *scopeList
	left := root.push("a").push("b")
	right := root.push("a").push("b")

	require.True(t, left.equal(right))
	require.False(t, left.equal(right.push("c")))
}

func TestScopeListSharesStructure(t *testing.T) {
	var root *scopeList
	base := root.push("source.c")
	branchA := base.push("string.quoted.c")
	branchB := base.push("comment.line.c")

	require.Equal(t, base, branchA.parent)
	require.Equal(t, base, branchB.parent)
	require.NotEqual(t, branchA.flatten(), branchB.flatten())
}
