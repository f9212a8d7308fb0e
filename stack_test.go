package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackFramePushPop(t *testing.T) {
	var root *stackFrame
	names := root.push(0, -1, -1, false, "", nil, nil)
	child := names.push(1, 0, -1, false, "", nil, nil)

	require.Equal(t, 2, child.depth())
	require.Equal(t, names, child.pop())
	require.Nil(t, root.pop())
}

func TestStackFrameWithContentScopesClones(t *testing.T) {
	var empty *scopeList
	frame := (&stackFrame{}).push(1, 0, -1, false, "", empty.push("a"), empty.push("a"))

	replaced := frame.withContentScopes(empty.push("b"))

	require.Equal(t, []string{"a"}, frame.contentScopes.flatten())
	require.Equal(t, []string{"b"}, replaced.contentScopes.flatten())
	require.Equal(t, frame.nameScopes, replaced.nameScopes)
}

func TestStackFrameResetClearsTransientFields(t *testing.T) {
	frame := (&stackFrame{}).push(1, 5, 5, false, "", nil, nil)
	reset := frame.reset()

	require.Equal(t, -1, reset.enterPos)
	require.Equal(t, -1, reset.anchorPos)
	require.Equal(t, frame.ruleID, reset.ruleID)
}

func TestStackFrameEqual(t *testing.T) {
	var empty *scopeList
	a := (&stackFrame{}).push(1, 0, -1, false, "", empty.push("x"), empty.push("x"))
	b := (&stackFrame{}).push(1, 0, -1, false, "", empty.push("x"), empty.push("x"))

	require.True(t, a.equal(b))
	require.False(t, a.equal(b.push(2, 0, -1, false, "", nil, nil)))
	require.True(t, (*stackFrame)(nil).equal(nil))
}
