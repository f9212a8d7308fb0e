package textmate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanAnchors(t *testing.T) {
	hasA, hasG := scanAnchors(`\A#include`)
	require.True(t, hasA)
	require.False(t, hasG)

	hasA, hasG = scanAnchors(`\Gfoo`)
	require.False(t, hasA)
	require.True(t, hasG)

	hasA, hasG = scanAnchors(`plain`)
	require.False(t, hasA)
	require.False(t, hasG)
}

func TestRewriteAnchorsDisallowed(t *testing.T) {
	rewritten := rewriteAnchors(`\Afoo`, false, true)
	require.Equal(t, neverMatch+"foo", rewritten)
}

func TestRewriteAnchorsAllowed(t *testing.T) {
	rewritten := rewriteAnchors(`\Afoo\G`, true, true)
	require.Equal(t, `\Afoo\G`, rewritten)
}

func TestRewriteAnchorsPreservesEscapedBackslash(t *testing.T) {
	// `\\A` is an escaped backslash followed by a literal 'A', not the
	// anchor `\A` - the rewrite must not touch it.
	rewritten := rewriteAnchors(`\\A`, false, false)
	require.Equal(t, `\\A`, rewritten)
}

func TestQuoteMeta(t *testing.T) {
	require.Equal(t, `\(a\.b\)`, quoteMeta(`(a.b)`))
	require.Equal(t, "plain", quoteMeta("plain"))
}

func TestScannerCacheIndex(t *testing.T) {
	require.Equal(t, 0, scannerCacheIndex(false, false))
	require.Equal(t, 1, scannerCacheIndex(true, false))
	require.Equal(t, 2, scannerCacheIndex(false, true))
	require.Equal(t, 3, scannerCacheIndex(true, true))
}
