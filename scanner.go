package textmate

import (
	"strings"

	"github.com/go-textmate/grammar/regexp"
)

// regexAlt is one alternative contributed to a scanner: the rule id it
// belongs to (or the -1 end-pattern sentinel), its (unrewritten) regex
// source, and whether that source mentions the \A/\G anchors spec.md §4.2
// singles out for rewriting.
type regexAlt struct {
	ruleID int
	source string
	hasA   bool
	hasG   bool
}

// regexSourceList is an ordered collection of regexAlt that compiles, on
// demand, into a compiledScanner — cached per (isFirstLine, isAtAnchor),
// up to the 4 slots spec.md §5 budgets.
type regexSourceList struct {
	alts  []regexAlt
	cache [4]*compiledScanner
}

// compiledScanner is the materialized multi-alternative matcher: one
// Oniguruma regex per alternative, with a parallel ruleIDs array so a
// match's alternative index maps back to the rule (or sentinel) that
// produced it.
type compiledScanner struct {
	regexes []*regexp.Regexp
	ruleIDs []int
}

func scannerCacheIndex(isFirstLine, isAtAnchor bool) int {
	idx := 0
	if isFirstLine {
		idx |= 1
	}
	if isAtAnchor {
		idx |= 2
	}
	return idx
}

// compile returns the cached scanner for (isFirstLine, isAtAnchor),
// building and rewriting anchors on first use. Invalid regex alternatives
// (spec.md §7 InvalidRegex) are reported via diagnostics each time a
// scanner containing them is built (once per cache slot of every list
// they appear in, not once per rule id) and replaced with a pattern that
// can never match, so tokenization proceeds with the remaining
// alternatives.
func (g *Grammar) compile(list *regexSourceList, isFirstLine, isAtAnchor bool) *compiledScanner {
	idx := scannerCacheIndex(isFirstLine, isAtAnchor)
	if cs := list.cache[idx]; cs != nil {
		return cs
	}

	regexes := make([]*regexp.Regexp, len(list.alts))
	ids := make([]int, len(list.alts))
	for i, alt := range list.alts {
		ids[i] = alt.ruleID
		source := alt.source
		if alt.hasA || alt.hasG {
			source = rewriteAnchors(source, isFirstLine, isAtAnchor)
		}
		re, err := regexp.Compile(source, regexp.OptionNone)
		if err != nil {
			g.diagnostics.Warnf(alt.ruleID, "invalid regex %q: %v", alt.source, err)
			re, _ = regexp.Compile(neverMatch, regexp.OptionNone)
		}
		regexes[i] = re
	}

	cs := &compiledScanner{regexes: regexes, ruleIDs: ids}
	list.cache[idx] = cs
	return cs
}

// neverMatch is substituted for \A/\G when the current context disallows
// them, and for any alternative whose source failed to compile.
const neverMatch = `[^\s\S]`

// findNextMatch returns the tagged rule id of the earliest match at or
// after `from` among every alternative, breaking ties by the lowest
// alternative index, and its capture indices. ok is false when nothing
// matched.
func (cs *compiledScanner) findNextMatch(text string, from int) (ruleID int, captures []regexp.Range, ok bool) {
	bestStart := -1
	bestIdx := -1
	var bestCaptures []regexp.Range

	for i, re := range cs.regexes {
		start, groups, err := re.Search(text, from, len(text), regexp.OptionNone)
		if err != nil || start < 0 {
			continue
		}
		if bestStart == -1 || start < bestStart {
			bestStart = start
			bestIdx = i
			bestCaptures = groups
		}
	}

	if bestIdx == -1 {
		return 0, nil, false
	}
	return cs.ruleIDs[bestIdx], bestCaptures, true
}

// scanAnchors reports whether source contains an unescaped \A and/or \G.
func scanAnchors(source string) (hasA, hasG bool) {
	for i := 0; i < len(source)-1; i++ {
		if source[i] != '\\' {
			continue
		}
		switch source[i+1] {
		case 'A':
			hasA = true
		case 'G':
			hasG = true
		}
		i++
	}
	return
}

// rewriteAnchors replaces \A with itself when allowA is true (otherwise
// with a never-matching class), and likewise \G/allowG — matching
// spec.md §4.2's description of the 4-way scanner cache. Every other
// escape sequence (including a literal \\) is copied through untouched so
// the scan doesn't misparse an escaped backslash followed by 'A'/'G' as
// an anchor.
func rewriteAnchors(source string, allowA, allowG bool) string {
	var b strings.Builder
	b.Grow(len(source))
	i := 0
	for i < len(source) {
		c := source[i]
		if c == '\\' && i+1 < len(source) {
			switch source[i+1] {
			case 'A':
				if allowA {
					b.WriteString(`\A`)
				} else {
					b.WriteString(neverMatch)
				}
				i += 2
				continue
			case 'G':
				if allowG {
					b.WriteString(`\G`)
				} else {
					b.WriteString(neverMatch)
				}
				i += 2
				continue
			default:
				b.WriteByte(c)
				b.WriteByte(source[i+1])
				i += 2
				continue
			}
		}
		b.WriteByte(c)
		i++
	}
	return b.String()
}

// onigMetaChars are the characters quoteMeta escapes so literal capture
// text substituted into a back-reference-resolved end pattern is matched
// verbatim rather than interpreted as regex syntax.
const onigMetaChars = `\.+*?()|[]{}^$`

func quoteMeta(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(onigMetaChars, c) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	return b.String()
}
