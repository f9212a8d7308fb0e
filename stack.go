package textmate

// stackFrame is one frame of the tokenization pushdown. Frames are
// persistent: popping never mutates the parent, and a frame may still be
// referenced by tokens emitted while it was on top (through its scope
// lists), so frames are never recycled.
type stackFrame struct {
	parent *stackFrame

	ruleID               int
	enterPos             int
	anchorPos            int
	beginRuleCapturedEOL bool

	// endRule holds the end/while pattern source with back-references
	// already substituted from the begin match, when the rule's textual
	// end pattern contains \N. Empty when the rule's end has no
	// back-references (the registry's own end source is used directly).
	endRule string

	// scannerCache memoizes the compiled scanner built from endRule, the
	// way rule.scannerCache does for a rule's static pattern set. A
	// BeginEnd frame with a back-reference-resolved end pattern can't share the
	// rule's own scannerCache (the resolved text is frame-specific), so it
	// gets one of its own, built once on first use and reused for the rest
	// of this frame's lifetime (including across reset() between lines)
	// rather than rebuilt, and its Oniguruma regexes leaked, on every scan.
	scannerCache *regexSourceList

	nameScopes    *scopeList
	contentScopes *scopeList
}

// push opens a new frame on top of the receiver.
func (s *stackFrame) push(ruleID, enterPos, anchorPos int, capturedEOL bool, endRule string, nameScopes, contentScopes *scopeList) *stackFrame {
	return &stackFrame{
		parent:               s,
		ruleID:               ruleID,
		enterPos:             enterPos,
		anchorPos:            anchorPos,
		beginRuleCapturedEOL: capturedEOL,
		endRule:              endRule,
		nameScopes:           nameScopes,
		contentScopes:        contentScopes,
	}
}

// pop returns the parent frame, or nil at the root. Popping the root is a
// StackUnderflow per spec.md §7 and is ignored by callers (they check for
// nil before replacing their current frame).
func (s *stackFrame) pop() *stackFrame {
	if s == nil {
		return nil
	}
	return s.parent
}

// withContentScopes clones the top frame with a replaced content scope
// list, leaving every other frame (and the original) untouched.
func (s *stackFrame) withContentScopes(scopes *scopeList) *stackFrame {
	clone := *s
	clone.contentScopes = scopes
	return &clone
}

// withEndRule clones the top frame with a resolved end/while pattern,
// invalidating any scanner already cached for the old pattern.
func (s *stackFrame) withEndRule(resolved string) *stackFrame {
	clone := *s
	clone.endRule = resolved
	clone.scannerCache = nil
	return &clone
}

// reset clears transient per-line fields ahead of tokenizing a new line
// with an inherited stack.
func (s *stackFrame) reset() *stackFrame {
	if s == nil {
		return nil
	}
	clone := *s
	clone.enterPos = -1
	clone.anchorPos = -1
	return &clone
}

// depth counts frames from the receiver to the root, inclusive; used by
// consumers that want a nesting depth (the teacher's Token.Depth concept
// for overlap priority no longer applies here, since tokens never
// overlap, but depth is still useful for diagnostics and debug dumps).
func (s *stackFrame) depth() int {
	n := 0
	for p := s; p != nil; p = p.parent {
		n++
	}
	return n
}

// equal reports whether two stacks represent the same resumable state:
// same rule ids and scope names top to bottom. Used to support caller-side
// memoization per spec.md §5.
func (s *stackFrame) equal(other *stackFrame) bool {
	for s != nil && other != nil {
		if s.ruleID != other.ruleID || s.endRule != other.endRule {
			return false
		}
		if !s.nameScopes.equal(other.nameScopes) || !s.contentScopes.equal(other.contentScopes) {
			return false
		}
		s, other = s.parent, other.parent
	}
	return s == nil && other == nil
}
