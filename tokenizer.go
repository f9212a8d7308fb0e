package textmate

import "github.com/go-textmate/grammar/regexp"

// TokenizeResult is the return value of TokenizeLine: the line's tokens
// and the stack to feed back in for the next line.
type TokenizeResult struct {
	Tokens []Token
	Stack  Stack
}

// Stack is the opaque, resumable tokenizer state threaded between calls
// to TokenizeLine (spec.md §4.5, §5 "Cross-line state"). The zero Stack
// is the null/root sentinel: pass it for the first line of a document.
type Stack struct {
	top *stackFrame
}

// Equal reports whether s and other represent the same resumable state
// (spec.md §8's determinism/resumability property): same rule ids, same
// resolved end patterns, same scope names, top to root.
func (s Stack) Equal(other Stack) bool {
	return s.top.equal(other.top)
}

// unknownScopeName is substituted when a grammar has no top-level scope
// name, per spec.md §4.7.1 and the invariant in §8 that scopes[0] is
// never empty.
const unknownScopeName = "unknown"

// TokenizeLine runs one line through the grammar, threading prev as the
// inherited stack (zero value for the first line of a document), per
// spec.md §4.7.
func (g *Grammar) TokenizeLine(line string, prev Stack) TokenizeResult {
	g.ensureCompiled()

	top := prev.top
	isFirstLine := top == nil
	if isFirstLine {
		scopeName := g.raw.ScopeName
		if scopeName == "" {
			scopeName = unknownScopeName
		}
		root := (*scopeList)(nil).push(scopeName)
		top = &stackFrame{
			ruleID:        g.rootID,
			enterPos:      -1,
			anchorPos:     -1,
			nameScopes:    root,
			contentScopes: root,
		}
	} else {
		top = top.reset()
	}

	padded := line + "\n"
	lineLength := len(padded)

	builder := newLineTokensBuilder()

	// A begin pattern that consumed through end-of-line on the line where
	// its frame was entered anchors \G at column 0 of the line that
	// resumes it, rather than leaving \G unable to match at all.
	anchorPosition := -1
	if top.beginRuleCapturedEOL {
		anchorPosition = 0
	}
	linePos := 0

	top, linePos, anchorPosition, isFirstLine = g.checkWhileConditions(padded, top, builder, linePos, anchorPosition, isFirstLine)

	for {
		isAtAnchor := linePos == anchorPosition
		scanner := g.compileActive(top, isFirstLine, isAtAnchor)

		matchedID, captures, ok := scanner.findNextMatch(padded, linePos)
		if !ok {
			builder.produce(top, min(lineLength, len(line)))
			break
		}

		matchStart, matchEnd := captures[0].Start, captures[0].End

		if matchedID == -1 {
			// end pattern of the active BeginEndRule: emit up to the match
			// using the frame's name scopes rather than its content scopes
			// (spec.md §4.7.3 step 4).
			builder.produceFromScopes(top.nameScopes, matchStart)
			r := g.registry.getRule(top.ruleID)
			g.handleCaptures(padded, top, r.endCaptures, captures, builder)
			builder.produceFromScopes(top.nameScopes, matchEnd)

			popped := top
			anchorPosition = popped.anchorPos
			if next := top.pop(); next != nil {
				top = next
			}
			// StackUnderflow (popping the root) is ignored: top stays put.
		} else {
			top, anchorPosition = g.enterChildRule(padded, top, matchedID, captures, anchorPosition, builder)
		}

		if matchEnd > linePos {
			linePos = matchEnd
			isFirstLine = false
		} else {
			// zero-width match (spec.md §4.7.3 step 6 / §7 StuckLoop): the
			// scanner must not keep reporting the same empty anchor, so a
			// lack of progress here terminates the line rather than loop.
			builder.produce(top, min(lineLength, len(line)))
			break
		}

		if linePos >= lineLength {
			builder.produce(top, min(lineLength, len(line)))
			break
		}
	}

	return TokenizeResult{Tokens: builder.getResult(top, len(line)), Stack: Stack{top: top}}
}

// checkWhileConditions walks the stack bottom-to-top collecting
// BeginWhileRule frames and re-checking their while pattern at the
// current position, per spec.md §4.7.2.
func (g *Grammar) checkWhileConditions(text string, top *stackFrame, builder *lineTokensBuilder, linePos, anchorPosition int, isFirstLine bool) (*stackFrame, int, int, bool) {
	var whileFrames []*stackFrame
	for f := top; f != nil; f = f.parent {
		r := g.registry.getRule(f.ruleID)
		if r.kind == kindBeginWhile {
			whileFrames = append(whileFrames, f)
		}
	}
	// whileFrames was collected top-to-bottom; reverse for bottom-to-top.
	for i, j := 0, len(whileFrames)-1; i < j; i, j = i+1, j-1 {
		whileFrames[i], whileFrames[j] = whileFrames[j], whileFrames[i]
	}

	for _, frame := range whileFrames {
		r := g.registry.getRule(frame.ruleID)
		whileSource := r.whileSource
		if frame.endRule != "" {
			whileSource = frame.endRule
		}
		re, err := regexp.Compile(whileSource, regexp.OptionNone)
		if err != nil {
			g.diagnostics.Warnf(frame.ruleID, "invalid while pattern %q: %v", whileSource, err)
			top = popDownTo(top, frame)
			break
		}
		start, captures, _ := re.Search(text, linePos, len(text), regexp.OptionNone)
		re.Free()
		if start < 0 {
			top = popDownTo(top, frame)
			break
		}

		builder.produce(top, captures[0].Start)
		g.handleCaptures(text, frame, r.whileCaptures, captures, builder)
		linePos = captures[0].End
		isFirstLine = false
		anchorPosition = captures[0].End
	}

	return top, linePos, anchorPosition, isFirstLine
}

// popDownTo pops frames until (and including) target, returning target's
// parent — deeper frames than target are orphaned, per spec.md §4.7.2.
func popDownTo(top, target *stackFrame) *stackFrame {
	for top != nil && top != target {
		top = top.pop()
	}
	return top.pop()
}

// compileActive returns the scanner for the current top-of-stack rule:
// its active pattern set (own end pattern, for BeginEndRule, plus child
// begins), compiled for (isFirstLine, isAtAnchor). A BeginEndRule whose
// end pattern carries back-references can't share the rule's persistent
// scannerCache (the resolved text differs per stack frame), so it gets
// its own cache on the frame itself (stackFrame.scannerCache), built once
// and reused for the rest of the frame's lifetime rather than rebuilt —
// and its compiled Oniguruma regexes leaked — on every scan.
func (g *Grammar) compileActive(top *stackFrame, isFirstLine, isAtAnchor bool) *compiledScanner {
	r := g.registry.getRule(top.ruleID)

	needsFresh := r.kind == kindBeginEnd && r.endHasBackReferences

	if !needsFresh {
		if r.scannerCache == nil {
			r.scannerCache = &regexSourceList{alts: r.activeScannerSources(g, "")}
		}
		return g.compile(r.scannerCache, isFirstLine, isAtAnchor)
	}

	if top.scannerCache == nil {
		top.scannerCache = &regexSourceList{alts: r.activeScannerSources(g, top.endRule)}
	}
	return g.compile(top.scannerCache, isFirstLine, isAtAnchor)
}

// enterChildRule dispatches a child-pattern match: computing the name,
// pushing a scope list and a stack frame, and handling the rule per its
// kind, per spec.md §4.7.3 step 5. anchorPosition only advances to
// matchEnd for the two frame-pushing kinds (BeginEnd, BeginWhile) — the
// reference leaves anchor_position untouched after a plain MatchRule,
// since nothing was pushed for \G to anchor against.
func (g *Grammar) enterChildRule(text string, top *stackFrame, ruleID int, captures []regexp.Range, anchorPosition int, builder *lineTokensBuilder) (*stackFrame, int) {
	r := g.registry.getRule(ruleID)
	matchStart, matchEnd := captures[0].Start, captures[0].End

	builder.produce(top, matchStart)

	name := r.getName(text, captures)
	nameScopes := top.contentScopes.push(name)

	frame := top.push(ruleID, matchStart, top.anchorPos, matchEnd == len(text), "", nameScopes, nameScopes)

	switch r.kind {
	case kindBeginEnd:
		g.handleCaptures(text, frame, r.beginCaptures, captures, builder)
		builder.produceFromScopes(frame.contentScopes, matchEnd)
		contentName := r.getContentName(text, captures)
		frame = frame.withContentScopes(nameScopes.push(contentName))
		if r.endHasBackReferences {
			frame = frame.withEndRule(resolveBackReferences(r.endSource, text, captures))
		}
		return frame, matchEnd

	case kindBeginWhile:
		g.handleCaptures(text, frame, r.beginCaptures, captures, builder)
		builder.produceFromScopes(frame.contentScopes, matchEnd)
		contentName := r.getContentName(text, captures)
		frame = frame.withContentScopes(nameScopes.push(contentName))
		if r.whileHasBackReferences {
			frame = frame.withEndRule(resolveBackReferences(r.whileSource, text, captures))
		}
		return frame, matchEnd

	default: // kindMatch
		g.handleCaptures(text, frame, r.captures, captures, builder)
		builder.produceFromScopes(frame.contentScopes, matchEnd)
		// MatchRules do not persist across matches: pop immediately, and
		// anchorPosition is reported back unchanged by the caller.
		return top, anchorPosition
	}
}

// captureFrame is one entry of handleCaptures's local stack: the scopes
// active for a still-open enclosing capture, and where it closes.
type captureFrame struct {
	scopes *scopeList
	endPos int
}

// handleCaptures implements spec.md §4.7.4: ordered emission of capture
// sub-tokens, nested according to which captures enclose which, with
// optional retokenization.
func (g *Grammar) handleCaptures(text string, frame *stackFrame, captureRules []int, captures []regexp.Range, builder *lineTokensBuilder) {
	if len(captureRules) == 0 {
		return
	}

	whole := captures[0]
	var localStack []captureFrame
	prevPos := whole.Start

	n := len(captureRules)
	if len(captures) < n {
		n = len(captures)
	}

	emitUpTo := func(pos int) {
		if pos <= prevPos {
			return
		}
		scopes := frame.contentScopes
		if len(localStack) > 0 {
			scopes = localStack[len(localStack)-1].scopes
		}
		builder.produceFromScopes(scopes, pos)
		prevPos = pos
	}

	for i := 0; i < n; i++ {
		capRuleID := captureRules[i]
		if capRuleID == 0 {
			continue
		}
		c := captures[i]
		if !c.Valid() || c.Len() == 0 || c.Start >= whole.End {
			continue
		}

		for len(localStack) > 0 && localStack[len(localStack)-1].endPos <= c.Start {
			top := localStack[len(localStack)-1]
			emitUpTo(top.endPos)
			localStack = localStack[:len(localStack)-1]
		}

		emitUpTo(c.Start)

		capRule := g.registry.getRule(capRuleID)
		if capRule.kind != kindCapture {
			g.diagnostics.Warnf(capRuleID, "captures entry %d is not a capture rule", i)
			continue
		}

		if capRule.retokenizeRuleID != 0 {
			g.retokenizeCaptured(text, frame, capRule.retokenizeRuleID, c, builder)
			prevPos = c.End
			continue
		}

		name := capRule.getName(text, captures)
		base := frame.contentScopes
		if len(localStack) > 0 {
			base = localStack[len(localStack)-1].scopes
		}
		localStack = append(localStack, captureFrame{scopes: base.push(name), endPos: c.End})
	}

	for len(localStack) > 0 {
		top := localStack[len(localStack)-1]
		emitUpTo(top.endPos)
		localStack = localStack[:len(localStack)-1]
	}
}

// retokenizeCaptured re-runs the tokenizer over text[start:end] against
// ruleID, with while-checking disabled, synthesizing a one-frame stack
// so the nested tokens share builder with the enclosing call, per
// spec.md §9 "Retokenization inside captures".
func (g *Grammar) retokenizeCaptured(text string, enclosing *stackFrame, ruleID int, c regexp.Range, builder *lineTokensBuilder) {
	frame := &stackFrame{
		ruleID:        ruleID,
		enterPos:      c.Start,
		anchorPos:     -1,
		nameScopes:    enclosing.contentScopes,
		contentScopes: enclosing.contentScopes,
	}
	substring := text[:c.End]

	linePos := c.Start
	anchorPosition := -1
	for {
		isAtAnchor := linePos == anchorPosition
		scanner := g.compileActive(frame, false, isAtAnchor)
		matchedID, caps, ok := scanner.findNextMatch(substring, linePos)
		if !ok {
			builder.produceFromScopes(frame.contentScopes, c.End)
			return
		}

		matchStart, matchEnd := caps[0].Start, caps[0].End
		if matchedID == -1 {
			builder.produceFromScopes(frame.nameScopes, matchStart)
			r := g.registry.getRule(frame.ruleID)
			g.handleCaptures(substring, frame, r.endCaptures, caps, builder)
			builder.produceFromScopes(frame.nameScopes, matchEnd)
			popped := frame
			anchorPosition = popped.anchorPos
			frame = frame.pop()
			if frame == nil {
				return
			}
		} else {
			var next *stackFrame
			next, anchorPosition = g.enterChildRule(substring, frame, matchedID, caps, anchorPosition, builder)
			frame = next
		}

		if matchEnd > linePos {
			linePos = matchEnd
		} else {
			builder.produceFromScopes(frame.contentScopes, c.End)
			return
		}
		if linePos >= c.End {
			builder.produceFromScopes(frame.contentScopes, c.End)
			return
		}
	}
}
