package textmate

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-textmate/grammar/regexp"
)

// ruleKind tags the variant a compiled rule belongs to. spec.md §9 asks
// for a tagged variant over runtime polymorphism with downcasts, so rule
// is one struct with a kind discriminator rather than five interface
// implementations — the shared metadata (id, name, contentName, captures)
// lives directly on the struct instead of behind an embedded header.
type ruleKind int

const (
	kindIncludeOnly ruleKind = iota
	kindMatch
	kindBeginEnd
	kindBeginWhile
	kindCapture
)

// rule is a node in the compiled rule graph (spec.md §3 "Compiled Rule").
type rule struct {
	kind ruleKind
	id   int

	name        string
	contentName string

	// patterns holds child rule ids, for kindIncludeOnly (its whole
	// content) and for kindBeginEnd/kindBeginWhile (the rules active
	// between begin and end/while).
	patterns []int

	matchSource string // kindMatch
	beginSource string // kindBeginEnd, kindBeginWhile
	endSource   string // kindBeginEnd
	whileSource string // kindBeginWhile

	endHasBackReferences   bool
	whileHasBackReferences bool

	// captures/beginCaptures/endCaptures/whileCaptures are parallel to a
	// match's capture group indices: index 0 is the whole match, index N
	// is group N. A 0 entry means "no capture rule for this group" (rule
	// ids start at 1).
	captures      []int
	beginCaptures []int
	endCaptures   []int
	whileCaptures []int

	// retokenizeRuleID is set on kindCapture rules whose capture entry
	// carried its own patterns/match/begin+end — the captured substring
	// is re-run through the tokenizer against this rule (spec.md §4.7.4).
	retokenizeRuleID int

	// scannerCache is the persistent (isFirstLine, isAtAnchor) scanner
	// cache for this rule's "active" pattern set (spec.md §4.2). Left
	// nil (never populated) for BeginEnd rules whose end pattern has
	// back-references, since those must be built per stack frame from
	// the frame's resolved end text — see Grammar.compileActive.
	scannerCache *regexSourceList
}

// getName substitutes $N tokens in the rule's name with literal capture
// text from the triggering match. Absent captures yield empty text, per
// spec.md §4.3.
func (r *rule) getName(lineText string, captures []regexp.Range) string {
	return substituteCaptureRefs(r.name, lineText, captures)
}

func (r *rule) getContentName(lineText string, captures []regexp.Range) string {
	return substituteCaptureRefs(r.contentName, lineText, captures)
}

// substituteCaptureRefs replaces "$N" (N a single digit 0-9) in template
// with the text of captures[N], or the empty string when that capture is
// absent or out of range.
func substituteCaptureRefs(template, lineText string, captures []regexp.Range) string {
	if template == "" || !strings.ContainsRune(template, '$') {
		return template
	}
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '$' && i+1 < len(template) && template[i+1] >= '0' && template[i+1] <= '9' {
			n := int(template[i+1] - '0')
			if n < len(captures) && captures[n].Valid() {
				b.WriteString(captures[n].Text(lineText))
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// collectPatternsRecursive appends this rule's own regex source(s) to
// out, the way a rule not yet entered onto the stack contributes to an
// enclosing scanner: IncludeOnly rules recurse into their children
// (respecting visited, so an `include $self` cycle terminates);
// Match/BeginEnd/BeginWhile rules contribute a single alternative
// (Match's own pattern, or BeginEnd/BeginWhile's begin pattern — their
// end/while pattern is only relevant once the rule is itself the active
// top of stack, handled separately by Grammar.compileActive).
func (r *rule) collectPatternsRecursive(g *Grammar, out *[]regexAlt, visited map[int]bool) {
	switch r.kind {
	case kindIncludeOnly:
		if visited[r.id] {
			return
		}
		visited[r.id] = true
		for _, childID := range r.patterns {
			if childID == 0 {
				continue
			}
			g.registry.getRule(childID).collectPatternsRecursive(g, out, visited)
		}
	case kindMatch:
		hasA, hasG := scanAnchors(r.matchSource)
		*out = append(*out, regexAlt{ruleID: r.id, source: r.matchSource, hasA: hasA, hasG: hasG})
	case kindBeginEnd, kindBeginWhile:
		hasA, hasG := scanAnchors(r.beginSource)
		*out = append(*out, regexAlt{ruleID: r.id, source: r.beginSource, hasA: hasA, hasG: hasG})
	}
}

// activeScannerSources builds the alternative list for this rule while it
// is the top of the stack: its own end pattern (tagged -1, using
// endOverride in place of the static source when the pattern has
// back-references resolved from the begin match) followed by the begin
// patterns of every child rule, per spec.md §4.7.3 step 1. A
// BeginWhileRule contributes no pattern of its own here: its while
// condition is only re-evaluated once per line, at the start of
// tokenizeLine (checkWhileConditions), never mid-line by the main scan
// loop — matching the reference's behavior of rechecking "while" only at
// the top of each line rather than as a pattern the scanner can match.
func (r *rule) activeScannerSources(g *Grammar, endOverride string) []regexAlt {
	var alts []regexAlt
	if r.kind == kindBeginEnd {
		src := r.endSource
		if endOverride != "" {
			src = endOverride
		}
		hasA, hasG := scanAnchors(src)
		alts = append(alts, regexAlt{ruleID: -1, source: src, hasA: hasA, hasG: hasG})
	}
	visited := map[int]bool{}
	for _, childID := range r.patterns {
		if childID == 0 {
			continue
		}
		g.registry.getRule(childID).collectPatternsRecursive(g, &alts, visited)
	}
	return alts
}

// --- compilation from the raw (symbolic) grammar ---

// compileRuleIDFor resolves `raw` (following `include` references) to a
// rule id, compiling it on first encounter and returning the memoized id
// on every later encounter — this is what keeps `include $self` from
// diverging.
func (g *Grammar) compileRuleIDFor(raw *RawRule) int {
	if raw.Include != "" {
		target := g.resolveInclude(raw.Include)
		if target == nil {
			g.diagnostics.Warnf(0, "unresolved include %q", raw.Include)
			return 0
		}
		return g.compileRuleIDFor(target)
	}

	if id, ok := g.registry.compiledIDs[raw]; ok {
		return id
	}

	id := g.registry.registerID()
	g.registry.compiledIDs[raw] = id
	g.registry.rules[id] = &rule{kind: kindIncludeOnly, id: id} // placeholder, patched below

	built := g.buildRule(raw, id)
	g.registry.rules[id] = built
	return id
}

// resolveInclude follows one `include` reference to the RawRule it
// names, per spec.md §4.1. `#name` looks up the current grammar's
// repository; `$self`/the grammar's own scope name is the grammar root;
// `$base` is the same (no injection chain in this single-grammar core);
// `scopeName` or `scopeName#name` goes through the GrammarRegistry
// collaborator (g.registries — see loader.go's Loader).
func (g *Grammar) resolveInclude(ref string) *RawRule {
	switch {
	case ref == "":
		return nil
	case ref[0] == '#':
		return g.raw.Repository[ref[1:]]
	case ref == "$self" || ref == "$base" || ref == g.raw.ScopeName:
		return g.selfRaw()
	case strings.Contains(ref, "#"):
		scope, name, _ := strings.Cut(ref, "#")
		external := g.lookupExternalGrammar(scope)
		if external == nil {
			return nil
		}
		return external.Repository[name]
	default:
		external := g.lookupExternalGrammar(ref)
		if external == nil {
			return nil
		}
		return &RawRule{Patterns: external.Patterns, Name: external.ScopeName}
	}
}

// buildRule compiles the content of a (non-include) RawRule into a rule
// node, following the same case ordering the teacher's compileRule uses:
// match, begin+end, while (begin+while — new, the teacher never supports
// it), then container.
func (g *Grammar) buildRule(raw *RawRule, id int) *rule {
	switch {
	case raw.Match != "":
		return &rule{
			kind:        kindMatch,
			id:          id,
			name:        raw.Name,
			matchSource: raw.Match,
			captures:    g.compileCaptures(raw.Captures),
		}
	case raw.Begin != "" && raw.End != "":
		r := &rule{
			kind:                 kindBeginEnd,
			id:                   id,
			name:                 raw.Name,
			contentName:          raw.ContentName,
			beginSource:          raw.Begin,
			endSource:            raw.End,
			endHasBackReferences: hasBackReferences(raw.End),
		}
		if len(raw.Captures) > 0 {
			caps := g.compileCaptures(raw.Captures)
			r.beginCaptures, r.endCaptures = caps, caps
		} else {
			r.beginCaptures = g.compileCaptures(raw.BeginCaptures)
			r.endCaptures = g.compileCaptures(raw.EndCaptures)
		}
		r.patterns = g.compileChildIDs(raw.Patterns)
		return r
	case raw.Begin != "" && raw.While != "":
		r := &rule{
			kind:                   kindBeginWhile,
			id:                     id,
			name:                   raw.Name,
			contentName:            raw.ContentName,
			beginSource:            raw.Begin,
			whileSource:            raw.While,
			whileHasBackReferences: hasBackReferences(raw.While),
		}
		if len(raw.Captures) > 0 {
			caps := g.compileCaptures(raw.Captures)
			r.beginCaptures, r.whileCaptures = caps, caps
		} else {
			r.beginCaptures = g.compileCaptures(raw.BeginCaptures)
			r.whileCaptures = g.compileCaptures(raw.WhileCaptures)
		}
		r.patterns = g.compileChildIDs(raw.Patterns)
		return r
	case raw.Begin != "" || raw.End != "" || raw.While != "":
		g.diagnostics.Warnf(id, "rule has begin without a matching end or while")
		return &rule{kind: kindIncludeOnly, id: id}
	default:
		return &rule{
			kind:     kindIncludeOnly,
			id:       id,
			name:     raw.Name,
			patterns: g.compileChildIDs(raw.Patterns),
		}
	}
}

// compileChildIDs compiles an ordered pattern list, dropping entries
// whose include reference could not be resolved (spec.md §7
// UnresolvedInclude: skip, diagnose, keep going).
func (g *Grammar) compileChildIDs(patterns []*RawRule) []int {
	if len(patterns) == 0 {
		return nil
	}
	ids := make([]int, 0, len(patterns))
	for _, p := range patterns {
		id := g.compileRuleIDFor(p)
		if id == 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// compileCaptures converts a string-indexed captures map ("1","2",...)
// into a slice sized 0..maxIndex, leaving unused indices as 0 (no rule).
func (g *Grammar) compileCaptures(captures map[string]*RawRule) []int {
	if len(captures) == 0 {
		return nil
	}
	maxIndex := 0
	keys := make([]string, 0, len(captures))
	for key := range captures {
		keys = append(keys, key)
		if n, err := strconv.Atoi(key); err == nil && n > maxIndex {
			maxIndex = n
		}
	}
	// compile in a fixed key order so rule ids do not depend on map
	// iteration order
	sort.Strings(keys)
	ids := make([]int, maxIndex+1)
	for _, key := range keys {
		n, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		ids[n] = g.compileCaptureRule(captures[key])
	}
	return ids
}

// compileCaptureRule builds a kindCapture rule for one entry of a
// captures/beginCaptures/endCaptures/whileCaptures map. When the entry
// carries its own patterns or match/begin+end, that content is compiled
// as an ordinary rule and referenced via retokenizeRuleID, per spec.md
// §3's CaptureRule and §4.7.4's retokenize_captured_with_rule_id.
func (g *Grammar) compileCaptureRule(raw *RawRule) int {
	id := g.registry.registerID()
	cr := &rule{kind: kindCapture, id: id, name: raw.Name, contentName: raw.ContentName}
	g.registry.rules[id] = cr

	switch {
	case len(raw.Patterns) > 0:
		wrapper := &RawRule{Patterns: raw.Patterns}
		cr.retokenizeRuleID = g.compileRuleIDFor(wrapper)
	case raw.Match != "" || (raw.Begin != "" && raw.End != ""):
		cr.retokenizeRuleID = g.compileRuleIDFor(raw)
	}
	return id
}

// hasBackReferences reports whether source contains an unescaped \1..\9.
func hasBackReferences(source string) bool {
	for i := 0; i < len(source)-1; i++ {
		if source[i] != '\\' {
			continue
		}
		if source[i+1] >= '1' && source[i+1] <= '9' {
			return true
		}
		i++
	}
	return false
}

// resolveBackReferences substitutes \1..\9 in an end/while pattern
// template with the literal (regex-escaped) text of the corresponding
// begin-match capture, producing the per-frame resolved pattern stored on
// the stack frame (spec.md §4.3 "BeginEndRule... the concrete end regex
// ... is resolved at stack-push time").
func resolveBackReferences(template, lineText string, captures []regexp.Range) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c == '\\' && i+1 < len(template) && template[i+1] >= '1' && template[i+1] <= '9' {
			n := int(template[i+1] - '0')
			if n < len(captures) && captures[n].Valid() {
				b.WriteString(quoteMeta(captures[n].Text(lineText)))
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
