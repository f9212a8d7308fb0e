// Package textmate tokenizes source text using TextMate grammars: a
// nested tree of regular-expression rules compiles lazily into per-context
// scanners, and a push-down automaton walks a sequence of lines, keeping
// a rule stack and a scope stack, to produce a stream of scoped tokens
// suitable for syntax highlighting.
package textmate

import (
	"encoding/json"
	"errors"
)

var (
	ErrScopeName = errors.New("unexpected `scopeName`")
)

// RawGrammar is the deserialized, still-symbolic grammar exactly as found
// in a *.tmLanguage.json or *.tmLanguage plist file (spec.md §3 "Raw
// Grammar Model", §6 "Raw grammar").
type RawGrammar struct {
	ScopeName    string              `json:"scopeName" plist:"scopeName"`
	FileTypes    []string            `json:"fileTypes" plist:"fileTypes"`
	FoldingStart string              `json:"foldingStartMarker" plist:"foldingStartMarker"`
	FoldingEnd   string              `json:"foldingStopMarker" plist:"foldingStopMarker"`
	FirstLine    string              `json:"firstLineMatch" plist:"firstLineMatch"`
	Repository   map[string]*RawRule `json:"repository" plist:"repository"`
	Patterns     []*RawRule          `json:"patterns" plist:"patterns"`
}

// RawRule is a single symbolic rule, addressed by capture group via
// string keys ("1", "2", ...) the way the on-disk format does.
type RawRule struct {
	Name          string              `json:"name" plist:"name"`
	ContentName   string              `json:"contentName" plist:"contentName"`
	Match         string              `json:"match" plist:"match"`
	Begin         string              `json:"begin" plist:"begin"`
	End           string              `json:"end" plist:"end"`
	While         string              `json:"while" plist:"while"`
	Patterns      []*RawRule          `json:"patterns" plist:"patterns"`
	Captures      map[string]*RawRule `json:"captures" plist:"captures"`
	BeginCaptures map[string]*RawRule `json:"beginCaptures" plist:"beginCaptures"`
	EndCaptures   map[string]*RawRule `json:"endCaptures" plist:"endCaptures"`
	WhileCaptures map[string]*RawRule `json:"whileCaptures" plist:"whileCaptures"`
	Include       string              `json:"include" plist:"include"`
}

// GrammarRegistry is the registry/injection collaborator spec.md §4.1 and
// §6 keep out of the core: resolving a `scopeName` or `scopeName#name`
// include against grammars other than the one being tokenized. The
// default Grammar has none (GetExternalGrammar returns nil, and such
// includes are dropped with a diagnostic); *Loader implements it for
// callers that load a whole directory of grammars up front.
type GrammarRegistry interface {
	GetExternalGrammar(scopeName string) *RawGrammar
}

// Grammar is one compiled grammar: its raw (symbolic) form, the registry
// of rules lazily materialized from it, and the scanner caches threaded
// through rule compilation.
type Grammar struct {
	raw         *RawGrammar
	registry    *ruleRegistry
	diagnostics Diagnostics
	registries  GrammarRegistry

	rootID       int
	self         *RawRule
	scopeNameMap map[string]int
}

// Option configures a Grammar at construction.
type Option func(*Grammar)

// WithDiagnostics routes compile-time and tokenize-time diagnostics to d
// instead of discarding them.
func WithDiagnostics(d Diagnostics) Option {
	return func(g *Grammar) { g.diagnostics = d }
}

// WithGrammarRegistry supplies the collaborator used to resolve
// cross-grammar includes (`scopeName#name`).
func WithGrammarRegistry(r GrammarRegistry) Option {
	return func(g *Grammar) { g.registries = r }
}

// NewGrammar compiles raw into a Grammar. Rule compilation itself is
// lazy (spec.md §4.1): only the root rule and whatever it transitively
// reaches get ids, and only on the first call to TokenizeLine, RuleCount
// or ScopeNames.
func NewGrammar(raw *RawGrammar, opts ...Option) *Grammar {
	g := &Grammar{
		raw:         raw,
		registry:    newRuleRegistry(),
		diagnostics: DiscardDiagnostics,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadGrammar reads a *.tmLanguage.json or *.tmLanguage(.plist) file and
// compiles it, validating scopeName against the file's basename the way
// the teacher's LoadGrammar did ("source.<basename>").
func LoadGrammar(pathname string, opts ...Option) (*Grammar, error) {
	raw, err := loadRawGrammar(pathname)
	if err != nil {
		return nil, err
	}
	if err := validateScopeName(raw.ScopeName, pathname); err != nil {
		return nil, err
	}
	return NewGrammar(raw, opts...), nil
}

func validateScopeName(scopeName, pathname string) error {
	if pathname == "" {
		return nil
	}
	filesource := basenameWithoutGrammarExt(pathname)
	jsonsource, _ := cutPrefix(scopeName, "source.")
	if jsonsource != filesource {
		return &scopeNameError{expected: filesource, got: scopeName}
	}
	return nil
}

type scopeNameError struct {
	expected, got string
}

func (e *scopeNameError) Error() string {
	return ErrScopeName.Error() + ": expected 'source." + e.expected + "', got '" + e.got + "'"
}

func (e *scopeNameError) Unwrap() error { return ErrScopeName }

// selfRaw returns the synthetic RawRule standing in for the grammar's own
// root pattern set, used to resolve `$self`/`$base`/the grammar's own
// scope name. It is created once and reused so pointer-identity
// memoization in compileRuleIDFor treats every `$self` reference as the
// same node (spec.md §9 "Rule graph cycles").
func (g *Grammar) selfRaw() *RawRule {
	if g.self == nil {
		g.self = &RawRule{Patterns: g.raw.Patterns, Name: g.raw.ScopeName}
	}
	return g.self
}

func (g *Grammar) lookupExternalGrammar(scopeName string) *RawGrammar {
	if g.registries == nil {
		return nil
	}
	return g.registries.GetExternalGrammar(scopeName)
}

// ensureCompiled lazily compiles the root rule on first use and builds
// the name->id scope map, mirroring the Rust reference's `tokenize`
// guarding on `root_id == -1`.
func (g *Grammar) ensureCompiled() {
	if g.rootID != 0 {
		return
	}
	g.rootID = g.compileRuleIDFor(g.selfRaw())

	// walk ids in ascending order so a name shared by several rules always
	// maps to the lowest of their ids
	g.scopeNameMap = make(map[string]int, len(g.registry.rules))
	for id := 1; id <= g.registry.lastID; id++ {
		r, ok := g.registry.rules[id]
		if !ok || r.name == "" {
			continue
		}
		if _, seen := g.scopeNameMap[r.name]; !seen {
			g.scopeNameMap[r.name] = id
		}
	}
}

// RuleCount returns the number of distinct rules materialized so far —
// exposed for tests asserting rule-graph size (spec.md §8 scenarios 4 and 5)
// and for `cmd/tmcat --dump-rules`.
func (g *Grammar) RuleCount() int {
	g.ensureCompiled()
	return len(g.registry.rules)
}

// ScopeNames returns a copy of the compiled scope-name -> rule-id map
// built by ensureCompiled. Compilation order is deterministic for a
// given raw grammar (spec.md §8's idempotence property — "identical
// scope-name maps" across repeated compilations of the same grammar),
// so two independently constructed Grammars from the same *RawGrammar
// are expected to produce equal maps.
func (g *Grammar) ScopeNames() map[string]int {
	g.ensureCompiled()
	out := make(map[string]int, len(g.scopeNameMap))
	for name, id := range g.scopeNameMap {
		out[name] = id
	}
	return out
}

// Dispose is a documented no-op: this single-grammar core owns no
// external rule cache to invalidate (spec.md §9 "the dispose lifecycle
// is a no-op").
func (g *Grammar) Dispose() {}

func decodeJSON(content []byte, raw *RawGrammar) error {
	return json.Unmarshal(content, raw)
}
