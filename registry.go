package textmate

import "fmt"

// ruleRegistry owns every compiled rule for one Grammar, keyed by a
// stable integer id. Ids are assigned monotonically starting at 1 (0 is
// unused, -1 is the end-pattern sentinel produced by a BeginEndRule's
// active scanner, never assigned to a real rule).
type ruleRegistry struct {
	rules  map[int]*rule
	lastID int

	// compiledIDs memoizes compilation by the *RawRule* that produced a
	// rule, keyed by pointer identity. A placeholder id is recorded
	// before a rule's children are expanded, so a grammar that includes
	// itself (directly or through a chain of #name/$self references)
	// terminates instead of diverging: the second time the same RawRule
	// pointer is reached, compileRuleIDFor returns the already-assigned
	// id without re-expanding it.
	compiledIDs map[*RawRule]int
}

func newRuleRegistry() *ruleRegistry {
	return &ruleRegistry{
		rules:       make(map[int]*rule),
		compiledIDs: make(map[*RawRule]int),
	}
}

func (r *ruleRegistry) registerID() int {
	r.lastID++
	return r.lastID
}

// getRule panics on an unknown id: per spec.md §7, UnknownRuleId is a
// programming error, not a recoverable condition — the tokenizer never
// constructs a stack frame or scanner entry referencing an id it didn't
// itself just register.
func (r *ruleRegistry) getRule(id int) *rule {
	ru, ok := r.rules[id]
	if !ok {
		panic(fmt.Sprintf("textmate: unknown rule id %d", id))
	}
	return ru
}
