package checkers

import (
	"sort"

	"compliance/internal/rules"
)

// Constructor builds a checker from its rule-set. Decoding and validation
// of the rule-set happen here, once per run.
type Constructor func(set rules.RuleSet, env Env) (Checker, error)

// Registry maps checker kinds to constructors.
type Registry struct {
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// DefaultRegistry returns a registry with the built-in checkers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("prd", NewPRDChecker)
	r.Register("testcase", NewTestCaseChecker)
	r.Register("test", NewTestChecker)
	r.Register("code", NewCodeChecker)
	r.Register("task", NewTaskChecker)
	r.Register("commit", NewTestRunnerChecker)
	r.Register("test_runner", NewTestRunnerChecker)
	return r
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.ctors[kind] = ctor
}

// Lookup returns the constructor for kind.
func (r *Registry) Lookup(kind string) (Constructor, bool) {
	c, ok := r.ctors[kind]
	return c, ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
