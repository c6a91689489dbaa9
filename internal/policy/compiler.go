package policy

import (
	"regexp"

	"github.com/ironclad-authz/ironclad/internal/cache"
	"github.com/ironclad-authz/ironclad/internal/glob"
)

// compiledPolicyCacheCapacity bounds the compiled-policy cache.
// Authorization is read-heavy and policy bodies change far less often than
// they are matched, so a generous bound pays for itself quickly.
const compiledPolicyCacheCapacity = 1000

// Compiler compiles policies into CompiledPolicy values and caches them by
// id so that repeated evaluation of the same policy is O(regex-match)
// rather than O(recompile). It is deliberately not a true package-level
// singleton: callers construct and inject one (typically one per storage
// Manager), which keeps tests independent of each other's cache state.
type Compiler struct {
	cache *cache.LRU[string, *CompiledPolicy]
}

// NewCompiler creates a Compiler with the standard 1000-entry cache.
func NewCompiler() *Compiler {
	return &Compiler{cache: cache.New[string, *CompiledPolicy](compiledPolicyCacheCapacity)}
}

// defaultCompiler is used by Policy.Match when no Compiler has been
// injected via WithCompiler. Production wiring (the storage Manager) always
// injects its own instance; this exists only so that a bare Policy
// constructed without a Manager in hand (e.g. in a quick test) still works.
var defaultCompiler = NewCompiler()

// DefaultCompiler returns the package-level fallback compiler.
func DefaultCompiler() *Compiler { return defaultCompiler }

// Compile returns the cached CompiledPolicy for p.id, compiling and caching
// it first if necessary.
func (c *Compiler) Compile(p *Policy) (*CompiledPolicy, error) {
	if cached, ok := c.cache.Get(p.id); ok {
		return cached, nil
	}

	actionRegexes := make([]*regexp.Regexp, 0, len(p.actions))
	for _, a := range p.actions {
		re, err := glob.Compile(a)
		if err != nil {
			return nil, err
		}
		actionRegexes = append(actionRegexes, re)
	}

	allResources := false
	for _, r := range p.resources {
		if r == "*" {
			allResources = true
			break
		}
	}

	var resourceRegexes []*regexp.Regexp
	if !allResources {
		resourceRegexes = make([]*regexp.Regexp, 0, len(p.resources))
		for _, r := range p.resources {
			re, err := glob.Compile(r)
			if err != nil {
				return nil, err
			}
			resourceRegexes = append(resourceRegexes, re)
		}
	}

	compiled := &CompiledPolicy{
		actions:      actionRegexes,
		resources:    resourceRegexes,
		allResources: allResources,
	}

	c.cache.Insert(p.id, compiled)
	return compiled, nil
}

// ClearCache empties the whole compile cache. Invoked on every write to any
// policy, identity, or group. Conservative but cheap, and it keeps the
// cache coherent without per-id invalidation bookkeeping.
func (c *Compiler) ClearCache() {
	c.cache.Clear()
}
