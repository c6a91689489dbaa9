package policy

import "encoding/json"

// Policy is a complete, independently addressable policy document: an id
// plus a concrete action/resource body. It satisfies Complete() == true,
// as opposed to a bare PartialPolicy or a principal with no inline policy
// at all (see the principal package, where the "no inline policy" case is
// represented as a nil *Policy rather than a sentinel value).
type Policy struct {
	id        string
	version   Version
	effect    Effect
	actions   []string
	resources []string

	compiler *Compiler
	compiled *CompiledPolicy
}

// New constructs a Policy. It fails with ErrActionsCannotBeEmpty if actions
// is empty, and with ErrUnknownVersion if version is not V1. An empty
// resources list is normalized to ["*"].
func New(version Version, id string, effect Effect, actions, resources []string) (*Policy, error) {
	if version != V1 {
		return nil, &ErrUnknownVersion{Version: int(version)}
	}
	if len(actions) == 0 {
		return nil, ErrActionsCannotBeEmpty
	}

	if len(resources) == 0 {
		resources = []string{"*"}
	}

	return &Policy{
		id:        id,
		version:   version,
		effect:    effect,
		actions:   actions,
		resources: resources,
	}, nil
}

// WithCompiler injects the Compiler used to compile and cache this
// policy's regexes, overriding the package-level default. Storage managers
// call this when constructing policies so that every policy they hand out
// shares the manager's own compile cache.
func (p *Policy) WithCompiler(c *Compiler) *Policy {
	p.compiler = c
	return p
}

// ID returns the policy's identifier.
func (p *Policy) ID() string { return p.id }

// Version returns the policy's schema version.
func (p *Policy) Version() Version { return p.version }

// Effect returns ALLOW or DENY.
func (p *Policy) Effect() Effect { return p.effect }

// Actions returns the policy's action globs. The returned slice must not be
// mutated by callers.
func (p *Policy) Actions() []string { return p.actions }

// Resources returns the policy's resource globs. The returned slice must
// not be mutated by callers.
func (p *Policy) Resources() []string { return p.resources }

// Complete always reports true for a fully constructed Policy.
func (p *Policy) Complete() bool { return true }

func (p *Policy) compilerOrDefault() *Compiler {
	if p.compiler != nil {
		return p.compiler
	}
	return DefaultCompiler()
}

// compile ensures the policy has been compiled, memoizing the result on
// the instance in addition to the Compiler's own id-keyed cache.
func (p *Policy) compile() (*CompiledPolicy, error) {
	if p.compiled != nil {
		return p.compiled, nil
	}

	compiled, err := p.compilerOrDefault().Compile(p)
	if err != nil {
		return nil, err
	}

	p.compiled = compiled
	return compiled, nil
}

type policyJSON struct {
	Version   *int     `json:"version,omitempty"`
	ID        string   `json:"id"`
	Effect    string   `json:"effect"`
	Actions   []string `json:"actions"`
	Resources []string `json:"resources"`
}

// MarshalJSON emits {version, id, effect, actions, resources}.
func (p *Policy) MarshalJSON() ([]byte, error) {
	version := int(p.version)
	return json.Marshal(policyJSON{
		Version:   &version,
		ID:        p.id,
		Effect:    p.effect.String(),
		Actions:   p.actions,
		Resources: p.resources,
	})
}

// UnmarshalJSON parses the shape produced by MarshalJSON and applies the
// same construction invariants as New. A missing "version" key defaults to
// V1, matching the request schemas' declared default.
func (p *Policy) UnmarshalJSON(data []byte) error {
	var raw policyJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	version := V1
	if raw.Version != nil {
		version = Version(*raw.Version)
	}

	effect := Allow
	if raw.Effect == "DENY" || raw.Effect == "Deny" {
		effect = Deny
	}

	built, err := New(version, raw.ID, effect, raw.Actions, raw.Resources)
	if err != nil {
		return err
	}

	*p = *built
	return nil
}
