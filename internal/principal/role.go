// Package principal implements the Role/Subject/Identity/Group hierarchy:
// the principals that policies attach to and that are evaluated against an
// (action, resource) probe.
package principal

import "github.com/ironclad-authz/ironclad/internal/policy"

// Role owns a deduplicated-by-id, ordered list of linked policies and
// knows how to evaluate them against a probe.
type Role struct {
	linkedPolicies []*policy.Policy
}

// LinkedPolicies returns the role's linked policies in insertion order. The
// returned slice must not be mutated by callers.
func (r *Role) LinkedPolicies() []*policy.Policy {
	return r.linkedPolicies
}

// AddPolicy appends p to the linked list unless a policy with the same id
// is already present, in which case it is a no-op.
func (r *Role) AddPolicy(p *policy.Policy) {
	for _, existing := range r.linkedPolicies {
		if existing.ID() == p.ID() {
			return
		}
	}
	r.linkedPolicies = append(r.linkedPolicies, p)
}

// RemovePolicy removes the linked policy with the given id, if present.
func (r *Role) RemovePolicy(id string) {
	kept := r.linkedPolicies[:0:0]
	for _, existing := range r.linkedPolicies {
		if existing.ID() != id {
			kept = append(kept, existing)
		}
	}
	r.linkedPolicies = kept
}

// allowed evaluates policies in order against (action, resource), applying
// the rules from the principal-evaluation design:
//
//   - Start outcome Abstain, no partials.
//   - For each policy, in order:
//   - skip on NotMatch.
//   - on a Full match with effect Deny, return {Denied, no partials}
//     immediately.
//   - on a Full match with effect Allow, set outcome Allowed and continue.
//   - on a Partial match, append its residual to the partials list.
func allowed(policies []*policy.Policy, action, resource *string) (policy.AllowedResult, error) {
	outcome := policy.Abstain
	var partials []policy.PartialPolicy

	for _, p := range policies {
		m, err := p.Match(action, resource)
		if err != nil {
			return policy.AllowedResult{}, err
		}

		if m.Outcome == policy.NotMatch {
			continue
		}

		if m.Type == policy.Full {
			if p.Effect() == policy.Deny {
				return policy.NewAllowedResult(policy.Denied), nil
			}
			outcome = policy.Allowed
			continue
		}

		partials = append(partials, *m.Residual)
	}

	return policy.NewAllowedResultWithPartials(outcome, partials), nil
}

// Allowed evaluates this role's linked policies (only) against the probe.
// Subject overrides this to also include the inline policy.
func (r *Role) Allowed(action, resource *string) (policy.AllowedResult, error) {
	return allowed(r.linkedPolicies, action, resource)
}
