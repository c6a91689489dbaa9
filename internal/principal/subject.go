package principal

import "github.com/ironclad-authz/ironclad/internal/policy"

// Subject is the common base for Identity and Group: a Role plus an
// optional inline policy embedded directly in the principal record.
//
// A nil InlinePolicy means "no inline policy": the subject evaluates its
// linked policies only, which is equivalent to carrying a sentinel policy
// that never matches anything.
type Subject struct {
	Role
	inlinePolicy *policy.Policy
}

// InlinePolicy returns the subject's inline policy, or nil if it has none.
func (s *Subject) InlinePolicy() *policy.Policy {
	return s.inlinePolicy
}

// SetInlinePolicy replaces the subject's inline policy. Pass nil to clear
// it.
func (s *Subject) SetInlinePolicy(p *policy.Policy) {
	s.inlinePolicy = p
}

// Allowed evaluates the inline policy (if any), then the linked policies,
// in that order.
func (s *Subject) Allowed(action, resource *string) (policy.AllowedResult, error) {
	policies := make([]*policy.Policy, 0, len(s.linkedPolicies)+1)
	if s.inlinePolicy != nil {
		policies = append(policies, s.inlinePolicy)
	}
	policies = append(policies, s.linkedPolicies...)

	return allowed(policies, action, resource)
}
