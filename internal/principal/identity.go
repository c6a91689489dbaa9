package principal

import "github.com/ironclad-authz/ironclad/internal/policy"

// Identity is a Subject with an id. It is owned by no other principal; it
// may exist without membership in any group.
type Identity struct {
	Subject
	id string
}

// NewIdentity constructs an Identity. inlinePolicy may be nil.
func NewIdentity(id string, inlinePolicy *policy.Policy) *Identity {
	i := &Identity{id: id}
	i.SetInlinePolicy(inlinePolicy)
	return i
}

// ID returns the identity's id.
func (i *Identity) ID() string { return i.id }

// IdentityJSON is the wire representation of an Identity.
type IdentityJSON struct {
	ID             string      `json:"id"`
	InlinePolicy   interface{} `json:"inline_policy"`
	LinkedPolicies []string    `json:"linked_policies"`
}

// ToJSON builds the wire representation: the inline policy embedded in
// full, linked policies referenced only by id.
func (i *Identity) ToJSON() IdentityJSON {
	linked := make([]string, 0, len(i.linkedPolicies))
	for _, p := range i.linkedPolicies {
		linked = append(linked, p.ID())
	}

	var inline interface{}
	if i.inlinePolicy != nil {
		inline = i.inlinePolicy
	}

	return IdentityJSON{
		ID:             i.id,
		InlinePolicy:   inline,
		LinkedPolicies: linked,
	}
}
