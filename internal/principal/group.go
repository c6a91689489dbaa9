package principal

import "github.com/ironclad-authz/ironclad/internal/policy"

// Group is a Subject with a name and a deduplicated-by-id member list.
// Group membership is the only many-to-many relation among principals.
type Group struct {
	Subject
	name    string
	members []*Identity
}

// NewGroup constructs a Group with no members. inlinePolicy may be nil.
func NewGroup(name string, inlinePolicy *policy.Policy) *Group {
	g := &Group{name: name}
	g.SetInlinePolicy(inlinePolicy)
	return g
}

// Name returns the group's name, which doubles as its id.
func (g *Group) Name() string { return g.name }

// Members returns the group's member identities in insertion order. The
// returned slice must not be mutated by callers.
func (g *Group) Members() []*Identity {
	return g.members
}

// AddIdentity appends identity to the member list unless an identity with
// the same id is already a member.
func (g *Group) AddIdentity(identity *Identity) {
	for _, existing := range g.members {
		if existing.ID() == identity.ID() {
			return
		}
	}
	g.members = append(g.members, identity)
}

// RemoveIdentity removes the member with the given id, if present. It
// accepts a bare id so that callers handling an HTTP body (which names the
// identity only by id) don't need to resolve a full Identity first.
func (g *Group) RemoveIdentity(id string) {
	kept := g.members[:0:0]
	for _, existing := range g.members {
		if existing.ID() != id {
			kept = append(kept, existing)
		}
	}
	g.members = kept
}

// HasMember reports whether id is currently a member of the group.
func (g *Group) HasMember(id string) bool {
	for _, existing := range g.members {
		if existing.ID() == id {
			return true
		}
	}
	return false
}

// GroupJSON is the wire representation of a Group.
type GroupJSON struct {
	ID             string      `json:"id"`
	Members        []string    `json:"members"`
	InlinePolicy   interface{} `json:"inline_policy"`
	LinkedPolicies []string    `json:"linked_policies"`
}

// ToJSON builds the wire representation.
func (g *Group) ToJSON() GroupJSON {
	members := make([]string, 0, len(g.members))
	for _, m := range g.members {
		members = append(members, m.ID())
	}

	linked := make([]string, 0, len(g.linkedPolicies))
	for _, p := range g.linkedPolicies {
		linked = append(linked, p.ID())
	}

	var inline interface{}
	if g.inlinePolicy != nil {
		inline = g.inlinePolicy
	}

	return GroupJSON{
		ID:             g.name,
		Members:        members,
		InlinePolicy:   inline,
		LinkedPolicies: linked,
	}
}
