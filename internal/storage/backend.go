package storage

import "context"

// PolicyRecord is the backend-level representation of a policy row.
type PolicyRecord struct {
	ID        string
	Version   int
	Allow     bool // true = ALLOW, false = DENY
	Actions   []string
	Resources []string
}

// IdentityRecord is the backend-level representation of an identity row
// together with its resolved linked-policy ids. EmbeddedPolicyID is nil
// when the identity has no inline policy.
type IdentityRecord struct {
	ID               string
	EmbeddedPolicyID *string
	LinkedPolicyIDs  []string
}

// GroupRecord is the backend-level representation of a group row together
// with its resolved linked-policy and member-identity ids.
type GroupRecord struct {
	ID               string
	EmbeddedPolicyID *string
	LinkedPolicyIDs  []string
	MemberIDs        []string
}

// Backend abstracts raw persistence for the six-table relational schema
// described in the storage design: policy, identity, group,
// identity_policy, group_policy, group_identity. Implementations own
// transactional consistency for each Save call; the Manager only owns
// caching and domain-object assembly on top.
type Backend interface {
	// FindPolicy returns the policy row for id, or nil if absent.
	FindPolicy(ctx context.Context, id string) (*PolicyRecord, error)

	// FindIdentity returns the identity row for id (with its linked policy
	// ids resolved), or nil if absent.
	FindIdentity(ctx context.Context, id string) (*IdentityRecord, error)

	// FindGroup returns the group row for id (with its linked policy and
	// member ids resolved), or nil if absent.
	FindGroup(ctx context.Context, id string) (*GroupRecord, error)

	// ListGroupIDsForIdentity runs a DISTINCT query over the
	// group_identity table for the given identity id.
	ListGroupIDsForIdentity(ctx context.Context, identityID string) ([]string, error)

	// SavePolicy upserts a standalone policy row.
	SavePolicy(ctx context.Context, rec PolicyRecord) error

	// SaveIdentity upserts the identity row and its identity_policy links
	// in one transaction. embeddedPolicy is nil when the identity has no
	// inline policy, in which case the implementation clears the FK and
	// deletes any existing synthetic policy row for this identity.
	SaveIdentity(ctx context.Context, id string, embeddedPolicy *PolicyRecord, linkedPolicyIDs []string) error

	// SaveGroup upserts the group row, its group_policy links, and its
	// group_identity membership rows in one transaction. embeddedPolicy is
	// nil when the group has no inline policy.
	SaveGroup(ctx context.Context, name string, embeddedPolicy *PolicyRecord, linkedPolicyIDs []string, memberIDs []string) error
}
