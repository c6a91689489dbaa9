package storage

import (
	"context"
	"testing"

	"github.com/ironclad-authz/ironclad/internal/policy"
	"github.com/ironclad-authz/ironclad/internal/principal"
)

// fakeBackend is a hand-rolled in-memory Backend used to exercise the
// Manager's caching and invalidation behavior without a database.
type fakeBackend struct {
	policies   map[string]PolicyRecord
	identities map[string]IdentityRecord
	groups     map[string]GroupRecord
	membership map[string][]string // identity id -> group ids

	findPolicyCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		policies:   map[string]PolicyRecord{},
		identities: map[string]IdentityRecord{},
		groups:     map[string]GroupRecord{},
		membership: map[string][]string{},
	}
}

func (f *fakeBackend) FindPolicy(_ context.Context, id string) (*PolicyRecord, error) {
	f.findPolicyCalls++
	rec, ok := f.policies[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeBackend) FindIdentity(_ context.Context, id string) (*IdentityRecord, error) {
	rec, ok := f.identities[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeBackend) FindGroup(_ context.Context, id string) (*GroupRecord, error) {
	rec, ok := f.groups[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeBackend) ListGroupIDsForIdentity(_ context.Context, identityID string) ([]string, error) {
	return f.membership[identityID], nil
}

func (f *fakeBackend) SavePolicy(_ context.Context, rec PolicyRecord) error {
	f.policies[rec.ID] = rec
	return nil
}

func (f *fakeBackend) SaveIdentity(_ context.Context, id string, embedded *PolicyRecord, linkedPolicyIDs []string) error {
	var embeddedID *string
	if embedded != nil {
		f.policies[embedded.ID] = *embedded
		id := embedded.ID
		embeddedID = &id
	}
	f.identities[id] = IdentityRecord{ID: id, EmbeddedPolicyID: embeddedID, LinkedPolicyIDs: linkedPolicyIDs}
	return nil
}

func (f *fakeBackend) SaveGroup(_ context.Context, name string, embedded *PolicyRecord, linkedPolicyIDs []string, memberIDs []string) error {
	var embeddedID *string
	if embedded != nil {
		f.policies[embedded.ID] = *embedded
		id := embedded.ID
		embeddedID = &id
	}
	f.groups[name] = GroupRecord{ID: name, EmbeddedPolicyID: embeddedID, LinkedPolicyIDs: linkedPolicyIDs, MemberIDs: memberIDs}

	for id, groups := range f.membership {
		kept := groups[:0:0]
		for _, g := range groups {
			if g != name {
				kept = append(kept, g)
			}
		}
		f.membership[id] = kept
	}
	for _, id := range memberIDs {
		f.membership[id] = append(f.membership[id], name)
	}
	return nil
}

func mustNewPolicy(t *testing.T, id string, effect policy.Effect, actions, resources []string) *policy.Policy {
	t.Helper()
	p, err := policy.New(policy.V1, id, effect, actions, resources)
	if err != nil {
		t.Fatalf("policy.New(%q): %v", id, err)
	}
	return p
}

func TestManagerGetPolicyCachesAcrossCalls(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	m := NewManager(backend)

	p := mustNewPolicy(t, "P1", policy.Allow, []string{"read"}, nil)
	if err := m.SavePolicy(ctx, p); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}

	if _, err := m.GetPolicy(ctx, "P1"); err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	callsAfterFirst := backend.findPolicyCalls

	if _, err := m.GetPolicy(ctx, "P1"); err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if backend.findPolicyCalls != callsAfterFirst {
		t.Fatalf("expected second GetPolicy to hit cache, backend called %d times (was %d)", backend.findPolicyCalls, callsAfterFirst)
	}
}

func TestManagerGetIdentityMissingIsNilNotError(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend)

	identity, err := m.GetIdentity(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	if identity != nil {
		t.Fatalf("expected nil identity for missing id, got %v", identity)
	}
}

func TestManagerDecideInlineAndLinkedPolicies(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	m := NewManager(backend)

	linked := mustNewPolicy(t, "linked", policy.Allow, []string{"test:identity"}, []string{"*"})
	if err := m.SavePolicy(ctx, linked); err != nil {
		t.Fatalf("SavePolicy(linked): %v", err)
	}

	inline := mustNewPolicy(t, "inline", policy.Allow, []string{"test:not-identity"}, []string{"urn:t:id"})
	identity := principal.NewIdentity("alice", inline)
	identity.AddPolicy(linked)
	if err := m.SaveIdentity(ctx, identity); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	result, err := m.Decide(ctx, "alice", "test:identity", strPtr("urn:any"))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Observed() != policy.Allowed {
		t.Fatalf("got %v, want Allowed", result.Observed())
	}
}

func TestManagerDecideMissingIdentityIsDenied(t *testing.T) {
	backend := newFakeBackend()
	m := NewManager(backend)

	result, err := m.Decide(context.Background(), "nobody", "read", strPtr("urn:x"))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Observed() != policy.Denied {
		t.Fatalf("got %v, want Denied", result.Observed())
	}
}

func TestManagerDecideMergesGroups(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	m := NewManager(backend)

	identity := principal.NewIdentity("bob", nil)
	if err := m.SaveIdentity(ctx, identity); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}

	denyAll := mustNewPolicy(t, "deny-all", policy.Deny, []string{"*"}, nil)
	group := principal.NewGroup("g1", nil)
	group.AddPolicy(denyAll)
	group.AddIdentity(identity)
	if err := m.SaveGroup(ctx, group); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}

	result, err := m.Decide(ctx, "bob", "anything", strPtr("urn:x"))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Observed() != policy.Denied {
		t.Fatalf("got %v, want Denied (group DENY must absorb)", result.Observed())
	}
}

func TestManagerSaveClearsCompileCache(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	m := NewManager(backend)

	p := mustNewPolicy(t, "P1", policy.Allow, []string{"read"}, nil)
	if err := m.SavePolicy(ctx, p); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}
	if _, err := m.GetPolicy(ctx, "P1"); err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}

	updated := mustNewPolicy(t, "P1", policy.Allow, []string{"write"}, nil)
	if err := m.SavePolicy(ctx, updated); err != nil {
		t.Fatalf("SavePolicy(updated): %v", err)
	}

	got, err := m.GetPolicy(ctx, "P1")
	if err != nil {
		t.Fatalf("GetPolicy: %v", err)
	}
	if len(got.Actions()) != 1 || got.Actions()[0] != "write" {
		t.Fatalf("expected cache to reflect updated policy, got actions=%v", got.Actions())
	}
}

func TestManagerGroupMembership(t *testing.T) {
	backend := newFakeBackend()
	ctx := context.Background()
	m := NewManager(backend)

	group := principal.NewGroup("g1", nil)
	if err := m.SaveGroup(ctx, group); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}

	if _, err := m.AddGroupMember(ctx, "g1", "carol"); err != nil {
		t.Fatalf("AddGroupMember: %v", err)
	}

	got, err := m.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if !got.HasMember("carol") {
		t.Fatalf("expected carol to be a member after AddGroupMember")
	}

	identity, err := m.GetIdentity(ctx, "carol")
	if err != nil {
		t.Fatalf("GetIdentity: %v", err)
	}
	groups, err := m.GetGroupsFor(ctx, identity)
	if err != nil {
		t.Fatalf("GetGroupsFor: %v", err)
	}
	if len(groups) != 1 || groups[0].Name() != "g1" {
		t.Fatalf("expected carol to resolve to group g1, got %v", groups)
	}

	if err := m.RemoveGroupMember(ctx, "g1", "carol"); err != nil {
		t.Fatalf("RemoveGroupMember: %v", err)
	}
	got, err = m.GetGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if got.HasMember("carol") {
		t.Fatalf("expected carol to be removed")
	}
}

func TestManagerAddGroupMemberMissingGroup(t *testing.T) {
	backend := newFakeBackend()
	_, err := NewManager(backend).AddGroupMember(context.Background(), "ghost", "carol")
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func strPtr(s string) *string { return &s }
