// Package storage implements the caching storage manager: the
// read-through LRU caches over identities, groups, groups-per-identity and
// policies, and the write path that invalidates them and the policy
// compile cache on every save.
//
// The Manager is backend-agnostic; it depends only on the Backend
// interface defined here. internal/storage/postgres provides the only
// production Backend today.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/ironclad-authz/ironclad/internal/cache"
	"github.com/ironclad-authz/ironclad/internal/policy"
	"github.com/ironclad-authz/ironclad/internal/principal"
)

const (
	identityCacheCapacity          = 128
	groupCacheCapacity             = 128
	policyCacheCapacity            = 1024
	groupsPerIdentityCacheCapacity = 128
)

// Manager loads and saves identities, groups and policies against a
// Backend, keeping read-through caches coherent with a single lock. Every
// exported method acquires mu itself; internal helpers that need to call
// each other while the lock is held carry a "Locked" suffix and never
// re-acquire it, so there is no re-entrant locking anywhere.
type Manager struct {
	backend  Backend
	compiler *policy.Compiler

	mu                sync.Mutex
	identities        *cache.LRU[string, *principal.Identity]
	groups            *cache.LRU[string, *principal.Group]
	policies          *cache.LRU[string, *policy.Policy]
	groupsPerIdentity *cache.LRU[string, []string]
}

// NewManager constructs a Manager backed by backend, with a fresh
// process-local compile cache. Each Manager owns its own Compiler so that
// tests constructing independent Managers never share compiled-policy
// state.
func NewManager(backend Backend) *Manager {
	return &Manager{
		backend:           backend,
		compiler:          policy.NewCompiler(),
		identities:        cache.New[string, *principal.Identity](identityCacheCapacity),
		groups:            cache.New[string, *principal.Group](groupCacheCapacity),
		policies:          cache.New[string, *policy.Policy](policyCacheCapacity),
		groupsPerIdentity: cache.New[string, []string](groupsPerIdentityCacheCapacity),
	}
}

func embeddedIdentityPolicyID(identityID string) string {
	return fmt.Sprintf("__embedded_policy_identity_%s__", identityID)
}

func embeddedGroupPolicyID(groupName string) string {
	return fmt.Sprintf("__embedded_policy_group_%s__", groupName)
}

// GetPolicy returns the policy for id, using the cache first. A miss
// populates the cache; a backend miss returns (nil, nil) per the "missing
// principal is not an error" rule.
func (m *Manager) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getPolicyLocked(ctx, id)
}

func (m *Manager) getPolicyLocked(ctx context.Context, id string) (*policy.Policy, error) {
	if p, ok := m.policies.Get(id); ok {
		return p, nil
	}

	rec, err := m.backend.FindPolicy(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage: find policy %q: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}

	p, err := m.policyFromRecord(*rec)
	if err != nil {
		return nil, err
	}

	m.policies.Insert(id, p)
	return p, nil
}

func (m *Manager) policyFromRecord(rec PolicyRecord) (*policy.Policy, error) {
	effect := policy.Allow
	if !rec.Allow {
		effect = policy.Deny
	}
	p, err := policy.New(policy.Version(rec.Version), rec.ID, effect, rec.Actions, rec.Resources)
	if err != nil {
		return nil, fmt.Errorf("storage: decoding policy %q: %w", rec.ID, err)
	}
	return p.WithCompiler(m.compiler), nil
}

func policyToRecord(p *policy.Policy) PolicyRecord {
	return PolicyRecord{
		ID:        p.ID(),
		Version:   int(p.Version()),
		Allow:     p.Effect() == policy.Allow,
		Actions:   p.Actions(),
		Resources: p.Resources(),
	}
}

// GetIdentity returns the identity for id, using the cache first. A
// backend miss returns (nil, nil): a missing identity means the decision
// is Denied, not that the request failed.
func (m *Manager) GetIdentity(ctx context.Context, id string) (*principal.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getIdentityLocked(ctx, id)
}

func (m *Manager) getIdentityLocked(ctx context.Context, id string) (*principal.Identity, error) {
	if i, ok := m.identities.Get(id); ok {
		return i, nil
	}

	rec, err := m.backend.FindIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage: find identity %q: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}

	var inline *policy.Policy
	if rec.EmbeddedPolicyID != nil {
		inline, err = m.getPolicyLocked(ctx, *rec.EmbeddedPolicyID)
		if err != nil {
			return nil, err
		}
	}

	identity := principal.NewIdentity(rec.ID, inline)
	for _, pid := range rec.LinkedPolicyIDs {
		linked, err := m.getPolicyLocked(ctx, pid)
		if err != nil {
			return nil, err
		}
		if linked != nil {
			identity.AddPolicy(linked)
		}
	}

	m.identities.Insert(id, identity)
	return identity, nil
}

// GetGroup returns the group for id, using the cache first.
func (m *Manager) GetGroup(ctx context.Context, id string) (*principal.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getGroupLocked(ctx, id)
}

func (m *Manager) getGroupLocked(ctx context.Context, id string) (*principal.Group, error) {
	if g, ok := m.groups.Get(id); ok {
		return g, nil
	}

	rec, err := m.backend.FindGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage: find group %q: %w", id, err)
	}
	if rec == nil {
		return nil, nil
	}

	var inline *policy.Policy
	if rec.EmbeddedPolicyID != nil {
		inline, err = m.getPolicyLocked(ctx, *rec.EmbeddedPolicyID)
		if err != nil {
			return nil, err
		}
	}

	group := principal.NewGroup(rec.ID, inline)
	for _, pid := range rec.LinkedPolicyIDs {
		linked, err := m.getPolicyLocked(ctx, pid)
		if err != nil {
			return nil, err
		}
		if linked != nil {
			group.AddPolicy(linked)
		}
	}
	for _, mid := range rec.MemberIDs {
		member, err := m.getIdentityLocked(ctx, mid)
		if err != nil {
			return nil, err
		}
		if member != nil {
			group.AddIdentity(member)
		}
	}

	m.groups.Insert(id, group)
	return group, nil
}

// GetGroupsFor returns the groups identity belongs to, in the order the
// backend reports membership. The id->group-ids mapping is cached
// separately from the resolved Group objects (capacity 128); a cache miss
// issues a DISTINCT query over group_identity, then re-resolves each group
// individually (through the group cache).
func (m *Manager) GetGroupsFor(ctx context.Context, identity *principal.Identity) ([]*principal.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groupIDs, ok := m.groupsPerIdentity.Get(identity.ID())
	if !ok {
		var err error
		groupIDs, err = m.backend.ListGroupIDsForIdentity(ctx, identity.ID())
		if err != nil {
			return nil, fmt.Errorf("storage: list groups for identity %q: %w", identity.ID(), err)
		}
		m.groupsPerIdentity.Insert(identity.ID(), groupIDs)
	}

	groups := make([]*principal.Group, 0, len(groupIDs))
	for _, gid := range groupIDs {
		g, err := m.getGroupLocked(ctx, gid)
		if err != nil {
			return nil, err
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// SavePolicy upserts a standalone policy, then clears the whole policy
// cache and the whole compile cache (policy bodies are cheap to recompile
// relative to how rarely they change, and per-id invalidation bookkeeping
// isn't worth the complexity). The identity and group caches are not
// cleared: a cached principal keeps the policy instances it was loaded
// with until its own cache is cleared.
func (m *Manager) SavePolicy(ctx context.Context, p *policy.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePolicyLocked(ctx, p)
}

func (m *Manager) savePolicyLocked(ctx context.Context, p *policy.Policy) error {
	if err := m.backend.SavePolicy(ctx, policyToRecord(p)); err != nil {
		return fmt.Errorf("storage: save policy %q: %w", p.ID(), err)
	}
	m.policies.Clear()
	m.compiler.ClearCache()
	return nil
}

// embeddedRecordFor materializes the synthetic inline-policy record for a
// principal, or nil if the principal carries no complete inline policy
// (i.e. it is the "no inline policy" case, see principal.Subject).
func embeddedRecordFor(inline *policy.Policy, syntheticID string) *PolicyRecord {
	if inline == nil || !inline.Complete() {
		return nil
	}
	rec := PolicyRecord{
		ID:        syntheticID,
		Version:   int(inline.Version()),
		Allow:     inline.Effect() == policy.Allow,
		Actions:   inline.Actions(),
		Resources: inline.Resources(),
	}
	return &rec
}

// SaveIdentity upserts identity transactionally: the synthetic embedded
// policy row (if the identity has a complete inline policy), the identity
// row with its policy_id FK, and the identity_policy link rows. It then
// invalidates the identity's cache entry and the whole compile cache.
func (m *Manager) SaveIdentity(ctx context.Context, identity *principal.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveIdentityLocked(ctx, identity)
}

func (m *Manager) saveIdentityLocked(ctx context.Context, identity *principal.Identity) error {
	embedded := embeddedRecordFor(identity.InlinePolicy(), embeddedIdentityPolicyID(identity.ID()))

	linkedIDs := make([]string, 0, len(identity.LinkedPolicies()))
	for _, p := range identity.LinkedPolicies() {
		linkedIDs = append(linkedIDs, p.ID())
	}

	if err := m.backend.SaveIdentity(ctx, identity.ID(), embedded, linkedIDs); err != nil {
		return fmt.Errorf("storage: save identity %q: %w", identity.ID(), err)
	}

	m.identities.Clear()
	m.compiler.ClearCache()
	return nil
}

// SaveGroup upserts group transactionally: the synthetic embedded policy
// row, the group row, the group_policy link rows, and the group_identity
// membership rows. It then invalidates the group cache, the
// groups-per-identity cache (membership may have changed for any former or
// current member), and the compile cache.
func (m *Manager) SaveGroup(ctx context.Context, group *principal.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveGroupLocked(ctx, group)
}

func (m *Manager) saveGroupLocked(ctx context.Context, group *principal.Group) error {
	embedded := embeddedRecordFor(group.InlinePolicy(), embeddedGroupPolicyID(group.Name()))

	linkedIDs := make([]string, 0, len(group.LinkedPolicies()))
	for _, p := range group.LinkedPolicies() {
		linkedIDs = append(linkedIDs, p.ID())
	}

	memberIDs := make([]string, 0, len(group.Members()))
	for _, i := range group.Members() {
		memberIDs = append(memberIDs, i.ID())
	}

	if err := m.backend.SaveGroup(ctx, group.Name(), embedded, linkedIDs, memberIDs); err != nil {
		return fmt.Errorf("storage: save group %q: %w", group.Name(), err)
	}

	m.groups.Clear()
	m.groupsPerIdentity.Clear()
	m.compiler.ClearCache()
	return nil
}

// Decide resolves the overall allowed-result for subjectID against
// (action, resource): load the identity; Denied on miss; otherwise merge
// the identity's own decision with each of its groups', in the order the
// backend returns membership. The merge algebra makes the final outcome
// independent of group order; only the retained partial set depends on it.
func (m *Manager) Decide(ctx context.Context, subjectID, action string, resource *string) (policy.AllowedResult, error) {
	identity, err := m.GetIdentity(ctx, subjectID)
	if err != nil {
		return policy.AllowedResult{}, err
	}
	if identity == nil {
		return policy.NewAllowedResult(policy.Denied), nil
	}

	result, err := identity.Allowed(&action, resource)
	if err != nil {
		return policy.AllowedResult{}, err
	}

	groups, err := m.GetGroupsFor(ctx, identity)
	if err != nil {
		return policy.AllowedResult{}, err
	}
	for _, g := range groups {
		gr, err := g.Allowed(&action, resource)
		if err != nil {
			return policy.AllowedResult{}, err
		}
		result.Merge(gr)
	}

	return result, nil
}

// Compiler returns the Manager's policy compiler, exposed so a caller that
// constructs Policy values outside of a Save path (e.g. a request handler
// building a policy before persisting it) can share the same cache.
func (m *Manager) Compiler() *policy.Compiler {
	return m.compiler
}

// AddGroupMember adds identityID to group's member list and persists the
// group. Returns ErrNotFound if the group doesn't exist. The member is
// resolved through the identity cache if it already exists in storage;
// otherwise a bare identity (no inline policy, no linked policies) is
// created and saved first. The caller doesn't need to have created the
// identity with its own POST /identities call first, but the identity row
// itself must exist once membership is recorded, since the relational
// schema's group_identity table carries a foreign key to identity(id).
// The whole read-modify-write runs under a single lock acquisition (via the
// "Locked" helpers) so two concurrent adds against the same group can't race
// on the shared cached *principal.Group.
func (m *Manager) AddGroupMember(ctx context.Context, groupID, identityID string) (*principal.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	group, err := m.getGroupLocked(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrNotFound
	}

	member, err := m.getIdentityLocked(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		member = principal.NewIdentity(identityID, nil)
		if err := m.saveIdentityLocked(ctx, member); err != nil {
			return nil, err
		}
	}

	group.AddIdentity(member)
	if err := m.saveGroupLocked(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

// RemoveGroupMember removes identityID from group's member list and
// persists the group. Returns ErrNotFound if the group or the identity
// doesn't exist.
func (m *Manager) RemoveGroupMember(ctx context.Context, groupID, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	group, err := m.getGroupLocked(ctx, groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return ErrNotFound
	}

	identity, err := m.getIdentityLocked(ctx, identityID)
	if err != nil {
		return err
	}
	if identity == nil {
		return ErrNotFound
	}

	group.RemoveIdentity(identityID)
	return m.saveGroupLocked(ctx, group)
}
