// Package postgres implements storage.Backend on top of PostgreSQL via
// pgx/v5's connection pool. Importing it registers the "postgres" and
// "postgresql" DSN schemes with storage.Open.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ironclad-authz/ironclad/internal/storage"
)

// Backend implements storage.Backend against the six-table relational
// schema described in the storage design: policy, identity, group,
// identity_policy, group_policy, group_identity.
type Backend struct {
	pool *pgxpool.Pool
}

func init() {
	open := func(ctx context.Context, dsn string) (storage.Backend, error) {
		return Connect(ctx, dsn)
	}
	storage.RegisterBackend("postgres", open)
	storage.RegisterBackend("postgresql", open)
}

// Connect opens a pgxpool against dsn and ensures the schema exists.
func Connect(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	b := &Backend{pool: pool}
	if err := b.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the underlying connection pool. pgxpool.Pool.Close never
// fails, so this always returns nil; it satisfies storage.Closer for
// callers that want to log a close failure uniformly across backends.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// schemaStatements creates the six tables if they don't already exist.
// "group" is a reserved word in PostgreSQL and is always double-quoted.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS policy (
		id        TEXT PRIMARY KEY,
		version   INT  NOT NULL,
		effect    BOOL NOT NULL,
		actions   TEXT NOT NULL,
		resources TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identity (
		id        TEXT PRIMARY KEY,
		policy_id TEXT NULL REFERENCES policy(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS "group" (
		id        TEXT PRIMARY KEY,
		policy_id TEXT NULL REFERENCES policy(id) ON DELETE SET NULL
	)`,
	`CREATE TABLE IF NOT EXISTS identity_policy (
		identity_id TEXT NOT NULL REFERENCES identity(id) ON DELETE CASCADE,
		policy_id   TEXT NOT NULL REFERENCES policy(id) ON DELETE CASCADE,
		PRIMARY KEY (identity_id, policy_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_policy (
		group_id  TEXT NOT NULL REFERENCES "group"(id) ON DELETE CASCADE,
		policy_id TEXT NOT NULL REFERENCES policy(id) ON DELETE CASCADE,
		PRIMARY KEY (group_id, policy_id)
	)`,
	`CREATE TABLE IF NOT EXISTS group_identity (
		group_id    TEXT NOT NULL REFERENCES "group"(id) ON DELETE CASCADE,
		identity_id TEXT NOT NULL REFERENCES identity(id) ON DELETE CASCADE,
		PRIMARY KEY (group_id, identity_id)
	)`,
}

func (b *Backend) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

func encodeStrings(v []string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("postgres: encode string array: %w", err)
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("postgres: decode string array: %w", err)
	}
	return v, nil
}

func (b *Backend) FindPolicy(ctx context.Context, id string) (*storage.PolicyRecord, error) {
	row := b.pool.QueryRow(ctx,
		`SELECT id, version, effect, actions, resources FROM policy WHERE id = $1`, id)

	var rec storage.PolicyRecord
	var actions, resources string
	if err := row.Scan(&rec.ID, &rec.Version, &rec.Allow, &actions, &resources); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find policy %q: %w", id, err)
	}

	var err error
	if rec.Actions, err = decodeStrings(actions); err != nil {
		return nil, err
	}
	if rec.Resources, err = decodeStrings(resources); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *Backend) FindIdentity(ctx context.Context, id string) (*storage.IdentityRecord, error) {
	row := b.pool.QueryRow(ctx, `SELECT id, policy_id FROM identity WHERE id = $1`, id)

	var rec storage.IdentityRecord
	if err := row.Scan(&rec.ID, &rec.EmbeddedPolicyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find identity %q: %w", id, err)
	}

	linked, err := b.linkedPolicyIDs(ctx, "identity_policy", "identity_id", id)
	if err != nil {
		return nil, err
	}
	rec.LinkedPolicyIDs = linked
	return &rec, nil
}

func (b *Backend) FindGroup(ctx context.Context, id string) (*storage.GroupRecord, error) {
	row := b.pool.QueryRow(ctx, `SELECT id, policy_id FROM "group" WHERE id = $1`, id)

	var rec storage.GroupRecord
	if err := row.Scan(&rec.ID, &rec.EmbeddedPolicyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: find group %q: %w", id, err)
	}

	linked, err := b.linkedPolicyIDs(ctx, "group_policy", "group_id", id)
	if err != nil {
		return nil, err
	}
	rec.LinkedPolicyIDs = linked

	memberRows, err := b.pool.Query(ctx,
		`SELECT identity_id FROM group_identity WHERE group_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("postgres: find group %q members: %w", id, err)
	}
	defer memberRows.Close()
	for memberRows.Next() {
		var memberID string
		if err := memberRows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("postgres: scan group member: %w", err)
		}
		rec.MemberIDs = append(rec.MemberIDs, memberID)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate group members: %w", err)
	}

	return &rec, nil
}

func (b *Backend) linkedPolicyIDs(ctx context.Context, table, fkColumn, id string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		fmt.Sprintf(`SELECT policy_id FROM %s WHERE %s = $1`, table, fkColumn), id)
	if err != nil {
		return nil, fmt.Errorf("postgres: linked policies from %s: %w", table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var policyID string
		if err := rows.Scan(&policyID); err != nil {
			return nil, fmt.Errorf("postgres: scan linked policy: %w", err)
		}
		ids = append(ids, policyID)
	}
	return ids, rows.Err()
}

func (b *Backend) ListGroupIDsForIdentity(ctx context.Context, identityID string) ([]string, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT DISTINCT group_id FROM group_identity WHERE identity_id = $1`, identityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list groups for identity %q: %w", identityID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("postgres: scan group id: %w", err)
		}
		ids = append(ids, groupID)
	}
	return ids, rows.Err()
}

func (b *Backend) SavePolicy(ctx context.Context, rec storage.PolicyRecord) error {
	actions, err := encodeStrings(rec.Actions)
	if err != nil {
		return err
	}
	resources, err := encodeStrings(rec.Resources)
	if err != nil {
		return err
	}

	_, err = b.pool.Exec(ctx, `
		INSERT INTO policy (id, version, effect, actions, resources)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, effect = EXCLUDED.effect,
		    actions = EXCLUDED.actions, resources = EXCLUDED.resources
	`, rec.ID, rec.Version, rec.Allow, actions, resources)
	if err != nil {
		return fmt.Errorf("postgres: save policy %q: %w", rec.ID, err)
	}
	return nil
}

// SaveIdentity upserts the identity row and its identity_policy links in a
// single transaction: upsert or delete the synthetic inline policy row,
// upsert the principal row with its policy_id FK, then delete-and-reinsert
// the link rows.
func (b *Backend) SaveIdentity(ctx context.Context, id string, embedded *storage.PolicyRecord, linkedPolicyIDs []string) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: save identity %q: begin: %w", id, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	embeddedID, err := upsertEmbeddedPolicy(ctx, tx, embeddedIdentityPolicyID(id), embedded)
	if err != nil {
		return fmt.Errorf("postgres: save identity %q: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO identity (id, policy_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET policy_id = EXCLUDED.policy_id
	`, id, embeddedID); err != nil {
		return fmt.Errorf("postgres: save identity %q: upsert row: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM identity_policy WHERE identity_id = $1`, id); err != nil {
		return fmt.Errorf("postgres: save identity %q: clear links: %w", id, err)
	}
	for _, pid := range linkedPolicyIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO identity_policy (identity_id, policy_id) VALUES ($1, $2)`, id, pid); err != nil {
			return fmt.Errorf("postgres: save identity %q: link policy %q: %w", id, pid, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: save identity %q: commit: %w", id, err)
	}
	return nil
}

// SaveGroup upserts the group row, its group_policy links, and its
// group_identity membership rows in one transaction.
func (b *Backend) SaveGroup(ctx context.Context, name string, embedded *storage.PolicyRecord, linkedPolicyIDs, memberIDs []string) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: save group %q: begin: %w", name, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	embeddedID, err := upsertEmbeddedPolicy(ctx, tx, embeddedGroupPolicyID(name), embedded)
	if err != nil {
		return fmt.Errorf("postgres: save group %q: %w", name, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO "group" (id, policy_id) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET policy_id = EXCLUDED.policy_id
	`, name, embeddedID); err != nil {
		return fmt.Errorf("postgres: save group %q: upsert row: %w", name, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_policy WHERE group_id = $1`, name); err != nil {
		return fmt.Errorf("postgres: save group %q: clear policy links: %w", name, err)
	}
	for _, pid := range linkedPolicyIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_policy (group_id, policy_id) VALUES ($1, $2)`, name, pid); err != nil {
			return fmt.Errorf("postgres: save group %q: link policy %q: %w", name, pid, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM group_identity WHERE group_id = $1`, name); err != nil {
		return fmt.Errorf("postgres: save group %q: clear members: %w", name, err)
	}
	for _, mid := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO group_identity (group_id, identity_id) VALUES ($1, $2)`, name, mid); err != nil {
			return fmt.Errorf("postgres: save group %q: add member %q: %w", name, mid, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: save group %q: commit: %w", name, err)
	}
	return nil
}

func embeddedIdentityPolicyID(id string) string {
	return fmt.Sprintf("__embedded_policy_identity_%s__", id)
}

func embeddedGroupPolicyID(name string) string {
	return fmt.Sprintf("__embedded_policy_group_%s__", name)
}

// upsertEmbeddedPolicy writes or deletes the synthetic inline-policy row
// for a principal and returns the FK value to store on the principal row:
// the synthetic id when embedded is non-nil, or nil when the principal has
// no inline policy.
func upsertEmbeddedPolicy(ctx context.Context, tx pgx.Tx, syntheticID string, embedded *storage.PolicyRecord) (*string, error) {
	if embedded == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM policy WHERE id = $1`, syntheticID); err != nil {
			return nil, fmt.Errorf("delete synthetic policy %q: %w", syntheticID, err)
		}
		return nil, nil
	}

	actions, err := encodeStrings(embedded.Actions)
	if err != nil {
		return nil, err
	}
	resources, err := encodeStrings(embedded.Resources)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO policy (id, version, effect, actions, resources)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, effect = EXCLUDED.effect,
		    actions = EXCLUDED.actions, resources = EXCLUDED.resources
	`, syntheticID, embedded.Version, embedded.Allow, actions, resources); err != nil {
		return nil, fmt.Errorf("upsert synthetic policy %q: %w", syntheticID, err)
	}

	id := syntheticID
	return &id, nil
}

var _ storage.Backend = (*Backend)(nil)
