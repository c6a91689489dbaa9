// Package http provides the HTTP transport adapter for ironclad's
// authorization decision API.
//
// # Endpoints
//
//	GET    /_status                              - liveness probe
//	POST   /allowed                               - evaluate a decision
//	POST   /policies                              - upsert a policy
//	POST   /identities                            - upsert an identity
//	POST   /groups                                - upsert a group
//	POST   /group/{id}/members                    - add a group member
//	DELETE /group/{id}/member/{identityId}         - remove a group member
//	GET    /metrics                                - Prometheus exposition
//
// # Authentication
//
// The five mutating endpoints (policies, identities, groups, and both group
// membership routes) require the X-Admin-Api-Key header to match the key
// configured via ADMIN_API_KEY, checked by AdminAuthMiddleware. GET
// /_status, POST /allowed, and GET /metrics are unauthenticated.
//
// # Request validation
//
// Every mutating request body is checked against an embedded JSON Schema
// document before being decoded (see the schema subpackage); a violation
// is reported as 400 with the list of schema failures.
//
// # Middleware chain
//
// Requests pass through, outermost first:
//
//  1. MetricsMiddleware - records request_duration_seconds and
//     requests_total
//  2. RequestIDMiddleware - extracts or generates X-Request-Id and
//     enriches the logger
//  3. AdminAuthMiddleware - applied only to the mutating routes
//  4. Handler - routes to the per-endpoint handler
package http
