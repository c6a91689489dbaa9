package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ironclad-authz/ironclad/internal/adapter/inbound/http/schema"
	"github.com/ironclad-authz/ironclad/internal/policy"
	"github.com/ironclad-authz/ironclad/internal/principal"
	"github.com/ironclad-authz/ironclad/internal/storage"
)

// Handler implements the decision-service HTTP API: GET /_status, POST
// /allowed, POST /policies, POST /identities, POST /groups, POST
// /group/{id}/members, and DELETE /group/{id}/member/{identityId}.
type Handler struct {
	manager *storage.Manager
	metrics *Metrics
}

// NewHandler constructs a Handler over the given storage manager.
func NewHandler(manager *storage.Manager, metrics *Metrics) *Handler {
	return &Handler{manager: manager, metrics: metrics}
}

// Mux builds the routing table. transport.go mounts this mux and wraps the
// mutating routes in AdminAuthMiddleware, matching them by the path
// prefixes listed in its own mutatingPaths.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /_status", statusHandler())
	mux.HandleFunc("POST /allowed", h.handleAllowed)
	mux.HandleFunc("POST /policies", h.handlePolicies)
	mux.HandleFunc("POST /identities", h.handleIdentities)
	mux.HandleFunc("POST /groups", h.handleGroups)
	mux.HandleFunc("POST /group/{id}/members", h.handleAddGroupMember)
	mux.HandleFunc("DELETE /group/{id}/member/{identityId}", h.handleRemoveGroupMember)
	return mux
}

type allowedRequest struct {
	Subject  string  `json:"subject"`
	Action   string  `json:"action"`
	Resource *string `json:"resource"`
}

func (h *Handler) handleAllowed(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readValidated(w, r, schema.Allowed)
	if !ok {
		return
	}

	var req allowedRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.manager.Decide(r.Context(), req.Subject, req.Action, req.Resource)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.metrics != nil {
		h.metrics.DecisionsTotal.WithLabelValues(result.Observed().String()).Inc()
	}

	status := http.StatusOK
	if result.Observed() == policy.Denied {
		status = http.StatusForbidden
	}
	writeJSON(w, status, result)
}

func (h *Handler) handlePolicies(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readValidated(w, r, schema.Policy)
	if !ok {
		return
	}

	p := &policy.Policy{}
	if err := p.UnmarshalJSON(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p = p.WithCompiler(h.manager.Compiler())

	if err := h.manager.SavePolicy(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.PolicySaves.Inc()
	}

	writeJSON(w, http.StatusOK, p)
}

// principalUpsertRequest is the shared shape of POST /identities and POST
// /groups bodies: an id, an optional inline policy body, a list of linked
// policy ids, and (groups only) a list of member identity ids.
type principalUpsertRequest struct {
	ID             string          `json:"id"`
	InlinePolicy   json.RawMessage `json:"inline_policy"`
	LinkedPolicies []string        `json:"linked_policies"`
	Members        []string        `json:"members"`
}

// unknownReferenceError reports a linked-policy or member id that does not
// resolve to anything in storage.
type unknownReferenceError struct {
	kind string
	id   string
}

func (e *unknownReferenceError) Error() string {
	return "unknown " + e.kind + " id: " + e.id
}

func (h *Handler) resolveInlinePolicy(raw json.RawMessage) (*policy.Policy, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	p := &policy.Policy{}
	if err := p.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return p.WithCompiler(h.manager.Compiler()), nil
}

func (h *Handler) resolveLinkedPolicies(ctx context.Context, ids []string) ([]*policy.Policy, error) {
	resolved := make([]*policy.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := h.manager.GetPolicy(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, &unknownReferenceError{kind: "policy", id: id}
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

func (h *Handler) handleIdentities(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readValidated(w, r, schema.Identity)
	if !ok {
		return
	}

	var req principalUpsertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inline, err := h.resolveInlinePolicy(req.InlinePolicy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	linked, err := h.resolveLinkedPolicies(r.Context(), req.LinkedPolicies)
	if err != nil {
		writeReferenceError(w, err)
		return
	}

	identity := principal.NewIdentity(req.ID, inline)
	for _, p := range linked {
		identity.AddPolicy(p)
	}

	if err := h.manager.SaveIdentity(r.Context(), identity); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, identity.ToJSON())
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readValidated(w, r, schema.Group)
	if !ok {
		return
	}

	var req principalUpsertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inline, err := h.resolveInlinePolicy(req.InlinePolicy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	linked, err := h.resolveLinkedPolicies(r.Context(), req.LinkedPolicies)
	if err != nil {
		writeReferenceError(w, err)
		return
	}

	group := principal.NewGroup(req.ID, inline)
	for _, p := range linked {
		group.AddPolicy(p)
	}

	for _, memberID := range req.Members {
		member, err := h.manager.GetIdentity(r.Context(), memberID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if member == nil {
			member = principal.NewIdentity(memberID, nil)
		}
		group.AddIdentity(member)
	}

	if err := h.manager.SaveGroup(r.Context(), group); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, group.ToJSON())
}

type groupMemberRequest struct {
	ID string `json:"id"`
}

func (h *Handler) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readValidated(w, r, schema.GroupMember)
	if !ok {
		return
	}

	var req groupMemberRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	groupID := r.PathValue("id")
	if _, err := h.manager.AddGroupMember(r.Context(), groupID, req.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "group not found: "+groupID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	identityID := r.PathValue("identityId")

	if err := h.manager.RemoveGroupMember(r.Context(), groupID, identityID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "group or identity not found: "+groupID+"/"+identityID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeReferenceError(w http.ResponseWriter, err error) {
	var unknown *unknownReferenceError
	if errors.As(err, &unknown) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// readValidated reads the request body and validates it against the named
// schema, writing a 400 response and returning ok=false on any failure.
func (h *Handler) readValidated(w http.ResponseWriter, r *http.Request, name schema.Name) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	if err := schema.Validate(name, body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return body, true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
