package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"prop_survey/core-go/internal/security"
	"prop_survey/core-go/internal/sqlcgen"
)

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		h.dbUnavailable(w)
		return
	}

	var role *string
	if v := strings.TrimSpace(r.URL.Query().Get("role")); v != "" {
		if v != roleAdmin && v != roleEmployee {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "role must be admin or employee", nil)
			return
		}
		role = &v
	}

	rows, err := h.users.ListUsers(r.Context(), role)
	if err != nil {
		h.log.Error().Err(err).Msg("list users failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list users", nil)
		return
	}

	resp := make([]userResponse, 0, len(rows))
	for _, u := range rows {
		resp = append(resp, toUserResponse(u))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type createUserRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "a valid email is required", nil)
		return
	}
	if req.FullName == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "full_name is required", nil)
		return
	}
	if req.Role != roleAdmin && req.Role != roleEmployee {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "role must be admin or employee", nil)
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	if h.users == nil {
		h.dbUnavailable(w)
		return
	}

	user, err := h.users.CreateUser(r.Context(), sqlcgen.CreateUserParams{
		Email:        req.Email,
		FullName:     req.FullName,
		Role:         req.Role,
		PasswordHash: hash,
	})
	if err != nil {
		if isUniqueViolation(err) {
			h.writeError(w, http.StatusConflict, "conflict", "a user with this email already exists", nil)
			return
		}
		h.log.Error().Err(err).Msg("create user failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to create user", nil)
		return
	}

	h.auditAction(r, "user.create", "user", user.ID, map[string]any{"email": user.Email, "role": user.Role})
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.users == nil {
		h.dbUnavailable(w)
		return
	}

	n, err := h.users.DeactivateUser(r.Context(), id)
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "user id is not a valid uuid", map[string]any{"id": id})
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("deactivate user failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to deactivate user", nil)
		return
	}
	if n == 0 {
		// Either unknown or already inactive; disambiguate for the caller.
		if _, err := h.users.GetUser(r.Context(), id); errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusNotFound, "not_found", "user not found", map[string]any{"id": id})
			return
		}
	}

	h.auditAction(r, "user.deactivate", "user", id, nil)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// auditAction records an admin mutation; failures are logged, never fatal to
// the request.
func (h *Handler) auditAction(r *http.Request, action, targetType, targetID string, details map[string]any) {
	if h.audit == nil {
		return
	}
	u, ok := authFromContext(r.Context())
	if !ok {
		return
	}
	role := u.Role
	arg := sqlcgen.InsertAuditEventParams{
		Actor:      u.Email,
		ActorRole:  &role,
		Action:     action,
		TargetType: &targetType,
		Details:    details,
	}
	if targetID != "" {
		arg.TargetID = &targetID
	}
	if err := h.audit.InsertAuditEvent(r.Context(), arg); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("audit event write failed")
	}
}
