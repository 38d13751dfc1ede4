package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"prop_survey/core-go/internal/security"
	"prop_survey/core-go/internal/sqlcgen"
)

const (
	roleAdmin    = "admin"
	roleEmployee = "employee"

	sessionTokenBytes = 32
)

type contextKey string

const authContextKey contextKey = "authed_user"

// authedUser is the caller identity the middleware puts on the context.
type authedUser struct {
	ID       string
	Email    string
	FullName string
	Role     string
	Token    string
}

func authFromContext(ctx context.Context) (authedUser, bool) {
	u, ok := ctx.Value(authContextKey).(authedUser)
	return u, ok
}

type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`
}

func toUserResponse(u sqlcgen.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role, Active: u.Active}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.auth == nil {
			h.dbUnavailable(w)
			return
		}

		token := bearerToken(r)
		if token == "" {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}

		sess, err := h.auth.GetSessionUser(r.Context(), token)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				h.writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token", nil)
				return
			}
			h.log.Error().Err(err).Msg("session lookup failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to authenticate", nil)
			return
		}
		if !sess.Active {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "account is deactivated", nil)
			return
		}

		u := authedUser{
			ID:       sess.UserID,
			Email:    sess.Email,
			FullName: sess.FullName,
			Role:     sess.Role,
			Token:    sess.Token,
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authContextKey, u)))
	})
}

func (h *Handler) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := authFromContext(r.Context())
			if !ok || u.Role != role {
				h.writeError(w, http.StatusForbidden, "forbidden", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "email and password are required", nil)
		return
	}

	if h.auth == nil {
		h.dbUnavailable(w)
		return
	}

	user, err := h.auth.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect", nil)
			return
		}
		h.log.Error().Err(err).Msg("login lookup failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to log in", nil)
		return
	}

	if !security.VerifyPassword(req.Password, user.PasswordHash) {
		h.writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect", nil)
		return
	}
	if !user.Active {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "account is deactivated", nil)
		return
	}

	token, err := security.RandomToken(sessionTokenBytes)
	if err != nil {
		h.log.Error().Err(err).Msg("token generation failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "failed to log in", nil)
		return
	}

	expires := time.Now().UTC().Add(h.sessionTTL)
	if err := h.auth.CreateSession(r.Context(), sqlcgen.CreateSessionParams{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: expires,
	}); err != nil {
		h.log.Error().Err(err).Msg("session create failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to log in", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      toUserResponse(user),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	u, ok := authFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}

	if _, err := h.auth.RevokeSession(r.Context(), u.Token); err != nil {
		h.log.Error().Err(err).Msg("session revoke failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to log out", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := authFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}
	h.writeJSON(w, http.StatusOK, userResponse{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Role:     u.Role,
		Active:   true,
	})
}
