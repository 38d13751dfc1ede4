package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"prop_survey/core-go/internal/db"
	"prop_survey/core-go/internal/filestore"
	"prop_survey/core-go/internal/metrics"
)

const defaultSessionTTL = 12 * time.Hour

type Handler struct {
	log        zerolog.Logger
	pool       *db.Pool
	store      *filestore.Store
	metrics    *metrics.Metrics
	sessionTTL time.Duration

	auth       authQueries
	users      userQueries
	batches    batchQueries
	properties propertyQueries
	surveys    surveyQueries
	exports    exportQueries
	audit      auditQueries
}

type Options struct {
	Store      *filestore.Store
	Metrics    *metrics.Metrics
	SessionTTL time.Duration
}

func NewHandler(log zerolog.Logger, pool *db.Pool, opts Options) *Handler {
	h := &Handler{
		log:        log,
		pool:       pool,
		store:      opts.Store,
		metrics:    opts.Metrics,
		sessionTTL: opts.SessionTTL,
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = defaultSessionTTL
	}
	if pool != nil {
		q := pool.Queries()
		h.auth = q
		h.users = q
		h.batches = q
		h.properties = q
		h.surveys = q
		h.exports = q
		h.audit = q
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Post("/auth/login", h.handleLogin)

			r.Group(func(r chi.Router) {
				r.Use(h.withAuth)

				r.Post("/auth/logout", h.handleLogout)
				r.Get("/auth/me", h.handleMe)

				r.Get("/assignments", h.handleListAssignments)
				r.Post("/properties/{id}/survey", h.handleSubmitSurvey)

				r.Group(func(r chi.Router) {
					r.Use(h.requireRole(roleAdmin))

					r.Route("/users", func(r chi.Router) {
						r.Get("/", h.handleListUsers)
						r.Post("/", h.handleCreateUser)
						r.Post("/{id}/deactivate", h.handleDeactivateUser)
					})

					r.Route("/batches", func(r chi.Router) {
						r.Get("/", h.handleListBatches)
						r.Post("/", h.handleUploadBatch)
						r.Route("/{id}", func(r chi.Router) {
							r.Post("/archive", h.handleArchiveBatch)
							r.Post("/unarchive", h.handleUnarchiveBatch)
							r.Delete("/", h.handleDeleteBatch)
						})
					})

					r.Route("/properties", func(r chi.Router) {
						r.Get("/", h.handleListProperties)
						r.Post("/assign", h.handleAssignProperties)
						r.Post("/unassign", h.handleUnassignProperties)
						r.Post("/delete", h.handleDeleteProperties)
						r.Get("/{id}", h.handleGetProperty)
					})

					r.Route("/surveys", func(r chi.Router) {
						r.Get("/", h.handleListSurveys)
						r.Route("/{id}", func(r chi.Router) {
							r.Get("/", h.handleGetSurvey)
							r.Post("/review", h.handleReviewSurvey)
						})
					})

					r.Route("/exports", func(r chi.Router) {
						r.Get("/", h.handleListExports)
						r.Post("/", h.handleCreateExport)
						r.Route("/{id}", func(r chi.Router) {
							r.Get("/", h.handleGetExport)
							r.Get("/download", h.handleDownloadExport)
						})
					})
				})
			})
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// RequestID only puts the ID on the context; echo it back so
		// clients can correlate responses with server logs.
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			ww.Header().Set("X-Request-ID", reqID)
		}

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("http_request")

		// Metrics get the route pattern, not the raw path, to bound label
		// cardinality.
		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), elapsed)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

func (h *Handler) dbUnavailable(w http.ResponseWriter) {
	h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22P02"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	if err := h.pool.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}
