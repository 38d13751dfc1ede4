package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"prop_survey/core-go/internal/sqlcgen"
)

type exportResponse struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Filter      map[string]any `json:"filter,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
	RequestedBy *string        `json:"requested_by,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	LastError   *string        `json:"last_error,omitempty"`
}

func toExportResponse(j sqlcgen.ExportJob) exportResponse {
	return exportResponse{
		ID:          j.ID,
		Status:      j.Status,
		Filter:      j.Filter,
		Stats:       j.Stats,
		RequestedBy: j.RequestedBy,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		LastError:   j.LastError,
	}
}

type createExportRequest struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
}

// handleCreateExport queues a report build and returns 202; the export worker
// picks the job up from the queue table.
func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var req createExportRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if req.Status != "" && !propertyStatuses[req.Status] {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown property status", map[string]any{"status": req.Status})
		return
	}

	if h.exports == nil {
		h.dbUnavailable(w)
		return
	}

	filter := map[string]any{}
	if req.BatchID != "" {
		// Reject unknown batches up front instead of failing the job later.
		if h.batches != nil {
			if _, err := h.batches.GetBatch(r.Context(), req.BatchID); err != nil {
				switch {
				case errors.Is(err, pgx.ErrNoRows):
					h.writeError(w, http.StatusNotFound, "not_found", "batch not found", map[string]any{"batch_id": req.BatchID})
				case isInvalidUUID(err):
					h.writeError(w, http.StatusBadRequest, "invalid_id", "batch id is not a valid uuid", map[string]any{"batch_id": req.BatchID})
				default:
					h.log.Error().Err(err).Msg("batch lookup failed")
					h.writeError(w, http.StatusInternalServerError, "db_error", "failed to queue export", nil)
				}
				return
			}
		}
		filter["batch_id"] = req.BatchID
	}
	if req.Status != "" {
		filter["status"] = req.Status
	}

	var requestedBy *string
	if u, ok := authFromContext(r.Context()); ok {
		requestedBy = &u.ID
	}

	job, err := h.exports.InsertExportJob(r.Context(), sqlcgen.InsertExportJobParams{
		Filter:      filter,
		RequestedBy: requestedBy,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("queue export failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to queue export", nil)
		return
	}

	h.auditAction(r, "export.create", "export", job.ID, filter)
	h.writeJSON(w, http.StatusAccepted, toExportResponse(job))
}

func (h *Handler) handleListExports(w http.ResponseWriter, r *http.Request) {
	if h.exports == nil {
		h.dbUnavailable(w)
		return
	}

	rows, err := h.exports.ListExportJobs(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list exports failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list exports", nil)
		return
	}

	resp := make([]exportResponse, 0, len(rows))
	for _, j := range rows {
		resp = append(resp, toExportResponse(j))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getExportJob(w http.ResponseWriter, r *http.Request) (sqlcgen.ExportJob, bool) {
	id := chi.URLParam(r, "id")
	if h.exports == nil {
		h.dbUnavailable(w)
		return sqlcgen.ExportJob{}, false
	}

	job, err := h.exports.GetExportJob(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "export not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "export id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("get export failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch export", nil)
		}
		return sqlcgen.ExportJob{}, false
	}
	return job, true
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getExportJob(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toExportResponse(job))
}

func (h *Handler) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.getExportJob(w, r)
	if !ok {
		return
	}

	if job.Status != "done" || job.ResultURL == nil {
		h.writeError(w, http.StatusNotFound, "not_ready", "export is not finished", map[string]any{"status": job.Status})
		return
	}
	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable", "file store not configured", nil)
		return
	}

	rc, err := h.store.Open(r.Context(), *job.ResultURL)
	if err != nil {
		h.log.Error().Err(err).Str("id", job.ID).Msg("open export result failed")
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to open export file", nil)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="survey-report-`+job.ID+`.xlsx"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.log.Warn().Err(err).Str("id", job.ID).Msg("export download interrupted")
	}
}
