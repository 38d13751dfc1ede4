package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"prop_survey/core-go/internal/sqlcgen"
	"prop_survey/core-go/internal/xlsio"
)

const maxBatchUploadBytes = 20 << 20

var errWorkbookTooLarge = errors.New("workbook exceeds the upload size limit")

type batchResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	SourceFile    string     `json:"source_file"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	PropertyCount int64      `json:"property_count"`
	SurveyedCount int64      `json:"surveyed_count"`
}

func toBatchResponse(b sqlcgen.Batch) batchResponse {
	return batchResponse{
		ID:            b.ID,
		Name:          b.Name,
		SourceFile:    b.SourceFile,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
		ArchivedAt:    b.ArchivedAt,
		PropertyCount: b.PropertyCount,
		SurveyedCount: b.SurveyedCount,
	}
}

func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	if h.batches == nil {
		h.dbUnavailable(w)
		return
	}

	rows, err := h.batches.ListBatches(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list batches failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list batches", nil)
		return
	}

	resp := make([]batchResponse, 0, len(rows))
	for _, b := range rows {
		resp = append(resp, toBatchResponse(b))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	data, fileName, err := parseWorkbookUpload(r)
	if err != nil {
		if errors.Is(err, errWorkbookTooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error(), nil)
			return
		}
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}

	rows, err := xlsio.ParseWorkbook(fileName, data)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_workbook", err.Error(), nil)
		return
	}
	props, skipped, err := xlsio.ParseProperties(rows)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_workbook", err.Error(), nil)
		return
	}
	if len(props) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_workbook", "no importable property rows found", map[string]any{"skipped": skipped})
		return
	}

	if h.batches == nil {
		h.dbUnavailable(w)
		return
	}

	var uploadedBy *string
	if u, ok := authFromContext(r.Context()); ok {
		uploadedBy = &u.ID
	}

	batch, err := h.batches.CreateBatch(r.Context(), sqlcgen.CreateBatchParams{
		Name:       name,
		SourceFile: fileName,
		UploadedBy: uploadedBy,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("create batch failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to create batch", nil)
		return
	}

	imported := 0
	for _, p := range props {
		if _, err := h.batches.InsertProperty(r.Context(), sqlcgen.InsertPropertyParams{
			BatchID:   batch.ID,
			ParcelNo:  p.ParcelNo,
			OwnerName: p.OwnerName,
			Address:   p.Address,
			Zone:      p.Zone,
			UsageType: p.UsageType,
			Lat:       p.Lat,
			Lng:       p.Lng,
		}); err != nil {
			h.log.Warn().Err(err).Str("batch_id", batch.ID).Str("parcel_no", p.ParcelNo).Msg("property insert skipped")
			skipped++
			continue
		}
		imported++
	}

	h.auditAction(r, "batch.upload", "batch", batch.ID, map[string]any{
		"file":     fileName,
		"imported": imported,
		"skipped":  skipped,
	})

	batch.PropertyCount = int64(imported)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"batch":    toBatchResponse(batch),
		"imported": imported,
		"skipped":  skipped,
	})
}

func parseWorkbookUpload(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxBatchUploadBytes + (2 << 20)); err != nil {
		return nil, "", errors.New("invalid upload form")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", errors.New("a workbook file is required")
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxBatchUploadBytes+1))
	if err != nil {
		return nil, "", errors.New("unable to read uploaded file")
	}
	if len(raw) == 0 {
		return nil, "", errors.New("uploaded file is empty")
	}
	if len(raw) > maxBatchUploadBytes {
		return nil, "", errWorkbookTooLarge
	}

	fileName := strings.TrimSpace(header.Filename)
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".xlsx" && ext != ".xls" {
		return nil, "", errors.New("workbook must be .xlsx or .xls")
	}
	return raw, fileName, nil
}

func (h *Handler) handleArchiveBatch(w http.ResponseWriter, r *http.Request) {
	h.setBatchStatus(w, r, "archived", "batch.archive")
}

func (h *Handler) handleUnarchiveBatch(w http.ResponseWriter, r *http.Request) {
	h.setBatchStatus(w, r, "active", "batch.unarchive")
}

func (h *Handler) setBatchStatus(w http.ResponseWriter, r *http.Request, status, action string) {
	id := chi.URLParam(r, "id")
	if h.batches == nil {
		h.dbUnavailable(w)
		return
	}

	batch, err := h.batches.SetBatchStatus(r.Context(), sqlcgen.SetBatchStatusParams{ID: id, Status: status})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "batch not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "batch id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("batch status update failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to update batch", nil)
		}
		return
	}

	h.auditAction(r, action, "batch", id, nil)
	h.writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.batches == nil {
		h.dbUnavailable(w)
		return
	}

	active, err := h.batches.CountActiveExportsForBatch(r.Context(), id)
	if err != nil && !isInvalidUUID(err) {
		h.log.Error().Err(err).Str("id", id).Msg("export check failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to delete batch", nil)
		return
	}
	if active > 0 {
		h.writeError(w, http.StatusConflict, "conflict", "an export for this batch is still running", map[string]any{"id": id})
		return
	}

	n, err := h.batches.DeleteBatch(r.Context(), id)
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "batch id is not a valid uuid", map[string]any{"id": id})
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("delete batch failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to delete batch", nil)
		return
	}
	if n == 0 {
		h.writeError(w, http.StatusNotFound, "not_found", "batch not found", map[string]any{"id": id})
		return
	}

	h.auditAction(r, "batch.delete", "batch", id, nil)
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
