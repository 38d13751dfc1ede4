package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"prop_survey/core-go/internal/sqlcgen"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxBulkIDs      = 500
)

type propertyResponse struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	ParcelNo   string    `json:"parcel_no"`
	OwnerName  string    `json:"owner_name"`
	Address    string    `json:"address"`
	Zone       *string   `json:"zone,omitempty"`
	UsageType  *string   `json:"usage_type,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	Status     string    `json:"status"`
	AssignedTo *string   `json:"assigned_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toPropertyResponse(p sqlcgen.Property) propertyResponse {
	return propertyResponse{
		ID:         p.ID,
		BatchID:    p.BatchID,
		ParcelNo:   p.ParcelNo,
		OwnerName:  p.OwnerName,
		Address:    p.Address,
		Zone:       p.Zone,
		UsageType:  p.UsageType,
		Lat:        p.Lat,
		Lng:        p.Lng,
		Status:     p.Status,
		AssignedTo: p.AssignedTo,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

var propertyStatuses = map[string]bool{
	"unassigned": true,
	"assigned":   true,
	"surveyed":   true,
	"approved":   true,
	"rejected":   true,
}

func optionalQuery(r *http.Request, key string) *string {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	return &v
}

func (h *Handler) handleListProperties(w http.ResponseWriter, r *http.Request) {
	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	status := optionalQuery(r, "status")
	if status != nil && !propertyStatuses[*status] {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown property status", map[string]any{"status": *status})
		return
	}

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "page must be a positive integer", nil)
			return
		}
		page = n
	}
	perPage := defaultPageSize
	if v := r.URL.Query().Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "per_page must be a positive integer", nil)
			return
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		perPage = n
	}

	arg := sqlcgen.ListPropertiesPageParams{
		BatchID:    optionalQuery(r, "batch_id"),
		Status:     status,
		AssignedTo: optionalQuery(r, "assigned_to"),
		Search:     optionalQuery(r, "q"),
		Limit:      int32(perPage),
		Offset:     int32((page - 1) * perPage),
	}

	rows, err := h.properties.ListPropertiesPage(r.Context(), arg)
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "filter id is not a valid uuid", nil)
			return
		}
		h.log.Error().Err(err).Msg("list properties failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list properties", nil)
		return
	}

	total, err := h.properties.CountProperties(r.Context(), sqlcgen.CountPropertiesParams{
		BatchID:    arg.BatchID,
		Status:     arg.Status,
		AssignedTo: arg.AssignedTo,
		Search:     arg.Search,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("count properties failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list properties", nil)
		return
	}

	items := make([]propertyResponse, 0, len(rows))
	for _, p := range rows {
		items = append(items, toPropertyResponse(p))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (h *Handler) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	prop, err := h.properties.GetProperty(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "property not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "property id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("get property failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch property", nil)
		}
		return
	}

	resp := map[string]any{"property": toPropertyResponse(prop)}

	survey, err := h.properties.GetSurveyByProperty(r.Context(), id)
	switch {
	case err == nil:
		photos, perr := h.properties.ListSurveyPhotos(r.Context(), survey.ID)
		if perr != nil {
			h.log.Error().Err(perr).Str("survey_id", survey.ID).Msg("list survey photos failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch property", nil)
			return
		}
		resp["survey"] = toSurveyResponse(survey, photos)
	case errors.Is(err, pgx.ErrNoRows):
		// No survey yet.
	default:
		h.log.Error().Err(err).Str("id", id).Msg("survey lookup failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch property", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type bulkAssignRequest struct {
	PropertyIDs []string `json:"property_ids"`
	EmployeeID  string   `json:"employee_id"`
}

func validateBulkIDs(ids []string) error {
	if len(ids) == 0 {
		return errors.New("property_ids must not be empty")
	}
	if len(ids) > maxBulkIDs {
		return errors.New("too many property_ids in one request")
	}
	return nil
}

func (h *Handler) handleAssignProperties(w http.ResponseWriter, r *http.Request) {
	var req bulkAssignRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := validateBulkIDs(req.PropertyIDs); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.EmployeeID) == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "employee_id is required", nil)
		return
	}

	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	emp, err := h.properties.GetUser(r.Context(), req.EmployeeID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "employee not found", map[string]any{"employee_id": req.EmployeeID})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "employee id is not a valid uuid", map[string]any{"employee_id": req.EmployeeID})
		default:
			h.log.Error().Err(err).Msg("employee lookup failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to assign properties", nil)
		}
		return
	}
	if emp.Role != roleEmployee || !emp.Active {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "assignee must be an active employee", map[string]any{"employee_id": req.EmployeeID})
		return
	}

	n, err := h.properties.AssignProperties(r.Context(), sqlcgen.AssignPropertiesParams{
		IDs:        req.PropertyIDs,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "property ids must be valid uuids", nil)
			return
		}
		h.log.Error().Err(err).Msg("assign properties failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to assign properties", nil)
		return
	}

	h.auditAction(r, "property.assign", "user", req.EmployeeID, map[string]any{
		"requested": len(req.PropertyIDs),
		"assigned":  n,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{"assigned": n})
}

type bulkIDsRequest struct {
	PropertyIDs []string `json:"property_ids"`
}

func (h *Handler) handleUnassignProperties(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := validateBulkIDs(req.PropertyIDs); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	n, err := h.properties.UnassignProperties(r.Context(), req.PropertyIDs)
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "property ids must be valid uuids", nil)
			return
		}
		h.log.Error().Err(err).Msg("unassign properties failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to unassign properties", nil)
		return
	}

	h.auditAction(r, "property.unassign", "", "", map[string]any{
		"requested":  len(req.PropertyIDs),
		"unassigned": n,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{"unassigned": n})
}

func (h *Handler) handleDeleteProperties(w http.ResponseWriter, r *http.Request) {
	var req bulkIDsRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	if err := validateBulkIDs(req.PropertyIDs); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	n, err := h.properties.DeleteProperties(r.Context(), req.PropertyIDs)
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "property ids must be valid uuids", nil)
			return
		}
		h.log.Error().Err(err).Msg("delete properties failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to delete properties", nil)
		return
	}

	h.auditAction(r, "property.delete", "", "", map[string]any{
		"requested": len(req.PropertyIDs),
		"deleted":   n,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
