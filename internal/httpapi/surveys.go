package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"prop_survey/core-go/internal/geo"
	"prop_survey/core-go/internal/sqlcgen"
	"prop_survey/core-go/internal/watermark"
)

const (
	maxSurveyFormBytes   = 80 << 20
	maxPhotoBytes        = 10 << 20
	maxSignatureBytes    = 2 << 20
	maxSurveyPhotos      = 6
	watermarkConcurrency = 4
)

type surveyPhotoResponse struct {
	URL          string    `json:"url"`
	OriginalName *string   `json:"original_name,omitempty"`
	Lat          *float64  `json:"lat,omitempty"`
	Lng          *float64  `json:"lng,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
	Position     int32     `json:"position"`
}

type surveyResponse struct {
	ID              string                `json:"id"`
	PropertyID      string                `json:"property_id"`
	EmployeeID      string                `json:"employee_id"`
	RespondentName  string                `json:"respondent_name"`
	RespondentPhone *string               `json:"respondent_phone,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	Lat             float64               `json:"lat"`
	Lng             float64               `json:"lng"`
	AccuracyM       *float64              `json:"accuracy_m,omitempty"`
	SignatureURL    string                `json:"signature_url"`
	Status          string                `json:"status"`
	ReviewNote      *string               `json:"review_note,omitempty"`
	ReviewedBy      *string               `json:"reviewed_by,omitempty"`
	SubmittedAt     time.Time             `json:"submitted_at"`
	ReviewedAt      *time.Time            `json:"reviewed_at,omitempty"`
	Photos          []surveyPhotoResponse `json:"photos,omitempty"`
}

func toSurveyResponse(s sqlcgen.Survey, photos []sqlcgen.SurveyPhoto) surveyResponse {
	resp := surveyResponse{
		ID:              s.ID,
		PropertyID:      s.PropertyID,
		EmployeeID:      s.EmployeeID,
		RespondentName:  s.RespondentName,
		RespondentPhone: s.RespondentPhone,
		Notes:           s.Notes,
		Lat:             s.Lat,
		Lng:             s.Lng,
		AccuracyM:       s.AccuracyM,
		SignatureURL:    s.SignatureURL,
		Status:          s.Status,
		ReviewNote:      s.ReviewNote,
		ReviewedBy:      s.ReviewedBy,
		SubmittedAt:     s.SubmittedAt,
		ReviewedAt:      s.ReviewedAt,
	}
	for _, p := range photos {
		resp.Photos = append(resp.Photos, surveyPhotoResponse{
			URL:          p.URL,
			OriginalName: p.OriginalName,
			Lat:          p.Lat,
			Lng:          p.Lng,
			CapturedAt:   p.CapturedAt,
			Position:     p.Position,
		})
	}
	return resp
}

type surveySubmission struct {
	respondentName  string
	respondentPhone *string
	notes           *string
	fix             geo.Point
	accuracyM       *float64
	signature       []byte
	signatureExt    string
	photos          []*multipart.FileHeader
}

func parseSurveyForm(r *http.Request) (surveySubmission, error) {
	var sub surveySubmission

	if err := r.ParseMultipartForm(maxSurveyFormBytes); err != nil {
		return sub, errors.New("invalid upload form")
	}

	sub.respondentName = strings.TrimSpace(r.FormValue("respondent_name"))
	if sub.respondentName == "" {
		return sub, errors.New("respondent_name is required")
	}
	if v := strings.TrimSpace(r.FormValue("respondent_phone")); v != "" {
		sub.respondentPhone = &v
	}
	if v := strings.TrimSpace(r.FormValue("notes")); v != "" {
		sub.notes = &v
	}

	lat, latErr := strconv.ParseFloat(r.FormValue("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.FormValue("lng"), 64)
	if latErr != nil || lngErr != nil || !geo.ValidPoint(geo.Point{Lat: lat, Lng: lng}) {
		return sub, errors.New("a valid GPS fix (lat, lng) is required")
	}
	sub.fix = geo.Point{Lat: lat, Lng: lng}

	if v := strings.TrimSpace(r.FormValue("accuracy_m")); v != "" {
		acc, err := strconv.ParseFloat(v, 64)
		if err != nil || acc < 0 {
			return sub, errors.New("accuracy_m must be a non-negative number")
		}
		sub.accuracyM = &acc
	}

	sig, mime, err := parseDataURLBinary(r.FormValue("signature"), []string{"image/png", "image/jpeg", "image/webp"}, maxSignatureBytes)
	if err != nil {
		return sub, errors.New("signature must be a base64 image data url")
	}
	sub.signature = sig
	switch mime {
	case "image/jpeg":
		sub.signatureExt = ".jpg"
	case "image/webp":
		sub.signatureExt = ".webp"
	default:
		sub.signatureExt = ".png"
	}

	if r.MultipartForm != nil {
		sub.photos = r.MultipartForm.File["photos"]
	}
	if len(sub.photos) == 0 {
		return sub, errors.New("at least one photo is required")
	}
	if len(sub.photos) > maxSurveyPhotos {
		return sub, errors.New("too many photos")
	}
	return sub, nil
}

func parseDataURLBinary(value string, allowedMimes []string, maxBytes int) ([]byte, string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return nil, "", errors.New("empty data url")
	}
	if !strings.HasPrefix(raw, "data:") {
		return nil, "", errors.New("invalid data url prefix")
	}
	comma := strings.Index(raw, ",")
	if comma <= 5 {
		return nil, "", errors.New("invalid data url payload")
	}
	meta := raw[5:comma]
	payload := raw[comma+1:]
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		return nil, "", errors.New("data url must be base64")
	}
	mime := strings.TrimSpace(meta[:len(meta)-len(";base64")])
	if mime == "" {
		return nil, "", errors.New("missing data url mime type")
	}
	allowed := false
	for _, m := range allowedMimes {
		if strings.EqualFold(m, mime) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", errors.New("unsupported data url mime type")
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errors.New("unable to decode data url")
	}
	if len(decoded) == 0 || len(decoded) > maxBytes {
		return nil, "", errors.New("data url payload out of bounds")
	}
	return decoded, mime, nil
}

func readPhoto(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("unable to open uploaded photo")
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		return nil, errors.New("unable to read uploaded photo")
	}
	if len(raw) == 0 {
		return nil, errors.New("uploaded photo is empty")
	}
	if len(raw) > maxPhotoBytes {
		return nil, errors.New("photo exceeds the size limit")
	}
	return raw, nil
}

func (h *Handler) handleSubmitSurvey(w http.ResponseWriter, r *http.Request) {
	u, ok := authFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}
	if u.Role != roleEmployee {
		h.writeError(w, http.StatusForbidden, "forbidden", "only field employees submit surveys", nil)
		return
	}

	propertyID := chi.URLParam(r, "id")
	if h.surveys == nil {
		h.dbUnavailable(w)
		return
	}

	prop, err := h.surveys.GetProperty(r.Context(), propertyID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "property not found", map[string]any{"id": propertyID})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "property id is not a valid uuid", map[string]any{"id": propertyID})
		default:
			h.log.Error().Err(err).Str("id", propertyID).Msg("get property failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to submit survey", nil)
		}
		return
	}

	if prop.AssignedTo == nil || *prop.AssignedTo != u.ID {
		h.writeError(w, http.StatusForbidden, "forbidden", "property is not assigned to you", map[string]any{"id": propertyID})
		return
	}
	if prop.Status != "assigned" && prop.Status != "rejected" {
		h.writeError(w, http.StatusConflict, "conflict", "property is not open for survey", map[string]any{"status": prop.Status})
		return
	}

	sub, err := parseSurveyForm(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	if h.store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "store_unavailable", "file store not configured", nil)
		return
	}

	now := time.Now().UTC()
	info := watermark.Info{Lat: sub.fix.Lat, Lng: sub.fix.Lng, Taken: now}

	// Watermark all photos before any DB write so a bad image rejects the
	// whole submission.
	marked := make([][]byte, len(sub.photos))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(watermarkConcurrency)
	for i, fh := range sub.photos {
		i, fh := i, fh
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := readPhoto(fh)
			if err != nil {
				return err
			}
			out, err := watermark.Apply(raw, info)
			if err != nil {
				return err
			}
			marked[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, watermark.ErrUndecodable) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "photos must be jpeg, png, or webp", nil)
			return
		}
		h.writeError(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
		return
	}

	// Storage key is minted here so blobs can be written before the survey
	// row exists.
	key := uuid.NewString()

	signatureURL, err := h.store.SaveSignature(r.Context(), key, sub.signatureExt, sub.signature)
	if err != nil {
		h.log.Error().Err(err).Msg("signature store failed")
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to store signature", nil)
		return
	}

	photoURLs := make([]string, len(marked))
	for i, data := range marked {
		url, err := h.store.SavePhoto(r.Context(), key, i+1, data)
		if err != nil {
			h.log.Error().Err(err).Msg("photo store failed")
			h.writeError(w, http.StatusInternalServerError, "store_error", "failed to store photo", nil)
			return
		}
		photoURLs[i] = url
	}

	// A resurvey after rejection replaces the previous submission.
	if _, err := h.surveys.DeleteSurveyForProperty(r.Context(), propertyID); err != nil {
		h.log.Error().Err(err).Str("id", propertyID).Msg("stale survey cleanup failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to submit survey", nil)
		return
	}

	survey, err := h.surveys.InsertSurvey(r.Context(), sqlcgen.InsertSurveyParams{
		PropertyID:      propertyID,
		EmployeeID:      u.ID,
		RespondentName:  sub.respondentName,
		RespondentPhone: sub.respondentPhone,
		Notes:           sub.notes,
		Lat:             sub.fix.Lat,
		Lng:             sub.fix.Lng,
		AccuracyM:       sub.accuracyM,
		SignatureURL:    signatureURL,
	})
	if err != nil {
		h.log.Error().Err(err).Str("id", propertyID).Msg("insert survey failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to submit survey", nil)
		return
	}

	photos := make([]sqlcgen.SurveyPhoto, 0, len(photoURLs))
	for i, url := range photoURLs {
		name := sub.photos[i].Filename
		arg := sqlcgen.InsertSurveyPhotoParams{
			SurveyID:   survey.ID,
			URL:        url,
			Lat:        &sub.fix.Lat,
			Lng:        &sub.fix.Lng,
			CapturedAt: now,
			Position:   int32(i + 1),
		}
		if name != "" {
			arg.OriginalName = &name
		}
		if err := h.surveys.InsertSurveyPhoto(r.Context(), arg); err != nil {
			h.log.Error().Err(err).Str("survey_id", survey.ID).Msg("insert survey photo failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to submit survey", nil)
			return
		}
		photos = append(photos, sqlcgen.SurveyPhoto{
			SurveyID:     survey.ID,
			URL:          url,
			OriginalName: arg.OriginalName,
			Lat:          arg.Lat,
			Lng:          arg.Lng,
			CapturedAt:   now,
			Position:     arg.Position,
		})
	}

	if _, err := h.surveys.SetPropertyStatus(r.Context(), sqlcgen.SetPropertyStatusParams{
		ID:     propertyID,
		Status: "surveyed",
	}); err != nil {
		h.log.Error().Err(err).Str("id", propertyID).Msg("property status update failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to submit survey", nil)
		return
	}

	h.metrics.IncSurveySubmitted()
	h.metrics.AddPhotosWatermarked(len(photos))

	h.writeJSON(w, http.StatusCreated, toSurveyResponse(survey, photos))
}

func (h *Handler) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	if h.surveys == nil {
		h.dbUnavailable(w)
		return
	}

	status := optionalQuery(r, "status")
	if status != nil && *status != "submitted" && *status != "approved" && *status != "rejected" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "unknown survey status", map[string]any{"status": *status})
		return
	}

	rows, err := h.surveys.ListSurveys(r.Context(), sqlcgen.ListSurveysParams{
		Status:  status,
		BatchID: optionalQuery(r, "batch_id"),
	})
	if err != nil {
		if isInvalidUUID(err) {
			h.writeError(w, http.StatusBadRequest, "invalid_id", "batch id is not a valid uuid", nil)
			return
		}
		h.log.Error().Err(err).Msg("list surveys failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list surveys", nil)
		return
	}

	resp := make([]surveyResponse, 0, len(rows))
	for _, s := range rows {
		resp = append(resp, toSurveyResponse(s, nil))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.surveys == nil {
		h.dbUnavailable(w)
		return
	}

	survey, err := h.surveys.GetSurvey(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			h.writeError(w, http.StatusNotFound, "not_found", "survey not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "survey id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("get survey failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch survey", nil)
		}
		return
	}

	photos, err := h.surveys.ListSurveyPhotos(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("list survey photos failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to fetch survey", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, toSurveyResponse(survey, photos))
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

func (h *Handler) handleReviewSurvey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req reviewRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}

	var status string
	switch req.Decision {
	case "approve":
		status = "approved"
	case "reject":
		status = "rejected"
		if strings.TrimSpace(req.Note) == "" {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "a note is required when rejecting", nil)
			return
		}
	default:
		h.writeError(w, http.StatusBadRequest, "validation_failed", "decision must be approve or reject", nil)
		return
	}

	u, ok := authFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}

	if h.surveys == nil {
		h.dbUnavailable(w)
		return
	}

	var note *string
	if v := strings.TrimSpace(req.Note); v != "" {
		note = &v
	}

	survey, err := h.surveys.ReviewSurvey(r.Context(), sqlcgen.ReviewSurveyParams{
		ID:         id,
		Status:     status,
		ReviewNote: note,
		ReviewedBy: u.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// Missing, or already reviewed.
			if _, gerr := h.surveys.GetSurvey(r.Context(), id); gerr == nil {
				h.writeError(w, http.StatusConflict, "conflict", "survey was already reviewed", map[string]any{"id": id})
				return
			}
			h.writeError(w, http.StatusNotFound, "not_found", "survey not found", map[string]any{"id": id})
		case isInvalidUUID(err):
			h.writeError(w, http.StatusBadRequest, "invalid_id", "survey id is not a valid uuid", map[string]any{"id": id})
		default:
			h.log.Error().Err(err).Str("id", id).Msg("review survey failed")
			h.writeError(w, http.StatusInternalServerError, "db_error", "failed to review survey", nil)
		}
		return
	}

	if _, err := h.surveys.SetPropertyStatus(r.Context(), sqlcgen.SetPropertyStatusParams{
		ID:     survey.PropertyID,
		Status: status,
	}); err != nil {
		h.log.Error().Err(err).Str("property_id", survey.PropertyID).Msg("property status update failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to review survey", nil)
		return
	}

	h.auditAction(r, "survey.review", "survey", id, map[string]any{"decision": req.Decision})
	h.writeJSON(w, http.StatusOK, toSurveyResponse(survey, nil))
}
