package httpapi

import (
	"net/http"
	"strconv"

	"prop_survey/core-go/internal/geo"
	"prop_survey/core-go/internal/sqlcgen"
)

type assignmentItem struct {
	propertyResponse
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// locatedProperty adapts a property row to geo.Located.
type locatedProperty struct {
	prop sqlcgen.Property
}

func (l locatedProperty) Location() (geo.Point, bool) {
	if l.prop.Lat == nil || l.prop.Lng == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *l.prop.Lat, Lng: *l.prop.Lng}, true
}

// handleListAssignments lists the caller's open assignments. With a GPS fix
// (?lat=&lng=) the list comes back nearest-first with distance_m per item;
// without one it stays in recency order.
func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	u, ok := authFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		return
	}

	latStr := r.URL.Query().Get("lat")
	lngStr := r.URL.Query().Get("lng")
	if (latStr == "") != (lngStr == "") {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "lat and lng must be provided together", nil)
		return
	}

	var origin *geo.Point
	if latStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil || !geo.ValidPoint(geo.Point{Lat: lat, Lng: lng}) {
			h.writeError(w, http.StatusBadRequest, "validation_failed", "lat/lng are not valid coordinates", nil)
			return
		}
		origin = &geo.Point{Lat: lat, Lng: lng}
	}

	if h.properties == nil {
		h.dbUnavailable(w)
		return
	}

	rows, err := h.properties.ListAssignedProperties(r.Context(), u.ID)
	if err != nil {
		h.log.Error().Err(err).Str("employee_id", u.ID).Msg("list assignments failed")
		h.writeError(w, http.StatusInternalServerError, "db_error", "failed to list assignments", nil)
		return
	}

	items := make([]assignmentItem, 0, len(rows))
	if origin == nil {
		for _, p := range rows {
			items = append(items, assignmentItem{propertyResponse: toPropertyResponse(p)})
		}
		h.writeJSON(w, http.StatusOK, items)
		return
	}

	located := make([]locatedProperty, len(rows))
	for i, p := range rows {
		located[i] = locatedProperty{prop: p}
	}
	dists := geo.SortNearest(*origin, located)

	for i, l := range located {
		item := assignmentItem{propertyResponse: toPropertyResponse(l.prop)}
		if dists[i] >= 0 {
			d := dists[i]
			item.DistanceM = &d
		}
		items = append(items, item)
	}
	h.writeJSON(w, http.StatusOK, items)
}
