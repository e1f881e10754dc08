package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/geofence"
	"github.com/dukerupert/questtracker/internal/model"
)

type LocationHandler struct {
	geo    *geofence.Service
	logger *slog.Logger
}

func NewLocationHandler(geo *geofence.Service, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{geo: geo, logger: logger}
}

// Geofences handles GET /api/geofences.
func (h *LocationHandler) Geofences(w http.ResponseWriter, r *http.Request) {
	fences, err := h.geo.Geofences(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list geofences")
		return
	}
	writeJSON(w, http.StatusOK, fences)
}

// CreateGeofence handles POST /api/geofences.
func (h *LocationHandler) CreateGeofence(w http.ResponseWriter, r *http.Request) {
	var g model.Geofence
	if !decodeJSON(w, r, &g) {
		return
	}
	created, err := h.geo.CreateGeofence(r.Context(), auth.FamilyID(r.Context()), g)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create geofence")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateGeofence handles PUT /api/geofences/{id}.
func (h *LocationHandler) UpdateGeofence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var g model.Geofence
	if !decodeJSON(w, r, &g) {
		return
	}
	g.ID = id
	updated, err := h.geo.UpdateGeofence(r.Context(), auth.FamilyID(r.Context()), g)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update geofence")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteGeofence handles DELETE /api/geofences/{id}.
func (h *LocationHandler) DeleteGeofence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.geo.DeleteGeofence(r.Context(), auth.FamilyID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete geofence")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Report handles POST /api/location from a child's device.
func (h *LocationHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	loc, err := h.geo.ReportLocation(r.Context(), ac.FamilyID, ac.UserID, req.Latitude, req.Longitude, req.Accuracy)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to record location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// Locations handles GET /api/locations.
func (h *LocationHandler) Locations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.geo.FamilyLocations(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list locations")
		return
	}
	writeJSON(w, http.StatusOK, locs)
}

// ChildLocation handles GET /api/children/{id}/location.
func (h *LocationHandler) ChildLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loc, err := h.geo.ChildLocation(r.Context(), auth.FamilyID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// RequestUpdate handles POST /api/children/{id}/location/request.
func (h *LocationHandler) RequestUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.geo.RequestLocation(r.Context(), auth.FamilyID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to request location")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

// History handles GET /api/children/{id}/location/history?limit=.
func (h *LocationHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.geo.History(r.Context(), auth.FamilyID(r.Context()), id, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load location history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
