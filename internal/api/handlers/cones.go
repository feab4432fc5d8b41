package handlers

import (
	"cone-tracker-service/internal/api/dto"
	"cone-tracker-service/internal/platform/obs"
	"cone-tracker-service/internal/ports"
	"cone-tracker-service/internal/services"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Largest update body accepted; a coordinate pair is tiny.
const maxUpdateBody = 4 << 10

// ConeHandler exposes marker listing, history and update endpoints.
type ConeHandler struct {
	Repo       ports.ConeRepository
	FinishTime string
	// Time zone for displayed update times; nil means local time.
	Location *time.Location
}

// Index returns what the overview map needs: the countdown target and
// the last known position of every marker.
func (h *ConeHandler) Index(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Repo.ListMarkers(r.Context())
	if err != nil {
		writeStoreError(w, r, "list cones", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.IndexResponse{
		FinishTime: h.FinishTime,
		Cones:      services.BuildMapViews(summaries, h.Location),
	})
}

func (h *ConeHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Repo.ListMarkers(r.Context())
	if err != nil {
		writeStoreError(w, r, "list cones", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ListConesResponse{
		Cones: services.BuildListViews(summaries, h.Location),
	})
}

// Summaries returns the raw per-marker summaries.
func (h *ConeHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Repo.ListMarkers(r.Context())
	if err != nil {
		writeStoreError(w, r, "list cones", err)
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ConeSummariesResponse{Cones: summaries})
}

// Show returns one marker's history; a marker without history is 404.
func (h *ConeHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := coneID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid cone id")
		return
	}

	records, err := h.Repo.Load(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "load cone", err)
		return
	}
	if len(records) == 0 {
		writeError(w, r, http.StatusNotFound, "cone not found")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.ConeHistoryResponse{
		ConeID:    id,
		DisplayID: services.DisplayID(id),
		Records:   records,
	})
}

// Update records a new reported location for a marker. Repeat reports
// from the same address inside the cooldown get 429.
func (h *ConeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := coneID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid cone id")
		return
	}

	var req dto.UpdateConeRequest

	dec := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody))
	defer r.Body.Close()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	lat := strings.TrimSpace(string(req.Lat))
	long := strings.TrimSpace(string(req.Long))
	if lat == "" || long == "" {
		writeError(w, r, http.StatusBadRequest, "lat and long are required")
		return
	}

	ip := clientIP(r)
	log.Printf("req_id=%s update cone id=%d ip=%s", obs.RequestID(r.Context()), id, ip)

	accepted, err := h.Repo.Update(r.Context(), id, lat, long, ip)
	if err != nil {
		writeStoreError(w, r, "update cone", err)
		return
	}
	if !accepted {
		writeError(w, r, http.StatusTooManyRequests, "Too many updates from this IP recently")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.UpdateConeResponse{Success: true})
}
