package web

// handlers_profiles.go manages saved configuration profiles: snapshots of
// mapping, filters, instruction and report settings keyed to a header set.
// All endpoints answer 503 when no database is configured.

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weMaron/excel-processor/internal/logging"
	"github.com/weMaron/excel-processor/internal/profile"
)

// requireProfiles guards the profile endpoints behind store availability.
func (s *Server) requireProfiles(w http.ResponseWriter, r *http.Request) bool {
	if s.profiles == nil {
		s.respondError(w, r,
			fmt.Errorf("profile store not configured, set DATABASE_URL"),
			http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireProfiles(w, r) {
		return
	}
	profiles, err := s.profiles.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// handleSaveProfile snapshots the current workspace configuration under the
// given name. Passing an existing id overwrites that profile.
func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireProfiles(w, r) {
		return
	}

	var body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, fmt.Errorf("decode profile: %w", err), http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		s.respondError(w, r, fmt.Errorf("profile name is required"), http.StatusBadRequest)
		return
	}

	p, err := s.ws.SnapshotProfile(body.Name)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	p.ID = body.ID

	id, err := s.profiles.Save(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(r.Context()).Info("profile saved", "name", body.Name, "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireProfiles(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.profiles.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleApplyProfile restores a saved profile onto the uploaded sheet. The
// profile's headers must match the sheet's headers exactly.
func (s *Server) handleApplyProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireProfiles(w, r) {
		return
	}

	id := chi.URLParam(r, "id")
	p, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	if err := s.ws.ApplyProfile(p); err != nil {
		s.respondError(w, r, err, http.StatusConflict)
		return
	}

	logging.FromContext(r.Context()).Info("profile applied", "name", p.Name, "id", id)
	writeJSON(w, http.StatusOK, map[string]any{
		"profile": p,
		"filters": s.ws.Rules(),
	})
}

// handleMatchProfile finds the best profile for the uploaded sheet's headers.
func (s *Server) handleMatchProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireProfiles(w, r) {
		return
	}

	headers, err := s.ws.Headers()
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	p, ok := s.matchProfile(r.Context(), headers)
	if !ok {
		s.respondError(w, r, fmt.Errorf("no profile matches the uploaded headers"), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
