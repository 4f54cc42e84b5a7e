package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/database"
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/viewer"
)

// CreateRunRequest is the optimizer output handed to the viewer
type CreateRunRequest struct {
	Label     string             `json:"label"`
	Geo       *models.GeoDataset `json:"geo"`
	Solutions models.SolutionSet `json:"solutions"`
}

// RunCreatedResponse is returned after ingesting a run
type RunCreatedResponse struct {
	Run       models.RunSummary `json:"run"`
	SessionID string            `json:"session_id"`
	HasData   bool              `json:"has_data"`
}

// SessionResponse is returned when opening a session on a stored run
type SessionResponse struct {
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
	HasData   bool   `json:"has_data"`
}

// HandleCreateRun handles POST /api/v1/runs
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.WithError(err).Warn("POST /api/v1/runs: invalid_json")
		h.handleValidationError(w, "Invalid request body")
		return
	}

	if err := validateRun(&req); err != nil {
		log.WithError(err).Warn("POST /api/v1/runs: validation failed")
		h.handleValidationError(w, err.Error())
		return
	}

	run := &models.Run{
		ID:        uuid.NewString(),
		Label:     strings.TrimSpace(req.Label),
		CreatedAt: time.Now(),
		Solutions: req.Solutions,
	}
	if req.Geo != nil {
		run.Geo = *req.Geo
	}
	if run.Label == "" {
		run.Label = "Run " + run.CreatedAt.Format("2006-01-02 15:04")
	}

	saved, err := h.DB.Runs().Create(r.Context(), run)
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	session := h.Sessions.Create(saved)
	hasData := false
	session.With(func(c *viewer.Controller) error {
		hasData = c.HasData()
		return nil
	})

	log.WithFields(logrus.Fields{
		"run":          saved.ID,
		"destinations": len(saved.Geo.Destinations),
		"solutions":    len(saved.Solutions.Solutions),
	}).Info("POST /api/v1/runs: stored run")

	h.writeJSON(w, http.StatusCreated, RunCreatedResponse{
		Run:       database.Summarize(saved),
		SessionID: session.ID,
		HasData:   hasData,
	})
}

// validateRun checks the structural shape of the input. Content problems
// such as unknown route references are left to resolution.
func validateRun(req *CreateRunRequest) error {
	if req.Geo == nil {
		return nil
	}
	if n, m := len(req.Geo.Destinations), len(req.Geo.RoutesByDestination); m > n {
		return fmt.Errorf("routesByDestination has %d entries for %d destinations", m, n)
	}
	for i, d := range req.Geo.Destinations {
		if d.Lat < -90 || d.Lat > 90 || d.Lng < -180 || d.Lng > 180 {
			return fmt.Errorf("destination %d has invalid coordinates", i)
		}
	}
	return nil
}

// HandleListRuns handles GET /api/v1/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.DB.Runs().List(r.Context())
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// HandleOpenSession handles POST /api/v1/runs/{id}/sessions
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.DB.Runs().GetByID(r.Context(), id)
	if h.checkNotFound(err) {
		log.WithField("run", id).Warn("Run not found for session")
		h.handleNotFound(w, "Run not found")
		return
	}
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	session := h.Sessions.Create(run)
	resp := SessionResponse{SessionID: session.ID, RunID: run.ID}
	session.With(func(c *viewer.Controller) error {
		resp.HasData = c.HasData()
		return nil
	})

	if h.isHTMX(r) {
		w.Header().Set("HX-Redirect", "/sessions/"+session.ID)
		w.WriteHeader(http.StatusCreated)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// HandleDeleteRun handles DELETE /api/v1/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := h.DB.Runs().Delete(r.Context(), id)
	if h.checkNotFound(err) {
		h.handleNotFoundHTMX(w, r, "Run not found")
		return
	}
	if err != nil {
		log.WithError(err).WithField("run", id).Error("Failed to delete run")
		h.handleInternalError(w, err)
		return
	}

	closed := h.Sessions.DeleteForRun(id)
	log.WithFields(logrus.Fields{"run": id, "sessions_closed": closed}).Info("Deleted run")

	if h.isHTMX(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
