package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/highlight"
	"relief-route-viewer/internal/mapexport"
	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/viewer"
)

// OverlayResponse is the decorated overlay of the active solution
type OverlayResponse struct {
	SessionID     string         `json:"session_id"`
	Solution      int            `json:"solution"`
	SolutionCount int            `json:"solution_count"`
	HasData       bool           `json:"has_data"`
	View          highlight.View `json:"view"`
	Malformed     []int          `json:"malformed,omitempty"`
}

// SolutionTab describes one selectable solution
type SolutionTab struct {
	Index        int     `json:"index"`
	Rank         int     `json:"rank"`
	FitnessScore float64 `json:"fitness_score"`
	Active       bool    `json:"active"`
}

// AssignmentsResponse is the assignment list of the active solution
type AssignmentsResponse struct {
	SessionID   string                 `json:"session_id"`
	Solution    int                    `json:"solution"`
	Solutions   []SolutionTab          `json:"solutions"`
	HasData     bool                   `json:"has_data"`
	Highlight   models.HighlightState  `json:"highlight"`
	Assignments []viewer.ListEntry     `json:"assignments"`
	Summary     models.SolutionSummary `json:"summary"`
	Totals      models.SolutionSummary `json:"totals"`
}

// StateResponse reports the active solution and highlight after a change
type StateResponse struct {
	Solution  int                   `json:"solution"`
	Highlight models.HighlightState `json:"highlight"`
}

// IndexRequest selects a solution or an assignment by index
type IndexRequest struct {
	Index *int `json:"index"`
}

// session looks up the session named in the path, writing a 404 when absent
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *ViewSession {
	id := r.PathValue("id")
	session := h.Sessions.Get(id)
	if session == nil {
		log.WithField("session", id).Warn("Session not found")
		h.handleNotFoundHTMX(w, r, "Session not found")
	}
	return session
}

// parseIndex reads the index from a JSON body or, for htmx, form data
func parseIndex(r *http.Request) (int, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.Contains(contentType, "application/x-www-form-urlencoded") || strings.Contains(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return 0, fmt.Errorf("invalid form data")
		}
		value := r.FormValue("index")
		if value == "" {
			return 0, fmt.Errorf("index is required")
		}
		i, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("index must be an integer")
		}
		return i, nil
	}

	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return 0, fmt.Errorf("invalid request body")
	}
	if req.Index == nil {
		return 0, fmt.Errorf("index is required")
	}
	return *req.Index, nil
}

func solutionTabs(c *viewer.Controller) []SolutionTab {
	tabs := make([]SolutionTab, 0, c.SolutionCount())
	for i, s := range c.Solutions() {
		tabs = append(tabs, SolutionTab{
			Index:        i,
			Rank:         s.Rank,
			FitnessScore: s.FitnessScore,
			Active:       i == c.ActiveIndex(),
		})
	}
	return tabs
}

func assignmentsResponse(session *ViewSession, c *viewer.Controller) AssignmentsResponse {
	resp := AssignmentsResponse{
		SessionID:   session.ID,
		Solution:    c.ActiveIndex(),
		Solutions:   solutionTabs(c),
		HasData:     c.HasData(),
		Highlight:   c.Highlight(),
		Assignments: c.List(),
	}
	if s := c.ActiveSolution(); s != nil {
		resp.Summary = s.Summary
		resp.Totals = s.Totals()
	}
	return resp
}

// respondList answers with the list partial for htmx, or JSON otherwise
func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, session *ViewSession, state func(*viewer.Controller) interface{}) {
	htmx := h.isHTMX(r)
	var body interface{}
	session.With(func(c *viewer.Controller) error {
		if htmx {
			body = assignmentsResponse(session, c)
		} else {
			body = state(c)
		}
		return nil
	})

	if htmx {
		h.renderTemplate(w, "assignment_list.html", body)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

// HandleGetOverlay handles GET /api/v1/sessions/{id}/overlay
func (h *Handler) HandleGetOverlay(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	var resp OverlayResponse
	session.With(func(c *viewer.Controller) error {
		resp = OverlayResponse{
			SessionID:     session.ID,
			Solution:      c.ActiveIndex(),
			SolutionCount: c.SolutionCount(),
			HasData:       c.HasData(),
			View:          c.View(),
			Malformed:     c.Overlay().Malformed,
		}
		return nil
	})

	if r.URL.Query().Get("format") == "geojson" {
		data, err := json.Marshal(mapexport.FeatureCollection(resp.View))
		if err != nil {
			h.handleInternalError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleGetAssignments handles GET /api/v1/sessions/{id}/assignments
func (h *Handler) HandleGetAssignments(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	h.respondList(w, r, session, func(c *viewer.Controller) interface{} {
		return assignmentsResponse(session, c)
	})
}

// HandleSelectSolution handles POST /api/v1/sessions/{id}/solution
func (h *Handler) HandleSelectSolution(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	index, err := parseIndex(r)
	if err != nil {
		h.handleValidationErrorHTMX(w, r, err.Error())
		return
	}

	err = session.With(func(c *viewer.Controller) error {
		return c.SelectSolution(index)
	})
	if errors.Is(err, viewer.ErrSolutionOutOfRange) {
		log.WithFields(logrus.Fields{"session": session.ID, "index": index}).Warn("Solution index out of range")
		h.handleValidationErrorHTMX(w, r, err.Error())
		return
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	log.WithFields(logrus.Fields{"session": session.ID, "solution": index}).Info("Selected solution")
	h.respondList(w, r, session, stateResponse)
}

// HandleSetHighlight handles POST /api/v1/sessions/{id}/highlight
func (h *Handler) HandleSetHighlight(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	index, err := parseIndex(r)
	if err != nil {
		h.handleValidationErrorHTMX(w, r, err.Error())
		return
	}

	err = session.With(func(c *viewer.Controller) error {
		return c.SetHighlight(index)
	})
	if errors.Is(err, highlight.ErrIndexOutOfRange) {
		h.handleValidationErrorHTMX(w, r, err.Error())
		return
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.respondList(w, r, session, stateResponse)
}

// HandleClearHighlight handles DELETE /api/v1/sessions/{id}/highlight
func (h *Handler) HandleClearHighlight(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}

	session.With(func(c *viewer.Controller) error {
		c.ClearHighlight()
		return nil
	})

	h.respondList(w, r, session, stateResponse)
}

// HandleCloseSession handles DELETE /api/v1/sessions/{id}
func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	if session == nil {
		return
	}
	h.Sessions.Delete(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func stateResponse(c *viewer.Controller) interface{} {
	return StateResponse{Solution: c.ActiveIndex(), Highlight: c.Highlight()}
}
