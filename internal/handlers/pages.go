package handlers

import (
	"net/http"

	"relief-route-viewer/internal/viewer"
)

// HandleIndexPage handles GET /
func (h *Handler) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	runs, err := h.DB.Runs().List(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := map[string]interface{}{
		"Title":      "Optimization Runs",
		"ActivePage": "home",
		"Runs":       runs,
	}

	h.renderTemplate(w, "index.html", data)
}

// HandleViewerPage handles GET /sessions/{id}
func (h *Handler) HandleViewerPage(w http.ResponseWriter, r *http.Request) {
	session := h.Sessions.Get(r.PathValue("id"))
	if session == nil {
		http.NotFound(w, r)
		return
	}

	var list AssignmentsResponse
	session.With(func(c *viewer.Controller) error {
		list = assignmentsResponse(session, c)
		return nil
	})

	data := map[string]interface{}{
		"Title":      session.RunLabel,
		"ActivePage": "viewer",
		"Session":    session,
		"List":       list,
	}

	h.renderTemplate(w, "viewer.html", data)
}
