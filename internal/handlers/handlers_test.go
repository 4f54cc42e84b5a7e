package handlers

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relief-route-viewer/internal/models"
	"relief-route-viewer/internal/testutil"
	"relief-route-viewer/internal/viewer"
)

const testListPartial = `{{define "assignment_list.html"}}<ul data-solution="{{.Solution}}">{{range .Assignments}}<li class="{{if .Emphasized}}emphasized{{end}}">{{.VehicleID}} {{.DestinationName}}</li>{{end}}</ul>{{end}}`

func setupTestHandler(t *testing.T) (*Handler, *testutil.MockStore) {
	t.Helper()
	store := testutil.NewMockStore()
	base := template.Must(template.New("").Parse(testListPartial))
	return &Handler{
		DB:                store,
		Templates:         &TemplateSet{Base: base, Pages: map[string]string{}},
		Sessions:          NewViewSessionStore(),
		HoverEventsPerSec: 1000,
	}, store
}

func secondSolution() models.Solution {
	return models.Solution{
		Rank:         2,
		FitnessScore: 0.8,
		Assignments: []models.Assignment{
			{VehicleID: "7", RouteRef: "r-d2-b"},
			{VehicleID: "8", DistanceKm: 44},
			{VehicleID: "9", RouteRef: "r-d1-a"},
		},
	}
}

func scenarioRequest() CreateRunRequest {
	return CreateRunRequest{
		Label:     "Flood response",
		Geo:       testutil.ScenarioDataset(),
		Solutions: *testutil.ScenarioSet(testutil.ScenarioSolution(), secondSolution()),
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body interface{}, pathID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func createScenarioRun(t *testing.T, h *Handler) RunCreatedResponse {
	t.Helper()
	w := doJSON(t, h.HandleCreateRun, http.MethodPost, "/api/v1/runs", scenarioRequest(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp RunCreatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestCreateRun(t *testing.T) {
	h, store := setupTestHandler(t)

	resp := createScenarioRun(t, h)

	assert.NotEmpty(t, resp.SessionID)
	assert.True(t, resp.HasData)
	assert.Equal(t, "Flood response", resp.Run.Label)
	assert.Equal(t, 2, resp.Run.DestinationCount)
	assert.Equal(t, 2, resp.Run.SolutionCount)
	assert.Equal(t, 1, store.RunRepo.Count())
	assert.NotNil(t, h.Sessions.Get(resp.SessionID))
}

func TestCreateRunAcceptsNumericIDs(t *testing.T) {
	h, _ := setupTestHandler(t)
	body := `{
		"geo": {
			"origin": {"id": 0, "lat": 19.43, "lng": -99.13, "name": "Depot"},
			"destinations": [{"id": 1, "lat": 19.5, "lng": -99.0, "name": "Ecatepec"}],
			"routesByDestination": [[{"id": 11, "destinationId": 1, "points": [{"lat": 19.43, "lng": -99.13}, {"lat": 19.5, "lng": -99.0}], "distanceMeters": 10000}]]
		},
		"solutions": {"solutions": [{"rank": 1, "assignments": [{"vehicleId": 3, "routeRef": 11, "distanceKm": 10}]}]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleCreateRun(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp RunCreatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, strings.HasPrefix(resp.Run.Label, "Run "))

	session := h.Sessions.Get(resp.SessionID)
	require.NotNil(t, session)
	session.With(func(c *viewer.Controller) error {
		assert.Equal(t, models.Exact, c.Resolved()[0].Confidence)
		return nil
	})
}

func TestCreateRunEmptyData(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := doJSON(t, h.HandleCreateRun, http.MethodPost, "/api/v1/runs", map[string]string{"label": "nothing yet"}, "")

	require.Equal(t, http.StatusCreated, w.Code)
	var resp RunCreatedResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.HasData)
}

func TestCreateRunValidation(t *testing.T) {
	h, store := setupTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.HandleCreateRun(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	bad := scenarioRequest()
	bad.Geo.RoutesByDestination = append(bad.Geo.RoutesByDestination, nil)
	w = doJSON(t, h.HandleCreateRun, http.MethodPost, "/api/v1/runs", bad, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	bad = scenarioRequest()
	bad.Geo.Destinations[0].Lat = 120
	w = doJSON(t, h.HandleCreateRun, http.MethodPost, "/api/v1/runs", bad, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, store.RunRepo.Count())
}

func TestListRuns(t *testing.T) {
	h, _ := setupTestHandler(t)
	createScenarioRun(t, h)
	createScenarioRun(t, h)

	w := doJSON(t, h.HandleListRuns, http.MethodGet, "/api/v1/runs", nil, "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Runs  []models.RunSummary `json:"runs"`
		Total int                 `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Runs, 2)
}

func TestOpenSession(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleOpenSession, http.MethodPost, "/", nil, created.Run.ID)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEqual(t, created.SessionID, resp.SessionID)
	assert.Equal(t, created.Run.ID, resp.RunID)
	assert.Equal(t, 2, h.Sessions.Count())

	w = doJSON(t, h.HandleOpenSession, http.MethodPost, "/", nil, "missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestOpenSessionHTMXRedirects(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("HX-Request", "true")
	req.SetPathValue("id", created.Run.ID)
	w := httptest.NewRecorder()
	h.HandleOpenSession(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("HX-Redirect"), "/sessions/"))
}

func TestDeleteRunClosesSessions(t *testing.T) {
	h, store := setupTestHandler(t)
	created := createScenarioRun(t, h)
	doJSON(t, h.HandleOpenSession, http.MethodPost, "/", nil, created.Run.ID)
	other := createScenarioRun(t, h)

	w := doJSON(t, h.HandleDeleteRun, http.MethodDelete, "/", nil, created.Run.ID)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, store.RunRepo.Count())
	assert.Equal(t, 1, h.Sessions.Count())
	assert.NotNil(t, h.Sessions.Get(other.SessionID))

	w = doJSON(t, h.HandleDeleteRun, http.MethodDelete, "/", nil, created.Run.ID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOverlay(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleGetOverlay, http.MethodGet, "/overlay", nil, created.SessionID)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Solution      int  `json:"solution"`
		SolutionCount int  `json:"solution_count"`
		HasData       bool `json:"has_data"`
		View          struct {
			Markers   []json.RawMessage `json:"markers"`
			Polylines []struct {
				Polyline models.Polyline `json:"polyline"`
			} `json:"polylines"`
		} `json:"view"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 0, resp.Solution)
	assert.Equal(t, 2, resp.SolutionCount)
	assert.True(t, resp.HasData)
	assert.Len(t, resp.View.Markers, 2)
	require.Len(t, resp.View.Polylines, 2)
	assert.Equal(t, models.Ref("r-d2-a"), resp.View.Polylines[1].Polyline.RouteID)
}

func TestGetOverlayGeoJSON(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleGetOverlay, http.MethodGet, "/overlay?format=geojson", nil, created.SessionID)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))
	var fc struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Len(t, fc.Features, 5)
}

func TestUnknownSession(t *testing.T) {
	h, _ := setupTestHandler(t)

	w := doJSON(t, h.HandleGetOverlay, http.MethodGet, "/overlay", nil, "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, h.HandleSetHighlight, http.MethodPost, "/highlight", map[string]int{"index": 0}, "nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSelectSolutionResetsHighlight(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleSetHighlight, http.MethodPost, "/highlight", map[string]int{"index": 1}, created.SessionID)
	require.Equal(t, http.StatusOK, w.Code)
	var state StateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, models.Highlighted(1), state.Highlight)

	w = doJSON(t, h.HandleSelectSolution, http.MethodPost, "/solution", map[string]int{"index": 1}, created.SessionID)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, 1, state.Solution)
	assert.Equal(t, models.NoHighlight(), state.Highlight)
}

func TestSelectSolutionErrors(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleSelectSolution, http.MethodPost, "/solution", map[string]int{"index": 5}, created.SessionID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Message, "out of range")

	w = doJSON(t, h.HandleSelectSolution, http.MethodPost, "/solution", map[string]string{}, created.SessionID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "index is required", decodeError(t, w).Message)
}

func TestSetHighlightOutOfRange(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleSetHighlight, http.MethodPost, "/highlight", map[string]int{"index": 2}, created.SessionID)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)
}

func TestHighlightFormAndHTMXList(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	form := url.Values{"index": {"0"}}
	req := httptest.NewRequest(http.MethodPost, "/highlight", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	req.SetPathValue("id", created.SessionID)
	w := httptest.NewRecorder()

	h.HandleSetHighlight(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `<li class="emphasized">1 Ecatepec</li>`)
	assert.Contains(t, w.Body.String(), `<li class="">2 Tlalpan</li>`)
}

func TestClearHighlight(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)
	doJSON(t, h.HandleSetHighlight, http.MethodPost, "/highlight", map[string]int{"index": 0}, created.SessionID)

	w := doJSON(t, h.HandleClearHighlight, http.MethodDelete, "/highlight", nil, created.SessionID)

	require.Equal(t, http.StatusOK, w.Code)
	var state StateResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.False(t, state.Highlight.Active)
}

func TestGetAssignments(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)
	doJSON(t, h.HandleSelectSolution, http.MethodPost, "/solution", map[string]int{"index": 1}, created.SessionID)

	w := doJSON(t, h.HandleGetAssignments, http.MethodGet, "/assignments", nil, created.SessionID)

	require.Equal(t, http.StatusOK, w.Code)
	var resp AssignmentsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Solution)
	require.Len(t, resp.Solutions, 2)
	assert.True(t, resp.Solutions[1].Active)
	require.Len(t, resp.Assignments, 3)
	assert.Equal(t, models.Unresolved, resp.Assignments[1].Confidence)
	assert.Equal(t, 3, resp.Totals.VehiclesUsed)
}

func TestCloseSession(t *testing.T) {
	h, _ := setupTestHandler(t)
	created := createScenarioRun(t, h)

	w := doJSON(t, h.HandleCloseSession, http.MethodDelete, "/", nil, created.SessionID)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Nil(t, h.Sessions.Get(created.SessionID))
}

func TestHealthCheck(t *testing.T) {
	h, store := setupTestHandler(t)
	createScenarioRun(t, h)

	w := doJSON(t, h.HandleHealthCheck, http.MethodGet, "/api/v1/health", nil, "")
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(1), resp["sessions"])

	store.Healthy = assert.AnError
	w = doJSON(t, h.HandleHealthCheck, http.MethodGet, "/api/v1/health", nil, "")
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp["status"])
}
