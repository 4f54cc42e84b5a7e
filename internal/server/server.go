package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"relief-route-viewer/internal/database"
	"relief-route-viewer/internal/handlers"
	"relief-route-viewer/internal/metrics"
	"relief-route-viewer/internal/overlay"
	"relief-route-viewer/internal/resolve"
	"relief-route-viewer/internal/sqlite"
	"relief-route-viewer/internal/viewer"
	"relief-route-viewer/web"
)

var log = logrus.WithField("component", "server")

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         database.DataStore
	listener   net.Listener
	addr       string
}

// Config holds server configuration
type Config struct {
	Addr              string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	DBPath            string // sqlite file, or ":memory:"
	Style             overlay.Style
	ToleranceKm       float64
	HoverEventsPerSec float64
}

// New creates and initializes a new server (does not start it)
func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		path, err := database.GetDefaultDBPath()
		if err != nil {
			return nil, err
		}
		cfg.DBPath = path
	}
	if cfg.ToleranceKm <= 0 {
		cfg.ToleranceKm = resolve.DefaultToleranceKm
	}

	log.Info("Initializing run store...")
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize run store: %w", err)
	}

	log.Info("Loading templates...")
	templates, err := loadTemplates(web.Templates)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	metrics.Register()

	handler := &handlers.Handler{
		DB:        db,
		Templates: templates,
		Sessions: handlers.NewViewSessionStore(
			viewer.WithStyle(cfg.Style),
			viewer.WithToleranceKm(cfg.ToleranceKm),
		),
		HoverEventsPerSec: cfg.HoverEventsPerSec,
	}

	mux, err := setupRoutes(handler, web.Static)
	if err != nil {
		db.Close()
		return nil, err
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.WithField("addr", actualAddr).Info("Starting server")

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Server error")
		}
	}()

	return actualAddr, nil
}

// Handler returns the root HTTP handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// Template helper functions
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"add": func(a, b int) int {
			return a + b
		},
		"toJSON": func(v interface{}) string {
			b, err := json.Marshal(v)
			if err != nil {
				return "{}"
			}
			return string(b)
		},
		"formatKm": func(km float64) string {
			return strconv.FormatFloat(km, 'f', 1, 64) + " km"
		},
		"formatKg": func(kg float64) string {
			return strconv.FormatFloat(kg, 'f', 0, 64) + " kg"
		},
		"formatLiters": func(l float64) string {
			return strconv.FormatFloat(l, 'f', 1, 64) + " L"
		},
		"formatScore": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 3, 64)
		},
	}
}

// loadTemplates loads all templates from the embedded filesystem
func loadTemplates(templatesFS fs.FS) (*handlers.TemplateSet, error) {
	funcs := templateFuncs()
	base := template.New("").Funcs(funcs)

	layoutContent, err := fs.ReadFile(templatesFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}
	_, err = base.New("layout.html").Parse(string(layoutContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	partialFiles, err := fs.Glob(templatesFS, "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, file := range partialFiles {
		content, err := fs.ReadFile(templatesFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", file, err)
		}
		name := file[len("templates/partials/"):]
		_, err = base.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", file, err)
		}
	}

	// Page templates stay as strings; each render parses one into a clone
	pages := make(map[string]string)
	pageFiles := []string{"index.html", "viewer.html"}
	for _, name := range pageFiles {
		content, err := fs.ReadFile(templatesFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", name, err)
		}
		pages[name] = string(content)
	}

	return &handlers.TemplateSet{
		Base:  base,
		Pages: pages,
		Funcs: funcs,
	}, nil
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler, staticFS fs.FS) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	staticSubFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-filesystem: %w", err)
	}
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSubFS))))

	mux.HandleFunc("GET /api/v1/health", handler.HandleHealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/open-url", handleOpenURL)

	mux.HandleFunc("GET /api/v1/runs", handler.HandleListRuns)
	mux.HandleFunc("POST /api/v1/runs", handler.HandleCreateRun)
	mux.HandleFunc("DELETE /api/v1/runs/{id}", handler.HandleDeleteRun)
	mux.HandleFunc("POST /api/v1/runs/{id}/sessions", handler.HandleOpenSession)

	mux.HandleFunc("DELETE /api/v1/sessions/{id}", handler.HandleCloseSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}/overlay", handler.HandleGetOverlay)
	mux.HandleFunc("GET /api/v1/sessions/{id}/assignments", handler.HandleGetAssignments)
	mux.HandleFunc("POST /api/v1/sessions/{id}/solution", handler.HandleSelectSolution)
	mux.HandleFunc("POST /api/v1/sessions/{id}/highlight", handler.HandleSetHighlight)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}/highlight", handler.HandleClearHighlight)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stream", handler.HandleStream)

	// Page routes
	mux.HandleFunc("GET /{$}", handler.HandleIndexPage)
	mux.HandleFunc("GET /sessions/{id}", handler.HandleViewerPage)

	return mux, nil
}

// handleOpenURL opens a URL in the system's default browser
func handleOpenURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	// Only allow http/https URLs
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		http.Error(w, "Only HTTP/HTTPS URLs are allowed", http.StatusBadRequest)
		return
	}

	if err := OpenBrowser(req.URL); err != nil {
		log.WithError(err).Warn("Failed to open URL")
		http.Error(w, "Failed to open URL", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// OpenBrowser opens url in the system's default browser
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default: // linux, freebsd, etc.
		cmd = exec.Command("xdg-open", url)
	}

	return cmd.Start()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(lrw.statusCode)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

		log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   lrw.statusCode,
			"duration": duration,
		}).Debug("Request handled")
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket stream take over the connection
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if handlers.AllowedOrigin(origin) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, HX-Request, HX-Target, HX-Current-URL")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
