package http

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"timetracker/internal/auth"
	"timetracker/internal/core"
	"timetracker/internal/editor"
	"timetracker/internal/log"
	"timetracker/internal/middleware/ratelimit"
	"timetracker/internal/middleware/security"
	"timetracker/internal/middleware/trace"
	"timetracker/internal/tracker"
	appweb "timetracker/web"
)

// appMetrics holds application counters exposed on /metrics.
type appMetrics struct {
	entriesSaved   int64
	entriesDeleted int64
	writeFailures  int64
	loginFailures  int64
	uptime         time.Time
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Tracker  *tracker.Service
	Editors  *editor.Manager
	Auth     auth.Provider
	Sessions *auth.Sessions
	// Ready checks the backend for /readyz; nil reports ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
	// RequestsPerMinute bounds writes per client; zero picks the default.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template

	tracker  *tracker.Service
	editors  *editor.Manager
	auth     auth.Provider
	sessions *auth.Sessions
	ready    func(ctx context.Context) error

	logger           *log.Logger
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

var errNoTemplates = errors.New("templates not loaded")

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Tracker == nil || deps.Editors == nil || deps.Auth == nil || deps.Sessions == nil {
		return nil, errors.New("http: tracker, editors, auth and sessions are required")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		tracker:          deps.Tracker,
		editors:          deps.Editors,
		auth:             deps.Auth,
		sessions:         deps.Sessions,
		ready:            deps.Ready,
		logger:           logger,
		securityDetector: security.NewDetector(),
		appMetrics:       appMetrics{uptime: time.Now()},
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: deps.RequestsPerMinute,
		OnlyWrites:        true,
		Logger:            deps.Logger,
	})
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, deps.Logger)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)

	requireUser := auth.RequireUser(s.sessions)
	private := func(h http.HandlerFunc) http.Handler {
		return requireUser(security.NoStore(h))
	}

	mux.Handle("GET /{$}", private(s.handleRoot))
	mux.Handle("POST /logout", private(s.handleLogout))
	mux.Handle("GET /tracker", private(s.handleTracker))
	mux.Handle("GET /ui/month", private(s.handleMonth))
	mux.Handle("POST /entries", private(s.handleSaveEntry))
	mux.Handle("DELETE /entries/{id}", private(s.handleDeleteEntry))
	mux.Handle("GET /export.csv", private(s.handleExport))

	mux.Handle("POST /editor", private(s.handleEditorOpen))
	mux.Handle("POST /editor/{sid}/start", private(s.handleEditorStart))
	mux.Handle("POST /editor/{sid}/stop", private(s.handleEditorStop))
	mux.Handle("GET /editor/{sid}/clock", private(s.handleEditorClock))
	mux.Handle("POST /editor/{sid}/save", private(s.handleEditorSave))
	mux.Handle("POST /editor/{sid}/close", private(s.handleEditorClose))

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(deps.Logger)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(logger, trace.RequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	AlertError(http.StatusTooManyRequests, "Too many requests. Please wait a minute and try again.").Write(w)
}

var templateFuncs = template.FuncMap{
	"duration": core.FormatDuration,
}

// render executes a named template into memory first so a template error
// never leaves a half-written response.
func (s *Server) render(name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errNoTemplates
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeTemplate renders name and writes it with status, logging and
// answering 500 on template errors.
func (s *Server) writeTemplate(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.render(name, data)
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentTemplate).
			ErrorContext(r.Context(), "Template rendering failed", "template", name, log.FieldError, err)
		InternalServerError("Something went wrong rendering the page").Write(w)
		return
	}
	b.BodyHTML(body).Write(w)
}
