package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/docdiag/pkg/config"
	"github.com/matzehuels/docdiag/pkg/errors"
	"github.com/matzehuels/docdiag/pkg/observability"
	"github.com/matzehuels/docdiag/pkg/pipeline"
)

// Options configures a Server.
type Options struct {
	// Build describes the project; it is passed to every rebuild.
	Build  pipeline.Options
	Runner *pipeline.Runner
	Logger *log.Logger
}

// Server serves a project's output and keeps it up to date.
type Server struct {
	cfg    *config.Config
	opts   pipeline.Options
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router

	// build serializes rebuilds.
	build sync.Mutex

	mu       sync.RWMutex
	building bool
	builds   int
	last     *pipeline.Result
	lastErr  error
	lastAt   time.Time
}

// New creates a server. The project configuration is read once to find
// the source and output directories.
func New(opts Options) (*Server, error) {
	cfg, err := opts.Build.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Runner == nil {
		opts.Runner = pipeline.NewRunner(nil, nil, opts.Logger)
	}
	s := &Server{
		cfg:    cfg,
		opts:   opts.Build,
		runner: opts.Runner,
		logger: opts.Logger,
	}
	s.opts.Config = cfg
	s.router = s.routes()
	return s, nil
}

// Config returns the project configuration.
func (s *Server) Config() *config.Config {
	return s.cfg
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(observe)

	r.Route("/_docdiag", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/rebuild", s.handleRebuild)
	})
	r.Handle("/*", hideDotFiles(http.FileServer(http.Dir(s.cfg.Output))))
	return r
}

// Rebuild builds the project. Concurrent calls run one after another.
func (s *Server) Rebuild(ctx context.Context) (*pipeline.Result, error) {
	s.build.Lock()
	defer s.build.Unlock()

	s.mu.Lock()
	s.building = true
	s.mu.Unlock()

	res, err := s.runner.Build(ctx, s.opts)

	s.mu.Lock()
	s.building = false
	s.builds++
	s.last, s.lastErr, s.lastAt = res, err, time.Now()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("build failed", "err", errors.UserMessage(err))
	}
	return res, err
}

// Watch rebuilds the project whenever a source file changes, until ctx
// is done.
func (s *Server) Watch(ctx context.Context) error {
	w, err := NewWatcher(s.cfg.Source, s.cfg.Server.Debounce, s.logger, NotHidden, NotUnder(s.cfg.Output))
	if err != nil {
		return err
	}
	defer w.Close()

	return w.Run(ctx, func(changes []Change) {
		for _, c := range changes {
			s.logger.Debug("file changed", "path", c.Path, "op", c.Op)
		}
		s.logger.Info("rebuilding", "changes", len(changes))
		_, _ = s.Rebuild(ctx)
	})
}

// ListenAndServe builds the project, then serves it and watches for
// changes until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if _, err := s.Rebuild(ctx); err != nil && errors.Is(err, errors.ErrCodeInvalidConfig) {
		return err
	}

	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- s.Watch(ctx) }()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()
	s.logger.Info("serving", "addr", "http://"+srv.Addr, "output", s.cfg.Output)

	select {
	case <-ctx.Done():
	case err := <-watchErr:
		if err != nil {
			_ = srv.Close()
			return err
		}
		<-ctx.Done()
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.ErrCodeInternal, err, "serve %s", srv.Addr)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// =============================================================================
// Handlers
// =============================================================================

// Status is the JSON body of the status and rebuild endpoints.
type Status struct {
	Builds   int          `json:"builds"`
	Building bool         `json:"building"`
	Last     *BuildStatus `json:"last,omitempty"`
	Error    *ErrorStatus `json:"error,omitempty"`
}

// BuildStatus describes a finished build.
type BuildStatus struct {
	ID         string    `json:"id"`
	Builder    string    `json:"builder"`
	Documents  int       `json:"documents"`
	Diagrams   int       `json:"diagrams"`
	Rendered   int       `json:"rendered"`
	Cached     int       `json:"cached"`
	Failed     int       `json:"failed"`
	Warnings   int       `json:"warnings"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// ErrorStatus describes a failed build.
type ErrorStatus struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Status returns the state of the last build.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Builds: s.builds, Building: s.building}
	if s.lastErr != nil {
		st.Error = &ErrorStatus{Code: string(errors.GetCode(s.lastErr)), Message: errors.UserMessage(s.lastErr)}
	} else if s.last != nil {
		st.Last = &BuildStatus{
			ID:         s.last.BuildID,
			Builder:    s.last.Builder,
			Documents:  s.last.Documents,
			Diagrams:   s.last.Diagrams,
			Rendered:   s.last.Rendered,
			Cached:     s.last.Cached,
			Failed:     s.last.Failed,
			Warnings:   s.last.Warnings,
			DurationMS: s.last.Duration.Milliseconds(),
			FinishedAt: s.lastAt.UTC(),
		}
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	if _, err := s.Rebuild(r.Context()); err != nil {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, s.Status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// hideDotFiles answers 404 for paths with a segment starting with ".",
// which keeps the build cache private.
func hideDotFiles(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, part := range strings.Split(r.URL.Path, "/") {
			if strings.HasPrefix(part, ".") {
				http.NotFound(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// observe reports requests to the HTTP hooks.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, time.Since(start))
	})
}
