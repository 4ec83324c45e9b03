// Package server serves a public directory over HTTP, preferring the
// precompressed .gz siblings written by the pipeline.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

const shutdownTimeout = 5 * time.Second

// Server is a static file server for one public directory.
type Server struct {
	root    string
	logger  *slog.Logger
	adapter *ferrors.HTTPErrorAdapter
	metrics http.Handler
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// New builds a server rooted at root.
func New(root string, opts ...Option) *Server {
	s := &Server{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.adapter = ferrors.NewHTTPErrorAdapter(s.logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger, s.adapter))
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/*", s.serveStatic)
	r.Head("/*", s.serveStatic)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving public directory", logfields.Dir(s.root), slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.RuntimeError("http server failed").WithCause(err).WithContext("addr", addr).Build()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + chi.URLParam(r, "*"))
	full := filepath.Join(s.root, filepath.FromSlash(name))

	fi, err := os.Stat(full)
	if err != nil || fi.IsDir() {
		s.adapter.WriteErrorResponse(w, r, ferrors.NotFoundError("file not found").WithContext("path", name).Build())
		return
	}

	if ctype := mime.TypeByExtension(path.Ext(name)); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	w.Header().Add("Vary", "Accept-Encoding")

	if acceptsGzip(r) {
		if gz, gzi, ok := openFile(full + ".gz"); ok {
			defer func() { _ = gz.Close() }()
			w.Header().Set("Content-Encoding", "gzip")
			http.ServeContent(w, r, name, gzi.ModTime(), gz)
			return
		}
	}

	f, _, ok := openFile(full)
	if !ok {
		s.adapter.WriteErrorResponse(w, r, ferrors.NotFoundError("file not found").WithContext("path", name).Build())
		return
	}
	defer func() { _ = f.Close() }()
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

func openFile(p string) (*os.File, os.FileInfo, bool) {
	f, err := os.Open(p) // #nosec G304 -- path is cleaned and rooted
	if err != nil {
		return nil, nil, false
	}
	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		_ = f.Close()
		return nil, nil, false
	}
	return f, fi, true
}

func acceptsGzip(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(enc), "gzip") {
			continue
		}
		if q := strings.ReplaceAll(strings.TrimSpace(params), " ", ""); q == "q=0" || q == "q=0.0" {
			return false
		}
		return true
	}
	return false
}
