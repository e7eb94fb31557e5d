package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/streamtail/streamtail/internal/tailer"
)

// Server wires the TailerRegistry to an HTTP/WebSocket mux, resolving
// every inbound path against a fixed projectsRoot the way spec.md §6
// requires ("path MUST pass the host's path-within-projects-root
// validation before the core is invoked" — that validation is this
// server's job, not the tailer package's).
type Server struct {
	projectsRoot string
	registry     *tailer.TailerRegistry
	logger       *log.Logger

	mux     *http.ServeMux
	httpSrv *http.Server
}

// New creates a Server rooted at projectsRoot (spec.md §6 "Persisted
// state layout": <projectsRoot>/<projectId>/<sessionId>.jsonl and its
// sibling subagents directory).
func New(projectsRoot string, registry *tailer.TailerRegistry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		projectsRoot: projectsRoot,
		registry:     registry,
		logger:       logger,
		mux:          http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server at addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.logger.Printf("streamtaild: listening at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// resolveSessionPaths maps a client-supplied project-relative path to
// the absolute main session file and its sub-agent directory. The path
// is cleaned as if rooted at "/", so ".." segments cannot climb above
// projectsRoot; a path that resolves to projectsRoot itself, or that
// does not name a .jsonl file, is rejected.
func (s *Server) resolveSessionPaths(relPath string) (sessionFilePath, sessionAgentDir string, err error) {
	cleaned := filepath.Clean("/" + relPath)
	abs := filepath.Join(s.projectsRoot, cleaned)
	if !strings.HasPrefix(abs, filepath.Clean(s.projectsRoot)+string(filepath.Separator)) {
		return "", "", fmt.Errorf("path escapes projects root: %q", relPath)
	}
	if !strings.HasSuffix(abs, ".jsonl") {
		return "", "", fmt.Errorf("path must name a .jsonl session file: %q", relPath)
	}
	dir := strings.TrimSuffix(abs, ".jsonl")
	return abs, filepath.Join(dir, "subagents"), nil
}
