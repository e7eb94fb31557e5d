package main

import (
	"context"
	"net/http"
	"time"

	"github.com/streamtail/streamtail/internal/tailer"
	"github.com/streamtail/streamtail/internal/wsproto"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /ws", s.handleWatch)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleWatch upgrades to WebSocket, reads the {path, resumeAfterSeq?}
// subscribe message (spec.md §6), attaches the connection to that
// session's tailer via the registry, and keeps reading (and discarding)
// further frames until the client disconnects — there is no inbound
// control message beyond the initial subscribe.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	sub, err := wsproto.Accept(w, r)
	if err != nil {
		s.logger.Printf("streamtaild: accept failed: %v", err)
		return
	}
	s.logger.Printf("streamtaild: [%s] connection accepted", sub.ConnID())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	req, err := sub.ReadSubscribeRequest(ctx)
	cancel()
	if err != nil {
		sub.SendError("invalid subscribe request: " + err.Error())
		return
	}

	sessionFilePath, sessionAgentDir, err := s.resolveSessionPaths(req.Path)
	if err != nil {
		sub.SendError(err.Error())
		return
	}

	t := s.registry.GetOrCreate(tailer.GetOrCreateOptions{
		SessionFilePath: sessionFilePath,
		SessionAgentDir: sessionAgentDir,
	})
	if t == nil {
		sub.SendError("Too many active tail sessions")
		return
	}

	t.Subscribe(sub, req.ResumeAfterSeq)
	defer s.registry.Release(sessionFilePath, sub)

	// Block on reads purely to detect disconnect; any frame content
	// beyond the initial subscribe is ignored.
	for {
		if _, _, err := sub.ReadRaw(r.Context()); err != nil {
			return
		}
	}
}
