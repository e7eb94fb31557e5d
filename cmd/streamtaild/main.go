// Command streamtaild serves the streaming session tailer over
// WebSocket: given a projects root directory, it tails whichever
// session files connected clients ask to watch (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamtail/streamtail/internal/tailer"
)

func main() {
	host := flag.String("host", "127.0.0.1", "host to bind to")
	port := flag.Int("port", 7417, "port to listen on")
	projectsRoot := flag.String("projects-root", "", "root directory containing <projectId>/<sessionId>.jsonl transcripts")
	maxTailers := flag.Int("max-tailers", 10, "maximum concurrent session tailers")
	flag.Parse()

	if *projectsRoot == "" {
		fmt.Fprintln(os.Stderr, "streamtaild: -projects-root is required")
		os.Exit(2)
	}

	logger := log.Default()
	registry := tailer.NewTailerRegistry()
	registry.MaxTailers = *maxTailers
	registry.Logger = logger

	srv := New(*projectsRoot, registry, logger)

	addr := fmt.Sprintf("%s:%d", *host, *port)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(addr) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("streamtaild: server error: %v", err)
		}
	case <-sigCh:
		log.Println("streamtaild: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("streamtaild: shutdown error: %v", err)
		}
	}
}
