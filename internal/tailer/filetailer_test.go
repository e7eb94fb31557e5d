package tailer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineCollector is a concurrency-safe sink for a FileTailer's onLines
// callback, since callbacks fire from the tailer's own goroutine.
type lineCollector struct {
	mu      sync.Mutex
	lines   []string
	errs    []error
	deleted int
}

func (c *lineCollector) onLines(lines []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, lines...)
}

func (c *lineCollector) onError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *lineCollector) onDeleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted++
}

func (c *lineCollector) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...), c.deleted
}

func TestFileTailer_TailsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	ft.Start()
	defer ft.Stop()

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 2
	}, 3*time.Second, 10*time.Millisecond)

	lines, _ := c.snapshot()
	assert.Equal(t, []string{"line1", "line2"}, lines)
}

func TestFileTailer_WaitsForFileThenReadsFromStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-yet.jsonl")

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	ft.Start()
	defer ft.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	lines, _ := c.snapshot()
	assert.Equal(t, []string{"first"}, lines)
}

func TestFileTailer_InitialOffsetSkipsPriorBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	initial := []byte("old1\nold2\n")
	require.NoError(t, os.WriteFile(path, initial, 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, int64(len(initial)), c.onLines, c.onError, c.onDeleted)
	ft.Start()
	defer ft.Stop()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("new1\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	lines, _ := c.snapshot()
	assert.Equal(t, []string{"new1"}, lines)
}

func TestFileTailer_TruncationResetsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("aaaaaaaaaa\n"), 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	ft.Start()
	defer ft.Stop()

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Truncate to something shorter than the previous offset, then
	// write new content: the tailer must detect size < offset (I7)
	// and re-read from byte 0 rather than erroring or hanging.
	require.NoError(t, os.WriteFile(path, []byte("short\n"), 0o644))

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 2
	}, 4*time.Second, 10*time.Millisecond)

	lines, _ := c.snapshot()
	assert.Equal(t, []string{"aaaaaaaaaa", "short"}, lines)
}

func TestFileTailer_DeletionFiresOnDeleted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	ft.Start()
	defer ft.Stop()

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		_, deleted := c.snapshot()
		return deleted == 1
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, FileDeleted, ft.State())
}

func TestFileTailer_WatcherCreationFailureFallsBackToPolling(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	// Force enterWatching's fsnotify.NewWatcher() call to fail, the way a
	// process pinned at its inotify instance/watch limit would, so the
	// tailer must fall back to polling_fallback and still drive reads.
	ft.newWatcher = func() (*fsnotify.Watcher, error) {
		return nil, errors.New("injected: no inotify instances available")
	}
	ft.Start()
	defer ft.Stop()

	require.Eventually(t, func() bool {
		return ft.State() == FilePollingFallback
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		lines, _ := c.snapshot()
		return len(lines) == 2
	}, 3*time.Second, 10*time.Millisecond)

	lines, _ := c.snapshot()
	assert.Equal(t, []string{"line1", "line2"}, lines)
}

func TestFileTailer_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("line1\n"), 0o644))

	c := &lineCollector{}
	ft := NewFileTailer(path, 0, c.onLines, c.onError, c.onDeleted)
	ft.Start()

	require.Eventually(t, func() bool {
		return ft.State() == FileWatching
	}, 2*time.Second, 10*time.Millisecond)

	ft.Stop()
	ft.Stop()
	assert.Equal(t, FileStopped, ft.State())
}
