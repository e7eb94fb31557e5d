package tailer

import (
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileState is a File Tailer's lifecycle state (spec.md §4.3).
type FileState int

const (
	FileWaiting FileState = iota
	FileWatching
	FilePollingFallback
	FileDeleted
	FileStopped
)

func (s FileState) String() string {
	switch s {
	case FileWaiting:
		return "waiting"
	case FileWatching:
		return "watching"
	case FilePollingFallback:
		return "polling_fallback"
	case FileDeleted:
		return "deleted"
	case FileStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	existencePollInterval = 500 * time.Millisecond
	watcherSafetyNetPoll  = 2 * time.Second
	pollingFallbackPoll   = 1 * time.Second
	readDebounce          = 50 * time.Millisecond
)

// FileTailer tails one file by absolute path, tolerating late creation,
// deletion, truncation, and unreliable filesystem notifications
// (spec.md §4.3). All state transitions and read scheduling happen on
// a single goroutine (run); callbacks fire from that goroutine too, so
// onLines/onError/onDeleted must not block.
type FileTailer struct {
	path          string
	onLines       func(lines []string)
	onError       func(err error)
	onDeleted     func()
	initialOffset int64

	mu    sync.Mutex
	state FileState

	offset int64
	carry  []byte

	stop chan struct{}
	done chan struct{}

	// readInFlight guards read_new_bytes against re-entrancy
	// (spec.md §5 "read_new_bytes is re-entrancy guarded").
	readInFlight bool

	fsWatcher *fsnotify.Watcher

	// newWatcher builds the fsnotify watcher used on entry to watching
	// and on watch_restored; overridable in tests to force the
	// watch_error -> polling_fallback path without needing to exhaust a
	// real inotify limit.
	newWatcher func() (*fsnotify.Watcher, error)
}

// NewFileTailer constructs a File Tailer for path. initialOffset seeds
// the byte offset to start reading from (used after a snapshot parse to
// avoid re-emitting already-consumed bytes); pass 0 to start fresh.
func NewFileTailer(
	path string, initialOffset int64,
	onLines func([]string), onError func(error), onDeleted func(),
) *FileTailer {
	return &FileTailer{
		path:          path,
		onLines:       onLines,
		onError:       onError,
		onDeleted:     onDeleted,
		initialOffset: initialOffset,
		state:         FileWaiting,
		offset:        initialOffset,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		newWatcher:    fsnotify.NewWatcher,
	}
}

// State returns the current lifecycle state.
func (f *FileTailer) State() FileState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FileTailer) setState(s FileState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// Start begins tailing in a new goroutine.
func (f *FileTailer) Start() {
	go f.run()
}

// Stop tears down the tailer. Idempotent; safe to call more than once.
func (f *FileTailer) Stop() {
	f.mu.Lock()
	if f.state == FileStopped {
		f.mu.Unlock()
		return
	}
	f.state = FileStopped
	f.mu.Unlock()
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	<-f.done
}

func (f *FileTailer) run() {
	defer close(f.done)

	if _, err := os.Stat(f.path); err == nil {
		f.enterWatching()
	} else {
		if !f.waitForFile() {
			return
		}
		f.enterWatching()
	}

	if f.State() == FileStopped {
		return
	}

	switch f.State() {
	case FileWatching, FilePollingFallback:
		f.watchLoop()
	}
}

// waitForFile polls for the file's existence every 500ms until it
// appears or Stop is called. Returns false if stopped first.
func (f *FileTailer) waitForFile() bool {
	ticker := time.NewTicker(existencePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-f.stop:
			return false
		case <-ticker.C:
			if _, err := os.Stat(f.path); err == nil {
				return true
			}
		}
	}
}

func (f *FileTailer) enterWatching() {
	f.setState(FileWatching)
	watcher, err := f.newWatcher()
	if err != nil {
		f.onError(err)
		f.setState(FilePollingFallback)
		return
	}
	if err := watcher.Add(f.path); err != nil {
		watcher.Close()
		f.onError(err)
		f.setState(FilePollingFallback)
		return
	}
	f.fsWatcher = watcher
	f.readNewBytes()
}

// watchLoop is the dispatcher for the watching/polling_fallback states:
// fsnotify events (debounced), a 2s safety-net poll, and fallback polling
// when the watcher itself failed.
func (f *FileTailer) watchLoop() {
	safetyNet := time.NewTicker(watcherSafetyNetPoll)
	defer safetyNet.Stop()

	var debounce *time.Timer
	signal := make(chan struct{}, 1)
	armDebounce := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(readDebounce, func() {
			select {
			case signal <- struct{}{}:
			default:
			}
		})
	}

	var fallbackPoll *time.Ticker
	switchToFallback := func() {
		if f.fsWatcher != nil {
			f.fsWatcher.Close()
			f.fsWatcher = nil
		}
		f.setState(FilePollingFallback)
		fallbackPoll = time.NewTicker(pollingFallbackPoll)
	}

	// enterWatching may have already failed to create/Add the watcher
	// and set FilePollingFallback before handing off to this loop; in
	// that case there is no fsnotify.Errors event to drive
	// switchToFallback, so the fallback ticker has to be started here.
	if f.State() == FilePollingFallback && fallbackPoll == nil {
		fallbackPoll = time.NewTicker(pollingFallbackPoll)
	}

	for {
		state := f.State()
		if state == FileStopped || state == FileDeleted {
			if fallbackPoll != nil {
				fallbackPoll.Stop()
			}
			return
		}

		var events chan fsnotify.Event
		var errs chan error
		if f.fsWatcher != nil {
			events = f.fsWatcher.Events
			errs = f.fsWatcher.Errors
		}
		var fallbackC <-chan time.Time
		if fallbackPoll != nil {
			fallbackC = fallbackPoll.C
		}

		select {
		case <-f.stop:
			if fallbackPoll != nil {
				fallbackPoll.Stop()
			}
			return

		case ev, ok := <-events:
			if !ok {
				continue
			}
			if ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0 {
				f.handleDeletion()
				if fallbackPoll != nil {
					fallbackPoll.Stop()
				}
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				armDebounce()
			}

		case <-errs:
			switchToFallback()

		case <-signal:
			f.readNewBytes()

		case <-safetyNet.C:
			f.readNewBytes()

		case <-fallbackC:
			if _, err := os.Stat(f.path); err != nil {
				if os.IsNotExist(err) {
					f.handleDeletion()
					return
				}
			}
			// Attempt to re-establish the watcher (watch_restored).
			if w, err := f.newWatcher(); err == nil {
				if err := w.Add(f.path); err == nil {
					f.fsWatcher = w
					f.setState(FileWatching)
					fallbackPoll.Stop()
					fallbackPoll = nil
				} else {
					w.Close()
				}
			}
			f.readNewBytes()
		}
	}
}

func (f *FileTailer) handleDeletion() {
	f.setState(FileDeleted)
	if f.fsWatcher != nil {
		f.fsWatcher.Close()
		f.fsWatcher = nil
	}
	f.onDeleted()
}

// readNewBytes implements the operational rules in spec.md §4.3: detect
// truncation (I7), read [offset, size), split on LF with carry-buffer
// continuity (I8), and advance offset. Guarded against re-entrancy: an
// overlapping trigger while a read is in flight is dropped, since the
// next scheduled read observes the cumulative size anyway.
func (f *FileTailer) readNewBytes() {
	f.mu.Lock()
	if f.readInFlight {
		f.mu.Unlock()
		return
	}
	f.readInFlight = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.readInFlight = false
		f.mu.Unlock()
	}()

	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.handleDeletion()
			return
		}
		f.onError(err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		f.onError(err)
		return
	}
	size := info.Size()

	f.mu.Lock()
	offset := f.offset
	f.mu.Unlock()

	if size < offset {
		log.Printf("filetailer: %s truncated (size %d < offset %d), resetting", f.path, size, offset)
		f.mu.Lock()
		f.offset = 0
		f.carry = nil
		offset = 0
		f.mu.Unlock()
	}

	if size == offset {
		return
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		f.onError(err)
		return
	}

	buf := make([]byte, size-offset)
	if _, err := io.ReadFull(file, buf); err != nil && !errors.Is(err, io.EOF) {
		f.onError(err)
		return
	}

	f.mu.Lock()
	lines, newCarry := SplitLines(f.carry, buf)
	f.carry = newCarry
	f.offset = size
	f.mu.Unlock()

	if len(lines) > 0 {
		f.onLines(lines)
	}
}
