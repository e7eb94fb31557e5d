package tailer

import (
	"log"
	"sync"
	"time"
)

// registryCleanupDelay is grace (5s) + 1s (spec.md §4.5, §5).
const registryCleanupDelay = subscriberGrace + 1*time.Second

const defaultMaxTailers = 10

// GetOrCreateOptions names the session a caller wants tailed.
type GetOrCreateOptions struct {
	SessionFilePath string
	SessionAgentDir string
	Loader          SnapshotLoader
}

// TailerRegistry maps a session file path to its SessionTailer,
// reference-counted by subscriber sets, bounded by MaxTailers
// (spec.md §4.5). Safe for concurrent use.
type TailerRegistry struct {
	MaxTailers int
	Logger     *log.Logger

	mu      sync.Mutex
	tailers map[string]*SessionTailer
	// cleanupTimers tracks the pending registry-level cleanup AfterFunc
	// for each path with an outstanding Release, keyed by path, so a
	// later Release/terminate can cancel a stale one instead of leaving
	// it to fire after a new subscribe/unsubscribe cycle has begun.
	cleanupTimers map[string]*time.Timer
}

// NewTailerRegistry returns a registry with the default capacity of 10
// concurrent Session Tailers.
func NewTailerRegistry() *TailerRegistry {
	return &TailerRegistry{
		MaxTailers:    defaultMaxTailers,
		Logger:        log.Default(),
		tailers:       make(map[string]*SessionTailer),
		cleanupTimers: make(map[string]*time.Timer),
	}
}

// GetOrCreate returns the existing tailer for opts.SessionFilePath, or
// creates one if capacity allows. Returns nil if the registry is at
// MaxTailers (spec.md §4.5, scenario 6): the caller should reject the
// connection with an `error` message, "Too many active tail sessions".
func (r *TailerRegistry) GetOrCreate(opts GetOrCreateOptions) *SessionTailer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tailers[opts.SessionFilePath]; ok {
		return t
	}
	if len(r.tailers) >= r.maxTailers() {
		return nil
	}

	path := opts.SessionFilePath
	if prev, ok := r.cleanupTimers[path]; ok {
		prev.Stop()
		delete(r.cleanupTimers, path)
	}
	t := NewSessionTailer(SessionTailerOptions{
		SessionFilePath: opts.SessionFilePath,
		SessionAgentDir: opts.SessionAgentDir,
		Loader:          opts.Loader,
		Logger:          r.Logger,
		OnTerminated: func() {
			r.mu.Lock()
			delete(r.tailers, path)
			if timer, ok := r.cleanupTimers[path]; ok {
				timer.Stop()
				delete(r.cleanupTimers, path)
			}
			r.mu.Unlock()
		},
	})
	r.tailers[path] = t
	return t
}

func (r *TailerRegistry) maxTailers() int {
	if r.MaxTailers <= 0 {
		return defaultMaxTailers
	}
	return r.MaxTailers
}

// Release unsubscribes ws from path's tailer (if any) and schedules a
// registry-level cleanup check at grace+1s: if the tailer's subscriber
// count is still zero at that point, it is dropped from the map even
// if the tailer's own grace-triggered stop hasn't run OnTerminated yet
// (spec.md §4.5 release). Any cleanup still pending from an earlier
// Release on the same path is cancelled first, so repeated
// subscribe/unsubscribe cycling never leaves more than one AfterFunc
// scheduled for a given path.
func (r *TailerRegistry) Release(path string, sub Subscriber) {
	r.mu.Lock()
	t, ok := r.tailers[path]
	if prev, exists := r.cleanupTimers[path]; exists {
		prev.Stop()
		delete(r.cleanupTimers, path)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	t.Unsubscribe(sub)

	var timer *time.Timer
	timer = time.AfterFunc(registryCleanupDelay, func() {
		r.mu.Lock()
		cur, ok := r.tailers[path]
		isCurrentTimer := r.cleanupTimers[path] == timer
		r.mu.Unlock()
		if !ok || cur != t || !isCurrentTimer {
			return
		}

		// SubscriberCount makes a synchronous round-trip through cur's
		// own dispatch goroutine (st.call). That goroutine may itself be
		// blocked trying to acquire r.mu inside OnTerminated, so this
		// call must happen with r.mu released, not held.
		n := cur.SubscriberCount()

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.tailers[path] == cur && r.cleanupTimers[path] == timer && n == 0 {
			delete(r.tailers, path)
		}
		if r.cleanupTimers[path] == timer {
			delete(r.cleanupTimers, path)
		}
	})

	r.mu.Lock()
	r.cleanupTimers[path] = timer
	r.mu.Unlock()
}

// Get returns the tailer currently registered for path, if any.
func (r *TailerRegistry) Get(path string) (*SessionTailer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tailers[path]
	return t, ok
}

// Count reports how many Session Tailers are currently registered.
func (r *TailerRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tailers)
}
