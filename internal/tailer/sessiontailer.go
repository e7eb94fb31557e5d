package tailer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SessionState is the Session Tailer's lifecycle state (spec.md §4.4).
type SessionState int

const (
	StateInitializing SessionState = iota
	StateStreaming
	StateIdle
	StateError
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateStreaming:
		return "streaming"
	case StateIdle:
		return "idle"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	heartbeatInterval  = 15 * time.Second
	idleCheckInterval  = 5 * time.Second
	idleThreshold      = 30 * time.Second
	coalesceWindow     = 50 * time.Millisecond
	subscriberGrace    = 5 * time.Second
	dirWatchRetry      = 1 * time.Second
	ringBufferCapacity = 1000
)

// SessionTailerOptions configures a SessionTailer.
type SessionTailerOptions struct {
	SessionFilePath string
	SessionAgentDir string

	// Loader defaults to DefaultSnapshotLoader.
	Loader SnapshotLoader
	Logger *log.Logger
	Now    func() time.Time

	// OnTerminated, if set, is invoked exactly once from the dispatch
	// goroutine when this tailer reaches a terminal state (error or
	// stopped), so a TailerRegistry can drop its map entry.
	OnTerminated func()
}

// SessionTailer orchestrates one main transcript file and its sub-agent
// files for one session (spec.md §4.4): the Incremental Parser, one File
// Tailer per file, a directory watcher for newly spawned sub-agents,
// outbound coalescing, and a replay ring buffer.
//
// Every field below except the handful explicitly called out is owned
// exclusively by the dispatch goroutine (run). External callers only
// ever reach this state through post/call, which marshal the call onto
// that goroutine — this is the "single logical event loop" the spec
// requires (spec.md §5).
type SessionTailer struct {
	sessionFilePath string
	sessionAgentDir string
	loader          SnapshotLoader
	logger          *log.Logger
	now             func() time.Time
	onTerminated    func()

	cmds   chan func()
	closed chan struct{}

	state SessionState
	seq   int64
	ring  *ringBuffer

	parseState  *IncrementalParseState
	mainAgent   *AgentNode
	sessionData *SessionData

	pendingEvents   []Event
	pendingAgents   []*AgentNode
	pendingAgentIdx map[string]int

	mainTailer   *FileTailer
	agentTailers map[string]*FileTailer

	dirWatcher    *fsnotify.Watcher
	dirRetryTimer *time.Timer

	coalesceTimer   *time.Timer
	heartbeatTicker *time.Ticker
	idleTicker      *time.Ticker
	graceTimer      *time.Timer

	lastWriteTime time.Time

	subscribers map[Subscriber]struct{}
}

// NewSessionTailer constructs and starts a Session Tailer. Construction
// kicks off the startup sequence in the background (spec.md §4.4
// "Startup"): the Snapshot Loader runs on its own goroutine and posts
// snapshot_ready (or error) back onto the dispatch loop once done.
func NewSessionTailer(opts SessionTailerOptions) *SessionTailer {
	if opts.Loader == nil {
		opts.Loader = DefaultSnapshotLoader{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	st := &SessionTailer{
		sessionFilePath: opts.SessionFilePath,
		sessionAgentDir: opts.SessionAgentDir,
		loader:          opts.Loader,
		logger:          opts.Logger,
		now:             opts.Now,
		onTerminated:    opts.OnTerminated,
		cmds:            make(chan func(), 64),
		closed:          make(chan struct{}),
		state:           StateInitializing,
		ring:            newRingBuffer(ringBufferCapacity),
		pendingAgentIdx: make(map[string]int),
		agentTailers:    make(map[string]*FileTailer),
		subscribers:     make(map[Subscriber]struct{}),
	}

	go st.run()
	go st.loadSnapshot()
	return st
}

// post marshals fn onto the dispatch goroutine. Safe to call from any
// goroutine, including after the tailer has terminated: fn is silently
// dropped once closed is closed.
func (st *SessionTailer) post(fn func()) {
	select {
	case st.cmds <- fn:
	case <-st.closed:
	}
}

// call runs fn on the dispatch goroutine and blocks until it returns,
// for synchronous reads of dispatcher-owned state from other goroutines.
func (st *SessionTailer) call(fn func()) {
	done := make(chan struct{})
	st.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-st.closed:
	}
}

// run is the single dispatcher: every state mutation in this type
// happens inside a closure executed here, one at a time (spec.md §5).
// error and stopped are both absorbing (spec.md §9): once either is
// reached, every owned resource has already been torn down by stopAll,
// so the loop exits and closed is closed to unblock any outstanding or
// future post/call.
func (st *SessionTailer) run() {
	for fn := range st.cmds {
		fn()
		if st.state == StateStopped || st.state == StateError {
			close(st.closed)
			return
		}
	}
}

// State reports the current lifecycle state.
func (st *SessionTailer) State() SessionState {
	var s SessionState
	st.call(func() { s = st.state })
	return s
}

// Snapshot returns the current SessionData (nil if the snapshot hasn't
// loaded yet or the tailer already terminated).
func (st *SessionTailer) Snapshot() *SessionData {
	var data *SessionData
	st.call(func() { data = st.sessionData })
	return data
}

// SubscriberCount reports how many subscribers are currently attached.
func (st *SessionTailer) SubscriberCount() int {
	var n int
	st.call(func() { n = len(st.subscribers) })
	return n
}

// Subscribe attaches sub. If resumeAfterSeq is non-nil and the ring
// buffer can serve it, sub is replayed every buffered message with
// seq > *resumeAfterSeq; otherwise sub receives a fresh snapshot
// (spec.md §4.4 Subscribe). During initializing, sub is registered but
// receives nothing until the startup broadcast_snapshot effect fires.
func (st *SessionTailer) Subscribe(sub Subscriber, resumeAfterSeq *int64) {
	st.post(func() { st.handleSubscribe(sub, resumeAfterSeq) })
}

// Unsubscribe detaches sub. When the subscriber set becomes empty, a 5s
// grace timer starts; if still empty on expiry, the tailer stops
// (spec.md §4.4 Unsubscribe).
func (st *SessionTailer) Unsubscribe(sub Subscriber) {
	st.post(func() { st.handleUnsubscribe(sub) })
}

// Stop tears down every owned resource and moves the state machine to
// stopped. Idempotent.
func (st *SessionTailer) Stop() {
	st.post(func() {
		if st.state == StateStopped {
			return
		}
		st.transitionToStopped()
	})
}

func (st *SessionTailer) handleSubscribe(sub Subscriber, resumeAfterSeq *int64) {
	if st.state == StateStopped {
		return
	}
	st.subscribers[sub] = struct{}{}
	if st.graceTimer != nil {
		st.graceTimer.Stop()
		st.graceTimer = nil
	}

	if st.state == StateInitializing {
		return
	}

	if resumeAfterSeq != nil && st.ring.CanReplay(*resumeAfterSeq) {
		for _, msg := range st.ring.After(*resumeAfterSeq) {
			st.sendTo(sub, msg)
		}
		return
	}

	msg := OutboundMessage{Type: MsgSnapshot, Data: st.sessionData}
	msg.Seq = st.nextSeq()
	st.sendTo(sub, msg)
}

func (st *SessionTailer) handleUnsubscribe(sub Subscriber) {
	delete(st.subscribers, sub)
	if len(st.subscribers) == 0 && (st.state == StateStreaming || st.state == StateIdle) {
		st.startGraceTimer()
	}
}

func (st *SessionTailer) startGraceTimer() {
	if st.graceTimer != nil {
		return
	}
	st.graceTimer = time.AfterFunc(subscriberGrace, func() {
		st.post(st.handleGraceExpired)
	})
}

func (st *SessionTailer) handleGraceExpired() {
	if len(st.subscribers) != 0 {
		return
	}
	if st.state != StateStreaming && st.state != StateIdle {
		return
	}
	st.transitionToStopped()
}

func (st *SessionTailer) transitionToStopped() {
	st.stopAll()
	st.state = StateStopped
	if st.onTerminated != nil {
		st.onTerminated()
	}
}

// stopAll tears down every resource this tailer owns (spec.md §4.4
// stop_all). Idempotent: safe to call from dispatchError and then again
// from an explicit Stop().
func (st *SessionTailer) stopAll() {
	if st.mainTailer != nil {
		st.mainTailer.Stop()
		st.mainTailer = nil
	}
	for id, t := range st.agentTailers {
		t.Stop()
		delete(st.agentTailers, id)
	}
	if st.dirWatcher != nil {
		st.dirWatcher.Close()
		st.dirWatcher = nil
	}
	if st.dirRetryTimer != nil {
		st.dirRetryTimer.Stop()
		st.dirRetryTimer = nil
	}
	if st.coalesceTimer != nil {
		st.coalesceTimer.Stop()
		st.coalesceTimer = nil
	}
	if st.heartbeatTicker != nil {
		st.heartbeatTicker.Stop()
		st.heartbeatTicker = nil
	}
	if st.idleTicker != nil {
		st.idleTicker.Stop()
		st.idleTicker = nil
	}
	if st.graceTimer != nil {
		st.graceTimer.Stop()
		st.graceTimer = nil
	}
}

// dispatchError moves the tailer to the terminal error state and
// broadcasts an error message (spec.md §4.4, §7). Resources are torn
// down immediately via stopAll, matching §9's "stopped and error are
// absorbing" — a later explicit Stop() call is a no-op in practice but
// still accepted.
func (st *SessionTailer) dispatchError(err error) {
	if st.state == StateStopped || st.state == StateError {
		return
	}
	st.state = StateError
	msg := OutboundMessage{Type: MsgError, Message: err.Error()}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
	st.stopAll()
	if st.onTerminated != nil {
		st.onTerminated()
	}
}

func (st *SessionTailer) nextSeq() int64 {
	st.seq++
	return st.seq
}

// sendTo applies the backpressure check (spec.md §4.4, §7) before
// handing msg to sub. A send error or a congested subscriber never
// aborts delivery to anyone else.
func (st *SessionTailer) sendTo(sub Subscriber, msg OutboundMessage) {
	if sub.BufferedBytes() >= backpressureThreshold {
		return
	}
	if err := sub.Send(msg); err != nil {
		st.logger.Printf("sessiontailer: send failed for %s: %v", st.sessionFilePath, err)
	}
}

// loadSnapshot runs the Startup sequence's I/O off the dispatch
// goroutine (spec.md §4.4 Startup 1-2), then posts the result back.
func (st *SessionTailer) loadSnapshot() {
	data, err := st.loader.LoadSnapshot(st.sessionFilePath, st.sessionAgentDir)
	if err != nil {
		st.post(func() {
			st.dispatchError(fmt.Errorf("snapshot load: %w", err))
		})
		return
	}

	mainSize, mainLines := statAndCountLines(st.sessionFilePath)
	childSizes := make(map[string]int64)
	childLines := make(map[string]int)
	for _, child := range data.MainAgent.Children {
		if child.LogPath == "" {
			continue
		}
		sz, n := statAndCountLines(child.LogPath)
		childSizes[child.LogPath] = sz
		childLines[child.LogPath] = n
	}

	st.post(func() {
		st.handleSnapshotReady(data, mainSize, mainLines, childSizes, childLines)
	})
}

func statAndCountLines(path string) (size int64, nonBlankLines int) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return info.Size(), 0
	}
	lines, _ := SplitLines(nil, data)
	return info.Size(), len(lines)
}

func (st *SessionTailer) handleSnapshotReady(
	data *SessionData, mainSize int64, mainLines int,
	childSizes map[string]int64, childLines map[string]int,
) {
	if st.state != StateInitializing {
		return
	}

	st.sessionData = data
	st.mainAgent = data.MainAgent

	st.parseState = NewIncrementalParseState(data.SessionID)
	st.parseState.MainAgent = data.MainAgent
	st.parseState.LineCountPerFile[st.sessionFilePath] = mainLines
	for _, child := range data.MainAgent.Children {
		st.parseState.KnownAgentIDs[child.ID] = true
		if child.LogPath != "" {
			st.parseState.LineCountPerFile[child.LogPath] = childLines[child.LogPath]
		}
	}

	st.state = StateStreaming
	st.lastWriteTime = st.now()

	msg := OutboundMessage{Type: MsgSnapshot, Data: st.sessionData}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}

	st.startTailing(mainSize, data.MainAgent.Children, childSizes)
}

// startTailing is the start_tailing effect (spec.md §4.4): a File
// Tailer for the main file and one per pre-existing child, a directory
// watcher for newly spawned children, heartbeat and idle timers.
func (st *SessionTailer) startTailing(
	mainSize int64, children []*AgentNode, childSizes map[string]int64,
) {
	st.mainTailer = NewFileTailer(st.sessionFilePath, mainSize,
		func(lines []string) { st.post(func() { st.handleMainLines(lines) }) },
		func(err error) { st.post(func() { st.handleMainError(err) }) },
		func() { st.post(st.handleMainDeleted) },
	)
	st.mainTailer.Start()

	for _, child := range children {
		if child.LogPath == "" {
			continue
		}
		id, path := child.ID, child.LogPath
		tailer := NewFileTailer(path, childSizes[path],
			func(lines []string) { st.post(func() { st.handleAgentLines(id, path, lines) }) },
			func(err error) { st.post(func() { st.handleAgentError(id, err) }) },
			func() { st.post(func() { st.handleAgentDeleted(id) }) },
		)
		st.agentTailers[id] = tailer
		tailer.Start()
	}

	st.startDirWatcher()
	st.startHeartbeat()
	st.startIdleDetector()
}

func (st *SessionTailer) startHeartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	st.heartbeatTicker = ticker
	go func() {
		for {
			select {
			case <-ticker.C:
				st.post(st.handleHeartbeatTick)
			case <-st.closed:
				return
			}
		}
	}()
}

func (st *SessionTailer) handleHeartbeatTick() {
	if st.state != StateStreaming && st.state != StateIdle {
		return
	}
	msg := OutboundMessage{Type: MsgHeartbeat}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
}

func (st *SessionTailer) startIdleDetector() {
	ticker := time.NewTicker(idleCheckInterval)
	st.idleTicker = ticker
	go func() {
		for {
			select {
			case <-ticker.C:
				st.post(st.handleIdleTick)
			case <-st.closed:
				return
			}
		}
	}()
}

func (st *SessionTailer) handleIdleTick() {
	if st.state != StateStreaming {
		return
	}
	if st.now().Sub(st.lastWriteTime) <= idleThreshold {
		return
	}
	st.state = StateIdle
	msg := OutboundMessage{Type: MsgIdle}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
}

// noteActivity records a write and, per the idle/streaming transition
// table, moves idle back to streaming with one `active` broadcast
// (spec.md §4.4, P8).
func (st *SessionTailer) noteActivity() {
	st.lastWriteTime = st.now()
	if st.state != StateIdle {
		return
	}
	st.state = StateStreaming
	msg := OutboundMessage{Type: MsgActive}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
}

func (st *SessionTailer) startDirWatcher() {
	if _, err := os.Stat(st.sessionAgentDir); err != nil {
		st.dirRetryTimer = time.AfterFunc(dirWatchRetry, func() {
			st.post(st.retryDirWatcher)
		})
		return
	}
	st.attachDirWatcher()
}

// retryDirWatcher clears the pending timer before re-checking, so only
// one retry is ever in flight (spec.md §5), and aborts if the tailer
// has since reached a terminal state.
func (st *SessionTailer) retryDirWatcher() {
	st.dirRetryTimer = nil
	if st.state == StateStopped || st.state == StateError {
		return
	}
	st.startDirWatcher()
}

func (st *SessionTailer) attachDirWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		st.logger.Printf("sessiontailer: dir watcher unavailable for %s: %v", st.sessionAgentDir, err)
		return
	}
	if err := w.Add(st.sessionAgentDir); err != nil {
		w.Close()
		st.logger.Printf("sessiontailer: dir watcher add failed for %s: %v", st.sessionAgentDir, err)
		return
	}
	st.dirWatcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				m := agentFileRe.FindStringSubmatch(filepath.Base(ev.Name))
				if m == nil {
					continue
				}
				id, path := m[1], ev.Name
				st.post(func() { st.registerAgentFile(id, path) })
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-st.closed:
				return
			}
		}
	}()

	st.scanExistingAgentFiles()
}

func (st *SessionTailer) scanExistingAgentFiles() {
	entries, err := os.ReadDir(st.sessionAgentDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := agentFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id := m[1]
		path := filepath.Join(st.sessionAgentDir, e.Name())
		st.registerAgentFile(id, path)
	}
}

// registerAgentFile is the convergence point for both discovery paths
// (spec.md §4.4 "New agent registration"): a toolUseResult.agentId seen
// in the main file, or a filename observed by the directory watcher.
// Guarded by presence in agentTailers, and a child already in the tree
// (such as a snapshot child whose file did not exist yet) gets a tailer
// but no second node, so a given id is registered at most once (P5),
// regardless of how many times either path observes it.
func (st *SessionTailer) registerAgentFile(agentID, logPath string) {
	if _, exists := st.agentTailers[agentID]; exists {
		return
	}
	if logPath == "" {
		logPath = filepath.Join(st.sessionAgentDir, "agent-"+agentID+".jsonl")
	}
	st.parseState.KnownAgentIDs[agentID] = true

	if idx := st.findChildIndex(agentID); idx >= 0 {
		if st.mainAgent.Children[idx].LogPath == "" {
			st.mainAgent.Children[idx].LogPath = logPath
		}
	} else {
		node := st.parseState.BuildAgentNode(agentID, logPath)
		st.mainAgent.Children = append(st.mainAgent.Children, node)
		st.queueAgent(node)
	}

	tailer := NewFileTailer(logPath, 0,
		func(lines []string) { st.post(func() { st.handleAgentLines(agentID, logPath, lines) }) },
		func(err error) { st.post(func() { st.handleAgentError(agentID, err) }) },
		func() { st.post(func() { st.handleAgentDeleted(agentID) }) },
	)
	st.agentTailers[agentID] = tailer
	tailer.Start()
}

func (st *SessionTailer) queueAgent(node *AgentNode) {
	if idx, ok := st.pendingAgentIdx[node.ID]; ok {
		st.pendingAgents[idx] = node
		return
	}
	st.pendingAgentIdx[node.ID] = len(st.pendingAgents)
	st.pendingAgents = append(st.pendingAgents, node)
	st.scheduleCoalesce()
}

func (st *SessionTailer) queueEvents(events []Event) {
	if len(events) == 0 {
		return
	}
	st.pendingEvents = append(st.pendingEvents, events...)
	st.scheduleCoalesce()
}

func (st *SessionTailer) scheduleCoalesce() {
	if st.coalesceTimer != nil {
		return
	}
	st.coalesceTimer = time.AfterFunc(coalesceWindow, func() {
		st.post(st.flushCoalesce)
	})
}

func (st *SessionTailer) flushCoalesce() {
	st.coalesceTimer = nil
	if len(st.pendingEvents) == 0 && len(st.pendingAgents) == 0 {
		return
	}
	msg := OutboundMessage{Type: MsgEvents, Events: st.pendingEvents, Agents: st.pendingAgents}
	msg.Seq = st.nextSeq()
	st.ring.Push(msg)
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
	st.pendingEvents = nil
	st.pendingAgents = nil
	st.pendingAgentIdx = make(map[string]int)
}

func (st *SessionTailer) emitWarning(e LineError) {
	msg := OutboundMessage{Type: MsgWarning, Message: e.Message}
	msg.Seq = st.nextSeq()
	for sub := range st.subscribers {
		st.sendTo(sub, msg)
	}
}

func (st *SessionTailer) appendSessionEvents(events []Event) {
	if st.sessionData == nil || len(events) == 0 {
		return
	}
	st.sessionData.AllEvents = append(st.sessionData.AllEvents, events...)
}

func (st *SessionTailer) findChildIndex(id string) int {
	for i, c := range st.mainAgent.Children {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// handleMainLines processes a batch of newly-tailed lines from the main
// file: parse, update incremental state, queue outbound events, and
// register/refresh any sub-agents it reveals.
func (st *SessionTailer) handleMainLines(lines []string) {
	if st.state == StateStopped || st.state == StateError {
		return
	}
	st.noteActivity()

	startLine := st.parseState.LineCountPerFile[st.sessionFilePath] + 1
	entries, parseErrs := ParseLines(lines, st.sessionFilePath, startLine)
	st.parseState.LineCountPerFile[st.sessionFilePath] += len(lines)
	for _, e := range parseErrs {
		st.emitWarning(e)
	}

	events, warnings, newAgentIDs := st.parseState.ProcessMainEntries(entries, st.now)
	for _, w := range warnings {
		st.emitWarning(w)
	}
	st.appendSessionEvents(events)
	st.queueEvents(events)

	for _, id := range newAgentIDs {
		st.registerAgentFile(id, "")
	}
	st.refreshStaleAgents(entries)
}

// refreshStaleAgents implements the "Stale metadata refresh" rule
// (spec.md §4.4, §9 "Two-phase agent identity"): a child registered by
// the directory watcher before its Task tool_use arrived still has
// name == id. Once the matching toolUseResult.agentId shows up in this
// batch, rebuild that child's metadata in place and requeue it — never
// emitting two outbound records for the same id in one batch.
func (st *SessionTailer) refreshStaleAgents(entries []LogEntry) {
	refreshed := make(map[string]bool)
	for _, e := range entries {
		if !e.ToolUseResult.Present || e.ToolUseResult.AgentID == "" {
			continue
		}
		id := e.ToolUseResult.AgentID
		if refreshed[id] {
			continue
		}
		refreshed[id] = true

		idx := st.findChildIndex(id)
		if idx < 0 {
			continue
		}
		child := st.mainAgent.Children[idx]
		if child.Name != child.ID {
			continue
		}
		rebuilt := st.parseState.BuildAgentNode(id, child.LogPath)
		rebuilt.Events = child.Events
		rebuilt.Children = child.Children
		st.mainAgent.Children[idx] = rebuilt
		st.queueAgent(rebuilt)
	}
}

func (st *SessionTailer) handleMainError(err error) {
	st.logger.Printf("sessiontailer: main tailer error for %s: %v", st.sessionFilePath, err)
}

func (st *SessionTailer) handleMainDeleted() {
	st.dispatchError(fmt.Errorf("session file deleted: %s", st.sessionFilePath))
}

func (st *SessionTailer) handleAgentLines(agentID, logPath string, lines []string) {
	if st.state == StateStopped || st.state == StateError {
		return
	}
	st.noteActivity()

	startLine := st.parseState.LineCountPerFile[logPath] + 1
	entries, parseErrs := ParseLines(lines, logPath, startLine)
	st.parseState.LineCountPerFile[logPath] += len(lines)
	for _, e := range parseErrs {
		st.emitWarning(e)
	}

	events, warnings := st.parseState.ProcessAgentEntries(entries, agentID, st.now)
	for _, w := range warnings {
		st.emitWarning(w)
	}
	st.appendSessionEvents(events)
	st.queueEvents(events)

	if idx := st.findChildIndex(agentID); idx >= 0 {
		st.mainAgent.Children[idx].Events = append(st.mainAgent.Children[idx].Events, events...)
	}
}

// handleAgentError and handleAgentDeleted implement "Sub-agent file
// deletion is logged but not fatal" (spec.md §7): unlike the main file,
// losing a sub-agent file never moves the Session Tailer to error.
func (st *SessionTailer) handleAgentError(agentID string, err error) {
	st.logger.Printf("sessiontailer: agent %s tailer error: %v", agentID, err)
}

func (st *SessionTailer) handleAgentDeleted(agentID string) {
	st.logger.Printf("sessiontailer: agent %s log file deleted", agentID)
}
