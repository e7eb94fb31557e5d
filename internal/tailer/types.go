// Package tailer implements the streaming session tailer: it turns a main
// transcript file plus a dynamic set of sub-agent transcript files into a
// chronologically ordered event stream, an agent tree, and a live feed of
// incremental updates that survives client reconnects.
package tailer

import "time"

// timeNow is the default clock injected into parse/event-building calls
// that need a timestamp fallback (spec.md §3: "summary" entries have no
// timestamp of their own). Tests substitute a fixed func() time.Time.
var timeNow = time.Now

// EntryKind is the discriminator on a raw JSONL log line.
type EntryKind string

const (
	KindUser      EntryKind = "user"
	KindAssistant EntryKind = "assistant"
	KindSummary   EntryKind = "summary"
)

// ContentItemType discriminates an item inside message.content when content
// is an ordered sequence rather than a plain string.
type ContentItemType string

const (
	ContentText      ContentItemType = "text"
	ContentThinking  ContentItemType = "thinking"
	ContentToolUse   ContentItemType = "tool_use"
	ContentToolResult ContentItemType = "tool_result"
)

// ContentItem is one element of message.content when content is a sequence.
type ContentItem struct {
	Type ContentItemType

	// text / thinking
	Text string

	// tool_use
	ToolUseID string
	ToolName  string
	InputRaw  string // raw JSON object of "input"

	// tool_result
	ToolResultForID string
	ToolResultRaw   string // raw JSON of "content"
	IsError         bool
}

// ToolUseResult is the normalized form of an entry's toolUseResult field
// (see normalizeToolUseResult): either absent, or a single JSON object.
type ToolUseResult struct {
	Present bool
	Raw     string // raw JSON object
	AgentID string // toolUseResult.agentId, if present
}

// LogEntry is one validated raw JSONL record (spec.md §3).
type LogEntry struct {
	Kind      EntryKind
	UUID      string // absent on "summary", where LeafUUID substitutes
	LeafUUID  string
	ParentUUID string
	Timestamp time.Time
	HasTimestamp bool
	SessionID string
	AgentID   string // optional

	// message.content: MessageText holds the value when content is a
	// plain string; ContentItems holds the parsed sequence otherwise.
	HasMessage    bool
	MessageRole   string // "user" | "assistant" (validated)
	MessageIsString bool
	MessageText   string
	ContentItems  []ContentItem

	ToolUseResult ToolUseResult

	// AbsLine is the 1-based absolute line number within its source
	// file, used to build error message prefixes.
	AbsLine int
	// SourcePath is the absolute path of the file this entry came from.
	SourcePath string
}

// EventType discriminates an output Event (spec.md §3).
type EventType string

const (
	EventUserMessage      EventType = "user-message"
	EventAssistantMessage EventType = "assistant-message"
	EventThinking         EventType = "thinking"
	EventToolUse          EventType = "tool-use"
	EventToolResult       EventType = "tool-result"
	EventSummary          EventType = "summary"
	EventAgentSpawn        EventType = "agent-spawn"
)

// Event is one typed, timestamped record in the output stream (spec.md §3).
type Event struct {
	Type      EventType `json:"type"`
	ID        string    `json:"id"`
	ParentID  string    `json:"parentId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	AgentID   string    `json:"agentId"`

	// assistant-message / user-message / thinking / summary
	Text string `json:"text,omitempty"`

	// tool-use
	ToolUseID      string `json:"toolUseId,omitempty"`
	ToolName       string `json:"toolName,omitempty"`
	ToolInputRaw   string `json:"toolInput,omitempty"`
	IsResume       bool   `json:"isResume,omitempty"`
	ResumesAgentID string `json:"resumesAgentId,omitempty"`
	// Summary is a supplemental one-line rendering of a tool-use's
	// input, derived the way the teacher's formatToolUse renders tool
	// calls for display (SPEC_FULL.md §11).
	Summary string `json:"summary,omitempty"`

	// tool-result
	Success bool `json:"success,omitempty"`
	Output  string `json:"output,omitempty"`
	// ContentLength is a supplemental field (SPEC_FULL.md §11),
	// derived the same way the teacher computes
	// ParsedToolResult.ContentLength: a string content's length, or
	// the summed lengths of "text" blocks for array content (the LF
	// separators that Output inserts between blocks are not counted).
	ContentLength int `json:"contentLength,omitempty"`
}

// AgentNode is one node of the agent tree (spec.md §3).
type AgentNode struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Model        string       `json:"model,omitempty"`
	SubagentType string       `json:"subagentType,omitempty"`
	Description  string       `json:"description,omitempty"`
	Parent       *string      `json:"parent"`
	Children     []*AgentNode `json:"children"`
	Events       []Event      `json:"events"`
	LogPath      string       `json:"logPath"`
	IsResumed    bool         `json:"isResumed,omitempty"`
	ResumedFrom  string       `json:"resumedFrom,omitempty"`
}

// SessionData is the full state of one session (spec.md §3).
type SessionData struct {
	SessionID    string      `json:"sessionId"`
	MainAgent    *AgentNode  `json:"mainAgent"`
	AllEvents    []Event     `json:"allEvents"`
	LogDirectory string      `json:"logDirectory"`
}

// IncrementalParseState is owned exclusively by one Session Tailer
// (spec.md §3, §5 "Shared resources").
type IncrementalParseState struct {
	SessionID string

	// KnownAgentIDs is monotonically growing (I4); never re-registers
	// a duplicate.
	KnownAgentIDs map[string]bool

	// MainLogEntries accumulates every entry read from the main file,
	// used by buildAgentNode to search for the spawning tool_use.
	MainLogEntries []LogEntry

	MainAgent *AgentNode

	// LineCountPerFile maps an absolute file path to the number of
	// non-blank lines consumed so far, for absolute line numbering in
	// error messages.
	LineCountPerFile map[string]int

	// seenByAgent records, per known sub-agent id, the set of entry
	// uuids already observed in *that agent's own* file. Used by
	// processMainEntries to implement the Open Question decision in
	// SPEC_FULL.md §13.1: a main-file tool-result whose normalized
	// toolUseResult.agentId names an already-known child, and whose
	// uuid the child's own log has already produced, is dropped from
	// the main batch so it is attributed to the sub-agent exactly as
	// the cold-reload snapshot path would.
	seenByAgent map[string]map[string]bool
}

// NewIncrementalParseState builds an empty state for sessionID.
func NewIncrementalParseState(sessionID string) *IncrementalParseState {
	return &IncrementalParseState{
		SessionID:        sessionID,
		KnownAgentIDs:    make(map[string]bool),
		LineCountPerFile: make(map[string]int),
		seenByAgent:      make(map[string]map[string]bool),
	}
}

// MarkSeenByAgent records that uuid has been observed in agentID's own
// file. Safe to call for an unknown agentID (creates its set lazily).
func (s *IncrementalParseState) MarkSeenByAgent(agentID, uuid string) {
	if uuid == "" {
		return
	}
	set, ok := s.seenByAgent[agentID]
	if !ok {
		set = make(map[string]bool)
		s.seenByAgent[agentID] = set
	}
	set[uuid] = true
}

// WasSeenByAgent reports whether uuid has already been observed in
// agentID's own file.
func (s *IncrementalParseState) WasSeenByAgent(agentID, uuid string) bool {
	if uuid == "" {
		return false
	}
	return s.seenByAgent[agentID][uuid]
}
