package tailer

import (
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// ParseEvents converts a batch of validated LogEntry values into typed
// Events (spec.md §4.2). agentID is the owning agent's id; pass "" for the
// main agent's entries — those events get AgentID rewritten to sessionID
// (spec.md: "main agent events use sessionId as their agentId").
//
// now is called only for a "summary" entry missing a timestamp, to supply
// the default-to-now value (spec.md §4.2); injected rather than calling
// time.Now directly so tests (eventparse_test.go, incremental_test.go)
// can run against a fixed clock.
func ParseEvents(
	entries []LogEntry, sessionID, agentID string, now func() time.Time,
) ([]Event, []LineError) {
	var events []Event
	var warnings []LineError

	owner := agentID
	if owner == "" {
		owner = sessionID
	}

	for _, e := range entries {
		switch e.Kind {
		case KindSummary:
			events = append(events, summaryEvent(e, sessionID, owner, now))

		case KindAssistant:
			if e.UUID == "" || !e.HasTimestamp {
				warnings = append(warnings, missingFieldWarning(e))
				continue
			}
			events = append(events, assistantEvents(e, sessionID, owner)...)

		case KindUser:
			if e.UUID == "" || !e.HasTimestamp {
				warnings = append(warnings, missingFieldWarning(e))
				continue
			}
			events = append(events, userEvents(e, sessionID, owner)...)

		default:
			// Unknown kind: dropped here, per spec.md §4.2 (the
			// splitter already accepted it structurally).
		}
	}

	return events, warnings
}

func missingFieldWarning(e LogEntry) LineError {
	what := "uuid"
	if e.UUID != "" {
		what = "timestamp"
	}
	return LineError{
		AbsoluteLineNumber: e.AbsLine,
		Message: e.SourcePath + ":" +
			strconv.Itoa(e.AbsLine) + ": entry missing " + what,
	}
}

func summaryEvent(
	e LogEntry, sessionID, owner string, now func() time.Time,
) Event {
	id := e.LeafUUID
	if id == "" {
		id = e.UUID
	}
	if id == "" {
		id = "unknown"
	}
	ts := e.Timestamp
	if !e.HasTimestamp {
		ts = now()
	}
	return Event{
		Type:      EventSummary,
		ID:        id,
		Timestamp: ts,
		SessionID: sessionID,
		AgentID:   owner,
		Text:      e.MessageText,
	}
}

func assistantEvents(e LogEntry, sessionID, owner string) []Event {
	var out []Event
	base := Event{
		ID:        e.UUID,
		ParentID:  e.ParentUUID,
		Timestamp: e.Timestamp,
		SessionID: sessionID,
		AgentID:   owner,
	}

	if e.MessageIsString {
		ev := base
		ev.Type = EventAssistantMessage
		ev.Text = e.MessageText
		return append(out, ev)
	}

	for _, item := range e.ContentItems {
		ev := base
		switch item.Type {
		case ContentText:
			ev.Type = EventAssistantMessage
			ev.Text = item.Text
		case ContentThinking:
			ev.Type = EventThinking
			ev.Text = item.Text
		case ContentToolUse:
			ev.Type = EventToolUse
			ev.ToolUseID = item.ToolUseID
			ev.ToolName = item.ToolName
			ev.ToolInputRaw = item.InputRaw
			ev.Summary = summarizeToolUse(item.ToolName, item.InputRaw)
			if item.ToolName == "Task" {
				if resume := gjson.Get(item.InputRaw, "resume").Str; resume != "" {
					ev.IsResume = true
					ev.ResumesAgentID = resume
				}
			}
		default:
			continue
		}
		out = append(out, ev)
	}
	return out
}

// userEvents converts a "user" entry into one or more Events. A string
// content entry yields one user-message. An array-content entry
// accumulates every "text" item into a single user-message (joined with
// LF) and yields one tool-result event per "tool_result" item, each using
// the entry-level normalized toolUseResult.agentId (never a nested value,
// per spec.md §9's open-question decision to keep the rule entry-level).
func userEvents(e LogEntry, sessionID, owner string) []Event {
	base := Event{
		ID:        e.UUID,
		ParentID:  e.ParentUUID,
		Timestamp: e.Timestamp,
		SessionID: sessionID,
		AgentID:   owner,
	}

	if e.MessageIsString {
		ev := base
		ev.Type = EventUserMessage
		ev.Text = e.MessageText
		return []Event{ev}
	}

	var out []Event
	var textParts []string
	for _, item := range e.ContentItems {
		if item.Type == ContentText && item.Text != "" {
			textParts = append(textParts, item.Text)
		}
	}
	if len(textParts) > 0 {
		ev := base
		ev.Type = EventUserMessage
		ev.Text = joinLF(textParts)
		out = append(out, ev)
	}

	for _, item := range e.ContentItems {
		if item.Type != ContentToolResult {
			continue
		}
		ev := base
		ev.Type = EventToolResult
		ev.ToolUseID = item.ToolResultForID
		ev.Success = !item.IsError
		ev.Output = toolResultOutputText(item.ToolResultRaw)
		ev.ContentLength = toolResultContentLength(item.ToolResultRaw)
		// tool-result carries agentId from the entry-level normalized
		// toolUseResult when present (spec.md §3), not from the
		// owning agent, since this is how a main-file entry reports
		// a spawned sub-agent's id.
		if e.ToolUseResult.Present && e.ToolUseResult.AgentID != "" {
			ev.AgentID = e.ToolUseResult.AgentID
		}
		out = append(out, ev)
	}
	return out
}

func joinLF(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
