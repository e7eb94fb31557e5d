package tailer

import (
	"time"

	"github.com/tidwall/gjson"
)

// ProcessMainEntries appends entries to state.MainLogEntries, emits events
// with AgentID rewritten to state.SessionID, and discovers new sub-agent
// ids from each entry's normalized toolUseResult.agentId (spec.md §4.2).
// newAgentIDs preserves first-seen order within this batch.
//
// Per the Open Question decision in SPEC_FULL.md §13.1, a tool-result
// event whose normalized toolUseResult.agentId names an already-known
// child, and whose source uuid that child's own file has already
// produced, is dropped here — it will have already reached (or will
// reach) subscribers via that child's own ProcessAgentEntries call,
// matching the cold-reload snapshot's sub-agent attribution instead of
// double-attributing to the main agent.
func (s *IncrementalParseState) ProcessMainEntries(
	entries []LogEntry, now func() time.Time,
) (events []Event, warnings []LineError, newAgentIDs []string) {
	s.MainLogEntries = append(s.MainLogEntries, entries...)

	rawEvents, warn := ParseEvents(entries, s.SessionID, "", now)
	warnings = warn

	for _, ev := range rawEvents {
		if ev.Type == EventToolResult && ev.AgentID != s.SessionID &&
			s.KnownAgentIDs[ev.AgentID] &&
			s.WasSeenByAgent(ev.AgentID, ev.ID) {
			continue
		}
		events = append(events, ev)
	}

	for _, e := range entries {
		if !e.ToolUseResult.Present || e.ToolUseResult.AgentID == "" {
			continue
		}
		id := e.ToolUseResult.AgentID
		if s.KnownAgentIDs[id] {
			continue
		}
		s.KnownAgentIDs[id] = true
		newAgentIDs = append(newAgentIDs, id)
	}

	return events, warnings, newAgentIDs
}

// ProcessAgentEntries parses entries belonging to a known sub-agent,
// fixing AgentID on every output event and recording each entry's uuid as
// seen-by-that-agent for the cross-attribution rule in ProcessMainEntries.
func (s *IncrementalParseState) ProcessAgentEntries(
	entries []LogEntry, agentID string, now func() time.Time,
) ([]Event, []LineError) {
	for _, e := range entries {
		s.MarkSeenByAgent(agentID, e.UUID)
	}
	return ParseEvents(entries, s.SessionID, agentID, now)
}

// BuildAgentNode derives an AgentNode's metadata by searching
// state.MainLogEntries for the "user" entry whose normalized
// toolUseResult.agentId equals agentID, then locating the matching
// "assistant" entry containing a tool_use named "Task" with the same
// tool_use id (spec.md §4.2). If no match is found, Name defaults to
// agentID and other fields are left zero.
func (s *IncrementalParseState) BuildAgentNode(agentID, logPath string) *AgentNode {
	node := &AgentNode{
		ID:      agentID,
		Name:    agentID,
		Parent:  strPtr(s.SessionID),
		LogPath: logPath,
	}

	toolUseID := ""
	for _, e := range s.MainLogEntries {
		if e.Kind != KindUser {
			continue
		}
		if e.ToolUseResult.Present && e.ToolUseResult.AgentID == agentID {
			// The tool_result entry doesn't itself carry the
			// originating tool_use id; it's paired by matching
			// ContentToolResult.ToolResultForID against the
			// assistant entry's tool_use id below.
			for _, item := range e.ContentItems {
				if item.Type == ContentToolResult {
					toolUseID = item.ToolResultForID
					break
				}
			}
			if toolUseID != "" {
				break
			}
		}
	}
	if toolUseID == "" {
		return node
	}

	for _, e := range s.MainLogEntries {
		if e.Kind != KindAssistant {
			continue
		}
		for _, item := range e.ContentItems {
			if item.Type != ContentToolUse || item.ToolName != "Task" {
				continue
			}
			if item.ToolUseID != toolUseID {
				continue
			}
			applyTaskInput(node, item.InputRaw, item.ToolUseID, agentID)
			return node
		}
	}

	return node
}

// applyTaskInput fills node's metadata from a Task tool_use's input
// object, and marks the node resumed when input.resume names agentID
// (spec.md §4.2's buildAgentNode rule).
func applyTaskInput(node *AgentNode, inputRaw, toolUseID, agentID string) {
	input := gjson.Parse(inputRaw)
	node.Name = input.Get("description").Str
	node.Model = input.Get("model").Str
	node.SubagentType = input.Get("subagent_type").Str
	node.Description = input.Get("description").Str
	if resume := input.Get("resume").Str; resume == agentID {
		node.IsResumed = true
		node.ResumedFrom = toolUseID
	}
}

func strPtr(s string) *string { return &s }
