package tailer

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// SnapshotLoader is the external collaborator interface consumed by the
// Session Tailer on startup (spec.md §6): a one-shot parse that seeds
// initial state. Its contract, not its internals, is in scope here — the
// default implementation below is a reference adapted from the teacher's
// ParseClaudeSession, trimmed to this spec's data model (no fork
// splitting: SessionData has no concept of a forked session).
type SnapshotLoader interface {
	LoadSnapshot(sessionFilePath, sessionAgentDir string) (*SessionData, error)
}

// agentFileRe matches a sub-agent transcript filename (spec.md §6:
// "<sessionAgentDir>/agent-<agentId>.jsonl").
var agentFileRe = regexp.MustCompile(`^agent-(.+)\.jsonl$`)

// DefaultSnapshotLoader reads the main session file and every sub-agent
// file present at call time, and returns a fully populated SessionData.
type DefaultSnapshotLoader struct{}

func (DefaultSnapshotLoader) LoadSnapshot(
	sessionFilePath, sessionAgentDir string,
) (*SessionData, error) {
	sessionID := strings.TrimSuffix(filepath.Base(sessionFilePath), ".jsonl")

	mainEntries, err := readAllEntries(sessionFilePath)
	if err != nil {
		return nil, err
	}

	state := NewIncrementalParseState(sessionID)
	state.MainLogEntries = mainEntries

	agentFiles := discoverAgentFiles(sessionAgentDir)

	mainEvents, _ := ParseEvents(mainEntries, sessionID, "", timeNow)

	mainAgent := &AgentNode{
		ID:      sessionID,
		Name:    sessionID,
		Parent:  nil,
		LogPath: sessionFilePath,
		Events:  mainEvents,
	}
	state.MainAgent = mainAgent

	var allEvents []Event
	allEvents = append(allEvents, mainEvents...)

	// Discover agent ids from two sources, exactly as the live path
	// does (spec.md §4.4 "New agent registration"): toolUseResult
	// references in the main log, and files actually present on
	// disk. Both funnel through the same known-ids guard so an id
	// seen via both paths gets exactly one AgentNode (P5).
	for _, e := range mainEntries {
		if e.ToolUseResult.Present && e.ToolUseResult.AgentID != "" {
			state.KnownAgentIDs[e.ToolUseResult.AgentID] = true
		}
	}
	for id := range agentFiles {
		state.KnownAgentIDs[id] = true
	}

	ids := make([]string, 0, len(state.KnownAgentIDs))
	for id := range state.KnownAgentIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		logPath := agentFiles[id]
		node := state.BuildAgentNode(id, logPath)
		if logPath != "" {
			entries, err := readAllEntries(logPath)
			if err != nil {
				return nil, err
			}
			events, _ := state.ProcessAgentEntries(entries, id, timeNow)
			node.Events = events
			allEvents = append(allEvents, events...)
		}
		mainAgent.Children = append(mainAgent.Children, node)
	}

	// Same cross-attribution rule as ProcessMainEntries: a main-file
	// tool-result whose uuid the named child's own log also holds is
	// kept under that child only.
	kept := make([]Event, 0, len(mainEvents))
	for _, ev := range mainEvents {
		if ev.Type == EventToolResult && ev.AgentID != sessionID &&
			state.WasSeenByAgent(ev.AgentID, ev.ID) {
			continue
		}
		kept = append(kept, ev)
	}
	mainAgent.Events = kept
	allEvents = append(append([]Event(nil), kept...), allEvents[len(mainEvents):]...)

	sort.SliceStable(allEvents, func(i, j int) bool {
		return allEvents[i].Timestamp.Before(allEvents[j].Timestamp)
	})

	return &SessionData{
		SessionID:    sessionID,
		MainAgent:    mainAgent,
		AllEvents:    allEvents,
		LogDirectory: sessionAgentDir,
	}, nil
}

func discoverAgentFiles(dir string) map[string]string {
	files := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := agentFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		files[m[1]] = filepath.Join(dir, e.Name())
	}
	return files
}

// readAllEntries reads path fully and parses it into LogEntry values,
// returning a fatal *ParseError on the first invalid JSON or
// schema-invalid line (spec.md §6): the snapshot loader has no
// subscriber to warn yet, so malformed input here aborts the load.
func readAllEntries(path string) ([]LogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lines, _ := SplitLines(nil, data)
	var entries []LogEntry
	for i, raw := range lines {
		lineNo := i + 1
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if !gjson.Valid(raw) {
			return nil, &ParseError{
				FilePath:   path,
				LineNumber: lineNo,
				RawLine:    raw,
			}
		}
		if detail, ok := validateSchema(raw); !ok {
			return nil, &ParseError{
				FilePath:          path,
				LineNumber:        lineNo,
				RawLine:           raw,
				ValidationDetails: detail,
			}
		}
		entries = append(entries, buildLogEntry(raw, path, lineNo))
	}
	return entries, nil
}
