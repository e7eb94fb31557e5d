package tailer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSnapshotLoader_MainAgentOnly(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "sess-1.jsonl")
	content := joinJSONL(
		userTextLine("u1", "", "2024-01-01T00:00:00Z", "hello"),
		assistantTextLine("a1", "u1", "2024-01-01T00:00:01Z", "hi"),
	)
	require.NoError(t, os.WriteFile(sessionPath, content, 0o644))

	loader := DefaultSnapshotLoader{}
	data, err := loader.LoadSnapshot(sessionPath, filepath.Join(dir, "subagents"))
	require.NoError(t, err)

	assert.Equal(t, "sess-1", data.SessionID)
	assert.Equal(t, "sess-1", data.MainAgent.ID)
	assert.Empty(t, data.MainAgent.Children)
	require.Len(t, data.AllEvents, 2)
	assert.Equal(t, EventUserMessage, data.AllEvents[0].Type)
	assert.Equal(t, EventAssistantMessage, data.AllEvents[1].Type)
}

func TestDefaultSnapshotLoader_DiscoversSubAgentFromToolResultAndFile(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "subagents")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	sessionPath := filepath.Join(dir, "sess-1.jsonl")
	mainContent := joinJSONL(
		taskToolUseLine("a1", "", "2024-01-01T00:00:00Z", "tu1", "run tests", "general-purpose"),
		taskToolResultLine("u1", "a1", "2024-01-01T00:00:01Z", "tu1", "agent-x"),
	)
	require.NoError(t, os.WriteFile(sessionPath, mainContent, 0o644))

	agentPath := filepath.Join(subDir, "agent-agent-x.jsonl")
	agentContent := joinJSONL(
		userTextLine("su1", "", "2024-01-01T00:00:02Z", "sub-agent task"),
	)
	require.NoError(t, os.WriteFile(agentPath, agentContent, 0o644))

	loader := DefaultSnapshotLoader{}
	data, err := loader.LoadSnapshot(sessionPath, subDir)
	require.NoError(t, err)

	require.Len(t, data.MainAgent.Children, 1)
	child := data.MainAgent.Children[0]
	assert.Equal(t, "agent-x", child.ID)
	assert.Equal(t, "run tests", child.Name)
	require.Len(t, child.Events, 1)

	// mainEvents (tool-use + tool-result) + the sub-agent's own event.
	assert.Len(t, data.AllEvents, 3)
}

func TestDefaultSnapshotLoader_AllEventsGloballySortedByTimestamp(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "subagents")
	require.NoError(t, os.MkdirAll(subDir, 0o755))

	sessionPath := filepath.Join(dir, "sess-1.jsonl")
	mainContent := joinJSONL(
		taskToolUseLine("a1", "", "2024-01-01T00:00:00Z", "tu1", "run tests", "general-purpose"),
		taskToolResultLine("u1", "a1", "2024-01-01T00:05:00Z", "tu1", "agent-x"),
	)
	require.NoError(t, os.WriteFile(sessionPath, mainContent, 0o644))

	agentPath := filepath.Join(subDir, "agent-agent-x.jsonl")
	agentContent := joinJSONL(
		userTextLine("su1", "", "2024-01-01T00:01:00Z", "sub-agent ran in between"),
	)
	require.NoError(t, os.WriteFile(agentPath, agentContent, 0o644))

	loader := DefaultSnapshotLoader{}
	data, err := loader.LoadSnapshot(sessionPath, subDir)
	require.NoError(t, err)
	require.Len(t, data.AllEvents, 3)

	for i := 1; i < len(data.AllEvents); i++ {
		assert.False(t, data.AllEvents[i].Timestamp.Before(data.AllEvents[i-1].Timestamp),
			"AllEvents must be globally sorted by timestamp")
	}
}

func TestDefaultSnapshotLoader_MalformedLineIsFatal(t *testing.T) {
	dir := t.TempDir()
	sessionPath := filepath.Join(dir, "sess-1.jsonl")
	require.NoError(t, os.WriteFile(sessionPath, []byte("not json\n"), 0o644))

	loader := DefaultSnapshotLoader{}
	_, err := loader.LoadSnapshot(sessionPath, filepath.Join(dir, "subagents"))
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, parseErr.LineNumber)
}

func TestDiscoverAgentFiles_MatchesPatternOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent-a1.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent-a2.jsonl"), []byte("{}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files := discoverAgentFiles(dir)
	require.Len(t, files, 2)
	assert.Contains(t, files, "a1")
	assert.Contains(t, files, "a2")
}

func TestDiscoverAgentFiles_MissingDirReturnsEmpty(t *testing.T) {
	files := discoverAgentFiles(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Empty(t, files)
}
