package tailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeToolUse(t *testing.T) {
	cases := []struct {
		name, input, want string
	}{
		{"Read", `{"file_path":"/a/b.go"}`, "[Read: /a/b.go]"},
		{"Read", `{"path":"/a/b.go"}`, "[Read: /a/b.go]"},
		{"Edit", `{"file_path":"/a/b.go"}`, "[Edit: /a/b.go]"},
		{"Write", `{"file_path":"/a/b.go"}`, "[Write: /a/b.go]"},
		{"Glob", `{"pattern":"**/*.go"}`, "[Glob: **/*.go]"},
		{"Grep", `{"pattern":"TODO"}`, "[Grep: TODO]"},
		{"Bash", `{"command":"ls -la","description":"list files"}`, "[Bash: list files]\n$ ls -la"},
		{"Bash", `{"command":"ls -la"}`, "[Bash]\n$ ls -la"},
		{"Task", `{"description":"run tests","subagent_type":"general-purpose"}`, "[Task: run tests (general-purpose)]"},
		{"Task", `{"resume":"agent-x"}`, "[Task: resume agent-x]"},
		{"WebFetch", `{"url":"https://example.com"}`, "[Tool: WebFetch]"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, summarizeToolUse(c.name, c.input), "tool=%s", c.name)
	}
}

func TestToolResultContentLength_StringAndArray(t *testing.T) {
	assert.Equal(t, 5, toolResultContentLength(`"hello"`))
	assert.Equal(t, 8, toolResultContentLength(`[{"type":"text","text":"abc"},{"type":"text","text":"defgh"}]`))
}

func TestToolResultOutputText_StringAndArray(t *testing.T) {
	assert.Equal(t, "hello", toolResultOutputText(`"hello"`))
	assert.Equal(t, "abc\ndefgh", toolResultOutputText(`[{"type":"text","text":"abc"},{"type":"text","text":"defgh"}]`))
}

func TestToolResultOutputText_SkipsBlockWithoutText(t *testing.T) {
	assert.Equal(t, "abc", toolResultOutputText(`[{"type":"image"},{"type":"text","text":"abc"}]`))
}
