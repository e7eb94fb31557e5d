package tailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines_BasicAndCarry(t *testing.T) {
	lines, carry := SplitLines(nil, []byte("a\nb\nc"))
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.Equal(t, []byte("c"), carry)

	lines, carry = SplitLines(carry, []byte("ontinued\n"))
	assert.Equal(t, []string{"continued"}, lines)
	assert.Empty(t, carry)
}

func TestSplitLines_ArbitraryBoundaries(t *testing.T) {
	full := "alpha\nbravo\ncharlie\ndelta\n"
	for split := 0; split <= len(full); split++ {
		var carry []byte
		var got []string
		first, second := full[:split], full[split:]
		l1, c1 := SplitLines(carry, []byte(first))
		got = append(got, l1...)
		l2, _ := SplitLines(c1, []byte(second))
		got = append(got, l2...)
		assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, got,
			"split at byte %d", split)
	}
}

func TestSplitLines_StripsCRAndFiltersEmpty(t *testing.T) {
	lines, carry := SplitLines(nil, []byte("a\r\n\n\nb\r\n"))
	assert.Equal(t, []string{"a", "b"}, lines)
	assert.Empty(t, carry)
}

func TestSplitLines_InvalidUTF8Replaced(t *testing.T) {
	lines, _ := SplitLines(nil, []byte("bad \xff\xfe end\n"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "�")
}

func TestParseLines_JSONAndSchemaErrors(t *testing.T) {
	lines := []string{
		userTextLine("u1", "", "2024-01-01T00:00:00Z", "hi"),
		"not json",
		`{"type":"user","message":{"role":"bogus","content":"x"}}`,
	}
	entries, errs := ParseLines(lines, "/tmp/s.jsonl", 1)
	require.Len(t, entries, 1)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "JSON parse failed")
	assert.Equal(t, 2, errs[0].AbsoluteLineNumber)
	assert.Contains(t, errs[1].Message, "Schema validation failed")
	assert.Equal(t, 3, errs[1].AbsoluteLineNumber)
}

func TestParseLines_SkipsBlankLinesButCountsThem(t *testing.T) {
	lines := []string{
		"",
		"   ",
		userTextLine("u1", "", "2024-01-01T00:00:00Z", "hi"),
	}
	entries, errs := ParseLines(lines, "/tmp/s.jsonl", 1)
	require.Empty(t, errs)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].AbsLine)
}

func TestNormalizeToolUseResult(t *testing.T) {
	entries, _ := ParseLines([]string{
		`{"type":"user","uuid":"u1","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hi"},"toolUseResult":"ignored"}`,
		`{"type":"user","uuid":"u2","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hi"},"toolUseResult":{"agentId":"a1"}}`,
		`{"type":"user","uuid":"u3","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hi"},"toolUseResult":[{"agentId":"a2"}]}`,
		`{"type":"user","uuid":"u4","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"hi"},"toolUseResult":[]}`,
	}, "/tmp/s.jsonl", 1)
	require.Len(t, entries, 4)
	assert.False(t, entries[0].ToolUseResult.Present)
	assert.True(t, entries[1].ToolUseResult.Present)
	assert.Equal(t, "a1", entries[1].ToolUseResult.AgentID)
	assert.True(t, entries[2].ToolUseResult.Present)
	assert.Equal(t, "a2", entries[2].ToolUseResult.AgentID)
	assert.False(t, entries[3].ToolUseResult.Present)
}
