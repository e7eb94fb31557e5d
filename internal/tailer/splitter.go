package tailer

import (
	"bytes"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SplitLines splits data accumulated from carry+chunk on LF (0x0A),
// returning every newline-terminated line found and the trailing
// fragment (without a terminating newline) as the new carry buffer
// (spec.md §4.1, I8). CR bytes are stripped from emitted lines. Empty
// lines (after CR stripping) are filtered. Invalid UTF-8 is replaced
// with the Unicode replacement character, mirroring "the platform's
// default" decoding behavior spec.md calls for.
//
// carry is never mutated; the returned newCarry is a fresh slice, so
// callers may safely reuse the chunk buffer they passed in.
func SplitLines(carry, chunk []byte) (lines []string, newCarry []byte) {
	combined := make([]byte, 0, len(carry)+len(chunk))
	combined = append(combined, carry...)
	combined = append(combined, chunk...)

	start := 0
	for {
		nl := bytes.IndexByte(combined[start:], '\n')
		if nl < 0 {
			break
		}
		raw := combined[start : start+nl]
		start += nl + 1

		raw = bytes.ReplaceAll(raw, []byte{'\r'}, nil)
		if len(raw) == 0 {
			continue
		}
		line := strings.ToValidUTF8(string(raw), "�")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	newCarry = append([]byte(nil), combined[start:]...)
	return lines, newCarry
}

// ParseLines converts raw lines into validated LogEntry values
// (spec.md §4.1). It never fails the batch: per-line JSON or schema
// errors are captured in the returned slice and parsing continues.
// startLineNumber is the absolute line number of lines[0]; blank or
// whitespace-only lines are skipped silently but still advance the
// line counter, since they occupy a real line in the source file.
func ParseLines(
	lines []string, filePath string, startLineNumber int,
) ([]LogEntry, []LineError) {
	var entries []LogEntry
	var errs []LineError

	lineNo := startLineNumber - 1
	for _, raw := range lines {
		lineNo++

		if strings.TrimSpace(raw) == "" {
			continue
		}

		if !gjson.Valid(raw) {
			errs = append(errs, jsonParseError(filePath, lineNo))
			continue
		}

		if detail, ok := validateSchema(raw); !ok {
			errs = append(errs, schemaError(filePath, lineNo, detail))
			continue
		}

		entries = append(entries, buildLogEntry(raw, filePath, lineNo))
	}

	return entries, errs
}

// buildLogEntry converts one schema-valid JSON line into a LogEntry.
// Called only after validateSchema has passed, so "type" is a
// non-empty string and any "message.role" is well-formed.
func buildLogEntry(raw, filePath string, lineNo int) LogEntry {
	e := LogEntry{
		Kind:       EntryKind(gjson.Get(raw, "type").Str),
		UUID:       gjson.Get(raw, "uuid").Str,
		LeafUUID:   gjson.Get(raw, "leafUuid").Str,
		ParentUUID: gjson.Get(raw, "parentUuid").Str,
		SessionID:  gjson.Get(raw, "sessionId").Str,
		AgentID:    gjson.Get(raw, "agentId").Str,
		AbsLine:    lineNo,
		SourcePath: filePath,
	}

	if ts := gjson.Get(raw, "timestamp"); ts.Exists() && ts.Str != "" {
		if parsed, err := time.Parse(time.RFC3339, ts.Str); err == nil {
			e.Timestamp = parsed
			e.HasTimestamp = true
		}
	}

	if msg := gjson.Get(raw, "message"); msg.Exists() && msg.IsObject() {
		e.HasMessage = true
		e.MessageRole = msg.Get("role").Str
		content := msg.Get("content")
		switch {
		case content.Type == gjson.String:
			e.MessageIsString = true
			e.MessageText = content.Str
		case content.IsArray():
			e.ContentItems = parseContentItems(content)
		}
	}

	// "summary" entries carry their text in a top-level "summary"
	// field rather than "message.content" (spec.md §3).
	if e.Kind == KindSummary {
		e.MessageText = gjson.Get(raw, "summary").Str
	}

	obj, present := normalizeToolUseResult(gjson.Get(raw, "toolUseResult"))
	e.ToolUseResult = ToolUseResult{Present: present}
	if present {
		e.ToolUseResult.Raw = obj.Raw
		e.ToolUseResult.AgentID = obj.Get("agentId").Str
	}

	return e
}

// normalizeToolUseResult implements the normalization rule in spec.md
// §4.2: undefined -> undefined; string -> undefined (ignored); a
// sequence -> its first element; an object -> itself.
func normalizeToolUseResult(v gjson.Result) (obj gjson.Result, present bool) {
	if !v.Exists() {
		return gjson.Result{}, false
	}
	switch {
	case v.Type == gjson.String:
		return gjson.Result{}, false
	case v.IsArray():
		arr := v.Array()
		if len(arr) == 0 || !arr[0].IsObject() {
			return gjson.Result{}, false
		}
		return arr[0], true
	case v.IsObject():
		return v, true
	default:
		return gjson.Result{}, false
	}
}

// parseContentItems extracts the ordered content-block sequence from
// an assistant or user message, following the same block-type switch
// the teacher's ExtractTextContent uses (text/thinking/tool_use/
// tool_result), but returning structured items rather than rendered
// text — event construction is the Incremental Parser's job.
func parseContentItems(content gjson.Result) []ContentItem {
	var items []ContentItem
	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").Str {
		case "text":
			items = append(items, ContentItem{
				Type: ContentText,
				Text: block.Get("text").Str,
			})
		case "thinking":
			items = append(items, ContentItem{
				Type: ContentThinking,
				Text: block.Get("thinking").Str,
			})
		case "tool_use":
			items = append(items, ContentItem{
				Type:      ContentToolUse,
				ToolUseID: block.Get("id").Str,
				ToolName:  block.Get("name").Str,
				InputRaw:  block.Get("input").Raw,
			})
		case "tool_result":
			items = append(items, ContentItem{
				Type:            ContentToolResult,
				ToolResultForID: block.Get("tool_use_id").Str,
				ToolResultRaw:   block.Get("content").Raw,
				IsError:         block.Get("is_error").Bool(),
			})
		}
		return true
	})
	return items
}
