package tailer

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// summarizeToolUse renders a one-line description of a tool_use block's
// input, the same way the teacher's formatToolUse renders tool calls for
// display (SPEC_FULL.md §11 supplemented feature). Unrecognized tools fall
// back to "[Tool: name]".
func summarizeToolUse(name, inputRaw string) string {
	input := gjson.Parse(inputRaw)
	switch name {
	case "Read":
		path := input.Get("file_path").Str
		if path == "" {
			path = input.Get("path").Str
		}
		return fmt.Sprintf("[Read: %s]", path)
	case "Edit":
		return fmt.Sprintf("[Edit: %s]", input.Get("file_path").Str)
	case "Write":
		return fmt.Sprintf("[Write: %s]", input.Get("file_path").Str)
	case "Glob":
		return fmt.Sprintf("[Glob: %s]", input.Get("pattern").Str)
	case "Grep":
		return fmt.Sprintf("[Grep: %s]", input.Get("pattern").Str)
	case "Bash":
		cmd := input.Get("command").Str
		if desc := input.Get("description").Str; desc != "" {
			return fmt.Sprintf("[Bash: %s]\n$ %s", desc, cmd)
		}
		return fmt.Sprintf("[Bash]\n$ %s", cmd)
	case "Task":
		desc := input.Get("description").Str
		subagentType := input.Get("subagent_type").Str
		if resume := input.Get("resume").Str; resume != "" {
			return fmt.Sprintf("[Task: resume %s]", resume)
		}
		return fmt.Sprintf("[Task: %s (%s)]", desc, subagentType)
	default:
		return fmt.Sprintf("[Tool: %s]", name)
	}
}

// toolResultContentLength measures the textual size of a tool_result's
// content field, the same way the teacher's toolResultContentLength does:
// a string's own length, or the summed lengths of "text" blocks in an
// array.
func toolResultContentLength(contentRaw string) int {
	content := gjson.Parse(contentRaw)
	if content.Type == gjson.String {
		return len(content.Str)
	}
	if content.IsArray() {
		total := 0
		content.ForEach(func(_, block gjson.Result) bool {
			total += len(block.Get("text").Str)
			return true
		})
		return total
	}
	return len(contentRaw)
}

// toolResultOutputText renders the tool_result's content field as a flat
// string for the Event.Output field: the string itself, or "text" blocks
// joined with LF.
func toolResultOutputText(contentRaw string) string {
	content := gjson.Parse(contentRaw)
	if content.Type == gjson.String {
		return content.Str
	}
	if content.IsArray() {
		var parts []string
		content.ForEach(func(_, block gjson.Result) bool {
			if t := block.Get("text").Str; t != "" {
				parts = append(parts, t)
			}
			return true
		})
		out := ""
		for i, p := range parts {
			if i > 0 {
				out += "\n"
			}
			out += p
		}
		return out
	}
	return contentRaw
}
