package tailer

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// LineError is a per-line parse or validation failure (spec.md §4.1).
// Captured rather than aborting the batch; surfaced to subscribers as a
// `warning` message (spec.md §7).
type LineError struct {
	AbsoluteLineNumber int
	Message            string
}

func (e LineError) Error() string { return e.Message }

func jsonParseError(path string, line int) LineError {
	return LineError{
		AbsoluteLineNumber: line,
		Message:            fmt.Sprintf("%s:%d: JSON parse failed", path, line),
	}
}

func schemaError(path string, line int, detail string) LineError {
	msg := fmt.Sprintf("%s:%d: Schema validation failed", path, line)
	if detail != "" {
		msg += ": " + detail
	}
	return LineError{AbsoluteLineNumber: line, Message: msg}
}

// validateSchema checks the structural rules the splitter is responsible
// for (spec.md §4.1): a "kind" field must be present, and when a "message"
// object is present its "role" must be "user" or "assistant". It does NOT
// enforce the narrower {user, assistant, summary} enumeration — that
// enumeration belongs to the Incremental Parser, which silently drops
// entries of unrecognized kind (spec.md §4.1, §4.2 "Entries whose kind is
// none of {user, assistant, summary} are dropped").
func validateSchema(raw string) (detail string, ok bool) {
	kind := gjson.Get(raw, "type")
	if !kind.Exists() || kind.Type != gjson.String || kind.Str == "" {
		return "missing or invalid \"type\" field", false
	}

	msg := gjson.Get(raw, "message")
	if msg.Exists() && msg.IsObject() {
		role := msg.Get("role")
		if role.Exists() {
			if role.Type != gjson.String ||
				(role.Str != "user" && role.Str != "assistant") {
				return "message.role must be \"user\" or \"assistant\"", false
			}
		}
	}

	return "", true
}
