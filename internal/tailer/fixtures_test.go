package tailer

import (
	"encoding/json"
	"strings"
)

// Fixture builders mirror the teacher's internal/testjsonl package: each
// returns one JSON line (no trailing newline) for a particular entry
// shape in this spec's transcript format.

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func joinJSONL(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func userTextLine(uuid, parentUUID, ts, text string) string {
	return mustMarshal(map[string]any{
		"type":       "user",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  ts,
		"sessionId":  "sess-1",
		"message": map[string]any{
			"role":    "user",
			"content": text,
		},
	})
}

func assistantTextLine(uuid, parentUUID, ts, text string) string {
	return mustMarshal(map[string]any{
		"type":       "assistant",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  ts,
		"sessionId":  "sess-1",
		"message": map[string]any{
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": text},
			},
		},
	})
}

func taskToolUseLine(uuid, parentUUID, ts, toolUseID, description, subagentType string) string {
	return mustMarshal(map[string]any{
		"type":       "assistant",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  ts,
		"sessionId":  "sess-1",
		"message": map[string]any{
			"role": "assistant",
			"content": []map[string]any{
				{
					"type": "tool_use",
					"id":   toolUseID,
					"name": "Task",
					"input": map[string]any{
						"description":   description,
						"subagent_type": subagentType,
					},
				},
			},
		},
	})
}

func taskToolResultLine(uuid, parentUUID, ts, toolUseID, agentID string) string {
	return mustMarshal(map[string]any{
		"type":       "user",
		"uuid":       uuid,
		"parentUuid": parentUUID,
		"timestamp":  ts,
		"sessionId":  "sess-1",
		"message": map[string]any{
			"role": "user",
			"content": []map[string]any{
				{
					"type":        "tool_result",
					"tool_use_id": toolUseID,
					"content":     "spawned",
				},
			},
		},
		"toolUseResult": map[string]any{
			"agentId": agentID,
		},
	})
}

func summaryLine(leafUUID, text string) string {
	return mustMarshal(map[string]any{
		"type":     "summary",
		"leafUuid": leafUUID,
		"summary":  text,
	})
}
