package candidates

// JSON schemas for the structured-output LM calls each stage generator
// issues. Shaped as {"options": [...]} per spec.md §4.7's "tolerate
// payloads wrapped in {options:[...]}" parsing note — we ask for that
// shape directly instead of needing the tolerant-parsing fallback for the
// happy path.

var textOptionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"options": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{"type": "string"},
					"text":  map[string]any{"type": "string"},
				},
				"required":             []string{"title", "text"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"options"},
	"additionalProperties": false,
}

var drivingQuestionOptionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"options": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"driving_question": map[string]any{"type": "string"},
					"question_chain": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required":             []string{"driving_question", "question_chain"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"options"},
	"additionalProperties": false,
}

var questionChainOptionsSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"options": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question_chain": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required":             []string{"question_chain"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"options"},
	"additionalProperties": false,
}

func parseOptions(raw map[string]any) []map[string]any {
	list, _ := raw["options"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
