package chatentry

import "github.com/riverglen/coursecraft/internal/domain"

// ExtractToolSeed builds a domain.ToolSeed from a chat payload's raw
// fields, applying intake normalization (duration, classroom_mode) to the
// constraints map. Grounded on utils/intake.py's tool_seed assembly.
func ExtractToolSeed(raw map[string]any) domain.ToolSeed {
	seed := domain.ToolSeed{Constraints: map[string]any{}}

	if v, ok := raw["tool_name"].(string); ok {
		seed.ToolName = v
	}
	if v, ok := raw["user_intent"].(string); ok {
		seed.UserIntent = v
	}
	seed.Algorithms = stringList(raw["algorithms"])
	seed.Affordances = stringList(raw["affordances"])

	constraints, _ := raw["constraints"].(map[string]any)
	if constraints == nil {
		constraints = map[string]any{}
	}

	durationMinutes := intField(constraints[domain.ConstraintDuration])
	lessonCount := intField(raw["lesson_count"])
	if normalized := NormalizeDuration(durationMinutes, lessonCount); normalized > 0 {
		constraints[domain.ConstraintDuration] = normalized
	}

	if classroomType, ok := raw["classroom_type"].(string); ok && classroomType != "" {
		constraints[domain.ConstraintClassroomMode] = NormalizeClassroomMode(classroomType)
	} else if mode, ok := constraints[domain.ConstraintClassroomMode].(string); ok {
		constraints[domain.ConstraintClassroomMode] = NormalizeClassroomMode(mode)
	}

	seed.Constraints = constraints
	return seed
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intField(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
