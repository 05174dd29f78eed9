// Package validators implements spec.md §4.8: the non-empty warning and
// the activity-alignment conflict pipeline, grounded on
// validators/simple.py and validators/activity_alignment.py.
package validators

import (
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
)

// Result mirrors the original's ValidationResult: warnings for soft
// issues, conflicts for anything that needs user resolution.
type Result struct {
	Warnings  []string
	Conflicts []domain.Conflict
}

// NonEmpty emits a warning when a stage's generation produced zero
// candidates.
func NonEmpty(candidates []domain.Candidate) Result {
	if len(candidates) == 0 {
		return Result{Warnings: []string{"No candidates generated."}}
	}
	return Result{}
}

// ActivityAlignment checks the currently selected activity candidate
// against tool_seed's topic/tool_constraints and the selected question
// chain. Only meaningful when stage=activity and entry_point=tool_seed
// (spec.md §4.8); callers are responsible for that gate.
func ActivityAlignment(seed domain.ToolSeed, questionChain []string, activityText string, conflictID string) Result {
	constraints := seed.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}
	topic, _ := constraints[domain.ConstraintTopic].(string)
	if topic == "" {
		topic = seed.UserIntent
	}
	if topic == "" {
		topic = seed.ToolName
	}

	var warnings []string
	missingTopic := topic != "" && !strings.Contains(activityText, topic)
	if missingTopic {
		warnings = append(warnings, "Activity does not mention the topic keyword.")
	}

	missingChain := false
	if len(questionChain) > 0 {
		hit := false
		for _, q := range questionChain {
			if q != "" && strings.Contains(activityText, q) {
				hit = true
				break
			}
		}
		if !hit && hasSubQuestionMarkers(activityText) {
			hit = true
		}
		if !hit {
			missingChain = true
			warnings = append(warnings, "Activity does not reflect the question chain.")
		}
	}

	toolConstraints, _ := constraints[domain.ConstraintToolConstraints].(string)
	missingConstraints := toolConstraints != "" && !strings.Contains(activityText, toolConstraints)
	if missingConstraints {
		warnings = append(warnings, "Activity does not mention tool constraints.")
	}

	if len(warnings) == 0 {
		return Result{}
	}

	var severity domain.ConflictSeverity
	switch {
	case missingTopic && missingChain:
		severity = domain.SeverityBlocking
	case missingTopic || missingChain:
		severity = domain.SeverityWarning
	default:
		// Only the tool-constraints check tripped: spec.md's fixed
		// resolution of this case is "info", not "warning".
		severity = domain.SeverityInfo
	}

	conflict := domain.Conflict{
		ConflictID: conflictID,
		Stage:      domain.StageActivity,
		Severity:   severity,
		Summary:    "Activity alignment with tool_seed/question_chain is insufficient.",
		Warnings:   warnings,
		ConflictOptions: []domain.ConflictOption{
			{OptionKey: "A", Title: "Adjust tool_seed parameters", Description: "Modify tool_seed topic, constraints, or context to fit the activity."},
			{OptionKey: "B", Title: "Select a different question chain", Description: "Choose or regenerate a question_chain that matches the activity."},
			{OptionKey: "C", Title: "Generate a compromise plan", Description: "Produce a compromise plan and note the trade-offs."},
		},
		Recommendation: "Align the question chain and topic first, then refine activity details.",
	}
	return Result{Conflicts: []domain.Conflict{conflict}}
}

var subQuestionMarkerGroups = [][]string{
	{"子问题1", "Sub-question 1", "Q1"},
	{"子问题2", "Sub-question 2", "Q2"},
	{"子问题3", "Sub-question 3", "Q3"},
}

func hasSubQuestionMarkers(text string) bool {
	for _, group := range subQuestionMarkerGroups {
		found := false
		for _, token := range group {
			if strings.Contains(text, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
