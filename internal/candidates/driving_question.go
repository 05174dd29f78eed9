package candidates

import (
	"context"
	"fmt"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// DrivingQuestionGenerator produces the driving_question stage's option
// batch, grounded on generators/stages/driving_question.py.
type DrivingQuestionGenerator struct {
	LM llm.Client
}

const drivingQuestionSystemPrompt = `You turn a classroom scenario into an open-ended driving question plus
exactly three investigable sub-questions that scaffold toward it.`

func (g *DrivingQuestionGenerator) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error) {
	scenario := selectedText(task, domain.StageScenario, "scenario")
	pc := promptctx.FromTask(task, domain.StageDrivingQuestion)
	user := fmt.Sprintf(
		"Scenario: %s\nGrade level: %s\nContext: %s\nFeedback: %s\n\nProduce exactly %d distinct options, each a driving question with exactly three sub-questions.",
		scenario, pc.GradeLevel, pc.ContextSummary, orNone(feedback), count,
	)
	raw, err := g.LM.GenerateJSON(ctx, drivingQuestionSystemPrompt, user, "driving_question_options", drivingQuestionOptionsSchema)
	if err != nil {
		return nil, err
	}

	seed := promptctx.ToolSeed(task)
	applied := promptctx.AppliedConstraints(seed.Constraints)

	var opts []Option
	for _, item := range parseOptions(raw) {
		dq, _ := item["driving_question"].(string)
		chain, _ := item["question_chain"].([]any)
		opts = append(opts, Option{
			Title:       dq,
			PrimaryText: dq,
			Content: map[string]any{
				"driving_question": dq,
				"question_chain":   chain,
			},
			DerivedFrom: []string{"scenario"},
			GenerationContext: domain.GenerationContext{
				BasedOn:            []string{"scenario"},
				ConstraintsApplied: toAnySlice(applied),
			},
		})
	}
	return opts, nil
}

// selectedText returns the primary text of stage's currently selected
// candidate, falling back to entry_data for the scenario stage when the
// task started from a raw chat-entered scenario string.
func selectedText(task *domain.Task, stage domain.StageType, key string) string {
	artifact := task.Artifact(stage)
	if artifact != nil {
		if sel := artifact.SelectedCandidate(); sel != nil {
			if v, ok := sel.Content[key].(string); ok && v != "" {
				return v
			}
		}
	}
	if stage == domain.StageScenario && task.EntryData != nil {
		switch v := task.EntryData["scenario"].(type) {
		case string:
			return v
		case map[string]any:
			if s, ok := v["scenario"].(string); ok {
				return s
			}
		}
	}
	return ""
}
