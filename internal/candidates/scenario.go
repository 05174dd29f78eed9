package candidates

import (
	"context"
	"fmt"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// ScenarioGenerator produces the scenario stage's option batch, grounded
// on generators/stages/scenario.py.
type ScenarioGenerator struct {
	LM llm.Client
}

const scenarioSystemPrompt = `You write short, realistic classroom scenarios that set up a hands-on
project. Ground every scenario in the real world: no magic, sci-fi, or
time travel. Write for the stated grade level and duration.`

func (g *ScenarioGenerator) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error) {
	pc := promptctx.FromTask(task, domain.StageScenario)
	user := fmt.Sprintf(
		"Topic: %s\nGrade level: %s\nDuration (minutes): %d\nContext: %s\nFeedback: %s\n\nProduce exactly %d distinct scenario options, each a short paragraph.",
		pc.Topic, pc.GradeLevel, pc.DurationMinutes, pc.ContextSummary, orNone(feedback), count,
	)
	raw, err := g.LM.GenerateJSON(ctx, scenarioSystemPrompt, user, "scenario_options", textOptionsSchema)
	if err != nil {
		return nil, err
	}

	seed := promptctx.ToolSeed(task)
	applied := promptctx.AppliedConstraints(seed.Constraints)

	var opts []Option
	for _, item := range parseOptions(raw) {
		title, _ := item["title"].(string)
		text, _ := item["text"].(string)
		opts = append(opts, Option{
			Title:       title,
			PrimaryText: text,
			Content:     map[string]any{"scenario": text},
			DerivedFrom: []string{"tool_seed"},
			GenerationContext: domain.GenerationContext{
				BasedOn:            []string{"tool_seed"},
				ConstraintsApplied: toAnySlice(applied),
			},
		})
	}
	return opts, nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func toAnySlice(s []string) map[string]any {
	// ConstraintsApplied is typed as map[string]any in GenerationContext
	// for the stored-document shape; flatten the applied-constraint list
	// under a single "applied" key so it round-trips through JSON intact.
	return map[string]any{"applied": s}
}
