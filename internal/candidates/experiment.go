package candidates

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// ExperimentGenerator produces the experiment stage's option batch,
// grounded on generators/stages/experiment.py.
type ExperimentGenerator struct {
	LM llm.Client
}

const experimentSystemPrompt = `You design a culminating hands-on experiment that lets students test and
showcase what the activity built, appropriate to the classroom mode.`

func (g *ExperimentGenerator) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error) {
	drivingQuestion := selectedText(task, domain.StageDrivingQuestion, "driving_question")
	activitySummary := selectedText(task, domain.StageActivity, "activity")
	pc := promptctx.FromTask(task, domain.StageExperiment)

	var safety []string
	if list, ok := pc.KnowledgeSnippets["safety_constraints"].([]any); ok {
		for _, s := range list {
			if str, ok := s.(string); ok {
				safety = append(safety, str)
			}
		}
	}
	classroomContext := pc.ClassroomContext
	if classroomContext == "" {
		classroomContext = "standard classroom"
	}

	user := fmt.Sprintf(
		"Topic: %s\nGrade level: %s\nDriving question: %s\nActivity summary: %s\nContext: %s\nSafety constraints:\n%s\nClassroom mode: %s\nClassroom context: %s\nFeedback: %s\n\nProduce exactly %d distinct experiment plans.",
		pc.Topic, pc.GradeLevel, drivingQuestion, activitySummary, pc.ContextSummary,
		strings.Join(safety, "\n"), pc.ClassroomMode, classroomContext, orNone(feedback), count,
	)
	raw, err := g.LM.GenerateJSON(ctx, experimentSystemPrompt, user, "experiment_options", textOptionsSchema)
	if err != nil {
		return nil, err
	}

	seed := promptctx.ToolSeed(task)
	applied := promptctx.AppliedConstraints(seed.Constraints)
	derivedFrom := []string{"activity"}
	if drivingQuestion != "" {
		derivedFrom = append(derivedFrom, "driving_question")
	}
	if task.EntryPoint == domain.EntryToolSeed {
		derivedFrom = append(derivedFrom, "tool_seed")
	}

	var opts []Option
	for _, item := range parseOptions(raw) {
		title, _ := item["title"].(string)
		text, _ := item["text"].(string)
		opts = append(opts, Option{
			Title:       title,
			PrimaryText: text,
			Content:     map[string]any{"experiment": text},
			DerivedFrom: derivedFrom,
			GenerationContext: domain.GenerationContext{
				BasedOn:            derivedFrom,
				ConstraintsApplied: toAnySlice(applied),
			},
		})
	}
	return opts, nil
}
