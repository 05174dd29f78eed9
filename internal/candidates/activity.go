package candidates

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// ActivityGenerator produces the activity stage's option batch, grounded
// on generators/stages/activity.py (including its duration-bucket
// guidance table).
type ActivityGenerator struct {
	LM llm.Client
}

const activitySystemPrompt = `You design hands-on classroom activities that investigate a question
chain within a fixed class duration. Respect safety constraints and the
stated classroom mode.`

func (g *ActivityGenerator) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error) {
	drivingQuestion := selectedText(task, domain.StageDrivingQuestion, "driving_question")
	questionChain := selectedQuestionChain(task)
	pc := promptctx.FromTask(task, domain.StageActivity)

	var safety []string
	if list, ok := pc.KnowledgeSnippets["safety_constraints"].([]any); ok {
		for _, s := range list {
			if str, ok := s.(string); ok {
				safety = append(safety, str)
			}
		}
	}

	user := fmt.Sprintf(
		"Driving question: %s\nQuestion chain:\n%s\nGrade level: %s\nDuration (minutes): %d\nDuration guidelines:\n%s\nSafety constraints:\n%s\nTool constraints: %s\nContext: %s\nFeedback: %s\n\nProduce exactly %d distinct activity plans.",
		drivingQuestion,
		numberedList(questionChain),
		pc.GradeLevel,
		pc.DurationMinutes,
		durationGuidelines(pc.DurationMinutes),
		strings.Join(safety, "\n"),
		pc.ToolConstraints,
		pc.ContextSummary,
		orNone(feedback),
		count,
	)
	raw, err := g.LM.GenerateJSON(ctx, activitySystemPrompt, user, "activity_options", textOptionsSchema)
	if err != nil {
		return nil, err
	}

	seed := promptctx.ToolSeed(task)
	applied := promptctx.AppliedConstraints(seed.Constraints)
	derivedFrom := []string{"question_chain"}
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
			Content:     map[string]any{"activity": text},
			DerivedFrom: derivedFrom,
			GenerationContext: domain.GenerationContext{
				BasedOn:            []string{"question_chain"},
				ConstraintsApplied: toAnySlice(applied),
			},
		})
	}
	return opts, nil
}

func selectedQuestionChain(task *domain.Task) []string {
	if artifact := task.Artifact(domain.StageQuestionChain); artifact != nil {
		if sel := artifact.SelectedCandidate(); sel != nil {
			return stringsFromAny(sel.Content["question_chain"])
		}
	}
	if artifact := task.Artifact(domain.StageDrivingQuestion); artifact != nil {
		if sel := artifact.SelectedCandidate(); sel != nil {
			return stringsFromAny(sel.Content["question_chain"])
		}
	}
	return nil
}

func stringsFromAny(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func numberedList(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i >= 3 {
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return sb.String()
}

// durationGuidelines mirrors activity.py's _duration_guidelines bucket
// table: 80-minute two-session blocks get their own layout, otherwise a
// three-tier bucket by total minutes.
func durationGuidelines(duration int) string {
	switch {
	case duration == 80:
		return "- Total: 80 minutes (two sessions, 40+40)\n" +
			"- Session 1: Activity 1 + Activity 2 (with outputs)\n" +
			"- Session 2: Activity 3 + Experiment + Showcase\n" +
			"- Must map three activities to three sub-questions"
	case duration <= 45:
		return "- Total: 45 minutes\n" +
			"- Suggested: Intro(5) + Explore(15) + Practice(15) + Wrap-up(10)\n" +
			"- Include at least one hands-on segment"
	case duration <= 90:
		return "- Total: 90 minutes\n" +
			"- Suggested: Intro(10) + Explore(20) + Practice(30) + Showcase(20) + Wrap-up(10)\n" +
			"- Include at least one full experiment and one showcase"
	default:
		return fmt.Sprintf(
			"- Total: %d minutes\n"+
				"- Suggested: Intro(10) + Explore(25) + Practice(40) + Showcase(30) + Wrap-up(15)\n"+
				"- Include a full explore-practice-showcase flow",
			duration,
		)
	}
}
