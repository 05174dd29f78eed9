package candidates

import (
	"context"
	"fmt"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// QuestionChainGenerator produces the question_chain stage's option
// batch, grounded on generators/stages/question_chain.py. Used only when a
// task wants alternative sub-question chains for an already-selected
// driving question, independent of the chain the driving_question
// candidate itself proposed.
type QuestionChainGenerator struct {
	LM llm.Client
}

const questionChainSystemPrompt = `You write alternative three-question investigation chains that scaffold
toward a given driving question.`

func (g *QuestionChainGenerator) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error) {
	drivingQuestion := selectedText(task, domain.StageDrivingQuestion, "driving_question")
	pc := promptctx.FromTask(task, domain.StageQuestionChain)
	user := fmt.Sprintf(
		"Driving question: %s\nGrade level: %s\nContext: %s\nFeedback: %s\n\nProduce exactly %d distinct options, each exactly three sub-questions.",
		drivingQuestion, pc.GradeLevel, pc.ContextSummary, orNone(feedback), count,
	)
	raw, err := g.LM.GenerateJSON(ctx, questionChainSystemPrompt, user, "question_chain_options", questionChainOptionsSchema)
	if err != nil {
		return nil, err
	}

	seed := promptctx.ToolSeed(task)
	applied := promptctx.AppliedConstraints(seed.Constraints)

	var opts []Option
	for _, item := range parseOptions(raw) {
		chain, _ := item["question_chain"].([]any)
		title := ""
		if len(chain) > 0 {
			title, _ = chain[0].(string)
		}
		primary := ""
		for _, q := range chain {
			if s, ok := q.(string); ok {
				primary += s + " "
			}
		}
		opts = append(opts, Option{
			Title:       title,
			PrimaryText: primary,
			Content:     map[string]any{"question_chain": chain},
			DerivedFrom: []string{"driving_question"},
			GenerationContext: domain.GenerationContext{
				BasedOn:            []string{"driving_question"},
				ConstraintsApplied: toAnySlice(applied),
			},
		})
	}
	return opts, nil
}
