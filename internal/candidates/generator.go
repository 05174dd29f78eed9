package candidates

import (
	"context"
	"fmt"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// Option is one raw candidate option as produced (or re-produced) by a
// stage's underlying model call, before ids are assigned and before it is
// wrapped into a domain.Candidate.
type Option struct {
	Title             string
	PrimaryText       string
	Content           map[string]any
	Rationale         string
	DerivedFrom       []string
	GenerationContext domain.GenerationContext
}

// Generator is the duck-typed per-stage protocol (spec.md §4.7): given a
// task and a desired count, produce that many raw options. feedback, when
// non-empty, steers the next batch (a regenerate action, or the internal
// force_rewrite retry).
type Generator interface {
	Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]Option, error)
}

// Registry maps each stage to its Generator. Built at orchestrator
// construction (spec.md §4.7 REDESIGN FLAGS: "avoid a registry global;
// inject the map"), never as a package-level var.
type Registry map[domain.StageType]Generator

func (r Registry) Get(stage domain.StageType) (Generator, error) {
	g, ok := r[stage]
	if !ok {
		return nil, fmt.Errorf("candidates: no generator registered for stage %q", stage)
	}
	return g, nil
}

// stageKey maps a StageType to the content-map key its candidates store
// their primary text under.
func stageKey(stage domain.StageType) string {
	return string(stage)
}

// idForIndex assigns candidate ids A, B, C... in emission order.
func idForIndex(i int) string {
	return string(rune('A' + i))
}

func buildContent(stage domain.StageType, opt Option) map[string]any {
	content := make(map[string]any, len(opt.Content)+1)
	for k, v := range opt.Content {
		content[k] = v
	}
	if _, ok := content[stageKey(stage)]; !ok && opt.PrimaryText != "" {
		content[stageKey(stage)] = opt.PrimaryText
	}
	return content
}

func toCandidate(stage domain.StageType, index int, opt Option, ctx promptctx.Context) domain.Candidate {
	id := idForIndex(index)
	title := opt.Title
	if title == "" {
		title = fmt.Sprintf("%s option %s", stage, id)
	}
	return domain.Candidate{
		ID:                id,
		Title:             title,
		Status:            domain.CandidateGenerated,
		Content:           buildContent(stage, opt),
		Rationale:         opt.Rationale,
		DerivedFrom:       opt.DerivedFrom,
		AlignmentScore:    0,
		GenerationContext: opt.GenerationContext,
	}
}
