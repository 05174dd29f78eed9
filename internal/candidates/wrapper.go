package candidates

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/promptctx"
)

// maxRewriteRetries is the per-slot force_rewrite retry budget (spec.md
// §4.7.1: "Up to 2 retries per slot").
const maxRewriteRetries = 2

// ErrDuplicateCandidates and ErrInsufficientCandidates are the two terminal
// failure modes of the distinctness wrapper (spec.md §4.7.1).
var (
	ErrDuplicateCandidates    = fmt.Errorf("duplicate candidates detected")
	ErrInsufficientCandidates = fmt.Errorf("insufficient candidates")
)

// DiversityWrapper enforces distinctness, scenario realism, and
// question-chain shape over a Generator's raw output before it is turned
// into domain.Candidates (spec.md §4.7.1-4.7.3).
type DiversityWrapper struct {
	Stage     domain.StageType
	Inner     Generator
	Blocklist []string
}

func (w *DiversityWrapper) Generate(ctx context.Context, task *domain.Task, count int, feedback string) ([]domain.Candidate, error) {
	promptCtx := promptctx.FromTask(task, w.Stage)
	seen := append([]string(nil), promptCtx.AvoidList...)

	batch, err := w.Inner.Generate(ctx, task, count, feedback)
	if err != nil {
		return nil, err
	}
	batch = w.enforceShape(batch)

	var accepted []Option
	for _, opt := range batch {
		opt, err := w.replaceUntilUnique(ctx, task, opt, feedback, &seen)
		if err != nil {
			return nil, err
		}
		accepted = append(accepted, opt)
		seen = append(seen, opt.PrimaryText)
	}

	accepted, err = w.topUp(ctx, task, accepted, count, feedback, &seen)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(accepted))
	for i, opt := range accepted {
		candidates = append(candidates, toCandidate(w.Stage, i, opt, promptCtx))
	}
	return candidates, nil
}

// replaceUntilUnique retries a single slot up to maxRewriteRetries times
// with force_rewrite feedback until its text clears both the distinctness
// and (for scenario) realism checks.
func (w *DiversityWrapper) replaceUntilUnique(ctx context.Context, task *domain.Task, opt Option, feedback string, seen *[]string) (Option, error) {
	for attempt := 0; attempt <= maxRewriteRetries; attempt++ {
		if !IsDuplicate(opt.PrimaryText, *seen) && w.passesRealism(opt.PrimaryText) {
			return opt, nil
		}
		if attempt == maxRewriteRetries {
			return Option{}, ErrDuplicateCandidates
		}
		rewriteFeedback := appendForceRewrite(feedback)
		replacements, err := w.Inner.Generate(ctx, task, 1, rewriteFeedback)
		if err != nil {
			return Option{}, err
		}
		replacements = w.enforceShape(replacements)
		if len(replacements) == 0 {
			return Option{}, ErrDuplicateCandidates
		}
		opt = replacements[0]
	}
	return Option{}, ErrDuplicateCandidates
}

// topUp regenerates one option at a time, growing the avoid list, until
// accepted reaches count or the hard retry budget runs out.
func (w *DiversityWrapper) topUp(ctx context.Context, task *domain.Task, accepted []Option, count int, feedback string, seen *[]string) ([]Option, error) {
	budget := maxRewriteRetries * count
	for len(accepted) < count {
		if budget <= 0 {
			return nil, ErrInsufficientCandidates
		}
		budget--

		replacements, err := w.Inner.Generate(ctx, task, 1, appendForceRewrite(feedback))
		if err != nil {
			return nil, err
		}
		replacements = w.enforceShape(replacements)
		if len(replacements) == 0 {
			continue
		}
		opt := replacements[0]
		if IsDuplicate(opt.PrimaryText, *seen) || !w.passesRealism(opt.PrimaryText) {
			continue
		}
		accepted = append(accepted, opt)
		*seen = append(*seen, opt.PrimaryText)
	}
	return accepted, nil
}

func (w *DiversityWrapper) passesRealism(text string) bool {
	if w.Stage != domain.StageScenario {
		return true
	}
	return FindUnrealisticTerm(text, w.Blocklist) == ""
}

func appendForceRewrite(feedback string) string {
	hint := "rewrite with a clearly different angle"
	if strings.TrimSpace(feedback) == "" {
		return hint
	}
	return feedback + "; " + hint
}

// enforceShape pads or truncates driving_question / question_chain
// candidates to exactly three sub-questions (spec.md §4.7.3).
func (w *DiversityWrapper) enforceShape(batch []Option) []Option {
	if w.Stage != domain.StageDrivingQuestion && w.Stage != domain.StageQuestionChain {
		return batch
	}
	for i := range batch {
		chain, _ := batch[i].Content["question_chain"].([]any)
		strs := make([]string, 0, len(chain))
		for _, c := range chain {
			if s, ok := c.(string); ok {
				strs = append(strs, s)
			}
		}
		if len(strs) > 3 {
			strs = strs[:3]
		}
		for len(strs) < 3 {
			strs = append(strs, "TBD: add an investigable sub-question.")
		}
		out := make([]any, len(strs))
		for i, s := range strs {
			out[i] = s
		}
		batch[i].Content["question_chain"] = out
	}
	return batch
}
