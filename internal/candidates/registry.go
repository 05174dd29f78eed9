package candidates

import (
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
)

// WrappedRegistry maps each creative stage to a DiversityWrapper around its
// underlying Generator. NewRegistry is called once at orchestrator
// construction (not a package global), per spec.md §4.7's REDESIGN FLAGS.
type WrappedRegistry map[domain.StageType]*DiversityWrapper

func NewRegistry(lm llm.Client, blocklist []string) WrappedRegistry {
	base := Registry{
		domain.StageScenario:        &ScenarioGenerator{LM: lm},
		domain.StageDrivingQuestion: &DrivingQuestionGenerator{LM: lm},
		domain.StageQuestionChain:   &QuestionChainGenerator{LM: lm},
		domain.StageActivity:       &ActivityGenerator{LM: lm},
		domain.StageExperiment:     &ExperimentGenerator{LM: lm},
	}
	wrapped := make(WrappedRegistry, len(base))
	for stage, gen := range base {
		wrapped[stage] = &DiversityWrapper{Stage: stage, Inner: gen, Blocklist: blocklist}
	}
	return wrapped
}

func (r WrappedRegistry) Get(stage domain.StageType) (*DiversityWrapper, bool) {
	w, ok := r[stage]
	return w, ok
}
