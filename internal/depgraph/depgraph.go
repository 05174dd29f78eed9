// Package depgraph implements spec.md §4.1: the static per-stage
// prerequisite table and the topological sort of missing prerequisites
// needed to reach a target stage.
package depgraph

import (
	"fmt"

	"github.com/riverglen/coursecraft/internal/domain"
)

// prereqs is the static dependency table, scenario-entry baseline.
var prereqs = map[domain.StageType][]domain.StageType{
	domain.StageDrivingQuestion: {domain.StageScenario},
	domain.StageQuestionChain:   {domain.StageDrivingQuestion},
	domain.StageActivity:        {domain.StageQuestionChain},
	domain.StageExperiment:      {domain.StageActivity},
}

// RequiredDeps returns the ordered, deduplicated prerequisite list for
// stage under entryPoint. When entryPoint is tool_seed, scenario and
// activity additionally depend on tool_seed (prepended).
func RequiredDeps(stage domain.StageType, entryPoint domain.EntryPoint) []domain.StageType {
	deps := append([]domain.StageType{}, prereqs[stage]...)
	if entryPoint == domain.EntryToolSeed {
		switch stage {
		case domain.StageScenario:
			deps = append([]domain.StageType{domain.StageToolSeed}, deps...)
		case domain.StageActivity:
			deps = append([]domain.StageType{domain.StageToolSeed}, deps...)
		}
	}
	return dedupe(deps)
}

func dedupe(in []domain.StageType) []domain.StageType {
	seen := make(map[domain.StageType]bool, len(in))
	out := make([]domain.StageType, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ErrDependencyCycle is returned by MissingChain when a DFS revisits a node
// still being explored.
type ErrDependencyCycle struct {
	Stage domain.StageType
}

func (e *ErrDependencyCycle) Error() string {
	return fmt.Sprintf("dependency_cycle: revisited stage %q during traversal", e.Stage)
}

func isCompleted(stage domain.StageType, completed []domain.StageType) bool {
	for _, s := range completed {
		if s == stage {
			return true
		}
	}
	return false
}

// MissingChain returns the depth-first topological order of every
// not-yet-completed stage needed to reach target (target included).
func MissingChain(target domain.StageType, entryPoint domain.EntryPoint, completed []domain.StageType) ([]domain.StageType, error) {
	var order []domain.StageType
	visiting := map[domain.StageType]bool{}
	done := map[domain.StageType]bool{}

	var visit func(stage domain.StageType) error
	visit = func(stage domain.StageType) error {
		if done[stage] {
			return nil
		}
		if visiting[stage] {
			return &ErrDependencyCycle{Stage: stage}
		}
		if isCompleted(stage, completed) {
			done[stage] = true
			return nil
		}
		visiting[stage] = true
		for _, dep := range RequiredDeps(stage, entryPoint) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[stage] = false
		done[stage] = true
		order = append(order, stage)
		return nil
	}

	if err := visit(target); err != nil {
		return nil, err
	}
	return order, nil
}
