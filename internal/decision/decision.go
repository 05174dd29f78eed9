// Package decision implements spec.md's decision engine: MakeDecision
// (used by the orchestrator after every mutation) and DryRunNextSteps (a
// read-only preview), grounded on engine/decision.py and engine/dry_run.py.
package decision

import (
	"strings"

	"github.com/riverglen/coursecraft/internal/depgraph"
	"github.com/riverglen/coursecraft/internal/domain"
)

// NextRequiredStage returns the first stage in the canonical sequence not
// yet in task.CompletedStages, or nil if the sequence is fully complete.
func NextRequiredStage(task *domain.Task) *domain.StageType {
	for _, stage := range domain.StageSequence {
		if !task.HasCompletedStage(stage) {
			s := stage
			return &s
		}
	}
	return nil
}

// MakeDecision computes where the task should go next, optionally toward
// targetStage, recording requestedAction in its explanation for audit
// purposes. Grounded on engine/decision.py::make_decision.
func MakeDecision(task *domain.Task, targetStage *domain.StageType, requestedAction string) domain.DecisionResult {
	if task.Status == domain.TaskCompleted {
		return domain.DecisionResult{
			Direction:   domain.DirectionStay,
			Explanation: domain.Explanation{Summary: "Task already completed."},
			UserMessage: "Task is already completed.",
		}
	}

	stageToCheck := targetStage
	if stageToCheck == nil && task.CurrentStage != "" {
		s := task.CurrentStage
		stageToCheck = &s
	}
	if stageToCheck == nil {
		stageToCheck = NextRequiredStage(task)
	}
	if stageToCheck == nil {
		return domain.DecisionResult{
			Direction:   domain.DirectionStay,
			Explanation: domain.Explanation{Summary: "No remaining stages."},
			UserMessage: "No remaining stages.",
		}
	}

	missingChain, err := depgraph.MissingChain(*stageToCheck, task.EntryPoint, task.CompletedStages)
	if err != nil {
		return domain.DecisionResult{
			Direction:   domain.DirectionError,
			Explanation: domain.Explanation{Summary: err.Error()},
			UserMessage: "Dependency cycle detected. Please review the dependency table.",
			Constraints: map[string]any{"error": "dependency_cycle"},
		}
	}

	if len(missingChain) > 0 && missingChain[0] != *stageToCheck {
		next := missingChain[0]
		return domain.DecisionResult{
			NextStage: &next,
			Direction: domain.DirectionBackwardCompletion,
			Explanation: domain.Explanation{
				Summary: "Missing dependencies detected.",
				Details: []string{"Missing chain: " + joinStages(missingChain)},
			},
			UserMessage: "Please complete prerequisite stages first.",
			Constraints: map[string]any{"missing_chain": stageStrings(missingChain)},
		}
	}

	action := requestedAction
	if action == "" {
		action = "none"
	}
	return domain.DecisionResult{
		NextStage: stageToCheck,
		Direction: domain.DirectionForward,
		Explanation: domain.Explanation{
			Summary: "Ready to proceed.",
			Details: []string{"Requested action: " + action},
		},
		UserMessage: "Ready to proceed.",
	}
}

// DryRunNextSteps previews the decision for task.CurrentStage without
// requiring an action, for the read-only task_progress endpoint. Grounded
// on engine/dry_run.py::dry_run_next_steps.
func DryRunNextSteps(task *domain.Task) domain.DecisionResult {
	if task.CurrentStage == "" {
		return domain.DecisionResult{
			Direction:   domain.DirectionStay,
			Explanation: domain.Explanation{Summary: "No current stage available."},
			UserMessage: "No current stage available.",
		}
	}

	missingChain, err := depgraph.MissingChain(task.CurrentStage, task.EntryPoint, task.CompletedStages)
	if err != nil {
		return domain.DecisionResult{
			Direction:   domain.DirectionError,
			Explanation: domain.Explanation{Summary: err.Error()},
			UserMessage: "Dependency cycle detected. Please review the dependency table.",
			Constraints: map[string]any{"error": "dependency_cycle"},
		}
	}
	if len(missingChain) > 0 && missingChain[0] != task.CurrentStage {
		next := missingChain[0]
		return domain.DecisionResult{
			NextStage: &next,
			Direction: domain.DirectionBackwardCompletion,
			Explanation: domain.Explanation{
				Summary: "Missing dependency chain.",
				Details: []string{joinStages(missingChain)},
			},
			UserMessage: "Please complete prerequisite stages first.",
			Constraints: map[string]any{"missing_chain": stageStrings(missingChain)},
		}
	}

	stage := task.CurrentStage
	return domain.DecisionResult{
		NextStage:   &stage,
		Direction:   domain.DirectionForward,
		Explanation: domain.Explanation{Summary: "Ready to proceed."},
		UserMessage: "Ready to proceed.",
	}
}

func joinStages(stages []domain.StageType) string {
	return strings.Join(stageStrings(stages), ", ")
}

func stageStrings(stages []domain.StageType) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
