// Package statemachine implements spec.md §4.3: which actions are allowed
// in which stage status, and the iteration ceiling.
package statemachine

import "github.com/riverglen/coursecraft/internal/domain"

const MaxIterations = 10

var allowedActions = map[domain.StageStatus]map[domain.ActionType]bool{
	domain.StageInitialized: set(
		domain.ActionSelectCandidate,
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
		domain.ActionFinalizeStage,
		domain.ActionResolveConflict,
	),
	domain.StageGenerating: set(
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
	),
	domain.StagePendingChoice: set(
		domain.ActionSelectCandidate,
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
		domain.ActionFinalizeStage,
		domain.ActionResolveConflict,
	),
	domain.StageFeedbackLoop: set(
		domain.ActionSelectCandidate,
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
		domain.ActionFinalizeStage,
		domain.ActionResolveConflict,
	),
	domain.StageModifying: set(
		domain.ActionSelectCandidate,
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
		domain.ActionFinalizeStage,
		domain.ActionResolveConflict,
	),
	domain.StageFinalized: set(
		domain.ActionProvideFeedback,
		domain.ActionRegenerateCandidates,
	),
}

func set(actions ...domain.ActionType) map[domain.ActionType]bool {
	out := make(map[domain.ActionType]bool, len(actions))
	for _, a := range actions {
		out[a] = true
	}
	return out
}

// CanApplyAction reports whether actionType is allowed while a stage is in
// stageStatus.
func CanApplyAction(stageStatus domain.StageStatus, actionType domain.ActionType) bool {
	allowed, ok := allowedActions[stageStatus]
	if !ok {
		return false
	}
	return allowed[actionType]
}

// ShouldForceExit reports whether the iteration ceiling has been reached.
func ShouldForceExit(iterationCount int) bool {
	return iterationCount >= MaxIterations
}
