package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riverglen/coursecraft/internal/domain"
)

func TestCanApplyActionPendingChoiceAllowsFullMenu(t *testing.T) {
	for _, action := range []domain.ActionType{
		domain.ActionSelectCandidate,
		domain.ActionRegenerateCandidates,
		domain.ActionProvideFeedback,
		domain.ActionFinalizeStage,
		domain.ActionResolveConflict,
	} {
		assert.True(t, CanApplyAction(domain.StagePendingChoice, action), "action %s should be allowed in pending_choice", action)
	}
}

func TestCanApplyActionGeneratingOnlyAllowsFeedbackAndRegenerate(t *testing.T) {
	assert.True(t, CanApplyAction(domain.StageGenerating, domain.ActionRegenerateCandidates))
	assert.True(t, CanApplyAction(domain.StageGenerating, domain.ActionProvideFeedback))
	assert.False(t, CanApplyAction(domain.StageGenerating, domain.ActionSelectCandidate))
	assert.False(t, CanApplyAction(domain.StageGenerating, domain.ActionFinalizeStage))
	assert.False(t, CanApplyAction(domain.StageGenerating, domain.ActionResolveConflict))
}

func TestCanApplyActionFinalizedOnlyAllowsReopening(t *testing.T) {
	assert.True(t, CanApplyAction(domain.StageFinalized, domain.ActionProvideFeedback))
	assert.True(t, CanApplyAction(domain.StageFinalized, domain.ActionRegenerateCandidates))
	assert.False(t, CanApplyAction(domain.StageFinalized, domain.ActionSelectCandidate))
	assert.False(t, CanApplyAction(domain.StageFinalized, domain.ActionFinalizeStage))
	assert.False(t, CanApplyAction(domain.StageFinalized, domain.ActionResolveConflict))
}

func TestCanApplyActionUnknownStatusIsAlwaysFalse(t *testing.T) {
	assert.False(t, CanApplyAction(domain.StageStatus("unknown"), domain.ActionProvideFeedback))
}

func TestShouldForceExit(t *testing.T) {
	assert.False(t, ShouldForceExit(MaxIterations-1))
	assert.True(t, ShouldForceExit(MaxIterations))
	assert.True(t, ShouldForceExit(MaxIterations+1))
}
