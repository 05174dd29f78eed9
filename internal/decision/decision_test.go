package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/domain"
)

func newTask(entryPoint domain.EntryPoint, currentStage domain.StageType, completed ...domain.StageType) *domain.Task {
	return &domain.Task{
		TaskID:          "t1",
		EntryPoint:      entryPoint,
		CurrentStage:    currentStage,
		CompletedStages: completed,
		Status:          domain.TaskInProgress,
	}
}

func TestMakeDecisionTaskAlreadyCompletedStays(t *testing.T) {
	task := newTask(domain.EntryScenario, domain.StageExperiment)
	task.Status = domain.TaskCompleted
	dr := MakeDecision(task, nil, "select_candidate")
	assert.Equal(t, domain.DirectionStay, dr.Direction)
}

func TestMakeDecisionForwardWhenNoDependenciesMissing(t *testing.T) {
	task := newTask(domain.EntryScenario, domain.StageScenario)
	dr := MakeDecision(task, nil, "finalize_stage")
	assert.Equal(t, domain.DirectionForward, dr.Direction)
	require.NotNil(t, dr.NextStage)
	assert.Equal(t, domain.StageScenario, *dr.NextStage)
}

func TestMakeDecisionBackwardCompletionWhenDependencyMissing(t *testing.T) {
	task := newTask(domain.EntryScenario, domain.StageActivity)
	dr := MakeDecision(task, nil, "select_candidate")
	assert.Equal(t, domain.DirectionBackwardCompletion, dr.Direction)
	require.NotNil(t, dr.NextStage)
	assert.Equal(t, domain.StageScenario, *dr.NextStage)
	assert.Contains(t, dr.Constraints["missing_chain"], "driving_question")
}

func TestMakeDecisionNoRemainingStages(t *testing.T) {
	task := newTask(domain.EntryScenario, "", domain.StageSequence...)
	dr := MakeDecision(task, nil, "")
	assert.Equal(t, domain.DirectionStay, dr.Direction)
	assert.Equal(t, "No remaining stages.", dr.Explanation.Summary)
}

func TestDryRunNextStepsNoCurrentStage(t *testing.T) {
	task := newTask(domain.EntryScenario, "")
	dr := DryRunNextSteps(task)
	assert.Equal(t, domain.DirectionStay, dr.Direction)
}

func TestDryRunNextStepsReportsMissingChain(t *testing.T) {
	task := newTask(domain.EntryScenario, domain.StageQuestionChain)
	dr := DryRunNextSteps(task)
	assert.Equal(t, domain.DirectionBackwardCompletion, dr.Direction)
	require.NotNil(t, dr.NextStage)
	assert.Equal(t, domain.StageScenario, *dr.NextStage)
}

func TestDryRunNextStepsForwardWhenReady(t *testing.T) {
	task := newTask(domain.EntryScenario, domain.StageDrivingQuestion, domain.StageScenario)
	dr := DryRunNextSteps(task)
	assert.Equal(t, domain.DirectionForward, dr.Direction)
}
