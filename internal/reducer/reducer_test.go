package reducer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/domain"
)

func stagePtr(s domain.StageType) *domain.StageType { return &s }

func TestReduceTaskCreatedScenarioEntry(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := domain.Event{
		Type:      domain.EventTaskCreated,
		TaskID:    "t1",
		Timestamp: ts,
		Payload: map[string]any{
			"entry_point": "scenario",
			"session_id":  "s1",
			"entry_data":  map[string]any{"scenario": "a class about erosion"},
		},
	}

	task := Reduce(nil, ev)
	require.NotNil(t, task)
	assert.Equal(t, "t1", task.TaskID)
	assert.Equal(t, domain.EntryScenario, task.EntryPoint)
	assert.Empty(t, task.CompletedStages)
	assert.Equal(t, domain.TaskInProgress, task.Status)
	assert.Equal(t, domain.DialogueExploring, task.DialogueState)
}

func TestReduceTaskCreatedToolSeedEntryPrependsPseudoStage(t *testing.T) {
	ev := domain.Event{
		Type:   domain.EventTaskCreated,
		TaskID: "t1",
		Payload: map[string]any{
			"entry_point": "tool_seed",
			"tool_seed":   map[string]any{"tool_name": "sorter"},
		},
	}
	task := Reduce(nil, ev)
	require.NotNil(t, task)
	assert.Equal(t, []domain.StageType{domain.StageToolSeed}, task.CompletedStages)
	require.NotNil(t, task.ToolSeed)
	assert.Equal(t, "sorter", task.ToolSeed.ToolName)
}

func TestReduceNonCreateEventOnNilTaskIsNoOp(t *testing.T) {
	ev := domain.Event{Type: domain.EventMessageEmitted, TaskID: "missing"}
	assert.Nil(t, Reduce(nil, ev))
}

func baseTask() *domain.Task {
	return Reduce(nil, domain.Event{
		Type:   domain.EventTaskCreated,
		TaskID: "t1",
		Payload: map[string]any{
			"entry_point": "scenario",
			"entry_data":  map[string]any{"scenario": "x"},
		},
	})
}

func TestApplyCandidatesInstallsRevisionAndArchivesPrior(t *testing.T) {
	task := baseTask()

	first := Reduce(task, domain.Event{
		Type:  domain.EventCandidatesGenerated,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"revision_id": "rev-1",
			"candidates":  []map[string]any{{"id": "c1"}, {"id": "c2"}},
		},
	})
	require.Len(t, first.Artifacts[domain.StageScenario].Candidates, 2)
	assert.Equal(t, domain.StagePendingChoice, first.Artifacts[domain.StageScenario].Status)
	assert.Equal(t, domain.StagePendingChoice, first.StageStatus[domain.StageScenario])
	assert.Equal(t, domain.DialogueSelecting, first.DialogueState)
	assert.Empty(t, first.Artifacts[domain.StageScenario].History)

	second := Reduce(first, domain.Event{
		Type:  domain.EventCandidatesRegenerated,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"revision_id": "rev-2",
			"candidates":  []map[string]any{{"id": "c3"}},
		},
	})
	artifact := second.Artifacts[domain.StageScenario]
	require.Len(t, artifact.History, 1)
	assert.Equal(t, "regenerated", artifact.History[0].Reason)
	assert.Equal(t, 1, artifact.IterationCount)
	assert.Equal(t, "rev-2", artifact.RevisionID)
}

func TestApplyCandidatesIsIdempotentForSameRevision(t *testing.T) {
	task := baseTask()
	ev := domain.Event{
		Type:  domain.EventCandidatesGenerated,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"revision_id": "rev-1",
			"candidates":  []map[string]any{{"id": "c1"}},
		},
	}
	once := Reduce(task, ev)
	twice := Reduce(once, ev)
	assert.Equal(t, once.Artifacts[domain.StageScenario].Candidates, twice.Artifacts[domain.StageScenario].Candidates)
	assert.Empty(t, twice.Artifacts[domain.StageScenario].History)
}

func TestApplyCandidateSelectedMarksExactlyOneSelected(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type:  domain.EventCandidatesGenerated,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"revision_id": "rev-1",
			"candidates":  []map[string]any{{"id": "c1", "title": "Option A"}, {"id": "c2", "title": "Option B"}},
		},
	})
	task = Reduce(task, domain.Event{
		Type:    domain.EventCandidateSelected,
		Stage:   stagePtr(domain.StageScenario),
		Payload: map[string]any{"candidate_id": "c2"},
	})

	artifact := task.Artifacts[domain.StageScenario]
	selected := 0
	for _, c := range artifact.Candidates {
		if c.Status == domain.CandidateSelected {
			selected++
			assert.Equal(t, "c2", c.ID)
		} else {
			assert.Equal(t, domain.CandidateFrozen, c.Status)
		}
	}
	assert.Equal(t, 1, selected)
	assert.Equal(t, "c2", artifact.SelectedCandidateID)
	assert.Equal(t, "Option B", task.WorkingMemory.Focus)
}

func TestApplyFeedbackRecordedArchivesCurrentRevision(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type:  domain.EventCandidatesGenerated,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"revision_id": "rev-1",
			"candidates":  []map[string]any{{"id": "c1"}},
		},
	})
	task = Reduce(task, domain.Event{
		Type:  domain.EventFeedbackRecorded,
		Stage: stagePtr(domain.StageScenario),
	})
	artifact := task.Artifacts[domain.StageScenario]
	assert.Equal(t, domain.StageFeedbackLoop, artifact.Status)
	assert.Equal(t, domain.StageFeedbackLoop, task.StageStatus[domain.StageScenario])
	assert.Equal(t, domain.DialogueGenerating, task.DialogueState)
	require.Len(t, artifact.History, 1)
	assert.Equal(t, "feedback", artifact.History[0].Reason)
}

func TestApplyConflictDetectedAndResolved(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type:  domain.EventConflictDetected,
		Stage: stagePtr(domain.StageActivity),
		Payload: map[string]any{
			"conflict": map[string]any{"conflict_id": "conf-1", "severity": "blocking"},
		},
	})
	require.Len(t, task.Conflicts[domain.StageActivity], 1)
	assert.False(t, task.Conflicts[domain.StageActivity][0].Resolved)

	task = Reduce(task, domain.Event{
		Type:  domain.EventConflictResolved,
		Stage: stagePtr(domain.StageActivity),
		Payload: map[string]any{
			"conflict_id": "conf-1",
			"option":      "keep_activity",
		},
	})
	assert.True(t, task.Conflicts[domain.StageActivity][0].Resolved)
	assert.Equal(t, "keep_activity", task.Conflicts[domain.StageActivity][0].ResolvedOption)
}

func TestApplyMessageEmittedRecordsEntryDecisionInHistory(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type: domain.EventMessageEmitted,
		Payload: map[string]any{
			"message": map[string]any{
				"id":             "m1",
				"role":           "user",
				"content":        "let's start",
				"entry_decision": map[string]any{"entry_point": "scenario", "confidence": 0.95},
			},
		},
	})
	require.Len(t, task.Messages, 1)
	require.Len(t, task.DecisionHistory, 1)
	assert.Equal(t, "entry_decision", task.DecisionHistory[0]["kind"])
}

func TestApplyCreativeContextUpdatedCapsKeyConstraintsButNotAnchors(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type: domain.EventCreativeContextUpdated,
		Payload: map[string]any{
			"key_constraints": []string{"a", "b", "c", "d", "e", "f"},
			"anchor_concepts": []string{"x", "y", "z"},
			"summary":         "narrowed focus",
		},
	})
	assert.Len(t, task.CreativeContext.KeyConstraints, 5)
	assert.Len(t, task.CreativeContext.AnchorConcepts, 3)
	require.NotEmpty(t, task.WorkingMemory.Notes)
}

func TestApplyStageFinalizedAdvancesCurrentStageOnce(t *testing.T) {
	task := baseTask()
	task = Reduce(task, domain.Event{
		Type:  domain.EventStageFinalized,
		Stage: stagePtr(domain.StageScenario),
		Payload: map[string]any{
			"next_stage": string(domain.StageDrivingQuestion),
		},
	})
	assert.Contains(t, task.CompletedStages, domain.StageScenario)
	assert.Equal(t, domain.StageDrivingQuestion, task.CurrentStage)

	again := Reduce(task, domain.Event{
		Type:  domain.EventStageFinalized,
		Stage: stagePtr(domain.StageScenario),
	})
	count := 0
	for _, s := range again.CompletedStages {
		if s == domain.StageScenario {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestReduceReturnsNewValueEachTime(t *testing.T) {
	task := baseTask()
	next := Reduce(task, domain.Event{Type: domain.EventGenerationScheduled, Stage: stagePtr(domain.StageScenario)})
	assert.NotSame(t, task, next)
}
