package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskCloneIsIndependent(t *testing.T) {
	original := &Task{
		TaskID:          "task-1",
		CompletedStages: []StageType{StageScenario},
		Artifacts: map[StageType]*StageArtifact{
			StageScenario: {Stage: StageScenario, Candidates: []Candidate{{ID: "c1"}}},
		},
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	clone.CompletedStages[0] = StageActivity
	clone.Artifacts[StageScenario].Candidates[0].ID = "mutated"

	assert.Equal(t, StageScenario, original.CompletedStages[0])
	assert.Equal(t, "c1", original.Artifacts[StageScenario].Candidates[0].ID)
}

func TestTaskCloneNilReceiver(t *testing.T) {
	var task *Task
	assert.Nil(t, task.Clone())
}

func TestCloneCandidatesDeepCopiesNestedMaps(t *testing.T) {
	in := []Candidate{{
		ID:          "c1",
		DerivedFrom: []string{"a"},
		Content:     map[string]any{"k": "v"},
	}}
	out := CloneCandidates(in)
	out[0].Content["k"] = "changed"
	out[0].DerivedFrom[0] = "changed"

	assert.Equal(t, "v", in[0].Content["k"])
	assert.Equal(t, "a", in[0].DerivedFrom[0])
}

func TestCloneCandidatesNil(t *testing.T) {
	assert.Nil(t, CloneCandidates(nil))
}
