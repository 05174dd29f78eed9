package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/candidates"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/eventlog"
	"github.com/riverglen/coursecraft/internal/llmtest"
	"github.com/riverglen/coursecraft/internal/orchestrator"
	"github.com/riverglen/coursecraft/internal/orchestrator/genpool"
	"github.com/riverglen/coursecraft/internal/store"
)

// distinctTexts holds genuinely unrelated sentences (not near-duplicates
// with a single digit swapped) so the diversity wrapper's 3-gram Jaccard
// check never mistakes two test candidates for duplicates.
var distinctTexts = []string{
	"A neighborhood bakery wants to cut bread waste by the end of the month.",
	"A community greenhouse is losing tomato seedlings to an unknown pest.",
	"A robotics club needs a faster way to sort recycling by material.",
	"A school garden committee wants to track rainfall against crop yield.",
	"A local radio station wants to reduce dead air between song transitions.",
}

var wideSubjects = []string{
	"bakery", "greenhouse", "robotics club", "garden committee", "radio station",
	"pottery studio", "bike co-op", "choir", "aquarium", "makerspace",
	"woodshop", "observatory", "dairy farm", "print shop", "skate park",
	"library branch", "fire station", "ferry dock", "beekeeping group", "brewery",
	"llama ranch", "kelp farm", "weather station", "quilting guild",
	"model railway club", "chess club", "arcade", "planetarium", "tattoo parlor",
	"candle shop", "surf school", "falconry center", "vineyard", "cheese cave",
	"glassblowing studio", "rope works", "wind farm", "oyster bed",
	"maple syrup camp", "trail crew",
}
var wideProblems = []string{
	"wants to cut bread waste", "is losing tomato seedlings to an unknown pest",
	"needs a faster way to sort recycling", "wants to track rainfall against crop yield",
	"wants to reduce dead air between transitions", "noticed uneven kiln temperatures",
	"can't keep tires inflated overnight", "struggles to tune all its instruments before a show",
	"needs cleaner water for its fish tanks", "keeps running out of printer filament",
	"wants quieter ramps for early mornings", "needs a better checkout queue",
	"wants faster response times for small fires", "needs a tide schedule for departures",
	"lost half a hive to cold weather", "wants consistent head on its beer",
	"needs a better way to label patterns", "wants to shorten the arcade queue",
	"needs clearer night sky viewing logs", "wants safer ink storage",
	"needs better wax temperature control", "wants to predict wave conditions for lessons",
	"needs healthier birds for demonstrations", "wants to track grape sugar levels",
	"needs humidity control for aging wheels", "wants stronger but lighter rope",
	"needs to predict low-wind days", "wants cleaner water for its oyster beds",
	"needs to time syrup boiling better", "wants safer footing on steep trails",
}

// wideText returns one of many pairwise-distinct (well under the 0.85
// 3-gram Jaccard duplicate threshold) sentences, indexed by seed, so a
// test that regenerates the same stage many times never hands the
// diversity wrapper two batches that collide with its avoid list.
func wideText(seed int) string {
	s := wideSubjects[seed%len(wideSubjects)]
	p := wideProblems[(seed*7+3)%len(wideProblems)]
	return "A " + s + " " + p + " by the end of the month."
}

// wideTextOptions builds an options batch of n candidates whose primary
// text is drawn from wideText starting at seed*n, so successive calls
// (e.g. repeated regenerate_candidates) never repeat a prior batch's text.
func wideTextOptions(prefix string, seed, n int) map[string]any {
	options := make([]any, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, map[string]any{
			"title": prefix + " " + string(rune('A'+i)),
			"text":  wideText(seed*n + i),
		})
	}
	return map[string]any{"options": options}
}

func textOptions(prefix string, n int) map[string]any {
	options := make([]any, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, map[string]any{
			"title": prefix + " " + string(rune('A'+i)),
			"text":  distinctTexts[i%len(distinctTexts)],
		})
	}
	return map[string]any{"options": options}
}

func drivingQuestionOptions(n int) map[string]any {
	options := make([]any, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, map[string]any{
			"driving_question": distinctTexts[i%len(distinctTexts)],
			"question_chain": []any{
				"How much does " + string(rune('a'+i)) + " change week to week?",
				"What tools can measure it without expensive equipment?",
				"Who else in the building is affected by the same problem?",
			},
		})
	}
	return map[string]any{"options": options}
}

func questionChainOptions(n int) map[string]any {
	options := make([]any, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, map[string]any{
			"question_chain": []any{
				distinctTexts[i%len(distinctTexts)],
				"What would a one-week pilot look like?",
				"How would we know the change actually worked?",
			},
		})
	}
	return map[string]any{"options": options}
}

func newTestOrchestrator(t *testing.T, stub *llmtest.Stub) *orchestrator.Orchestrator {
	t.Helper()
	log, err := eventlog.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(log)
	bus := eventbus.New(nil)
	registry := candidates.NewRegistry(stub, nil)
	return orchestrator.New(st, bus, registry, genpool.Immediate{}, nil, 0)
}

// S1 — scenario entry, happy path through every stage to completion.
func TestOrchestratorScenarioHappyPath(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			textOptions("Scenario", 3),
			drivingQuestionOptions(3),
			questionChainOptions(3),
			textOptions("Activity", 3),
			textOptions("Experiment", 3),
		},
	}
	orch := newTestOrchestrator(t, stub)
	ctx := context.Background()

	task, dr, artifact, err := orch.CreateTask(ctx, domain.EntryScenario, map[string]any{"scenario": "Test scenario"})
	require.NoError(t, err)
	require.Equal(t, domain.DirectionForward, dr.Direction)
	require.NotNil(t, artifact)
	require.Equal(t, domain.StageScenario, artifact.Stage)
	require.Len(t, artifact.Candidates, 3)

	stages := []domain.StageType{
		domain.StageScenario,
		domain.StageDrivingQuestion,
		domain.StageQuestionChain,
		domain.StageActivity,
		domain.StageExperiment,
	}

	for i, stage := range stages {
		task, _, artifact, err = orch.ApplyAction(ctx, task.TaskID, "select_candidate", map[string]any{
			"stage":        string(stage),
			"candidate_id": "A",
		})
		require.NoError(t, err, "select on stage %s", stage)
		require.Contains(t, task.CompletedStages, stage)

		if i < len(stages)-1 {
			require.NotNil(t, artifact, "expected next stage artifact after finalizing %s", stage)
			require.Equal(t, stages[i+1], artifact.Stage)
			require.Len(t, artifact.Candidates, 3)
		}
	}

	require.Equal(t, domain.TaskCompleted, task.Status)
	require.Nil(t, artifact)
}

// S3 — feedback regenerates and bumps iteration_count by exactly one.
func TestOrchestratorFeedbackRegenerates(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			wideTextOptions("Scenario", 0, 3),
			wideTextOptions("ScenarioV2", 1, 3),
		},
	}
	orch := newTestOrchestrator(t, stub)
	ctx := context.Background()

	task, _, artifact, err := orch.CreateTask(ctx, domain.EntryScenario, map[string]any{"scenario": "Test scenario"})
	require.NoError(t, err)
	before := artifact.IterationCount

	task, _, artifact, err = orch.ApplyAction(ctx, task.TaskID, "provide_feedback", map[string]any{
		"stage":    "scenario",
		"feedback": "Add more detail.",
	})
	require.NoError(t, err)
	require.NotNil(t, artifact)
	require.Equal(t, before+1, artifact.IterationCount)
	_ = task
}

// S4 — iteration ceiling: MAX_ITERATIONS regenerations stay direction!=force_exit,
// the next one returns force_exit with a recommended candidate.
func TestOrchestratorIterationCeiling(t *testing.T) {
	const maxIterations = 10
	responses := make([]map[string]any, 0, maxIterations+1)
	for i := 0; i <= maxIterations; i++ {
		responses = append(responses, wideTextOptions("Scenario", i, 3))
	}
	stub := &llmtest.Stub{JSONResponses: responses}
	orch := newTestOrchestrator(t, stub)
	ctx := context.Background()

	task, _, _, err := orch.CreateTask(ctx, domain.EntryScenario, map[string]any{"scenario": "Test scenario"})
	require.NoError(t, err)

	for i := 0; i < maxIterations; i++ {
		_, dr, _, err := orch.ApplyAction(ctx, task.TaskID, "regenerate_candidates", map[string]any{"stage": "scenario"})
		require.NoError(t, err)
		require.NotEqual(t, domain.DirectionForceExit, dr.Direction, "iteration %d should not force exit yet", i)
	}

	_, dr, _, err := orch.ApplyAction(ctx, task.TaskID, "regenerate_candidates", map[string]any{"stage": "scenario"})
	require.NoError(t, err)
	require.Equal(t, domain.DirectionForceExit, dr.Direction)
	require.NotEmpty(t, dr.Constraints["recommended_candidate_id"])
}

func TestOrchestratorApplyActionTaskNotFound(t *testing.T) {
	stub := &llmtest.Stub{}
	orch := newTestOrchestrator(t, stub)
	_, _, _, err := orch.ApplyAction(context.Background(), "does-not-exist", "select_candidate", map[string]any{"candidate_id": "A"})
	require.Error(t, err)
}

func TestOrchestratorCreateTaskMissingScenario(t *testing.T) {
	stub := &llmtest.Stub{}
	orch := newTestOrchestrator(t, stub)
	_, _, _, err := orch.CreateTask(context.Background(), domain.EntryScenario, map[string]any{"scenario": ""})
	require.Error(t, err)
}

func TestOrchestratorSelectFrozenCandidateRejected(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			textOptions("Scenario", 3),
			drivingQuestionOptions(3),
		},
	}
	orch := newTestOrchestrator(t, stub)
	ctx := context.Background()

	task, _, _, err := orch.CreateTask(ctx, domain.EntryScenario, map[string]any{"scenario": "Test scenario"})
	require.NoError(t, err)

	task, _, _, err = orch.ApplyAction(ctx, task.TaskID, "select_candidate", map[string]any{
		"stage": "scenario", "candidate_id": "A",
	})
	require.NoError(t, err)

	// B is now frozen (A was selected); selecting it must be rejected.
	_, _, _, err = orch.ApplyAction(ctx, task.TaskID, "select_candidate", map[string]any{
		"stage": "scenario", "candidate_id": "B",
	})
	require.Error(t, err)
}

func TestOrchestratorResolveConflictMissingFields(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{textOptions("Scenario", 3)},
	}
	orch := newTestOrchestrator(t, stub)
	ctx := context.Background()

	task, _, _, err := orch.CreateTask(ctx, domain.EntryScenario, map[string]any{"scenario": "Test scenario"})
	require.NoError(t, err)

	_, _, _, err = orch.ApplyAction(ctx, task.TaskID, "resolve_conflict", map[string]any{"stage": "scenario"})
	require.Error(t, err)
}
