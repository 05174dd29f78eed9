package dialogue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/dialogue"
	"github.com/riverglen/coursecraft/internal/domain"
)

func TestDivergenceDetectorHighOverlapDoesNotDiverge(t *testing.T) {
	d := dialogue.NewDivergenceDetector()
	require.False(t, d.Diverges(
		"Students track water usage in the cafeteria over a week.",
		"Students will track water usage in the school cafeteria over one week.",
	))
}

func TestDivergenceDetectorLowOverlapDiverges(t *testing.T) {
	d := dialogue.NewDivergenceDetector()
	require.True(t, d.Diverges(
		"Students track water usage in the cafeteria.",
		"Let's build a robot arm that sorts recyclables by material.",
	))
}

// An empty original intent never diverges — there is nothing yet to
// drift away from (services/divergence_detector.py's detect()).
func TestDivergenceDetectorEmptyOriginalIntentNeverDiverges(t *testing.T) {
	d := dialogue.NewDivergenceDetector()
	require.False(t, d.Diverges("", "A brand new idea about beekeeping."))
	require.False(t, d.Diverges("", ""))
}

// The formula is asymmetric: it only measures how much of the original
// intent's tokens survive in the new input, not how much new material
// the input adds.
func TestDivergenceDetectorScoreIsAsymmetric(t *testing.T) {
	d := dialogue.NewDivergenceDetector()
	require.Equal(t, 0.0, d.Score("water usage", "water usage in the cafeteria over the entire semester"))
	require.True(t, d.Score("water usage in the cafeteria over the entire semester", "water usage") > 0)
}

func TestInteractionRouterEmptyInputLeavesStateUnchanged(t *testing.T) {
	r := dialogue.NewInteractionRouter()
	require.Equal(t, domain.DialogueSelecting, r.Route(domain.DialogueSelecting, "   ", nil))
}

func TestInteractionRouterDriftMovesToExploring(t *testing.T) {
	r := dialogue.NewInteractionRouter()
	history := []domain.Message{
		{Content: "Students track water usage in the cafeteria."},
	}
	state := r.Route(domain.DialogueGenerating, "Let's build a robot arm that sorts recyclables instead.", history)
	require.Equal(t, domain.DialogueExploring, state)
}

// Low drift (the new message restates most of the recent history's
// words) lets the confirmation-keyword check run at all — a high-drift
// message is routed to exploring before the keyword check ever happens.
func TestInteractionRouterConfirmationMovesToGenerating(t *testing.T) {
	r := dialogue.NewInteractionRouter()
	history := []domain.Message{
		{Content: "let's finalize the plan about water usage in the cafeteria."},
	}
	state := r.Route(domain.DialogueExploring, "let's finalize the plan about water usage in the cafeteria, shall we move to the next step?", history)
	require.Equal(t, domain.DialogueGenerating, state)
}

func TestInteractionRouterDefaultsPreserveCurrentState(t *testing.T) {
	r := dialogue.NewInteractionRouter()
	history := []domain.Message{
		{Content: "Sounds good to me."},
	}
	require.Equal(t, domain.DialogueSelecting, r.Route(domain.DialogueSelecting, "Sounds good to me.", history))
	require.Equal(t, domain.DialogueExploring, r.Route("", "Sounds good to me.", history))
}

// Only the last 3 history entries count toward the drift baseline: a
// distractor far enough back must not dilute the comparison.
func TestInteractionRouterOnlyConsidersLastThreeHistoryMessages(t *testing.T) {
	r := dialogue.NewInteractionRouter()
	history := []domain.Message{
		{Content: "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima mike november oscar papa quebec romeo sierra tango uniform victor whiskey xray yankee zulu"},
		{Content: "Students track water usage in the cafeteria."},
		{Content: "Students track water usage in the cafeteria."},
		{Content: "Students track water usage in the cafeteria."},
	}
	state := r.Route(domain.DialogueGenerating, "Students track water usage in the cafeteria.", history)
	require.Equal(t, domain.DialogueGenerating, state)
}

func TestCreativeDialogueManagerExplicitEditAlwaysWins(t *testing.T) {
	m := dialogue.NewCreativeDialogueManager(nil)
	task := &domain.Task{CreativeContext: domain.CreativeContext{OriginalIntent: "Students track water usage."}}

	update, ok := m.ProcessMessage(task, "Actually, let's focus on electricity usage instead.")
	require.True(t, ok)
	require.Equal(t, "explicit_edit", update.Trigger)
	require.Equal(t, "let's focus on electricity usage instead.", update.NewIntent)
}

func TestCreativeDialogueManagerNoEstablishedIntentIsNoop(t *testing.T) {
	m := dialogue.NewCreativeDialogueManager(nil)
	task := &domain.Task{}

	update, ok := m.ProcessMessage(task, "Here's a totally new idea about beekeeping.")
	require.False(t, ok)
	require.Nil(t, update)
}

func TestCreativeDialogueManagerDivergenceTriggersUpdate(t *testing.T) {
	m := dialogue.NewCreativeDialogueManager(nil)
	task := &domain.Task{CreativeContext: domain.CreativeContext{OriginalIntent: "Students track water usage in the cafeteria."}}

	update, ok := m.ProcessMessage(task, "Let's build a robot arm that sorts recyclables by material.")
	require.True(t, ok)
	require.Equal(t, "divergence_detected", update.Trigger)
}

func TestCreativeDialogueManagerSimilarMessageIsNoop(t *testing.T) {
	m := dialogue.NewCreativeDialogueManager(nil)
	task := &domain.Task{CreativeContext: domain.CreativeContext{OriginalIntent: "Students track water usage in the cafeteria over a week."}}

	update, ok := m.ProcessMessage(task, "Students will track water usage in the school cafeteria over one week.")
	require.False(t, ok)
	require.Nil(t, update)
}
