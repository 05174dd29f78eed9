package dialogue

import (
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
)

// confirmationKeywords are the router's explicit-confirmation terms,
// grounded on engine/interaction_router.py's route() keyword list
// (["确认", "选择", "定稿", "进入下一步"] — "confirm", "select", "finalize",
// "move to the next step" — ported to this product's English-only
// surface, same call as resolver.go's phrase tables).
var confirmationKeywords = []string{"confirm", "select", "finalize", "next step"}

// InteractionRouter maps a chat message plus recent history onto the
// DialogueState it should move to, grounded on
// engine/interaction_router.py's InteractionRouter.
type InteractionRouter struct{}

// NewInteractionRouter builds a stateless router.
func NewInteractionRouter() *InteractionRouter { return &InteractionRouter{} }

// Route implements spec.md §4.11/route(): empty input leaves state
// unchanged; a drift score of at least 0.6 against the last three
// history messages moves to exploring; an explicit confirmation term
// moves to generating; otherwise the state is unchanged, defaulting to
// exploring.
func (r *InteractionRouter) Route(current domain.DialogueState, message string, history []domain.Message) domain.DialogueState {
	text := strings.TrimSpace(message)
	if text == "" {
		return current
	}
	if r.detectIntentShift(history, text) >= driftThreshold {
		return domain.DialogueExploring
	}
	lower := strings.ToLower(text)
	for _, kw := range confirmationKeywords {
		if strings.Contains(lower, kw) {
			return domain.DialogueGenerating
		}
	}
	if current == "" {
		return domain.DialogueExploring
	}
	return current
}

// detectIntentShift mirrors engine/interaction_router.py's
// detect_intent_shift: the last 3 history messages' content, joined by a
// space, form the baseline newInput's drift is scored against.
func (r *InteractionRouter) detectIntentShift(history []domain.Message, newInput string) float64 {
	if len(history) == 0 {
		return 0
	}
	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	texts := make([]string, 0, len(recent))
	for _, m := range recent {
		texts = append(texts, m.Content)
	}
	return driftScore(strings.Join(texts, " "), newInput)
}
