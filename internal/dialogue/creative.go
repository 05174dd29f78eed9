package dialogue

import (
	"regexp"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
)

// intentEditPattern recognizes an explicit intent-edit phrase (spec.md
// §4.11: "actually...", "instead...", "change it to...", "let's make this
// about...") so a direct correction doesn't have to clear the
// divergence-detector's token-overlap threshold to take effect.
var intentEditPattern = regexp.MustCompile(`(?i)^\s*(?:actually|instead|change (?:it|this) to|let'?s make (?:it|this) about)\b[:,]?\s*(.+)$`)

// IntentUpdate is what CreativeDialogueManager recommends the orchestrator
// record as intent_updated/creative_context_updated events.
type IntentUpdate struct {
	NewIntent      string
	Trigger        string
	KeyConstraints []string
	AnchorConcepts []string
	Summary        string
}

// CreativeDialogueManager watches chat messages for intent changes,
// grounded on services/creative_dialogue_manager.py.
type CreativeDialogueManager struct {
	Divergence *DivergenceDetector
}

// NewCreativeDialogueManager builds a manager around divergence. Passing
// nil builds a private detector; callers that also need to drive
// divergence scoring elsewhere (internal/transport/http/handlers/chat.go)
// share one instance instead.
func NewCreativeDialogueManager(divergence *DivergenceDetector) *CreativeDialogueManager {
	if divergence == nil {
		divergence = NewDivergenceDetector()
	}
	return &CreativeDialogueManager{Divergence: divergence}
}

// ProcessMessage inspects message against task's current creative intent.
// An explicit edit phrase always wins; otherwise, if the task already has
// an established intent, the divergence detector decides whether message
// represents a real shift worth recording.
func (m *CreativeDialogueManager) ProcessMessage(task *domain.Task, message string) (*IntentUpdate, bool) {
	if match := intentEditPattern.FindStringSubmatch(message); match != nil {
		newIntent := strings.TrimSpace(match[len(match)-1])
		if newIntent != "" {
			return &IntentUpdate{NewIntent: newIntent, Trigger: "explicit_edit"}, true
		}
	}

	original := task.CreativeContext.OriginalIntent
	if original == "" {
		return nil, false
	}
	if m.Divergence.Diverges(original, message) {
		return &IntentUpdate{NewIntent: message, Trigger: "divergence_detected"}, true
	}
	return nil, false
}
