package chatentry

import (
	"context"
	"fmt"

	"github.com/riverglen/coursecraft/internal/candidates"
	"github.com/riverglen/coursecraft/internal/llm"
)

// maxScenarioAttempts is the starter-scenario synthesis retry budget
// before falling back to defaultFallbackScenario.
const maxScenarioAttempts = 2

// defaultFallbackScenario is the deterministic last-resort scenario text
// (SPEC_FULL.md §5, carried from the original's canned-fallback behavior)
// used when no LM client is configured, or after every LM attempt is
// rejected by the realism blocklist or fails outright — chat must never
// dead-end on the scenario branch.
const defaultFallbackScenario = "Your class is redesigning part of the school garden and needs a plan that fits within one class period, using only materials already on hand."

var starterScenarioSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"scenario": map[string]any{"type": "string"},
	},
	"required":             []string{"scenario"},
	"additionalProperties": false,
}

const starterScenarioSystemPrompt = `Write one short, realistic classroom starter scenario grounded in everyday
school life. No magic, sci-fi, or time travel.`

// SynthesizeScenario produces a starter scenario from a free-text prompt
// (e.g. a chat message that didn't already contain one), retrying against
// the realism blocklist before falling back to a deterministic scenario.
func SynthesizeScenario(ctx context.Context, lm llm.Client, userPrompt string, blocklist []string) (string, error) {
	if lm == nil {
		return defaultFallbackScenario, nil
	}
	for attempt := 0; attempt < maxScenarioAttempts; attempt++ {
		raw, err := lm.GenerateJSON(ctx, starterScenarioSystemPrompt, userPrompt, "starter_scenario", starterScenarioSchema)
		if err != nil {
			continue
		}
		scenario, _ := raw["scenario"].(string)
		if scenario == "" {
			continue
		}
		if candidates.FindUnrealisticTerm(scenario, blocklist) == "" {
			return scenario, nil
		}
		userPrompt = fmt.Sprintf("%s\n\nThe previous attempt used unrealistic content; try again with an everyday setting.", userPrompt)
	}
	return defaultFallbackScenario, nil
}
