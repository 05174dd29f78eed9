// Package chatentry resolves a chat message into an entry point
// (spec.md §4.10) before a task exists: rule-first (strong-signal, then
// keyword) and only then an LM-fallback classifier, mirroring the
// teacher's internal/waitpoint classifier-then-reduce shape
// (Interpreter.Run: build a prompt, call the model for JSON, reduce the
// result to a typed Decision) and grounded on engine/entry_decision.py.
package chatentry

import (
	"context"
	"fmt"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
)

// EntryDecision is the resolver's verdict: which entry point a chat
// message should start a task with, how it got there, and whether the
// confidence was too low to commit without asking the user.
type EntryDecision struct {
	EntryPoint domain.EntryPoint
	Confidence float64
	RulesHit   []string
	Ask        bool
	AskMessage string
}

// strongScenarioPhrases/strongToolPhrases and scenarioKeywords/toolKeywords
// are engine/entry_decision.py's STRONG_SCENARIO_PHRASES/STRONG_TOOL_PHRASES
// and SCENARIO_KEYWORDS/TOOL_KEYWORDS, ported literally (English subset —
// this product has no i18n layer elsewhere in the spec, so the original's
// Chinese phrase variants are dropped).
var strongScenarioPhrases = []string{
	"start from scenario",
	"from scenario",
}

var strongToolPhrases = []string{
	"start from tool",
	"start from experiment",
	"start from activity",
	"start from driving question",
}

var scenarioKeywords = []string{"scenario"}

var toolKeywords = []string{
	"project", "activity", "experiment", "driving question", "question chain",
	"orange", "weka", "scratch", "python", "jupyter", "colab", "excel",
	"power bi", "pytorch", "tensorflow", "sklearn", "scikit", "matlab", "rapidminer",
}

const classifierSchemaName = "entry_point_classification"

var classifierSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"entry_point": map[string]any{"type": "string", "enum": []string{"scenario", "tool_seed"}},
		"confidence":  map[string]any{"type": "number"},
	},
	"required":             []string{"entry_point", "confidence"},
	"additionalProperties": false,
}

const classifierSystemPrompt = `Decide whether a teacher's message is best started as a "scenario"
(a classroom situation) or a "tool_seed" (an existing tool/algorithm to build
a lesson around). Reply with your best guess and a confidence between 0 and 1.`

const askNoSignalMessage = "Could you tell me if you'd like to start from a classroom scenario, or from a specific tool/algorithm?"

// Resolve implements spec.md §4.10/engine/entry_decision.py's
// resolve_entry_decision: strong-signal phrases, then keyword phrases —
// a hit on both entry points at either tier defers to the next tier rather
// than asking immediately — then an LM fallback classifier. threshold is
// ENTRY_CONFIDENCE_THRESHOLD (internal/config); below it, Resolve asks for
// disambiguation instead of committing.
func Resolve(ctx context.Context, lm llm.Client, threshold float64, message string) (EntryDecision, error) {
	lower := strings.ToLower(message)

	strongChoice, strongHits := matchTier(lower, strongScenarioPhrases, strongToolPhrases, "strong")
	if strongChoice != "" {
		return finalize(strongChoice, 0.95, strongHits, threshold), nil
	}

	keywordChoice, keywordHits := matchTier(lower, scenarioKeywords, toolKeywords, "keyword")
	if keywordChoice != "" {
		return finalize(keywordChoice, 0.75, append(append([]string{}, strongHits...), keywordHits...), threshold), nil
	}

	if lm == nil {
		return EntryDecision{Ask: true, AskMessage: askNoSignalMessage}, nil
	}

	raw, err := lm.GenerateJSON(ctx, classifierSystemPrompt, message, classifierSchemaName, classifierSchema)
	if err != nil {
		return EntryDecision{}, err
	}
	entryPointRaw, _ := raw["entry_point"].(string)
	confidence, _ := raw["confidence"].(float64)
	confidence = clamp01(confidence)
	entryPoint := domain.EntryPoint(entryPointRaw)
	if entryPoint != domain.EntryScenario && entryPoint != domain.EntryToolSeed {
		return EntryDecision{Ask: true, AskMessage: askNoSignalMessage}, nil
	}

	// The original preserves only the strong tier's (ambiguous) rules_hit
	// when falling all the way through to the LM; the keyword tier's
	// ambiguous hits are discarded at this point.
	return finalize(entryPoint, confidence, strongHits, threshold), nil
}

func finalize(entryPoint domain.EntryPoint, confidence float64, rulesHit []string, threshold float64) EntryDecision {
	if confidence < threshold {
		return EntryDecision{
			Ask:        true,
			AskMessage: fmt.Sprintf("I'm not fully sure whether to start from a scenario or a tool. Did you mean %s?", entryPoint),
		}
	}
	return EntryDecision{
		EntryPoint: entryPoint,
		Confidence: confidence,
		RulesHit:   rulesHit,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// matchTier checks message against the scenario and tool_seed phrase lists
// for one tier. A hit on both sides returns an empty EntryPoint with every
// hit recorded, so the caller can defer to the next tier (engine/
// entry_decision.py's _apply_strong_signals/_apply_keyword_rules "both
// sides hit" branch) while still carrying the ambiguous hits forward.
func matchTier(message string, scenarioPhrases, toolPhrases []string, tierName string) (domain.EntryPoint, []string) {
	scenarioHits := matchPhrases(message, scenarioPhrases)
	toolHits := matchPhrases(message, toolPhrases)

	switch {
	case len(scenarioHits) > 0 && len(toolHits) > 0:
		hits := append(prefixAll(tierName, "scenario", scenarioHits), prefixAll(tierName, "tool_seed", toolHits)...)
		return "", hits
	case len(scenarioHits) > 0:
		return domain.EntryScenario, prefixAll(tierName, "scenario", scenarioHits)
	case len(toolHits) > 0:
		return domain.EntryToolSeed, prefixAll(tierName, "tool_seed", toolHits)
	default:
		return "", nil
	}
}

func matchPhrases(message string, phrases []string) []string {
	var hits []string
	for _, p := range phrases {
		if strings.Contains(message, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

func prefixAll(tier, entryPoint string, phrases []string) []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = fmt.Sprintf("%s:%s:%s", tier, entryPoint, p)
	}
	return out
}
