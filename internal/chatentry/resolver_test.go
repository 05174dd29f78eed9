package chatentry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/chatentry"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llmtest"
)

// S6 — a strong-signal message resolves to an entry point without ever
// touching the LM classifier.
func TestResolveStrongSignalScenario(t *testing.T) {
	decision, err := chatentry.Resolve(context.Background(), nil, 0.6, "start from scenario")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryScenario, decision.EntryPoint)
	require.GreaterOrEqual(t, decision.Confidence, 0.95)
	require.Contains(t, decision.RulesHit, "strong:scenario:start from scenario")
}

func TestResolveStrongSignalToolSeed(t *testing.T) {
	decision, err := chatentry.Resolve(context.Background(), nil, 0.6, "Let's start from tool, a soil moisture sensor kit.")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryToolSeed, decision.EntryPoint)
	require.Contains(t, decision.RulesHit, "strong:tool_seed:start from tool")
}

func TestResolveKeywordFallback(t *testing.T) {
	decision, err := chatentry.Resolve(context.Background(), nil, 0.6, "I'd like to build something around a python notebook.")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryToolSeed, decision.EntryPoint)
	require.Equal(t, 0.75, decision.Confidence)
	require.Contains(t, decision.RulesHit, "keyword:tool_seed:python")
}

// Both entry points hit at the strong-signal tier: the rules defer to the
// keyword tier instead of asking immediately, carrying the ambiguous
// strong-tier hits forward into the final decision (engine/
// entry_decision.py's resolve_entry_decision quirk).
func TestResolveAmbiguousStrongSignalFallsThroughToKeywordTier(t *testing.T) {
	decision, err := chatentry.Resolve(context.Background(), nil, 0.6, "Start from scenario, start from tool.")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryScenario, decision.EntryPoint)
	require.Equal(t, 0.75, decision.Confidence)
	require.Contains(t, decision.RulesHit, "strong:scenario:start from scenario")
	require.Contains(t, decision.RulesHit, "strong:tool_seed:start from tool")
	require.Contains(t, decision.RulesHit, "keyword:scenario:scenario")
}

// Both entry points hit at both tiers: everything defers all the way to
// the LM fallback, which only inherits the strong tier's ambiguous hits.
func TestResolveAmbiguousAtBothTiersFallsThroughToLM(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			{"entry_point": "tool_seed", "confidence": 0.8},
		},
	}
	decision, err := chatentry.Resolve(context.Background(), stub, 0.6, "Start from scenario, start from tool, for this project.")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryToolSeed, decision.EntryPoint)
	require.Equal(t, 0.8, decision.Confidence)
	require.ElementsMatch(t, []string{
		"strong:scenario:start from scenario",
		"strong:scenario:from scenario",
		"strong:tool_seed:start from tool",
	}, decision.RulesHit)
}

func TestResolveNoRuleHitWithoutLMAsks(t *testing.T) {
	decision, err := chatentry.Resolve(context.Background(), nil, 0.6, "Good morning, how are you today?")
	require.NoError(t, err)
	require.True(t, decision.Ask)
}

func TestResolveFallsBackToLMClassifier(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			{"entry_point": "scenario", "confidence": 0.9},
		},
	}
	decision, err := chatentry.Resolve(context.Background(), stub, 0.6, "Good morning, how are you today?")
	require.NoError(t, err)
	require.False(t, decision.Ask)
	require.Equal(t, domain.EntryScenario, decision.EntryPoint)
	require.Equal(t, 0.9, decision.Confidence)
	require.Len(t, stub.Requests, 1)
}

func TestResolveLMBelowThresholdAsks(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			{"entry_point": "tool_seed", "confidence": 0.4},
		},
	}
	decision, err := chatentry.Resolve(context.Background(), stub, 0.6, "Good morning, how are you today?")
	require.NoError(t, err)
	require.True(t, decision.Ask)
}

func TestResolveLMInvalidEntryPointAsks(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			{"entry_point": "nonsense", "confidence": 0.9},
		},
	}
	decision, err := chatentry.Resolve(context.Background(), stub, 0.6, "Good morning, how are you today?")
	require.NoError(t, err)
	require.True(t, decision.Ask)
}

func TestResolveLMErrorPropagates(t *testing.T) {
	stub := &llmtest.Stub{Err: context.DeadlineExceeded}
	_, err := chatentry.Resolve(context.Background(), stub, 0.6, "Good morning, how are you today?")
	require.Error(t, err)
}
