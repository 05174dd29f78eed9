// Package promptctx assembles the shared prompt context every stage
// generator builds its prompt from: tool seed constraints, creative intent, decision history, working
// memory notes, and the avoid-list of already-seen candidate text.
// Grounded on generators/utils.py (get_prompt_context, get_tool_seed) and
// generators/diversity.py (collect_avoid_candidates) in the original
// source.
package promptctx

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/riverglen/coursecraft/internal/domain"
)

// Context is the normalized view of a task handed to a Generator.
type Context struct {
	Topic             string
	GradeLevel        string
	DurationMinutes   int
	ContextSummary    string
	KnowledgeSnippets map[string]any
	ToolConstraints   string
	ClassroomMode     string
	ClassroomContext  string
	OriginalIntent    string
	AnchorConcepts    []string
	PreferredStyle    string
	WorkingMemory     []string
	AvoidList         []string
}

// FromTask builds a Context for stage from task's current state.
func FromTask(task *domain.Task, stage domain.StageType) Context {
	seed := ToolSeed(task)
	constraints := seed.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}

	ctx := Context{
		Topic:            stringOr(constraints[domain.ConstraintTopic], firstNonEmpty(seed.UserIntent, seed.ToolName)),
		GradeLevel:       stringOr(constraints[domain.ConstraintGrade], ""),
		DurationMinutes:  intOr(constraints[domain.ConstraintDuration], 0),
		ContextSummary:   stringOr(constraints["context_summary"], seed.UserIntent),
		ToolConstraints:  stringOr(constraints[domain.ConstraintToolConstraints], ""),
		ClassroomMode:    stringOr(constraints[domain.ConstraintClassroomMode], "normal"),
		ClassroomContext: stringOr(constraints[domain.ConstraintClassroomContext], ""),
		OriginalIntent:   task.CreativeContext.OriginalIntent,
		AnchorConcepts:   append([]string(nil), task.CreativeContext.AnchorConcepts...),
		PreferredStyle:   task.CreativeContext.PreferredStyle,
		WorkingMemory:    append([]string(nil), task.WorkingMemory.Notes...),
		AvoidList:        CollectAvoidCandidates(task, stage, 6),
	}
	if snippets, ok := constraints[domain.ConstraintKnowledgeSnippets].(map[string]any); ok {
		ctx.KnowledgeSnippets = snippets
	}
	return ctx
}

// ToolSeed returns the task's tool seed, synthesizing one from entry_data
// when the task was not started via the tool_seed entry point (spec.md §3,
// grounded on generators/utils.py::get_tool_seed).
func ToolSeed(task *domain.Task) domain.ToolSeed {
	if task.ToolSeed != nil {
		return *task.ToolSeed
	}
	seed := domain.ToolSeed{Constraints: map[string]any{}}
	if task.EntryData == nil {
		return seed
	}
	if raw, ok := task.EntryData["tool_seed"].(map[string]any); ok {
		if v, ok := raw["tool_name"].(string); ok {
			seed.ToolName = v
		}
		if v, ok := raw["user_intent"].(string); ok {
			seed.UserIntent = v
		}
		if v, ok := raw["constraints"].(map[string]any); ok {
			seed.Constraints = v
		}
	}
	if seed.UserIntent == "" {
		if scenario, ok := task.EntryData["scenario"].(string); ok {
			seed.UserIntent = scenario
		}
	}
	if seed.UserIntent == "" {
		if topic, ok := seed.Constraints[domain.ConstraintTopic].(string); ok {
			seed.UserIntent = topic
		}
	}
	if seed.ToolName == "" {
		seed.ToolName = seed.UserIntent
	}
	return seed
}

// CollectAvoidCandidates returns up to maxItems short text summaries of
// already-surfaced candidates for stage, newest history first, so a
// regeneration prompt can steer the model away from repeats.
func CollectAvoidCandidates(task *domain.Task, stage domain.StageType, maxItems int) []string {
	artifact := task.Artifact(stage)
	if artifact == nil {
		return nil
	}
	var items []string
	for _, cand := range artifact.Candidates {
		if text := Summarize(ExtractTextFromContent(cand.Content, string(stage)), 160); text != "" {
			items = append(items, text)
		}
	}
	for i := len(artifact.History) - 1; i >= 0 && len(items) < maxItems; i-- {
		for _, cand := range artifact.History[i].Candidates {
			if text := Summarize(ExtractTextFromContent(cand.Content, string(stage)), 160); text != "" {
				items = append(items, text)
			}
		}
	}
	return dedupeCapped(items, maxItems)
}

func dedupeCapped(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, max)
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) >= max {
			break
		}
	}
	return out
}

// Summarize trims text to at most limit runes, collapsing newlines.
func Summarize(text string, limit int) string {
	if text == "" {
		return ""
	}
	trimmed := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	r := []rune(trimmed)
	if len(r) <= limit {
		return trimmed
	}
	return string(r[:limit])
}

// ExtractTextFromContent pulls the stage-relevant text out of a candidate's
// content map for similarity comparison and avoid-list display.
func ExtractTextFromContent(content map[string]any, stageKey string) string {
	if content == nil {
		return ""
	}
	if v, ok := content[stageKey]; ok {
		return valueToText(v)
	}
	for _, key := range []string{"driving_question", "question_chain", "scenario", "activity", "experiment"} {
		if v, ok := content[key]; ok {
			return valueToText(v)
		}
	}
	b, _ := json.Marshal(content)
	return string(b)
}

func valueToText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, " ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

func intOr(v any, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return fallback
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AppliedConstraints flattens a constraints map into "key:value" strings
// for GenerationContext.ConstraintsApplied, in stable key order.
func AppliedConstraints(constraints map[string]any) []string {
	keys := make([]string, 0, len(constraints))
	for k := range constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var applied []string
	for _, k := range keys {
		v := constraints[k]
		if v == nil {
			continue
		}
		if list, ok := v.([]any); ok {
			for _, item := range list {
				applied = append(applied, fmt.Sprintf("%s:%v", k, item))
			}
			continue
		}
		applied = append(applied, fmt.Sprintf("%s:%v", k, v))
	}
	return applied
}
