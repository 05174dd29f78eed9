// Package reducer implements the pure (task, event) -> task function that
// is the only legitimate mutator of Task state (spec.md §4.4). It never
// generates IDs or reads the clock: every event payload already carries
// whatever values it needs, so replaying the event log from an empty task
// reproduces the exact same Task value every time (spec.md §8.6).
package reducer

import (
	"time"

	"github.com/riverglen/coursecraft/internal/domain"
)

// Reduce applies event to task and returns a new Task value. task may be
// nil only for task_created; every other event type requires a non-nil
// task (the store is responsible for sequencing task_created first).
func Reduce(task *domain.Task, event domain.Event) *domain.Task {
	if event.Type == domain.EventTaskCreated {
		return applyTaskCreated(event)
	}
	if task == nil {
		return nil
	}
	next := task.Clone()
	next.UpdatedAt = event.Timestamp

	switch event.Type {
	case domain.EventDecisionEmitted:
		applyDecisionEmitted(next, event)
	case domain.EventCandidatesGenerated:
		applyCandidates(next, event, false)
	case domain.EventCandidatesRegenerated:
		applyCandidates(next, event, true)
	case domain.EventCandidateSelected:
		applyCandidateSelected(next, event)
	case domain.EventFeedbackRecorded:
		applyFeedbackRecorded(next, event)
	case domain.EventConflictDetected:
		applyConflictDetected(next, event)
	case domain.EventConflictResolved:
		applyConflictResolved(next, event)
	case domain.EventMessageEmitted:
		applyMessageEmitted(next, event)
	case domain.EventIntentUpdated:
		applyIntentUpdated(next, event)
	case domain.EventCreativeContextUpdated:
		applyCreativeContextUpdated(next, event)
	case domain.EventClarificationRequested:
		applyClarificationRequested(next, event)
	case domain.EventStageFinalized:
		applyStageFinalized(next, event)
	case domain.EventStageRedirected:
		applyStageRedirected(next, event)
	case domain.EventGenerationScheduled:
		applyGenerationScheduled(next, event)
	case domain.EventTaskCompleted:
		next.Status = domain.TaskCompleted
	case domain.EventErrorRaised:
		next.Status = domain.TaskError
	default:
		// Unknown event types are no-ops (spec.md §4.4).
	}
	return next
}

func applyTaskCreated(event domain.Event) *domain.Task {
	payload := event.Payload
	entryPoint := domain.EntryPoint(domain.PayloadString(payload, "entry_point"))

	var toolSeed *domain.ToolSeed
	if raw, ok := payload["tool_seed"]; ok && raw != nil {
		var ts domain.ToolSeed
		_ = domain.DecodePayloadValue(raw, &ts)
		toolSeed = &ts
	}

	entryData := map[string]any{}
	if raw, ok := payload["entry_data"].(map[string]any); ok {
		entryData = raw
	}

	completed := []domain.StageType{}
	if entryPoint == domain.EntryToolSeed {
		completed = append(completed, domain.StageToolSeed)
	}

	task := &domain.Task{
		TaskID:          event.TaskID,
		SessionID:       domain.PayloadString(payload, "session_id"),
		EntryPoint:      entryPoint,
		EntryData:       entryData,
		ToolSeed:        toolSeed,
		CurrentStage:    "",
		CompletedStages: completed,
		Artifacts:       map[domain.StageType]*domain.StageArtifact{},
		Status:          domain.TaskInProgress,
		StageStatus:     map[domain.StageType]domain.StageStatus{},
		Conflicts:       map[domain.StageType][]domain.Conflict{},
		DecisionHistory: []map[string]any{},
		Messages:        []domain.Message{},
		CreativeContext: domain.CreativeContext{
			OriginalIntent: domain.PayloadString(payload, "original_intent"),
		},
		DialogueState: domain.DialogueExploring,
		WorkingMemory: domain.WorkingMemory{},
		TraceRootID:   domain.PayloadString(payload, "trace_root_id"),
		CreatedAt:     event.Timestamp,
		UpdatedAt:     event.Timestamp,
	}
	return task
}

func applyDecisionEmitted(task *domain.Task, event domain.Event) {
	var decision domain.DecisionResult
	_ = domain.DecodePayloadValue(event.Payload["decision"], &decision)
	task.LastDecision = &decision
	task.DecisionHistory = append(task.DecisionHistory, map[string]any{
		"kind":      "decision_emitted",
		"decision":  domain.ToPayloadValue(decision),
		"timestamp": event.Timestamp,
	})
}

func ensureArtifact(task *domain.Task, stage domain.StageType) *domain.StageArtifact {
	if task.Artifacts == nil {
		task.Artifacts = map[domain.StageType]*domain.StageArtifact{}
	}
	a, ok := task.Artifacts[stage]
	if !ok || a == nil {
		a = &domain.StageArtifact{
			Stage:      stage,
			Status:     domain.StageInitialized,
			Candidates: []domain.Candidate{},
			History:    []domain.HistoryEntry{},
		}
		task.Artifacts[stage] = a
	}
	return a
}

func applyCandidates(task *domain.Task, event domain.Event, regenerated bool) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	artifact := ensureArtifact(task, stage)

	revisionID := domain.PayloadString(event.Payload, "revision_id")
	if revisionID != "" && revisionID == artifact.RevisionID {
		// Idempotent replay of an already-installed revision: no-op.
		return
	}

	if len(artifact.Candidates) > 0 {
		frozen := domain.CloneCandidates(artifact.Candidates)
		for i := range frozen {
			if frozen[i].Status != domain.CandidateSelected {
				frozen[i].Status = domain.CandidateFrozen
			}
		}
		reason := "regenerated"
		if !regenerated {
			reason = "replaced"
		}
		artifact.History = append(artifact.History, domain.HistoryEntry{
			RevisionID: artifact.RevisionID,
			Candidates: frozen,
			Reason:     reason,
			ArchivedAt: event.Timestamp,
		})
	}

	var candidates []domain.Candidate
	_ = domain.DecodePayloadValue(event.Payload["candidates"], &candidates)
	var genCtx domain.GenerationContext
	_ = domain.DecodePayloadValue(event.Payload["generation_context"], &genCtx)

	var warnings []string
	_ = domain.DecodePayloadValue(event.Payload["warnings"], &warnings)

	artifact.RevisionID = revisionID
	artifact.Candidates = candidates
	artifact.GenerationContext = genCtx
	artifact.SelectedCandidateID = ""
	artifact.Warnings = warnings
	artifact.Status = domain.StagePendingChoice
	if regenerated {
		artifact.IterationCount++
	}

	task.StageStatus[stage] = domain.StagePendingChoice
	task.DialogueState = domain.DialogueSelecting
	delete(task.Conflicts, stage)
	task.CurrentStage = stage
}

func applyCandidateSelected(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	artifact := ensureArtifact(task, stage)
	candidateID := domain.PayloadString(event.Payload, "candidate_id")

	for i := range artifact.Candidates {
		if artifact.Candidates[i].ID == candidateID {
			artifact.Candidates[i].Status = domain.CandidateSelected
		} else {
			artifact.Candidates[i].Status = domain.CandidateFrozen
		}
	}
	artifact.SelectedCandidateID = candidateID
	delete(task.Conflicts, stage)

	task.DecisionHistory = append(task.DecisionHistory, map[string]any{
		"kind":         "candidate_selected",
		"stage":        string(stage),
		"candidate_id": candidateID,
		"timestamp":    event.Timestamp,
	})

	if cand := artifact.SelectedCandidate(); cand != nil {
		task.WorkingMemory.Focus = cand.Title
	}
}

func applyFeedbackRecorded(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	artifact := ensureArtifact(task, stage)
	artifact.Status = domain.StageFeedbackLoop
	task.StageStatus[stage] = domain.StageFeedbackLoop
	task.DialogueState = domain.DialogueGenerating

	artifact.History = append(artifact.History, domain.HistoryEntry{
		RevisionID: artifact.RevisionID,
		Candidates: domain.CloneCandidates(artifact.Candidates),
		Reason:     "feedback",
		ArchivedAt: event.Timestamp,
	})
}

func applyConflictDetected(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	var conflict domain.Conflict
	_ = domain.DecodePayloadValue(event.Payload["conflict"], &conflict)
	if task.Conflicts == nil {
		task.Conflicts = map[domain.StageType][]domain.Conflict{}
	}
	task.Conflicts[stage] = append(task.Conflicts[stage], conflict)
}

func applyConflictResolved(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	conflictID := domain.PayloadString(event.Payload, "conflict_id")
	option := domain.PayloadString(event.Payload, "option")
	for i := range task.Conflicts[stage] {
		if task.Conflicts[stage][i].ConflictID == conflictID {
			task.Conflicts[stage][i].Resolved = true
			task.Conflicts[stage][i].ResolvedOption = option
		}
	}
}

func applyMessageEmitted(task *domain.Task, event domain.Event) {
	var msg domain.Message
	_ = domain.DecodePayloadValue(event.Payload["message"], &msg)
	task.Messages = append(task.Messages, msg)
	if msg.EntryDecision != nil {
		task.DecisionHistory = append(task.DecisionHistory, map[string]any{
			"kind":           "entry_decision",
			"entry_decision": msg.EntryDecision,
			"timestamp":      event.Timestamp,
		})
	}
}

func applyIntentUpdated(task *domain.Task, event domain.Event) {
	before := task.CreativeContext.OriginalIntent
	after := domain.PayloadString(event.Payload, "new_intent")
	task.CreativeContext.OriginalIntent = after
	task.CreativeContext.IntentEvolution = append(task.CreativeContext.IntentEvolution, domain.IntentRevision{
		Timestamp:     event.Timestamp,
		Trigger:       domain.PayloadString(event.Payload, "trigger"),
		Before:        before,
		After:         after,
		UserConfirmed: domain.PayloadBool(event.Payload, "user_confirmed"),
	})
}

func applyCreativeContextUpdated(task *domain.Task, event domain.Event) {
	if intent, ok := event.Payload["intent"].(string); ok && intent != "" && intent != task.CreativeContext.OriginalIntent {
		before := task.CreativeContext.OriginalIntent
		task.CreativeContext.OriginalIntent = intent
		task.CreativeContext.IntentEvolution = append(task.CreativeContext.IntentEvolution, domain.IntentRevision{
			Timestamp: event.Timestamp,
			Trigger:   "creative_dialogue",
			Before:    before,
			After:     intent,
		})
	}
	var constraints []string
	_ = domain.DecodePayloadValue(event.Payload["key_constraints"], &constraints)
	task.CreativeContext.KeyConstraints = mergeDedup(task.CreativeContext.KeyConstraints, constraints, 5)

	var anchors []string
	_ = domain.DecodePayloadValue(event.Payload["anchor_concepts"], &anchors)
	task.CreativeContext.AnchorConcepts = mergeDedup(task.CreativeContext.AnchorConcepts, anchors, 0)

	if summary := domain.PayloadString(event.Payload, "summary"); summary != "" {
		task.WorkingMemory.AddNote(summary)
	}

	task.DecisionHistory = append(task.DecisionHistory, map[string]any{
		"kind":      "creative_context_updated",
		"timestamp": event.Timestamp,
	})
}

func applyClarificationRequested(task *domain.Task, event domain.Event) {
	task.DecisionHistory = append(task.DecisionHistory, map[string]any{
		"kind":      "clarification_requested",
		"question":  domain.PayloadString(event.Payload, "question"),
		"timestamp": event.Timestamp,
	})
}

func applyStageFinalized(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	artifact := ensureArtifact(task, stage)
	artifact.Status = domain.StageFinalized
	task.StageStatus[stage] = domain.StageFinalized
	if !task.HasCompletedStage(stage) {
		task.CompletedStages = append(task.CompletedStages, stage)
	}
	if next := domain.PayloadString(event.Payload, "next_stage"); next != "" {
		task.CurrentStage = domain.StageType(next)
	}
}

func applyGenerationScheduled(task *domain.Task, event domain.Event) {
	if event.Stage == nil {
		return
	}
	stage := *event.Stage
	artifact := ensureArtifact(task, stage)
	artifact.Status = domain.StageGenerating
	task.StageStatus[stage] = domain.StageGenerating
}

func applyStageRedirected(task *domain.Task, event domain.Event) {
	task.CurrentStage = domain.StageType(domain.PayloadString(event.Payload, "current_stage"))
	if task.StageStatus == nil {
		task.StageStatus = map[domain.StageType]domain.StageStatus{}
	}
	task.StageStatus[task.CurrentStage] = domain.StageInitialized
}

func mergeDedup(existing []string, incoming []string, limit int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(existing)+len(incoming))
	for _, v := range existing {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	for _, v := range incoming {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Now returns the wall-clock time the orchestrator should stamp onto events
// it emits. The reducer itself never calls this — only event construction
// does — keeping Reduce itself a pure function of its arguments.
func Now() time.Time { return time.Now().UTC() }
