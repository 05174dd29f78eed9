// Package orchestrator implements spec.md §4.9: create_task/apply_action,
// the apply-action flow (dependency redirect, per-action branches,
// auto-finalize), the iteration ceiling / force_exit decision, and the
// user-action-timeout reminder message. Grounded on services/orchestrator.py
// in the original source and the teacher's internal/jobs/worker.Worker
// goroutine-pool pattern (via internal/orchestrator/genpool).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riverglen/coursecraft/internal/apierr"
	"github.com/riverglen/coursecraft/internal/candidates"
	"github.com/riverglen/coursecraft/internal/decision"
	"github.com/riverglen/coursecraft/internal/depgraph"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/logger"
	"github.com/riverglen/coursecraft/internal/orchestrator/genpool"
	"github.com/riverglen/coursecraft/internal/statemachine"
	"github.com/riverglen/coursecraft/internal/store"
	"github.com/riverglen/coursecraft/internal/validators"
)

// DefaultCandidateCount is how many alternatives a stage generator is
// asked to produce per batch. Not specified numerically by spec.md; three
// mirrors the original's UI layout (three-up candidate cards).
const DefaultCandidateCount = 3

// Orchestrator is the task API's implementation: create_task and
// apply_action (spec.md §4.9), constructed once per process with its
// collaborators injected (spec.md §9 REDESIGN FLAGS: "avoid hidden
// globals so tests can construct fresh instances per case").
type Orchestrator struct {
	Store       *store.Store
	Bus         *eventbus.Bus
	Generators  candidates.WrappedRegistry
	Scheduler   genpool.Scheduler
	Log         *logger.Logger
	UserActionTimeout time.Duration
}

func New(st *store.Store, bus *eventbus.Bus, generators candidates.WrappedRegistry, scheduler genpool.Scheduler, log *logger.Logger, userActionTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		Store:             st,
		Bus:               bus,
		Generators:        generators,
		Scheduler:         scheduler,
		Log:               log,
		UserActionTimeout: userActionTimeout,
	}
}

func (o *Orchestrator) newEvent(taskID string, evType domain.EventType, stage *domain.StageType, payload map[string]any) domain.Event {
	return domain.Event{
		EventID:   uuid.New().String(),
		Type:      evType,
		TaskID:    taskID,
		Stage:     stage,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (o *Orchestrator) publish(event domain.Event) {
	if o.Bus == nil {
		return
	}
	o.Bus.Publish(event)
}

func stagePtr(s domain.StageType) *domain.StageType { return &s }

// CreateTask initializes a new Task from an entry_point/entry_data pair
// (spec.md §4.9). On success it schedules candidate generation for the
// first reachable stage and returns the task, the decision that routed to
// it, and the (possibly still-generating) artifact for that stage.
func (o *Orchestrator) CreateTask(ctx context.Context, entryPoint domain.EntryPoint, entryData map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	var toolSeed *domain.ToolSeed
	switch entryPoint {
	case domain.EntryScenario:
		scenario, _ := entryData["scenario"].(string)
		if scenario == "" {
			return nil, domain.DecisionResult{}, nil, apierr.Validation("missing_scenario", fmt.Errorf("entry_data.scenario is required for entry_point=scenario"))
		}
	case domain.EntryToolSeed:
		raw, ok := entryData["tool_seed"].(map[string]any)
		if !ok {
			return nil, domain.DecisionResult{}, nil, apierr.Validation("invalid_tool_seed", fmt.Errorf("entry_data.tool_seed is required for entry_point=tool_seed"))
		}
		var ts domain.ToolSeed
		if err := domain.DecodePayloadValue(raw, &ts); err != nil || ts.ToolName == "" {
			return nil, domain.DecisionResult{}, nil, apierr.Validation("invalid_tool_seed", fmt.Errorf("tool_seed.tool_name is required"))
		}
		toolSeed = &ts
	default:
		return nil, domain.DecisionResult{}, nil, apierr.Validation("invalid_entry_point", fmt.Errorf("entry_point must be scenario or tool_seed"))
	}

	taskID := uuid.New().String()
	sessionID, _ := entryData["session_id"].(string)

	payload := map[string]any{
		"entry_point": string(entryPoint),
		"entry_data":  entryData,
		"session_id":  sessionID,
		"trace_root_id": uuid.New().String(),
	}
	if toolSeed != nil {
		payload["tool_seed"] = domain.ToPayloadValue(toolSeed)
	}

	task, _, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventTaskCreated, nil, payload), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: create task: %w", err)
	}

	dr := decision.MakeDecision(task, nil, "create_task")
	task, decisionEvent, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventDecisionEmitted, nil, map[string]any{"decision": domain.ToPayloadValue(dr)}), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: record decision: %w", err)
	}
	o.publish(decisionEvent)

	var artifact *domain.StageArtifact
	if dr.Direction == domain.DirectionForward && dr.NextStage != nil {
		task, artifact, err = o.scheduleGeneration(ctx, taskID, *dr.NextStage, "", false)
		if err != nil {
			return nil, domain.DecisionResult{}, nil, err
		}
	}
	return task, dr, artifact, nil
}

// ApplyAction implements spec.md §4.9.1. actionTypeRaw accepts both
// canonical action names and the §6 aliases.
func (o *Orchestrator) ApplyAction(ctx context.Context, taskID string, actionTypeRaw string, payload map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	actionType, ok := domain.ResolveActionAlias(actionTypeRaw)
	if !ok {
		return nil, domain.DecisionResult{}, nil, apierr.Validation("unknown_action", fmt.Errorf("unknown action_type %q", actionTypeRaw))
	}

	task, err := o.Store.Get(taskID)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, apierr.NotFound("task_not_found", fmt.Errorf("task %q not found", taskID))
	}

	task = o.maybeRemindTimeout(task, taskID)

	stage := task.CurrentStage
	if raw, ok := payload["stage"].(string); ok && raw != "" {
		stage = domain.StageType(raw)
	}
	if stage == "" {
		stage = domain.StageScenario
	}

	missingChain, err := depgraph.MissingChain(stage, task.EntryPoint, task.CompletedStages)
	if err != nil {
		task, dr, derr := o.emitDependencyCycle(taskID, err)
		return task, dr, nil, derr
	}
	if len(missingChain) > 0 && missingChain[0] != stage {
		head := missingChain[0]
		task, dr, err := o.redirect(taskID, head, missingChain)
		return task, dr, nil, err
	}

	stageStatus := task.StageStatus[stage]
	if !statemachine.CanApplyAction(stageStatus, actionType) {
		return task, domain.DecisionResult{
			Direction:   domain.DirectionStay,
			Explanation: domain.Explanation{Summary: "Action not allowed in current stage status."},
			UserMessage: fmt.Sprintf("Action %q is not allowed while stage %q is %q.", actionType, stage, stageStatus),
		}, task.Artifact(stage), nil
	}

	switch actionType {
	case domain.ActionProvideFeedback:
		return o.handleProvideFeedback(ctx, taskID, stage, payload)
	case domain.ActionRegenerateCandidates:
		return o.handleRegenerate(ctx, taskID, stage, payload)
	case domain.ActionSelectCandidate:
		return o.handleSelectCandidate(ctx, taskID, stage, payload)
	case domain.ActionFinalizeStage:
		return o.handleFinalize(ctx, taskID, stage)
	case domain.ActionResolveConflict:
		return o.handleResolveConflict(ctx, taskID, stage, payload)
	default:
		return nil, domain.DecisionResult{}, nil, apierr.Validation("unknown_action", fmt.Errorf("unhandled action_type %q", actionType))
	}
}

func (o *Orchestrator) emitDependencyCycle(taskID string, cause error) (*domain.Task, domain.DecisionResult, error) {
	dr := domain.DecisionResult{
		Direction:   domain.DirectionError,
		Explanation: domain.Explanation{Summary: cause.Error()},
		UserMessage: "Dependency cycle detected. Please review the dependency table.",
		Constraints: map[string]any{"error": "dependency_cycle"},
	}
	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventDecisionEmitted, nil, map[string]any{"decision": domain.ToPayloadValue(dr)}), nil
	})
	if err != nil {
		return nil, dr, err
	}
	o.publish(ev)
	task, ev, err = o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventErrorRaised, nil, map[string]any{"message": cause.Error()}), nil
	})
	if err != nil {
		return nil, dr, err
	}
	o.publish(ev)
	return task, dr, nil
}

func (o *Orchestrator) redirect(taskID string, head domain.StageType, missingChain []domain.StageType) (*domain.Task, domain.DecisionResult, error) {
	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventStageRedirected, nil, map[string]any{"current_stage": string(head)}), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, err
	}
	o.publish(ev)

	dr := domain.DecisionResult{
		NextStage: &head,
		Direction: domain.DirectionBackwardCompletion,
		Explanation: domain.Explanation{
			Summary: "Missing dependencies detected.",
			Details: []string{"Missing chain: " + joinStageNames(missingChain)},
		},
		UserMessage: "Please complete prerequisite stages first.",
		Constraints: map[string]any{"missing_chain": stageNames(missingChain)},
	}
	task, ev, err = o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventDecisionEmitted, nil, map[string]any{"decision": domain.ToPayloadValue(dr)}), nil
	})
	if err != nil {
		return nil, dr, err
	}
	o.publish(ev)
	return task, dr, nil
}

func (o *Orchestrator) maybeRemindTimeout(task *domain.Task, taskID string) *domain.Task {
	if o.UserActionTimeout <= 0 || task.CurrentStage == "" {
		return task
	}
	status := task.StageStatus[task.CurrentStage]
	if status != domain.StagePendingChoice && status != domain.StageFeedbackLoop {
		return task
	}
	if time.Since(task.UpdatedAt) <= o.UserActionTimeout {
		return task
	}
	msg := domain.Message{
		ID:        uuid.New().String(),
		Role:      "assistant",
		Content:   "Still with you — pick a candidate, give feedback, or finalize whenever you're ready.",
		Stage:     task.CurrentStage,
		CreatedAt: time.Now().UTC(),
	}
	next, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventMessageEmitted, stagePtr(task.CurrentStage), map[string]any{"message": domain.ToPayloadValue(msg)}), nil
	})
	if err != nil {
		return task
	}
	o.publish(ev)
	return next
}

func (o *Orchestrator) handleProvideFeedback(ctx context.Context, taskID string, stage domain.StageType, payload map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	feedback, _ := payload["feedback"].(string)

	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventFeedbackRecorded, stagePtr(stage), map[string]any{}), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: record feedback: %w", err)
	}
	o.publish(ev)

	return o.regenerateOrForceExit(ctx, taskID, task, stage, feedback, domain.ActionProvideFeedback)
}

func (o *Orchestrator) handleRegenerate(ctx context.Context, taskID string, stage domain.StageType, payload map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	feedback, _ := payload["feedback"].(string)
	task, err := o.Store.Get(taskID)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, apierr.NotFound("task_not_found", err)
	}
	return o.regenerateOrForceExit(ctx, taskID, task, stage, feedback, domain.ActionRegenerateCandidates)
}

func (o *Orchestrator) regenerateOrForceExit(ctx context.Context, taskID string, task *domain.Task, stage domain.StageType, feedback string, action domain.ActionType) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	artifact := task.Artifact(stage)
	iterationCount := 0
	if artifact != nil {
		iterationCount = artifact.IterationCount
	}

	if statemachine.ShouldForceExit(iterationCount) {
		dr := forceExitDecision(artifact)
		task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
			return o.newEvent(taskID, domain.EventDecisionEmitted, stagePtr(stage), map[string]any{"decision": domain.ToPayloadValue(dr)}), nil
		})
		if err != nil {
			return nil, dr, nil, fmt.Errorf("orchestrator: force exit: %w", err)
		}
		o.publish(ev)
		return task, dr, task.Artifact(stage), nil
	}

	task, artifactAfter, err := o.scheduleGeneration(ctx, taskID, stage, feedback, true)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, err
	}
	dr := decision.MakeDecision(task, stagePtr(stage), string(action))
	return task, dr, artifactAfter, nil
}

// forceExitDecision recommends the candidate with the highest
// alignment_score (ties broken by first-occurrence order), per spec.md
// §4.9.2.
func forceExitDecision(artifact *domain.StageArtifact) domain.DecisionResult {
	constraints := map[string]any{"force_exit": true}
	if artifact != nil && len(artifact.Candidates) > 0 {
		best := artifact.Candidates[0]
		for _, c := range artifact.Candidates[1:] {
			if c.AlignmentScore > best.AlignmentScore {
				best = c
			}
		}
		constraints["recommended_candidate_id"] = best.ID
		constraints["recommended_title"] = best.Title
		constraints["recommended_alignment_score"] = best.AlignmentScore
	}
	return domain.DecisionResult{
		Direction:   domain.DirectionForceExit,
		Explanation: domain.Explanation{Summary: "Iteration ceiling reached."},
		UserMessage: "You've reached the maximum number of regenerations for this stage. Please choose the recommended candidate or select one yourself.",
		Constraints: constraints,
	}
}

// scheduleGeneration flips the stage to "generating" synchronously, then
// dispatches the actual LM call to o.Scheduler. The generation result is
// posted back through the reducer when the job completes (spec.md §5);
// with genpool.Immediate (tests) this happens before Submit returns, so
// the returned artifact already carries the fresh candidates.
func (o *Orchestrator) scheduleGeneration(ctx context.Context, taskID string, stage domain.StageType, feedback string, regenerated bool) (*domain.Task, *domain.StageArtifact, error) {
	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventGenerationScheduled, stagePtr(stage), map[string]any{}), nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: schedule generation: %w", err)
	}
	o.publish(ev)

	o.Scheduler.Submit(func(jobCtx context.Context) {
		o.runGeneration(jobCtx, taskID, stage, feedback, regenerated)
	})

	task, err = o.Store.Get(taskID)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: reload after schedule: %w", err)
	}
	return task, task.Artifact(stage), nil
}

func (o *Orchestrator) runGeneration(ctx context.Context, taskID string, stage domain.StageType, feedback string, regenerated bool) {
	task, err := o.Store.Get(taskID)
	if err != nil {
		o.logError(taskID, stage, fmt.Errorf("load task: %w", err))
		return
	}

	wrapper, ok := o.Generators.Get(stage)
	if !ok {
		o.logError(taskID, stage, fmt.Errorf("no generator registered for stage %q", stage))
		return
	}

	result, err := wrapper.Generate(ctx, task, DefaultCandidateCount, feedback)
	if err != nil {
		o.emitErrorRaised(taskID, err)
		return
	}

	nonEmpty := validators.NonEmpty(result)
	revisionID := uuid.New().String()
	evType := domain.EventCandidatesGenerated
	if regenerated {
		evType = domain.EventCandidatesRegenerated
	}
	genEvent := o.newEvent(taskID, evType, stagePtr(stage), map[string]any{
		"revision_id": revisionID,
		"candidates":  domain.ToPayloadValue(result),
		"generation_context": domain.ToPayloadValue(domain.GenerationContext{
			BasedOn:   derivedFromOf(result),
			Timestamp: time.Now().UTC(),
		}),
		"warnings": domain.ToPayloadValue(nonEmpty.Warnings),
	})

	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return genEvent, nil
	})
	if err != nil {
		o.logError(taskID, stage, fmt.Errorf("apply generation event: %w", err))
		return
	}
	o.publish(ev)

	dr := decision.MakeDecision(task, stagePtr(stage), "generate")
	task, ev, err = o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventDecisionEmitted, stagePtr(stage), map[string]any{"decision": domain.ToPayloadValue(dr)}), nil
	})
	if err != nil {
		o.logError(taskID, stage, fmt.Errorf("apply decision event: %w", err))
		return
	}
	o.publish(ev)
}

func derivedFromOf(candidates []domain.Candidate) []string {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0].DerivedFrom
}

func (o *Orchestrator) emitErrorRaised(taskID string, cause error) {
	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventErrorRaised, nil, map[string]any{"message": cause.Error()}), nil
	})
	if err != nil {
		o.logError(taskID, "", fmt.Errorf("apply error_raised: %w", err))
		return
	}
	_ = task
	o.publish(ev)
}

func (o *Orchestrator) logError(taskID string, stage domain.StageType, err error) {
	if o.Log == nil {
		return
	}
	o.Log.Error("orchestrator generation job failed", "task_id", taskID, "stage", string(stage), "error", err)
}

func (o *Orchestrator) handleSelectCandidate(ctx context.Context, taskID string, stage domain.StageType, payload map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	candidateID, _ := payload["candidate_id"].(string)
	if candidateID == "" {
		return nil, domain.DecisionResult{}, nil, apierr.Validation("missing_candidate_id", fmt.Errorf("payload.candidate_id is required"))
	}

	task, err := o.Store.Get(taskID)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, apierr.NotFound("task_not_found", err)
	}
	artifact := task.Artifact(stage)
	var found *domain.Candidate
	if artifact != nil {
		for i := range artifact.Candidates {
			if artifact.Candidates[i].ID == candidateID {
				found = &artifact.Candidates[i]
				break
			}
		}
	}
	if found == nil {
		return nil, domain.DecisionResult{}, nil, apierr.Validation("candidate_not_found", fmt.Errorf("candidate %q not found in stage %q", candidateID, stage))
	}
	if found.Status == domain.CandidateFrozen {
		return nil, domain.DecisionResult{}, nil, apierr.Validation("candidate_not_selectable", fmt.Errorf("candidate not selectable"))
	}

	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventCandidateSelected, stagePtr(stage), map[string]any{"candidate_id": candidateID}), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: select candidate: %w", err)
	}
	o.publish(ev)

	task, err = o.runValidators(taskID, task, stage)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, err
	}

	if canFinalize(task, stage) {
		return o.finalizeStage(taskID, stage)
	}

	if blocking := firstUnresolvedBlocking(task, stage); blocking != nil {
		task = o.emitConflictMessage(taskID, task, stage, *blocking)
	}

	dr := decision.MakeDecision(task, stagePtr(stage), "select_candidate")
	return task, dr, task.Artifact(stage), nil
}

// runValidators applies the activity-alignment validator when applicable
// (spec.md §4.8: only stage=activity, entry_point=tool_seed), emitting
// conflict_detected when it finds an issue.
func (o *Orchestrator) runValidators(taskID string, task *domain.Task, stage domain.StageType) (*domain.Task, error) {
	if stage != domain.StageActivity || task.EntryPoint != domain.EntryToolSeed || task.ToolSeed == nil {
		return task, nil
	}
	artifact := task.Artifact(stage)
	if artifact == nil {
		return task, nil
	}
	selected := artifact.SelectedCandidate()
	if selected == nil {
		return task, nil
	}
	activityText, _ := selected.Content["activity"].(string)

	var questionChain []string
	if qcArtifact := task.Artifact(domain.StageQuestionChain); qcArtifact != nil {
		if qc := qcArtifact.SelectedCandidate(); qc != nil {
			if list, ok := qc.Content["question_chain"].([]any); ok {
				for _, q := range list {
					if s, ok := q.(string); ok {
						questionChain = append(questionChain, s)
					}
				}
			}
		}
	}

	conflictID := uuid.New().String()
	result := validators.ActivityAlignment(*task.ToolSeed, questionChain, activityText, conflictID)
	if len(result.Conflicts) == 0 {
		return task, nil
	}

	next, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventConflictDetected, stagePtr(stage), map[string]any{"conflict": domain.ToPayloadValue(result.Conflicts[0])}), nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: emit conflict: %w", err)
	}
	o.publish(ev)
	return next, nil
}

func firstUnresolvedBlocking(task *domain.Task, stage domain.StageType) *domain.Conflict {
	for i := range task.Conflicts[stage] {
		c := task.Conflicts[stage][i]
		if c.Severity == domain.SeverityBlocking && !c.Resolved {
			return &c
		}
	}
	return nil
}

func (o *Orchestrator) emitConflictMessage(taskID string, task *domain.Task, stage domain.StageType, conflict domain.Conflict) *domain.Task {
	var opts []string
	for _, opt := range conflict.ConflictOptions {
		opts = append(opts, fmt.Sprintf("%s) %s — %s", opt.OptionKey, opt.Title, opt.Description))
	}
	msg := domain.Message{
		ID:      uuid.New().String(),
		Role:    "assistant",
		Content: conflict.Summary + " Options: " + joinStrings(opts, " | "),
		Stage:   stage,
		CreatedAt: time.Now().UTC(),
	}
	next, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventMessageEmitted, stagePtr(stage), map[string]any{"message": domain.ToPayloadValue(msg)}), nil
	})
	if err != nil {
		return task
	}
	o.publish(ev)
	return next
}

func (o *Orchestrator) handleFinalize(ctx context.Context, taskID string, stage domain.StageType) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	task, err := o.Store.Get(taskID)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, apierr.NotFound("task_not_found", err)
	}
	if !canFinalize(task, stage) {
		return task, domain.DecisionResult{
			Direction:   domain.DirectionStay,
			Explanation: domain.Explanation{Summary: "Stage cannot be finalized yet."},
			UserMessage: "Select a candidate and resolve any blocking conflicts before finalizing.",
		}, task.Artifact(stage), nil
	}
	return o.finalizeStage(taskID, stage)
}

func (o *Orchestrator) handleResolveConflict(ctx context.Context, taskID string, stage domain.StageType, payload map[string]any) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	conflictID, _ := payload["conflict_id"].(string)
	option, _ := payload["option"].(string)
	if conflictID == "" || option == "" {
		return nil, domain.DecisionResult{}, nil, apierr.Validation("missing_resolution_fields", fmt.Errorf("payload.conflict_id and payload.option are required"))
	}

	task, ev, err := o.Store.Mutate(taskID, func(current *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventConflictResolved, stagePtr(stage), map[string]any{"conflict_id": conflictID, "option": option}), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: resolve conflict: %w", err)
	}
	o.publish(ev)

	if canFinalize(task, stage) {
		return o.finalizeStage(taskID, stage)
	}
	dr := decision.MakeDecision(task, stagePtr(stage), "resolve_conflict")
	return task, dr, task.Artifact(stage), nil
}

// canFinalize implements spec.md §4.9.1's finalize gate: a selected
// candidate in status=selected, and no unresolved blocking conflict.
func canFinalize(task *domain.Task, stage domain.StageType) bool {
	artifact := task.Artifact(stage)
	if artifact == nil || artifact.SelectedCandidateID == "" {
		return false
	}
	selected := artifact.SelectedCandidate()
	if selected == nil || selected.Status != domain.CandidateSelected {
		return false
	}
	return firstUnresolvedBlocking(task, stage) == nil
}

// finalizeStage implements spec.md §4.9.1's _finalize_stage: emits
// stage_finalized, then task_completed if no stage remains, else schedules
// the next stage's candidate generation.
func (o *Orchestrator) finalizeStage(taskID string, stage domain.StageType) (*domain.Task, domain.DecisionResult, *domain.StageArtifact, error) {
	current, err := o.Store.Get(taskID)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, apierr.NotFound("task_not_found", err)
	}
	next := nextRequiredStageAfter(current, stage)

	payload := map[string]any{}
	if next != nil {
		payload["next_stage"] = string(*next)
	}
	task, ev, err := o.Store.Mutate(taskID, func(c *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventStageFinalized, stagePtr(stage), payload), nil
	})
	if err != nil {
		return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: finalize stage: %w", err)
	}
	o.publish(ev)

	if next == nil {
		task, ev, err = o.Store.Mutate(taskID, func(c *domain.Task) (domain.Event, error) {
			return o.newEvent(taskID, domain.EventTaskCompleted, nil, map[string]any{}), nil
		})
		if err != nil {
			return nil, domain.DecisionResult{}, nil, fmt.Errorf("orchestrator: complete task: %w", err)
		}
		o.publish(ev)
		dr := decision.MakeDecision(task, nil, "finalize_stage")
		return task, dr, nil, nil
	}

	var artifact *domain.StageArtifact
	task, artifact, err = o.scheduleGeneration(context.Background(), taskID, *next, "", false)
	if err != nil {
		return nil, domain.DecisionResult{}, nil, err
	}
	dr := decision.MakeDecision(task, next, "finalize_stage")
	return task, dr, artifact, nil
}

// nextRequiredStageAfter returns the first stage in the canonical sequence
// not yet completed, treating stage itself as already completed.
func nextRequiredStageAfter(task *domain.Task, stage domain.StageType) *domain.StageType {
	completed := map[domain.StageType]bool{stage: true}
	for _, s := range task.CompletedStages {
		completed[s] = true
	}
	for _, s := range domain.StageSequence {
		if !completed[s] {
			st := s
			return &st
		}
	}
	return nil
}

// RecordMessage appends msg to the task's transcript as a message_emitted
// event. Used by the chat transport to attach an entry_decision (spec.md
// §6's S6 scenario expects it in task.messages) alongside the task_created
// event CreateTask already emits.
func (o *Orchestrator) RecordMessage(taskID string, msg domain.Message) (*domain.Task, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	task, ev, err := o.Store.Mutate(taskID, func(c *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventMessageEmitted, nil, map[string]any{"message": domain.ToPayloadValue(msg)}), nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: record message: %w", err)
	}
	o.publish(ev)
	return task, nil
}

// RecordIntentUpdate persists a creative-dialogue intent shift as the two
// events reducer.go already applies (spec.md §4.11): intent_updated for
// the original_intent transition itself, then creative_context_updated
// for the constraint/anchor/summary bookkeeping that rides along with it.
// Used by the chat transport when internal/dialogue's CreativeDialogueManager
// recommends an update, so task.creative_context actually changes rather
// than the update only surfacing as a transcript message.
func (o *Orchestrator) RecordIntentUpdate(taskID, newIntent, trigger string, keyConstraints, anchorConcepts []string, summary string) (*domain.Task, error) {
	task, ev, err := o.Store.Mutate(taskID, func(c *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventIntentUpdated, nil, map[string]any{
			"new_intent": newIntent,
			"trigger":    trigger,
		}), nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: record intent update: %w", err)
	}
	o.publish(ev)

	task, ev, err = o.Store.Mutate(taskID, func(c *domain.Task) (domain.Event, error) {
		return o.newEvent(taskID, domain.EventCreativeContextUpdated, nil, map[string]any{
			"intent":          newIntent,
			"key_constraints": domain.ToPayloadValue(keyConstraints),
			"anchor_concepts": domain.ToPayloadValue(anchorConcepts),
			"summary":         summary,
		}), nil
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: record creative context update: %w", err)
	}
	o.publish(ev)
	return task, nil
}

func stageNames(stages []domain.StageType) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func joinStageNames(stages []domain.StageType) string {
	names := stageNames(stages)
	return joinStrings(names, ", ")
}

func joinStrings(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
