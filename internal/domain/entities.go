package domain

import "time"

// ToolSeed is immutable after task creation.
type ToolSeed struct {
	ToolName    string         `json:"tool_name"`
	Algorithms  []string       `json:"algorithms"`
	Affordances []string       `json:"affordances"`
	UserIntent  string         `json:"user_intent"`
	Constraints map[string]any `json:"constraints"`
}

// Recognized constraint keys (spec.md §3).
const (
	ConstraintTopic             = "topic"
	ConstraintGrade             = "grade"
	ConstraintDuration          = "duration"
	ConstraintClassroomMode     = "classroom_mode"
	ConstraintClassroomContext  = "classroom_context"
	ConstraintKnowledgeSnippets = "knowledge_snippets"
	ConstraintToolConstraints   = "tool_constraints"
)

type GenerationContext struct {
	BasedOn            []string       `json:"based_on"`
	ConstraintsApplied map[string]any `json:"constraints_applied"`
	Timestamp          time.Time      `json:"timestamp"`
}

// Candidate is one alternative surfaced for a stage.
type Candidate struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Status            CandidateStatus   `json:"status"`
	Content           map[string]any    `json:"content"`
	Rationale         string            `json:"rationale"`
	DerivedFrom       []string          `json:"derived_from"`
	AlignmentScore    float64           `json:"alignment_score"`
	GenerationContext GenerationContext `json:"generation_context"`
}

type ConflictOption struct {
	OptionKey   string `json:"option_key"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Conflict struct {
	ConflictID      string            `json:"conflict_id"`
	Stage           StageType         `json:"stage"`
	Severity        ConflictSeverity  `json:"severity"`
	Summary         string            `json:"summary"`
	Warnings        []string          `json:"warnings"`
	ConflictOptions []ConflictOption  `json:"conflict_options"`
	Recommendation  string            `json:"recommendation"`
	Resolved        bool              `json:"resolved"`
	ResolvedOption  string            `json:"resolved_option,omitempty"`
}

// HistoryEntry is a frozen snapshot of a prior revision's candidates plus
// the reason it was superseded.
type HistoryEntry struct {
	RevisionID string          `json:"revision_id"`
	Candidates []Candidate     `json:"candidates"`
	Reason     string          `json:"reason"`
	ArchivedAt time.Time       `json:"archived_at"`
}

type StageArtifact struct {
	Stage               StageType         `json:"stage"`
	RevisionID          string            `json:"revision_id"`
	Status              StageStatus       `json:"status"`
	IterationCount      int               `json:"iteration_count"`
	Candidates          []Candidate       `json:"candidates"`
	SelectedCandidateID string            `json:"selected_candidate_id"`
	Warnings            []string          `json:"warnings"`
	History             []HistoryEntry    `json:"history"`
	GenerationContext   GenerationContext `json:"generation_context"`
}

func (a *StageArtifact) SelectedCandidate() *Candidate {
	if a == nil || a.SelectedCandidateID == "" {
		return nil
	}
	for i := range a.Candidates {
		if a.Candidates[i].ID == a.SelectedCandidateID {
			return &a.Candidates[i]
		}
	}
	return nil
}

type Explanation struct {
	Summary string   `json:"summary"`
	Details []string `json:"details"`
}

type DecisionResult struct {
	NextStage   *StageType     `json:"next_stage"`
	Direction   Direction      `json:"direction"`
	Explanation Explanation    `json:"explanation"`
	UserMessage string         `json:"user_message"`
	Constraints map[string]any `json:"constraints"`
}

type IntentRevision struct {
	Timestamp     time.Time `json:"timestamp"`
	Trigger       string    `json:"trigger"`
	Before        string    `json:"before"`
	After         string    `json:"after"`
	UserConfirmed bool      `json:"user_confirmed"`
}

type CreativeContext struct {
	OriginalIntent  string           `json:"original_intent"`
	IntentEvolution []IntentRevision `json:"intent_evolution"`
	KeyConstraints  []string         `json:"key_constraints"`
	PreferredStyle  string           `json:"preferred_style"`
	AnchorConcepts  []string         `json:"anchor_concepts"`
}

type WorkingMemory struct {
	Focus string   `json:"focus"`
	Notes []string `json:"notes"`
}

const workingMemoryMaxNotes = 10

// AddNote appends a note and truncates to the most recent 10 (spec.md §3).
func (w *WorkingMemory) AddNote(note string) {
	if note == "" {
		return
	}
	w.Notes = append(w.Notes, note)
	if len(w.Notes) > workingMemoryMaxNotes {
		w.Notes = w.Notes[len(w.Notes)-workingMemoryMaxNotes:]
	}
}

type Message struct {
	ID             string         `json:"id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Stage          StageType      `json:"stage,omitempty"`
	EntryDecision  map[string]any `json:"entry_decision,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type TaskStatus string

const (
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskError      TaskStatus = "error"
)

// Task is the sole owner of its artifacts, conflicts, messages, and history.
type Task struct {
	TaskID          string                        `json:"task_id"`
	SessionID       string                        `json:"session_id"`
	EntryPoint      EntryPoint                    `json:"entry_point"`
	EntryData       map[string]any                `json:"entry_data"`
	ToolSeed        *ToolSeed                     `json:"tool_seed,omitempty"`
	CurrentStage    StageType                     `json:"current_stage"`
	CompletedStages []StageType                   `json:"completed_stages"`
	Artifacts       map[StageType]*StageArtifact  `json:"artifacts"`
	Status          TaskStatus                    `json:"status"`
	StageStatus     map[StageType]StageStatus     `json:"stage_status"`
	Conflicts       map[StageType][]Conflict      `json:"conflicts"`
	LastDecision    *DecisionResult               `json:"last_decision"`
	DecisionHistory []map[string]any              `json:"decision_history"`
	Messages        []Message                     `json:"messages"`
	CreativeContext CreativeContext                `json:"creative_context"`
	DialogueState   DialogueState                  `json:"dialogue_state"`
	WorkingMemory   WorkingMemory                  `json:"working_memory"`
	TraceRootID     string                         `json:"trace_root_id"`
	PendingCascade  map[string]any                 `json:"pending_cascade,omitempty"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

// HasCompletedStage reports whether stage is already in completed_stages.
func (t *Task) HasCompletedStage(stage StageType) bool {
	for _, s := range t.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

func (t *Task) Artifact(stage StageType) *StageArtifact {
	if t.Artifacts == nil {
		return nil
	}
	return t.Artifacts[stage]
}

// EventType enumerates the reducer's supported mutations (spec.md §4.4).
type EventType string

const (
	EventTaskCreated            EventType = "task_created"
	EventDecisionEmitted        EventType = "decision_emitted"
	EventCandidatesGenerated    EventType = "candidates_generated"
	EventCandidatesRegenerated  EventType = "candidates_regenerated"
	EventCandidateSelected      EventType = "candidate_selected"
	EventFeedbackRecorded       EventType = "feedback_recorded"
	EventConflictDetected       EventType = "conflict_detected"
	EventConflictResolved       EventType = "conflict_resolved"
	EventMessageEmitted         EventType = "message_emitted"
	EventIntentUpdated          EventType = "intent_updated"
	EventStageFinalized         EventType = "stage_finalized"
	EventStageRedirected        EventType = "stage_redirected"
	EventTaskCompleted          EventType = "task_completed"
	EventErrorRaised            EventType = "error_raised"
	EventCreativeContextUpdated EventType = "creative_context_updated"
	EventClarificationRequested EventType = "clarification_requested"

	// EventGenerationScheduled marks a stage "generating" while its
	// candidate batch is in flight on the worker pool. Not named in
	// spec.md §4.4's event list directly — it's the event-sourced form of
	// the StageStatus.generating transition the state machine (§4.3)
	// already expects stages to pass through while an async batch runs.
	EventGenerationScheduled EventType = "generation_scheduled"
)

// Event is the only legitimate mutator of Task state.
type Event struct {
	EventID   string         `json:"event_id"`
	Type      EventType      `json:"type"`
	TaskID    string         `json:"task_id"`
	Stage     *StageType     `json:"stage,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
	Trace     map[string]any `json:"trace,omitempty"`
}
