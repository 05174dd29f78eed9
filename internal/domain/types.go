// Package domain holds the enumerations and entities spec.md §3 describes:
// the task, its per-stage artifacts and candidates, conflicts, decisions,
// creative context, and the event envelope that is the only legitimate
// mutator of task state.
package domain

// StageType enumerates the fixed creative stages plus the tool_seed
// pseudo-stage used only as a dependency-graph root for the tool_seed entry
// point.
type StageType string

const (
	StageToolSeed         StageType = "tool_seed"
	StageScenario         StageType = "scenario"
	StageDrivingQuestion  StageType = "driving_question"
	StageQuestionChain    StageType = "question_chain"
	StageActivity         StageType = "activity"
	StageExperiment       StageType = "experiment"
)

// StageSequence is the canonical progression after entry (spec.md §4.1).
var StageSequence = []StageType{
	StageScenario,
	StageDrivingQuestion,
	StageQuestionChain,
	StageActivity,
	StageExperiment,
}

type EntryPoint string

const (
	EntryScenario EntryPoint = "scenario"
	EntryToolSeed EntryPoint = "tool_seed"
)

type CandidateStatus string

const (
	CandidateGenerated CandidateStatus = "generated"
	CandidateFrozen    CandidateStatus = "frozen"
	CandidateSelected  CandidateStatus = "selected"
)

type StageStatus string

const (
	StageInitialized   StageStatus = "initialized"
	StageGenerating    StageStatus = "generating"
	StagePendingChoice StageStatus = "pending_choice"
	StageFeedbackLoop  StageStatus = "feedback_loop"
	StageModifying     StageStatus = "modifying"
	StageFinalized     StageStatus = "finalized"
)

type ConflictSeverity string

const (
	SeverityBlocking ConflictSeverity = "blocking"
	SeverityWarning  ConflictSeverity = "warning"
	SeverityInfo     ConflictSeverity = "info"
)

type ActionType string

const (
	ActionSelectCandidate     ActionType = "select_candidate"
	ActionRegenerateCandidates ActionType = "regenerate_candidates"
	ActionProvideFeedback     ActionType = "provide_feedback"
	ActionFinalizeStage       ActionType = "finalize_stage"
	ActionResolveConflict     ActionType = "resolve_conflict"
)

// ActionAliases implements the §6 alias table for task_action.
var ActionAliases = map[string]ActionType{
	"accept":                 ActionFinalizeStage,
	"finalize_stage":         ActionFinalizeStage,
	"select":                 ActionSelectCandidate,
	"select_candidate":       ActionSelectCandidate,
	"regenerate":             ActionRegenerateCandidates,
	"regenerate_candidates":  ActionRegenerateCandidates,
	"feedback":               ActionProvideFeedback,
	"provide_feedback":       ActionProvideFeedback,
	"resolve_conflict":       ActionResolveConflict,
}

func ResolveActionAlias(raw string) (ActionType, bool) {
	a, ok := ActionAliases[raw]
	return a, ok
}

type DialogueState string

const (
	DialogueExploring         DialogueState = "exploring"
	DialogueGenerating        DialogueState = "generating"
	DialogueSelecting         DialogueState = "selecting"
	DialogueConflictResolution DialogueState = "conflict_resolution"
)

type Direction string

const (
	DirectionForward            Direction = "forward"
	DirectionBackwardCompletion Direction = "backward_completion"
	DirectionStay               Direction = "stay"
	DirectionError              Direction = "error"
	DirectionForceExit          Direction = "force_exit"
)
