package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/riverglen/coursecraft/internal/apierr"
	"github.com/riverglen/coursecraft/internal/chatentry"
	"github.com/riverglen/coursecraft/internal/dialogue"
	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/orchestrator"
	"github.com/riverglen/coursecraft/internal/transport/http/response"
)

// ChatHandler serves the chat-first bootstrap endpoint (spec.md §4.10,
// §6): a free-text message is resolved to an entry point before any task
// exists, or routed against an existing task's dialogue state once one
// does. Grounded on internal/http/handlers/chat.go's bind -> resolve ->
// service-call shape in the teacher.
type ChatHandler struct {
	Orchestrator *orchestrator.Orchestrator
	LM           llm.Client
	Threshold    float64
	Blocklist    []string

	divergence *dialogue.DivergenceDetector
	router     *dialogue.InteractionRouter
	creative   *dialogue.CreativeDialogueManager
}

func NewChatHandler(o *orchestrator.Orchestrator, lm llm.Client, threshold float64, blocklist []string) *ChatHandler {
	divergence := dialogue.NewDivergenceDetector()
	return &ChatHandler{
		Orchestrator: o,
		LM:           lm,
		Threshold:    threshold,
		Blocklist:    blocklist,
		divergence:   divergence,
		router:       dialogue.NewInteractionRouter(),
		creative:     dialogue.NewCreativeDialogueManager(divergence),
	}
}

type chatRequest struct {
	TaskID    string `json:"task_id,omitempty"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	Task          *domain.Task             `json:"task,omitempty"`
	Decision      *domain.DecisionResult   `json:"decision,omitempty"`
	EntryDecision *chatentry.EntryDecision `json:"entry_decision,omitempty"`
	DialogueState domain.DialogueState     `json:"dialogue_state,omitempty"`
	Ask           bool                     `json:"ask"`
	AskMessage    string                   `json:"ask_message,omitempty"`
}

// Chat handles POST chat. With no task_id it resolves an entry point from
// free text and bootstraps a task (scenario entry synthesizes a scenario
// from the message via the LM, tool_seed entry extracts structured seed
// fields). With a task_id it routes the message against the existing
// task's dialogue state and records it on the transcript.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Validation("invalid_request", err))
		return
	}

	if req.TaskID == "" {
		h.bootstrap(c, req)
		return
	}
	h.continueTask(c, req)
}

func (h *ChatHandler) bootstrap(c *gin.Context, req chatRequest) {
	ed, err := chatentry.Resolve(c.Request.Context(), h.LM, h.Threshold, req.Message)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if ed.Ask {
		response.RespondOK(c, chatResponse{Ask: true, AskMessage: ed.AskMessage, EntryDecision: &ed})
		return
	}

	entryData := map[string]any{"session_id": req.SessionID}
	switch ed.EntryPoint {
	case domain.EntryScenario:
		scenario, err := chatentry.SynthesizeScenario(c.Request.Context(), h.LM, req.Message, h.Blocklist)
		if err != nil {
			response.RespondError(c, err)
			return
		}
		entryData["scenario"] = scenario
	case domain.EntryToolSeed:
		seed := chatentry.ExtractToolSeed(map[string]any{"user_intent": req.Message})
		entryData["tool_seed"] = domain.ToPayloadValue(seed)
	}

	task, dr, _, err := h.Orchestrator.CreateTask(c.Request.Context(), ed.EntryPoint, entryData)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	entryPayload := map[string]any{
		"entry_point": string(ed.EntryPoint),
		"confidence":  ed.Confidence,
		"rules_hit":   ed.RulesHit,
	}
	task, err = h.Orchestrator.RecordMessage(task.TaskID, domain.Message{
		ID:            uuid.New().String(),
		Role:          "user",
		Content:       req.Message,
		Stage:         task.CurrentStage,
		EntryDecision: entryPayload,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondOK(c, chatResponse{Task: task, Decision: &dr, EntryDecision: &ed})
}

func (h *ChatHandler) continueTask(c *gin.Context, req chatRequest) {
	before, err := h.Orchestrator.Store.Get(req.TaskID)
	if err != nil {
		response.RespondError(c, apierr.NotFound("task_not_found", err))
		return
	}
	history := before.Messages

	task, err := h.Orchestrator.RecordMessage(req.TaskID, domain.Message{
		ID:      uuid.New().String(),
		Role:    "user",
		Content: req.Message,
	})
	if err != nil {
		response.RespondError(c, apierr.NotFound("task_not_found", err))
		return
	}

	// The router only ever toggles exploring/generating (spec.md §4.11);
	// a blocking conflict, not the router, is what gates Ask below.
	nextState := h.router.Route(task.DialogueState, req.Message, history)

	if update, ok := h.creative.ProcessMessage(task, req.Message); ok {
		task, err = h.Orchestrator.RecordIntentUpdate(task.TaskID, update.NewIntent, update.Trigger, update.KeyConstraints, update.AnchorConcepts, update.Summary)
		if err != nil {
			response.RespondError(c, err)
			return
		}
		task, err = h.Orchestrator.RecordMessage(task.TaskID, domain.Message{
			ID:      uuid.New().String(),
			Role:    "system",
			Content: "intent updated: " + update.NewIntent,
			Stage:   task.CurrentStage,
		})
		if err != nil {
			response.RespondError(c, err)
			return
		}
	}

	hasBlocking := false
	for _, conflict := range task.Conflicts[task.CurrentStage] {
		if !conflict.Resolved && conflict.Severity == domain.SeverityBlocking {
			hasBlocking = true
			break
		}
	}

	response.RespondOK(c, chatResponse{Task: task, DialogueState: nextState, Ask: hasBlocking})
}
