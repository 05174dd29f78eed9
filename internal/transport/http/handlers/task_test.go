package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/riverglen/coursecraft/internal/candidates"
	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/eventlog"
	"github.com/riverglen/coursecraft/internal/llmtest"
	"github.com/riverglen/coursecraft/internal/orchestrator"
	"github.com/riverglen/coursecraft/internal/orchestrator/genpool"
	"github.com/riverglen/coursecraft/internal/store"
	"github.com/riverglen/coursecraft/internal/transport/http/handlers"
)

func scenarioOptions(prefix string, n int) map[string]any {
	texts := []string{
		"A neighborhood bakery wants to cut bread waste by the end of the month.",
		"A community greenhouse is losing tomato seedlings to an unknown pest.",
		"A robotics club needs a faster way to sort recycling by material.",
	}
	options := make([]any, 0, n)
	for i := 0; i < n; i++ {
		options = append(options, map[string]any{
			"title": prefix + " " + string(rune('A'+i)),
			"text":  texts[i%len(texts)],
		})
	}
	return map[string]any{"options": options}
}

func newTestRouter(t *testing.T, stub *llmtest.Stub) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log, err := eventlog.New(t.TempDir())
	require.NoError(t, err)
	st := store.New(log)
	bus := eventbus.New(nil)
	registry := candidates.NewRegistry(stub, nil)
	orch := orchestrator.New(st, bus, registry, genpool.Immediate{}, nil, 0)

	h := handlers.NewTaskHandler(orch, st)

	r := gin.New()
	r.POST("/tasks", h.CreateTask)
	r.GET("/tasks/:task_id", h.GetTask)
	r.GET("/tasks/:task_id/progress", h.TaskProgress)
	r.POST("/tasks/:task_id/action", h.TaskAction)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTaskHandlerCreateGetAndAction(t *testing.T) {
	stub := &llmtest.Stub{
		JSONResponses: []map[string]any{
			scenarioOptions("Scenario", 3),
		},
	}
	r := newTestRouter(t, stub)

	createRec := doJSON(t, r, http.MethodPost, "/tasks", map[string]any{
		"entry_point": "scenario",
		"scenario":    "Test scenario",
		"session_id":  "s1",
	})
	require.Equal(t, http.StatusOK, createRec.Code)

	var created struct {
		Task struct {
			TaskID string `json:"task_id"`
		} `json:"task"`
		CurrentStageArtifact struct {
			Candidates []struct {
				ID string `json:"id"`
			} `json:"candidates"`
		} `json:"current_stage_artifact"`
	}
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Task.TaskID)
	require.Len(t, created.CurrentStageArtifact.Candidates, 3)

	getRec := httptest.NewRecorder()
	getReq := httptest.NewRequest(http.MethodGet, "/tasks/"+created.Task.TaskID, nil)
	r.ServeHTTP(getRec, getReq)
	require.Equal(t, http.StatusOK, getRec.Code)

	progressRec := httptest.NewRecorder()
	progressReq := httptest.NewRequest(http.MethodGet, "/tasks/"+created.Task.TaskID+"/progress", nil)
	r.ServeHTTP(progressRec, progressReq)
	require.Equal(t, http.StatusOK, progressRec.Code)

	actionRec := doJSON(t, r, http.MethodPost, "/tasks/"+created.Task.TaskID+"/action", map[string]any{
		"action_type": "select_candidate",
		"payload": map[string]any{
			"stage":        "scenario",
			"candidate_id": "A",
		},
	})
	require.Equal(t, http.StatusOK, actionRec.Code)
}

func TestTaskHandlerCreateTaskInvalidEntryPoint(t *testing.T) {
	r := newTestRouter(t, &llmtest.Stub{})

	rec := doJSON(t, r, http.MethodPost, "/tasks", map[string]any{
		"entry_point": "nonsense",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandlerGetTaskNotFound(t *testing.T) {
	r := newTestRouter(t, &llmtest.Stub{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tasks/does-not-exist", nil)
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandlerActionOnUnknownTask(t *testing.T) {
	r := newTestRouter(t, &llmtest.Stub{})

	rec := doJSON(t, r, http.MethodPost, "/tasks/does-not-exist/action", map[string]any{
		"action_type": "select_candidate",
		"payload":     map[string]any{"candidate_id": "A"},
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}
