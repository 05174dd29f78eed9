package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/logger"
)

// heartbeatInterval mirrors the teacher's internal/sse/hub.go keep-alive
// cadence so proxies/load balancers don't time the connection out.
const heartbeatInterval = 15 * time.Second

// EventsHandler streams a task's event_emitted feed over SSE (spec.md §6
// task_events_stream(task_id)), grounded on internal/sse/hub.go's
// ServeHTTP: text/event-stream headers, a per-client subscription, and a
// heartbeat ticker racing the subscription channel in a select loop.
type EventsHandler struct {
	Bus *eventbus.Bus
	Log *logger.Logger
}

func NewEventsHandler(bus *eventbus.Bus, log *logger.Logger) *EventsHandler {
	return &EventsHandler{Bus: bus, Log: log}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	taskID := c.Param("task_id")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	sub := h.Bus.Subscribe(taskID)
	defer h.Bus.Unsubscribe(sub)

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w gin.ResponseWriter) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				if h.Log != nil {
					h.Log.Warn("events: marshal failed", "task_id", taskID, "error", err)
				}
				return true
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		}
	})
}
