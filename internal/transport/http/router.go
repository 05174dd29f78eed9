// Package http wires the gin.Engine that fronts the orchestrator: route
// table, middleware stack and otelgin instrumentation, grounded on
// internal/http/router.go's RouterConfig-of-handlers + NewRouter(cfg)
// shape in the teacher.
package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/riverglen/coursecraft/internal/transport/http/handlers"
	"github.com/riverglen/coursecraft/internal/transport/http/middleware"
)

// RouterConfig bundles the handlers NewRouter wires into the engine,
// mirroring the teacher's internal/http.RouterConfig.
type RouterConfig struct {
	Task          *handlers.TaskHandler
	Chat          *handlers.ChatHandler
	Events        *handlers.EventsHandler
	AllowOrigins  []string
	ServiceName   string
}

// NewRouter builds the gin.Engine serving spec.md §6's task API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.AttachRequestContext())
	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/create_task", cfg.Task.CreateTask)
		api.GET("/task/:task_id", cfg.Task.GetTask)
		api.GET("/task/:task_id/progress", cfg.Task.TaskProgress)
		api.POST("/task/:task_id/action", cfg.Task.TaskAction)
		api.POST("/chat", cfg.Chat.Chat)
		api.GET("/task/:task_id/events", cfg.Events.Stream)
	}

	return r
}
