// Package app wires the process together, grounded on
// internal/app/app.go in the teacher: a single App struct built by New(),
// started with Start(), served with Run(addr), torn down with Close().
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riverglen/coursecraft/internal/candidates"
	"github.com/riverglen/coursecraft/internal/config"
	"github.com/riverglen/coursecraft/internal/eventbus"
	"github.com/riverglen/coursecraft/internal/eventbus/redisbus"
	"github.com/riverglen/coursecraft/internal/eventlog"
	"github.com/riverglen/coursecraft/internal/llm"
	"github.com/riverglen/coursecraft/internal/logger"
	"github.com/riverglen/coursecraft/internal/orchestrator"
	"github.com/riverglen/coursecraft/internal/orchestrator/genpool"
	"github.com/riverglen/coursecraft/internal/store"
	"github.com/riverglen/coursecraft/internal/tracer"
	coursecrafthttp "github.com/riverglen/coursecraft/internal/transport/http"
	"github.com/riverglen/coursecraft/internal/transport/http/handlers"
)

type App struct {
	Log          *logger.Logger
	Cfg          config.Config
	Store        *store.Store
	Bus          *eventbus.Bus
	Orchestrator *orchestrator.Orchestrator
	Router       *gin.Engine

	redisForwarder *redisbus.Forwarder
	pool           *genpool.Pool
	tracerShutdown func(context.Context) error
	cancel         context.CancelFunc
}

// New builds every layer of the system in dependency order: event log ->
// store -> bus -> LLM client -> candidate registry -> worker pool ->
// orchestrator -> router. Errors abort startup; there is no partial app.
func New() (*App, error) {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("loading coursecraft config")

	evlog, err := eventlog.New(cfg.PersistenceRoot)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init event log: %w", err)
	}
	st := store.New(evlog)
	bus := eventbus.New(log)

	var forwarder *redisbus.Forwarder
	if cfg.RedisAddr != "" {
		forwarder, err = redisbus.New(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis forwarder: %w", err)
		}
	}

	lmClient, err := buildLLMClient(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	registry := candidates.NewRegistry(lmClient, cfg.ScenarioRealismBlocklist)
	pool := genpool.New(cfg.WorkerConcurrency, log)

	userActionTimeout := time.Duration(cfg.UserActionTimeoutSeconds) * time.Second
	orch := orchestrator.New(st, bus, registry, pool, log, userActionTimeout)

	tracerShutdown := tracer.Init(context.Background(), log, tracer.Config{
		Enabled:      cfg.OtelEnabled,
		ProjectName:  cfg.TraceProjectName,
		OTLPEndpoint: cfg.OtelOTLPEndpoint,
		SamplerRatio: cfg.OtelSamplerRatio,
	})

	router := coursecrafthttp.NewRouter(coursecrafthttp.RouterConfig{
		Task:        handlers.NewTaskHandler(orch, st),
		Chat:        handlers.NewChatHandler(orch, lmClient, cfg.EntryConfidenceThreshold, cfg.ScenarioRealismBlocklist),
		Events:      handlers.NewEventsHandler(bus, log),
		ServiceName: cfg.TraceProjectName,
	})

	return &App{
		Log:            log,
		Cfg:            cfg,
		Store:          st,
		Bus:            bus,
		Orchestrator:   orch,
		Router:         router,
		redisForwarder: forwarder,
		pool:           pool,
		tracerShutdown: tracerShutdown,
	}, nil
}

// buildLLMClient assembles an llm.Config by hand from config.Config
// rather than llm.ConfigFromEnv, since this process reads the spec's
// LLM_*/OPENAI_* env names, not the client package's own
// COURSECRAFT_LLM_* defaults. LLM_REQUIRED=false degrades to a nil
// client; every LM-backed path (chatentry, candidates) already tolerates
// nil by falling back to rule-based or ask-the-user behavior.
func buildLLMClient(cfg config.Config, log *logger.Logger) (llm.Client, error) {
	if cfg.LLMAPIKey == "" {
		if cfg.LLMRequired {
			return nil, fmt.Errorf("init llm client: LLM_REQUIRED is true but no API key is configured")
		}
		log.Warn("starting without an LLM client: LLM_REQUIRED is false and no API key is set")
		return nil, nil
	}
	lmCfg := llm.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	}
	client, err := llm.New(lmCfg, log)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return client, nil
}

// Start launches the background components: the Redis forwarder, if
// configured. The worker pool needs no start step; it spawns a goroutine
// per submitted job. Safe to call once; a second call is a no-op.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.redisForwarder != nil {
		go func() {
			if err := a.redisForwarder.StartForwarder(ctx, a.Bus); err != nil && ctx.Err() == nil {
				a.Log.Warn("redis forwarder stopped", "error", err)
			}
		}()
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

// Close stops background work, flushes the tracer, and syncs the logger.
// Order matters: cancel the forwarder before tearing down tracing so its
// shutdown log line still has somewhere to go.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.redisForwarder != nil {
		if err := a.redisForwarder.Close(); err != nil {
			a.Log.Warn("redis forwarder close failed", "error", err)
		}
	}
	if a.pool != nil {
		a.pool.Wait()
	}
	if a.tracerShutdown != nil {
		_ = a.tracerShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
