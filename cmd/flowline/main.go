package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/flowline/internal/agent"
	"github.com/nidhogg/flowline/internal/api"
	"github.com/nidhogg/flowline/internal/config"
	"github.com/nidhogg/flowline/internal/events"
	"github.com/nidhogg/flowline/internal/metrics"
	"github.com/nidhogg/flowline/internal/notify"
	"github.com/nidhogg/flowline/internal/orchestrator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	// Load configuration: file when present, environment otherwise.
	var cfg *config.Config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/flowline.json"
	}
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	logger := newLogger(cfg.Server.Env, cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Flowline...",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port))

	collector := metrics.NewCollector("flowline")

	// Lifecycle event bus is optional; the pipeline runs without Redis.
	var bus *events.Bus
	if cfg.Events.RedisURL != "" {
		b, err := events.NewBus(cfg.Events.RedisURL, cfg.Events.Stream, logger)
		if err != nil {
			logger.Warn("Redis unavailable, running without event stream", zap.Error(err))
		} else {
			bus = b
			logger.Info("Event stream connected")
		}
	}

	hub := notify.NewHub(logger)
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		hub.Register(notify.NewSlackNotifier(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		dn, err := notify.NewDiscordNotifier(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if err != nil {
			logger.Warn("Discord notifier unavailable", zap.Error(err))
		} else {
			hub.Register(dn)
		}
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
		BackoffBase:   time.Duration(cfg.Orchestrator.BackoffBaseMS) * time.Millisecond,
	}, collector, bus, hub, logger)

	registerAgents(orch, logger)
	registerWorkflows(orch, cfg, logger)

	handler := api.NewHandler(orch, collector, cfg.Server.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Flowline listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Flowline...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	bus.Close()
	hub.Close()
}

// registerAgents installs the fixed agent roster.
func registerAgents(orch *orchestrator.Orchestrator, logger *zap.Logger) {
	roster := []agent.Agent{
		agent.NewTriage(logger),
		agent.NewAnalyst(logger),
		agent.NewWriter(logger),
		agent.NewSupervisor(logger),
	}
	for _, a := range roster {
		if err := orch.RegisterAgent(a); err != nil {
			logger.Fatal("agent registration failed",
				zap.String("agent", a.Name()), zap.Error(err))
		}
	}
}

// registerWorkflows installs configured workflows, falling back to the
// default content pipeline when none are configured.
func registerWorkflows(orch *orchestrator.Orchestrator, cfg *config.Config, logger *zap.Logger) {
	if len(cfg.Workflows) == 0 {
		if err := orch.RegisterWorkflow(defaultContentPipeline()); err != nil {
			logger.Fatal("default workflow registration failed", zap.Error(err))
		}
		return
	}
	for _, wc := range cfg.Workflows {
		wf := &orchestrator.Workflow{
			Name:              wc.Name,
			EscalationHandler: wc.EscalationHandler,
		}
		for _, sc := range wc.Steps {
			retries := sc.Retries
			if retries < 1 {
				retries = 1
			}
			wf.Steps = append(wf.Steps, orchestrator.Step{
				Name:              sc.Name,
				Agent:             sc.Agent,
				Config:            sc.Config,
				Retries:           retries,
				EscalateOnFailure: sc.EscalateOnFailure,
			})
		}
		if err := orch.RegisterWorkflow(wf); err != nil {
			logger.Fatal("workflow registration failed",
				zap.String("workflow", wc.Name), zap.Error(err))
		}
	}
}

func defaultContentPipeline() *orchestrator.Workflow {
	return &orchestrator.Workflow{
		Name:              "content-pipeline",
		EscalationHandler: "supervisor",
		Steps: []orchestrator.Step{
			{Name: "classify", Agent: "triage", Retries: 2, EscalateOnFailure: true,
				Config: map[string]any{"task_type": "classify"}},
			{Name: "analyze", Agent: "analyst", Retries: 2, EscalateOnFailure: false,
				Config: map[string]any{"task_type": "analyze"}},
			{Name: "draft", Agent: "writer", Retries: 1, EscalateOnFailure: true,
				Config: map[string]any{"task_type": "draft"}},
		},
	}
}

func newLogger(env, level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}
