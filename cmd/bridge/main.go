package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/api"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/usecase"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/conf"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/data"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/chatlog"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/llm"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/service"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Printf("[Main] Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		fmt.Printf("[Main] Failed to create data directory: %v\n", err)
		os.Exit(1)
	}

	chatlogClient := chatlog.NewClient(cfg.Chatlog.BaseURL, time.Duration(cfg.Chatlog.TimeoutSeconds)*time.Second)

	var llmClient *llm.Client
	if cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
		fmt.Println("[Main] LLM summarizer enabled")
	} else {
		fmt.Println("[Main] LLM summarizer disabled, digests use deterministic formatting")
	}

	repos, err := data.NewRepositories(cfg.Data.Dir, cfg.Data.MemoryRoot, chatlogClient, llmClient)
	if err != nil {
		fmt.Printf("[Main] Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer repos.Close()

	evaluator := usecase.NewEvaluator(cfg.Capture.ToEvaluatorConfig())
	pipeline := usecase.NewPipeline(repos.State, repos.Buffer, repos.Sink, repos.Decisions, repos.Summarizer, evaluator)
	health := service.NewHealthState()

	scheduler := service.NewBackfillScheduler(
		pipeline,
		repos.Targets,
		repos.History,
		repos.State,
		repos.Buffer,
		health,
		time.Duration(cfg.Backfill.IntervalMinutes)*time.Minute,
		cfg.Capture.BootstrapWindows(),
		cfg.Capture.DeferredRetention(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	server := api.NewServer(
		pipeline,
		repos.Targets,
		repos.State,
		repos.Decisions,
		health,
		cfg.Webhook.Token,
		cfg.Webhook.Secret,
		cfg.APIPort,
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("[Main] Bridge running (memory root: %s)\n", cfg.Data.MemoryRoot)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("[Main] Received signal %v, shutting down\n", sig)
	case err := <-errCh:
		if err != nil {
			fmt.Printf("[Main] HTTP server error: %v\n", err)
		}
	}

	if err := server.Stop(); err != nil {
		fmt.Printf("[Main] Server shutdown error: %v\n", err)
	}
	scheduler.Stop()
	fmt.Println("[Main] Shutdown complete")
}
