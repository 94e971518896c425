package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/chatlog-memory-bridge/internal/biz/usecase"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/conf"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/data"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/infra/chatlog"
	"github.com/DevRickLin/chatlog-memory-bridge/internal/service"
)

// One-shot backfill over all configured targets, for initial imports and
// manual catch-up after downtime.
func main() {
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()
	if cfg.Chatlog.BaseURL == "" {
		fmt.Println("[Backfill] CHATLOG_BASE_URL is required")
		os.Exit(1)
	}

	chatlogClient := chatlog.NewClient(cfg.Chatlog.BaseURL, time.Duration(cfg.Chatlog.TimeoutSeconds)*time.Second)
	repos, err := data.NewRepositories(cfg.Data.Dir, cfg.Data.MemoryRoot, chatlogClient, nil)
	if err != nil {
		fmt.Printf("[Backfill] Failed to initialize storage: %v\n", err)
		os.Exit(1)
	}
	defer repos.Close()

	evaluator := usecase.NewEvaluator(cfg.Capture.ToEvaluatorConfig())
	pipeline := usecase.NewPipeline(repos.State, repos.Buffer, repos.Sink, repos.Decisions, repos.Summarizer, evaluator)

	scheduler := service.NewBackfillScheduler(
		pipeline,
		repos.Targets,
		repos.History,
		repos.State,
		repos.Buffer,
		service.NewHealthState(),
		time.Hour, // unused for a single run
		cfg.Capture.BootstrapWindows(),
		cfg.Capture.DeferredRetention(),
	)

	start := time.Now()
	scheduler.RunOnce(context.Background())
	fmt.Printf("[Backfill] Completed in %v\n", time.Since(start).Round(time.Millisecond))
}
