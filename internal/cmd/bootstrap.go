package cmd

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/ai"
	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core/checks"
	"github.com/sitelens/sitelens/internal/core/engine"
	"github.com/sitelens/sitelens/internal/core/store"
	"github.com/sitelens/sitelens/internal/crawl"
)

// openStore opens the configured store and runs migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return st, nil
}

// buildEngine assembles the audit engine and its collaborators.
func buildEngine(cfg *config.Config, st *store.Store, logger *zap.Logger) (*engine.Engine, error) {
	crawler := crawl.New(cfg.Crawl, logger)

	var scorer ai.Scorer
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		openaiScorer, err := ai.NewOpenAIScorer(cfg.AI, logger)
		if err != nil {
			return nil, fmt.Errorf("build AI scorer: %w", err)
		}
		scorer = openaiScorer
	} else {
		logger.Info("AI analysis disabled", zap.Bool("enabled", cfg.AI.Enabled))
	}

	probeClient := &http.Client{Timeout: cfg.Crawl.Timeout}

	return engine.New(engine.Options{
		Store:      st,
		Discoverer: crawler,
		Fetcher:    crawler,
		Registry:   checks.NewRegistry(probeClient),
		Scorer:     scorer,
		MaxPages:   cfg.Crawl.MaxPages,
		SampleSize: cfg.AI.SampleSize,
		Workers:    cfg.Workers,
		Logger:     logger,
	}), nil
}
