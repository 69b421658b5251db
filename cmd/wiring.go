package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/internship-recommender/internal/ai"
	"github.com/spigell/internship-recommender/internal/ai/gemini"
	"github.com/spigell/internship-recommender/internal/ai/process"
	"github.com/spigell/internship-recommender/internal/catalog"
	"github.com/spigell/internship-recommender/internal/filtering"
	"github.com/spigell/internship-recommender/internal/metrics"
	"github.com/spigell/internship-recommender/internal/recommend"
	"github.com/spigell/internship-recommender/internal/secrets"
	"github.com/spigell/internship-recommender/internal/store"
)

// newService assembles the recommendation pipeline. A scorer that cannot be
// built disables the external pass instead of failing startup.
func newService(ctx context.Context, config *Config, db *store.DB, m *metrics.Metrics, logger *zap.Logger) *recommend.Service {
	loader := catalog.NewFileLoader(config.Catalog.Path, config.Catalog.Sheet, logger)

	opts := []recommend.Option{
		recommend.WithTopN(config.Recommend.TopN),
		recommend.WithMetrics(m),
		recommend.WithLogger(logger),
	}

	if config.External.Enabled {
		scorer, err := newScorer(ctx, config.External, loader, logger)
		if err != nil {
			logger.Warn("skipping external scorer", zap.Error(err))
		} else {
			opts = append(opts, recommend.WithExternal(scorer, true, config.External.Timeout))
		}
	}

	var applications filtering.AppliedLister
	if db != nil {
		opts = append(opts, recommend.WithProfiles(db))
		applications = db
	}

	steps := filtering.Default()
	if applications == nil {
		filtering.DisableByName(steps, "applied_history", "no application store")
	}
	opts = append(opts, recommend.WithFilters(config.Filters, applications, steps...))

	for _, status := range filtering.Describe(config.Filters, steps) {
		logger.Debug("catalog filter",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return recommend.NewService(loader, opts...)
}

func newScorer(ctx context.Context, cfg *ExternalConfig, loader catalog.Loader, logger *zap.Logger) (ai.Scorer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", process.Provider:
		pcfg := cfg.Process
		if len(pcfg.Executables) == 0 {
			pcfg.Executables = process.DefaultExecutables(cfg.Python)
		}
		return process.New(pcfg, logger.With(zap.String("scorer_provider", process.Provider)))
	case gemini.Provider:
		return newGeminiRanker(ctx, cfg.Gemini, loader, logger)
	default:
		return nil, fmt.Errorf("unsupported external provider: %s", cfg.Provider)
	}
}

func newGeminiRanker(ctx context.Context, cfg *GeminiConfig, loader catalog.Loader, logger *zap.Logger) (ai.Scorer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gemini configuration is required when external.provider is gemini")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		Env:  "GEMINI_API_KEY",
		File: cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set external.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("scorer_provider", gemini.Provider),
		zap.String("scorer_model", cfg.Model),
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Model,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewRanker(generator, loader, cfg.TopK, logger), nil
}
