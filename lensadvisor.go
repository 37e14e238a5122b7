// Package lensadvisor assembles the lens recommendation engine: intent
// extraction from clinical notes, outcome pattern matching against the
// historical-outcomes corpus, catalog matching, and the fusion orchestrator
// that ties them together. Embedding applications construct an Engine and
// call it directly; transport and rendering stay on their side.
package lensadvisor

import (
	"context"

	"github.com/optivista/lensadvisor/internal/adapters/cache"
	"github.com/optivista/lensadvisor/internal/adapters/database"
	"github.com/optivista/lensadvisor/internal/adapters/events"
	"github.com/optivista/lensadvisor/internal/adapters/search"
	"github.com/optivista/lensadvisor/internal/application/services"
	"github.com/optivista/lensadvisor/internal/domain/entities"
	"github.com/optivista/lensadvisor/internal/domain/providers"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/postgres"
	redisclient "github.com/optivista/lensadvisor/internal/infrastructure/clients/redis"
	"github.com/optivista/lensadvisor/internal/infrastructure/clients/typesense"
	"github.com/optivista/lensadvisor/internal/infrastructure/observability"
	"github.com/optivista/lensadvisor/pkg/config"
)

// AnalyzeOrderRequest is re-exported for embedding applications.
type AnalyzeOrderRequest = services.AnalyzeOrderRequest

// Engine is the assembled recommendation engine.
type Engine struct {
	fusion   *services.RecommendationFusionService
	patterns *services.OutcomePatternService

	pg       *postgres.Client
	redis    *redisclient.Client
	bus      providers.EventBus
	shutdown func(context.Context) error
}

// New builds an Engine from configuration: Postgres-backed repositories,
// Redis cache and event bus, optional Typesense catalog pre-filtering, and
// optional OTEL tracing/metrics. Redis and Typesense are optional; without
// them the engine runs uncached, unpublished, and scores full catalogs.
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	observability.InitLogger(cfg.OTEL.ServiceName, "production")

	engine := &Engine{}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			return nil, err
		}
		engine.shutdown = shutdown
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		engine.Close(ctx)
		return nil, err
	}
	engine.pg = pgClient

	outcomeRepo := database.NewOutcomeAdapter(pgClient)
	catalogRepo := database.NewCatalogAdapter(pgClient)
	recommendationRepo := database.NewRecommendationAdapter(pgClient)
	intentRecordRepo := database.NewIntentRecordAdapter(pgClient)

	intentSvc := services.NewIntentExtractionService()
	intentSvc.SetCacheTTL(cfg.Engine.IntentCacheTTLSec)
	patternSvc := services.NewOutcomePatternService(outcomeRepo)
	patternSvc.SetMinSampleSize(cfg.Engine.MinSampleSize)
	matchSvc := services.NewCatalogMatchService()

	fusionSvc := services.NewRecommendationFusionService(
		intentSvc, patternSvc, matchSvc,
		catalogRepo, recommendationRepo, intentRecordRepo,
	)

	if cfg.Typesense.Enabled {
		if tsClient, err := typesense.NewClient(&cfg.Typesense); err == nil {
			fusionSvc.SetCatalogSearch(search.NewTypesenseAdapter(tsClient))
		} else {
			observability.GetLogger().Warn().Err(err).Msg("typesense unavailable, scoring full catalogs")
		}
	}

	if redisClient, err := redisclient.NewClient(&cfg.Redis); err == nil {
		engine.redis = redisClient
		intentSvc.SetCache(cache.NewRedisAdapter(redisClient))
		engine.bus = events.NewRedisEventBus(redisClient)
		fusionSvc.SetEventBus(engine.bus)
	} else {
		observability.GetLogger().Warn().Err(err).Msg("redis unavailable, running without cache and events")
	}

	if cfg.OTEL.Enabled {
		if metrics, err := observability.InitMetrics(); err == nil {
			fusionSvc.SetMetrics(metrics)
			patternSvc.SetMetrics(metrics)
			outcomeRepo.SetMetrics(metrics)
		}
	}

	engine.fusion = fusionSvc
	engine.patterns = patternSvc

	return engine, nil
}

// AnalyzeOrder generates a tiered recommendation for one order.
func (e *Engine) AnalyzeOrder(ctx context.Context, req AnalyzeOrderRequest) (*entities.FusionResult, error) {
	return e.fusion.AnalyzeOrder(ctx, req)
}

// GetRecommendation retrieves the recommendation generated for an order.
func (e *Engine) GetRecommendation(ctx context.Context, orderID string) (*entities.FusionResult, error) {
	return e.fusion.GetByOrderID(ctx, orderID)
}

// UpdateRecommendationStatus records the dispenser's decision.
func (e *Engine) UpdateRecommendationStatus(ctx context.Context, recommendationID string, status entities.RecommendationStatus, chosenTier *entities.Tier, customizationNote string) error {
	return e.fusion.UpdateStatus(ctx, recommendationID, status, chosenTier, customizationNote)
}

// RecordOutcome feeds one dispensed-order result back into the corpus.
func (e *Engine) RecordOutcome(ctx context.Context, key entities.ConfigurationKey, outcome entities.Outcome) error {
	return e.patterns.RecordOutcome(ctx, key, outcome)
}

// Events exposes the lifecycle event bus, or nil when Redis is not
// configured.
func (e *Engine) Events() providers.EventBus {
	return e.bus
}

// Close releases all held connections.
func (e *Engine) Close(ctx context.Context) error {
	var firstErr error
	if e.bus != nil {
		if err := e.bus.Close(); err != nil {
			firstErr = err
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.pg != nil {
		if err := e.pg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.shutdown != nil {
		if err := e.shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
