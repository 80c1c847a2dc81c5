package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lectern/internal/config"
	dbRedis "github.com/kailas-cloud/lectern/internal/db/redis"
	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/video"
	logpkg "github.com/kailas-cloud/lectern/internal/logger"
	"github.com/kailas-cloud/lectern/internal/metrics"
	budgetrepo "github.com/kailas-cloud/lectern/internal/repository/budget"
	"github.com/kailas-cloud/lectern/internal/repository/embcache"
	"github.com/kailas-cloud/lectern/internal/repository/expcache"
	indexrepo "github.com/kailas-cloud/lectern/internal/repository/index"
	chiTransport "github.com/kailas-cloud/lectern/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/lectern/internal/transport/openai"
	"github.com/kailas-cloud/lectern/internal/transport/pgvector"
	"github.com/kailas-cloud/lectern/internal/transport/qdrant"
	budgetuc "github.com/kailas-cloud/lectern/internal/usecase/budget"
	chatuc "github.com/kailas-cloud/lectern/internal/usecase/chat"
	completionuc "github.com/kailas-cloud/lectern/internal/usecase/completion"
	discoveruc "github.com/kailas-cloud/lectern/internal/usecase/discover"
	embeddinguc "github.com/kailas-cloud/lectern/internal/usecase/embedding"
	expanduc "github.com/kailas-cloud/lectern/internal/usecase/expand"
	healthuc "github.com/kailas-cloud/lectern/internal/usecase/health"
	learningpathuc "github.com/kailas-cloud/lectern/internal/usecase/learningpath"
	relateduc "github.com/kailas-cloud/lectern/internal/usecase/related"
	"github.com/kailas-cloud/lectern/internal/usecase/retrieval"
	summaryuc "github.com/kailas-cloud/lectern/internal/usecase/summary"
	usageuc "github.com/kailas-cloud/lectern/internal/usecase/usage"
	"github.com/kailas-cloud/lectern/internal/version"
)

// vectorIndex is what every index driver provides.
type vectorIndex interface {
	retrieval.Index
	healthuc.Checker
}

func main() {
	// Local secrets; a missing .env is fine.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lectern API server",
		zap.Any("build", version.Current()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterAIMetrics()
	metrics.RegisterPipelineMetrics()

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	index, closeIndex, err := buildIndex(ctx, cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create vector index", zap.Error(err))
	}
	defer closeIndex()

	// One tracker per provider, shared by embeddings and completions.
	trackers := buildBudgets(ctx, cfg, store, logger)
	readers := make([]usageuc.WindowReader, 0, len(trackers))
	for _, t := range trackers {
		readers = append(readers, t)
	}

	embedder, embeddingHealth := buildEmbedder(cfg, store, trackerFor(trackers, cfg.AI.Embedding.Provider), logger)
	completer := buildCompleter(cfg, trackerFor(trackers, cfg.AI.Completion.Provider), logger)
	logger.Info("AI providers configured",
		zap.String("embedding_provider", cfg.AI.Embedding.Provider),
		zap.String("embedding_model", cfg.AI.Embedding.Model),
		zap.String("completion_provider", cfg.AI.Completion.Provider),
		zap.String("completion_model", cfg.AI.Completion.Model),
	)

	temps := cfg.AI.Completion.Temperatures
	pipeline := cfg.Pipeline

	var expansionCache expanduc.Cache
	if cfg.Cache.ExpansionTTLSec >= 0 {
		expansionCache = expcache.New(store, time.Duration(cfg.Cache.ExpansionTTLSec)*time.Second,
			metrics.ExpansionCacheTotal, logger)
	}

	expandSvc := expanduc.New(completer, expansionCache, temps.Expand)
	searchSvc := retrieval.New(embedder, index,
		video.NewAggregator(pipeline.ThumbnailTemplate, pipeline.PassageChars),
		retrieval.Options{TopK: cfg.Index.TopK, MinScore: *cfg.Index.MinScore},
	)
	summarySvc := summaryuc.New(completer, summaryuc.Limits{
		Videos:     pipeline.SummaryVideos,
		Timestamps: pipeline.SummaryTimestamps,
		TextChars:  pipeline.SummaryTextChars,
	}, temps.Summary)
	relatedSvc := relateduc.New(completer, temps.Related)
	pathSvc := learningpathuc.New(completer, pipeline.PathCandidates, temps.LearningPath)
	discoverSvc := discoveruc.New(expandSvc, searchSvc, relatedSvc)
	chatSvc := chatuc.New(completer, temps.Chat)
	usageSvc := usageuc.New(readers...)
	healthSvc := healthuc.New(store, index, embeddingHealth, completer)

	server := chiTransport.NewServer(chiTransport.Services{
		Search:   searchSvc,
		Expand:   expandSvc,
		Summary:  summarySvc,
		Related:  relatedSvc,
		Path:     pathSvc,
		Discover: discoverSvc,
		Chat:     chatSvc,
		Usage:    usageSvc,
		Health:   healthSvc,
	}, logger).WithAllowedOrigins(cfg.HTTP.CORSOrigins)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: server.Routes(chiTransport.RouterConfig{
			APIKeys:     cfg.Auth.APIKeys,
			CORSOrigins: cfg.HTTP.CORSOrigins,
		}),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildIndex selects the vector index driver. The returned func releases its connections.
func buildIndex(
	ctx context.Context, cfg config.Config, store *dbRedis.Store, logger *zap.Logger,
) (vectorIndex, func(), error) {
	timeout := time.Duration(cfg.Index.TimeoutSec) * time.Second
	switch cfg.Index.Driver {
	case config.IndexDriverQdrant:
		idx, err := qdrant.New(qdrant.Config{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			APIKey:     cfg.Index.Qdrant.APIKey,
			UseTLS:     cfg.Index.Qdrant.UseTLS,
			Collection: cfg.Index.Name,
			Timeout:    timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("qdrant: %w", err)
		}
		return idx, idx.Close, nil
	case config.IndexDriverPGVector:
		idx, err := pgvector.New(ctx, pgvector.Config{
			DSN:         cfg.Index.Postgres.DSN,
			MaxConns:    cfg.Index.Postgres.MaxConns,
			Table:       cfg.Index.Name,
			VectorField: cfg.Index.VectorField,
			Timeout:     timeout,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("pgvector: %w", err)
		}
		return idx, idx.Close, nil
	default:
		repo := indexrepo.New(store, cfg.Index.Name, cfg.Index.VectorField).
			WithSearchTuning(cfg.Index.Redis.Filter, cfg.Index.Redis.EFRuntime).
			WithTimeout(timeout)
		return repo, func() {}, nil
	}
}

// buildBudgets creates a tracker for every configured provider, sorted by name,
// loading the current window counters from the store. Providers without limits
// still get a tracker so /api/usage reports what they consumed.
func buildBudgets(
	ctx context.Context, cfg config.Config, store *dbRedis.Store, logger *zap.Logger,
) []*budgetuc.Tracker {
	budgetStore := budgetrepo.New(store)
	names := slices.Sorted(maps.Keys(cfg.AI.Providers))
	trackers := make([]*budgetuc.Tracker, 0, len(names))
	for _, name := range names {
		b := cfg.AI.Providers[name].Budget
		limits := budgetuc.Limits{Daily: b.DailyTokenLimit, Monthly: b.MonthlyTokenLimit}
		trackers = append(trackers, budgetuc.NewTracker(name, limits, budgetuc.ParseAction(b.Action), logger).
			WithStore(ctx, budgetStore))
		logger.Info("Token budget configured",
			zap.String("provider", name),
			zap.Int64("daily_limit", limits.Daily),
			zap.Int64("monthly_limit", limits.Monthly),
			zap.String("action", b.Action),
		)
	}
	return trackers
}

func trackerFor(trackers []*budgetuc.Tracker, provider string) *budgetuc.Tracker {
	for _, t := range trackers {
		if t.Provider() == provider {
			return t
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Cached -> QueryInstruction.
// The cache sits outside the budget so hits consume nothing. The second result
// probes the provider for /health.
func buildEmbedder(
	cfg config.Config, store *dbRedis.Store, budget *budgetuc.Tracker, logger *zap.Logger,
) (domain.Embedder, healthuc.Checker) {
	prov := cfg.AI.Providers[cfg.AI.Embedding.Provider]
	base := openaiTransport.NewEmbedder(
		openaiTransport.NewClient(openaiTransport.ClientConfig{APIKey: prov.APIKey, BaseURL: prov.BaseURL}),
		&openaiTransport.EmbedderConfig{
			Model:      cfg.AI.Embedding.Model,
			Dimensions: cfg.AI.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.AI.RequestTimeoutSec) * time.Second,
			Provider:   cfg.AI.Embedding.Provider,
			Logger:     logger,
		},
	)

	instrumented := embeddinguc.NewInstrumentedEmbedder(
		base, cfg.AI.Embedding.Provider, cfg.AI.Embedding.Model, budget, logger,
	)
	var embedder domain.Embedder = instrumented

	if cfg.Cache.EmbeddingTTLSec >= 0 {
		embedder = embcache.New(embedder, store, embcache.Config{
			Model:      cfg.AI.Embedding.Model,
			Dimensions: cfg.AI.Embedding.Dimensions,
			TTL:        time.Duration(cfg.Cache.EmbeddingTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Outermost so the cache key includes the instruction.
	return domain.WithQueryInstruction(embedder, cfg.AI.Embedding.QueryInstruction), instrumented
}

// buildCompleter assembles OpenAI -> Instrumented.
func buildCompleter(
	cfg config.Config, budget *budgetuc.Tracker, logger *zap.Logger,
) *completionuc.InstrumentedCompleter {
	prov := cfg.AI.Providers[cfg.AI.Completion.Provider]
	base := openaiTransport.NewCompleter(
		openaiTransport.NewClient(openaiTransport.ClientConfig{APIKey: prov.APIKey, BaseURL: prov.BaseURL}),
		&openaiTransport.CompleterConfig{
			Model:         cfg.AI.Completion.Model,
			Timeout:       time.Duration(cfg.AI.RequestTimeoutSec) * time.Second,
			StreamTimeout: time.Duration(cfg.AI.StreamTimeoutSec) * time.Second,
			Provider:      cfg.AI.Completion.Provider,
			Logger:        logger,
		},
	)
	return completionuc.NewInstrumentedCompleter(
		base, cfg.AI.Completion.Provider, cfg.AI.Completion.Model, budget, logger,
	)
}
