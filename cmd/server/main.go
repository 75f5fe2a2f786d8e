package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentsearch/internal/cache"
	"rentsearch/internal/config"
	"rentsearch/internal/handler"
	"rentsearch/internal/logging"
	"rentsearch/internal/mcptool"
	"rentsearch/internal/repository"
	"rentsearch/internal/service"
	"rentsearch/internal/transport/natsrpc"

	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging, os.Stderr)
	logger.Info("Rental Search Engine",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.GinMode)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, closeCache := buildEmbedder(ctx, cfg, logger)
	defer closeCache()

	interpreter := service.NewQueryInterpreter(buildExtractor(cfg, logger), cfg.Timeouts.Interpret, logger)
	scorer := service.NewHybridScorer(embedder, cfg.Ranking.Alpha, cfg.Ranking.Beta, cfg.Timeouts.Embed, logger)
	searchService := service.NewSearchService(store, interpreter, scorer, service.SearchOptions{
		RetrievalCap:    cfg.Search.RetrievalCap,
		DefaultK:        cfg.Search.DefaultK,
		RetrieveTimeout: cfg.Timeouts.Retrieve,
	}, logger)

	logger.Info("services initialized",
		"interpreter", interpreter.Name(),
		"scoring_mode", scorer.Mode(),
		"alpha", cfg.Ranking.Alpha,
		"beta", cfg.Ranking.Beta,
		"retrieval_cap", cfg.Search.RetrievalCap,
		"default_k", cfg.Search.DefaultK,
	)

	if cfg.NATS.Enabled {
		nc, err := natsrpc.Connect(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Close()

		responder := natsrpc.NewResponder(nc, searchService, cfg.Timeouts.Interpret+cfg.Timeouts.Retrieve+cfg.Timeouts.Embed)
		if err := responder.Start(cfg.NATS.Subject, cfg.NATS.Queue); err != nil {
			return err
		}
		defer func() { _ = responder.Stop() }()
	}

	mcpErr := make(chan error, 1)
	if cfg.MCP.Transport != "off" {
		mcpServer := mcptool.NewServer(searchService, Version)
		go func() { mcpErr <- mcptool.Serve(ctx, mcpServer, cfg.MCP) }()
		logger.Info("MCP tools enabled", "transport", cfg.MCP.Transport)
	}

	router := handler.NewRouter(searchService, handler.RouterOptions{
		AllowedOrigins:      cfg.Server.AllowedOrigins,
		EmbeddingDimensions: embedder.Dimensions(),
		Version:             Version,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		return fmt.Errorf("http server: %w", err)
	case err := <-mcpErr:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ListingStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		store, err := repository.LoadMemoryStore(cfg.Store.ListingsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded listings into memory", "file", cfg.Store.ListingsFile)
		return store, nil
	default:
		repo, err := repository.NewPostgresRepository(
			ctx,
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		logger.Info("connected to PostgreSQL database")
		return repo, nil
	}
}

// buildExtractor prefers the LLM and falls back to the rule interpreter
func buildExtractor(cfg *config.Config, logger *slog.Logger) service.TextInterpreter {
	if !cfg.OpenAI.Enabled {
		logger.Warn("OpenAI is disabled, using rule-based query interpretation")
		return service.NewRuleInterpreter()
	}

	llm, err := service.NewLLMInterpreter(cfg.OpenAI)
	if err != nil {
		logger.Error("failed to create LLM interpreter, using rule-based interpretation", "err", err)
		return service.NewRuleInterpreter()
	}
	logger.Info("LLM interpreter initialized", "api_base", cfg.OpenAI.APIBase, "model", cfg.OpenAI.ChatModel)
	return llm
}

// buildEmbedder picks the OpenAI embedder when configured, falling back to
// hashed bag-of-words vectors, and wraps it with the Redis cache if enabled.
// The returned func releases the cache connection.
func buildEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Embedder, func()) {
	var embedder service.Embedder = service.NewHashEmbedder(service.DefaultHashDimensions)
	namespace := fmt.Sprintf("hash-%d", service.DefaultHashDimensions)

	if cfg.OpenAI.Enabled {
		oe, err := service.NewOpenAIEmbedder(cfg.OpenAI)
		if err != nil {
			logger.Error("failed to create OpenAI embedder, using hash embedder", "err", err)
		} else {
			embedder = oe
			namespace = cfg.OpenAI.EmbeddingModel
			logger.Info("OpenAI embedder initialized", "model", cfg.OpenAI.EmbeddingModel, "dimensions", cfg.OpenAI.EmbeddingDimensions)
		}
	}

	if !cfg.Redis.Enabled {
		return embedder, func() {}
	}

	rdb, err := cache.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Warn("redis unavailable, embedding cache disabled", "err", err)
		return embedder, func() {}
	}
	logger.Info("embedding cache enabled", "ttl", cfg.Redis.CacheTTL)
	cached := service.NewCachedEmbedder(embedder, cache.NewRedisVectorCache(rdb), namespace, cfg.Redis.CacheTTL)
	return cached, func() { _ = rdb.Close() }
}
