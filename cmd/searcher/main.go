package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/indexer/loader"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/cache"
	searchhandler "github.com/Adithya-Monish-Kumar-K/textsearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textsearch/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/textsearch/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := validateIngest(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"ingest_mode", cfg.Ingest.Mode,
		"highlight_preset", cfg.Indexer.Highlight.Preset,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	engine := indexer.NewEngine(cfg.Indexer, m)

	if cfg.Indexer.Bootstrap.Enabled {
		n, err := bootstrap(ctx, cfg, engine)
		if err != nil {
			slog.Error("index bootstrap failed", "error", err)
			os.Exit(1)
		}
		slog.Info("index bootstrapped", "documents", n, "table", cfg.Indexer.Bootstrap.Table)
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(context.Context) health.ComponentHealth {
		stats := engine.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", stats.Documents, stats.Terms),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var pub ingesthandler.Publisher
	switch cfg.Ingest.Mode {
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
		defer producer.Close()
		pub = publisher.NewKafka(producer, cfg.Ingest.PublishTimeout, m)
	default:
		pub = publisher.NewDirect(engine)
	}

	searchH := searchhandler.New(engine, queryCache, m)
	ingestH := ingesthandler.New(pub, cfg.Ingest.MaxContentBytes, m)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", ingestH.Ingest)
	mux.HandleFunc("GET /api/v1/documents/{id}", searchH.Document)
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/index/stats", searchH.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Metrics must wrap the mux directly to see the matched route pattern.
	var chain http.Handler = middleware.Metrics(m)(mux)
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return shutdownMetrics(sctx)
		})
	}

	if cfg.Ingest.ConsumeKafka {
		cfg.Kafka.ConsumerGroup = kafka.ReplicaGroupID(cfg.Kafka.ConsumerGroup, instanceID(cfg.Kafka))
		kafkaConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, consumer.HandleMessage(engine))
		indexConsumer := consumer.New(kafkaConsumer)
		slog.Info("index consumer enabled",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.ConsumerGroup,
		)
		g.Go(func() error {
			return indexConsumer.Start(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("search service error", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// bootstrap loads the configured PostgreSQL table into engine. Connecting is
// retried; authentication failures are not.
// validateIngest rejects a searcher that would accept documents it never
// indexes: kafka mode publishes to the topic, so something in this process
// has to consume it.
func validateIngest(cfg *config.Config) error {
	if cfg.Ingest.Mode == "kafka" && !cfg.Ingest.ConsumeKafka {
		return errors.New("ingest.mode kafka requires ingest.consumeKafka on the search service, otherwise accepted documents are never indexed")
	}
	return nil
}

// instanceID names this process within the consumer group prefix.
func instanceID(cfg config.KafkaConfig) string {
	if cfg.InstanceID != "" {
		return cfg.InstanceID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "searcher"
	}
	return host + "-" + uuid.NewString()[:8]
}

func bootstrap(ctx context.Context, cfg *config.Config, engine *indexer.Engine) (int, error) {
	var client *postgres.Client
	err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{MaxAttempts: 5}, func(ctx context.Context) error {
		c, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Class() == "28" {
				return resilience.Permanent(err)
			}
			return err
		}
		client = c
		return nil
	})
	if err != nil {
		return 0, err
	}
	defer client.Close()

	return loader.New(client, cfg.Indexer.Bootstrap).Load(ctx, engine)
}
