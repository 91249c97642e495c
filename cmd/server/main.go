package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"pulsegate/internal/governance/handler"
	govmetrics "pulsegate/internal/governance/metrics"
	"pulsegate/internal/governance/service"
	"pulsegate/internal/governance/sessionconfig"
	episodestore "pulsegate/internal/governance/store/episode"
	snapshotstore "pulsegate/internal/governance/store/snapshot"
	"pulsegate/internal/platform/config"
	"pulsegate/internal/platform/httpserver"
	platformkafka "pulsegate/internal/platform/kafka"
	"pulsegate/internal/platform/kafka/consumer"
	"pulsegate/internal/platform/logger"
	"pulsegate/internal/platform/metrics"
	"pulsegate/internal/platform/middleware"
	platformredis "pulsegate/internal/platform/redis"
	telemetrykafka "pulsegate/internal/telemetry/kafka"
	"pulsegate/internal/telemetry/ratelimit"
	"pulsegate/internal/telemetry/websocket"
	audit "pulsegate/pkg/platform/audit"
	"pulsegate/pkg/platform/audit/publisher"
	auditmemory "pulsegate/pkg/platform/audit/store/memory"
	auditpostgres "pulsegate/pkg/platform/audit/store/postgres"
	"pulsegate/pkg/platform/httputil"
	"pulsegate/pkg/platform/middleware/metadata"
	"pulsegate/pkg/platform/middleware/requesttime"
)

const auditBuffer = 1024

// main wires dependencies and runs the server until SIGINT or SIGTERM.
// Business logic lives in internal/governance.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("pulsegate exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(govmetrics.NewWithRegisterer(reg)),
		service.WithRecorderBuffer(cfg.RecorderBuffer),
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		snapshots := snapshotstore.NewResilient(
			snapshotstore.NewRedis(redisClient.Client, snapshotstore.WithTTL(cfg.SnapshotTTL)),
			snapshotstore.WithLogger(log),
		)
		opts = append(opts, service.WithSnapshotStore(snapshots), service.WithSnapshotPublisher(snapshots))
		log.Info("snapshot store: redis")
	} else {
		opts = append(opts, service.WithSnapshotStore(snapshotstore.NewInMemoryStore()))
		log.Info("snapshot store: memory")
	}

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if cfg.DatabaseURL != "" {
		db, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		episodes := episodestore.NewPostgres(db)
		events := auditpostgres.New(db)
		if err := episodes.EnsureSchema(ctx); err != nil {
			return err
		}
		if err := events.EnsureSchema(ctx); err != nil {
			return err
		}
		auditStore = events
		opts = append(opts, service.WithEpisodeStore(episodes))
		log.Info("episode and audit store: postgres")
	} else {
		opts = append(opts, service.WithEpisodeStore(episodestore.NewInMemoryStore()))
	}
	auditPub := publisher.NewPublisher(auditStore, publisher.WithAsyncBuffer(auditBuffer), publisher.WithLogger(log))
	defer auditPub.Close()
	opts = append(opts, service.WithAuditPublisher(auditPub))

	svc := service.New(opts...)
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		_ = svc.Run(recorderCtx)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		svc.Close(shutdownCtx)
		stopRecorder()
		<-recorderDone
	}()

	if cfg.SessionConfigPath != "" {
		file, err := sessionconfig.Load(cfg.SessionConfigPath)
		if err != nil {
			return err
		}
		info, err := svc.Configure(ctx, file)
		if err != nil {
			return err
		}
		log.Info("preconfigured session", "session_id", info.ID, "rule", info.RuleLabel)
	}

	router := newRouter(log, reg, svc, redisClient, newLimiter(cfg, log, redisClient))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting pulsegate", "addr", cfg.Addr)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	if len(cfg.Kafka.Brokers) > 0 {
		if err := platformkafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, 3, 1); err != nil {
			return err
		}
		c, err := telemetrykafka.NewConsumer(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topics:  []string{cfg.Kafka.Topic},
		}, svc, log)
		if err != nil {
			return err
		}
		defer c.Close()
		g.Go(func() error {
			log.Info("consuming telemetry", "topic", cfg.Kafka.Topic)
			return c.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("pulsegate shutting down")
	return nil
}

func newRouter(log *slog.Logger, reg *prometheus.Registry, svc *service.Service, redisClient *platformredis.Client, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		metadata.ClientMetadata,
		requesttime.Middleware,
		middleware.Observe(log, metrics.New(reg)),
		middleware.Recover(log),
	)

	var handlerOpts []handler.Option
	var bridgeOpts []websocket.Option
	if limiter != nil {
		handlerOpts = append(handlerOpts, handler.WithTelemetryMiddleware(limiter.Middleware))
		bridgeOpts = append(bridgeOpts, websocket.WithLimiter(limiter))
	}
	handler.New(svc, log, handlerOpts...).Register(r)
	websocket.New(svc, log, bridgeOpts...).Register(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(reg))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if redisClient != nil {
			if latency, err := redisClient.Health(r.Context()); err != nil {
				status["redis"] = "degraded"
			} else {
				status["redis"] = latency.String()
			}
		}
		httputil.WriteJSON(w, http.StatusOK, status)
	})
	return r
}

func newLimiter(cfg config.Server, log *slog.Logger, redisClient *platformredis.Client) *ratelimit.Limiter {
	if cfg.TelemetryRateLimit <= 0 {
		return nil
	}
	var store ratelimit.Store = ratelimit.NewInMemoryStore(nil)
	if redisClient != nil {
		store = ratelimit.NewRedisStore(redisClient.Client)
	}
	return ratelimit.New(store, ratelimit.Policy{Limit: cfg.TelemetryRateLimit, Window: cfg.TelemetryRateWindow}, log)
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
