package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sigil/internal/hashchain"
	envelopehandler "sigil/internal/hashchain/handler"
	hashchainmetrics "sigil/internal/hashchain/metrics"
	httpapi "sigil/internal/http"
	"sigil/internal/notify"
	"sigil/internal/platform/config"
	"sigil/internal/platform/httpserver"
	"sigil/internal/platform/logger"
	platformredis "sigil/internal/platform/redis"
	"sigil/internal/provenance"
	provenancehandler "sigil/internal/provenance/handler"
	provenancemetrics "sigil/internal/provenance/metrics"
	cachestore "sigil/internal/provenance/store/cache"
	"sigil/internal/provenance/store/memory"
	"sigil/internal/provenance/store/postgres"
	scorehandler "sigil/internal/score/handler"
	"sigil/internal/verify"
	verifyhandler "sigil/internal/verify/handler"
	verifymetrics "sigil/internal/verify/metrics"
	"sigil/pkg/platform/middleware/auth"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal feature packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store: postgres when configured, in-memory otherwise.
	var store provenance.Store
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := postgres.New(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("migrate postgres", "error", err)
			os.Exit(1)
		}
		store = pg
		log.Info("using postgres record store")
	} else {
		store = memory.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory record store")
	}

	healthCheckers := map[string]httpapi.HealthChecker{}
	if db != nil {
		healthCheckers["postgres"] = pingChecker{db}
	}

	// Optional redis read-through cache for record lookups.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		store = cachestore.New(store, redisClient.Client, log)
		healthCheckers["redis"] = redisClient
		log.Info("record cache enabled")
	}

	// Best-effort notification side channel. Without brokers events go to an
	// in-process sink so the worker path stays exercised in every deployment.
	var sink notify.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("notification ledger enabled", "topic", cfg.Kafka.Topic)
	} else {
		sink = notify.NewMemorySink()
		log.Warn("no kafka brokers configured, notifications stay in-process")
	}

	notifyMetrics := notify.NewMetrics()
	notifier := notify.NewNotifier(256, log, notifyMetrics)
	worker := notify.NewWorker(notifier, sink, log, notifyMetrics)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notify worker stopped", "error", err)
		}
	}()

	// Services.
	provenanceService, err := provenance.NewService(store, notifier, provenancemetrics.New())
	if err != nil {
		log.Error("construct provenance service", "error", err)
		os.Exit(1)
	}
	builder := hashchain.NewBuilder()
	engine := verify.NewEngine(notifier, verifymetrics.New())

	authValidator, err := auth.NewValidator([]byte(cfg.JWTSigningKey))
	if err != nil {
		log.Error("construct auth validator", "error", err)
		os.Exit(1)
	}

	router := httpapi.New(httpapi.Deps{
		Envelope:       envelopehandler.New(builder, log, hashchainmetrics.New()),
		Provenance:     provenancehandler.New(provenanceService, log),
		Verify:         verifyhandler.New(engine, provenanceService, log),
		Score:          scorehandler.New(log),
		AuthValidator:  authValidator,
		Logger:         log,
		HealthCheckers: healthCheckers,
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	<-workerDone
}

type pingChecker struct {
	db *sql.DB
}

func (p pingChecker) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
