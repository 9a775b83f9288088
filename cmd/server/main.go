package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"cohort/internal/audit"
	"cohort/internal/enrollment"
	"cohort/internal/platform/config"
	"cohort/internal/platform/httpserver"
	"cohort/internal/platform/logger"
	"cohort/internal/platform/metrics"
	"cohort/internal/platform/middleware"
	platformredis "cohort/internal/platform/redis"
	"cohort/internal/subjectcode"
	transport "cohort/internal/transport/http"
	"cohort/internal/volunteer"
	"cohort/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]transport.HealthCheck{}

	// Stores: Postgres when configured, otherwise the in-memory pair that the
	// test suites run against.
	var (
		volunteers volunteer.Store
		auditStore audit.Store
		runner     tx.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		volunteers = volunteer.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		runner = &tx.SQLRunner{DB: db}
		checks["postgres"] = db.PingContext
	} else {
		log.Warn("DATABASE_URL not set, running on in-memory stores")
		volunteers = volunteer.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		runner = &tx.ShardedRunner{}
	}

	trailOpts := []audit.Option{audit.WithMetrics(m)}

	// Optional Kafka fan-out of the audit trail.
	var stream *audit.Stream
	if len(cfg.Kafka.Brokers) > 0 {
		var err error
		stream, err = audit.NewStream(cfg.Kafka.Brokers, cfg.Kafka.Topic, log, m)
		if err != nil {
			log.Error("failed to connect audit stream", "error", err)
			os.Exit(1)
		}
		defer stream.Close()
		trailOpts = append(trailOpts, audit.WithStream(stream))
	}
	trail := audit.NewTrail(auditStore, trailOpts...)

	workflowOpts := []enrollment.Option{}
	if cfg.AllocateOnCreate {
		workflowOpts = append(workflowOpts, enrollment.WithAllocateOnCreate())
	}

	// Optional Redis index accelerating subject code probes.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		index := subjectcode.NewRedisIndex(redisClient.Client, volunteers.SubjectCodeExists, log)
		workflowOpts = append(workflowOpts, enrollment.WithCodeIndex(index))
		checks["redis"] = redisClient.Health
	}

	workflow := enrollment.NewWorkflow(volunteers, trail, runner, log, m, workflowOpts...)

	router := transport.NewRouter(transport.RouterDeps{
		Handler:   transport.NewHandler(workflow, trail),
		Validator: middleware.NewHMACValidator(cfg.JWTSigningKey),
		Logger:    log,
		Checks:    checks,
	})
	server := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if stream != nil {
		group.Go(func() error {
			if err := stream.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
