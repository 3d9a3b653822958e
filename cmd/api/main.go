package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain/appointment"
	v1 "github.com/dmehra2102/prod-golang-projects/medidoc/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/repository/kafka"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/repository/redis"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/tracer"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}
	defer sqlDB.Close()

	if err := database.Migrate(db, log); err != nil {
		return err
	}

	m := metrics.NewCollector("medidoc", prometheus.DefaultRegisterer)

	var auditSinks []service.AuditSink
	if cfg.Audit.KafkaEnabled {
		publisher := kafka.NewAuditPublisher(cfg.Audit)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("closing audit publisher", zap.Error(err))
			}
		}()
		auditSinks = append(auditSinks, publisher)
		log.Info("audit events published to kafka", zap.Strings("brokers", cfg.Audit.KafkaBrokers), zap.String("topic", cfg.Audit.KafkaTopic))
	}
	auditSvc := service.NewAuditService(postgres.NewAuditRepository(db), cfg.Audit.BufferSize, m, log, auditSinks...)
	defer auditSvc.Shutdown()

	var cache service.AvailabilityCache
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			// The cache is advisory; run without it.
			log.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cache = redis.NewAvailabilityCache(client, cfg.Redis.AvailabilityTTL, log)
		}
	}

	workStart, err := appointment.ParseClock(cfg.Scheduling.WorkStart)
	if err != nil {
		return fmt.Errorf("SCHEDULING_WORK_START: %w", err)
	}
	workEnd, err := appointment.ParseClock(cfg.Scheduling.WorkEnd)
	if err != nil {
		return fmt.Errorf("SCHEDULING_WORK_END: %w", err)
	}

	users := postgres.NewUserRepository(db)
	jwt := auth.NewJWTManager(cfg.JWT)

	appointments := service.NewAppointmentService(
		postgres.NewAppointmentRepository(db),
		postgres.NewPatientRepository(db),
		users,
		auditSvc,
		cache,
		service.SchedulingOptions{
			WorkHours:    appointment.WorkHours{Start: workStart, End: workEnd},
			SlotMinutes:  cfg.Scheduling.SlotMinutes,
			StoreTimeout: cfg.Scheduling.StoreTimeout,
		},
		m,
		log,
	)

	router, err := v1.NewRouter(v1.RouterDeps{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		Gatherer:     prometheus.DefaultGatherer,
		JWT:          jwt,
		Appointments: appointments,
		Auth:         service.NewAuthService(users, jwt, auditSvc, log),
		Audit:        auditSvc,
		Ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return sqlDB.PingContext(pingCtx)
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
