package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sasp-edomex/scil-auditoria/internal/adapters/http/scil"
	postgrescatalog "github.com/sasp-edomex/scil-auditoria/internal/adapters/postgres/catalog"
	postgresfinding "github.com/sasp-edomex/scil-auditoria/internal/adapters/postgres/finding"
	postgresingestaudit "github.com/sasp-edomex/scil-auditoria/internal/adapters/postgres/ingestaudit"
	"github.com/sasp-edomex/scil-auditoria/internal/adapters/xlsx"
	"github.com/sasp-edomex/scil-auditoria/internal/application/aggregate"
	"github.com/sasp-edomex/scil-auditoria/internal/application/bootstrap"
	apphealth "github.com/sasp-edomex/scil-auditoria/internal/application/health"
	"github.com/sasp-edomex/scil-auditoria/internal/application/ingest"
	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/config"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/database"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/http/middleware"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/http/server"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "service stopped: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.Config{
		DSN:             cfg.Database.DSN,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Database,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	catalogRepo := postgrescatalog.NewRepository(pool)
	registry, users, err := bootstrap.Load(ctx, catalogRepo, catalogRepo)
	if err != nil {
		return fmt.Errorf("bootstrap catalog: %w", err)
	}
	directory := user.NewDirectory(users)
	log.Info("catalog loaded", "users", len(users))

	findingRepo := postgresfinding.NewRepository(pool)
	auditRepo := postgresingestaudit.NewRepository(pool)

	ingestSvc := &ingest.Service{
		Reader:     xlsx.NewReader(),
		Registry:   registry,
		Findings:   findingRepo,
		Audit:      auditRepo,
		FiscalYear: cfg.Ingest.FiscalYear,
		Workers:    cfg.Ingest.DetectWorkers,
	}
	aggregateSvc := aggregate.Service{Findings: findingRepo, Registry: registry}

	var jwtAuth *middleware.JWTAuthenticator
	if cfg.Auth.Enabled {
		jwtAuth, err = middleware.NewJWTAuthenticator(cfg.Auth, log)
		if err != nil {
			return fmt.Errorf("init jwt authenticator: %w", err)
		}
		defer jwtAuth.Close()
	}

	// Without auth there is no token to identify the usuario, so the handler
	// gets a nil directory and treats every caller as full-access.
	handlerDir := directory
	if !cfg.Auth.Enabled {
		handlerDir = nil
	}
	handler := scil.NewHandler(ingestSvc, aggregateSvc, findingRepo, handlerDir, log)
	healthSvc := apphealth.NewService(apphealth.Metadata{
		Service:     cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})

	srv, err := server.New(server.Options{
		Addr:   cfg.HTTP.Address(),
		Logger: log,
		Health: healthSvc,
		SCIL:   handler,
		JWT:    jwtAuth,
		Audit: middleware.AuditConfig{
			Enabled:         cfg.Audit.Enabled,
			LogRequestBody:  cfg.Audit.LogRequestBody,
			LogResponseBody: cfg.Audit.LogResponseBody,
			MaxBodySize:     cfg.Audit.MaxBodySize,
		},
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		IdleTimeout:     cfg.HTTP.IdleTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	defer srv.Close()

	return srv.Run(ctx)
}
