// scil-seed is an install-time utility: it reads the three seed workbooks
// (Estatales.xlsx, Municipales.xlsx, Usuarios_SASP_2025.xlsx, spec.md
// section 6) from a local directory and loads them into the entes,
// municipios and usuarios tables. It is not part of the running service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	postgrescatalog "github.com/sasp-edomex/scil-auditoria/internal/adapters/postgres/catalog"
	"github.com/sasp-edomex/scil-auditoria/internal/adapters/xlsx"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/config"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/database"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/logger"
)

// dirOpener resolves seed file names against a base directory.
type dirOpener struct {
	dir string
}

func (o dirOpener) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(o.dir, name))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
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

	log := logger.New(cfg.App.Name, cfg.Log.Level, cfg.App.Environment)
	if err := database.RunMigrations(ctx, pool, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	opener := dirOpener{dir: dir}
	catalogSrc := xlsx.CatalogSeedSource{Opener: opener}
	userSrc := xlsx.UserSeedSource{Opener: opener}

	entities, err := catalogSrc.LoadEntities(ctx)
	if err != nil {
		return fmt.Errorf("load catalog seed: %w", err)
	}
	users, err := userSrc.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load user seed: %w", err)
	}

	repo := postgrescatalog.NewRepository(pool)
	if err := repo.Seed(ctx, entities); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if err := repo.SeedUsers(ctx, users); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}

	fmt.Printf("seeded %d entities and %d users\n", len(entities), len(users))
	return nil
}
