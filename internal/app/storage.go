package app

import (
	"context"
	"errors"
	"fmt"
	"todoTree/internal/config"
	"todoTree/internal/logger"
	"todoTree/internal/repository/task/inmemory"
	"todoTree/internal/repository/task/postgres"
	"todoTree/internal/repository/task/sqlite"
	"todoTree/internal/service"

	"go.uber.org/zap"
)

// ErrNoMigrations is returned by OpenMigrator for the in-memory backend.
var ErrNoMigrations = errors.New("backend has no schema to migrate")

type Migrator interface {
	Migrate(ctx context.Context) error
	Down(ctx context.Context) error
	Close()
}

// OpenRepository connects to the configured backend. Persistent backends are
// migrated first when database.auto_migrate is set.
func OpenRepository(ctx context.Context, cfg *config.Config) (service.TaskRepository, func(), error) {
	switch cfg.Repository.Type {
	case "inmemory":
		logger.Info("Repository: using in-memory storage")
		return inmemory.NewTaskStorage(), func() {}, nil
	case "postgres", "sqlite":
		m, err := OpenMigrator(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := m.Migrate(ctx); err != nil {
				m.Close()
				return nil, nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		logger.Info("Repository: connected", zap.String("type", cfg.Repository.Type))
		return m.(service.TaskRepository), m.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
}

func OpenMigrator(ctx context.Context, cfg *config.Config) (Migrator, error) {
	switch cfg.Repository.Type {
	case "postgres":
		s, err := postgres.New(ctx, cfg.Database.URL, postgres.Options{
			MaxConns:        cfg.Database.MaxConnections,
			MinConns:        cfg.Database.MinConnections,
			MaxConnIdleTime: cfg.Database.IdleTimeout,
			ConnectRetries:  cfg.Database.ConnectRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.New(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	case "inmemory":
		return nil, ErrNoMigrations
	}
	return nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
}
