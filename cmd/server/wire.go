package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/iliyamo/patient-records/internal/config"
	"github.com/iliyamo/patient-records/internal/database"
	"github.com/iliyamo/patient-records/internal/repository"
	"github.com/iliyamo/patient-records/internal/repository/memstore"
	"github.com/iliyamo/patient-records/internal/service"
)

// newLogger writes JSON, or coloured console output in development.
func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// stores bundles the repositories of the configured driver.
type stores struct {
	users    service.UserRepository
	refresh  service.RefreshRepository
	patients service.PatientRepository
	metrics  service.MetricRepository
	db       *sql.DB
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// openStores connects to MySQL and creates missing tables, or builds the
// in-memory store. Memory data is lost on exit.
func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is not persisted")
		m := memstore.New()
		return &stores{users: m.Users(), refresh: m.Refresh(), patients: m.Patients(), metrics: m.Metrics()}, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect mysql: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("mysql connected")
	return &stores{
		users:    repository.NewUserRepo(db),
		refresh:  repository.NewTokenRepo(db),
		patients: repository.NewPatientRepo(db),
		metrics:  repository.NewMeasurementRepo(db),
		db:       db,
	}, nil
}
