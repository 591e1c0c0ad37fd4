// Package postgres implements the storage.Backend interface on PostgreSQL/PostGIS.
// Queueing and batch writes live in the embedded GORM backend.
package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/autodash/simulator/internal/database"
	"github.com/autodash/simulator/internal/geo"
	gormstorage "github.com/autodash/simulator/internal/storage/gorm"

	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the Postgres storage backend.
// DB is optional; without it Init connects using the db.* config keys.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	Projector     *geo.Projector
	WriteInterval time.Duration
}

// Backend wraps the GORM backend with Postgres connection handling.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormDeps(deps)),
		deps:    deps,
	}
}

func gormDeps(deps Dependencies) gormstorage.Dependencies {
	return gormstorage.Dependencies{
		DB:            deps.DB,
		Logger:        deps.Logger,
		Projector:     deps.Projector,
		WriteInterval: deps.WriteInterval,
	}
}

// Init connects when no DB was injected, then migrates and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := Connect()
		if err != nil {
			return err
		}
		b.deps.DB = db
		b.Backend = gormstorage.New(gormDeps(b.deps))
	}
	return b.Backend.Init()
}

// Connect opens and pings the configured Postgres database.
func Connect() (*gorm.DB, error) {
	db, err := database.GetPostgresDBStandalone()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	return db, nil
}
