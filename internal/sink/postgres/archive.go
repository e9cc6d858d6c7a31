// Package postgres implements the append-only health-event archive. Every
// published transition is recorded so raise/clear history survives agent
// restarts.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/minhvu/warden/internal/core/domain"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string
	MaxConns int
	MinConns int
}

// Archive is a Sink that appends every event to the health_events table.
type Archive struct {
	db *sqlx.DB
}

// NewArchive opens the database and verifies the connection.
func NewArchive(ctx context.Context, cfg Config) (*Archive, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Archive{db: db}, nil
}

// Migrate applies the goose migrations from dir.
func (a *Archive) Migrate(dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.Up(a.db.DB, dir); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

func (a *Archive) Name() string { return "postgres" }

const insertEvent = `
	INSERT INTO health_events
		(id, observer, entity, property, kind, severity, value, message, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func (a *Archive) Publish(ctx context.Context, ev domain.HealthEvent) error {
	_, err := a.db.ExecContext(ctx, insertEvent,
		ev.ID,
		ev.Source.Observer,
		ev.Source.Entity,
		ev.Source.Property,
		string(ev.Kind),
		ev.Severity.String(),
		ev.Value,
		ev.Message,
		ev.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert health event: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// Health checks if the database is reachable.
func (a *Archive) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}
