package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres stores each room as one row of the sessions table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres applies pending migrations and connects a pool.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("database URL is empty")
	}
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate brings the schema up to date from the embedded migration files.
func Migrate(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open DB: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}

func (p *Postgres) Load(ctx context.Context, roomID string) (*Record, error) {
	rec := Record{RoomID: roomID}
	var state []byte

	err := p.pool.QueryRow(ctx,
		`SELECT phase, state, updated_at FROM sessions WHERE room_id = $1`,
		roomID,
	).Scan(&rec.Phase, &state, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", roomID, err)
	}

	rec.State = state
	return &rec, nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (room_id, phase, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id) DO UPDATE
		SET phase = EXCLUDED.phase, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, rec.RoomID, rec.Phase, string(rec.State), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.RoomID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, roomID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE room_id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", roomID, err)
	}
	return nil
}

func (p *Postgres) DeleteAll(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to purge sessions: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
