package db

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/Saranwich/longsorn/internal/logger"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every query can
// run standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

const connectRetries = 10

// Connect opens a pool and waits for the database to answer pings, backing
// off between attempts. Managed databases routinely come up after the app.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	log := logger.FromContext(ctx)
	for i := 0; i < connectRetries; i++ {
		if err := pool.Ping(ctx); err == nil {
			return pool, nil
		} else {
			wait := time.Duration(i+1) * time.Second
			log.Warn("database not ready", "attempt", i+1, "retry_in", wait.String(), "error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				pool.Close()
				return nil, ctx.Err()
			}
		}
	}

	pool.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts", connectRetries)
}

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	stdDB := stdlib.OpenDBFromPool(pool)
	defer stdDB.Close()

	if err := goose.UpContext(ctx, stdDB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
