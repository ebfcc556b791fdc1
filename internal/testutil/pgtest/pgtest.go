// Package pgtest starts one disposable PostgreSQL container per test binary
// and hands out a migrated pool.
package pgtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/meetapp/backend/pkg/database"
)

var (
	once    sync.Once
	pool    *pgxpool.Pool
	initErr error
)

// Pool returns a pool on a migrated database with all tables emptied.
// The test is skipped under -short or when Docker is unavailable.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		pool, initErr = start(context.Background())
	})
	if initErr != nil {
		t.Fatalf("start postgres: %v", initErr)
	}

	_, err := pool.Exec(context.Background(),
		`TRUNCATE email_logs, notifications, enrollments, meetups, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func start(ctx context.Context) (*pgxpool.Pool, error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("meetapp"),
		postgres.WithUsername("meetapp"),
		postgres.WithPassword("meetapp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, err
	}
	p, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 16}, zap.NewNop())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, p); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// InsertUser creates a user row and returns its id.
func InsertUser(t *testing.T, p *pgxpool.Pool, name, email string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := p.QueryRow(context.Background(),
		`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, 'x') RETURNING id`, name, email).Scan(&id)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// InsertMeetup creates a meetup row and returns its id.
func InsertMeetup(t *testing.T, p *pgxpool.Pool, title string, startsAt time.Time, organizerID uuid.UUID) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := p.QueryRow(context.Background(),
		`INSERT INTO meetups (title, description, location, starts_at, organizer_id)
		VALUES ($1, 'desc', 'Room 1', $2, $3) RETURNING id`, title, startsAt, organizerID).Scan(&id)
	if err != nil {
		t.Fatalf("insert meetup: %v", err)
	}
	return id
}
