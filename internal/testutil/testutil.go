package testutil

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/repository"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table by running the down migrations in reverse
// order, then applies the up migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := repository.MigrationFiles(".down.sql")
	if err != nil {
		return err
	}
	for i := len(downs) - 1; i >= 0; i-- {
		sql, err := repository.MigrationFS.ReadFile(downs[i])
		if err != nil {
			return fmt.Errorf("read down migration %s: %w", downs[i], err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply down migration %s: %w", downs[i], err)
		}
	}

	return repository.NewWithPool(pool).Migrate(ctx)
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var idCounter uint64

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), atomic.AddUint64(&idCounter, 1))
}

// NewTestUser creates a user with sensible defaults.
func NewTestUser(t testing.TB, userID string, hashes ...string) *model.User {
	t.Helper()
	now := time.Now().UTC()
	if hashes == nil {
		hashes = []string{}
	}
	return &model.User{
		ID:           UniqueID("user"),
		UserID:       userID,
		UserName:     "Test " + userID,
		SearchHashes: hashes,
		AppliedJobs:  []model.AppliedJob{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestFilter creates a filter with the given hash and sensible defaults.
func NewTestFilter(t testing.TB, hash string) *model.Filter {
	t.Helper()
	now := time.Now().UTC()
	return &model.Filter{
		ID: UniqueID("filter"),
		FilterDefinition: model.FilterDefinition{
			SiteNames:     []model.SiteName{model.SiteLinkedIn},
			SearchTerm:    "engineer",
			Location:      "NY",
			ResultsWanted: model.DefaultResultsWanted,
			HoursOld:      model.DefaultHoursOld,
			Country:       model.DefaultCountry,
		},
		Experience:   "mid",
		DocumentHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestJob creates a job tagged with hashes.
func NewTestJob(t testing.TB, title string, hashes ...string) *model.Job {
	t.Helper()
	now := time.Now().UTC()
	id := UniqueID("job")
	return &model.Job{
		ID:           id,
		Site:         string(model.SiteLinkedIn),
		JobURL:       "https://www.linkedin.com/jobs/view/" + id,
		JobURLDirect: "https://careers.example.com/" + id,
		Title:        title,
		Company:      "Example Corp",
		Location:     "New York, NY",
		Description:  "Build things.",
		SearchHashes: hashes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
