// Package jobfeed provides access to scraped job postings.
//
// The API only reads the feed; rows are written by the ingest worker and
// scripts/import-jobs.go. The feed may live in its own database, so it carries
// its own schema.
package jobfeed

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/jobsift/jobsift/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Repository handles job feed database operations.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new job feed repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to PostgreSQL through lib/pq and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open job feed database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping job feed database: %w", err)
	}

	return db, nil
}

// Migrate applies the feed's embedded up migrations on its own connection.
// The DDL is idempotent.
func (r *Repository) Migrate(ctx context.Context) error {
	files, err := fs.Glob(migrationFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		ddl, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListJobsBySearchHashes returns jobs tagged with at least one of hashes, newest first.
func (r *Repository) ListJobsBySearchHashes(ctx context.Context, hashes []string) ([]*model.Job, error) {
	if len(hashes) == 0 {
		return []*model.Job{}, nil
	}

	query := `
		SELECT id, site, job_url, job_url_direct, title, company, location,
		       description, search_hashes, created_at, updated_at
		FROM jobs
		WHERE search_hashes && $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("query jobs by search hashes: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

// UpsertJob inserts a job, or merges its search hashes into the stored row
// when a job with the same job URL already exists. job.ID is replaced with
// the stored ID.
func (r *Repository) UpsertJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			id, site, job_url, job_url_direct, title, company, location,
			description, search_hashes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (job_url) DO UPDATE SET
			search_hashes = ARRAY(
				SELECT DISTINCT h FROM unnest(jobs.search_hashes || EXCLUDED.search_hashes) AS h
			),
			job_url_direct = COALESCE(NULLIF(EXCLUDED.job_url_direct, ''), jobs.job_url_direct),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), jobs.description),
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	hashes := job.SearchHashes
	if hashes == nil {
		hashes = []string{}
	}

	err := r.db.QueryRowContext(ctx, query,
		job.ID,
		job.Site,
		job.JobURL,
		job.JobURLDirect,
		job.Title,
		job.Company,
		job.Location,
		job.Description,
		pq.Array(hashes),
		job.CreatedAt,
		job.UpdatedAt,
	).Scan(&job.ID)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var hashes []string

	if err := row.Scan(
		&job.ID,
		&job.Site,
		&job.JobURL,
		&job.JobURLDirect,
		&job.Title,
		&job.Company,
		&job.Location,
		&job.Description,
		pq.Array(&hashes),
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.SearchHashes = hashes
	return &job, nil
}
