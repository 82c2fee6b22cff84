package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jobsift/jobsift/internal/model"
)

// Common errors for filter repository operations.
var (
	ErrFilterNotFound   = errors.New("filter not found")
	ErrFilterHashExists = errors.New("filter hash already exists")
)

const filterColumns = `id, site_names, search_term, location, results_wanted, hours_old, country,
		       experience, document_hash, last_run_at, created_at, updated_at`

// CreateFilter inserts a new filter. The document hash must be computed by the caller.
// Returns ErrFilterHashExists if a filter with the same hash is already stored.
func (r *Repository) CreateFilter(ctx context.Context, filter *model.Filter) error {
	query := `
		INSERT INTO filters (id, site_names, search_term, location, results_wanted, hours_old, country,
		                     experience, document_hash, last_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		filter.ID,
		siteNamesToStrings(filter.SiteNames),
		filter.SearchTerm,
		filter.Location,
		filter.ResultsWanted,
		filter.HoursOld,
		filter.Country,
		filter.Experience,
		filter.DocumentHash,
		filter.LastRunAt,
		filter.CreatedAt,
		filter.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "filters_document_hash_key") {
			return ErrFilterHashExists
		}
		return fmt.Errorf("failed to create filter: %w", err)
	}

	return nil
}

// GetFilterByID retrieves a filter by its record ID.
func (r *Repository) GetFilterByID(ctx context.Context, id string) (*model.Filter, error) {
	query := `SELECT ` + filterColumns + ` FROM filters WHERE id = $1`

	filter, err := scanFilter(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilterNotFound
		}
		return nil, fmt.Errorf("failed to get filter by ID: %w", err)
	}

	return filter, nil
}

// GetFilterByHash retrieves a filter by its document hash.
func (r *Repository) GetFilterByHash(ctx context.Context, hash string) (*model.Filter, error) {
	query := `SELECT ` + filterColumns + ` FROM filters WHERE document_hash = $1`

	filter, err := scanFilter(r.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilterNotFound
		}
		return nil, fmt.Errorf("failed to get filter by hash: %w", err)
	}

	return filter, nil
}

// ListFiltersByHashes returns every filter whose hash is in hashes, oldest first.
func (r *Repository) ListFiltersByHashes(ctx context.Context, hashes []string) ([]*model.Filter, error) {
	if len(hashes) == 0 {
		return []*model.Filter{}, nil
	}

	query := `SELECT ` + filterColumns + ` FROM filters WHERE document_hash = ANY($1) ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	filters := make([]*model.Filter, 0, len(hashes))
	for rows.Next() {
		filter, err := scanFilter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan filter: %w", err)
		}
		filters = append(filters, filter)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating filters: %w", err)
	}

	return filters, nil
}

// MarkFilterRun records when the scraper last ran the filter with the given hash.
func (r *Repository) MarkFilterRun(ctx context.Context, hash string, at time.Time) error {
	query := `
		UPDATE filters
		SET last_run_at = $2, updated_at = NOW()
		WHERE document_hash = $1 AND (last_run_at IS NULL OR last_run_at < $2)
	`

	if _, err := r.pool.Exec(ctx, query, hash, at); err != nil {
		return fmt.Errorf("failed to mark filter run: %w", err)
	}

	return nil
}

func scanFilter(row pgx.Row) (*model.Filter, error) {
	var (
		filter model.Filter
		sites  []string
	)
	err := row.Scan(
		&filter.ID,
		&sites,
		&filter.SearchTerm,
		&filter.Location,
		&filter.ResultsWanted,
		&filter.HoursOld,
		&filter.Country,
		&filter.Experience,
		&filter.DocumentHash,
		&filter.LastRunAt,
		&filter.CreatedAt,
		&filter.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	filter.SiteNames = make([]model.SiteName, len(sites))
	for i, s := range sites {
		filter.SiteNames[i] = model.SiteName(s)
	}

	return &filter, nil
}

func siteNamesToStrings(sites []model.SiteName) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = string(s)
	}
	return out
}
