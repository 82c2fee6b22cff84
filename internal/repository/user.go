package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jobsift/jobsift/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrVersionConflict = errors.New("user was modified concurrently")
)

// CreateUser inserts a new user. The user's Version is set to 1.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, user_id, user_name, search_hashes, applied_jobs, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
	`

	applied, err := encodeAppliedJobs(user.AppliedJobs)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		user.ID,
		user.UserID,
		user.UserName,
		nonNilStrings(user.SearchHashes),
		applied,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "users_user_id_key") {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.Version = 1
	return nil
}

// GetUserByUserID retrieves a user by their external identity.
func (r *Repository) GetUserByUserID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, user_id, user_name, search_hashes, applied_jobs, version, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var (
		user    model.User
		applied []byte
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.UserID,
		&user.UserName,
		&user.SearchHashes,
		&applied,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by user ID: %w", err)
	}

	if user.AppliedJobs, err = decodeAppliedJobs(applied); err != nil {
		return nil, err
	}
	if user.SearchHashes == nil {
		user.SearchHashes = []string{}
	}

	return &user, nil
}

// UpdateUser writes the user's mutable fields if the stored version still
// equals user.Version. On success user.Version and user.UpdatedAt are advanced.
// Returns ErrVersionConflict when another writer got there first.
func (r *Repository) UpdateUser(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users
		SET user_name = $3, search_hashes = $4, applied_jobs = $5,
		    version = version + 1, updated_at = $6
		WHERE user_id = $1 AND version = $2
	`

	applied, err := encodeAppliedJobs(user.AppliedJobs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := r.pool.Exec(ctx, query,
		user.UserID,
		user.Version,
		user.UserName,
		nonNilStrings(user.SearchHashes),
		applied,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, user.UserID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user existence: %w", err)
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrVersionConflict
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}

func encodeAppliedJobs(jobs []model.AppliedJob) ([]byte, error) {
	if jobs == nil {
		jobs = []model.AppliedJob{}
	}
	b, err := json.Marshal(jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode applied jobs: %w", err)
	}
	return b, nil
}

func decodeAppliedJobs(raw []byte) ([]model.AppliedJob, error) {
	jobs := []model.AppliedJob{}
	if len(raw) == 0 {
		return jobs, nil
	}
	if err := json.Unmarshal(raw, &jobs); err != nil {
		return nil, fmt.Errorf("failed to decode applied jobs: %w", err)
	}
	return jobs, nil
}

// nonNilStrings keeps NOT NULL array columns from receiving SQL NULL.
func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
