// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jobsift/jobsift/internal/filterhash"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/repository"
)

// Service errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrFilterNotFound  = errors.New("filter not found")
	ErrDuplicateFilter = errors.New("this job search configuration already exists")
)

// maxUserUpdateAttempts bounds the optimistic-lock retry loop on user writes.
const maxUserUpdateAttempts = 5

// UserStore persists users. UpdateUser must be a compare-and-swap on User.Version.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUserID(ctx context.Context, userID string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// FilterStore persists shared filter definitions keyed by document hash.
type FilterStore interface {
	CreateFilter(ctx context.Context, filter *model.Filter) error
	GetFilterByID(ctx context.Context, id string) (*model.Filter, error)
	GetFilterByHash(ctx context.Context, hash string) (*model.Filter, error)
	ListFiltersByHashes(ctx context.Context, hashes []string) ([]*model.Filter, error)
}

// JobStore reads scraped jobs.
type JobStore interface {
	ListJobsBySearchHashes(ctx context.Context, hashes []string) ([]*model.Job, error)
}

// JobBoardService implements user registration, filter management and job listing.
type JobBoardService struct {
	users   UserStore
	filters FilterStore
	jobs    JobStore
	metrics metrics.Recorder

	starter     model.StarterFilterSpec
	starterHash string

	now   func() time.Time
	newID func() string
}

// NewJobBoardService creates a new JobBoardService seeding new users with the
// starter filter of the given version.
func NewJobBoardService(users UserStore, filters FilterStore, jobs JobStore, starterVersion string, recorder metrics.Recorder) (*JobBoardService, error) {
	starter, err := model.StarterFilter(starterVersion)
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return &JobBoardService{
		users:       users,
		filters:     filters,
		jobs:        jobs,
		metrics:     recorder,
		starter:     starter,
		starterHash: filterhash.Compute(starter.Definition),
		now:         time.Now,
		newID:       func() string { return ulid.Make().String() },
	}, nil
}

// StarterHash returns the hash every new user is seeded with.
func (s *JobBoardService) StarterHash() string {
	return s.starterHash
}

// ProvisionStarterFilter makes sure the shared starter filter record exists.
func (s *JobBoardService) ProvisionStarterFilter(ctx context.Context) (*model.Filter, error) {
	filter, _, err := s.resolveFilter(ctx, s.starter.Definition, s.starterHash, s.starter.Experience)
	if err != nil {
		return nil, fmt.Errorf("provision starter filter: %w", err)
	}
	return filter, nil
}

// RegisterUserInput defines input for registering a user.
type RegisterUserInput struct {
	UserID   string
	UserName string
}

// RegisterUser creates a user unless one with the same UserID exists.
// The returned bool is false when the user already existed; nothing is
// modified in that case.
func (s *JobBoardService) RegisterUser(ctx context.Context, input RegisterUserInput) (*model.User, bool, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, false, invalid("userId", "is required")
	}
	if strings.TrimSpace(input.UserName) == "" {
		return nil, false, invalid("userName", "is required")
	}
	if err := checkLength("userId", input.UserID); err != nil {
		return nil, false, err
	}
	if err := checkLength("userName", input.UserName); err != nil {
		return nil, false, err
	}

	existing, err := s.users.GetUserByUserID(ctx, input.UserID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, fmt.Errorf("get user: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           s.newID(),
		UserID:       input.UserID,
		UserName:     input.UserName,
		SearchHashes: []string{s.starterHash},
		AppliedJobs:  []model.AppliedJob{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			// Lost a race with a concurrent registration of the same userId.
			existing, getErr := s.users.GetUserByUserID(ctx, input.UserID)
			if getErr != nil {
				return nil, false, fmt.Errorf("get user after concurrent create: %w", getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	s.metrics.IncUserRegistered()

	return user, true, nil
}

// GetUser retrieves a user by external identity.
func (s *JobBoardService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.loadUser(ctx, userID)
}

// AddFilterInput defines input for attaching a filter to a user.
type AddFilterInput struct {
	UserID     string
	SiteNames  []string
	Keywords   string
	State      string
	Experience string
}

// AddFilterResult is the outcome of AddFilter.
type AddFilterResult struct {
	Filter *model.Filter
	// Created is true when a new shared filter record was stored.
	Created bool
}

// AddFilter attaches a filter to a user. Identical definitions share one
// stored record; attaching a definition the user already references returns
// ErrDuplicateFilter. An unknown user is reported before any problem with
// the filter fields.
func (s *JobBoardService) AddFilter(ctx context.Context, input AddFilterInput) (*AddFilterResult, error) {
	user, err := s.loadUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	def, experience, err := buildDefinition(input)
	if err != nil {
		return nil, err
	}

	hash := filterhash.Compute(def)
	if user.HasSearchHash(hash) {
		s.metrics.IncFilterDuplicate()
		return nil, ErrDuplicateFilter
	}

	filter, created, err := s.resolveFilter(ctx, def, hash, experience)
	if err != nil {
		return nil, err
	}

	_, err = s.mutateUser(ctx, user, func(u *model.User) error {
		if u.HasSearchHash(hash) {
			return ErrDuplicateFilter
		}
		u.SearchHashes = append(u.SearchHashes, hash)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateFilter) {
			s.metrics.IncFilterDuplicate()
		}
		return nil, err
	}

	if created {
		s.metrics.IncFilterCreated()
	} else {
		s.metrics.IncFilterReused()
	}

	return &AddFilterResult{Filter: filter, Created: created}, nil
}

// ListFilters returns the filters a user references, in the order they were attached.
// Hashes without a stored record are skipped.
func (s *JobBoardService) ListFilters(ctx context.Context, userID string) ([]*model.Filter, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(user.SearchHashes) == 0 {
		return []*model.Filter{}, nil
	}

	stored, err := s.filters.ListFiltersByHashes(ctx, user.SearchHashes)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}

	byHash := make(map[string]*model.Filter, len(stored))
	for _, f := range stored {
		byHash[f.DocumentHash] = f
	}

	filters := make([]*model.Filter, 0, len(stored))
	seen := make(map[string]struct{}, len(user.SearchHashes))
	for _, h := range user.SearchHashes {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		if f, ok := byHash[h]; ok {
			filters = append(filters, f)
		}
	}

	return filters, nil
}

// RemoveFilter detaches the filter with the given record ID from the user.
// The shared record is kept; other users may still reference it.
func (s *JobBoardService) RemoveFilter(ctx context.Context, userID, filterID string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(filterID) == "" {
		return invalid("filterId", "is required")
	}

	filter, err := s.filters.GetFilterByID(ctx, filterID)
	if err != nil {
		if errors.Is(err, repository.ErrFilterNotFound) {
			return ErrFilterNotFound
		}
		return fmt.Errorf("get filter: %w", err)
	}

	_, err = s.mutateUser(ctx, user, func(u *model.User) error {
		u.RemoveSearchHash(filter.DocumentHash)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncFilterDetached()

	return nil
}

// ListJobs returns jobs produced by any of the user's filters that the user
// has not applied to.
func (s *JobBoardService) ListJobs(ctx context.Context, userID string) ([]*model.Job, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(user.SearchHashes) == 0 {
		s.metrics.ObserveJobsListed(0)
		return []*model.Job{}, nil
	}

	jobs, err := s.jobs.ListJobsBySearchHashes(ctx, user.SearchHashes)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	applied := user.AppliedJobIDs()
	available := make([]*model.Job, 0, len(jobs))
	for _, job := range jobs {
		if _, done := applied[job.ID]; done {
			continue
		}
		available = append(available, job)
	}

	s.metrics.ObserveJobsListed(len(available))

	return available, nil
}

// MarkApplied records that the user applied to jobID. Repeated applications
// to the same job are all kept.
func (s *JobBoardService) MarkApplied(ctx context.Context, userID, jobID string) (*model.AppliedJob, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(jobID) == "" {
		return nil, invalid("jobId", "is required")
	}

	var record model.AppliedJob
	_, err = s.mutateUser(ctx, user, func(u *model.User) error {
		record = model.AppliedJob{JobID: jobID, DateApplied: s.now().UTC()}
		u.AppliedJobs = append(u.AppliedJobs, record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncJobApplied()

	return &record, nil
}

// loadUser validates userID and fetches the user.
func (s *JobBoardService) loadUser(ctx context.Context, userID string) (*model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("userId", "is required")
	}

	user, err := s.users.GetUserByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// mutateUser applies fn to a copy of user and writes it back with a
// compare-and-swap. On a version conflict the user is reloaded and fn is
// applied again.
func (s *JobBoardService) mutateUser(ctx context.Context, user *model.User, fn func(*model.User) error) (*model.User, error) {
	for attempt := 1; ; attempt++ {
		candidate := user.Clone()
		if err := fn(candidate); err != nil {
			return nil, err
		}

		err := s.users.UpdateUser(ctx, candidate)
		switch {
		case err == nil:
			return candidate, nil
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case !errors.Is(err, repository.ErrVersionConflict):
			return nil, fmt.Errorf("update user: %w", err)
		case attempt >= maxUserUpdateAttempts:
			return nil, fmt.Errorf("update user after %d attempts: %w", attempt, err)
		}

		s.metrics.IncUserUpdateConflict()

		user, err = s.loadUser(ctx, user.UserID)
		if err != nil {
			return nil, err
		}
	}
}

// resolveFilter returns the stored filter for hash, inserting it if absent.
// A concurrent insert of the same hash is resolved by re-reading the winner.
func (s *JobBoardService) resolveFilter(ctx context.Context, def model.FilterDefinition, hash, experience string) (*model.Filter, bool, error) {
	existing, err := s.filters.GetFilterByHash(ctx, hash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrFilterNotFound) {
		return nil, false, fmt.Errorf("get filter by hash: %w", err)
	}

	now := s.now().UTC()
	filter := &model.Filter{
		ID:               s.newID(),
		FilterDefinition: filterhash.Normalize(def),
		Experience:       experience,
		DocumentHash:     hash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.filters.CreateFilter(ctx, filter)
	if err == nil {
		return filter, true, nil
	}
	if !errors.Is(err, repository.ErrFilterHashExists) {
		return nil, false, fmt.Errorf("create filter: %w", err)
	}

	existing, err = s.filters.GetFilterByHash(ctx, hash)
	if err != nil {
		return nil, false, fmt.Errorf("get filter after concurrent create: %w", err)
	}
	return existing, false, nil
}
