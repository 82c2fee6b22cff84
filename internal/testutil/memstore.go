package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/repository"
)

// MemStore is an in-memory user, filter and job store with the same error
// contract as the Postgres repositories.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]*model.User
	filters map[string]*model.Filter
	jobs    []*model.Job

	// Err, when set, is returned by every store call.
	Err error

	// BeforeUpdateUser runs before UpdateUser checks the version. Tests use it
	// to inject a concurrent write. It is called without the lock held.
	BeforeUpdateUser func(user *model.User)

	// BeforeCreateFilter runs before CreateFilter inserts. Tests use it to
	// simulate another request inserting the same hash first.
	BeforeCreateFilter func(filter *model.Filter)
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]*model.User),
		filters: make(map[string]*model.Filter),
	}
}

// Ping implements a health checker.
func (s *MemStore) Ping(ctx context.Context) error {
	return s.Err
}

// CreateUser stores a new user.
func (s *MemStore) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.users[user.UserID]; ok {
		return repository.ErrUserExists
	}

	user.Version = 1
	s.users[user.UserID] = user.Clone()
	return nil
}

// GetUserByUserID returns a copy of the stored user.
func (s *MemStore) GetUserByUserID(ctx context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u.Clone(), nil
}

// UpdateUser writes the user if its version matches the stored one.
func (s *MemStore) UpdateUser(ctx context.Context, user *model.User) error {
	if hook := s.BeforeUpdateUser; hook != nil {
		hook(user)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	stored, ok := s.users[user.UserID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if stored.Version != user.Version {
		return repository.ErrVersionConflict
	}

	user.Version++
	s.users[user.UserID] = user.Clone()
	return nil
}

// CreateFilter stores a filter unless its hash is taken.
func (s *MemStore) CreateFilter(ctx context.Context, filter *model.Filter) error {
	if hook := s.BeforeCreateFilter; hook != nil {
		hook(filter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	for _, f := range s.filters {
		if f.DocumentHash == filter.DocumentHash {
			return repository.ErrFilterHashExists
		}
	}

	c := *filter
	s.filters[filter.ID] = &c
	return nil
}

// GetFilterByID returns a copy of the stored filter.
func (s *MemStore) GetFilterByID(ctx context.Context, id string) (*model.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	f, ok := s.filters[id]
	if !ok {
		return nil, repository.ErrFilterNotFound
	}
	c := *f
	return &c, nil
}

// GetFilterByHash returns a copy of the filter with the given hash.
func (s *MemStore) GetFilterByHash(ctx context.Context, hash string) (*model.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	for _, f := range s.filters {
		if f.DocumentHash == hash {
			c := *f
			return &c, nil
		}
	}
	return nil, repository.ErrFilterNotFound
}

// ListFiltersByHashes returns filters whose hash is in hashes, oldest first.
func (s *MemStore) ListFiltersByHashes(ctx context.Context, hashes []string) ([]*model.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	want := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		want[h] = struct{}{}
	}

	out := make([]*model.Filter, 0)
	for _, f := range s.filters {
		if _, ok := want[f.DocumentHash]; ok {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AddJob seeds a job into the feed.
func (s *MemStore) AddJob(job *model.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *job
	c.SearchHashes = append([]string(nil), job.SearchHashes...)
	s.jobs = append(s.jobs, &c)
}

// ListJobsBySearchHashes returns jobs tagged with any of hashes, newest first.
func (s *MemStore) ListJobsBySearchHashes(ctx context.Context, hashes []string) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	want := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		want[h] = struct{}{}
	}

	out := make([]*model.Job, 0)
	for i := len(s.jobs) - 1; i >= 0; i-- {
		if s.jobs[i].MatchesAny(want) {
			c := *s.jobs[i]
			out = append(out, &c)
		}
	}
	return out, nil
}

// FilterCount returns the number of stored filters.
func (s *MemStore) FilterCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filters)
}

// UserCount returns the number of stored users.
func (s *MemStore) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// PutUser overwrites a stored user, bumping its version as a concurrent writer would.
func (s *MemStore) PutUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := user.Clone()
	if stored, ok := s.users[user.UserID]; ok {
		c.Version = stored.Version + 1
	} else if c.Version == 0 {
		c.Version = 1
	}
	s.users[user.UserID] = c
}

// PutFilter stores a filter directly, bypassing the hash check.
func (s *MemStore) PutFilter(filter *model.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *filter
	s.filters[filter.ID] = &c
}
