package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jobsift/jobsift/internal/filterhash"
	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/testutil"
)

func newTestService(t *testing.T) (*JobBoardService, *testutil.MemStore, *metrics.InMemoryRecorder) {
	t.Helper()

	store := testutil.NewMemStore()
	rec := metrics.NewInMemory()
	svc, err := NewJobBoardService(store, store, store, model.StarterFilterVersionV1, rec)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store, rec
}

func register(t *testing.T, svc *JobBoardService, userID string) *model.User {
	t.Helper()

	user, created, err := svc.RegisterUser(context.Background(), RegisterUserInput{UserID: userID, UserName: "User " + userID})
	if err != nil {
		t.Fatalf("register %s: %v", userID, err)
	}
	if !created {
		t.Fatalf("register %s: expected new user", userID)
	}
	return user
}

func engineerInput(userID string) AddFilterInput {
	return AddFilterInput{
		UserID:     userID,
		SiteNames:  []string{"linkedin"},
		Keywords:   "engineer",
		State:      "NY",
		Experience: "mid",
	}
}

func TestNewJobBoardService_UnknownStarterVersion(t *testing.T) {
	store := testutil.NewMemStore()
	if _, err := NewJobBoardService(store, store, store, "v99", nil); err == nil {
		t.Fatal("expected error for unknown starter version")
	}
}

func TestProvisionStarterFilter(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.ProvisionStarterFilter(ctx)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if first.DocumentHash != svc.StarterHash() {
		t.Fatalf("hash = %s, want %s", first.DocumentHash, svc.StarterHash())
	}

	second, err := svc.ProvisionStarterFilter(ctx)
	if err != nil {
		t.Fatalf("provision again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same record, got %s and %s", first.ID, second.ID)
	}
	if n := store.FilterCount(); n != 1 {
		t.Fatalf("filter count = %d, want 1", n)
	}
}

func TestRegisterUser(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	user := register(t, svc, "u1")
	if len(user.SearchHashes) != 1 || user.SearchHashes[0] != svc.StarterHash() {
		t.Fatalf("search hashes = %v, want only the starter hash", user.SearchHashes)
	}
	if len(user.AppliedJobs) != 0 {
		t.Fatalf("applied jobs = %v, want empty", user.AppliedJobs)
	}

	again, created, err := svc.RegisterUser(ctx, RegisterUserInput{UserID: "u1", UserName: "Someone Else"})
	if err != nil {
		t.Fatalf("register again: %v", err)
	}
	if created {
		t.Fatal("expected existing user")
	}
	if again.UserName != user.UserName {
		t.Fatalf("user name changed to %q", again.UserName)
	}
	if got := rec.Snapshot().UsersRegistered; got != 1 {
		t.Fatalf("UsersRegistered = %d, want 1", got)
	}
}

func TestRegisterUser_Validation(t *testing.T) {
	svc, store, _ := newTestService(t)

	tests := []struct {
		name  string
		input RegisterUserInput
		field string
	}{
		{"missing_user_id", RegisterUserInput{UserName: "x"}, "userId"},
		{"blank_user_id", RegisterUserInput{UserID: "  ", UserName: "x"}, "userId"},
		{"missing_user_name", RegisterUserInput{UserID: "u1"}, "userName"},
		{"long_user_name", RegisterUserInput{UserID: "u1", UserName: strings.Repeat("a", maxFieldLength+1)}, "userName"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, _, err := svc.RegisterUser(context.Background(), test.input)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != test.field {
				t.Fatalf("expected field %q, got %v", test.field, err)
			}
		})
	}

	if n := store.UserCount(); n != 0 {
		t.Fatalf("user count = %d, want 0", n)
	}
}

func TestRegisterUser_ConcurrentSameID(t *testing.T) {
	svc, store, _ := newTestService(t)

	const workers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := svc.RegisterUser(context.Background(), RegisterUserInput{UserID: "racer", UserName: "Racer"})
			if err != nil {
				t.Errorf("register: %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	if n := store.UserCount(); n != 1 {
		t.Fatalf("user count = %d, want 1", n)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.GetUser(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAddFilter_SharedAcrossUsers(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	register(t, svc, "a")
	register(t, svc, "b")

	first, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter a: %v", err)
	}
	if !first.Created {
		t.Fatal("expected a new filter record")
	}

	input := engineerInput("b")
	input.SiteNames = []string{" LinkedIn ", "linkedin"}
	input.Experience = "senior"
	second, err := svc.AddFilter(ctx, input)
	if err != nil {
		t.Fatalf("add filter b: %v", err)
	}
	if second.Created {
		t.Fatal("expected the existing filter record to be reused")
	}
	if second.Filter.ID != first.Filter.ID {
		t.Fatalf("filter IDs differ: %s vs %s", first.Filter.ID, second.Filter.ID)
	}
	if second.Filter.Experience != "mid" {
		t.Fatalf("experience = %q, want the first writer's value", second.Filter.Experience)
	}

	if n := store.FilterCount(); n != 1 {
		t.Fatalf("filter count = %d, want 1", n)
	}

	snap := rec.Snapshot()
	if snap.FiltersCreated != 1 || snap.FiltersReused != 1 {
		t.Fatalf("created/reused = %d/%d, want 1/1", snap.FiltersCreated, snap.FiltersReused)
	}
}

func TestAddFilter_DuplicateForSameUser(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	register(t, svc, "a")
	if _, err := svc.AddFilter(ctx, engineerInput("a")); err != nil {
		t.Fatalf("add filter: %v", err)
	}

	before, err := svc.GetUser(ctx, "a")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}

	if _, err := svc.AddFilter(ctx, engineerInput("a")); !errors.Is(err, ErrDuplicateFilter) {
		t.Fatalf("expected ErrDuplicateFilter, got %v", err)
	}

	after, err := svc.GetUser(ctx, "a")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(after.SearchHashes) != len(before.SearchHashes) {
		t.Fatalf("search hashes changed: %v -> %v", before.SearchHashes, after.SearchHashes)
	}
	if got := rec.Snapshot().FiltersDuplicate; got != 1 {
		t.Fatalf("FiltersDuplicate = %d, want 1", got)
	}
}

func TestAddFilter_StarterDefinitionIsDuplicate(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "a")

	starter, err := model.StarterFilter(model.StarterFilterVersionV1)
	if err != nil {
		t.Fatalf("starter: %v", err)
	}
	sites := make([]string, len(starter.Definition.SiteNames))
	for i, s := range starter.Definition.SiteNames {
		sites[i] = string(s)
	}

	_, err = svc.AddFilter(context.Background(), AddFilterInput{
		UserID:    "a",
		SiteNames: sites,
		Keywords:  starter.Definition.SearchTerm,
		State:     starter.Definition.Location,
	})
	if !errors.Is(err, ErrDuplicateFilter) {
		t.Fatalf("expected ErrDuplicateFilter, got %v", err)
	}
}

func TestAddFilter_Validation(t *testing.T) {
	svc, store, _ := newTestService(t)
	register(t, svc, "a")

	tests := []struct {
		name   string
		mutate func(*AddFilterInput)
		field  string
	}{
		{"no_sites", func(in *AddFilterInput) { in.SiteNames = nil }, "siteName"},
		{"unknown_site", func(in *AddFilterInput) { in.SiteNames = []string{"monster"} }, "siteName"},
		{"missing_keywords", func(in *AddFilterInput) { in.Keywords = " " }, "keywords"},
		{"missing_state", func(in *AddFilterInput) { in.State = "" }, "state"},
		{"long_keywords", func(in *AddFilterInput) { in.Keywords = strings.Repeat("k", maxFieldLength+1) }, "keywords"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			input := engineerInput("a")
			test.mutate(&input)

			_, err := svc.AddFilter(context.Background(), input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != test.field {
				t.Fatalf("field = %q, want %q", verr.Field, test.field)
			}
		})
	}

	if n := store.FilterCount(); n != 0 {
		t.Fatalf("filter count = %d, want 0", n)
	}
}

func TestAddFilter_DefaultExperience(t *testing.T) {
	svc, _, _ := newTestService(t)
	register(t, svc, "a")

	input := engineerInput("a")
	input.Experience = ""
	res, err := svc.AddFilter(context.Background(), input)
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}
	if res.Filter.Experience != model.DefaultExperience {
		t.Fatalf("experience = %q, want %q", res.Filter.Experience, model.DefaultExperience)
	}
	if res.Filter.ResultsWanted != model.DefaultResultsWanted || res.Filter.HoursOld != model.DefaultHoursOld || res.Filter.Country != model.DefaultCountry {
		t.Fatalf("fixed defaults not applied: %+v", res.Filter.FilterDefinition)
	}
}

func TestAddFilter_UserNotFound(t *testing.T) {
	svc, store, _ := newTestService(t)

	if _, err := svc.AddFilter(context.Background(), engineerInput("ghost")); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	incomplete := engineerInput("ghost")
	incomplete.SiteNames = nil
	if _, err := svc.AddFilter(context.Background(), incomplete); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("incomplete input: expected ErrUserNotFound, got %v", err)
	}
	if n := store.FilterCount(); n != 0 {
		t.Fatalf("filter count = %d, want 0", n)
	}
}

func TestAddFilter_RetriesOnVersionConflict(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	var once sync.Once
	store.BeforeUpdateUser = func(u *model.User) {
		once.Do(func() {
			// A concurrent request records an application first.
			current, err := store.GetUserByUserID(ctx, "a")
			if err != nil {
				t.Errorf("get user: %v", err)
				return
			}
			current.AppliedJobs = append(current.AppliedJobs, model.AppliedJob{JobID: "job-1", DateApplied: time.Now()})
			store.PutUser(current)
		})
	}

	res, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}

	user, err := svc.GetUser(ctx, "a")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !user.HasSearchHash(res.Filter.DocumentHash) {
		t.Fatal("filter hash lost")
	}
	if len(user.AppliedJobs) != 1 || user.AppliedJobs[0].JobID != "job-1" {
		t.Fatalf("concurrent application lost: %v", user.AppliedJobs)
	}
	if got := rec.Snapshot().UserUpdateConflicts; got != 1 {
		t.Fatalf("UserUpdateConflicts = %d, want 1", got)
	}
}

func TestAddFilter_GivesUpAfterRepeatedConflicts(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	store.BeforeUpdateUser = func(u *model.User) {
		current, err := store.GetUserByUserID(ctx, "a")
		if err != nil {
			t.Errorf("get user: %v", err)
			return
		}
		store.PutUser(current)
	}

	_, err := svc.AddFilter(ctx, engineerInput("a"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unexpected error class: %v", err)
	}
}

func TestAddFilter_ConcurrentInsertOfSameHash(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	var winner *model.Filter
	store.BeforeCreateFilter = func(f *model.Filter) {
		if winner != nil {
			return
		}
		winner = testutil.NewTestFilter(t, f.DocumentHash)
		store.PutFilter(winner)
	}

	res, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}
	if res.Created {
		t.Fatal("expected the concurrently inserted record to be reused")
	}
	if res.Filter.ID != winner.ID {
		t.Fatalf("filter ID = %s, want %s", res.Filter.ID, winner.ID)
	}
	if n := store.FilterCount(); n != 1 {
		t.Fatalf("filter count = %d, want 1", n)
	}
}

func TestListFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	// The starter hash has no stored record until provisioned.
	filters, err := svc.ListFilters(ctx, "a")
	if err != nil {
		t.Fatalf("list filters: %v", err)
	}
	if len(filters) != 0 {
		t.Fatalf("filters = %d, want 0", len(filters))
	}

	if _, err := svc.ProvisionStarterFilter(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	added, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}

	filters, err = svc.ListFilters(ctx, "a")
	if err != nil {
		t.Fatalf("list filters: %v", err)
	}
	if len(filters) != 2 {
		t.Fatalf("filters = %d, want 2", len(filters))
	}
	if filters[0].DocumentHash != svc.StarterHash() || filters[1].ID != added.Filter.ID {
		t.Fatalf("unexpected order: %s, %s", filters[0].DocumentHash, filters[1].ID)
	}
}

func TestRemoveFilter(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")
	register(t, svc, "b")

	res, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter a: %v", err)
	}
	if _, err := svc.AddFilter(ctx, engineerInput("b")); err != nil {
		t.Fatalf("add filter b: %v", err)
	}

	if err := svc.RemoveFilter(ctx, "a", res.Filter.ID); err != nil {
		t.Fatalf("remove filter: %v", err)
	}

	a, _ := svc.GetUser(ctx, "a")
	if a.HasSearchHash(res.Filter.DocumentHash) {
		t.Fatal("hash still attached to a")
	}
	b, _ := svc.GetUser(ctx, "b")
	if !b.HasSearchHash(res.Filter.DocumentHash) {
		t.Fatal("hash detached from b")
	}
	if n := store.FilterCount(); n != 1 {
		t.Fatalf("filter count = %d, want 1", n)
	}

	// Detaching a filter the user does not reference is a no-op.
	if err := svc.RemoveFilter(ctx, "a", res.Filter.ID); err != nil {
		t.Fatalf("remove again: %v", err)
	}
	if got := rec.Snapshot().FiltersDetached; got != 2 {
		t.Fatalf("FiltersDetached = %d, want 2", got)
	}
}

func TestRemoveFilter_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	if err := svc.RemoveFilter(ctx, "a", "missing"); !errors.Is(err, ErrFilterNotFound) {
		t.Fatalf("expected ErrFilterNotFound, got %v", err)
	}
	if err := svc.RemoveFilter(ctx, "a", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := svc.RemoveFilter(ctx, "ghost", "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestListJobs_ExcludesApplied(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	res, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add filter: %v", err)
	}
	hash := res.Filter.DocumentHash

	j1 := testutil.NewTestJob(t, "Backend Engineer", hash)
	j2 := testutil.NewTestJob(t, "Platform Engineer", hash, svc.StarterHash())
	other := testutil.NewTestJob(t, "Chef", filterhash.Compute(model.FilterDefinition{SearchTerm: "chef"}))
	store.AddJob(j1)
	store.AddJob(j2)
	store.AddJob(other)

	jobs, err := svc.ListJobs(ctx, "a")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(jobs))
	}

	if _, err := svc.MarkApplied(ctx, "a", j1.ID); err != nil {
		t.Fatalf("mark applied: %v", err)
	}

	jobs, err = svc.ListJobs(ctx, "a")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != j2.ID {
		t.Fatalf("expected only %s, got %+v", j2.ID, jobs)
	}

	snap := rec.Snapshot()
	if snap.JobListings != 2 || snap.JobsListedTotal != 3 {
		t.Fatalf("listings/total = %d/%d, want 2/3", snap.JobListings, snap.JobsListedTotal)
	}
}

func TestListJobs_NoFilters(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	user := testutil.NewTestUser(t, "empty")
	store.PutUser(user)
	store.AddJob(testutil.NewTestJob(t, "Anything", svc.StarterHash()))

	jobs, err := svc.ListJobs(ctx, "empty")
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(jobs))
	}
}

func TestMarkApplied_KeepsRepeats(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	record, err := svc.MarkApplied(ctx, "a", "job-7")
	if err != nil {
		t.Fatalf("mark applied: %v", err)
	}
	if record.JobID != "job-7" || !record.DateApplied.Equal(fixed) {
		t.Fatalf("record = %+v", record)
	}
	if _, err := svc.MarkApplied(ctx, "a", "job-7"); err != nil {
		t.Fatalf("mark applied again: %v", err)
	}

	user, _ := svc.GetUser(ctx, "a")
	if len(user.AppliedJobs) != 2 {
		t.Fatalf("applied jobs = %d, want 2", len(user.AppliedJobs))
	}
	if got := rec.Snapshot().JobsApplied; got != 2 {
		t.Fatalf("JobsApplied = %d, want 2", got)
	}
}

func TestMarkApplied_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	if _, err := svc.MarkApplied(ctx, "a", " "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.MarkApplied(ctx, "ghost", "job-1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "a")

	boom := errors.New("connection refused")
	store.Err = boom

	if _, err := svc.GetUser(ctx, "a"); !errors.Is(err, boom) || errors.Is(err, ErrUserNotFound) {
		t.Fatalf("GetUser: expected wrapped store error, got %v", err)
	}
	if _, _, err := svc.RegisterUser(ctx, RegisterUserInput{UserID: "b", UserName: "B"}); !errors.Is(err, boom) {
		t.Fatalf("RegisterUser: expected wrapped store error, got %v", err)
	}
	if _, err := svc.ListJobs(ctx, "a"); !errors.Is(err, boom) {
		t.Fatalf("ListJobs: expected wrapped store error, got %v", err)
	}
}

// Two users share a filter, one detaches it, and each still sees the jobs
// their remaining filters produce.
func TestSharedFilterLifecycle(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ProvisionStarterFilter(ctx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	register(t, svc, "a")
	register(t, svc, "b")

	shared, err := svc.AddFilter(ctx, engineerInput("a"))
	if err != nil {
		t.Fatalf("add a: %v", err)
	}
	if _, err := svc.AddFilter(ctx, engineerInput("b")); err != nil {
		t.Fatalf("add b: %v", err)
	}
	if n := store.FilterCount(); n != 2 {
		t.Fatalf("filter count = %d, want 2 (starter + shared)", n)
	}

	job := testutil.NewTestJob(t, "Engineer", shared.Filter.DocumentHash)
	store.AddJob(job)

	if err := svc.RemoveFilter(ctx, "b", shared.Filter.ID); err != nil {
		t.Fatalf("remove b: %v", err)
	}

	aJobs, err := svc.ListJobs(ctx, "a")
	if err != nil {
		t.Fatalf("list a: %v", err)
	}
	if len(aJobs) != 1 {
		t.Fatalf("a jobs = %d, want 1", len(aJobs))
	}
	bJobs, err := svc.ListJobs(ctx, "b")
	if err != nil {
		t.Fatalf("list b: %v", err)
	}
	if len(bJobs) != 0 {
		t.Fatalf("b jobs = %d, want 0", len(bJobs))
	}

	// b can attach it again and it resolves to the same record.
	again, err := svc.AddFilter(ctx, engineerInput("b"))
	if err != nil {
		t.Fatalf("re-add b: %v", err)
	}
	if again.Created || again.Filter.ID != shared.Filter.ID {
		t.Fatalf("expected reuse of %s, got %+v", shared.Filter.ID, again)
	}
}
