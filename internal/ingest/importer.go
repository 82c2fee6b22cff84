package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// JobWriter persists scraped jobs.
type JobWriter interface {
	UpsertJob(ctx context.Context, job *model.Job) error
}

// FilterRunMarker stamps the last scrape time of a filter.
type FilterRunMarker interface {
	MarkFilterRun(ctx context.Context, hash string, at time.Time) error
}

// ImportResult summarizes one Import call.
type ImportResult struct {
	Jobs    int
	Filters int
}

// Importer writes batches of jobs to the feed and stamps the filters that
// produced them.
type Importer struct {
	jobs    JobWriter
	filters FilterRunMarker
	now     func() time.Time
}

// NewImporter creates an Importer. filters may be nil when run stamps are not wanted.
func NewImporter(jobs JobWriter, filters FilterRunMarker) *Importer {
	return &Importer{
		jobs:    jobs,
		filters: filters,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Import upserts every job, then marks each distinct search hash as run once.
// Upserts are idempotent on job URL, so a failed batch can be retried whole.
func (i *Importer) Import(ctx context.Context, jobs []*model.Job) (ImportResult, error) {
	var res ImportResult
	hashes := make([]string, 0)
	seen := make(map[string]struct{})

	for _, job := range jobs {
		if err := i.jobs.UpsertJob(ctx, job); err != nil {
			return res, fmt.Errorf("upsert job %s: %w", job.JobURL, err)
		}
		res.Jobs++

		for _, h := range job.SearchHashes {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			hashes = append(hashes, h)
		}
	}

	if i.filters == nil {
		return res, nil
	}

	at := i.now()
	for _, h := range hashes {
		if err := i.filters.MarkFilterRun(ctx, h, at); err != nil {
			return res, fmt.Errorf("mark filter %s: %w", h, err)
		}
		res.Filters++
	}

	return res, nil
}
