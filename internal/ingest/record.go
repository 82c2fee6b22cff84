// Package ingest moves scraped jobs into the job feed and announces new
// filters to the scrapers through Redis streams.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jobsift/jobsift/internal/filterhash"
	"github.com/jobsift/jobsift/internal/model"
)

const (
	maxURLLength         = 2048
	maxTextLength        = 500
	maxDescriptionLength = 64 * 1024
)

// Record is one scraped job as emitted by a scraper, either as a line of
// NDJSON or as the payload of a stream message.
type Record struct {
	Site         string   `json:"site"`
	JobURL       string   `json:"job_url"`
	JobURLDirect string   `json:"job_url_direct,omitempty"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	Description  string   `json:"description,omitempty"`
	SearchHash   string   `json:"search_hash,omitempty"`
	SearchHashes []string `json:"search_hashes,omitempty"`
}

// DecodeRecord parses and validates a JSON record into a job stamped with now.
func DecodeRecord(raw []byte, now time.Time) (*model.Job, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return rec.Job(now)
}

// Job validates the record and converts it to a job with a fresh ID.
func (r Record) Job(now time.Time) (*model.Job, error) {
	if r.JobURL == "" {
		return nil, errors.New("job_url is required")
	}
	if len(r.JobURL) > maxURLLength || len(r.JobURLDirect) > maxURLLength {
		return nil, errors.New("job url too long")
	}
	if err := checkURL("job_url", r.JobURL); err != nil {
		return nil, err
	}
	if r.JobURLDirect != "" {
		if err := checkURL("job_url_direct", r.JobURLDirect); err != nil {
			return nil, err
		}
	}
	if r.Title == "" {
		return nil, errors.New("title is required")
	}
	if len(r.Title) > maxTextLength || len(r.Company) > maxTextLength || len(r.Location) > maxTextLength {
		return nil, errors.New("title, company or location too long")
	}
	if len(r.Description) > maxDescriptionLength {
		return nil, errors.New("description too long")
	}

	site, err := model.ParseSiteName(r.Site)
	if err != nil {
		return nil, err
	}

	hashes := r.hashes()
	if len(hashes) == 0 {
		return nil, errors.New("search_hash is required")
	}
	for _, h := range hashes {
		if !filterhash.IsValid(h) {
			return nil, fmt.Errorf("invalid search hash %q", h)
		}
	}

	return &model.Job{
		ID:           ulid.Make().String(),
		Site:         string(site),
		JobURL:       r.JobURL,
		JobURLDirect: r.JobURLDirect,
		Title:        r.Title,
		Company:      r.Company,
		Location:     r.Location,
		Description:  r.Description,
		SearchHashes: hashes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// checkURL requires an absolute http or https URL with a host.
func checkURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https url", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

// hashes merges search_hash into search_hashes without repeats.
func (r Record) hashes() []string {
	out := make([]string, 0, len(r.SearchHashes)+1)
	seen := make(map[string]struct{}, len(r.SearchHashes)+1)
	for _, h := range append(append([]string(nil), r.SearchHashes...), r.SearchHash) {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
