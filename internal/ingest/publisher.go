package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/model"
)

const (
	// FilterStreamKey is the Redis stream scrapers read new filters from.
	FilterStreamKey = "jobsift:stream:filters"

	// MaxFilterStreamLen is the approximate max length of the filter stream.
	MaxFilterStreamLen = 10000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond
)

// FilterEvent announces a newly stored shared filter to the scrapers.
type FilterEvent struct {
	FilterID      string   `json:"filter_id"`
	DocumentHash  string   `json:"document_hash"`
	SiteNames     []string `json:"site_names"`
	SearchTerm    string   `json:"search_term"`
	Location      string   `json:"location"`
	ResultsWanted int      `json:"results_wanted"`
	HoursOld      int      `json:"hours_old"`
	Country       string   `json:"country"`
	Experience    string   `json:"experience,omitempty"`
	CreatedAt     int64    `json:"created_at"` // Unix milliseconds
}

// NewFilterEvent builds the announcement for f.
func NewFilterEvent(f *model.Filter) FilterEvent {
	sites := make([]string, len(f.SiteNames))
	for i, s := range f.SiteNames {
		sites[i] = string(s)
	}
	return FilterEvent{
		FilterID:      f.ID,
		DocumentHash:  f.DocumentHash,
		SiteNames:     sites,
		SearchTerm:    f.SearchTerm,
		Location:      f.Location,
		ResultsWanted: f.ResultsWanted,
		HoursOld:      f.HoursOld,
		Country:       f.Country,
		Experience:    f.Experience,
		CreatedAt:     f.CreatedAt.UnixMilli(),
	}
}

// Publisher enqueues filter announcements to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new filter event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "ingest.publisher"),
		metrics: recorder,
	}
}

// Publish adds a filter event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event FilterEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: FilterStreamKey,
		MaxLen: MaxFilterStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// AnnounceFilter publishes f without blocking the caller.
// Errors are logged but not returned.
func (p *Publisher) AnnounceFilter(f *model.Filter) {
	event := NewFilterEvent(f)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish filter event",
				"document_hash", event.DocumentHash,
				"error", err,
			)
			p.metrics.IncFilterEventPublished("dropped")
			return
		}

		p.logger.Debug("filter event published",
			"document_hash", event.DocumentHash,
			"stream_id", streamID,
		)
		p.metrics.IncFilterEventPublished("success")
	}()
}
