package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jobsift/jobsift/internal/metrics"
	"github.com/jobsift/jobsift/internal/model"
)

const (
	// JobStreamKey is the Redis stream scrapers push job records to.
	JobStreamKey = "jobsift:stream:jobs"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "jobsift:stream:jobs:dlq"

	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "jobsift_ingest"

	// DefaultBatchSize is the max records per batch.
	DefaultBatchSize = 100

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second

	// DefaultMaxRetries is the max retries for batch processing.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the base of the exponential retry backoff.
	DefaultRetryBackoff = time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 30 * time.Second

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second

	maxDeadLetters = 10000
)

// Worker consumes scraped job records from a Redis stream and imports them.
type Worker struct {
	redis           *redis.Client
	importer        *Importer
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	maxRetries      int
	retryBackoff    time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a new ingest worker.
func NewWorker(client *redis.Client, importer *Importer, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		importer:        importer,
		logger:          logger.With("component", "ingest.worker", "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		maxRetries:      DefaultMaxRetries,
		retryBackoff:    DefaultRetryBackoff,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		claimStartID:    "0-0",
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetRetryBackoff overrides the base retry backoff.
func (w *Worker) SetRetryBackoff(backoff time.Duration) {
	if backoff > 0 {
		w.retryBackoff = backoff
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("ingest worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()
		if draining {
			w.logger.Info("ingest worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("ingest worker stopping")
			return nil
		default:
		}

		if err := w.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("process error", "error", err)
			sleep(ctx, time.Second)
		}
	}
}

// Shutdown lets the in-flight batch finish and stops the loop before it reads
// another one. If ctx expires first the batch is aborted; its entries stay
// pending and are reclaimed later. It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("ingest worker shutdown initiated")

	select {
	case <-done:
		w.logger.Info("ingest worker shutdown complete")
		return nil
	case <-ctx.Done():
		cancel()
		w.logger.Warn("ingest worker shutdown timed out, in-flight batch aborted")
		return ctx.Err()
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, JobStreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and imports a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	messages, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	jobs, messageIDs := w.decodeMessages(ctx, messages)
	if len(jobs) == 0 {
		// Every message was dead-lettered; ack so they do not block the group.
		return w.ackMessages(ctx, messageIDs)
	}

	if err := w.importWithRetry(ctx, jobs); err != nil {
		w.logger.Error("batch import failed after retries",
			"batch_size", len(jobs),
			"error", err,
		)
		// Left unacknowledged so a later claim retries them.
		return err
	}

	return w.ackMessages(ctx, messageIDs)
}

func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}
	w.lastClaim = time.Now()

	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   JobStreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, JobStreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetIngestQueueDepth(group.Pending + group.Lag)
			return
		}
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{JobStreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// decodeMessages converts stream messages to jobs. Poison messages are moved
// to the dead-letter stream; their IDs are still returned for acknowledgement.
func (w *Worker) decodeMessages(ctx context.Context, messages []redis.XMessage) ([]*model.Job, []string) {
	now := time.Now().UTC()
	jobs := make([]*model.Job, 0, len(messages))
	ids := make([]string, 0, len(messages))

	for _, msg := range messages {
		ids = append(ids, msg.ID)

		job, reason, err := decodeMessage(msg, now)
		if err != nil {
			w.deadLetter(ctx, msg, reason, err.Error())
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, ids
}

// decodeMessage returns the job carried by msg, or a dead-letter reason.
func decodeMessage(msg redis.XMessage, now time.Time) (*model.Job, string, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, "invalid_format", errors.New("payload field missing or not a string")
	}
	job, err := DecodeRecord([]byte(payload), now)
	if err != nil {
		return nil, "validation_error", err
	}
	return job, "", nil
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering poison message",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: maxDeadLetters,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  JobStreamKey,
			"reason":           reason,
			"detail":           detail,
			"payload":          fmt.Sprint(msg.Values["payload"]),
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream",
			"message_id", msg.ID,
			"error", err,
		)
	}

	w.metrics.IncIngestRecord("dead_lettered")
}

// importWithRetry imports jobs with exponential backoff between attempts.
func (w *Worker) importWithRetry(ctx context.Context, jobs []*model.Job) error {
	var lastErr error

	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		start := time.Now()
		res, err := w.importer.Import(ctx, jobs)
		if err == nil {
			w.logger.Info("batch imported",
				"jobs", res.Jobs,
				"filters", res.Filters,
				"duration_ms", float64(time.Since(start).Microseconds())/1000,
			)
			for range jobs {
				w.metrics.IncIngestRecord("imported")
			}
			return nil
		}

		lastErr = err
		if attempt == w.maxRetries {
			break
		}
		backoff := w.retryBackoff << attempt
		w.logger.Warn("batch import failed, retrying",
			"attempt", attempt,
			"backoff_seconds", backoff.Seconds(),
			"error", err,
		)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
	}

	for range jobs {
		w.metrics.IncIngestRecord("failed")
	}
	return lastErr
}

func (w *Worker) ackMessages(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, JobStreamKey, ConsumerGroup, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError reports a BUSYGROUP reply.
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
