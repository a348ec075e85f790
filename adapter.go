package jobexpect

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Adapter is the queue surface application code enqueues jobs through.
type Adapter interface {
	// Enqueue records a job submission. args are serialized at the boundary;
	// readers observe the deserialized values.
	Enqueue(ctx context.Context, jobType string, args []any, opts ...EnqueueOption) (string, error)
}

// Recorder is the test-capable surface of an adapter: ordered, clearable
// sequences of enqueued and performed job records. Expectation matchers
// require their subject to be a Recorder.
type Recorder interface {
	Adapter

	// EnqueuedJobs returns all recorded enqueue events, in order.
	EnqueuedJobs() ([]*JobRecord, error)

	// PerformedJobs returns all recorded perform events, in order.
	PerformedJobs() ([]*JobRecord, error)

	// ClearEnqueuedJobs discards all enqueued records.
	ClearEnqueuedJobs()

	// ClearPerformedJobs discards all performed records.
	ClearPerformedJobs()

	// ClearAll discards all records.
	ClearAll()
}

// Performer executes previously enqueued jobs.
type Performer interface {
	// PerformEnqueuedJobs executes every enqueued job that has not been
	// performed yet and returns how many were executed.
	PerformEnqueuedJobs(ctx context.Context) (int, error)
}

// storedRecord is a captured job event before the deserialization boundary.
type storedRecord struct {
	id           string
	jobType      string
	payload      []byte // serialized arguments
	queueName    string
	scheduledAt  *time.Time
	enqueuedAt   time.Time
	performedAt  *time.Time
	errorMessage string
	executed     bool // claimed by a PerformEnqueuedJobs drain
}

// TestAdapter implements Adapter by recording every enqueue and perform
// event in memory. It uses a single mutex for thread-safety and is intended
// for tests.
type TestAdapter struct {
	mu           sync.RWMutex
	enqueued     []*storedRecord
	performed    []*storedRecord
	handlers     map[string]Handler
	codec        *argumentCodec
	defaultQueue string
	inline       bool
	logger       *slog.Logger
	now          func() time.Time
	closed       bool
}

// TestAdapterOption configures a TestAdapter.
type TestAdapterOption func(*TestAdapter)

// WithDefaultQueue overrides the queue assigned to jobs enqueued without an
// explicit queue.
func WithDefaultQueue(name string) TestAdapterOption {
	return func(a *TestAdapter) {
		if name != "" {
			a.defaultQueue = name
		}
	}
}

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) TestAdapterOption {
	return func(a *TestAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithResolver sets the resolver used to reconstruct reference-typed
// arguments when records are read.
func WithResolver(r Resolver) TestAdapterOption {
	return func(a *TestAdapter) {
		a.codec.resolver = r
	}
}

// WithInlinePerform makes the adapter execute each job immediately after
// recording its enqueue, so every enqueued job is also a performed one.
func WithInlinePerform() TestAdapterOption {
	return func(a *TestAdapter) {
		a.inline = true
	}
}

// WithClock overrides the adapter's time source.
func WithClock(now func() time.Time) TestAdapterOption {
	return func(a *TestAdapter) {
		if now != nil {
			a.now = now
		}
	}
}

// NewTestAdapter creates a recording test adapter. Defaults come from
// LoadConfig.
func NewTestAdapter(opts ...TestAdapterOption) *TestAdapter {
	cfg := LoadConfig()
	a := &TestAdapter{
		handlers:     make(map[string]Handler),
		codec:        &argumentCodec{},
		defaultQueue: cfg.DefaultQueue,
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close closes the adapter and prevents further operations.
func (a *TestAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return nil
}

// Enqueue records a job submission.
func (a *TestAdapter) Enqueue(ctx context.Context, jobType string, args []any, opts ...EnqueueOption) (string, error) {
	if _, err := normalizeContext(ctx); err != nil {
		return "", err
	}
	if jobType == "" {
		return "", fmt.Errorf("job type is required")
	}

	cfg := enqueueConfig{queue: a.defaultQueue}
	for _, opt := range opts {
		opt(&cfg)
	}

	payload, err := a.codec.encode(args)
	if err != nil {
		return "", err
	}

	record := &storedRecord{
		id:          uuid.NewString(),
		jobType:     jobType,
		payload:     payload,
		queueName:   cfg.queue,
		scheduledAt: copyTimePtr(cfg.scheduledAt),
		enqueuedAt:  a.now(),
	}

	a.mu.Lock()
	if err := a.ensureOpenLocked(); err != nil {
		a.mu.Unlock()
		return "", err
	}
	a.enqueued = append(a.enqueued, record)
	a.mu.Unlock()

	a.logger.Debug("Enqueue", "recordID", record.id, "jobType", jobType, "queue", cfg.queue, "scheduledAt", cfg.scheduledAt)

	if a.inline {
		if _, err := a.PerformEnqueuedJobs(ctx); err != nil {
			return record.id, err
		}
	}
	return record.id, nil
}

// EnqueuedJobs returns all recorded enqueue events, in order. Arguments are
// deserialized, so reference-typed arguments require a configured Resolver.
func (a *TestAdapter) EnqueuedJobs() ([]*JobRecord, error) {
	a.mu.RLock()
	stored := cloneStoredSlice(a.enqueued)
	a.mu.RUnlock()
	return a.materialize(stored)
}

// PerformedJobs returns all recorded perform events, in order.
func (a *TestAdapter) PerformedJobs() ([]*JobRecord, error) {
	a.mu.RLock()
	stored := cloneStoredSlice(a.performed)
	a.mu.RUnlock()
	return a.materialize(stored)
}

// ClearEnqueuedJobs discards all enqueued records.
func (a *TestAdapter) ClearEnqueuedJobs() {
	a.mu.Lock()
	a.enqueued = nil
	a.mu.Unlock()
	a.logger.Debug("ClearEnqueuedJobs")
}

// ClearPerformedJobs discards all performed records.
func (a *TestAdapter) ClearPerformedJobs() {
	a.mu.Lock()
	a.performed = nil
	a.mu.Unlock()
	a.logger.Debug("ClearPerformedJobs")
}

// ClearAll discards all records.
func (a *TestAdapter) ClearAll() {
	a.mu.Lock()
	a.enqueued = nil
	a.performed = nil
	a.mu.Unlock()
	a.logger.Debug("ClearAll")
}

// materialize converts stored records into JobRecords, crossing the
// deserialization boundary.
func (a *TestAdapter) materialize(stored []*storedRecord) ([]*JobRecord, error) {
	records := make([]*JobRecord, 0, len(stored))
	for _, rec := range stored {
		args, err := a.codec.decode(rec.payload)
		if err != nil {
			return nil, err
		}
		records = append(records, &JobRecord{
			ID:           rec.id,
			JobType:      rec.jobType,
			Arguments:    args,
			QueueName:    rec.queueName,
			ScheduledAt:  copyTimePtr(rec.scheduledAt),
			EnqueuedAt:   rec.enqueuedAt,
			PerformedAt:  copyTimePtr(rec.performedAt),
			ErrorMessage: rec.errorMessage,
		})
	}
	return records, nil
}

func (a *TestAdapter) ensureOpenLocked() error {
	if a.closed {
		return ErrClosed
	}
	return nil
}

// Helper functions

func normalizeContext(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func cloneStored(rec *storedRecord) *storedRecord {
	if rec == nil {
		return nil
	}
	clone := *rec
	clone.payload = copyBytes(rec.payload)
	clone.scheduledAt = copyTimePtr(rec.scheduledAt)
	clone.performedAt = copyTimePtr(rec.performedAt)
	return &clone
}

func cloneStoredSlice(src []*storedRecord) []*storedRecord {
	dst := make([]*storedRecord, 0, len(src))
	for _, rec := range src {
		dst = append(dst, cloneStored(rec))
	}
	return dst
}

func copyBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	val := *t
	return &val
}
