// Package jobexpect provides gomega-compatible expectation matchers for
// background-job activity, together with the in-memory recording adapter
// the matchers inspect.
//
// The library supports:
//   - HaveEnqueuedJob / HavePerformedJob matchers with chainable filters
//     (job type, positional arguments, queue, scheduled time, count)
//   - Custom argument predicates whose inner assertion failures become the
//     expectation's own failure message
//   - A recording TestAdapter capturing every enqueue and perform event
//   - A handler registry that executes recorded jobs synchronously
//   - Block tracing, so expectations can be scoped to the jobs recorded
//     while a traced action ran
//   - Reference-typed arguments resolved back to their original values
//     before comparison
//
// Example usage:
//
//	adapter := jobexpect.NewTestAdapter()
//	_, _ = adapter.Enqueue(ctx, "HelloJob", []any{42, "David"})
//
//	Expect(adapter).To(jobexpect.HaveEnqueuedJob("HelloJob").With(42, "David"))
//
//	trace := jobexpect.Traced(adapter, func() {
//	    _, _ = adapter.Enqueue(ctx, "MailJob", nil, jobexpect.InQueue("mailers"))
//	})
//	Expect(trace).To(jobexpect.HaveEnqueuedJob("MailJob").OnQueue("mailers"))
package jobexpect

import (
	"time"
)

// DefaultQueueName is the queue assigned to jobs enqueued without an
// explicit queue when no other default is configured.
const DefaultQueueName = "default"

// JobRecord represents one captured job event.
type JobRecord struct {
	ID           string     // Unique record identifier
	JobType      string     // Job type identifier
	Arguments    []any      // Deserialized job arguments, in enqueue order
	QueueName    string     // Queue the job was enqueued on
	ScheduledAt  *time.Time // When the job should run (nil means as soon as possible)
	EnqueuedAt   time.Time  // When the job was recorded
	PerformedAt  *time.Time // When the job was executed (nil for enqueued records)
	ErrorMessage string     // Error message if execution failed
}

// countMode selects how an observed count is compared against the expected one.
type countMode int

const (
	countExactly countMode = iota
	countAtLeast
	countAtMost
)

// countSpec is the count policy of one expectation. Matchers default to
// {countExactly, 1}.
type countSpec struct {
	mode countMode
	n    int
}

func (c countSpec) satisfied(observed int) bool {
	switch c.mode {
	case countAtLeast:
		return observed >= c.n
	case countAtMost:
		return observed <= c.n
	default:
		return observed == c.n
	}
}

func (c countSpec) phrase() string {
	switch c.mode {
	case countAtLeast:
		return "at least"
	case countAtMost:
		return "at most"
	default:
		return "exactly"
	}
}
