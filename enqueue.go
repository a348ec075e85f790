package jobexpect

import "time"

// enqueueConfig holds options for enqueueing a job.
type enqueueConfig struct {
	scheduledAt *time.Time
	queue       string
}

// EnqueueOption configures job enqueueing.
type EnqueueOption func(*enqueueConfig)

// InQueue specifies which queue to use for the job.
// If not specified, the adapter's default queue is used.
//
// Example:
//
//	adapter.Enqueue(ctx, "send_email", args, jobexpect.InQueue("mailers"))
func InQueue(name string) EnqueueOption {
	return func(c *enqueueConfig) {
		if name != "" {
			c.queue = name
		}
	}
}

// ScheduledAt schedules the job to run at a specific time.
//
// Example:
//
//	tomorrow := time.Now().Add(24 * time.Hour)
//	adapter.Enqueue(ctx, "send_reminder", args, jobexpect.ScheduledAt(tomorrow))
func ScheduledAt(t time.Time) EnqueueOption {
	return func(c *enqueueConfig) {
		c.scheduledAt = &t
	}
}

// ScheduledIn schedules the job to run after a duration.
//
// Example:
//
//	adapter.Enqueue(ctx, "send_reminder", args, jobexpect.ScheduledIn(24*time.Hour))
func ScheduledIn(d time.Duration) EnqueueOption {
	return func(c *enqueueConfig) {
		t := time.Now().Add(d)
		c.scheduledAt = &t
	}
}
