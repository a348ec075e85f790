package jobexpect

import (
	"context"
	"fmt"
)

// Handler processes the deserialized arguments of one recorded job.
// If an error is returned, the performed record carries its message.
type Handler func(ctx context.Context, args []any) error

// Register registers the handler executed for jobs of the given type.
// Registering again replaces the previous handler.
func (a *TestAdapter) Register(jobType string, handler Handler) {
	a.mu.Lock()
	a.handlers[jobType] = handler
	a.mu.Unlock()
	a.logger.Debug("Register", "jobType", jobType)
}

// pendingJob pairs the shared stored record with the clone a drain works on,
// so a claim can be released if the record turns out not to be executable.
type pendingJob struct {
	shared *storedRecord
	clone  *storedRecord
}

// PerformEnqueuedJobs executes every enqueued job that has not been
// performed yet, synchronously and in enqueue order, appending one performed
// record per execution. Jobs enqueued by handlers during the drain are
// picked up by the next call.
//
// A job type without a registered handler produces no performed record and
// stays pending, so registering the handler and draining again executes it.
// A handler error produces a performed record with ErrorMessage set and the
// drain continues. The first error encountered is returned after the drain.
func (a *TestAdapter) PerformEnqueuedJobs(ctx context.Context) (int, error) {
	ctx, err := normalizeContext(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error

	// Claim executable records under the lock so a nested drain (inline
	// mode, handlers that enqueue) cannot run the same record twice.
	a.mu.Lock()
	if err := a.ensureOpenLocked(); err != nil {
		a.mu.Unlock()
		return 0, err
	}
	pending := make([]pendingJob, 0, len(a.enqueued))
	for _, rec := range a.enqueued {
		if rec.executed {
			continue
		}
		if _, ok := a.handlers[rec.jobType]; !ok {
			a.logger.Debug("PerformEnqueuedJobs: no handler", "recordID", rec.id, "jobType", rec.jobType)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrNoHandler, rec.jobType)
			}
			continue
		}
		rec.executed = true
		pending = append(pending, pendingJob{shared: rec, clone: cloneStored(rec)})
	}
	handlers := make(map[string]Handler, len(a.handlers))
	for jobType, handler := range a.handlers {
		handlers[jobType] = handler
	}
	a.mu.Unlock()

	performed := 0
	for _, job := range pending {
		rec := job.clone

		args, err := a.codec.decode(rec.payload)
		if err != nil {
			a.mu.Lock()
			job.shared.executed = false
			a.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		execErr := handlers[rec.jobType](ctx, args)
		now := a.now()
		rec.performedAt = &now
		if execErr != nil {
			rec.errorMessage = execErr.Error()
			if firstErr == nil {
				firstErr = execErr
			}
		}

		a.mu.Lock()
		a.performed = append(a.performed, rec)
		a.mu.Unlock()
		performed++

		a.logger.Debug("PerformEnqueuedJobs: executed", "recordID", rec.id, "jobType", rec.jobType, "error", execErr)
	}

	return performed, firstErr
}
