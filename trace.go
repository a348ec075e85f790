package jobexpect

import (
	"context"
	"fmt"
	"reflect"
)

// Trace captures the job activity recorded while one traced block ran.
// Construct it with Traced or TracedPerform and pass it as the subject of a
// gomega expectation:
//
//	Expect(jobexpect.Traced(adapter, func() {
//	    service.SignUp(ctx, user)
//	})).To(jobexpect.HaveEnqueuedJob("WelcomeJob"))
//
// Several matchers may evaluate the same Trace; each filters the captured
// delta independently.
type Trace struct {
	enqueuedDelta  []*JobRecord
	performedDelta []*JobRecord
	err            error
}

// Traced runs block and snapshots the jobs recorded while it ran. The
// adapter must be a Recorder; a nil block is a usage error. Both conditions
// are reported when a matcher evaluates the Trace, before any filtering.
func Traced(a Adapter, block func()) *Trace {
	if isTypedNil(a) {
		return &Trace{err: fmt.Errorf("%w: nil adapter (%T)", ErrUsage, a)}
	}
	recorder, ok := a.(Recorder)
	if !ok {
		return &Trace{err: ErrNotRecording}
	}
	if block == nil {
		return &Trace{err: fmt.Errorf("%w: Traced requires a non-nil block", ErrUsage)}
	}

	enqueuedBefore, err := recorder.EnqueuedJobs()
	if err != nil {
		return &Trace{err: err}
	}
	performedBefore, err := recorder.PerformedJobs()
	if err != nil {
		return &Trace{err: err}
	}

	block()

	enqueuedAfter, err := recorder.EnqueuedJobs()
	if err != nil {
		return &Trace{err: err}
	}
	performedAfter, err := recorder.PerformedJobs()
	if err != nil {
		return &Trace{err: err}
	}

	return &Trace{
		enqueuedDelta:  delta(enqueuedAfter, len(enqueuedBefore)),
		performedDelta: delta(performedAfter, len(performedBefore)),
	}
}

// TracedPerform is Traced followed by executing the jobs enqueued during the
// block, so HavePerformedJob expectations see them. The adapter must also be
// a Performer. An execution error surfaces through the matcher, like a
// tracing error.
func TracedPerform(ctx context.Context, a Adapter, block func()) *Trace {
	if isTypedNil(a) {
		return &Trace{err: fmt.Errorf("%w: nil adapter (%T)", ErrUsage, a)}
	}
	performer, ok := a.(Performer)
	if !ok {
		return &Trace{err: ErrNotRecording}
	}
	if block == nil {
		return &Trace{err: fmt.Errorf("%w: TracedPerform requires a non-nil block", ErrUsage)}
	}

	var performErr error
	trace := Traced(a, func() {
		block()
		_, performErr = performer.PerformEnqueuedJobs(ctx)
	})
	if trace.err == nil && performErr != nil {
		trace.err = performErr
	}
	return trace
}

// delta returns the records appended after the before-count. Clearing the
// adapter inside the block resets the window to whatever remains.
func delta(after []*JobRecord, before int) []*JobRecord {
	if before > len(after) {
		before = len(after)
	}
	return after[before:]
}

// isTypedNil reports whether v is nil, including a nil pointer wrapped in a
// non-nil interface, which would slip past a plain type assertion.
func isTypedNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
