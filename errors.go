package jobexpect

import "errors"

var (
	// ErrUsage indicates an expectation was invoked in a way incompatible
	// with its mode, e.g. block-style tracing without a block. Distinct from
	// a failed expectation.
	ErrUsage = errors.New("invalid job expectation usage")

	// ErrNotRecording indicates the adapter in use does not record job
	// activity, so there is nothing for an expectation to inspect.
	ErrNotRecording = errors.New(
		"the job queue adapter in use does not record job activity; " +
			"construct the adapter under test with jobexpect.NewTestAdapter " +
			"to assert on enqueued and performed jobs")

	// ErrClosed indicates the adapter was closed and rejects further operations.
	ErrClosed = errors.New("adapter is closed")

	// ErrNoHandler indicates a job was performed without a registered handler
	// for its job type.
	ErrNoHandler = errors.New("no handler registered for job type")

	// ErrUnresolvedReference indicates a reference-typed argument could not be
	// resolved back to a value during deserialization.
	ErrUnresolvedReference = errors.New("cannot resolve global ID reference")
)
