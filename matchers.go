package jobexpect

import (
	"fmt"
	"strings"
	"time"

	"github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
)

// matcherMode selects which recorded sequence an expectation inspects.
type matcherMode int

const (
	modeEnqueued matcherMode = iota
	modePerformed
)

func (m matcherMode) verb() string {
	if m == modePerformed {
		return "perform"
	}
	return "enqueue"
}

func (m matcherMode) past() string {
	if m == modePerformed {
		return "performed"
	}
	return "enqueued"
}

func (m matcherMode) header() string {
	if m == modePerformed {
		return "Performed jobs:"
	}
	return "Queued jobs:"
}

// ArgsBlock is a custom argument predicate. It receives a gomega scoped to
// the surrounding expectation and the deserialized arguments of one matching
// record; a failed assertion inside the block becomes the expectation's own
// failure message, verbatim.
type ArgsBlock func(g gomega.Gomega, args []any)

// JobMatcher is a gomega matcher over recorded job activity. Configure it
// with the chainable methods; each returns an updated copy, so partially
// built matchers can be shared between tests without leaking state.
//
// The subject of the expectation is either a Recorder (the full current
// record list is inspected) or a *Trace (only the records captured during
// the traced block are inspected).
type JobMatcher struct {
	mode     matcherMode
	jobType  string
	hasType  bool
	args     []any
	hasArgs  bool
	block    ArgsBlock
	queue    string
	hasQueue bool
	at       *time.Time
	count    countSpec
	badUsage error

	// evaluation state, populated by Match
	matched      int
	inspected    []*JobRecord
	innerFailure string
}

// HaveEnqueuedJob succeeds if the expected number of matching jobs were
// enqueued. With no argument any job type matches; with one argument only
// jobs of that type are considered.
func HaveEnqueuedJob(jobType ...string) *JobMatcher {
	return newJobMatcher(modeEnqueued, jobType)
}

// HavePerformedJob succeeds if the expected number of matching jobs were
// performed. With no argument any job type matches; with one argument only
// jobs of that type are considered.
func HavePerformedJob(jobType ...string) *JobMatcher {
	return newJobMatcher(modePerformed, jobType)
}

func newJobMatcher(mode matcherMode, jobType []string) *JobMatcher {
	m := &JobMatcher{
		mode:  mode,
		count: countSpec{mode: countExactly, n: 1},
	}
	switch len(jobType) {
	case 0:
	case 1:
		m.jobType = jobType[0]
		m.hasType = true
	default:
		m.badUsage = fmt.Errorf("%w: at most one job type may be given, got %d", ErrUsage, len(jobType))
	}
	return m
}

func (m *JobMatcher) clone() *JobMatcher {
	clone := *m
	clone.args = append([]any(nil), m.args...)
	return &clone
}

// With restricts matching to jobs whose arguments compare positionally equal
// to the given values. A value may itself be a gomega matcher, in which case
// the argument at that position must satisfy it.
func (m *JobMatcher) With(args ...any) *JobMatcher {
	clone := m.clone()
	clone.args = args
	clone.hasArgs = true
	return clone
}

// WithBlock restricts matching with a custom argument predicate. The block
// runs once per record that passed every other filter, and never when no
// record did. Mutually exclusive with With.
func (m *JobMatcher) WithBlock(block ArgsBlock) *JobMatcher {
	clone := m.clone()
	clone.block = block
	return clone
}

// OnQueue restricts matching to jobs enqueued on the named queue.
func (m *JobMatcher) OnQueue(name string) *JobMatcher {
	clone := m.clone()
	clone.queue = name
	clone.hasQueue = true
	return clone
}

// At restricts matching to jobs scheduled to run at exactly t.
func (m *JobMatcher) At(t time.Time) *JobMatcher {
	clone := m.clone()
	clone.at = &t
	return clone
}

// Exactly requires exactly n matching jobs. The default is Exactly(1).
func (m *JobMatcher) Exactly(n int) *JobMatcher {
	clone := m.clone()
	clone.count = countSpec{mode: countExactly, n: n}
	return clone
}

// AtLeast requires at least n matching jobs.
func (m *JobMatcher) AtLeast(n int) *JobMatcher {
	clone := m.clone()
	clone.count = countSpec{mode: countAtLeast, n: n}
	return clone
}

// AtMost requires at most n matching jobs.
func (m *JobMatcher) AtMost(n int) *JobMatcher {
	clone := m.clone()
	clone.count = countSpec{mode: countAtMost, n: n}
	return clone
}

// Once is shorthand for Exactly(1).
func (m *JobMatcher) Once() *JobMatcher { return m.Exactly(1) }

// Twice is shorthand for Exactly(2).
func (m *JobMatcher) Twice() *JobMatcher { return m.Exactly(2) }

// Thrice is shorthand for Exactly(3).
func (m *JobMatcher) Thrice() *JobMatcher { return m.Exactly(3) }

// Match evaluates the expectation against a Recorder or *Trace subject.
// Usage and configuration problems are returned as errors, distinct from a
// failed expectation.
func (m *JobMatcher) Match(actual any) (bool, error) {
	// A matcher may be evaluated repeatedly (Eventually, shared builders);
	// every evaluation starts from a clean slate.
	m.matched = 0
	m.inspected = nil
	m.innerFailure = ""

	if m.badUsage != nil {
		return false, m.badUsage
	}
	if m.hasArgs && m.block != nil {
		return false, fmt.Errorf("%w: With and WithBlock are mutually exclusive", ErrUsage)
	}

	records, err := m.candidates(actual)
	if err != nil {
		return false, err
	}
	m.inspected = records

	matchedRecords := make([]*JobRecord, 0, len(records))
	for _, rec := range records {
		if m.hasType && rec.JobType != m.jobType {
			continue
		}
		if m.hasQueue && rec.QueueName != m.queue {
			continue
		}
		if m.at != nil && (rec.ScheduledAt == nil || !rec.ScheduledAt.Equal(*m.at)) {
			continue
		}
		if m.hasArgs && !argumentsMatch(m.args, rec.Arguments) {
			continue
		}
		matchedRecords = append(matchedRecords, rec)
	}
	m.matched = len(matchedRecords)

	if m.block != nil {
		for _, rec := range matchedRecords {
			if failure, ok := runArgsBlock(m.block, rec.Arguments); !ok {
				m.innerFailure = failure
				return false, nil
			}
		}
	}

	return m.count.satisfied(m.matched), nil
}

// FailureMessage reports a failed positive expectation. An inner assertion
// failure from a WithBlock predicate is propagated verbatim.
func (m *JobMatcher) FailureMessage(actual any) string {
	if m.innerFailure != "" {
		return m.innerFailure
	}
	return m.message(false)
}

// NegatedFailureMessage reports a failed negated expectation.
func (m *JobMatcher) NegatedFailureMessage(actual any) string {
	return m.message(true)
}

// candidates resolves the subject into the record list to filter.
func (m *JobMatcher) candidates(actual any) ([]*JobRecord, error) {
	if isTypedNil(actual) {
		return nil, fmt.Errorf("%w: subject is nil (%T)", ErrUsage, actual)
	}
	switch subject := actual.(type) {
	case *Trace:
		if subject.err != nil {
			return nil, subject.err
		}
		if m.mode == modePerformed {
			return subject.performedDelta, nil
		}
		return subject.enqueuedDelta, nil
	case Recorder:
		if m.mode == modePerformed {
			return subject.PerformedJobs()
		}
		return subject.EnqueuedJobs()
	case Adapter:
		return nil, ErrNotRecording
	default:
		return nil, fmt.Errorf("%w: subject must be a jobexpect.Recorder or *jobexpect.Trace, got %T", ErrUsage, actual)
	}
}

func (m *JobMatcher) message(negated bool) string {
	var b strings.Builder
	b.WriteString("expected ")
	if negated {
		b.WriteString("not ")
	}
	fmt.Fprintf(&b, "to %s %s %d jobs", m.mode.verb(), m.count.phrase(), m.count.n)
	if m.hasArgs {
		fmt.Fprintf(&b, ", with %s", formatArguments(m.args))
	}
	if m.hasQueue {
		fmt.Fprintf(&b, ", on queue %s", m.queue)
	}
	if m.at != nil {
		fmt.Fprintf(&b, ", at %s", m.at.Format(time.RFC3339))
	}
	fmt.Fprintf(&b, ", but %s %d", m.mode.past(), m.matched)
	if len(m.inspected) > 0 {
		fmt.Fprintf(&b, "\n\n%s\n", m.mode.header())
		for _, rec := range m.inspected {
			fmt.Fprintf(&b, "  %s job with %s, on queue %s\n", rec.JobType, formatArguments(rec.Arguments), rec.QueueName)
		}
	}
	return b.String()
}

func formatArguments(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprintf("%v", arg)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// argumentsMatch compares recorded arguments positionally against expected
// values and matchers. Arity must match.
func argumentsMatch(expected, actual []any) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i, want := range expected {
		if !argumentMatches(want, actual[i]) {
			return false
		}
	}
	return true
}

func argumentMatches(want, got any) bool {
	if matcher, ok := want.(types.GomegaMatcher); ok {
		ok, err := matcher.Match(got)
		return err == nil && ok
	}
	if want == nil || got == nil {
		return want == nil && got == nil
	}
	// Recorded values come back from the serialization boundary, so numeric
	// types are coerced before comparison.
	ok, err := gomega.BeEquivalentTo(want).Match(got)
	return err == nil && ok
}

// innerFailurePanic aborts an ArgsBlock at its first failed assertion.
type innerFailurePanic struct {
	message string
}

// runArgsBlock executes a custom argument predicate, capturing the first
// failed assertion instead of failing the surrounding test directly.
func runArgsBlock(block ArgsBlock, args []any) (failure string, ok bool) {
	captured := ""
	g := gomega.NewGomega(func(message string, callerSkip ...int) {
		captured = message
		panic(innerFailurePanic{message: message})
	})

	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, expected := r.(innerFailurePanic); !expected {
					panic(r)
				}
			}
		}()
		block(g, args)
	}()

	if captured != "" {
		return captured, false
	}
	return "", true
}
