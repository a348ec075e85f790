package jobexpect_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/VsevolodSauta/jobexpect"
)

var _ = Describe("Performing enqueued jobs", func() {
	var (
		adapter *jobexpect.TestAdapter
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		adapter = jobexpect.NewTestAdapter(jobexpect.WithLogger(testLogger()))
	})

	Describe("PerformEnqueuedJobs", func() {
		It("should execute handlers with the deserialized arguments", func() {
			var seen []any
			adapter.Register("HelloJob", func(ctx context.Context, args []any) error {
				seen = args
				return nil
			})

			_, err := adapter.Enqueue(ctx, "HelloJob", []any{42, "David"})
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(Equal(1))
			Expect(seen).To(HaveLen(2))
			Expect(seen[0]).To(BeEquivalentTo(42))
			Expect(seen[1]).To(Equal("David"))
		})

		It("should execute in enqueue order and only once per record", func() {
			var order []string
			handler := func(name string) jobexpect.Handler {
				return func(ctx context.Context, args []any) error {
					order = append(order, name)
					return nil
				}
			}
			adapter.Register("AJob", handler("A"))
			adapter.Register("BJob", handler("B"))

			_, err := adapter.Enqueue(ctx, "AJob", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.Enqueue(ctx, "BJob", nil)
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(Equal(2))
			Expect(order).To(Equal([]string{"A", "B"}))

			// Nothing left to perform.
			performed, err = adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(BeZero())
		})

		It("should return an error for a missing handler", func() {
			_, err := adapter.Enqueue(ctx, "UnknownJob", nil)
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).To(MatchError(jobexpect.ErrNoHandler))
			Expect(performed).To(BeZero())

			records, err := adapter.PerformedJobs()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("should keep unhandled records pending until a handler is registered", func() {
			_, err := adapter.Enqueue(ctx, "LateJob", []any{7})
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).To(MatchError(jobexpect.ErrNoHandler))
			Expect(performed).To(BeZero())

			var seen []any
			adapter.Register("LateJob", func(ctx context.Context, args []any) error {
				seen = args
				return nil
			})

			performed, err = adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(Equal(1))
			Expect(seen).To(HaveLen(1))
			Expect(adapter).To(jobexpect.HavePerformedJob("LateJob").With(7))
		})

		It("should record handler errors and keep draining", func() {
			boom := errors.New("boom")
			adapter.Register("FailingJob", func(ctx context.Context, args []any) error { return boom })
			adapter.Register("FineJob", func(ctx context.Context, args []any) error { return nil })

			_, err := adapter.Enqueue(ctx, "FailingJob", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.Enqueue(ctx, "FineJob", nil)
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).To(MatchError(boom))
			Expect(performed).To(Equal(2))

			records, err := adapter.PerformedJobs()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ErrorMessage).To(Equal("boom"))
			Expect(records[1].ErrorMessage).To(BeEmpty())
		})

		It("should pick up jobs enqueued by handlers on the next call", func() {
			adapter.Register("ChildJob", func(ctx context.Context, args []any) error { return nil })
			adapter.Register("ParentJob", func(ctx context.Context, args []any) error {
				_, err := adapter.Enqueue(ctx, "ChildJob", nil)
				return err
			})

			_, err := adapter.Enqueue(ctx, "ParentJob", nil)
			Expect(err).NotTo(HaveOccurred())

			performed, err := adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(Equal(1))

			performed, err = adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(performed).To(Equal(1))

			Expect(adapter).To(jobexpect.HavePerformedJob("ParentJob"))
			Expect(adapter).To(jobexpect.HavePerformedJob("ChildJob"))
		})
	})

	Describe("inline mode", func() {
		It("should perform each job immediately on enqueue", func() {
			var calls atomic.Int32
			inline := jobexpect.NewTestAdapter(
				jobexpect.WithLogger(testLogger()),
				jobexpect.WithInlinePerform(),
			)
			inline.Register("HelloJob", func(ctx context.Context, args []any) error {
				calls.Add(1)
				return nil
			})

			_, err := inline.Enqueue(ctx, "HelloJob", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(inline).To(jobexpect.HaveEnqueuedJob("HelloJob"))
			Expect(inline).To(jobexpect.HavePerformedJob("HelloJob"))
		})
	})

	Describe("TracedPerform", func() {
		It("should perform the jobs enqueued during the block", func() {
			adapter.Register("HelloJob", func(ctx context.Context, args []any) error { return nil })

			trace := jobexpect.TracedPerform(ctx, adapter, func() {
				_, err := adapter.Enqueue(ctx, "HelloJob", []any{42})
				Expect(err).NotTo(HaveOccurred())
			})

			Expect(trace).To(jobexpect.HavePerformedJob("HelloJob").With(42))
			Expect(trace).To(jobexpect.HaveEnqueuedJob("HelloJob"))
		})

		It("should not see jobs performed before the block", func() {
			adapter.Register("HelloJob", func(ctx context.Context, args []any) error { return nil })

			_, err := adapter.Enqueue(ctx, "HelloJob", nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = adapter.PerformEnqueuedJobs(ctx)
			Expect(err).NotTo(HaveOccurred())

			trace := jobexpect.TracedPerform(ctx, adapter, func() {})
			Expect(trace).NotTo(jobexpect.HavePerformedJob("HelloJob"))
		})

		It("should surface handler errors through the matcher", func() {
			adapter.Register("FailingJob", func(ctx context.Context, args []any) error {
				return errors.New("boom")
			})

			trace := jobexpect.TracedPerform(ctx, adapter, func() {
				_, err := adapter.Enqueue(ctx, "FailingJob", nil)
				Expect(err).NotTo(HaveOccurred())
			})

			_, err := jobexpect.HavePerformedJob("FailingJob").Match(trace)
			Expect(err).To(MatchError(ContainSubstring("boom")))
		})

		It("should report a usage error for a nil block", func() {
			trace := jobexpect.TracedPerform(ctx, adapter, nil)
			_, err := jobexpect.HavePerformedJob().Match(trace)
			Expect(err).To(MatchError(jobexpect.ErrUsage))
		})
	})
})
