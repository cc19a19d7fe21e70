package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/tierboard/internal/adapters/mq/queue"
	"github.com/okian/tierboard/internal/adapters/mq/worker"
	"github.com/okian/tierboard/internal/adapters/repository"
	"github.com/okian/tierboard/internal/domain/model"
	"github.com/okian/tierboard/internal/domain/scoring"
	"github.com/okian/tierboard/internal/domain/types"
	logging "github.com/okian/tierboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logging.Init(logging.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

type mockQueue struct {
	ch chan queue.Message
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan queue.Message, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Message { return mq.ch }

type mockRecorder struct {
	mu       sync.Mutex
	received []types.CheckinInput
	errs     map[string]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{errs: make(map[string]error)}
}

func (r *mockRecorder) RecordCheckin(_ context.Context, in types.CheckinInput) (model.Checkin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[in.Name]; ok {
		return model.Checkin{}, err
	}
	r.received = append(r.received, in)
	return model.Checkin{Name: in.Name, Tier: "T2"}, nil
}

func (r *mockRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

func TestInMemoryWorker_Process(t *testing.T) {
	convey.Convey("Given a worker over a recorder", t, func() {
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(newMockQueue(), rec, worker.WithName("test-worker"))
		ctx := context.Background()
		at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

		convey.Convey("When a message is recorded", func() {
			err := w.Process(ctx, model.Message{ID: "m1", From: "Alice", Body: "t2 intervals", ReceivedAt: at})

			convey.Convey("Then the body becomes the note and receipt the time", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.received, convey.ShouldHaveLength, 1)
				convey.So(rec.received[0], convey.ShouldResemble, types.CheckinInput{Name: "Alice", Note: "t2 intervals", Time: at})
			})
		})

		convey.Convey("When the recorder reports a duplicate", func() {
			rec.errs["Alice"] = fmt.Errorf("replay: %w", repository.ErrDuplicate)
			convey.So(w.Process(ctx, model.Message{ID: "m1", From: "Alice", Body: "T2"}), convey.ShouldBeNil)
		})

		convey.Convey("When the message has no tier or an unknown sender", func() {
			rec.errs["Bob"] = &scoring.InvalidTierError{Label: "rest"}
			rec.errs["Mallory"] = fmt.Errorf("challenger: %w", repository.ErrNotFound)
			convey.So(w.Process(ctx, model.Message{ID: "m2", From: "Bob", Body: "rest"}), convey.ShouldBeNil)
			convey.So(w.Process(ctx, model.Message{ID: "m3", From: "Mallory", Body: "T1"}), convey.ShouldBeNil)
		})

		convey.Convey("When the store fails", func() {
			rec.errs["Alice"] = errors.New("database is locked")
			err := w.Process(ctx, model.Message{ID: "m4", From: "Alice", Body: "T2"})

			convey.Convey("Then the failure is returned with the message id", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "m4")
			})
		})
	})
}

func TestInMemoryWorker_Run(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		rec := newMockRecorder()
		w := worker.NewInMemoryWorker(q, rec)
		ctx := context.Background()
		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()

		convey.Convey("When messages arrive and the queue closes", func() {
			q.ch <- model.Message{ID: "1", From: "Alice", Body: "T1"}
			q.ch <- model.Message{ID: "2", From: "Bob", Body: "T3"}
			close(q.ch)

			convey.Convey("Then both are processed and the worker exits", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not exit")
				}
				convey.So(rec.count(), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			convey.Convey("Then it stops promptly", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		rec := newMockRecorder()
		pool := worker.NewPool(4, q, rec)
		ctx := context.Background()

		convey.Convey("When created with a non-positive count", func() {
			convey.So(worker.NewPool(0, q, rec).Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When many messages are queued and the pool shuts down", func() {
			pool.Start(ctx)
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, model.Message{ID: fmt.Sprint(i), From: fmt.Sprintf("p%d", i), Body: "T2"}), convey.ShouldBeTrue)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued message was recorded first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.count(), convey.ShouldEqual, 200)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given worker options", t, func() {
		custom := logging.New(io.Discard)
		w := worker.NewInMemoryWorker(newMockQueue(), newMockRecorder(), worker.WithName(""), worker.WithLogger(custom))
		convey.So(w, convey.ShouldNotBeNil)
	})
}
