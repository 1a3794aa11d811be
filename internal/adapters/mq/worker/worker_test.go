package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/peloton/internal/adapters/mq/queue"
	worker "github.com/okian/peloton/internal/adapters/mq/worker"
	model "github.com/okian/peloton/internal/domain/model"
	logging "github.com/okian/peloton/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingHandler struct {
	mu      sync.Mutex
	handled []string
	calls   map[string]int
	fail    map[string]error
	failFor map[string]int
	seen    chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		calls:   make(map[string]int),
		fail:    make(map[string]error),
		failFor: make(map[string]int),
		seen:    make(chan string, 64),
	}
}

func (h *recordingHandler) Handle(_ context.Context, job model.Job) error {
	h.mu.Lock()
	h.calls[job.ID]++
	n := h.calls[job.ID]
	err := h.fail[job.ID]
	limit := h.failFor[job.ID]
	h.mu.Unlock()

	if err != nil && (limit == 0 || n <= limit) {
		if limit == 0 || n == limit {
			h.seen <- job.ID
		}
		return err
	}
	h.mu.Lock()
	h.handled = append(h.handled, job.ID)
	h.mu.Unlock()
	h.seen <- job.ID
	return nil
}

func (h *recordingHandler) callCount(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

func (h *recordingHandler) wait(n int) []string {
	var ids []string
	timeout := time.After(5 * time.Second)
	for len(ids) < n {
		select {
		case id := <-h.seen:
			ids = append(ids, id)
		case <-timeout:
			return ids
		}
	}
	return ids
}

func job(id string, kind model.JobKind) model.Job {
	return model.Job{ID: id, Kind: kind, Gameweek: 3}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		_ = logging.Init()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		h := newRecordingHandler()

		convey.Convey("When jobs are enqueued", func() {
			w := worker.NewInMemoryWorker(q, h, worker.WithName("w-test"))
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, job("a", model.JobRollover)), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, job("b", model.JobPricing)), convey.ShouldBeNil)

			convey.Convey("Then each is handled once in order", func() {
				convey.So(h.wait(2), convey.ShouldResemble, []string{"a", "b"})
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a job fails permanently", func() {
			h.fail["bad"] = model.ErrRuleViolation
			w := worker.NewInMemoryWorker(q, h, worker.WithRetry(3, time.Millisecond))
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, job("bad", model.JobPricing)), convey.ShouldBeNil)
			convey.So(q.Enqueue(ctx, job("good", model.JobPricing)), convey.ShouldBeNil)

			convey.Convey("Then it is not retried and the worker keeps going", func() {
				convey.So(h.wait(2), convey.ShouldResemble, []string{"bad", "good"})
				convey.So(h.callCount("bad"), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a job fails transiently twice", func() {
			h.fail["flaky"] = fmt.Errorf("db: %w", model.ErrTransientStorage)
			h.failFor["flaky"] = 2
			w := worker.NewInMemoryWorker(q, h, worker.WithRetry(3, time.Millisecond))
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, job("flaky", model.JobPricing)), convey.ShouldBeNil)

			convey.Convey("Then the third attempt succeeds", func() {
				convey.So(h.wait(2), convey.ShouldResemble, []string{"flaky", "flaky"})
				convey.So(h.callCount("flaky"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			w := worker.NewInMemoryWorker(q, h)
			go w.Run(ctx)

			convey.Convey("Then Shutdown returns and can be repeated", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a worker was never started", func() {
			w := worker.NewInMemoryWorker(q, h)
			short, stop := context.WithTimeout(ctx, 10*time.Millisecond)
			defer stop()

			convey.Convey("Then Shutdown times out", func() {
				err := w.Shutdown(short)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init()
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		var mu sync.Mutex
		count := 0
		handler := worker.HandlerFunc(func(context.Context, model.Job) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
		pool := worker.NewPool(3, q, handler)
		convey.So(pool.Size(), convey.ShouldEqual, 3)
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			convey.So(q.Enqueue(ctx, job(fmt.Sprintf("j%d", i), model.JobPricing)), convey.ShouldBeNil)
		}

		convey.Convey("When the pool shuts down", func() {
			deadline := time.Now().Add(5 * time.Second)
			for {
				mu.Lock()
				n := count
				mu.Unlock()
				if n == 20 || time.Now().After(deadline) {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			err := pool.Shutdown(ctx)

			convey.Convey("Then every job ran and the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				mu.Lock()
				convey.So(count, convey.ShouldEqual, 20)
				mu.Unlock()
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool size is invalid", func() {
			p := worker.NewPool(0, queue.NewInMemoryQueue(), handler)
			convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
