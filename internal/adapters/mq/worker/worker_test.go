package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/domain/model"
	logging "github.com/okian/tally/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recordingSink struct {
	name string
	err  error

	mu   sync.Mutex
	seen []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n.ID)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func notification(id string) model.Notification {
	return model.Notification{ID: id, Name: model.NotifyCheckpointUpdated, EventID: "e1", At: time.Now()}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with two sinks", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		ok := &recordingSink{name: "ok"}
		failing := &recordingSink{name: "failing", err: errors.New("boom")}
		w := worker.NewInMemoryWorker(q, []worker.Sink{ok, failing}, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a notification is queued", func() {
			convey.So(q.Enqueue(ctx, notification("n1")), convey.ShouldBeTrue)

			convey.Convey("Then every sink receives it even if one fails", func() {
				convey.So(waitFor(func() bool { return ok.count() == 1 && failing.count() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer shutdownCancel()

			convey.Convey("Then it stops gracefully", func() {
				convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of three workers", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(256))
		sink := &recordingSink{name: "sink"}
		pool := worker.NewPool(3, q, []worker.Sink{sink}, worker.WithDeliveryTimeout(time.Second))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When many notifications are queued and the pool shuts down", func() {
			for i := 0; i < 100; i++ {
				q.Enqueue(ctx, notification("n"))
			}
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the backlog is drained before workers exit", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sink.count(), convey.ShouldEqual, 100)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool created with a zero count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), nil)

		convey.Convey("Then it is created with default workers", func() {
			convey.So(pool, convey.ShouldNotBeNil)
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
		})
	})
}
