package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	"github.com/CoderLord25/ZenSocial/internal/logger"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// errSelfInteraction marks events where the actor owns the post.
var errSelfInteraction = errors.New("actor owns the post")

// Worker consumes interaction events and writes notifications for post owners.
type Worker struct {
	store        store.StoreInterface
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(store store.StoreInterface, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        store,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", fmt.Sprintf("Starting %d workers with queue size %d", w.workerCount, w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
			logg.Error("worker", "Kafka read error, backing off", err)
			if !waitWithContext(ctx, backoff) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			if !waitWithContext(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}

		select {
		case jobs <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// processLoop drains jobs until the channel is closed. Jobs already queued
// when ctx is cancelled are still handled.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for msg := range jobs {
		err := w.Handle(context.WithoutCancel(ctx), msg)
		switch {
		case errors.Is(err, errSelfInteraction):
		case err != nil:
			logg.Error("worker", "Failed to handle interaction event", err)
		default:
			logg.Info("worker", "Notification delivered (ids anonymized)")
		}
	}
}

// Handle turns one interaction event into a notification for the post owner.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	ev, err := appkafka.DecodeEvent(msg)
	if err != nil {
		return err
	}
	if ev.ActorID == ev.PostOwnerID {
		return errSelfInteraction
	}

	created := ev.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return w.store.AddNotification(ctx, models.Notification{
		UserID:    ev.PostOwnerID,
		ActorID:   ev.ActorZenID,
		Kind:      ev.NotificationKind(),
		PostID:    ev.PostID,
		CreatedAt: created,
	})
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing store")
	w.store.Close()
	return nil
}
