package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	appkafka "github.com/CoderLord25/ZenSocial/internal/broker"
	"github.com/CoderLord25/ZenSocial/internal/store"
	"github.com/segmentio/kafka-go"
)

// TestWorker_GracefulShutdown ensures that the worker:
// 1. Processes events from Kafka.
// 2. Writes notifications for post owners.
// 3. Shuts down gracefully when the context is canceled.
func TestWorker_GracefulShutdown(t *testing.T) {
	rec := &store.NotificationRecorder{}

	liked, _ := appkafka.InteractionEvent{Type: appkafka.PostLiked, PostID: 10, PostOwnerID: 1, ActorID: 2}.Encode()
	commented, _ := appkafka.InteractionEvent{Type: appkafka.PostCommented, PostID: 10, PostOwnerID: 1, ActorID: 2}.Encode()
	self, _ := appkafka.InteractionEvent{Type: appkafka.PostReposted, PostID: 10, PostOwnerID: 1, ActorID: 1}.Encode()

	mockKafka := &MockKafkaReader{
		Messages: []kafka.Message{liked, commented, self},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	worker := New(rec, mockKafka, 2, 4)

	go func() {
		worker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		if got := rec.Recorded(); len(got) != 2 {
			t.Fatalf("expected 2 notifications, got %+v", got)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("worker did not shutdown gracefully in time")
	}

	if err := worker.Close(); err != nil {
		t.Fatalf("worker Close() error: %v", err)
	}

	if !mockKafka.IsClosed() {
		t.Fatal("expected Kafka reader to be closed")
	}
}

// MockKafkaReader simulates a Kafka reader that idles once drained.
type MockKafkaReader struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Closed   bool
}

func (m *MockKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Messages) == 0 {
		time.Sleep(5 * time.Millisecond) // simulate idle wait
		return kafka.Message{}, nil
	}

	msg := m.Messages[0]
	m.Messages = m.Messages[1:]
	return msg, nil
}

func (m *MockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockKafkaReader) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
