package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/logger"
)

type mockStore struct {
	messages []db.OutboxMessage
	sent     map[int64]bool

	ListErr error
	MarkErr error
}

func newMockStore(messages ...db.OutboxMessage) *mockStore {
	return &mockStore{messages: messages, sent: make(map[int64]bool)}
}

func (m *mockStore) ListUnsentOutboxMessages(_ context.Context, limit int32) ([]db.OutboxMessage, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var unsent []db.OutboxMessage
	for _, msg := range m.messages {
		if !m.sent[msg.ID] {
			unsent = append(unsent, msg)
		}
		if int32(len(unsent)) == limit {
			break
		}
	}
	return unsent, nil
}

func (m *mockStore) MarkOutboxMessageSent(_ context.Context, id int64) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.sent[id] = true
	return nil
}

type publishedJob struct {
	JobType string
	Payload []byte
}

type mockBroker struct {
	published []publishedJob
	FailAfter int
	Err       error
}

func (b *mockBroker) Enqueue(jobType string, payload interface{}) (string, error) {
	if b.Err != nil && len(b.published) >= b.FailAfter {
		return "", b.Err
	}
	data, _ := payload.(json.RawMessage)
	b.published = append(b.published, publishedJob{JobType: jobType, Payload: data})
	return "queue-id", nil
}

func outboxMessage(id int64) db.OutboxMessage {
	return db.OutboxMessage{
		ID:      id,
		JobType: "ai_analysis",
		Payload: []byte(`{"video_id":"v","audio_object_key":"audio/v.m4a"}`),
	}
}

func TestDrainOncePublishesInOrder(t *testing.T) {
	store := newMockStore(outboxMessage(1), outboxMessage(2), outboxMessage(3))
	broker := &mockBroker{}
	relay := NewRelay(store, broker, time.Second, 10, logger.NewTestLogger())

	sent, err := relay.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("DrainOnce() error = %v", err)
	}
	if sent != 3 {
		t.Errorf("sent = %d, want 3", sent)
	}
	if len(broker.published) != 3 {
		t.Fatalf("published = %d, want 3", len(broker.published))
	}
	for id := int64(1); id <= 3; id++ {
		if !store.sent[id] {
			t.Errorf("message %d not marked sent", id)
		}
	}
}

func TestDrainOnceStopsOnBrokerError(t *testing.T) {
	store := newMockStore(outboxMessage(1), outboxMessage(2), outboxMessage(3))
	broker := &mockBroker{FailAfter: 1, Err: errors.New("redis down")}
	relay := NewRelay(store, broker, time.Second, 10, logger.NewTestLogger())

	sent, err := relay.DrainOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if store.sent[2] || store.sent[3] {
		t.Error("later messages must stay unsent after a failure")
	}
}

func TestDrainOnceRedeliversWhenMarkFails(t *testing.T) {
	store := newMockStore(outboxMessage(1))
	broker := &mockBroker{}
	relay := NewRelay(store, broker, time.Second, 10, logger.NewTestLogger())

	store.MarkErr = errors.New("db down")
	if _, err := relay.DrainOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	store.MarkErr = nil
	sent, err := relay.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("DrainOnce() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	// The broker saw the job twice; consumers must tolerate duplicates.
	if len(broker.published) != 2 {
		t.Errorf("published = %d, want 2", len(broker.published))
	}
}

func TestDrainOnceRespectsBatchSize(t *testing.T) {
	store := newMockStore(outboxMessage(1), outboxMessage(2), outboxMessage(3))
	broker := &mockBroker{}
	relay := NewRelay(store, broker, time.Second, 2, logger.NewTestLogger())

	sent, err := relay.DrainOnce(context.Background())
	if err != nil {
		t.Fatalf("DrainOnce() error = %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := newMockStore()
	relay := NewRelay(store, &mockBroker{}, 5*time.Millisecond, 10, logger.NewTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := relay.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
}
