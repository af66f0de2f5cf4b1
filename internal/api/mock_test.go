package api

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Saranwich/longsorn/internal/db"
)

// MockQuerier is an in-memory Querier with per-method error injection.
type MockQuerier struct {
	mu     sync.Mutex
	videos map[uuid.UUID]db.Video

	CreateErr  error
	GetErr     error
	AdvanceErr error
}

func NewMockQuerier() *MockQuerier {
	return &MockQuerier{videos: make(map[uuid.UUID]db.Video)}
}

func (m *MockQuerier) AddVideo(v db.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[uuid.UUID(v.ID.Bytes)] = v
}

func (m *MockQuerier) Video(id uuid.UUID) (db.Video, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	return v, ok
}

func (m *MockQuerier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.videos)
}

func (m *MockQuerier) CreateVideo(_ context.Context, arg db.CreateVideoParams) (db.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return db.Video{}, m.CreateErr
	}
	v := db.Video{
		ID:               arg.ID,
		OwnerID:          arg.OwnerID,
		OriginalFilename: arg.OriginalFilename,
		SourceObjectKey:  arg.SourceObjectKey,
		Status:           arg.Status,
	}
	m.videos[uuid.UUID(arg.ID.Bytes)] = v
	return v, nil
}

func (m *MockQuerier) GetVideoForOwner(_ context.Context, arg db.GetVideoForOwnerParams) (db.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return db.Video{}, m.GetErr
	}
	v, ok := m.videos[uuid.UUID(arg.ID.Bytes)]
	if !ok || v.OwnerID != arg.OwnerID {
		return db.Video{}, db.ErrNotFound
	}
	return v, nil
}

func (m *MockQuerier) AdvanceVideoStatus(_ context.Context, arg db.AdvanceVideoStatusParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AdvanceErr != nil {
		return m.AdvanceErr
	}
	v, ok := m.videos[uuid.UUID(arg.ID.Bytes)]
	if !ok || v.Status != arg.From {
		return db.ErrStaleTransition
	}
	v.Status = arg.To
	m.videos[uuid.UUID(arg.ID.Bytes)] = v
	return nil
}

type EnqueuedJob struct {
	JobType string
	Payload interface{}
}

type MockBroker struct {
	mu   sync.Mutex
	jobs []EnqueuedJob

	EnqueueErr error
}

func NewMockBroker() *MockBroker {
	return &MockBroker{}
}

func (b *MockBroker) Enqueue(jobType string, payload interface{}) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.EnqueueErr != nil {
		return "", b.EnqueueErr
	}
	b.jobs = append(b.jobs, EnqueuedJob{JobType: jobType, Payload: payload})
	return uuid.New().String(), nil
}

func (b *MockBroker) Jobs() []EnqueuedJob {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]EnqueuedJob(nil), b.jobs...)
}
