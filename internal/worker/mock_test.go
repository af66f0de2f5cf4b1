package worker

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/media"
)

type completedExtraction struct {
	VideoID  pgtype.UUID
	AudioKey string
	JobType  string
	Payload  []byte
}

// MockStore is an in-memory VideoStore with per-method error injection.
type MockStore struct {
	mu sync.Mutex

	videos       map[uuid.UUID]db.Video
	statusWrites []db.VideoStatus
	completions  []completedExtraction

	GetErr      error
	SetErr      error
	CompleteErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		videos: make(map[uuid.UUID]db.Video),
	}
}

func (m *MockStore) AddVideo(v db.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[uuid.UUID(v.ID.Bytes)] = v
}

func (m *MockStore) GetVideo(_ context.Context, id pgtype.UUID) (db.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return db.Video{}, m.GetErr
	}
	v, ok := m.videos[uuid.UUID(id.Bytes)]
	if !ok {
		return db.Video{}, db.ErrNotFound
	}
	return v, nil
}

func (m *MockStore) SetVideoStatus(_ context.Context, id pgtype.UUID, status db.VideoStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	v, ok := m.videos[uuid.UUID(id.Bytes)]
	if !ok {
		return db.ErrNotFound
	}
	v.Status = status
	m.videos[uuid.UUID(id.Bytes)] = v
	m.statusWrites = append(m.statusWrites, status)
	return nil
}

func (m *MockStore) CompleteExtraction(_ context.Context, videoID pgtype.UUID, audioKey, jobType string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	v, ok := m.videos[uuid.UUID(videoID.Bytes)]
	if !ok {
		return db.ErrNotFound
	}
	v.Status = db.VideoStatusPendingAnalysis
	v.AudioObjectKey = &audioKey
	m.videos[uuid.UUID(videoID.Bytes)] = v
	m.completions = append(m.completions, completedExtraction{
		VideoID:  videoID,
		AudioKey: audioKey,
		JobType:  jobType,
		Payload:  data,
	})
	return nil
}

func (m *MockStore) Video(id uuid.UUID) (db.Video, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	return v, ok
}

func (m *MockStore) StatusWrites() []db.VideoStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.VideoStatus(nil), m.statusWrites...)
}

func (m *MockStore) Completions() []completedExtraction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]completedExtraction(nil), m.completions...)
}

// fakeExtractor stands in for ffmpeg. ExtractAudio writes a small file so
// the upload path sees real bytes.
type fakeExtractor struct {
	ProbeResult *media.ProbeResult
	ProbeErr    error
	ExtractErr  error
	AudioData   []byte
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		ProbeResult: &media.ProbeResult{
			Duration:    12.5,
			FormatName:  "mov,mp4,m4a",
			HasAudio:    true,
			HasVideo:    true,
			AudioCodec:  "aac",
			StreamCount: 2,
		},
		AudioData: []byte("fake aac audio"),
	}
}

func (f *fakeExtractor) Probe(_ context.Context, _ string) (*media.ProbeResult, error) {
	if f.ProbeErr != nil {
		return nil, f.ProbeErr
	}
	return f.ProbeResult, nil
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, _, outputPath string) error {
	if f.ExtractErr != nil {
		return f.ExtractErr
	}
	return os.WriteFile(outputPath, f.AudioData, 0o644)
}
