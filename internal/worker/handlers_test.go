package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Saranwich/longsorn/internal/db"
	"github.com/Saranwich/longsorn/internal/objectkey"
	"github.com/Saranwich/longsorn/internal/storage"
)

func testVideo(t *testing.T, status db.VideoStatus) (db.Video, uuid.UUID) {
	t.Helper()
	videoID := uuid.New()
	ownerID := uuid.New()
	return db.Video{
		ID:               pgtype.UUID{Bytes: videoID, Valid: true},
		OwnerID:          pgtype.UUID{Bytes: ownerID, Valid: true},
		OriginalFilename: "lecture.mp4",
		SourceObjectKey:  objectkey.Source(ownerID, videoID, "lecture.mp4"),
		Status:           status,
	}, videoID
}

func testDeps(t *testing.T) (*Dependencies, *MockStore, *storage.MemoryStorage, *fakeExtractor) {
	t.Helper()
	store := NewMockStore()
	mem := storage.NewMemoryStorage()
	ext := newFakeExtractor()
	deps := &Dependencies{
		Store:      store,
		Storage:    mem,
		Extractor:  ext,
		ScratchDir: t.TempDir(),
	}
	return deps, store, mem, ext
}

func extractJob(t *testing.T, videoID uuid.UUID, sourceKey string) *job.Job {
	t.Helper()
	j, err := job.New(JobTypeExtractAudio, NewExtractAudioPayload(videoID, sourceKey))
	if err != nil {
		t.Fatalf("job.New() error = %v", err)
	}
	return j
}

func TestExtractAudioHandlerSuccess(t *testing.T) {
	deps, store, mem, _ := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("fake mp4 bytes"), "video/mp4")

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	got, ok := store.Video(videoID)
	if !ok {
		t.Fatal("video record gone")
	}
	if got.Status != db.VideoStatusPendingAnalysis {
		t.Errorf("status = %s, want %s", got.Status, db.VideoStatusPendingAnalysis)
	}
	wantKey := objectkey.Audio(videoID)
	if got.AudioObjectKey == nil || *got.AudioObjectKey != wantKey {
		t.Errorf("audio key = %v, want %s", got.AudioObjectKey, wantKey)
	}

	if data, ok := mem.GetData(wantKey); !ok || len(data) == 0 {
		t.Error("audio object missing from storage")
	}

	completions := store.Completions()
	if len(completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(completions))
	}
	if completions[0].JobType != JobTypeAnalysis {
		t.Errorf("downstream job type = %s, want %s", completions[0].JobType, JobTypeAnalysis)
	}
	var payload AnalysisPayload
	if err := json.Unmarshal(completions[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal downstream payload: %v", err)
	}
	if payload.VideoID != videoID || payload.AudioObjectKey != wantKey {
		t.Errorf("downstream payload = %+v", payload)
	}

	writes := store.StatusWrites()
	if len(writes) != 1 || writes[0] != db.VideoStatusProcessing {
		t.Errorf("status writes = %v, want [PROCESSING]", writes)
	}

	assertScratchClean(t, deps.ScratchDir, videoID)
}

func TestExtractAudioHandlerExtractFailure(t *testing.T) {
	deps, store, mem, ext := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("fake mp4 bytes"), "video/mp4")
	ext.ExtractErr = errors.New("moov atom not found")

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err == nil {
		t.Fatal("expected error")
	}

	got, _ := store.Video(videoID)
	if got.Status != db.VideoStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.AudioObjectKey != nil {
		t.Errorf("audio key should stay unset, got %q", *got.AudioObjectKey)
	}
	if len(store.Completions()) != 0 {
		t.Error("no downstream job should be recorded")
	}
	if _, ok := mem.GetData(objectkey.Audio(videoID)); ok {
		t.Error("no audio object should be uploaded")
	}
	assertScratchClean(t, deps.ScratchDir, videoID)
}

func TestExtractAudioHandlerNoAudioStream(t *testing.T) {
	deps, store, mem, ext := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("silent screencast"), "video/mp4")
	ext.ProbeResult.HasAudio = false

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err == nil {
		t.Fatal("expected error")
	}

	got, _ := store.Video(videoID)
	if got.Status != db.VideoStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if len(store.Completions()) != 0 {
		t.Error("no downstream job should be recorded")
	}
}

func TestExtractAudioHandlerSourceMissing(t *testing.T) {
	deps, store, _, _ := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	// nothing uploaded to storage

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err == nil {
		t.Fatal("expected error")
	}

	got, _ := store.Video(videoID)
	if got.Status != db.VideoStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	assertScratchClean(t, deps.ScratchDir, videoID)
}

func TestExtractAudioHandlerTransientDownloadError(t *testing.T) {
	deps, store, mem, _ := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("fake mp4 bytes"), "video/mp4")
	mem.DownloadErr = errors.New("connection reset by peer")

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err == nil {
		t.Fatal("expected error")
	}

	// A retryable failure must not push the record to FAILED; the queue
	// will run the job again.
	got, _ := store.Video(videoID)
	if got.Status != db.VideoStatusProcessing {
		t.Errorf("status = %s, want PROCESSING", got.Status)
	}
}

func TestExtractAudioHandlerRetriesExhausted(t *testing.T) {
	deps, store, mem, _ := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusUploaded)
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("fake mp4 bytes"), "video/mp4")
	mem.DownloadErr = errors.New("connection reset by peer")

	j := extractJob(t, videoID, video.SourceObjectKey)
	j.RetryCount = j.MaxRetries

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), j)
	if err == nil {
		t.Fatal("expected error")
	}

	// No queue retry is left behind this attempt, so the record must land
	// in a terminal state the polling client can see.
	got, _ := store.Video(videoID)
	if got.Status != db.VideoStatusFailed {
		t.Errorf("status = %s, want FAILED", got.Status)
	}
	if got.AudioObjectKey != nil {
		t.Error("audio key must stay unset")
	}
}

func TestExtractAudioHandlerRecordMissing(t *testing.T) {
	deps, store, _, _ := testDeps(t)
	videoID := uuid.New()

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, "users/x/videos/y/gone.mp4"))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(store.StatusWrites()) != 0 {
		t.Errorf("no status writes expected, got %v", store.StatusWrites())
	}
}

func TestExtractAudioHandlerReprocessOverwrites(t *testing.T) {
	deps, store, mem, _ := testDeps(t)
	video, videoID := testVideo(t, db.VideoStatusPendingAnalysis)
	staleKey := "audio/stale.m4a"
	video.AudioObjectKey = &staleKey
	store.AddVideo(video)
	mem.Put(video.SourceObjectKey, []byte("fake mp4 bytes"), "video/mp4")

	handler := ExtractAudioHandler(deps)
	err := handler(context.Background(), extractJob(t, videoID, video.SourceObjectKey))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	got, _ := store.Video(videoID)
	wantKey := objectkey.Audio(videoID)
	if got.AudioObjectKey == nil || *got.AudioObjectKey != wantKey {
		t.Errorf("audio key = %v, want %s (redelivery overwrites)", got.AudioObjectKey, wantKey)
	}
	if len(store.Completions()) != 1 {
		t.Errorf("completions = %d, want 1", len(store.Completions()))
	}
}

func assertScratchClean(t *testing.T, scratchDir string, videoID uuid.UUID) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(scratchDir, videoID.String())); !os.IsNotExist(err) {
		t.Errorf("scratch dir for %s not cleaned up", videoID)
	}
}
