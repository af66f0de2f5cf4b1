package worker

import (
	"github.com/google/uuid"
)

const (
	// JobTypeExtractAudio is consumed by this worker.
	JobTypeExtractAudio = "extract_audio"
	// JobTypeAnalysis is produced for the downstream analysis service.
	JobTypeAnalysis = "ai_analysis"
)

// Broker enqueues a job and returns its queue-assigned ID.
type Broker interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

type ExtractAudioPayload struct {
	VideoID         uuid.UUID `json:"video_id"`
	SourceObjectKey string    `json:"source_object_key"`
}

func NewExtractAudioPayload(videoID uuid.UUID, sourceKey string) ExtractAudioPayload {
	return ExtractAudioPayload{
		VideoID:         videoID,
		SourceObjectKey: sourceKey,
	}
}

// AnalysisPayload is the contract with the analysis consumer. Field names
// are part of the wire format; the consumer is not in this repo.
type AnalysisPayload struct {
	VideoID        uuid.UUID `json:"video_id"`
	AudioObjectKey string    `json:"audio_object_key"`
}

func NewAnalysisPayload(videoID uuid.UUID, audioKey string) AnalysisPayload {
	return AnalysisPayload{
		VideoID:        videoID,
		AudioObjectKey: audioKey,
	}
}
