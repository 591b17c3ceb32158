package session

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/renameio/v2"
)

// Summary is the user-visible outcome of one recording session. It is
// printed on normal stop and persisted as a JSON sidecar next to the
// recording, where the analyzer can pick up the exact overflow-drop
// count to report alongside its gap-based estimate.
type Summary struct {
	SessionID      string    `json:"session_id"`
	File           string    `json:"file"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	EventsReceived uint64    `json:"events_received"`
	FramesStored   uint64    `json:"frames_stored"`
	ChunksFlushed  uint64    `json:"chunks_flushed"`
	QueueDrops     uint64    `json:"queue_drops"`
	DecodeErrors   uint64    `json:"decode_errors"`
	Error          string    `json:"error,omitempty"`
}

// SummaryPath returns the sidecar path for a recording file.
func SummaryPath(recordingPath string) string {
	return recordingPath + ".summary.json"
}

// WriteSummary persists the summary atomically so a crash mid-write
// never leaves a half-written sidecar.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// LoadSummary reads a summary sidecar.
func LoadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}
