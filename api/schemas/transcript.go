package schemas

import (
	"context"
	"time"
)

// Phase identifies the part of a cycle a transcript entry describes.
type Phase string

const (
	PhaseObserve Phase = "observe"
	PhaseDecide  Phase = "decide"
	PhaseAct     Phase = "act"
	PhaseFinish  Phase = "finish"
	PhaseError   Phase = "error"
)

// TranscriptEntry is one record of the append-only run transcript.
type TranscriptEntry struct {
	RunID          string    `json:"run_id"`
	Step           int       `json:"step"`
	Phase          Phase     `json:"phase"`
	Timestamp      time.Time `json:"timestamp"`
	ObservationRef string    `json:"observation_ref,omitempty"` // Artifact path or content fingerprint of the observation.
	Thought        string    `json:"thought,omitempty"`
	Action         *Intent   `json:"action,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
	ErrorCode      string    `json:"error_code,omitempty"`
}

// Recorder persists transcript entries. Implementations must tolerate being
// called once per phase of every cycle.
type Recorder interface {
	Record(ctx context.Context, entry TranscriptEntry) error
	Close() error
}
