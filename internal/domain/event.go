package domain

import "time"

const (
	EventGenerationStarted  = "generation_started"
	EventGenerationComplete = "generation_complete"
	EventSnapshotUpdate     = "snapshot_update"
)

// ChangeEvent is the payload fanned out to subscribers.
type ChangeEvent struct {
	Type         string    `json:"type"`
	DurationMs   *int64    `json:"durationMs,omitempty"`
	IsGenerating *bool     `json:"isGenerating,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewGenerationStarted(now time.Time) *ChangeEvent {
	return &ChangeEvent{Type: EventGenerationStarted, Timestamp: now.UTC()}
}

func NewGenerationComplete(elapsed time.Duration, now time.Time) *ChangeEvent {
	ms := elapsed.Milliseconds()
	return &ChangeEvent{Type: EventGenerationComplete, DurationMs: &ms, Timestamp: now.UTC()}
}

func NewSnapshotUpdate(isGenerating bool, now time.Time) *ChangeEvent {
	g := isGenerating
	return &ChangeEvent{Type: EventSnapshotUpdate, IsGenerating: &g, Timestamp: now.UTC()}
}

// EventRecord is a ChangeEvent as kept in the event log.
type EventRecord struct {
	ID string `json:"id"`
	ChangeEvent
}
