package domain

import "time"

// LoopState is the capture/reconnect loop position.
type LoopState string

const (
	LoopStopped      LoopState = "stopped"
	LoopDisconnected LoopState = "disconnected"
	LoopConnecting   LoopState = "connecting"
	LoopConnected    LoopState = "connected"
	LoopCapturing    LoopState = "capturing"
)

// GenerationState records whether the target is producing output and
// since when. StartedAt is nil outside a generating period.
type GenerationState struct {
	IsGenerating bool       `json:"isGenerating"`
	StartedAt    *time.Time `json:"startedAt"`
}

// Duration returns the elapsed time of the current generating period.
func (g GenerationState) Duration(now time.Time) time.Duration {
	if g.StartedAt == nil {
		return 0
	}
	return now.Sub(*g.StartedAt)
}

// Advance applies one reading. Transitions are edge-triggered: a repeated
// reading returns the state unchanged and no event.
func (g GenerationState) Advance(isGenerating bool, now time.Time) (GenerationState, *ChangeEvent) {
	switch {
	case isGenerating && !g.IsGenerating:
		start := now
		return GenerationState{IsGenerating: true, StartedAt: &start}, NewGenerationStarted(now)
	case !isGenerating && g.IsGenerating:
		elapsed := g.Duration(now)
		return GenerationState{}, NewGenerationComplete(elapsed, now)
	default:
		return g, nil
	}
}
