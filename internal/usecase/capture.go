package usecase

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/mithun50/luma-cli/internal/domain"
)

// Tick outcomes reported to the LoopObserver.
const (
	TickChanged   = "changed"
	TickUnchanged = "unchanged"
	TickFailed    = "failed"
	TickClosed    = "closed"
)

// HashMarkup fingerprints snapshot markup for change detection.
func HashMarkup(html string) string {
	sum := blake3.Sum256([]byte(html))
	return hex.EncodeToString(sum[:16])
}

type generationReading struct {
	IsGenerating bool   `json:"isGenerating"`
	Method       string `json:"method"`
}

func decodeSnapshot(raw json.RawMessage) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.HTML == "" {
		return domain.Snapshot{}, errors.New("snapshot has no markup")
	}
	return snap, nil
}

// capture runs one capture cycle against conn. It never touches the
// Session on failure; a closed transport is reported as TickClosed.
func (l *Loop) capture(conn Connection) string {
	raw, err := conn.EvaluateAcrossContexts(l.cfg.Scripts.Capture)
	if err == nil {
		var snap domain.Snapshot
		if snap, err = decodeSnapshot(raw); err == nil {
			return l.apply(conn, snap)
		}
	}
	if errors.Is(err, domain.ErrTransportClosed) {
		return TickClosed
	}
	l.captureFailed(conn, err)
	return TickFailed
}

func (l *Loop) apply(conn Connection, snap domain.Snapshot) string {
	generating, err := l.detectGeneration(conn)
	if errors.Is(err, domain.ErrTransportClosed) {
		return TickClosed
	}
	now := l.clock()

	var events []*domain.ChangeEvent
	gen, ev := l.session.GenerationState().Advance(generating, now)
	l.session.setGeneration(gen)
	if ev != nil {
		events = append(events, ev)
		if ev.Type == domain.EventGenerationComplete {
			l.log.Info().Int64("durationMs", *ev.DurationMs).Msg("generation complete")
		} else {
			l.log.Info().Msg("generation started")
		}
	}

	outcome := TickUnchanged
	hash := HashMarkup(snap.HTML)
	if hash != l.session.SnapshotHash() {
		snap.Hash = hash
		snap.CapturedAt = now.UTC()
		l.session.setSnapshot(snap)
		events = append(events, domain.NewSnapshotUpdate(generating, now))
		outcome = TickChanged
		l.log.Debug().Str("hash", hash).Int("htmlSize", snap.Stats.HTMLSize).Msg("snapshot updated")
	}

	for _, ev := range events {
		l.emit(*ev)
	}
	return outcome
}

// detectGeneration reads the generating flag. Any failure other than a
// closed transport reads as not generating.
func (l *Loop) detectGeneration(conn Connection) (bool, error) {
	raw, err := conn.EvaluateAcrossContexts(l.cfg.Scripts.Generation)
	if err != nil {
		return false, err
	}
	var r generationReading
	if err := json.Unmarshal(raw, &r); err != nil {
		return false, nil
	}
	return r.IsGenerating, nil
}

func (l *Loop) captureFailed(conn Connection, err error) {
	l.failLog.Do(func() {
		ev := l.log.Warn().Err(err).Int("contexts", len(conn.Contexts()))
		switch {
		case len(conn.Contexts()) == 0:
			ev = ev.Str("hint", "no execution contexts yet; interact with the IDE window")
		case errors.Is(err, domain.ErrNoViableContext):
			ev = ev.Str("hint", "make sure a chat is open in the IDE")
		}
		ev.Msg("snapshot capture failed")
	})
}

func (l *Loop) emit(ev domain.ChangeEvent) {
	l.out.Broadcast(ev)
	l.obs.ObserveEvent(ev.Type)
}
