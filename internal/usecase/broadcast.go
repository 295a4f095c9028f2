package usecase

import (
	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

// Fanout delivers each event to every sink in order. A panicking sink is
// logged and skipped; it does not stop delivery to the others.
type Fanout struct {
	sinks []Broadcaster
	log   zerolog.Logger
}

func NewFanout(logger zerolog.Logger, sinks ...Broadcaster) *Fanout {
	return &Fanout{sinks: sinks, log: logger}
}

func (f *Fanout) Add(s Broadcaster) { f.sinks = append(f.sinks, s) }

func (f *Fanout) Broadcast(ev domain.ChangeEvent) {
	for _, s := range f.sinks {
		f.deliver(s, ev)
	}
}

func (f *Fanout) deliver(s Broadcaster, ev domain.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error().Interface("panic", r).Str("type", ev.Type).Msg("broadcast sink panicked")
		}
	}()
	s.Broadcast(ev)
}
