package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerationAdvanceEdges(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var g GenerationState

	g, ev := g.Advance(false, t0)
	require.Nil(t, ev)
	require.False(t, g.IsGenerating)

	g, ev = g.Advance(true, t0.Add(time.Second))
	require.NotNil(t, ev)
	require.Equal(t, EventGenerationStarted, ev.Type)
	require.NotNil(t, g.StartedAt)

	g, ev = g.Advance(true, t0.Add(2*time.Second))
	require.Nil(t, ev)

	g, ev = g.Advance(false, t0.Add(4*time.Second))
	require.NotNil(t, ev)
	require.Equal(t, EventGenerationComplete, ev.Type)
	require.EqualValues(t, 3000, *ev.DurationMs)
	require.Nil(t, g.StartedAt)
	require.False(t, g.IsGenerating)
}

func TestGenerationDurationWithoutStart(t *testing.T) {
	require.Zero(t, GenerationState{}.Duration(time.Now()))
}
