package observability

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mithun50/luma-cli/internal/adapters/cdp"
	"github.com/mithun50/luma-cli/internal/usecase"
)

var (
	_ cdp.CallObserver     = (*Metrics)(nil)
	_ usecase.LoopObserver = (*Metrics)(nil)
)

func TestLoggerLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "json")
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "shown", line["message"])
	require.Equal(t, "v", line["k"])
	require.Equal(t, Version, line["version"])
	require.Contains(t, line, "time")
}

func TestMetricsObservers(t *testing.T) {
	m := NewMetrics()
	m.ObserveCall("Runtime.evaluate", "ok", 10*time.Millisecond)
	m.ObserveCall("Runtime.evaluate", "timeout", time.Second)
	m.ObserveContexts(3)
	m.SetConnected(true)
	m.ObserveTick("changed")
	m.ObserveEvent("snapshot_update")
	m.ObserveReconnect()
	m.SetSubscribers("ws", 2)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RPCCalls.WithLabelValues("Runtime.evaluate", "timeout")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.Contexts))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CDPConnected))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ReconnectsTotal))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Subscribers.WithLabelValues("ws")))

	m.SetConnected(false)
	require.Equal(t, 0.0, testutil.ToFloat64(m.CDPConnected))
	require.Equal(t, 0.0, testutil.ToFloat64(m.Contexts))

	n, err := testutil.GatherAndCount(m.Registry())
	require.NoError(t, err)
	require.Positive(t, n)
}
