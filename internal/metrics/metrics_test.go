package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"agent-console/internal/domain"
)

func TestTurnLifecycle(t *testing.T) {
	m := New(nil)

	m.TurnStarted()
	require.Equal(t, 1.0, testutil.ToFloat64(m.TurnsInFlight))

	m.ChunkReceived(5)
	m.ChunkReceived(3)
	m.RationaleReceived()
	m.TurnFinished(domain.OutcomeComplete, 2*time.Second)

	require.Equal(t, 0.0, testutil.ToFloat64(m.TurnsInFlight))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ChunksTotal))
	require.Equal(t, 8.0, testutil.ToFloat64(m.ChunkBytesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RationaleTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues("complete")))
}

func TestFeedbackSubmitted(t *testing.T) {
	m := New(nil)
	m.FeedbackSubmitted(domain.FeedbackPositive, true)
	m.FeedbackSubmitted(domain.FeedbackNegative, false)

	require.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("positive", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("negative", "error")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New(nil)
	m.TurnStarted()
	m.TurnFinished(domain.OutcomeError, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `agent_console_turns_total{outcome="error"} 1`)
}
