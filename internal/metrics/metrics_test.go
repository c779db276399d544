package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	m.SetRegistry(3, 7)
	m.Message("sender")
	m.Error("ROOM_FULL")
	m.Relay("createOffer")
	m.Dropped()
	m.ForcedClose("room_full")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConnectsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rooms))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Receivers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("sender")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("ROOM_FULL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Relayed.WithLabelValues("createOffer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedSends))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForcedClosures.WithLabelValues("room_full")))
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnOpened()
		m.SetRegistry(1, 1)
		m.Message("x")
		m.Dropped()
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SetRegistry(2, 0)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "roomrelay_rooms 2"), rr.Body.String())
}
