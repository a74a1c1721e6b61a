package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/vfs/events"
)

func TestNewCollectorsNilRegistry(t *testing.T) {
	t.Parallel()

	c := NewCollectors(nil)
	assert.Nil(t, c)
	assert.Nil(t, c.TreeMetrics())
	assert.Nil(t, c.LockMetrics())
	assert.Nil(t, c.EventMetrics())
	assert.Nil(t, c.SearchMetrics())
}

func TestNewCollectorsRegistersOnce(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	require.NotNil(t, c)
	assert.NotNil(t, c.TreeMetrics())
	assert.NotNil(t, c.LockMetrics())
	assert.NotNil(t, c.EventMetrics())
	assert.NotNil(t, c.SearchMetrics())

	assert.Panics(t, func() { NewCollectors(reg) }, "collectors register twice")
}

func TestEventMetricsThroughBus(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	bus := events.NewBus(events.WithMetrics(c.EventMetrics()))
	bus.SubscribeAll(events.HandlerFunc(func(context.Context, events.Event) error {
		return io.ErrUnexpectedEOF
	}))

	bus.Publish(context.Background(), events.Event{Kind: events.Created, Workspace: "ws", Path: "/a"})
	bus.Publish(context.Background(), events.Event{Kind: events.Created, Workspace: "ws", Path: "/b"})

	expected := `
# HELP dittovfs_events_handler_failures_total Subscriber errors and panics swallowed by the bus
# TYPE dittovfs_events_handler_failures_total counter
dittovfs_events_handler_failures_total{kind="CREATED"} 2
# HELP dittovfs_events_published_total Events published on the bus
# TYPE dittovfs_events_published_total counter
dittovfs_events_published_total{kind="CREATED"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"dittovfs_events_published_total", "dittovfs_events_handler_failures_total"))
}

func TestServerServesRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	NewCollectors(reg)
	s := NewServer(ServerConfig{Port: 19090, Gatherer: reg})
	assert.Equal(t, 19090, s.Port())

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerWithoutRegistry(t *testing.T) {
	t.Parallel()

	s := &Server{server: &http.Server{Handler: newMux(ServerConfig{Port: 9090})}, port: 9090}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewServer(ServerConfig{Port: 19091, Gatherer: prometheus.NewRegistry()})
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
