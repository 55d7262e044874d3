package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	c.ConnOpened()
	c.ConnClosed()
	c.BoardCreated()
	c.Published("e", 3)
	c.Evicted("x")
	c.BoardUpdated("ws")
	c.Rejected([]string{"nodes"})
	assert.Nil(t, c.Registry())
}

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("test")
	c.Published("nodes_update", 2)
	c.Published("nodes_update", 0)
	c.BoardUpdated("http")
	c.Rejected([]string{"nodes", "paths"})
	c.ConnOpened()
	c.ConnOpened()
	c.ConnClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Frames.WithLabelValues("nodes_update")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BoardUpdates.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RejectedFields.WithLabelValues("paths")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Connections))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("relay")
	c.ObserveHTTP("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `relay_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
