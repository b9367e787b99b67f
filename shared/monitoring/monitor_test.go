package monitoring

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMonitor() *Monitor {
	m := NewMonitor()
	m.now = func() time.Time { return time.Date(2025, 10, 3, 6, 0, 0, 0, time.UTC) }
	return m
}

func TestMonitorLifecycle(t *testing.T) {
	m := fixedMonitor()
	assert.True(t, m.IsHealthy(), "healthy before any run")
	assert.Equal(t, "No runs yet", m.GetStatusSummary())

	m.RecordSuccess("September 2025: 3 new videos", time.Second)
	assert.True(t, m.IsHealthy())
	assert.Equal(t, "✅ Last run: Oct 3 06:00 - September 2025: 3 new videos", m.GetStatusSummary())

	m.RecordPartialFailure(errors.New("email failed"), time.Second)
	assert.True(t, m.IsHealthy(), "partial failures keep the service healthy")
	assert.Contains(t, m.GetStatusSummary(), "(1 partial failures since start)")

	m.RecordCriticalFailure(errors.New("no analytics rows"), time.Second)
	assert.False(t, m.IsHealthy())
	assert.Contains(t, m.GetStatusSummary(), "❌ Last run failed: Oct 3 06:00 - no analytics rows")
}

func TestMonitorConcurrentAccess(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.RecordSuccess("ok", time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			_ = m.IsHealthy()
			_ = m.GetStatusSummary()
		}()
	}
	wg.Wait()
	assert.True(t, m.IsHealthy())
}

func TestHealthServerRoutes(t *testing.T) {
	m := fixedMonitor()
	server := httptest.NewServer(NewHealthServer(m, "").Handler())
	defer server.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK - No runs yet", body)

	m.RecordCriticalFailure(errors.New("boom"), time.Second)
	code, body = get("/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "Service unhealthy")

	code, body = get("/status")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "boom")

	code, _ = get("/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNewHealthServerDefaultPort(t *testing.T) {
	assert.Equal(t, "8080", NewHealthServer(NewMonitor(), "").port)
	assert.Equal(t, "9090", NewHealthServer(NewMonitor(), "9090").port)
}
