package observability_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/authkit/session-auth/internal/observability"
)

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m := observability.NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest("/api/auth/login", "POST", 401, time.Millisecond)
			m.RecordError("/api/auth/login", "POST", "application")
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(50), snap.Requests["/api/auth/login|POST|401"])
	assert.Equal(t, int64(50), snap.Errors["/api/auth/login|POST|application"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *observability.Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordError("/", "GET", "internal")
	})
	assert.Empty(t, m.Snapshot().Requests)
}
