package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpDBQuery, 10*time.Millisecond)
	c.RecordTiming(OpDBQuery, 30*time.Millisecond)

	snap := c.Snapshot()
	op, ok := snap.Operations[OpDBQuery]
	require.True(t, ok)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(40), op.TotalTimeMs)
	assert.Equal(t, int64(10), op.MinTimeMs)
	assert.Equal(t, int64(30), op.MaxTimeMs)
	assert.InDelta(t, 20.0, op.AvgTimeMs, 0.001)
	assert.Equal(t, []string{OpDBQuery}, snap.OperationNames())
}

func TestCounters(t *testing.T) {
	c := NewCollector()
	c.RecordJob("create_post", JobSucceeded)
	c.RecordJob("create_post", JobMisfired)
	c.RecordJob("interact", JobSucceeded)
	c.RecordDetection("high frequency")
	c.RecordProbeResult("fraud")

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Jobs[JobSucceeded])
	assert.Equal(t, int64(1), snap.Jobs[JobMisfired])
	assert.Equal(t, int64(1), snap.Detections["high frequency"])
	assert.Equal(t, int64(1), snap.ProbeResults["fraud"])
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpJobRun, time.Second)
		c.RecordJob("x", JobFailed)
		c.RecordDetection("y")
		c.RecordProbeResult("z")
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	c := NewCollector()
	c.RecordJob("analyze", JobSucceeded)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `honeytrap_scheduler_jobs_total{action="analyze",outcome="succeeded"} 1`)
}
