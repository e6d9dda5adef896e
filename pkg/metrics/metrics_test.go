package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	collector := NewCollector()

	t.Run("InitialState", func(t *testing.T) {
		metrics := collector.GetMetrics()
		assert.Equal(t, int64(0), metrics.CyclesCompleted)
		assert.Equal(t, int64(0), metrics.CyclesAborted)
		assert.Equal(t, int64(0), metrics.ConditionsEvaluated)
		assert.Equal(t, int64(0), metrics.CacheHits)
		assert.Equal(t, int64(0), metrics.CacheMisses)
	})

	t.Run("RecordCycle", func(t *testing.T) {
		collector.RecordCycle(100*time.Millisecond, false)
		collector.RecordCycle(300*time.Millisecond, false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.CyclesCompleted)
		assert.Equal(t, 200*time.Millisecond, metrics.AverageCycleTime)
		assert.Equal(t, 100*time.Millisecond, metrics.MinCycleTime)
		assert.Equal(t, 300*time.Millisecond, metrics.MaxCycleTime)
	})

	t.Run("AbortedCycleSkipsTiming", func(t *testing.T) {
		before := collector.GetMetrics()
		collector.RecordCycle(5*time.Second, true)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(1), metrics.CyclesAborted)
		assert.Equal(t, before.CyclesCompleted, metrics.CyclesCompleted)
		assert.Equal(t, before.MaxCycleTime, metrics.MaxCycleTime)
	})

	t.Run("CacheMetrics", func(t *testing.T) {
		collector.RecordCacheHit()
		collector.RecordCacheHit()
		collector.RecordCacheMiss()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.CacheHits)
		assert.Equal(t, int64(1), metrics.CacheMisses)

		hitRatio := collector.GetCacheHitRatio()
		assert.InDelta(t, 66.67, hitRatio, 0.1)
	})

	t.Run("UpstreamMetrics", func(t *testing.T) {
		duration := 50 * time.Millisecond
		collector.RecordUpstreamCall(duration, true)
		collector.RecordUpstreamCall(duration*2, false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.UpstreamCalls)
		assert.Equal(t, int64(1), metrics.UpstreamFailures)
		assert.Equal(t, duration*3/2, metrics.AverageUpstreamTime)
	})

	t.Run("TriggerRate", func(t *testing.T) {
		collector.Reset()

		collector.RecordEvaluation(true)
		collector.RecordEvaluation(false)
		collector.RecordEvaluation(false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(3), metrics.ConditionsEvaluated)
		assert.Equal(t, int64(1), metrics.AlertsTriggered)
		assert.InDelta(t, 33.33, collector.GetTriggerRate(), 0.1)
	})

	t.Run("AdmissionControlMetrics", func(t *testing.T) {
		collector.RecordRateLimitWait()
		collector.RecordRateLimitTimeout()
		collector.RecordDeadlineExceeded()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(1), metrics.RateLimitWaits)
		assert.Equal(t, int64(1), metrics.RateLimitTimeouts)
		assert.Equal(t, int64(1), metrics.DeadlineExceeded)
	})

	t.Run("NotificationMetrics", func(t *testing.T) {
		collector.RecordNotification(true)
		collector.RecordNotification(true)
		collector.RecordNotification(false)

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(2), metrics.NotificationsSent)
		assert.Equal(t, int64(1), metrics.NotificationFailures)
	})

	t.Run("ActiveTasks", func(t *testing.T) {
		collector.TaskStarted()
		collector.TaskStarted()
		assert.Equal(t, int64(2), collector.GetMetrics().ActiveTasks)

		collector.TaskDone()
		collector.TaskDone()
		assert.Equal(t, int64(0), collector.GetMetrics().ActiveTasks)
	})

	t.Run("Reset", func(t *testing.T) {
		collector.Reset()

		metrics := collector.GetMetrics()
		assert.Equal(t, int64(0), metrics.CyclesCompleted)
		assert.Equal(t, int64(0), metrics.ConditionsEvaluated)
		assert.Equal(t, int64(0), metrics.CacheHits)
		assert.Equal(t, int64(0), metrics.UpstreamCalls)
		assert.Equal(t, int64(0), metrics.NotificationsSent)
	})
}
