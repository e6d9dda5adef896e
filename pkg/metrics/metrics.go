package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds performance metrics for the evaluation engine
type Metrics struct {
	// Cycle metrics
	CyclesCompleted int64 `json:"cycles_completed"`
	CyclesAborted   int64 `json:"cycles_aborted"`

	// Cycle time metrics
	AverageCycleTime time.Duration `json:"average_cycle_time"`
	MinCycleTime     time.Duration `json:"min_cycle_time"`
	MaxCycleTime     time.Duration `json:"max_cycle_time"`

	// Evaluation metrics
	ConditionsEvaluated int64 `json:"conditions_evaluated"`
	AlertsTriggered     int64 `json:"alerts_triggered"`

	// Cache metrics
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Upstream metrics
	UpstreamCalls       int64         `json:"upstream_calls"`
	UpstreamFailures    int64         `json:"upstream_failures"`
	AverageUpstreamTime time.Duration `json:"average_upstream_time"`

	// Admission control metrics
	RateLimitWaits    int64 `json:"rate_limit_waits"`
	RateLimitTimeouts int64 `json:"rate_limit_timeouts"`
	DeadlineExceeded  int64 `json:"deadline_exceeded"`

	// Notification metrics
	NotificationsSent    int64 `json:"notifications_sent"`
	NotificationFailures int64 `json:"notification_failures"`

	// Concurrency metrics
	ActiveTasks int64 `json:"active_tasks"`

	// Admin API metrics
	AdminRequests      int64 `json:"admin_requests"`
	AdminRequestErrors int64 `json:"admin_request_errors"`

	// Internal fields for calculations
	totalCycleTime    time.Duration
	totalUpstreamTime time.Duration
	mutex             sync.RWMutex
}

// Collector provides thread-safe metrics collection
type Collector struct {
	metrics   *Metrics
	startTime time.Time
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		metrics: &Metrics{
			MinCycleTime: time.Duration(^uint64(0) >> 1), // Max duration
		},
		startTime: time.Now(),
	}
}

// RecordCycle records a completed scheduler cycle
func (c *Collector) RecordCycle(duration time.Duration, aborted bool) {
	if aborted {
		atomic.AddInt64(&c.metrics.CyclesAborted, 1)
		return
	}
	atomic.AddInt64(&c.metrics.CyclesCompleted, 1)

	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	c.metrics.totalCycleTime += duration

	if duration < c.metrics.MinCycleTime {
		c.metrics.MinCycleTime = duration
	}
	if duration > c.metrics.MaxCycleTime {
		c.metrics.MaxCycleTime = duration
	}

	completed := atomic.LoadInt64(&c.metrics.CyclesCompleted)
	if completed > 0 {
		c.metrics.AverageCycleTime = c.metrics.totalCycleTime / time.Duration(completed)
	}
}

// RecordEvaluation records one evaluated condition
func (c *Collector) RecordEvaluation(triggered bool) {
	atomic.AddInt64(&c.metrics.ConditionsEvaluated, 1)
	if triggered {
		atomic.AddInt64(&c.metrics.AlertsTriggered, 1)
	}
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit() {
	atomic.AddInt64(&c.metrics.CacheHits, 1)
}

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss() {
	atomic.AddInt64(&c.metrics.CacheMisses, 1)
}

// RecordUpstreamCall records an upstream fetch
func (c *Collector) RecordUpstreamCall(duration time.Duration, success bool) {
	atomic.AddInt64(&c.metrics.UpstreamCalls, 1)

	if !success {
		atomic.AddInt64(&c.metrics.UpstreamFailures, 1)
	}

	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	c.metrics.totalUpstreamTime += duration

	calls := atomic.LoadInt64(&c.metrics.UpstreamCalls)
	if calls > 0 {
		c.metrics.AverageUpstreamTime = c.metrics.totalUpstreamTime / time.Duration(calls)
	}
}

// RecordRateLimitWait records a blocking wait on the rate limiter
func (c *Collector) RecordRateLimitWait() {
	atomic.AddInt64(&c.metrics.RateLimitWaits, 1)
}

// RecordRateLimitTimeout records an acquire that gave up before a token was granted
func (c *Collector) RecordRateLimitTimeout() {
	atomic.AddInt64(&c.metrics.RateLimitTimeouts, 1)
}

// RecordDeadlineExceeded records an item cancelled by the cycle deadline
func (c *Collector) RecordDeadlineExceeded() {
	atomic.AddInt64(&c.metrics.DeadlineExceeded, 1)
}

// RecordNotification records a notifier invocation
func (c *Collector) RecordNotification(success bool) {
	if success {
		atomic.AddInt64(&c.metrics.NotificationsSent, 1)
	} else {
		atomic.AddInt64(&c.metrics.NotificationFailures, 1)
	}
}

// RecordAdminRequest records an admin API request
func (c *Collector) RecordAdminRequest(success bool) {
	atomic.AddInt64(&c.metrics.AdminRequests, 1)
	if !success {
		atomic.AddInt64(&c.metrics.AdminRequestErrors, 1)
	}
}

// TaskStarted records a per-item evaluation task starting
func (c *Collector) TaskStarted() {
	atomic.AddInt64(&c.metrics.ActiveTasks, 1)
}

// TaskDone records a per-item evaluation task finishing
func (c *Collector) TaskDone() {
	atomic.AddInt64(&c.metrics.ActiveTasks, -1)
}

// GetMetrics returns a copy of current metrics
func (c *Collector) GetMetrics() *Metrics {
	c.metrics.mutex.RLock()
	defer c.metrics.mutex.RUnlock()

	// Create a copy to avoid race conditions
	return &Metrics{
		CyclesCompleted:      atomic.LoadInt64(&c.metrics.CyclesCompleted),
		CyclesAborted:        atomic.LoadInt64(&c.metrics.CyclesAborted),
		AverageCycleTime:     c.metrics.AverageCycleTime,
		MinCycleTime:         c.metrics.MinCycleTime,
		MaxCycleTime:         c.metrics.MaxCycleTime,
		ConditionsEvaluated:  atomic.LoadInt64(&c.metrics.ConditionsEvaluated),
		AlertsTriggered:      atomic.LoadInt64(&c.metrics.AlertsTriggered),
		CacheHits:            atomic.LoadInt64(&c.metrics.CacheHits),
		CacheMisses:          atomic.LoadInt64(&c.metrics.CacheMisses),
		UpstreamCalls:        atomic.LoadInt64(&c.metrics.UpstreamCalls),
		UpstreamFailures:     atomic.LoadInt64(&c.metrics.UpstreamFailures),
		AverageUpstreamTime:  c.metrics.AverageUpstreamTime,
		RateLimitWaits:       atomic.LoadInt64(&c.metrics.RateLimitWaits),
		RateLimitTimeouts:    atomic.LoadInt64(&c.metrics.RateLimitTimeouts),
		DeadlineExceeded:     atomic.LoadInt64(&c.metrics.DeadlineExceeded),
		NotificationsSent:    atomic.LoadInt64(&c.metrics.NotificationsSent),
		NotificationFailures: atomic.LoadInt64(&c.metrics.NotificationFailures),
		ActiveTasks:          atomic.LoadInt64(&c.metrics.ActiveTasks),
		AdminRequests:        atomic.LoadInt64(&c.metrics.AdminRequests),
		AdminRequestErrors:   atomic.LoadInt64(&c.metrics.AdminRequestErrors),
	}
}

// GetUptime returns the uptime since metrics collection started
func (c *Collector) GetUptime() time.Duration {
	return time.Since(c.startTime)
}

// Reset resets all metrics
func (c *Collector) Reset() {
	c.metrics.mutex.Lock()
	defer c.metrics.mutex.Unlock()

	atomic.StoreInt64(&c.metrics.CyclesCompleted, 0)
	atomic.StoreInt64(&c.metrics.CyclesAborted, 0)
	atomic.StoreInt64(&c.metrics.ConditionsEvaluated, 0)
	atomic.StoreInt64(&c.metrics.AlertsTriggered, 0)
	atomic.StoreInt64(&c.metrics.CacheHits, 0)
	atomic.StoreInt64(&c.metrics.CacheMisses, 0)
	atomic.StoreInt64(&c.metrics.UpstreamCalls, 0)
	atomic.StoreInt64(&c.metrics.UpstreamFailures, 0)
	atomic.StoreInt64(&c.metrics.RateLimitWaits, 0)
	atomic.StoreInt64(&c.metrics.RateLimitTimeouts, 0)
	atomic.StoreInt64(&c.metrics.DeadlineExceeded, 0)
	atomic.StoreInt64(&c.metrics.NotificationsSent, 0)
	atomic.StoreInt64(&c.metrics.NotificationFailures, 0)
	atomic.StoreInt64(&c.metrics.ActiveTasks, 0)
	atomic.StoreInt64(&c.metrics.AdminRequests, 0)
	atomic.StoreInt64(&c.metrics.AdminRequestErrors, 0)

	c.metrics.AverageCycleTime = 0
	c.metrics.MinCycleTime = time.Duration(^uint64(0) >> 1)
	c.metrics.MaxCycleTime = 0
	c.metrics.AverageUpstreamTime = 0
	c.metrics.totalCycleTime = 0
	c.metrics.totalUpstreamTime = 0

	c.startTime = time.Now()
}

// GetCacheHitRatio returns the cache hit ratio as a percentage
func (c *Collector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&c.metrics.CacheHits)
	misses := atomic.LoadInt64(&c.metrics.CacheMisses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}

	return float64(hits) / float64(total) * 100.0
}

// GetTriggerRate returns the share of evaluations that triggered, as a percentage
func (c *Collector) GetTriggerRate() float64 {
	triggered := atomic.LoadInt64(&c.metrics.AlertsTriggered)
	total := atomic.LoadInt64(&c.metrics.ConditionsEvaluated)

	if total == 0 {
		return 0.0
	}

	return float64(triggered) / float64(total) * 100.0
}
