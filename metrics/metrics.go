// Package metrics tracks per-operation throughput and latency for the
// registration, transfer, and vote flows.
package metrics

import (
	"sync"
	"time"
)

const (
	OpRegister = "register"
	OpTransfer = "transfer"
	OpVote     = "vote"
)

type opStats struct {
	firstAt   time.Time
	lastAt    time.Time
	count     int
	failures  int
	totalTime time.Duration
}

// Collector aggregates operation timings. Safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	startedAt time.Time
	ops       map[string]*opStats
}

func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
		ops:       make(map[string]*opStats),
	}
}

// Observe records one completed operation and its wall-clock duration.
func (c *Collector) Observe(op string, start time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.ops[op]
	if s == nil {
		s = &opStats{firstAt: start}
		c.ops[op] = s
	}
	s.lastAt = time.Now()
	s.count++
	if !ok {
		s.failures++
	}
	s.totalTime += time.Since(start)
}

// OperationMetrics is the externally visible summary of one operation.
type OperationMetrics struct {
	Count         int       `json:"count"`
	Failures      int       `json:"failures"`
	FirstAt       time.Time `json:"first_at"`
	LastAt        time.Time `json:"last_at"`
	TotalTimeMS   int64     `json:"total_time_ms"`
	AverageTimeMS int64     `json:"average_time_ms"`
}

// Snapshot is the full metrics report.
type Snapshot struct {
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Operations    map[string]OperationMetrics `json:"operations"`
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := Snapshot{
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Operations:    make(map[string]OperationMetrics, len(c.ops)),
	}
	for op, s := range c.ops {
		m := OperationMetrics{
			Count:       s.count,
			Failures:    s.failures,
			FirstAt:     s.firstAt,
			LastAt:      s.lastAt,
			TotalTimeMS: s.totalTime.Milliseconds(),
		}
		if s.count > 0 {
			m.AverageTimeMS = (s.totalTime / time.Duration(s.count)).Milliseconds()
		}
		out.Operations[op] = m
	}
	return out
}
