package queue

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricOperation 指标操作类型
type MetricOperation string

const (
	OpPush    MetricOperation = "push"
	OpPop     MetricOperation = "pop"
	OpDeliver MetricOperation = "deliver"
)

// LatencyStats 延迟统计
type LatencyStats struct {
	mu    sync.Mutex
	count int64
	total time.Duration
	min   time.Duration
	max   time.Duration
}

func (s *LatencyStats) record(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.total += d
	if s.min == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
}

// Snapshot 读取统计快照（次数、平均、最小、最大）
func (s *LatencyStats) Snapshot() (count int64, avg, min, max time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count > 0 {
		avg = s.total / time.Duration(s.count)
	}
	return s.count, avg, s.min, s.max
}

// QueueMetrics 队列指标收集器
type QueueMetrics struct {
	totalEvents      atomic.Int64
	successfulEvents atomic.Int64
	failedEvents     atomic.Int64

	pushLatency    *LatencyStats
	popLatency     *LatencyStats
	deliverLatency *LatencyStats
}

// NewQueueMetrics 创建指标收集器
func NewQueueMetrics() *QueueMetrics {
	return &QueueMetrics{
		pushLatency:    &LatencyStats{},
		popLatency:     &LatencyStats{},
		deliverLatency: &LatencyStats{},
	}
}

// RecordSuccess 记录成功操作
func (m *QueueMetrics) RecordSuccess(op MetricOperation) {
	m.successfulEvents.Add(1)
	m.totalEvents.Add(1)
}

// RecordError 记录失败操作
func (m *QueueMetrics) RecordError(op MetricOperation) {
	m.failedEvents.Add(1)
	m.totalEvents.Add(1)
}

// RecordPushLatency 记录入列延迟
func (m *QueueMetrics) RecordPushLatency(d time.Duration) {
	m.pushLatency.record(d)
}

// RecordPopLatency 记录出列延迟
func (m *QueueMetrics) RecordPopLatency(d time.Duration) {
	m.popLatency.record(d)
}

// RecordDeliverLatency 记录投递延迟
func (m *QueueMetrics) RecordDeliverLatency(d time.Duration) {
	m.deliverLatency.record(d)
}

// Totals 读取事件计数（总数、成功、失败）
func (m *QueueMetrics) Totals() (total, successful, failed int64) {
	return m.totalEvents.Load(), m.successfulEvents.Load(), m.failedEvents.Load()
}
