// Package queue 缴费回执的异步投递队列
//
// 交易完成后主流程只负责把回执事件推进队列，投递由后台 worker 完成。
// 推送失败只记日志，绝不反过来影响收款主流程。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"campus/pkg/config"
	"campus/pkg/logger"
	"campus/pkg/payment/types"
	"campus/pkg/redis"
)

// DeliveryStatus 回执投递状态
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// ReceiptQueue 回执队列，底层是 Redis List
type ReceiptQueue struct {
	client      *redis.RedisClient
	prefix      string
	timeout     time.Duration
	rateLimiter *rate.Limiter
	metrics     *QueueMetrics
}

// NewReceiptQueue 创建回执队列实例
func NewReceiptQueue() *ReceiptQueue {
	rateLimit := config.GetInt("queue.rate_limit", 12)
	burst := config.GetInt("queue.rate_burst", rateLimit)

	return &ReceiptQueue{
		client:      redis.GetRedis(redis.QueueDB),
		prefix:      config.GetString("redis.queue_prefix", "campus:receipt"),
		timeout:     time.Duration(config.GetInt("redis.queue_timeout", 300)) * time.Second,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), burst),
		metrics:     NewQueueMetrics(),
	}
}

// Push 把回执事件推进队列
func (q *ReceiptQueue) Push(ctx context.Context, event types.ReceiptEvent) error {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	start := time.Now()
	defer func() {
		q.metrics.RecordPushLatency(time.Since(start))
	}()

	eventJSON, err := json.Marshal(event)
	if err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("marshal receipt event error: %w", err)
	}

	// 事件入列和状态键一次管道写入
	pipe := q.client.Client.Pipeline()
	pipe.LPush(ctx, q.eventsKey(), eventJSON)
	pipe.Set(ctx, q.statusKey(event.OrderID), string(DeliveryPending), q.timeout)

	if _, err := pipe.Exec(ctx); err != nil {
		q.metrics.RecordError(OpPush)
		return fmt.Errorf("push receipt event error: %w", err)
	}

	q.metrics.RecordSuccess(OpPush)
	return nil
}

// Pop 从队列取出一个回执事件，队列为空返回 nil
func (q *ReceiptQueue) Pop(ctx context.Context) (*types.ReceiptEvent, error) {
	result, err := q.client.Client.BRPop(ctx, time.Second, q.eventsKey()).Result()
	if err != nil {
		if err == goredis.Nil || err == context.DeadlineExceeded || err == context.Canceled {
			return nil, nil
		}
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("pop receipt event error: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("invalid result from receipt queue")
	}

	var event types.ReceiptEvent
	if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
		q.metrics.RecordError(OpPop)
		return nil, fmt.Errorf("unmarshal receipt event error: %w", err)
	}

	q.metrics.RecordSuccess(OpPop)
	return &event, nil
}

// UpdateStatus 更新回执投递状态
func (q *ReceiptQueue) UpdateStatus(ctx context.Context, orderID string, status DeliveryStatus) error {
	if err := q.client.Client.Set(ctx, q.statusKey(orderID), string(status), q.timeout).Err(); err != nil {
		return fmt.Errorf("update receipt status error: %w", err)
	}
	return nil
}

// GetStatus 查询回执投递状态，不存在返回空串
func (q *ReceiptQueue) GetStatus(ctx context.Context, orderID string) (DeliveryStatus, error) {
	status, err := q.client.Client.Get(ctx, q.statusKey(orderID)).Result()
	if err != nil {
		if err == goredis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("get receipt status error: %w", err)
	}
	return DeliveryStatus(status), nil
}

// Ping 检查队列健康状态
func (q *ReceiptQueue) Ping(ctx context.Context) error {
	return q.client.Ping()
}

// Metrics 暴露指标收集器
func (q *ReceiptQueue) Metrics() *QueueMetrics {
	return q.metrics
}

func (q *ReceiptQueue) eventsKey() string {
	return fmt.Sprintf("%s:events", q.prefix)
}

func (q *ReceiptQueue) statusKey(orderID string) string {
	return fmt.Sprintf("%s:status:%s", q.prefix, orderID)
}

// Notifier 把回执队列适配成缴费服务需要的投递接口
type Notifier struct {
	queue *ReceiptQueue
}

// NewNotifier 创建回执投递适配器
func NewNotifier(q *ReceiptQueue) *Notifier {
	return &Notifier{queue: q}
}

// PaymentCompleted 推送缴费完成回执，失败只记日志
func (n *Notifier) PaymentCompleted(ctx context.Context, event types.ReceiptEvent) {
	if err := n.queue.Push(ctx, event); err != nil {
		logger.ErrorString("回执队列", "Push",
			fmt.Sprintf("订单 %s 回执入列失败: %v", event.OrderID, err))
	}
}
