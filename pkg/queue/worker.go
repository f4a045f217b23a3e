package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus/pkg/logger"
	"campus/pkg/payment/types"
)

// DeliverFunc 回执投递函数，由接入方决定投递到哪里（邮件、站内信等）
type DeliverFunc func(ctx context.Context, event types.ReceiptEvent) error

// WorkerConfig 工作器配置
type WorkerConfig struct {
	WorkerCount     int           // 并发工作器数量
	MaxRetries      int           // 单个事件最大重试次数
	RetryInterval   time.Duration // 重试间隔
	ShutdownTimeout time.Duration // 关闭超时时间
}

// Worker 回执投递工作器组
type Worker struct {
	queue    *ReceiptQueue
	deliver  DeliverFunc
	config   WorkerConfig
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker 创建工作器组
// deliver 为 nil 时回执只写审计日志，适合尚未接入下游通知渠道的部署
func NewWorker(q *ReceiptQueue, deliver DeliverFunc, config WorkerConfig) *Worker {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if deliver == nil {
		deliver = logDeliver
	}

	return &Worker{
		queue:    q,
		deliver:  deliver,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Start 启动工作器组
func (w *Worker) Start() {
	for i := 0; i < w.config.WorkerCount; i++ {
		w.wg.Add(1)
		go w.startWorker(i)
	}
}

func (w *Worker) startWorker(id int) {
	defer w.wg.Done()

	logger.InfoString("回执队列", "Worker", fmt.Sprintf("worker %d 启动", id))

	for {
		select {
		case <-w.stopChan:
			logger.InfoString("回执队列", "Worker", fmt.Sprintf("worker %d 退出", id))
			return
		default:
			if err := w.processNext(); err != nil {
				logger.ErrorString("回执队列", "Worker",
					fmt.Sprintf("worker %d 处理失败: %v", id, err))
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) processNext() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	event, err := w.queue.Pop(ctx)
	if err != nil {
		return err
	}
	if event == nil {
		// 队列为空，Pop 自带阻塞超时，无需额外休眠
		return nil
	}

	return w.handleEvent(ctx, event)
}

// handleEvent 投递单个回执，失败重试后放弃并标记 failed
func (w *Worker) handleEvent(ctx context.Context, event *types.ReceiptEvent) error {
	start := time.Now()
	defer func() {
		w.queue.metrics.RecordDeliverLatency(time.Since(start))
	}()

	var lastErr error
	for attempt := 0; attempt < w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(w.config.RetryInterval)
		}
		if lastErr = w.deliver(ctx, *event); lastErr == nil {
			w.queue.metrics.RecordSuccess(OpDeliver)
			return w.queue.UpdateStatus(ctx, event.OrderID, DeliveryDelivered)
		}
	}

	w.queue.metrics.RecordError(OpDeliver)
	if err := w.queue.UpdateStatus(ctx, event.OrderID, DeliveryFailed); err != nil {
		logger.ErrorString("回执队列", "UpdateStatus", err.Error())
	}
	return fmt.Errorf("deliver receipt for order %s error: %w", event.OrderID, lastErr)
}

// Stop 优雅关闭工作器组
func (w *Worker) Stop() {
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoString("回执队列", "Stop", "全部 worker 已退出")
	case <-time.After(w.config.ShutdownTimeout):
		logger.WarnString("回执队列", "Stop", "worker 退出超时")
	}
}

// logDeliver 默认投递实现，回执落审计日志
func logDeliver(_ context.Context, event types.ReceiptEvent) error {
	logger.InfoString("回执队列", "Receipt",
		fmt.Sprintf("学员 %s 批次 %d 订单 %s 缴费 %s（%s）于 %s 完成",
			event.StudentID, event.BatchID, event.OrderID,
			event.Amount, event.Method, event.CompletedAt.Format(time.RFC3339)))
	return nil
}
