package bootstrap

import (
	"time"

	"campus/pkg/config"
	"campus/pkg/logger"
	"campus/pkg/queue"
	"campus/pkg/redis"
)

// receiptWorker 全局回执工作器，优雅关闭时停掉
var receiptWorker *queue.Worker

// SetupQueue 启动回执投递工作器
func SetupQueue() {
	if redis.Manager == nil {
		logger.ErrorString("回执队列", "Setup", "Redis 尚未初始化，回执队列不启动")
		return
	}

	receiptQueue := queue.NewReceiptQueue()
	receiptWorker = queue.NewWorker(receiptQueue, nil, queue.WorkerConfig{
		WorkerCount:     config.GetInt("queue.worker_count", 4),
		MaxRetries:      config.GetInt("queue.retry_times", 3),
		RetryInterval:   time.Duration(config.GetInt("queue.retry_delay", 1)) * time.Second,
		ShutdownTimeout: 30 * time.Second,
	})

	receiptWorker.Start()
	logger.InfoString("回执队列", "Setup", "回执投递工作器启动成功")
}

// StopQueue 关闭回执投递工作器
func StopQueue() {
	if receiptWorker != nil {
		receiptWorker.Stop()
	}
}
