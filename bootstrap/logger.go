// Package bootstrap 处理程序初始化逻辑
package bootstrap

import (
	"campus/pkg/config"
	"campus/pkg/logger"
)

// SetupLogger 初始化日志系统
func SetupLogger() {
	logger.InitLogger(
		config.GetString("log.filename"), // 日志文件路径
		config.GetInt("log.max_size"),    // 单个文件最大尺寸（MB）
		config.GetInt("log.max_backup"),  // 最多保存备份数
		config.GetInt("log.max_age"),     // 日志文件保存天数
		config.GetBool("log.compress"),   // 是否压缩
		config.GetString("log.type"),     // 记录类型 daily / single
		config.GetString("log.level"),    // 日志级别
	)
}
