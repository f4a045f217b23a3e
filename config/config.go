// Package config 站点配置信息
package config

// Initialize 触发各配置文件的 init() 注册
// main 包以空导入方式加载本包即可完成全部配置注册
func Initialize() {
}
