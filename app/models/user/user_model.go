// Package user 存放用户 Model 相关逻辑
package user

import (
	"campus/app/models"
)

// User 用户模型
// 认证与会话签发属于外部协作系统，这里只保留缴费核心引用到的身份字段。
type User struct {
	ID       string `gorm:"primaryKey;type:varchar(36)"`
	Email    string `gorm:"unique;type:varchar(255)"`
	FullName string `gorm:"type:varchar(100)"`
	Role     string `gorm:"type:varchar(20);index"` // student / lecturer / admin

	models.CommonTimestampsField
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// IsPrivileged 检查是否具有管理权限（凭证审核、跨学员查询）
func (u *User) IsPrivileged() bool {
	return u.Role == "admin"
}
