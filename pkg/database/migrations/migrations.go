// Package migrations 注册需要自动迁移的数据表
package migrations

import (
	"campus/app/models/batch"
	"campus/app/models/payment"
	"campus/app/models/proof"
	"campus/app/models/user"
)

// RegisterTables 返回全部需要迁移的模型
func RegisterTables() []interface{} {
	return []interface{}{
		&user.User{},
		&batch.CourseBatch{},
		&batch.FeeSummary{},
		&payment.StudentPayment{},
		&payment.Transaction{},
		&proof.Proof{},
	}
}
