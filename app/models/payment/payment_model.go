// Package payment 学员缴费台账模型（缴费账户 + 交易流水）
package payment

import (
	"time"

	"github.com/shopspring/decimal"

	"campus/app/models"
)

// StudentPayment 缴费账户模型
// 每个（学员，课程批次）组合只有一条记录，唯一索引保证并发首付时只有一个写入者成功。
// AmountPaid 与 PaymentCompleted 为派生字段，只允许对账引擎写入。
type StudentPayment struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID         string          `gorm:"type:varchar(36);uniqueIndex:uidx_student_batch" json:"student_id"`
	CourseBatchID     uint64          `gorm:"uniqueIndex:uidx_student_batch;index" json:"course_batch_id"`
	FullAmountPayable decimal.Decimal `gorm:"column:full_amount_payable;type:decimal(12,2)" json:"full_amount_payable"` // 开户时由批次费用一次性确定
	AmountPaid        decimal.Decimal `gorm:"column:amount_paid;type:decimal(12,2)" json:"amount_paid"`                 // 已完成交易净额之和
	PaymentCompleted  bool            `gorm:"column:payment_completed;index" json:"payment_completed"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (StudentPayment) TableName() string {
	return "student_payments"
}

// Transaction 交易流水模型
// 一条记录对应一次缴费尝试（分期、重试或更正），金额记净额。
// OrderID 由本系统生成且全局唯一，网关通知靠它回溯到唯一一笔交易。
type Transaction struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentPaymentID uint64          `gorm:"column:student_payment_id;index" json:"student_payment_id"`
	OrderID          string          `gorm:"column:order_id;type:varchar(64);uniqueIndex" json:"order_id"`
	Amount           decimal.Decimal `gorm:"column:amount_paid;type:decimal(12,2)" json:"amount_paid"` // 净额
	Status           string          `gorm:"type:varchar(20);index" json:"status"`
	PaymentMethod    string          `gorm:"column:payment_method;type:varchar(20)" json:"payment_method"`
	PaymentID        string          `gorm:"column:payment_id;type:varchar(64)" json:"payment_id"` // 网关分配，完成时写入
	PaymentDate      *time.Time      `gorm:"column:payment_date" json:"payment_date"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "payment_transactions"
}
