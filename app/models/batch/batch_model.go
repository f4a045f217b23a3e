// Package batch 课程批次费用与营收汇总模型
package batch

import (
	"github.com/shopspring/decimal"

	"campus/app/models"
)

// CourseBatch 课程批次（费用目录）
// 批次的创建维护属于课程子系统，这里只保留缴费核心需要的费用查询字段。
type CourseBatch struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchCode string          `gorm:"column:batch_code;type:varchar(50);uniqueIndex" json:"batch_code"`
	BatchFee  decimal.Decimal `gorm:"column:batch_fee;type:decimal(12,2)" json:"batch_fee"` // 开户时固化为账户的应缴全额

	models.CommonTimestampsField
}

// TableName 指定表名
func (CourseBatch) TableName() string {
	return "course_batches"
}

// FeeSummary 批次营收汇总模型
// 物化的读取视图：永远可以从已结清的缴费账户集合整体重算出来，
// resync 是正确性的锚点，增量维护只是它的优化。
type FeeSummary struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseBatchID          uint64          `gorm:"column:course_batch_id;uniqueIndex" json:"course_batch_id"`
	NoOfParticipants       int             `gorm:"column:no_of_participants" json:"no_of_participants"` // 批次容量
	PaidNoOfParticipants   int             `gorm:"column:paid_no_of_participants" json:"paid_no_of_participants"`
	RevenueReceivedTotal   decimal.Decimal `gorm:"column:revenue_received_total;type:decimal(14,2)" json:"revenue_received_total"`
	AllFeesCollectedStatus bool            `gorm:"column:all_fees_collected_status" json:"all_fees_collected_status"`

	models.CommonTimestampsField
}

// TableName 指定表名
func (FeeSummary) TableName() string {
	return "batch_fee_summaries"
}
