// Package proof 线下缴费凭证模型
package proof

import (
	"campus/app/models"
)

// Proof 缴费凭证模型
// 挂在一笔 manual 交易下，交易被驳回后可以带新凭证重新提交，因此是多对一关系。
type Proof struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID uint64 `gorm:"column:transaction_id;index" json:"transaction_id"`
	FilePath      string `gorm:"column:file_path;type:varchar(255)" json:"file_path"`
	FileName      string `gorm:"column:file_name;type:varchar(255)" json:"file_name"`
	FileType      string `gorm:"column:file_type;type:varchar(50)" json:"file_type"`
	UploadedBy    string `gorm:"column:uploaded_by;type:varchar(36);index" json:"uploaded_by"`
	Status        string `gorm:"type:varchar(20);index" json:"status"`
	IsActive      bool   `gorm:"column:is_active;default:true" json:"is_active"` // 被驳回后置为 false

	models.CommonTimestampsField
}

// TableName 指定表名
func (Proof) TableName() string {
	return "payment_proofs"
}
