package proof

import "errors"

// Status 凭证审核状态
type Status string

const (
	StatusPending  Status = "pending"  // 待审核
	StatusApproved Status = "approved" // 审核通过
	StatusRejected Status = "rejected" // 审核驳回
)

// ValidDecision 检查管理员的审核决定是否合法
func ValidDecision(decision string) bool {
	switch Status(decision) {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Validate 验证凭证记录
func (p *Proof) Validate() error {
	if p.TransactionID == 0 {
		return errors.New("transaction_id is required")
	}
	if p.FilePath == "" {
		return errors.New("file_path is required")
	}
	if p.UploadedBy == "" {
		return errors.New("uploaded_by is required")
	}
	return nil
}

// IsPending 检查是否待审核
func (p *Proof) IsPending() bool {
	return p.Status == string(StatusPending)
}

// IsApproved 检查是否已通过
func (p *Proof) IsApproved() bool {
	return p.Status == string(StatusApproved)
}

// IsRejected 检查是否已驳回
func (p *Proof) IsRejected() bool {
	return p.Status == string(StatusRejected)
}
