package payment

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Status 交易状态
type Status string

const (
	StatusPending   Status = "pending"   // 待支付
	StatusCompleted Status = "completed" // 已完成
	StatusFailed    Status = "failed"    // 已失败
)

// Method 支付方式
type Method string

const (
	MethodManual Method = "manual" // 线下转账，凭证由管理员审核
	MethodOnline Method = "online" // 在线网关支付
)

// Validate 验证交易记录
func (t *Transaction) Validate() error {
	if t.StudentPaymentID == 0 {
		return errors.New("student_payment_id is required")
	}
	if t.OrderID == "" {
		return errors.New("order_id is required")
	}
	if t.Amount.IsNegative() || t.Amount.IsZero() {
		return errors.New("amount must be greater than 0")
	}
	if !t.ValidateMethod() {
		return errors.New("invalid payment method")
	}
	return nil
}

// ValidateMethod 验证支付方式
func (t *Transaction) ValidateMethod() bool {
	return t.PaymentMethod == string(MethodManual) || t.PaymentMethod == string(MethodOnline)
}

// IsPending 检查是否待支付
func (t *Transaction) IsPending() bool {
	return t.Status == string(StatusPending)
}

// IsCompleted 检查是否已完成
func (t *Transaction) IsCompleted() bool {
	return t.Status == string(StatusCompleted)
}

// IsFailed 检查是否已失败
func (t *Transaction) IsFailed() bool {
	return t.Status == string(StatusFailed)
}

// IsFinalized 检查是否已到终态（完成或失败后不可再变更）
func (t *Transaction) IsFinalized() bool {
	return t.IsCompleted() || t.IsFailed()
}

// RemainingBalance 账户剩余应缴净额
func (sp *StudentPayment) RemainingBalance() decimal.Decimal {
	return sp.FullAmountPayable.Sub(sp.AmountPaid)
}

// IsSettled 检查账户是否已结清
func (sp *StudentPayment) IsSettled() bool {
	return sp.PaymentCompleted
}
