// Package repositories 数据仓储层
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"campus/app/models/payment"
	"campus/pkg/database"
	"campus/pkg/payment/types"
)

// LedgerRepository 缴费台账仓库
// 账户与交易流水的事实来源。amount_paid / payment_completed 两个派生字段
// 不在这里写入，只由对账引擎重算。
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建仓库实例
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		db: database.DB,
	}
}

// CreateAccount 创建缴费账户
// (student_id, course_batch_id) 唯一索引兜底并发首付竞态，
// 撞索引时返回 gorm.ErrDuplicatedKey，调用方应重新查询已存在的账户。
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *payment.StudentPayment) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// GetAccount 根据（学员，批次）获取缴费账户
func (r *LedgerRepository) GetAccount(ctx context.Context, studentID string, batchID uint64) (*payment.StudentPayment, error) {
	var account payment.StudentPayment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_batch_id = ?", studentID, batchID).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByID 根据主键获取缴费账户
func (r *LedgerRepository) GetAccountByID(ctx context.Context, id uint64) (*payment.StudentPayment, error) {
	var account payment.StudentPayment
	err := r.db.WithContext(ctx).First(&account, id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CreateTransaction 创建交易流水，总是以 pending 状态入库
func (r *LedgerRepository) CreateTransaction(ctx context.Context, txn *payment.Transaction) error {
	if txn.Status == "" {
		txn.Status = string(payment.StatusPending)
	}
	if err := txn.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(txn).Error
}

// GetTransactionByOrderID 根据订单号获取交易
func (r *LedgerRepository) GetTransactionByOrderID(ctx context.Context, orderID string) (*payment.Transaction, error) {
	var txn payment.Transaction
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 获取账户下全部交易流水，按创建时间倒序
func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID uint64) ([]payment.Transaction, error) {
	var txns []payment.Transaction
	err := r.db.WithContext(ctx).
		Where("student_payment_id = ?", accountID).
		Order("created_at DESC").
		Find(&txns).Error
	return txns, err
}

// FinalizeTransaction 将交易从 pending 迁移到终态（completed / failed）
// 条件更新保证单向迁移：谁先写入谁生效，后到的写入者拿到 false 并按幂等处理。
func (r *LedgerRepository) FinalizeTransaction(ctx context.Context, txnID uint64, status types.Status, paymentID string, paidAt *time.Time) (bool, error) {
	if status != types.StatusCompleted && status != types.StatusFailed {
		return false, types.ErrAlreadyFinalized
	}

	updates := map[string]interface{}{
		"status": string(status),
	}
	if paymentID != "" {
		updates["payment_id"] = paymentID
	}
	if paidAt != nil {
		updates["payment_date"] = paidAt
	}

	result := r.db.WithContext(ctx).
		Model(&payment.Transaction{}).
		Where("id = ? AND status = ?", txnID, string(payment.StatusPending)).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SumCompleted 汇总账户下已完成交易的净额
func (r *LedgerRepository) SumCompleted(ctx context.Context, accountID uint64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&payment.Transaction{}).
		Select("COALESCE(SUM(amount_paid), 0)").
		Where("student_payment_id = ? AND status = ?", accountID, string(payment.StatusCompleted)).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
