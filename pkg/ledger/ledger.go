// Package ledger 缴费台账对账引擎
//
// 账户的 amount_paid / payment_completed 与批次营收汇总都是派生状态，
// 唯一的写入入口在这里：永远从交易流水整体重算，而不是盲目累加，
// 因此对账可以安全地重入、重试，崩溃后再跑一遍结果不变。
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"campus/app/models/batch"
	"campus/app/models/payment"
	"campus/app/models/proof"
	"campus/pkg/database"
	"campus/pkg/logger"
	"campus/pkg/payment/types"
)

// LedgerService 对账引擎
type LedgerService struct {
	db      *gorm.DB
	catalog types.BatchCatalog
}

// NewLedgerService 创建对账引擎实例
func NewLedgerService(catalog types.BatchCatalog) *LedgerService {
	return &LedgerService{
		db:      database.DB,
		catalog: catalog,
	}
}

// OpenAccount 获取或创建（学员，批次）的缴费账户
//
// 名额检查只作用于首付：账户一旦存在，说明座位在开户时已被占用，
// 后续分期直接放行。名额检查是 check-then-act，靠唯一索引兜底：
// 并发首付时输掉竞态的一方撞唯一索引，重新查询已存在的账户继续流程，
// 不把底层错误抛给用户。
func (s *LedgerService) OpenAccount(ctx context.Context, studentID string, batchID uint64) (*payment.StudentPayment, error) {
	// 1. 已有账户直接返回，不再做名额检查
	var existing payment.StudentPayment
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND course_batch_id = ?", studentID, batchID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query payment account error: %w", err)
	}

	// 2. 首付需要通过名额检查
	var summary batch.FeeSummary
	err = s.db.WithContext(ctx).
		Where("course_batch_id = ?", batchID).
		First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrBatchNotFound
		}
		return nil, fmt.Errorf("query batch summary error: %w", err)
	}
	if summary.IsFull() {
		return nil, types.ErrCapacityExceeded
	}

	// 3. 应缴全额由批次费用一次性固化
	fullAmount, err := s.catalog.FullAmountPayable(ctx, batchID)
	if err != nil {
		return nil, err
	}

	account := &payment.StudentPayment{
		StudentID:         studentID,
		CourseBatchID:     batchID,
		FullAmountPayable: fullAmount,
		AmountPaid:        decimal.Zero,
		PaymentCompleted:  false,
	}
	err = s.db.WithContext(ctx).Create(account).Error
	if err == nil {
		return account, nil
	}

	// 4. 撞唯一索引说明另一个请求先开了户，改用已存在的账户
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		var winner payment.StudentPayment
		if ferr := s.db.WithContext(ctx).
			Where("student_id = ? AND course_batch_id = ?", studentID, batchID).
			First(&winner).Error; ferr != nil {
			return nil, fmt.Errorf("refetch payment account error: %w", ferr)
		}
		return &winner, nil
	}
	return nil, fmt.Errorf("create payment account error: %w", err)
}

// Reconcile 重算账户的已缴金额与结清状态
//
// 算法：汇总该账户下所有 completed 交易的净额，写回 amount_paid；
// 与应缴全额相等则置结清。结清状态发生翻转时整体重算批次汇总
// （而不是加一减一），漏掉过一次更新也能在下一次对账时自愈。
func (s *LedgerService) Reconcile(ctx context.Context, accountID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account payment.StudentPayment
		if err := tx.First(&account, accountID).Error; err != nil {
			return fmt.Errorf("load payment account error: %w", err)
		}

		sum, err := sumCompletedTx(tx, accountID)
		if err != nil {
			return err
		}

		completed := sum.Equal(account.FullAmountPayable)
		if err := tx.Model(&payment.StudentPayment{}).
			Where("id = ?", accountID).
			Updates(map[string]interface{}{
				"amount_paid":       sum,
				"payment_completed": completed,
			}).Error; err != nil {
			return fmt.Errorf("update payment account error: %w", err)
		}

		// 结清状态翻转才需要动批次汇总
		if completed != account.PaymentCompleted {
			return resyncBatchTx(tx, account.CourseBatchID)
		}
		return nil
	})
}

// ResyncBatch 从缴费账户整体重算批次营收汇总，管理端的修复入口
// 结果必须与增量维护一致，这是汇总数据正确性的锚点。
func (s *LedgerService) ResyncBatch(ctx context.Context, batchID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return resyncBatchTx(tx, batchID)
	})
}

// DeleteAccount 管理端删除缴费账户（连同交易流水与凭证）
//
// 已结清账户做对称回退（人数减一、营收减去已缴金额），这只是"退款模拟"，
// 并不是经过核验的真实资金回退；部分缴清的账户删除后整体重算批次汇总。
// TODO: 两条路径在并发删除下可能偏离整体重算的结果，待产品确认口径后统一。
func (s *LedgerService) DeleteAccount(ctx context.Context, accountID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account payment.StudentPayment
		if err := tx.First(&account, accountID).Error; err != nil {
			return fmt.Errorf("load payment account error: %w", err)
		}

		// 先收集交易，再级联清理凭证、流水、账户
		var txnIDs []uint64
		if err := tx.Model(&payment.Transaction{}).
			Where("student_payment_id = ?", accountID).
			Pluck("id", &txnIDs).Error; err != nil {
			return fmt.Errorf("collect transactions error: %w", err)
		}
		if len(txnIDs) > 0 {
			if err := tx.Where("transaction_id IN ?", txnIDs).
				Delete(&proof.Proof{}).Error; err != nil {
				return fmt.Errorf("delete proofs error: %w", err)
			}
			if err := tx.Where("student_payment_id = ?", accountID).
				Delete(&payment.Transaction{}).Error; err != nil {
				return fmt.Errorf("delete transactions error: %w", err)
			}
		}
		if err := tx.Delete(&payment.StudentPayment{}, accountID).Error; err != nil {
			return fmt.Errorf("delete payment account error: %w", err)
		}

		if account.PaymentCompleted {
			// 退款模拟：对称回退，不做整体重算
			logger.WarnString("台账", "删除账户",
				fmt.Sprintf("账户 %d 已结清，按退款模拟回退批次 %d 的汇总（非真实资金回退）", accountID, account.CourseBatchID))

			if err := tx.Model(&batch.FeeSummary{}).
				Where("course_batch_id = ?", account.CourseBatchID).
				Updates(map[string]interface{}{
					"paid_no_of_participants": gorm.Expr("paid_no_of_participants - 1"),
					"revenue_received_total":  gorm.Expr("revenue_received_total - ?", account.AmountPaid),
				}).Error; err != nil {
				return fmt.Errorf("decrement batch summary error: %w", err)
			}

			// 回退后重新评估满额标记
			var summary batch.FeeSummary
			if err := tx.Where("course_batch_id = ?", account.CourseBatchID).
				First(&summary).Error; err != nil {
				return fmt.Errorf("reload batch summary error: %w", err)
			}
			return tx.Model(&batch.FeeSummary{}).
				Where("course_batch_id = ?", account.CourseBatchID).
				Update("all_fees_collected_status", summary.IsFull()).Error
		}

		// 部分缴清的账户，删除后整体重算
		return resyncBatchTx(tx, account.CourseBatchID)
	})
}

// sumCompletedTx 汇总账户下 completed 交易的净额
func sumCompletedTx(tx *gorm.DB, accountID uint64) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := tx.Model(&payment.Transaction{}).
		Select("COALESCE(SUM(amount_paid), 0)").
		Where("student_payment_id = ? AND status = ?", accountID, string(payment.StatusCompleted)).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum completed transactions error: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// resyncBatchTx 批次汇总整体重算：已结清账户的数量与已缴金额之和
func resyncBatchTx(tx *gorm.DB, batchID uint64) error {
	var summary batch.FeeSummary
	if err := tx.Where("course_batch_id = ?", batchID).
		First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrBatchNotFound
		}
		return fmt.Errorf("load batch summary error: %w", err)
	}

	var paidCount int64
	if err := tx.Model(&payment.StudentPayment{}).
		Where("course_batch_id = ? AND payment_completed = ?", batchID, true).
		Count(&paidCount).Error; err != nil {
		return fmt.Errorf("count settled accounts error: %w", err)
	}

	var revenue decimal.NullDecimal
	if err := tx.Model(&payment.StudentPayment{}).
		Select("COALESCE(SUM(amount_paid), 0)").
		Where("course_batch_id = ? AND payment_completed = ?", batchID, true).
		Scan(&revenue).Error; err != nil {
		return fmt.Errorf("sum settled accounts error: %w", err)
	}
	revenueTotal := decimal.Zero
	if revenue.Valid {
		revenueTotal = revenue.Decimal
	}

	return tx.Model(&batch.FeeSummary{}).
		Where("course_batch_id = ?", batchID).
		Updates(map[string]interface{}{
			"paid_no_of_participants":   paidCount,
			"revenue_received_total":    revenueTotal,
			"all_fees_collected_status": paidCount >= int64(summary.NoOfParticipants),
		}).Error
}
