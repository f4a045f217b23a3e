// Package manual 线下转账缴费渠道
//
// 学员线下转账后上传凭证，管理员审核通过交易才算完成。
// 交易同样以 pending 入库，审核就是这条渠道的"异步通知"。
package manual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"campus/app/models/payment"
	"campus/app/models/proof"
	"campus/pkg/database"
	"campus/pkg/fees"
	"campus/pkg/logger"
	"campus/pkg/payment/types"
	"campus/pkg/payment/utils"
	"campus/pkg/storage"
)

// Service 线下缴费服务
type Service struct {
	db         *gorm.DB
	repository types.Repository
	ledger     types.Reconciler
	store      *storage.ProofStore
	notifier   types.ReceiptNotifier
}

// NewService 创建线下缴费服务
func NewService(repo types.Repository, ledger types.Reconciler, store *storage.ProofStore, notifier types.ReceiptNotifier) *Service {
	return &Service{
		db:         database.DB,
		repository: repo,
		ledger:     ledger,
		store:      store,
		notifier:   notifier,
	}
}

// CreatePayment 提交一笔线下缴费（交易 + 待审核凭证）
//
// 凭证文件先落存储，交易和凭证记录再一起入库；入库失败时清理文件，
// 避免留下无主文件。
func (s *Service) CreatePayment(ctx context.Context, req *types.Request) (*types.Result, error) {
	net := fees.NewNet(req.Amount)
	if !net.IsValid() {
		return nil, types.ErrInvalidAmount
	}
	if len(req.ProofData) == 0 {
		return nil, fmt.Errorf("proof file is required for manual payment")
	}

	account, err := s.ledger.OpenAccount(ctx, req.StudentID, req.CourseBatchID)
	if err != nil {
		return nil, err
	}
	if net.Decimal().GreaterThan(account.RemainingBalance()) {
		return nil, types.ErrAmountExceedsBalance
	}

	filePath, err := s.store.Save(req.ProofFileName, req.ProofData)
	if err != nil {
		return nil, err
	}

	orderID := utils.GenerateOrderID()
	txn := &payment.Transaction{
		StudentPaymentID: account.ID,
		OrderID:          orderID,
		Amount:           net.Decimal(),
		Status:           string(payment.StatusPending),
		PaymentMethod:    string(payment.MethodManual),
	}
	record := &proof.Proof{
		FilePath:   filePath,
		FileName:   req.ProofFileName,
		FileType:   req.ProofFileType,
		UploadedBy: req.UploadedBy,
		Status:     string(proof.StatusPending),
		IsActive:   true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := txn.Validate(); err != nil {
			return err
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("create manual transaction error: %w", err)
		}
		record.TransactionID = txn.ID
		if err := record.Validate(); err != nil {
			return err
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("create payment proof error: %w", err)
		}
		return nil
	})
	if err != nil {
		if rmErr := s.store.Remove(filePath); rmErr != nil {
			logger.WarnString("线下缴费", "清理凭证",
				fmt.Sprintf("凭证文件 %s 清理失败: %v", filePath, rmErr))
		}
		return nil, err
	}

	return &types.Result{
		OrderID: orderID,
		ProofID: record.ID,
	}, nil
}

// Review 管理员审核凭证
//
//   - approved：凭证置为通过，交易迁移到 completed 并触发对账；
//   - rejected：凭证置为驳回并失效，交易落为 failed，学员需重新提交；
//   - pending：打回待审核，仅在交易还未到终态时允许。
//
// 交易终态迁移是条件更新，重复审核拿到 false 后按幂等处理，不会重复记账。
func (s *Service) Review(ctx context.Context, proofID uint64, decision, reviewer string) error {
	if !proof.ValidDecision(decision) {
		return fmt.Errorf("invalid review decision: %s", decision)
	}

	var record proof.Proof
	if err := s.db.WithContext(ctx).First(&record, proofID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ErrProofNotFound
		}
		return fmt.Errorf("load payment proof error: %w", err)
	}

	var txn payment.Transaction
	if err := s.db.WithContext(ctx).First(&txn, record.TransactionID).Error; err != nil {
		return fmt.Errorf("load proof transaction error: %w", err)
	}

	switch proof.Status(decision) {
	case proof.StatusApproved:
		return s.approve(ctx, &record, &txn, reviewer)
	case proof.StatusRejected:
		return s.reject(ctx, &record, &txn, reviewer)
	default:
		if txn.IsFinalized() {
			return types.ErrAlreadyFinalized
		}
		return s.db.WithContext(ctx).Model(&record).
			Update("status", string(proof.StatusPending)).Error
	}
}

func (s *Service) approve(ctx context.Context, record *proof.Proof, txn *payment.Transaction, reviewer string) error {
	// 先做交易的终态迁移，成功后才把凭证置为通过，
	// 避免凭证显示 approved 而交易其实停在别的终态
	now := time.Now()
	ok, err := s.repository.FinalizeTransaction(ctx, txn.ID, types.StatusCompleted, "", &now)
	if err != nil {
		return fmt.Errorf("finalize manual transaction error: %w", err)
	}
	if !ok {
		// 交易已有终态，按终态裁决
		current, err := s.repository.GetTransactionByOrderID(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		if !current.IsCompleted() {
			// 已驳回失败的交易不允许翻案，学员应带新凭证重新提交
			return types.ErrAlreadyFinalized
		}
		logger.InfoString("线下缴费", "重复审核",
			fmt.Sprintf("订单 %s 已完成，忽略本次通过", txn.OrderID))
		// 上一次审核可能在更新凭证前中断，这里补平凭证状态
		if !record.IsApproved() {
			return s.markApproved(ctx, record)
		}
		return nil
	}

	if err := s.markApproved(ctx, record); err != nil {
		return err
	}

	if err := s.ledger.Reconcile(ctx, txn.StudentPaymentID); err != nil {
		return err
	}

	s.emitReceipt(ctx, txn, now)
	logger.InfoString("线下缴费", "审核通过",
		fmt.Sprintf("订单 %s 由 %s 审核通过", txn.OrderID, reviewer))
	return nil
}

func (s *Service) markApproved(ctx context.Context, record *proof.Proof) error {
	if err := s.db.WithContext(ctx).Model(record).
		Update("status", string(proof.StatusApproved)).Error; err != nil {
		return fmt.Errorf("update proof status error: %w", err)
	}
	return nil
}

func (s *Service) reject(ctx context.Context, record *proof.Proof, txn *payment.Transaction, reviewer string) error {
	ok, err := s.repository.FinalizeTransaction(ctx, txn.ID, types.StatusFailed, "", nil)
	if err != nil {
		return fmt.Errorf("finalize manual transaction error: %w", err)
	}
	if !ok {
		current, err := s.repository.GetTransactionByOrderID(ctx, txn.OrderID)
		if err != nil {
			return err
		}
		// 已完成的交易不能驳回，账务更正走账户删除的管理端流程
		if current.IsCompleted() {
			return types.ErrAlreadyFinalized
		}
	}

	if err := s.db.WithContext(ctx).Model(record).
		Updates(map[string]interface{}{
			"status":    string(proof.StatusRejected),
			"is_active": false,
		}).Error; err != nil {
		return fmt.Errorf("update proof status error: %w", err)
	}

	logger.InfoString("线下缴费", "审核驳回",
		fmt.Sprintf("订单 %s 由 %s 驳回，学员需重新提交凭证", txn.OrderID, reviewer))
	return nil
}

func (s *Service) emitReceipt(ctx context.Context, txn *payment.Transaction, completedAt time.Time) {
	if s.notifier == nil {
		return
	}

	account, err := s.repository.GetAccountByID(ctx, txn.StudentPaymentID)
	if err != nil {
		logger.WarnString("线下缴费", "回执",
			fmt.Sprintf("订单 %s 读取账户失败，放弃回执: %v", txn.OrderID, err))
		return
	}

	s.notifier.PaymentCompleted(ctx, types.ReceiptEvent{
		OrderID:     txn.OrderID,
		StudentID:   account.StudentID,
		BatchID:     account.CourseBatchID,
		Amount:      txn.Amount.StringFixed(2),
		Method:      txn.PaymentMethod,
		CompletedAt: completedAt,
	})
}
