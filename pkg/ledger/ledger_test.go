package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"campus/app/models/batch"
	"campus/app/models/payment"
	"campus/app/models/proof"
	"campus/app/repositories"
	"campus/pkg/database"
	"campus/pkg/payment/types"
)

func TestMain(m *testing.M) {
	database.Connect(
		sqlite.Open("file:ledger_test?mode=memory&cache=shared"),
		gormlogger.Default.LogMode(gormlogger.Silent),
	)
	// 共享内存库必须限制为单连接，否则连接池会各开各的库
	database.SQLDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate([]interface{}{
		&batch.CourseBatch{},
		&batch.FeeSummary{},
		&payment.StudentPayment{},
		&payment.Transaction{},
		&proof.Proof{},
	}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// seedBatch 建一个批次（费用目录 + 营收汇总）
func seedBatch(t *testing.T, code string, capacity int, fee string) uint64 {
	t.Helper()

	courseBatch := &batch.CourseBatch{BatchCode: code, BatchFee: dec(t, fee)}
	require.NoError(t, database.DB.Create(courseBatch).Error)

	summary := &batch.FeeSummary{
		CourseBatchID:        courseBatch.ID,
		NoOfParticipants:     capacity,
		RevenueReceivedTotal: decimal.Zero,
	}
	require.NoError(t, database.DB.Create(summary).Error)
	return courseBatch.ID
}

// addTransaction 直接在账户下造一笔指定状态的交易
func addTransaction(t *testing.T, accountID uint64, orderID, amount, status string) *payment.Transaction {
	t.Helper()

	repo := repositories.NewLedgerRepository()
	txn := &payment.Transaction{
		StudentPaymentID: accountID,
		OrderID:          orderID,
		Amount:           dec(t, amount),
		PaymentMethod:    string(payment.MethodOnline),
	}
	require.NoError(t, repo.CreateTransaction(context.Background(), txn))

	if status != string(payment.StatusPending) {
		now := time.Now()
		ok, err := repo.FinalizeTransaction(context.Background(), txn.ID, types.Status(status), "", &now)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return txn
}

func loadAccount(t *testing.T, id uint64) *payment.StudentPayment {
	t.Helper()
	account, err := repositories.NewLedgerRepository().GetAccountByID(context.Background(), id)
	require.NoError(t, err)
	return account
}

func loadSummary(t *testing.T, batchID uint64) *batch.FeeSummary {
	t.Helper()
	summary, err := repositories.NewBatchRepository().GetSummary(context.Background(), batchID)
	require.NoError(t, err)
	return summary
}

func newService() *LedgerService {
	return NewLedgerService(repositories.NewBatchRepository())
}

func TestOpenAccount_FixesFullAmountFromBatchFee(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-01", 10, "5000.00")
	svc := newService()

	account, err := svc.OpenAccount(ctx, "student-open-1", batchID)
	require.NoError(t, err)
	assert.True(t, account.FullAmountPayable.Equal(dec(t, "5000.00")))
	assert.True(t, account.AmountPaid.IsZero())
	assert.False(t, account.PaymentCompleted)

	// 再次打开返回同一个账户
	again, err := svc.OpenAccount(ctx, "student-open-1", batchID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)
}

func TestOpenAccount_UnknownBatch(t *testing.T) {
	svc := newService()
	_, err := svc.OpenAccount(context.Background(), "student-x", 999999)
	assert.ErrorIs(t, err, types.ErrBatchNotFound)
}

// 已缴金额永远等于 completed 交易净额之和，failed / pending 不参与
func TestReconcile_SumOverCompletedOnly(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-02", 10, "5000.00")
	svc := newService()

	account, err := svc.OpenAccount(ctx, "student-sum", batchID)
	require.NoError(t, err)

	addTransaction(t, account.ID, "ORD-SUM-1", "2000.00", string(payment.StatusCompleted))
	addTransaction(t, account.ID, "ORD-SUM-2", "1000.00", string(payment.StatusCompleted))
	addTransaction(t, account.ID, "ORD-SUM-3", "500.00", string(payment.StatusFailed))
	addTransaction(t, account.ID, "ORD-SUM-4", "700.00", string(payment.StatusPending))

	require.NoError(t, svc.Reconcile(ctx, account.ID))

	reloaded := loadAccount(t, account.ID)
	assert.True(t, reloaded.AmountPaid.Equal(dec(t, "3000.00")), "amount_paid=%s", reloaded.AmountPaid)
	assert.False(t, reloaded.PaymentCompleted)
}

// 结清只把批次人数加一次，重复对账不再改变结果
func TestReconcile_IdempotentAfterSettlement(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-03", 10, "5000.00")
	svc := newService()

	account, err := svc.OpenAccount(ctx, "student-idem", batchID)
	require.NoError(t, err)

	addTransaction(t, account.ID, "ORD-IDEM-1", "3000.00", string(payment.StatusCompleted))
	addTransaction(t, account.ID, "ORD-IDEM-2", "2000.00", string(payment.StatusCompleted))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Reconcile(ctx, account.ID))
	}

	reloaded := loadAccount(t, account.ID)
	assert.True(t, reloaded.PaymentCompleted)
	assert.True(t, reloaded.AmountPaid.Equal(dec(t, "5000.00")))

	summary := loadSummary(t, batchID)
	assert.Equal(t, 1, summary.PaidNoOfParticipants)
	assert.True(t, summary.RevenueReceivedTotal.Equal(dec(t, "5000.00")),
		"revenue=%s", summary.RevenueReceivedTotal)
}

// 容量为 1 的批次：第一位学员结清后，第二位学员的首付被拒；
// 已有账户的学员继续分期不受名额限制
func TestOpenAccount_CapacityGate(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-04", 1, "1000.00")
	svc := newService()

	first, err := svc.OpenAccount(ctx, "student-cap-a", batchID)
	require.NoError(t, err)
	addTransaction(t, first.ID, "ORD-CAP-1", "1000.00", string(payment.StatusCompleted))
	require.NoError(t, svc.Reconcile(ctx, first.ID))

	summary := loadSummary(t, batchID)
	assert.True(t, summary.AllFeesCollectedStatus)

	// 新学员首付被名额拦截
	_, err = svc.OpenAccount(ctx, "student-cap-b", batchID)
	assert.ErrorIs(t, err, types.ErrCapacityExceeded)

	// 老账户不再过名额检查
	again, err := svc.OpenAccount(ctx, "student-cap-a", batchID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

// (student, batch) 唯一索引兜底：直接插第二条同键账户必须报唯一键冲突
func TestCreateAccount_DuplicateKeyTranslated(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-05", 10, "5000.00")
	repo := repositories.NewLedgerRepository()

	makeAccount := func() *payment.StudentPayment {
		return &payment.StudentPayment{
			StudentID:         "student-dup",
			CourseBatchID:     batchID,
			FullAmountPayable: dec(t, "5000.00"),
			AmountPaid:        decimal.Zero,
		}
	}
	require.NoError(t, repo.CreateAccount(ctx, makeAccount()))

	err := repo.CreateAccount(ctx, makeAccount())
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

// 并发打开同一（学员，批次）最终只留一条账户，输家拿到赢家的账户而不是错误
func TestOpenAccount_ConcurrentFirstPayment(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-06", 10, "5000.00")
	svc := newService()

	const workers = 4
	var wg sync.WaitGroup
	ids := make([]uint64, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := svc.OpenAccount(ctx, "student-race", batchID)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = account.ID
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	var count int64
	require.NoError(t, database.DB.Model(&payment.StudentPayment{}).
		Where("student_id = ? AND course_batch_id = ?", "student-race", batchID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// 整体重算必须能修复被破坏的汇总，结果与增量维护一致
func TestResyncBatch_RepairsDrift(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-07", 10, "2000.00")
	svc := newService()

	for i, student := range []string{"student-drift-a", "student-drift-b"} {
		account, err := svc.OpenAccount(ctx, student, batchID)
		require.NoError(t, err)
		addTransaction(t, account.ID, fmt.Sprintf("ORD-DRIFT-%d", i), "2000.00", string(payment.StatusCompleted))
		require.NoError(t, svc.Reconcile(ctx, account.ID))
	}

	incremental := loadSummary(t, batchID)
	require.Equal(t, 2, incremental.PaidNoOfParticipants)

	// 人为破坏物化值
	require.NoError(t, database.DB.Model(&batch.FeeSummary{}).
		Where("course_batch_id = ?", batchID).
		Updates(map[string]interface{}{
			"paid_no_of_participants":   99,
			"revenue_received_total":    decimal.Zero,
			"all_fees_collected_status": true,
		}).Error)

	require.NoError(t, svc.ResyncBatch(ctx, batchID))

	repaired := loadSummary(t, batchID)
	assert.Equal(t, incremental.PaidNoOfParticipants, repaired.PaidNoOfParticipants)
	assert.True(t, incremental.RevenueReceivedTotal.Equal(repaired.RevenueReceivedTotal))
	assert.Equal(t, incremental.AllFeesCollectedStatus, repaired.AllFeesCollectedStatus)
}

// 删除已结清账户：对称回退（退款模拟），人数减一、营收扣减
func TestDeleteAccount_SettledReversal(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-08", 2, "3000.00")
	svc := newService()

	account, err := svc.OpenAccount(ctx, "student-del-a", batchID)
	require.NoError(t, err)
	txn := addTransaction(t, account.ID, "ORD-DEL-1", "3000.00", string(payment.StatusCompleted))
	require.NoError(t, svc.Reconcile(ctx, account.ID))
	require.Equal(t, 1, loadSummary(t, batchID).PaidNoOfParticipants)

	require.NoError(t, svc.DeleteAccount(ctx, account.ID))

	summary := loadSummary(t, batchID)
	assert.Equal(t, 0, summary.PaidNoOfParticipants)
	assert.True(t, summary.RevenueReceivedTotal.IsZero())
	assert.False(t, summary.AllFeesCollectedStatus)

	// 账户和流水都被清掉
	_, err = repositories.NewLedgerRepository().GetAccountByID(ctx, account.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = repositories.NewLedgerRepository().GetTransactionByOrderID(ctx, txn.OrderID)
	assert.ErrorIs(t, err, types.ErrTransactionNotFound)
}

// 删除部分缴清账户：走整体重算路径，汇总保持自洽
func TestDeleteAccount_PartialResync(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "NB-2026-09", 5, "5000.00")
	svc := newService()

	settled, err := svc.OpenAccount(ctx, "student-del-b", batchID)
	require.NoError(t, err)
	addTransaction(t, settled.ID, "ORD-DEL-2", "5000.00", string(payment.StatusCompleted))
	require.NoError(t, svc.Reconcile(ctx, settled.ID))

	partial, err := svc.OpenAccount(ctx, "student-del-c", batchID)
	require.NoError(t, err)
	addTransaction(t, partial.ID, "ORD-DEL-3", "1000.00", string(payment.StatusCompleted))
	require.NoError(t, svc.Reconcile(ctx, partial.ID))

	require.NoError(t, svc.DeleteAccount(ctx, partial.ID))

	summary := loadSummary(t, batchID)
	assert.Equal(t, 1, summary.PaidNoOfParticipants)
	assert.True(t, summary.RevenueReceivedTotal.Equal(dec(t, "5000.00")))
}
