package manual

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"campus/app/models/batch"
	"campus/app/models/payment"
	"campus/app/models/proof"
	"campus/app/repositories"
	"campus/pkg/database"
	"campus/pkg/ledger"
	"campus/pkg/payment/types"
	"campus/pkg/storage"
)

func TestMain(m *testing.M) {
	database.Connect(
		sqlite.Open("file:manual_test?mode=memory&cache=shared"),
		gormlogger.Default.LogMode(gormlogger.Silent),
	)
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

func newTestService() (*Service, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewService(
		repositories.NewLedgerRepository(),
		ledger.NewLedgerService(repositories.NewBatchRepository()),
		storage.NewProofStoreWithFs(fs, "proofs"),
		nil,
	), fs
}

func seedBatch(t *testing.T, code string, capacity int, fee string) uint64 {
	t.Helper()

	feeDec, err := decimal.NewFromString(fee)
	require.NoError(t, err)

	courseBatch := &batch.CourseBatch{BatchCode: code, BatchFee: feeDec}
	require.NoError(t, database.DB.Create(courseBatch).Error)
	require.NoError(t, database.DB.Create(&batch.FeeSummary{
		CourseBatchID:        courseBatch.ID,
		NoOfParticipants:     capacity,
		RevenueReceivedTotal: decimal.Zero,
	}).Error)
	return courseBatch.ID
}

func submitPayment(t *testing.T, svc *Service, student string, batchID uint64, amount string) *types.Result {
	t.Helper()

	result, err := svc.CreatePayment(context.Background(), &types.Request{
		StudentID:     student,
		CourseBatchID: batchID,
		Amount:        decimal.RequireFromString(amount),
		ProofFileName: "slip.jpg",
		ProofFileType: "image/jpeg",
		ProofData:     []byte("fake-jpeg-bytes"),
		UploadedBy:    student,
	})
	require.NoError(t, err)
	return result
}

func loadProof(t *testing.T, id uint64) *proof.Proof {
	t.Helper()
	var record proof.Proof
	require.NoError(t, database.DB.First(&record, id).Error)
	return &record
}

func loadTransaction(t *testing.T, orderID string) *payment.Transaction {
	t.Helper()
	txn, err := repositories.NewLedgerRepository().GetTransactionByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	return txn
}

func TestCreatePayment_StoresProofAndPendingTransaction(t *testing.T) {
	batchID := seedBatch(t, "MN-2026-01", 10, "5000.00")
	svc, fs := newTestService()

	result := submitPayment(t, svc, "student-mn-1", batchID, "1500.00")
	require.NotZero(t, result.ProofID)

	txn := loadTransaction(t, result.OrderID)
	assert.True(t, txn.IsPending())
	assert.Equal(t, string(payment.MethodManual), txn.PaymentMethod)

	record := loadProof(t, result.ProofID)
	assert.True(t, record.IsPending())
	assert.True(t, record.IsActive)
	assert.Equal(t, txn.ID, record.TransactionID)

	// 凭证文件确实落了存储
	data, err := afero.ReadFile(fs, record.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-jpeg-bytes"), data)
}

func TestCreatePayment_RequiresProofFile(t *testing.T) {
	batchID := seedBatch(t, "MN-2026-02", 10, "5000.00")
	svc, _ := newTestService()

	_, err := svc.CreatePayment(context.Background(), &types.Request{
		StudentID:     "student-mn-2",
		CourseBatchID: batchID,
		Amount:        decimal.RequireFromString("1000.00"),
		UploadedBy:    "student-mn-2",
	})
	assert.Error(t, err)
}

func TestReview_ApproveCompletesAndReconciles(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-03", 10, "2000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-3", batchID, "2000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-1"))

	record := loadProof(t, result.ProofID)
	assert.True(t, record.IsApproved())

	txn := loadTransaction(t, result.OrderID)
	assert.True(t, txn.IsCompleted())
	require.NotNil(t, txn.PaymentDate)

	// 全额审核通过，账户结清并计入批次汇总
	account, err := repositories.NewLedgerRepository().GetAccountByID(ctx, txn.StudentPaymentID)
	require.NoError(t, err)
	assert.True(t, account.PaymentCompleted)

	summary, err := repositories.NewBatchRepository().GetSummary(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PaidNoOfParticipants)
}

func TestReview_RejectDeactivatesProofAndFailsTransaction(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-04", 10, "2000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-4", batchID, "2000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusRejected), "admin-1"))

	record := loadProof(t, result.ProofID)
	assert.True(t, record.IsRejected())
	assert.False(t, record.IsActive)

	txn := loadTransaction(t, result.OrderID)
	assert.True(t, txn.IsFailed())

	// 驳回不影响账户余额
	account, err := repositories.NewLedgerRepository().GetAccountByID(ctx, txn.StudentPaymentID)
	require.NoError(t, err)
	assert.True(t, account.AmountPaid.IsZero())

	// 学员可以带新凭证重新提交
	again := submitPayment(t, svc, "student-mn-4", batchID, "2000.00")
	assert.NotEqual(t, result.OrderID, again.OrderID)
}

// 重复审核通过按幂等处理，不会把同一笔钱记两次
func TestReview_DoubleApproveIdempotent(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-05", 10, "3000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-5", batchID, "3000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-1"))
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-2"))

	txn := loadTransaction(t, result.OrderID)
	account, err := repositories.NewLedgerRepository().GetAccountByID(ctx, txn.StudentPaymentID)
	require.NoError(t, err)
	assert.True(t, account.AmountPaid.Equal(decimal.RequireFromString("3000.00")))

	summary, err := repositories.NewBatchRepository().GetSummary(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PaidNoOfParticipants)
}

// 交易已到终态后不允许打回待审核
func TestReview_ResetAfterFinalizedRejected(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-06", 10, "1000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-6", batchID, "1000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-1"))

	err := svc.Review(ctx, result.ProofID, string(proof.StatusPending), "admin-1")
	assert.ErrorIs(t, err, types.ErrAlreadyFinalized)
}

// 已驳回失败的交易不允许翻案通过，凭证保持驳回态
func TestReview_ApproveAfterRejectionRefused(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-07", 10, "2000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-7", batchID, "2000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusRejected), "admin-1"))

	err := svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-2")
	assert.ErrorIs(t, err, types.ErrAlreadyFinalized)

	// 交易保持失败终态，凭证不会被改成 approved
	txn := loadTransaction(t, result.OrderID)
	assert.True(t, txn.IsFailed())

	record := loadProof(t, result.ProofID)
	assert.True(t, record.IsRejected())
	assert.False(t, record.IsActive)

	account, err := repositories.NewLedgerRepository().GetAccountByID(ctx, txn.StudentPaymentID)
	require.NoError(t, err)
	assert.True(t, account.AmountPaid.IsZero())
}

// 已完成的交易不能驳回，账务更正走账户删除的管理端流程
func TestReview_RejectAfterApprovalRefused(t *testing.T) {
	ctx := context.Background()
	batchID := seedBatch(t, "MN-2026-08", 10, "2000.00")
	svc, _ := newTestService()

	result := submitPayment(t, svc, "student-mn-8", batchID, "2000.00")
	require.NoError(t, svc.Review(ctx, result.ProofID, string(proof.StatusApproved), "admin-1"))

	err := svc.Review(ctx, result.ProofID, string(proof.StatusRejected), "admin-2")
	assert.ErrorIs(t, err, types.ErrAlreadyFinalized)

	record := loadProof(t, result.ProofID)
	assert.True(t, record.IsApproved())
	assert.True(t, record.IsActive)

	txn := loadTransaction(t, result.OrderID)
	account, err := repositories.NewLedgerRepository().GetAccountByID(ctx, txn.StudentPaymentID)
	require.NoError(t, err)
	assert.True(t, account.AmountPaid.Equal(decimal.RequireFromString("2000.00")))
}

func TestReview_InvalidDecision(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Review(context.Background(), 1, "maybe", "admin-1")
	assert.Error(t, err)
}

func TestReview_ProofNotFound(t *testing.T) {
	svc, _ := newTestService()
	err := svc.Review(context.Background(), 999999, string(proof.StatusApproved), "admin-1")
	assert.ErrorIs(t, err, types.ErrProofNotFound)
}
