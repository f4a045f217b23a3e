package types

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"campus/app/models/payment"
)

// Provider 缴费渠道类型
type Provider string

const (
	ProviderPayhere Provider = "payhere" // 在线网关
	ProviderManual  Provider = "manual"  // 线下转账 + 凭证审核
)

// Status 交易状态（与模型保持一致）
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// 业务错误，控制器据此映射 HTTP 状态码
var (
	// ErrBatchNotFound 批次不存在或未配置营收汇总
	ErrBatchNotFound = errors.New("course batch not found")
	// ErrCapacityExceeded 批次名额已满，仅首付受此约束
	ErrCapacityExceeded = errors.New("batch capacity exceeded")
	// ErrAmountExceedsBalance 缴费净额超过账户剩余应缴金额
	ErrAmountExceedsBalance = errors.New("amount exceeds remaining balance")
	// ErrInvalidAmount 金额非法（非正数或格式错误）
	ErrInvalidAmount = errors.New("invalid payment amount")
	// ErrTransactionNotFound 网关通知携带的 order_id 无法回溯到任何交易。
	// 必须以非 200 响应，让网关按重试策略再次投递。
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrAmountMismatch 网关通知毛额换算出的净额与交易记录不符，
	// 交易保持 pending 等待人工核查，绝不静默完成或静默失败。
	ErrAmountMismatch = errors.New("notified amount does not match transaction")
	// ErrInvalidSignature 网关通知签名校验失败，通知原文不可信，直接丢弃
	ErrInvalidSignature = errors.New("invalid notification signature")
	// ErrProofNotFound 凭证不存在
	ErrProofNotFound = errors.New("payment proof not found")
	// ErrAlreadyFinalized 交易已到终态，不允许再次变更
	ErrAlreadyFinalized = errors.New("transaction already finalized")
)

// Request 缴费请求参数
type Request struct {
	StudentID     string          `json:"student_id"`
	CourseBatchID uint64          `json:"course_batch_id"`
	Amount        decimal.Decimal `json:"amount"` // 净额
	ReturnURL     string          `json:"return_url"`

	// 线下缴费附带的凭证信息，在线渠道忽略
	ProofFileName string `json:"proof_file_name,omitempty"`
	ProofFileType string `json:"proof_file_type,omitempty"`
	ProofData     []byte `json:"-"`
	UploadedBy    string `json:"-"`
}

// Result 缴费发起结果
type Result struct {
	OrderID     string            `json:"order_id"`
	CheckoutURL string            `json:"checkout_url,omitempty"` // 在线渠道的网关收银台地址
	Fields      map[string]string `json:"fields,omitempty"`       // 提交到收银台的表单字段（含签名）
	ProofID     uint64            `json:"proof_id,omitempty"`     // 线下渠道创建的凭证
	GrossAmount string            `json:"gross_amount,omitempty"` // 付款人实际被扣金额
	Currency    string            `json:"currency,omitempty"`
}

// Notification 网关异步通知解析结果
type Notification struct {
	StatusCode  string          // "2" 表示成功，其余一律视为失败/取消
	OrderID     string
	PaymentID   string          // 网关分配的支付流水号
	GrossAmount decimal.Decimal // 通知中的毛额
	StudentID   string          // 商户自定义字段回传的学员身份
}

// Service 缴费服务接口
type Service interface {
	CreatePayment(ctx context.Context, req *Request) (*Result, error)
}

// Repository 台账仓储接口
// 交易只允许 pending → 终态 的单向迁移，FinalizeTransaction 返回 false
// 表示另一个写入者已经先行到达终态，调用方应按幂等处理。
type Repository interface {
	CreateAccount(ctx context.Context, account *payment.StudentPayment) error
	GetAccount(ctx context.Context, studentID string, batchID uint64) (*payment.StudentPayment, error)
	GetAccountByID(ctx context.Context, id uint64) (*payment.StudentPayment, error)
	CreateTransaction(ctx context.Context, txn *payment.Transaction) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*payment.Transaction, error)
	ListTransactions(ctx context.Context, accountID uint64) ([]payment.Transaction, error)
	FinalizeTransaction(ctx context.Context, txnID uint64, status Status, paymentID string, paidAt *time.Time) (bool, error)
	SumCompleted(ctx context.Context, accountID uint64) (decimal.Decimal, error)
}

// Reconciler 对账引擎接口
type Reconciler interface {
	OpenAccount(ctx context.Context, studentID string, batchID uint64) (*payment.StudentPayment, error)
	Reconcile(ctx context.Context, accountID uint64) error
}

// BatchCatalog 课程批次费用查询，批次子系统的协作接口
type BatchCatalog interface {
	FullAmountPayable(ctx context.Context, batchID uint64) (decimal.Decimal, error)
}

// ReceiptEvent 交易完成后的回执事件（异步投递，失败不影响主流程）
type ReceiptEvent struct {
	OrderID     string    `json:"order_id"`
	StudentID   string    `json:"student_id"`
	BatchID     uint64    `json:"batch_id"`
	Amount      string    `json:"amount"`
	Method      string    `json:"method"`
	CompletedAt time.Time `json:"completed_at"`
}

// ReceiptNotifier 回执投递接口
type ReceiptNotifier interface {
	PaymentCompleted(ctx context.Context, event ReceiptEvent)
}
