// Package payment 缴费相关控制器
package payment

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"campus/app/requests"
	"campus/pkg/ledger"
	"campus/pkg/logger"
	"campus/pkg/payment/payhere"
	"campus/pkg/payment/types"
	"campus/pkg/response"
)

// PaymentController 缴费控制器
type PaymentController struct {
	paymentService types.Service    // 默认缴费渠道，由工厂按配置装配
	gateway        *payhere.Service // 网关专属入口：异步通知与订单核查
	ledgerService  *ledger.LedgerService
	repository     types.Repository
}

// NewPaymentController 创建缴费控制器
func NewPaymentController(paymentService types.Service, gateway *payhere.Service, ledgerService *ledger.LedgerService, repo types.Repository) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		gateway:        gateway,
		ledgerService:  ledgerService,
		repository:     repo,
	}
}

// Store 发起在线缴费
// POST /v1/payments
func (pc *PaymentController) Store(c *gin.Context) {
	req, err := requests.ValidateCreatePayment(c)
	if err != nil {
		response.BadRequest(c, err)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	result, err := pc.paymentService.CreatePayment(c.Request.Context(), &types.Request{
		StudentID:     c.GetString("user_id"),
		CourseBatchID: req.CourseBatchID,
		Amount:        amount,
		ReturnURL:     req.ReturnURL,
	})
	if err != nil {
		abortByBusinessError(c, err)
		return
	}

	response.Created(c, result)
}

// Notify 网关异步通知入口
// POST /v1/payments/notify
//
// 响应码决定网关行为：200 表示已妥善处理，非 200 网关会按策略重试。
// 金额不符是记录在案等人工核查的"已处理"结果，回 200 阻止无意义的重试。
func (pc *PaymentController) Notify(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		response.Abort400(c, "通知表单解析失败")
		return
	}

	notification, err := pc.gateway.ParseNotification(c.Request.PostForm)
	if err != nil {
		// 签名不过：通知原文不可信，拒收
		if errors.Is(err, types.ErrInvalidSignature) {
			response.Abort400(c, "通知签名校验失败")
			return
		}
		// 签名通过但载荷异常（如金额无法解析）：重试也不会变好，
		// 记录在案后按已处理响应，避免网关无休止重发
		logger.ErrorString("网关", "通知解析",
			fmt.Sprintf("签名有效但载荷异常: %v", err))
		response.Success200(c, "通知载荷异常，已记录待人工核查")
		return
	}

	err = pc.gateway.HandleNotify(c.Request.Context(), notification)
	switch {
	case err == nil:
		response.Success200(c)
	case errors.Is(err, types.ErrTransactionNotFound):
		// 非 200，让网关重试；可能是通知先于交易落库到达
		response.Abort404(c, "订单不存在")
	case errors.Is(err, types.ErrAmountMismatch):
		response.Success200(c, "金额不符，已记录待人工核查")
	default:
		response.ServerError(c, err)
	}
}

// Show 查询缴费账户与交易流水
// GET /v1/payments/:student_id/:batch_id
func (pc *PaymentController) Show(c *gin.Context) {
	studentID := c.Param("student_id")
	batchID := cast.ToUint64(c.Param("batch_id"))

	// 学员只能看自己的账户，管理员不受限
	if c.GetString("user_role") != "admin" && c.GetString("user_id") != studentID {
		response.Abort403(c)
		return
	}

	account, err := pc.repository.GetAccount(c.Request.Context(), studentID, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c, "缴费账户不存在")
			return
		}
		response.ServerError(c, err)
		return
	}

	transactions, err := pc.repository.ListTransactions(c.Request.Context(), account.ID)
	if err != nil {
		response.ServerError(c, err)
		return
	}

	response.Data(c, gin.H{
		"account":      account,
		"transactions": transactions,
	})
}

// Lookup 到网关侧主动核查订单，人工对账入口
// GET /v1/payments/orders/:order_id/gateway
func (pc *PaymentController) Lookup(c *gin.Context) {
	detail, err := pc.gateway.LookupPayment(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		if errors.Is(err, types.ErrTransactionNotFound) {
			response.Abort404(c, "网关侧查无此单")
			return
		}
		response.ServerError(c, err)
		return
	}
	response.Data(c, detail)
}

// Delete 删除缴费账户（连同交易流水与凭证）
// DELETE /v1/payments/accounts/:id
func (pc *PaymentController) Delete(c *gin.Context) {
	accountID := cast.ToUint64(c.Param("id"))
	if accountID == 0 {
		response.Abort400(c, "账户 ID 不合法")
		return
	}

	if err := pc.ledgerService.DeleteAccount(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Abort404(c, "缴费账户不存在")
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Success200(c, "账户已删除")
}

// ResyncBatch 整体重算批次营收汇总
// POST /v1/batches/:id/resync
func (pc *PaymentController) ResyncBatch(c *gin.Context) {
	batchID := cast.ToUint64(c.Param("id"))
	if batchID == 0 {
		response.Abort400(c, "批次 ID 不合法")
		return
	}

	if err := pc.ledgerService.ResyncBatch(c.Request.Context(), batchID); err != nil {
		if errors.Is(err, types.ErrBatchNotFound) {
			response.Abort404(c, "课程批次不存在")
			return
		}
		response.ServerError(c, err)
		return
	}

	response.Success200(c, "批次汇总已重算")
}

// abortByBusinessError 业务错误映射成 HTTP 状态码
func abortByBusinessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidAmount):
		response.Abort400(c, "缴费金额必须大于 0")
	case errors.Is(err, types.ErrBatchNotFound):
		response.Abort404(c, "课程批次不存在")
	case errors.Is(err, types.ErrCapacityExceeded):
		response.Abort409(c, "批次名额已满")
	case errors.Is(err, types.ErrAmountExceedsBalance):
		response.Abort409(c, "缴费金额超过剩余应缴金额")
	default:
		response.ServerError(c, err)
	}
}
