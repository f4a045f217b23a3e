package payment

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"campus/app/requests"
	"campus/pkg/payment/manual"
	"campus/pkg/payment/types"
	"campus/pkg/response"
)

// ProofController 线下缴费与凭证审核控制器
type ProofController struct {
	manualService *manual.Service
}

// NewProofController 创建凭证控制器
func NewProofController(service *manual.Service) *ProofController {
	return &ProofController{
		manualService: service,
	}
}

// Store 提交线下缴费（交易 + 凭证）
// POST /v1/payments/manual
func (pc *ProofController) Store(c *gin.Context) {
	req, err := requests.ValidateManualPayment(c)
	if err != nil {
		response.BadRequest(c, err)
		return
	}

	file, err := req.ProofFile.Open()
	if err != nil {
		response.ServerError(c, err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.ServerError(c, err)
		return
	}

	amount, _ := decimal.NewFromString(req.Amount)
	studentID := c.GetString("user_id")
	result, err := pc.manualService.CreatePayment(c.Request.Context(), &types.Request{
		StudentID:     studentID,
		CourseBatchID: req.CourseBatchID,
		Amount:        amount,
		ProofFileName: req.ProofFile.Filename,
		ProofFileType: req.ProofFile.Header.Get("Content-Type"),
		ProofData:     data,
		UploadedBy:    studentID,
	})
	if err != nil {
		abortByBusinessError(c, err)
		return
	}

	response.Created(c, result, "凭证已提交，等待审核")
}

// Review 管理员审核凭证
// PATCH /v1/payments/proofs/:id
func (pc *ProofController) Review(c *gin.Context) {
	proofID := cast.ToUint64(c.Param("id"))
	if proofID == 0 {
		response.Abort400(c, "凭证 ID 不合法")
		return
	}

	req, err := requests.ValidateProofReview(c)
	if err != nil {
		response.BadRequest(c, err)
		return
	}

	err = pc.manualService.Review(c.Request.Context(), proofID, req.Decision, c.GetString("user_id"))
	switch {
	case err == nil:
		response.Success200(c, "审核已处理")
	case errors.Is(err, types.ErrProofNotFound):
		response.Abort404(c, "凭证不存在")
	case errors.Is(err, types.ErrAlreadyFinalized):
		response.Abort409(c, "交易已到终态，不能打回待审核")
	default:
		response.ServerError(c, err)
	}
}
