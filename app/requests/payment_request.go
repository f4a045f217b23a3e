package requests

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/thedevsaddam/govalidator"
)

// CreatePaymentRequest 在线缴费请求
type CreatePaymentRequest struct {
	CourseBatchID uint64 `json:"course_batch_id" valid:"course_batch_id"`
	Amount        string `json:"amount" valid:"amount"`
	ReturnURL     string `json:"return_url" valid:"return_url"`
}

// ValidateCreatePayment 校验在线缴费请求
func ValidateCreatePayment(c *gin.Context) (*CreatePaymentRequest, error) {
	rules := govalidator.MapData{
		"course_batch_id": []string{"required", "numeric"},
		"amount":          []string{"required"},
		"return_url":      []string{"url"},
	}
	messages := govalidator.MapData{
		"course_batch_id": []string{
			"required:课程批次不能为空",
			"numeric:课程批次必须是数字",
		},
		"amount": []string{
			"required:缴费金额不能为空",
		},
		"return_url": []string{
			"url:回跳地址格式不正确",
		},
	}

	req, err := ValidateRequest[CreatePaymentRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}

	if _, err := decimal.NewFromString(req.Amount); err != nil {
		return nil, fmt.Errorf("缴费金额格式不正确: %s", req.Amount)
	}
	return &req, nil
}

// ManualPaymentRequest 线下缴费提交（multipart 表单）
type ManualPaymentRequest struct {
	CourseBatchID uint64
	Amount        string
	ProofFile     *multipart.FileHeader
}

// 凭证允许的扩展名
var allowedProofExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".pdf": true,
}

// ProofMaxSize 凭证文件大小上限
const ProofMaxSize = 5 << 20 // 5 MB

// ValidateManualPayment 校验线下缴费表单
func ValidateManualPayment(c *gin.Context) (*ManualPaymentRequest, error) {
	batchID := cast.ToUint64(c.PostForm("course_batch_id"))
	if batchID == 0 {
		return nil, fmt.Errorf("课程批次不能为空")
	}

	amount := c.PostForm("amount")
	if amount == "" {
		return nil, fmt.Errorf("缴费金额不能为空")
	}
	if _, err := decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("缴费金额格式不正确: %s", amount)
	}

	file, err := c.FormFile("proof")
	if err != nil {
		return nil, fmt.Errorf("缴费凭证不能为空")
	}
	if file.Size > ProofMaxSize {
		return nil, fmt.Errorf("凭证文件不能超过 5MB")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedProofExts[ext] {
		return nil, fmt.Errorf("凭证仅支持 jpg/jpeg/png/pdf 格式")
	}

	return &ManualPaymentRequest{
		CourseBatchID: batchID,
		Amount:        amount,
		ProofFile:     file,
	}, nil
}

// ProofReviewRequest 凭证审核请求
type ProofReviewRequest struct {
	Decision string `json:"decision" valid:"decision"`
}

// ValidateProofReview 校验凭证审核请求
func ValidateProofReview(c *gin.Context) (*ProofReviewRequest, error) {
	rules := govalidator.MapData{
		"decision": []string{"required", "in:approved,rejected,pending"},
	}
	messages := govalidator.MapData{
		"decision": []string{
			"required:审核决定不能为空",
			"in:审核决定必须是 approved、rejected 或 pending",
		},
	}

	req, err := ValidateRequest[ProofReviewRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
