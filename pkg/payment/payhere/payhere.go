// Package payhere 在线收款网关对接
//
// 发起收款走收银台表单提交，结果以服务端异步通知为准，
// 浏览器跳转回来的 return_url 只做展示，绝不据此记账。
package payhere

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"campus/app/models/payment"
	"campus/config"
	"campus/pkg/fees"
	"campus/pkg/logger"
	"campus/pkg/payment/types"
	"campus/pkg/payment/utils"
)

// StatusCodeSuccess 通知中表示收款成功的状态码，其余（0 pending、-1 canceled、
// -2 failed、-3 chargedback）一律按失败落账
const StatusCodeSuccess = "2"

// Service 在线网关收款服务
type Service struct {
	cfg        config.PayhereConfig
	converter  fees.Converter
	repository types.Repository
	ledger     types.Reconciler
	notifier   types.ReceiptNotifier
	client     *resty.Client
}

// NewService 创建网关收款服务
func NewService(cfg config.PayhereConfig, repo types.Repository, ledger types.Reconciler, notifier types.ReceiptNotifier) *Service {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Service{
		cfg:        cfg,
		converter:  fees.NewConverterFromFloat(cfg.FeePercent, cfg.FixedFee),
		repository: repo,
		ledger:     ledger,
		notifier:   notifier,
		client:     client,
	}
}

// CreatePayment 发起一笔在线缴费
//
// 顺序不可调换：先把 pending 交易落库，再生成签名表单返回。
// 交易没有落库之前网关通知无处可落，宁可多一条永远 pending 的交易，
// 也不能出现通知回来查无此单。
func (s *Service) CreatePayment(ctx context.Context, req *types.Request) (*types.Result, error) {
	net := fees.NewNet(req.Amount)
	if !net.IsValid() {
		return nil, types.ErrInvalidAmount
	}

	account, err := s.ledger.OpenAccount(ctx, req.StudentID, req.CourseBatchID)
	if err != nil {
		return nil, err
	}
	if net.Decimal().GreaterThan(account.RemainingBalance()) {
		return nil, types.ErrAmountExceedsBalance
	}

	orderID := utils.GenerateOrderID()
	txn := &payment.Transaction{
		StudentPaymentID: account.ID,
		OrderID:          orderID,
		Amount:           net.Decimal(),
		Status:           string(payment.StatusPending),
		PaymentMethod:    string(payment.MethodOnline),
	}
	if err := s.repository.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create payment transaction error: %w", err)
	}

	// 付款人被扣的是毛额，台账记的是净额
	gross := s.converter.GrossFromNet(net)
	hash := utils.CheckoutSignature(s.cfg.MerchantID, orderID, gross.String(), s.cfg.Currency, s.cfg.MerchantSecret)

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.cfg.ReturnURL
	}

	fields := map[string]string{
		"merchant_id": s.cfg.MerchantID,
		"return_url":  returnURL,
		"cancel_url":  s.cfg.CancelURL,
		"notify_url":  s.cfg.NotifyURL,
		"order_id":    orderID,
		"items":       fmt.Sprintf("Course batch %d fee installment", req.CourseBatchID),
		"currency":    s.cfg.Currency,
		"amount":      gross.String(),
		"hash":        hash,
		"custom_1":    req.StudentID,
	}

	return &types.Result{
		OrderID:     orderID,
		CheckoutURL: s.cfg.CheckoutURL,
		Fields:      fields,
		GrossAmount: gross.String(),
		Currency:    s.cfg.Currency,
	}, nil
}

// ParseNotification 解析并校验异步通知
// 签名用通知原文的金额与状态码计算，校验不过整条通知不可信。
func (s *Service) ParseNotification(form url.Values) (*types.Notification, error) {
	orderID := form.Get("order_id")
	amount := form.Get("payhere_amount")
	currency := form.Get("payhere_currency")
	statusCode := form.Get("status_code")

	expected := utils.NotifySignature(
		s.cfg.MerchantID, orderID, amount, currency, statusCode, s.cfg.MerchantSecret)
	if form.Get("md5sig") != expected {
		return nil, types.ErrInvalidSignature
	}

	gross, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse notified amount error: %w", err)
	}

	return &types.Notification{
		StatusCode:  statusCode,
		OrderID:     orderID,
		PaymentID:   form.Get("payment_id"),
		GrossAmount: gross,
		StudentID:   form.Get("custom_1"),
	}, nil
}

// HandleNotify 处理网关异步通知，按订单号推进交易状态机
//
// 幂等规则：
//   - 订单不存在：返回 ErrTransactionNotFound，调用方必须以非 200 响应让网关重试；
//   - 交易已到终态：重复通知，补跑一次对账后按成功处理；
//   - 状态码非成功：交易落为 failed；
//   - 毛额换算的净额与交易记录不符：交易保持 pending，返回 ErrAmountMismatch 等人工核查。
func (s *Service) HandleNotify(ctx context.Context, n *types.Notification) error {
	txn, err := s.repository.GetTransactionByOrderID(ctx, n.OrderID)
	if err != nil {
		return err
	}

	if txn.IsFinalized() {
		logger.InfoString("网关", "重复通知",
			fmt.Sprintf("订单 %s 已是终态 %s，忽略本次通知", n.OrderID, txn.Status))
		// 上次通知可能在对账前失败，这里补跑一次把账补平
		if txn.IsCompleted() {
			return s.ledger.Reconcile(ctx, txn.StudentPaymentID)
		}
		return nil
	}

	if n.StatusCode != StatusCodeSuccess {
		logger.WarnString("网关", "收款失败",
			fmt.Sprintf("订单 %s 状态码 %s，交易落为 failed", n.OrderID, n.StatusCode))
		if _, err := s.repository.FinalizeTransaction(
			ctx, txn.ID, types.StatusFailed, n.PaymentID, nil); err != nil {
			return fmt.Errorf("finalize failed transaction error: %w", err)
		}
		return nil
	}

	// 毛额换算回净额，必须与发起时记录的净额一致
	net := s.converter.NetFromGross(fees.NewGross(n.GrossAmount))
	if !net.Equal(fees.NewNet(txn.Amount)) {
		logger.ErrorString("网关", "金额不符",
			fmt.Sprintf("订单 %s 通知毛额 %s 换算净额 %s，台账记录 %s，保持 pending 待人工核查",
				n.OrderID, n.GrossAmount.StringFixed(2), net.String(), txn.Amount.StringFixed(2)))
		return types.ErrAmountMismatch
	}

	now := time.Now()
	ok, err := s.repository.FinalizeTransaction(ctx, txn.ID, types.StatusCompleted, n.PaymentID, &now)
	if err != nil {
		return fmt.Errorf("finalize completed transaction error: %w", err)
	}
	if !ok {
		// 另一条并发通知抢先到达终态，让它负责对账
		return nil
	}

	// 对账失败返回错误，网关重试会走上面的终态分支把账补平
	if err := s.ledger.Reconcile(ctx, txn.StudentPaymentID); err != nil {
		return err
	}

	s.emitReceipt(ctx, txn, n, now)
	return nil
}

// emitReceipt 投递缴费回执事件，失败只记日志不影响主流程
func (s *Service) emitReceipt(ctx context.Context, txn *payment.Transaction, n *types.Notification, completedAt time.Time) {
	if s.notifier == nil {
		return
	}

	account, err := s.repository.GetAccountByID(ctx, txn.StudentPaymentID)
	if err != nil {
		logger.WarnString("网关", "回执",
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

// PaymentDetail 网关侧查询到的支付详情
type PaymentDetail struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Method    string `json:"method"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   []PaymentDetail `json:"data"`
}

// LookupPayment 主动到网关侧核查订单，人工对账时使用
func (s *Service) LookupPayment(ctx context.Context, orderID string) (*PaymentDetail, error) {
	token, err := s.fetchAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("order_id", orderID).
		Get(s.cfg.APIBaseURL + "/merchant/v1/payment/search")
	if err != nil {
		return nil, fmt.Errorf("search payment error: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("search payment returned non-200 status: %d, body: %s",
			resp.StatusCode(), resp.String())
	}

	var result searchResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("unmarshal search response error: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, types.ErrTransactionNotFound
	}
	return &result.Data[0], nil
}

// fetchAccessToken 用商户应用凭证换取查询接口的访问令牌
func (s *Service) fetchAccessToken(ctx context.Context) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBasicAuth(s.cfg.AppID, s.cfg.AppSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(s.cfg.APIBaseURL + "/merchant/v1/oauth/token")
	if err != nil {
		return "", fmt.Errorf("fetch access token error: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("fetch access token returned non-200 status: %d", resp.StatusCode())
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body(), &token); err != nil {
		return "", fmt.Errorf("unmarshal token response error: %w", err)
	}
	return token.AccessToken, nil
}
