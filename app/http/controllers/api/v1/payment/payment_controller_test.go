package payment

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"

	"campus/app/models/batch"
	paymentmodel "campus/app/models/payment"
	"campus/app/models/proof"
	"campus/app/repositories"
	"campus/config"
	"campus/pkg/database"
	"campus/pkg/ledger"
	"campus/pkg/payment/payhere"
	"campus/pkg/payment/utils"
)

func TestMain(m *testing.M) {
	database.Connect(
		sqlite.Open("file:controller_test?mode=memory&cache=shared"),
		gormlogger.Default.LogMode(gormlogger.Silent),
	)
	database.SQLDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate([]interface{}{
		&batch.CourseBatch{},
		&batch.FeeSummary{},
		&paymentmodel.StudentPayment{},
		&paymentmodel.Transaction{},
		&proof.Proof{},
	}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newNotifyRouter() (*gin.Engine, config.PayhereConfig) {
	gin.SetMode(gin.TestMode)

	cfg := config.PayhereConfig{
		MerchantID:     "1211149",
		MerchantSecret: "MERCHANT_TEST_SECRET",
		Currency:       "LKR",
		FeePercent:     0.033,
	}

	repo := repositories.NewLedgerRepository()
	ledgerService := ledger.NewLedgerService(repositories.NewBatchRepository())
	gateway := payhere.NewService(cfg, repo, ledgerService, nil)

	pc := NewPaymentController(gateway, gateway, ledgerService, repo)
	router := gin.New()
	router.POST("/v1/payments/notify", pc.Notify)
	return router, cfg
}

func postNotify(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func notifyForm(cfg config.PayhereConfig, orderID, amount, statusCode string) url.Values {
	form := url.Values{}
	form.Set("order_id", orderID)
	form.Set("payhere_amount", amount)
	form.Set("payhere_currency", cfg.Currency)
	form.Set("status_code", statusCode)
	form.Set("md5sig", utils.NotifySignature(
		cfg.MerchantID, orderID, amount, cfg.Currency, statusCode, cfg.MerchantSecret))
	return form
}

// 签名不过：通知原文不可信，拒收
func TestNotify_TamperedSignatureRejected(t *testing.T) {
	router, cfg := newNotifyRouter()

	form := notifyForm(cfg, "CB20260829CTRL0001", "1034.12", "2")
	form.Set("md5sig", "DEADBEEFDEADBEEFDEADBEEFDEADBEEF")

	w := postNotify(router, form)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// 签名有效但金额无法解析：重试也不会变好，回 200 阻止网关重发
func TestNotify_SignedMalformedAmountAcknowledged(t *testing.T) {
	router, cfg := newNotifyRouter()

	w := postNotify(router, notifyForm(cfg, "CB20260829CTRL0002", "1,034.12", "2"))
	assert.Equal(t, http.StatusOK, w.Code)
}

// 订单不存在：回 404 让网关按策略重试（通知可能先于交易落库到达）
func TestNotify_UnknownOrderTriggersRetry(t *testing.T) {
	router, cfg := newNotifyRouter()

	w := postNotify(router, notifyForm(cfg, "CB20260829CTRL0003", "100.00", "2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
