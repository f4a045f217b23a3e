// Package routes 注册 Web 路由
package routes

import (
	"github.com/gin-gonic/gin"

	paymentctrl "campus/app/http/controllers/api/v1/payment"
	"campus/app/http/middlewares"
	"campus/app/repositories"
	btsconfig "campus/config"
	"campus/pkg/config"
	"campus/pkg/ledger"
	"campus/pkg/payment/factory"
	"campus/pkg/payment/manual"
	"campus/pkg/payment/payhere"
	"campus/pkg/payment/types"
	"campus/pkg/queue"
	"campus/pkg/redis"
	"campus/pkg/storage"
)

// 路由限流配置
const (
	// 全局限流：每小时每 IP 20000 请求
	GlobalRateLimit = "20000-H"
	// 发起缴费限流：每小时每 IP 60 请求
	CreatePaymentLimit = "60-H"
	// 网关通知限流：网关有重试策略，额度放宽
	NotifyRateLimit = "2000-H"
	// 查询类限流：每分钟每 IP 300 请求
	QueryLimit = "300-M"
)

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine) {
	v1 := r.Group("/v1")

	v1.Use(
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(GlobalRateLimit),
		middlewares.Cors(),
	)

	// 组装缴费服务依赖
	ledgerRepo := repositories.NewLedgerRepository()
	batchRepo := repositories.NewBatchRepository()
	ledgerService := ledger.NewLedgerService(batchRepo)
	proofStore := storage.NewProofStore(config.GetString("payment.proof_dir"))

	// Redis 未初始化时（部分测试环境）回执静默降级
	var notifier types.ReceiptNotifier
	if redis.Manager != nil {
		notifier = queue.NewNotifier(queue.NewReceiptQueue())
	}

	gateway := payhere.NewService(btsconfig.Payhere(), ledgerRepo, ledgerService, notifier)
	manualService := manual.NewService(ledgerRepo, ledgerService, proofStore, notifier)

	// 缴费发起走配置的默认渠道，由工厂装配；
	// 网关实例独立承接异步通知与订单核查
	provider := types.Provider(config.GetString("payment.default_provider", string(types.ProviderPayhere)))
	paymentService, err := factory.NewPaymentService(provider, ledgerRepo, ledgerService, proofStore, notifier)
	if err != nil {
		panic(err)
	}

	pc := paymentctrl.NewPaymentController(paymentService, gateway, ledgerService, ledgerRepo)
	proofController := paymentctrl.NewProofController(manualService)

	payments := v1.Group("/payments")
	{
		// 网关服务端回调，不走登录态，安全性靠签名校验
		// POST /v1/payments/notify
		payments.POST("/notify",
			middlewares.LimitPerRoute(NotifyRateLimit),
			pc.Notify,
		)

		// 学员侧接口
		authed := payments.Group("", middlewares.AuthJWT())
		{
			// 发起在线缴费
			// POST /v1/payments
			authed.POST("",
				middlewares.LimitPerRoute(CreatePaymentLimit),
				pc.Store,
			)

			// 提交线下缴费凭证
			// POST /v1/payments/manual
			authed.POST("/manual",
				middlewares.LimitPerRoute(CreatePaymentLimit),
				proofController.Store,
			)

			// 查询缴费账户与交易流水
			// GET /v1/payments/:student_id/:batch_id
			authed.GET("/:student_id/:batch_id",
				middlewares.LimitPerRoute(QueryLimit),
				pc.Show,
			)
		}

		// 管理端接口
		admin := payments.Group("", middlewares.AuthJWT(), middlewares.AuthAdmin())
		{
			// 审核线下缴费凭证
			// PATCH /v1/payments/proofs/:id
			admin.PATCH("/proofs/:id", proofController.Review)

			// 删除缴费账户
			// DELETE /v1/payments/accounts/:id
			admin.DELETE("/accounts/:id", pc.Delete)

			// 到网关侧核查订单
			// GET /v1/payments/orders/:order_id/gateway
			admin.GET("/orders/:order_id/gateway",
				middlewares.LimitPerRoute(QueryLimit),
				pc.Lookup,
			)
		}
	}

	// 批次汇总重算
	// POST /v1/batches/:id/resync
	batches := v1.Group("/batches", middlewares.AuthJWT(), middlewares.AuthAdmin())
	{
		batches.POST("/:id/resync", pc.ResyncBatch)
	}
}
