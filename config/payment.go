package config

import (
	"campus/pkg/config"
)

func init() {
	config.Add("payment", func() map[string]interface{} {
		return map[string]interface{}{
			// 默认缴费渠道
			"default_provider": config.Env("PAYMENT_PROVIDER", "payhere"),

			"payhere": map[string]interface{}{
				"merchant_id":     config.Env("PAYHERE_MERCHANT_ID", ""),
				"merchant_secret": config.Env("PAYHERE_MERCHANT_SECRET", ""),
				"currency":        config.Env("PAYHERE_CURRENCY", "LKR"),

				// 收银台与商户后台 API，沙箱和生产用不同域名
				"checkout_url": config.Env("PAYHERE_CHECKOUT_URL", "https://sandbox.payhere.lk/pay/checkout"),
				"api_base_url": config.Env("PAYHERE_API_BASE_URL", "https://sandbox.payhere.lk"),

				"notify_url": config.Env("PAYHERE_NOTIFY_URL", ""),
				"return_url": config.Env("PAYHERE_RETURN_URL", ""),
				"cancel_url": config.Env("PAYHERE_CANCEL_URL", ""),

				// 商户后台应用凭证，订单主动核查接口使用
				"app_id":     config.Env("PAYHERE_APP_ID", ""),
				"app_secret": config.Env("PAYHERE_APP_SECRET", ""),

				// 手续费：比例费率 + 每笔固定费用
				"fee_percent": config.Env("PAYHERE_FEE_PERCENT", 0.033),
				"fixed_fee":   config.Env("PAYHERE_FIXED_FEE", 0.0),
			},

			// 线下凭证存储根目录
			"proof_dir": config.Env("PAYMENT_PROOF_DIR", "storage/proofs"),
		}
	})
}

// PayhereConfig 在线网关配置
type PayhereConfig struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
	CheckoutURL    string
	APIBaseURL     string
	NotifyURL      string
	ReturnURL      string
	CancelURL      string
	AppID          string
	AppSecret      string
	FeePercent     float64
	FixedFee       float64
}

// Payhere 从配置读出网关配置结构体
func Payhere() PayhereConfig {
	return PayhereConfig{
		MerchantID:     config.GetString("payment.payhere.merchant_id"),
		MerchantSecret: config.GetString("payment.payhere.merchant_secret"),
		Currency:       config.GetString("payment.payhere.currency"),
		CheckoutURL:    config.GetString("payment.payhere.checkout_url"),
		APIBaseURL:     config.GetString("payment.payhere.api_base_url"),
		NotifyURL:      config.GetString("payment.payhere.notify_url"),
		ReturnURL:      config.GetString("payment.payhere.return_url"),
		CancelURL:      config.GetString("payment.payhere.cancel_url"),
		AppID:          config.GetString("payment.payhere.app_id"),
		AppSecret:      config.GetString("payment.payhere.app_secret"),
		FeePercent:     config.GetFloat64("payment.payhere.fee_percent"),
		FixedFee:       config.GetFloat64("payment.payhere.fixed_fee"),
	}
}
