package utils

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateOrderID 生成订单号
// 由本系统生成且全局唯一，网关通知只能靠它回溯交易，绝不使用网关侧的编号。
func GenerateOrderID() string {
	return fmt.Sprintf("CB%s%s",
		time.Now().Format("20060102150405"),
		strings.ToUpper(uuid.New().String()[:8]),
	)
}

// md5Upper 大写十六进制 MD5
func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// CheckoutSignature 计算网关签名
// 规则：digest(digest(secret) || merchantId || orderId || 毛额(两位小数) || currency)，
// 大写十六进制。出站请求和回调校验必须逐字节一致。
func CheckoutSignature(merchantID, orderID, formattedAmount, currency, secret string) string {
	return md5Upper(md5Upper(secret) + merchantID + orderID + formattedAmount + currency)
}

// NotifySignature 计算异步通知的校验签名
// 规则：digest(merchantId || orderId || 金额 || currency || statusCode || digest(secret))，
// 金额与 statusCode 取通知原文，不做任何重新格式化。
func NotifySignature(merchantID, orderID, amount, currency, statusCode, secret string) string {
	return md5Upper(merchantID + orderID + amount + currency + statusCode + md5Upper(secret))
}
