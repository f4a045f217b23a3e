package middlewares

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus/pkg/logger"
)

// responseBodyWriter 包装 gin 的 ResponseWriter，顺带记录响应体
type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Logger 记录请求日志
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		// 请求体读出来再放回去，网关通知排查问题全靠这份日志
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		start := time.Now()
		c.Next()

		cost := time.Since(start)
		responseStatus := c.Writer.Status()

		logFields := []zap.Field{
			zap.Int("status", responseStatus),
			zap.String("request", c.Request.Method+" "+c.Request.URL.String()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.String("time", fmt.Sprintf("%.3fms", float64(cost.Nanoseconds())/1e6)),
		}
		if c.Request.Method == "POST" || c.Request.Method == "PATCH" || c.Request.Method == "DELETE" {
			logFields = append(logFields,
				zap.String("request_body", string(requestBody)),
				zap.String("response_body", w.body.String()),
			)
		}

		switch {
		case responseStatus > 400 && responseStatus <= 499:
			logger.Warn("HTTP Warning "+strconv.Itoa(responseStatus), logFields...)
		case responseStatus >= 500:
			logger.Error("HTTP Error "+strconv.Itoa(responseStatus), logFields...)
		default:
			logger.Debug("HTTP Access Log", logFields...)
		}
	}
}
