package middlewares

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"campus/pkg/config"
	"campus/pkg/response"
)

// Claims 访问令牌载荷
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthJWT 解析 Authorization 头中的访问令牌
// 校验通过后把 user_id 和 user_role 写入请求上下文
func AuthJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.Abort401(c)
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(config.GetString("jwt.secret")), nil
		})
		if err != nil || !token.Valid {
			response.Abort401(c)
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// AuthAdmin 仅放行管理员角色，必须挂在 AuthJWT 之后
func AuthAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != "admin" {
			response.Abort403(c)
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// 收银台跳转类场景允许 query 传递
	return c.Query("token")
}
