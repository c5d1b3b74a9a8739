package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/taoyao-code/h02-server/internal/config"
)

// ClaimsKey JWT 校验通过后 claims 在 gin.Context 中的键
const ClaimsKey = "claims"

// Auth 管理接口认证中间件
//
// 凭据来源依次为:
//  1. Header: X-API-Key
//  2. Header: Authorization: Bearer <token>
//  3. Query: ?token=<token>，浏览器 WebSocket 无法设置 Header
//
// 凭据先与 APIKeys 比对，不命中再按 HS256 JWT 校验
func Auth(cfg config.AuthConfig, logger *zap.Logger) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		token := credential(c)
		if token == "" {
			logger.Warn("api auth: missing credential",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("remote_addr", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "请在Header中提供 X-API-Key 或 Authorization: Bearer <token>",
			})
			return
		}

		if matchAPIKey(cfg.APIKeys, token) {
			c.Set("api_key", maskKey(token))
			c.Next()
			return
		}

		if len(secret) > 0 {
			claims, err := parseJWT(token, secret)
			if err == nil {
				c.Set(ClaimsKey, claims)
				c.Next()
				return
			}
			logger.Warn("api auth: invalid token",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
				zap.Error(err),
			)
		} else {
			logger.Warn("api auth: invalid api key",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
				zap.String("api_key_prefix", maskKey(token)),
			)
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "无效的凭据",
		})
	}
}

func credential(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

func matchAPIKey(keys []string, key string) bool {
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func parseJWT(raw string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// maskKey 仅保留前4位和后4位
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
