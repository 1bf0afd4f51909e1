package middleware

import (
	"bytes"
	"crypto/sha256"
	"edgerelay/internal/consts"
	"edgerelay/pkg/response"
	"edgerelay/utils/uuid"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/gin-gonic/gin"
)

// NoCache 控制客户端不要使用缓存
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, max-age=0, must-revalidate")
		c.Header("Expires", "Thu, 01 Jan 1970 00:00:00 GMT")
		c.Header("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		c.Next()
	}
}

// Options 跨域预检请求直接返回
func Options() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.ToUpper(c.Request.Method) != "OPTIONS" {
			c.Next()
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "origin, content-type, accept, "+strings.ToLower(consts.Signature))
			c.Header("Allow", "HEAD,GET,POST,OPTIONS")
			c.Header("Content-Type", "application/json")
			c.AbortWithStatus(http.StatusOK)
		}
	}
}

// Secure 添加安全控制和资源访问
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000")
		}
		c.Next()
	}
}

// RequestId 用来设置和透传requestId，调用方传了 X-Request-Id 时沿用
func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader("X-Request-Id")
		if requestId == "" || len(requestId) > 64 {
			requestId = uuid.GenUUID16()
		}
		c.Header("X-Request-Id", requestId)

		// 设置requestId到context中，便于后面调用链的透传
		c.Set(consts.RequestId, requestId)
		c.Next()
	}
}

// AntiDuplicate 相同路径、相同 body 的请求在 window 内只处理一次，
// 自动化平台重试时不会重复下单。window<=0 表示关闭
func AntiDuplicate(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	// 并发安全的 LRU 缓存
	reqCache, _ := lru.New(500)

	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			body = []byte{}
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		sum := sha256.Sum256(append([]byte(c.Request.URL.Path+"\n"), body...))
		key := hex.EncodeToString(sum[:])

		now := time.Now()
		if value, ok := reqCache.Get(key); ok {
			if now.Sub(value.(time.Time)) < window {
				response.TooManyRequests(c)
				c.Abort()
				return
			}
		}
		reqCache.Add(key, now)
		c.Next()

		// 服务端失败时允许调用方重试
		if c.Writer.Status() >= http.StatusInternalServerError {
			reqCache.Remove(key)
		}
	}
}
