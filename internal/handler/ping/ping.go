package ping

import (
	"edgerelay/internal/consts"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func Ping() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "\r\nSuccess")
	}
}

// Health 存活检查
func Health() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   consts.ServiceName,
			"timestamp": float64(time.Now().UnixNano()) / 1e9,
		})
	}
}
