package webhook

import (
	"edgerelay/internal/webhook"
	"edgerelay/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	whHandler *webhook.WebhookHandler
}

func NewHandler(wh *webhook.WebhookHandler) *Handler {
	return &Handler{whHandler: wh}
}

// HandlerWebhook 执行报告总是放在 data 里，错误码表示执行结果
func (h *Handler) HandlerWebhook() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		h.whHandler.Handle(ctx.Request, func(res *webhook.Result, err error) {
			response.JSON(ctx, err, res)
		})
	}
}
