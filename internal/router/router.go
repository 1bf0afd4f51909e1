package router

import (
	"edgerelay/internal/handler/instrument"
	"edgerelay/internal/handler/ping"
	"edgerelay/internal/handler/webhook"
	"edgerelay/internal/middleware"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ApiRouter struct {
	wh           *webhook.Handler
	coinHandler  *instrument.Handler
	dedupeWindow time.Duration
}

func NewApiRouter(wh *webhook.Handler, ch *instrument.Handler, dedupeWindow time.Duration) *ApiRouter {
	return &ApiRouter{wh: wh, coinHandler: ch, dedupeWindow: dedupeWindow}
}

func (api *ApiRouter) Load(g *gin.Engine) {
	g.GET("/ping", ping.Ping())
	g.GET("/health", ping.Health())
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 自动化平台向根路径推送，/webhook 作为别名
	dedupe := middleware.AntiDuplicate(api.dedupeWindow)
	g.POST("/", dedupe, api.wh.HandlerWebhook())
	g.POST("/webhook", dedupe, api.wh.HandlerWebhook())

	base := g.Group("/api/v1")
	c := base.Group("/instruments")
	{
		// 查看交易对下单规则
		c.GET("/rules", api.coinHandler.RulesGet())
	}
}
