package middleware

import (
	"edgerelay/conf"

	"github.com/gin-gonic/gin"
)

// Middleware 全局中间件
type Middleware struct {
	cfg *conf.Config
}

func NewMiddleware(cfg *conf.Config) *Middleware {
	return &Middleware{cfg: cfg}
}

func (m *Middleware) Load(g *gin.Engine) {
	g.Use(gin.Recovery(), RequestId(), Secure(), Options(), NoCache(), Logger)
}
