package instrument

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/errors"
	"edgerelay/pkg/errors/ecode"
	"edgerelay/pkg/response"
	"strings"

	"github.com/gin-gonic/gin"
)

type RulesGetter interface {
	Rules(ctx context.Context, symbol string) (model.InstrumentRules, error)
}

type Handler struct {
	service RulesGetter
}

func NewHandler(service RulesGetter) *Handler {
	return &Handler{service: service}
}

type rulesReq struct {
	Symbol string `form:"symbol" binding:"required"`
}

// RulesGet 查看交易对当前使用的下单规则（交易所规则 + 配置覆盖）
func (h *Handler) RulesGet() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var req rulesReq
		if err := ctx.ShouldBindQuery(&req); err != nil {
			response.JSON(ctx, errors.WithCode(ecode.ValidateErr, err.Error()), nil)
			return
		}

		res, err := h.service.Rules(ctx, strings.ToUpper(strings.TrimSpace(req.Symbol)))
		if err != nil {
			response.JSON(ctx, errors.Wrap(err, errors.FromDomain(err), "接口调用失败"), nil)
		} else {
			response.JSON(ctx, nil, res)
		}
	}
}
