package exchange

import (
	"context"
	"edgerelay/internal/model"

	"github.com/shopspring/decimal"
)

// Exchange 单个交易所账户的下单接口。
// 失败时返回 *model.RejectionError（交易所拒单）或 *model.TransportError（网络/鉴权）
type Exchange interface {
	Name() string
	// 限价单
	PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	// 触发后市价成交的止损单，order.TriggerPrice 为触发价
	PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	// 撤销订单
	CancelOrder(ctx context.Context, symbol, orderID string) error
	// 获取订单状态
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error)
	// 账户余额（结算币种）
	GetBalance(ctx context.Context, coin string) (decimal.Decimal, error)
	// 交易对的下单规则
	Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error)
}
