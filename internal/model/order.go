package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

type OrderType string

const (
	// 市价
	Market OrderType = "market"
	// 限价
	Limit OrderType = "limit"
	// 触发后市价成交，用于止损
	StopMarket OrderType = "stop_market"
)

// OrderRole 订单在计划中的角色，决定提交顺序和失败处理
type OrderRole string

const (
	RoleEntry      OrderRole = "entry"
	RoleStopLoss   OrderRole = "stop_loss"
	RoleTakeProfit OrderRole = "take_profit"
)

// 保证金模式（cross / isolated）
type OrderMgnMode string

const (
	OrderMgnModeCross    OrderMgnMode = "cross"
	OrderMgnModeIsolated OrderMgnMode = "isolated"
)

// Order 提交给交易所的单个订单
type Order struct {
	Symbol        string // HYPE/USDT
	Side          OrderSide
	OrderType     OrderType
	Price         decimal.Decimal // 限价单价格
	TriggerPrice  decimal.Decimal // 止损触发价
	Quantity      decimal.Decimal // 币数量
	ReduceOnly    bool
	ClientOrderID string
	PosSide       Side // 所属仓位方向
	Role          OrderRole
}

type OrderResponse struct {
	OrderId       string
	ClientOrderID string
	Status        int
	Message       string
}

// 统一后的订单状态
const (
	OrderStateNew             = "new"
	OrderStatePartiallyFilled = "partially_filled"
	OrderStateFilled          = "filled"
	OrderStateCancelled       = "cancelled"
	OrderStateRejected        = "rejected"
	OrderStateUntriggered     = "untriggered"
)

type OrderStatus struct {
	OrderID   string
	Status    string
	Filled    decimal.Decimal
	Remaining decimal.Decimal
}

// IsOpen 订单仍挂在交易所，可以撤销
func (s *OrderStatus) IsOpen() bool {
	switch s.Status {
	case OrderStateNew, OrderStatePartiallyFilled, OrderStateUntriggered:
		return true
	}
	return false
}

// NormalizeOrderState 把交易所的状态字符串转换为统一状态
func NormalizeOrderState(raw string) string {
	key := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(raw))
	switch key {
	case "new", "live", "created", "active", "pending", "unfinish":
		return OrderStateNew
	case "partiallyfilled", "partfinished", "partfilled":
		return OrderStatePartiallyFilled
	case "filled", "finished", "effective":
		return OrderStateFilled
	case "cancelled", "canceled", "partiallyfilledcanceled", "deactivated":
		return OrderStateCancelled
	case "rejected":
		return OrderStateRejected
	case "untriggered":
		return OrderStateUntriggered
	default:
		return strings.ToLower(raw)
	}
}

// OrderIntent 计划中的一条订单意图
type OrderIntent struct {
	Role          OrderRole       `json:"role"`
	Leg           int             `json:"leg"` // 同一角色内的序号，从1开始
	Side          OrderSide       `json:"side"`
	OrderType     OrderType       `json:"order_type"`
	Price         decimal.Decimal `json:"price"`
	Quantity      decimal.Decimal `json:"quantity"`
	SizePct       decimal.Decimal `json:"size_pct"`
	ReduceOnly    bool            `json:"reduce_only"`
	ClientOrderID string          `json:"client_order_id"`
}

// ToOrder 转换为交易所订单，止损单的 Price 作为触发价
func (i OrderIntent) ToOrder(symbol string, posSide Side) *Order {
	o := &Order{
		Symbol:        symbol,
		Side:          i.Side,
		OrderType:     i.OrderType,
		Quantity:      i.Quantity,
		ReduceOnly:    i.ReduceOnly,
		ClientOrderID: i.ClientOrderID,
		PosSide:       posSide,
		Role:          i.Role,
	}
	if i.OrderType == StopMarket {
		o.TriggerPrice = i.Price
	} else {
		o.Price = i.Price
	}
	return o
}
