package bybit

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Bybit USDT 永续合约（linear）
type Bybit struct {
	client *Client
}

func New(cfg Config) *Bybit {
	return &Bybit{client: NewClient(cfg)}
}

func (b *Bybit) Name() string { return "bybit" }

// ToSymbol 转换交易对格式: HYPE/USDT -> HYPEUSDT
func ToSymbol(symbol string) string {
	if i := strings.Index(symbol, ":"); i >= 0 {
		symbol = symbol[:i]
	}
	symbol = strings.NewReplacer("/", "", "-", "", "_", "").Replace(symbol)
	return strings.ToUpper(symbol)
}

func toSide(side model.OrderSide) string {
	if side == model.Sell {
		return "Sell"
	}
	return "Buy"
}

func (b *Bybit) PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	req := createOrderReq{
		Category:    categoryLinear,
		Symbol:      ToSymbol(order.Symbol),
		Side:        toSide(order.Side),
		OrderType:   "Limit",
		Qty:         order.Quantity.String(),
		Price:       order.Price.String(),
		TimeInForce: "GTC",
		ReduceOnly:  order.ReduceOnly,
		OrderLinkId: order.ClientOrderID,
	}
	return b.create(ctx, &req)
}

// PlaceStopOrder 条件市价单，多单止损价格下跌触发，空单止损价格上涨触发
func (b *Bybit) PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	direction := 2
	if order.Side == model.Buy {
		direction = 1
	}
	req := createOrderReq{
		Category:         categoryLinear,
		Symbol:           ToSymbol(order.Symbol),
		Side:             toSide(order.Side),
		OrderType:        "Market",
		Qty:              order.Quantity.String(),
		TriggerPrice:     order.TriggerPrice.String(),
		TriggerDirection: direction,
		TriggerBy:        "LastPrice",
		ReduceOnly:       order.ReduceOnly,
		OrderLinkId:      order.ClientOrderID,
	}
	return b.create(ctx, &req)
}

func (b *Bybit) create(ctx context.Context, req *createOrderReq) (*model.OrderResponse, error) {
	var res orderResult
	if err := b.client.post(ctx, "/v5/order/create", req, &res); err != nil {
		// 超时重试时第一次请求可能已经成交，按 orderLinkId 找回该订单
		var rej *model.RejectionError
		if req.OrderLinkId == "" || !errors.As(err, &rej) || rej.Code != strconv.Itoa(retCodeDuplicateLinkID) {
			return nil, err
		}
		found, lerr := b.findByLinkID(ctx, req.Symbol, req.OrderLinkId)
		if lerr != nil {
			return nil, &model.TransportError{Op: "recover order " + req.OrderLinkId, Err: fmt.Errorf("duplicate orderLinkId, lookup failed: %w", lerr)}
		}
		logger.Warn("bybit order already exists, recovered by orderLinkId",
			logger.Pair("order_link_id", req.OrderLinkId),
			logger.Pair("order_id", found.OrderId))
		res = orderResult{OrderId: found.OrderId, OrderLinkId: found.OrderLinkId}
	}
	logger.Info("bybit order created",
		logger.Pair("symbol", req.Symbol),
		logger.Pair("side", req.Side),
		logger.Pair("type", req.OrderType),
		logger.Pair("qty", req.Qty),
		logger.Pair("order_id", res.OrderId),
		logger.Pair("order_link_id", res.OrderLinkId))
	return &model.OrderResponse{
		OrderId:       res.OrderId,
		ClientOrderID: res.OrderLinkId,
	}, nil
}

func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	req := cancelOrderReq{
		Category: categoryLinear,
		Symbol:   ToSymbol(symbol),
		OrderId:  orderID,
	}
	return b.client.post(ctx, "/v5/order/cancel", &req, nil)
}

func (b *Bybit) findByLinkID(ctx context.Context, symbol, linkID string) (*orderInfo, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", symbol)
	q.Set("orderLinkId", linkID)

	var res orderListResult
	if err := b.client.get(ctx, "/v5/order/realtime", q, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("order %s not found", linkID)
	}
	return &res.List[0], nil
}

func (b *Bybit) GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", ToSymbol(symbol))
	q.Set("orderId", orderID)

	var res orderListResult
	if err := b.client.get(ctx, "/v5/order/realtime", q, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, &model.RejectionError{Code: "order_not_exists", Reason: fmt.Sprintf("order %s not found", orderID)}
	}
	info := res.List[0]
	return &model.OrderStatus{
		OrderID:   info.OrderId,
		Status:    model.NormalizeOrderState(info.OrderStatus),
		Filled:    dec(info.CumExecQty),
		Remaining: dec(info.LeavesQty),
	}, nil
}

// GetBalance 统一账户中 coin 的钱包余额
func (b *Bybit) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	q.Set("coin", coin)

	var raw json.RawMessage
	if err := b.client.get(ctx, "/v5/account/wallet-balance", q, &raw); err != nil {
		return decimal.Zero, err
	}
	v := gjson.GetBytes(raw, fmt.Sprintf(`list.0.coin.#(coin==%q).walletBalance`, coin))
	if !v.Exists() {
		return decimal.Zero, &model.TransportError{Op: "wallet balance", Err: fmt.Errorf("coin %s not found in wallet", coin)}
	}
	return dec(v.String()), nil
}

func (b *Bybit) Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error) {
	q := url.Values{}
	q.Set("category", categoryLinear)
	q.Set("symbol", ToSymbol(symbol))

	var res instrumentListResult
	if err := b.client.get(ctx, "/v5/market/instruments-info", q, &res); err != nil {
		return nil, err
	}
	if len(res.List) == 0 {
		return nil, fmt.Errorf("%w: symbol %s not listed", model.ErrInvalidPlan, symbol)
	}
	info := res.List[0]
	return &model.InstrumentRules{
		Symbol:      info.Symbol,
		MinQty:      dec(info.LotSizeFilter.MinOrderQty),
		QtyStep:     dec(info.LotSizeFilter.QtyStep),
		MinNotional: dec(info.LotSizeFilter.MinNotionalValue),
		TickSize:    dec(info.PriceFilter.TickSize),
	}, nil
}

func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
