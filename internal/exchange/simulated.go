package exchange

import (
	"context"
	"edgerelay/internal/model"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type simOrder struct {
	order  model.Order
	status model.OrderStatus
}

// SimulatedExchange 内存中的模拟交易所，paper 模式和测试使用。
// 订单不会自动成交，用 Fill 模拟成交
type SimulatedExchange struct {
	mu      sync.Mutex
	orders  map[string]*simOrder
	seq     []string
	balance map[string]decimal.Decimal
	rules   map[string]model.InstrumentRules

	// 不为 nil 时在下单前调用，返回错误则拒单
	RejectFunc func(order *model.Order) error
	// 不为 nil 时 GetBalance 返回该错误
	BalanceErr error
}

func NewSimulatedExchange(balance decimal.Decimal) *SimulatedExchange {
	return &SimulatedExchange{
		orders:  make(map[string]*simOrder),
		balance: map[string]decimal.Decimal{"USDT": balance},
		rules:   make(map[string]model.InstrumentRules),
	}
}

func (s *SimulatedExchange) Name() string { return "paper" }

// SetRules 设置交易对的下单规则
func (s *SimulatedExchange) SetRules(rules model.InstrumentRules) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rules.Symbol] = rules
}

func (s *SimulatedExchange) SetBalance(coin string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance[coin] = balance
}

func (s *SimulatedExchange) PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	if !order.Price.IsPositive() {
		return nil, &model.RejectionError{Code: "invalid_price", Reason: "limit price must be positive"}
	}
	return s.place(order, model.OrderStateNew)
}

func (s *SimulatedExchange) PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	if !order.TriggerPrice.IsPositive() {
		return nil, &model.RejectionError{Code: "invalid_trigger", Reason: "trigger price must be positive"}
	}
	return s.place(order, model.OrderStateUntriggered)
}

func (s *SimulatedExchange) place(order *model.Order, state string) (*model.OrderResponse, error) {
	if s.RejectFunc != nil {
		if err := s.RejectFunc(order); err != nil {
			return nil, err
		}
	}
	if !order.Quantity.IsPositive() {
		return nil, &model.RejectionError{Code: "invalid_qty", Reason: "quantity must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 创建订单id
	orderID := uuid.NewString()
	s.orders[orderID] = &simOrder{
		order: *order,
		status: model.OrderStatus{
			OrderID:   orderID,
			Status:    state,
			Filled:    decimal.Zero,
			Remaining: order.Quantity,
		},
	}
	s.seq = append(s.seq, orderID)

	return &model.OrderResponse{
		OrderId:       orderID,
		ClientOrderID: order.ClientOrderID,
		Message:       "simulated order accepted",
	}, nil
}

func (s *SimulatedExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return &model.RejectionError{Code: "order_not_exists", Reason: "order not found"}
	}
	if !o.status.IsOpen() {
		return &model.RejectionError{Code: "order_closed", Reason: fmt.Sprintf("order is %s", o.status.Status)}
	}
	o.status.Status = model.OrderStateCancelled
	return nil
}

func (s *SimulatedExchange) GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, &model.RejectionError{Code: "order_not_exists", Reason: "order not found"}
	}
	st := o.status
	return &st, nil
}

func (s *SimulatedExchange) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BalanceErr != nil {
		return decimal.Zero, s.BalanceErr
	}
	return s.balance[coin], nil
}

func (s *SimulatedExchange) Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.rules[symbol]; ok {
		return &r, nil
	}
	return &model.InstrumentRules{
		Symbol:      symbol,
		MinQty:      decimal.RequireFromString("0.001"),
		QtyStep:     decimal.RequireFromString("0.001"),
		MinNotional: decimal.NewFromInt(5),
		TickSize:    decimal.RequireFromString("0.0001"),
	}, nil
}

// Fill 模拟成交 qty 数量
func (s *SimulatedExchange) Fill(orderID string, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	filled := decimal.Min(o.status.Filled.Add(qty), o.order.Quantity)
	o.status.Filled = filled
	o.status.Remaining = o.order.Quantity.Sub(filled)
	if o.status.Remaining.IsZero() {
		o.status.Status = model.OrderStateFilled
	} else {
		o.status.Status = model.OrderStatePartiallyFilled
	}
	return nil
}

// Orders 按下单顺序返回所有订单
func (s *SimulatedExchange) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Order, 0, len(s.seq))
	for _, id := range s.seq {
		out = append(out, s.orders[id].order)
	}
	return out
}

// OrderIDs 按下单顺序返回所有订单id
func (s *SimulatedExchange) OrderIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seq...)
}
