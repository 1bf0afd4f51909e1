package exchange

import (
	"context"
	"edgerelay/internal/model"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

var (
	metricOrdersAttempted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgerelay_orders_attempted_total", Help: "Orders the relay tried to place",
	}, []string{"role"})
	metricOrdersPlaced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgerelay_orders_placed_total", Help: "Orders accepted by the exchange",
	}, []string{"role"})
	metricOrdersFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgerelay_orders_failed_total", Help: "Orders rejected by the exchange or lost in transport",
	}, []string{"role", "kind"})
	metricCancels = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "edgerelay_orders_cancelled_total", Help: "Cancel requests by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(metricOrdersAttempted, metricOrdersPlaced, metricOrdersFailed, metricCancels)
}

// GuardedExchange 多个 webhook 并发时共享同一个交易所客户端，
// 在这里串行化请求并限制请求频率
type GuardedExchange struct {
	inner   Exchange
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewGuardedExchange perSec<=0 表示不限速
func NewGuardedExchange(inner Exchange, perSec float64) *GuardedExchange {
	limit := rate.Inf
	burst := 1
	if perSec > 0 {
		limit = rate.Limit(perSec)
		burst = int(perSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &GuardedExchange{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (g *GuardedExchange) Name() string { return g.inner.Name() }

// Inner 返回被包装的交易所
func (g *GuardedExchange) Inner() Exchange { return g.inner }

func (g *GuardedExchange) acquire(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return &model.TransportError{Op: "rate limit", Err: err}
	}
	g.mu.Lock()
	return nil
}

func (g *GuardedExchange) place(ctx context.Context, order *model.Order,
	fn func(context.Context, *model.Order) (*model.OrderResponse, error)) (*model.OrderResponse, error) {
	role := string(order.Role)
	metricOrdersAttempted.WithLabelValues(role).Inc()

	if err := g.acquire(ctx); err != nil {
		metricOrdersFailed.WithLabelValues(role, model.KindTransportFailure).Inc()
		return nil, err
	}
	defer g.mu.Unlock()

	resp, err := fn(ctx, order)
	if err != nil {
		metricOrdersFailed.WithLabelValues(role, model.ErrorKind(err)).Inc()
		return nil, err
	}
	metricOrdersPlaced.WithLabelValues(role).Inc()
	return resp, nil
}

func (g *GuardedExchange) PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	return g.place(ctx, order, g.inner.PlaceLimitOrder)
}

func (g *GuardedExchange) PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	return g.place(ctx, order, g.inner.PlaceStopOrder)
}

func (g *GuardedExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if err := g.acquire(ctx); err != nil {
		metricCancels.WithLabelValues("failed").Inc()
		return err
	}
	defer g.mu.Unlock()

	if err := g.inner.CancelOrder(ctx, symbol, orderID); err != nil {
		metricCancels.WithLabelValues("failed").Inc()
		return err
	}
	metricCancels.WithLabelValues("cancelled").Inc()
	return nil
}

func (g *GuardedExchange) GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	return g.inner.GetOrderStatus(ctx, symbol, orderID)
}

func (g *GuardedExchange) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	if err := g.acquire(ctx); err != nil {
		return decimal.Zero, err
	}
	defer g.mu.Unlock()
	return g.inner.GetBalance(ctx, coin)
}

func (g *GuardedExchange) Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error) {
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	return g.inner.Instrument(ctx, symbol)
}
