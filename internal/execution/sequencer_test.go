package execution

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type MockExchange struct {
	mock.Mock
}

func (m *MockExchange) PlaceLimitOrder(ctx context.Context, o *model.Order) (*model.OrderResponse, error) {
	args := m.Called(ctx, o)
	resp, _ := args.Get(0).(*model.OrderResponse)
	return resp, args.Error(1)
}

func (m *MockExchange) PlaceStopOrder(ctx context.Context, o *model.Order) (*model.OrderResponse, error) {
	args := m.Called(ctx, o)
	resp, _ := args.Get(0).(*model.OrderResponse)
	return resp, args.Error(1)
}

func (m *MockExchange) CancelOrder(ctx context.Context, symbol, orderID string) error {
	args := m.Called(ctx, symbol, orderID)
	return args.Error(0)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intent(role model.OrderRole, leg int, typ model.OrderType, side model.OrderSide, price, qty, cid string) model.OrderIntent {
	return model.OrderIntent{
		Role: role, Leg: leg, Side: side, OrderType: typ,
		Price: d(price), Quantity: d(qty), ClientOrderID: cid,
	}
}

// 两笔入场 + 止损 + 三笔止盈
func testPlan() *model.OrderPlan {
	return &model.OrderPlan{
		ID:     "p1",
		Symbol: "HYPE/USDT",
		Side:   model.SideLong,
		Intents: []model.OrderIntent{
			intent(model.RoleEntry, 1, model.Limit, model.Buy, "44.64", "47.38", "p1-e1"),
			intent(model.RoleEntry, 2, model.Limit, model.Buy, "44.50", "31.59", "p1-e2"),
			intent(model.RoleStopLoss, 1, model.StopMarket, model.Sell, "44.1336", "78.98", "p1-sl"),
			intent(model.RoleTakeProfit, 1, model.Limit, model.Sell, "45.1464", "23.69", "p1-tp1"),
			intent(model.RoleTakeProfit, 2, model.Limit, model.Sell, "45.5516", "31.59", "p1-tp2"),
			intent(model.RoleTakeProfit, 3, model.Limit, model.Sell, "45.9064", "23.69", "p1-tp3"),
		},
	}
}

func byCID(cid string) interface{} {
	return mock.MatchedBy(func(o *model.Order) bool { return o.ClientOrderID == cid })
}

func ok(id string) *model.OrderResponse {
	return &model.OrderResponse{OrderId: id}
}

var rejected = &model.RejectionError{Code: "110007", Reason: "insufficient margin"}

func TestSubmitAllPlaced(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, mock.Anything).Return(ok("L"), nil)
	ex.On("PlaceStopOrder", mock.Anything, mock.Anything).Return(ok("S"), nil)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	require.Len(t, res.Legs, 6)
	assert.Equal(t, model.ExecutionPlaced, res.Status())
	assert.False(t, res.Aborted)
	assert.False(t, res.Unprotected)
	assert.NoError(t, res.Err())
	ex.AssertNumberOfCalls(t, "PlaceLimitOrder", 5)
	ex.AssertNumberOfCalls(t, "PlaceStopOrder", 1)
	ex.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitSubmitsInPlanOrder(t *testing.T) {
	ex := new(MockExchange)
	var seen []string
	record := func(args mock.Arguments) {
		seen = append(seen, args.Get(1).(*model.Order).ClientOrderID)
	}
	ex.On("PlaceLimitOrder", mock.Anything, mock.Anything).Run(record).Return(ok("L"), nil)
	ex.On("PlaceStopOrder", mock.Anything, mock.Anything).Run(record).Return(ok("S"), nil)

	NewSequencer(ex).Submit(context.Background(), testPlan())
	assert.Equal(t, []string{"p1-e1", "p1-e2", "p1-sl", "p1-tp1", "p1-tp2", "p1-tp3"}, seen)
}

func TestSubmitStopOrderCarriesTrigger(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, mock.Anything).Return(ok("L"), nil)
	ex.On("PlaceStopOrder", mock.Anything, mock.MatchedBy(func(o *model.Order) bool {
		return o.TriggerPrice.Equal(d("44.1336")) && o.Price.IsZero() && o.PosSide == model.SideLong
	})).Return(ok("S"), nil)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())
	assert.Equal(t, model.ExecutionPlaced, res.Status())
	ex.AssertExpectations(t)
}

func TestSubmitFirstEntryRejectedAborts(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e1")).Return(nil, rejected)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	assert.True(t, res.Aborted)
	assert.Equal(t, model.ExecutionAborted, res.Status())
	ex.AssertNumberOfCalls(t, "PlaceLimitOrder", 1)
	ex.AssertNumberOfCalls(t, "PlaceStopOrder", 0)
	ex.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)

	require.Len(t, res.Legs, 6)
	first := res.Legs[0]
	assert.Equal(t, model.LegRejected, first.Status)
	assert.True(t, first.Fatal)
	assert.Equal(t, model.KindExchangeRejection, first.ErrorKind)
	for _, leg := range res.Legs[1:] {
		assert.Equal(t, model.LegSkipped, leg.Status, leg.Intent.ClientOrderID)
	}
	assert.ErrorIs(t, res.Err(), model.ErrExchangeRejection)
}

func TestSubmitSecondEntryRejectedRollsBackFirst(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e1")).Return(ok("E1"), nil)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e2")).Return(nil, rejected)
	ex.On("CancelOrder", mock.Anything, "HYPE/USDT", "E1").Return(nil)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	assert.Equal(t, model.ExecutionAborted, res.Status())
	assert.True(t, res.Legs[0].RolledBack)
	assert.Equal(t, model.LegPlaced, res.Legs[0].Status)
	assert.Empty(t, res.Placed(model.RoleEntry))
	assert.Equal(t, model.LegRejected, res.Legs[1].Status)
	ex.AssertNumberOfCalls(t, "PlaceStopOrder", 0)
	ex.AssertExpectations(t)
}

func TestSubmitRollbackFailureKeepsEntryPlaced(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e1")).Return(ok("E1"), nil)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e2")).Return(nil, rejected)
	ex.On("CancelOrder", mock.Anything, "HYPE/USDT", "E1").
		Return(&model.TransportError{Op: "cancel", Err: errors.New("timeout")})

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	assert.True(t, res.Aborted)
	assert.False(t, res.Legs[0].RolledBack)
	assert.Contains(t, res.Legs[0].Reason, "rollback failed")
	assert.Len(t, res.Placed(model.RoleEntry), 1)
}

func TestSubmitRollbackSurvivesCancelledContext(t *testing.T) {
	ex := new(MockExchange)
	ctx, cancel := context.WithCancel(context.Background())
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e1")).Return(ok("E1"), nil)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e2")).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, &model.TransportError{Op: "place", Err: context.Canceled})
	ex.On("CancelOrder", mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil }), "HYPE/USDT", "E1").Return(nil)

	res := NewSequencer(ex).Submit(ctx, testPlan())
	assert.True(t, res.Legs[0].RolledBack)
	assert.Equal(t, model.KindTransportFailure, res.Legs[1].ErrorKind)
	ex.AssertExpectations(t)
}

func TestSubmitRollbackDisabled(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e1")).Return(ok("E1"), nil)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-e2")).Return(nil, rejected)

	res := NewSequencer(ex).WithRollback(false).Submit(context.Background(), testPlan())
	assert.True(t, res.Aborted)
	assert.False(t, res.Legs[0].RolledBack)
	ex.AssertNotCalled(t, "CancelOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitStopLossRejectedContinues(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(zap.NewNop()) })

	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, mock.Anything).Return(ok("L"), nil)
	ex.On("PlaceStopOrder", mock.Anything, mock.Anything).Return(nil, rejected)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	assert.False(t, res.Aborted)
	assert.True(t, res.Unprotected)
	assert.Equal(t, model.ExecutionPartial, res.Status())
	assert.True(t, res.Legs[2].Critical)
	assert.Len(t, res.Placed(model.RoleTakeProfit), 3)
	ex.AssertNumberOfCalls(t, "PlaceLimitOrder", 5)
	assert.Equal(t, 1, logs.FilterMessageSnippet("position unprotected").Len())
}

func TestSubmitTakeProfitRejectedIsolated(t *testing.T) {
	ex := new(MockExchange)
	ex.On("PlaceLimitOrder", mock.Anything, byCID("p1-tp1")).Return(nil, rejected)
	ex.On("PlaceLimitOrder", mock.Anything, mock.Anything).Return(ok("L"), nil)
	ex.On("PlaceStopOrder", mock.Anything, mock.Anything).Return(ok("S"), nil)

	res := NewSequencer(ex).Submit(context.Background(), testPlan())

	assert.Equal(t, model.ExecutionPartial, res.Status())
	assert.False(t, res.Unprotected)
	assert.False(t, res.Aborted)
	assert.Equal(t, model.LegRejected, res.Legs[3].Status)
	assert.False(t, res.Legs[3].Fatal)
	assert.False(t, res.Legs[3].Critical)
	assert.Len(t, res.Placed(model.RoleTakeProfit), 2)
	assert.Len(t, res.Placed(model.RoleStopLoss), 1)
}

func TestPolicyUnknownRoleAborts(t *testing.T) {
	assert.Equal(t, AbortRemaining, DefaultPolicy.OnFailure("hedge"))
	assert.Equal(t, ContinueCritical, DefaultPolicy.OnFailure(model.RoleStopLoss))
	assert.Equal(t, "continue_isolated", ContinueIsolated.String())
}
