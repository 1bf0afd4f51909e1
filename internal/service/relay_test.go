package service

import (
	"context"
	"edgerelay/internal/canceller"
	"edgerelay/internal/exchange"
	"edgerelay/internal/model"
	"edgerelay/internal/plan"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu      sync.Mutex
	reports []*model.ExecutionReport
}

func (m *memRecorder) Record(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, v.(*model.ExecutionReport))
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func hypeDecision() *model.TradeDecision {
	return &model.TradeDecision{
		Action:          model.ActionOpenLimit,
		Symbol:          "HYPE/USDT",
		Side:            model.SideLong,
		RiskPerTradePct: dec("0.4"),
		Reason:          "test",
		ReceivedAt:      time.Now(),
		LimitPlan: model.LimitPlan{
			Orders:   []model.EntryOrder{{Price: dec("44.64"), SizePct: dec("100")}},
			StopLoss: dec("44.1336"),
			TakeProfits: []model.TakeProfitLeg{
				{Price: dec("45.1464"), SizePct: dec("30")},
				{Price: dec("45.5516"), SizePct: dec("40")},
				{Price: dec("45.9064"), SizePct: dec("30")},
			},
			CancelIf: model.CancelIf{TimeoutMin: 120},
		},
	}
}

type relayFixture struct {
	ex      *exchange.SimulatedExchange
	journal *memRecorder
	cancel  *canceller.Canceller
	svc     *RelayService
}

func newRelayFixture(t *testing.T, balance string) *relayFixture {
	ex := exchange.NewSimulatedExchange(dec(balance))
	ex.SetRules(model.InstrumentRules{
		Symbol: "HYPE/USDT", MinQty: dec("0.01"), QtyStep: dec("0.01"),
		MinNotional: dec("5"), TickSize: dec("0.0001"),
	})
	journal := &memRecorder{}
	c := canceller.New(ex)
	t.Cleanup(c.Stop)

	svc := NewRelayService(ex,
		NewInstrumentService(ex, nil, 5, time.Hour),
		plan.NewBuilder(2, false),
		c, journal, "USDT")
	return &relayFixture{ex: ex, journal: journal, cancel: c, svc: svc}
}

func TestRelayExecutePlacesFullPlan(t *testing.T) {
	f := newRelayFixture(t, "10000")

	report, err := f.svc.Execute(context.Background(), "42", hypeDecision())
	require.NoError(t, err)

	assert.Equal(t, "42", report.PlanID)
	assert.Equal(t, model.ExecutionPlaced, report.Status)
	assert.True(t, report.TotalQuantity.Equal(dec("78.98")))
	assert.Len(t, report.Legs, 5)
	require.NotNil(t, report.CancelAt)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *report.CancelAt, time.Minute)
	assert.Equal(t, 1, f.cancel.Pending())

	orders := f.ex.Orders()
	require.Len(t, orders, 5)
	assert.Equal(t, model.RoleEntry, orders[0].Role)
	assert.Equal(t, "42-e1", orders[0].ClientOrderID)
	assert.Equal(t, model.StopMarket, orders[1].OrderType)
	assert.True(t, orders[1].Quantity.Equal(dec("78.98")))
	assert.Equal(t, model.Sell, orders[2].Side)

	require.Len(t, f.journal.reports, 1)
	assert.Equal(t, "test", f.journal.reports[0].Reason)
}

func TestRelayInsufficientSizeSubmitsNothing(t *testing.T) {
	f := newRelayFixture(t, "5")

	report, err := f.svc.Execute(context.Background(), "43", hypeDecision())
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, model.ErrInsufficientSize)
	assert.Empty(t, f.ex.Orders())

	require.Len(t, f.journal.reports, 1)
	assert.Equal(t, model.ExecutionRejected, f.journal.reports[0].Status)
	assert.NotEmpty(t, f.journal.reports[0].Error)
}

func TestRelayEntryRejectedAborts(t *testing.T) {
	f := newRelayFixture(t, "10000")
	f.ex.RejectFunc = func(o *model.Order) error {
		if o.Role == model.RoleEntry {
			return &model.RejectionError{Code: "110007", Reason: "insufficient margin"}
		}
		return nil
	}

	report, err := f.svc.Execute(context.Background(), "44", hypeDecision())
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionAborted, report.Status)
	assert.Empty(t, f.ex.Orders())
	assert.Nil(t, report.CancelAt)
	assert.Equal(t, 0, f.cancel.Pending())
	assert.Contains(t, report.Error, "insufficient margin")
}

func TestRelayStopRejectedIsUnprotected(t *testing.T) {
	f := newRelayFixture(t, "10000")
	f.ex.RejectFunc = func(o *model.Order) error {
		if o.Role == model.RoleStopLoss {
			return &model.RejectionError{Code: "10001", Reason: "trigger price invalid"}
		}
		return nil
	}

	report, err := f.svc.Execute(context.Background(), "45", hypeDecision())
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionPartial, report.Status)
	assert.True(t, report.Unprotected)
	assert.Len(t, f.ex.Orders(), 4)
}

func TestRelayPreviewDoesNotSubmit(t *testing.T) {
	f := newRelayFixture(t, "10000")
	bal := dec("20000")

	p, err := f.svc.Preview(context.Background(), hypeDecision(), &bal)
	require.NoError(t, err)
	assert.True(t, p.TotalQuantity.Equal(dec("157.97")))
	assert.Empty(t, f.ex.Orders())
	assert.Empty(t, f.journal.reports)
}
