package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrderState(t *testing.T) {
	cases := map[string]string{
		"New":                     OrderStateNew,
		"live":                    OrderStateNew,
		"PartiallyFilled":         OrderStatePartiallyFilled,
		"partially_filled":        OrderStatePartiallyFilled,
		"part-finished":           OrderStatePartiallyFilled,
		"Filled":                  OrderStateFilled,
		"finished":                OrderStateFilled,
		"Cancelled":               OrderStateCancelled,
		"canceled":                OrderStateCancelled,
		"PartiallyFilledCanceled": OrderStateCancelled,
		"Untriggered":             OrderStateUntriggered,
		"Rejected":                OrderStateRejected,
		"Weird":                   "weird",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeOrderState(raw), raw)
	}
}

func TestOrderIntentToOrder(t *testing.T) {
	sl := OrderIntent{Role: RoleStopLoss, Side: Sell, OrderType: StopMarket}
	o := sl.ToOrder("BTC/USDT", SideLong)
	assert.True(t, o.Price.IsZero())
	assert.Equal(t, SideLong, o.PosSide)
	assert.Equal(t, RoleStopLoss, o.Role)
}
