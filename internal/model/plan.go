package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentRules 交易所对某个交易对的下单限制
type InstrumentRules struct {
	Symbol        string          `json:"symbol"`
	MinQty        decimal.Decimal `json:"min_qty"`
	QtyStep       decimal.Decimal `json:"qty_step"`
	MinNotional   decimal.Decimal `json:"min_notional"`
	TickSize      decimal.Decimal `json:"tick_size"`
	ContractValue decimal.Decimal `json:"contract_value,omitempty"` // 每张合约对应的币数量，仅 OKX 使用
}

// OrderPlan 由 TradeDecision 推导出的有序订单列表：入场单 -> 止损 -> 止盈
type OrderPlan struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Balance       decimal.Decimal `json:"balance"`
	RiskPct       decimal.Decimal `json:"risk_pct"`
	RiskAmount    decimal.Decimal `json:"risk_amount"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	Rules         InstrumentRules `json:"rules"`
	Intents       []OrderIntent   `json:"intents"`
	Warnings      []string        `json:"warnings,omitempty"`
	CancelAfter   time.Duration   `json:"cancel_after"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (p *OrderPlan) ByRole(role OrderRole) []OrderIntent {
	var out []OrderIntent
	for _, it := range p.Intents {
		if it.Role == role {
			out = append(out, it)
		}
	}
	return out
}

func (p *OrderPlan) AddWarning(msg string) {
	p.Warnings = append(p.Warnings, msg)
}
