package model

import (
	"time"

	"github.com/shopspring/decimal"
)

/*
来源于外部自动化平台（make.com）

	{
	  "intent": "trade_decision",
	  "trade": {
	    "action": "open_limit",
	    "symbol": "HYPE/USDT",
	    "side": "long",
	    "risk": {"risk_per_trade_pct": 0.4},
	    "limit_plan": {
	      "orders": [{"price": 44.64, "size_pct": 100}],
	      "stop_loss": 44.1336,
	      "take_profits": [
	        {"price": 45.1464, "size_pct": 30},
	        {"price": 45.5516, "size_pct": 40},
	        {"price": 45.9064, "size_pct": 30}
	      ],
	      "cancel_if": {"timeout_min": 120}
	    }
	  }
	}
*/

const IntentTradeDecision = "trade_decision"

const ActionOpenLimit = "open_limit"

// Side 持仓方向
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// EntrySide 开仓方向的订单买卖方向
func (s Side) EntrySide() OrderSide {
	if s == SideShort {
		return Sell
	}
	return Buy
}

// CloseSide 止损止盈（平仓）使用的买卖方向
func (s Side) CloseSide() OrderSide {
	if s == SideShort {
		return Buy
	}
	return Sell
}

type EntryOrder struct {
	Price   decimal.Decimal `json:"price"`
	SizePct decimal.Decimal `json:"size_pct"`
}

// TakeProfitLeg 的 SizePct 是相对整个仓位的比例，不是剩余仓位
type TakeProfitLeg struct {
	Price   decimal.Decimal `json:"price"`
	SizePct decimal.Decimal `json:"size_pct"`
}

type CancelIf struct {
	Condition  string `json:"condition,omitempty"`
	TimeoutMin int    `json:"timeout_min"`
}

type LimitPlan struct {
	Orders      []EntryOrder    `json:"orders"`
	StopLoss    decimal.Decimal `json:"stop_loss"`
	TakeProfits []TakeProfitLeg `json:"take_profits"`
	CancelIf    CancelIf        `json:"cancel_if"`
}

// TradeDecision 是在入口处解析校验后的交易决策，之后只读
type TradeDecision struct {
	Action          string          `json:"action"`
	Symbol          string          `json:"symbol"`
	Side            Side            `json:"side"`
	RiskPerTradePct decimal.Decimal `json:"risk_per_trade_pct"`
	RiskDefaulted   bool            `json:"risk_defaulted,omitempty"` // 请求中未给出风险比例，使用了配置默认值
	LimitPlan       LimitPlan       `json:"limit_plan"`
	Reason          string          `json:"reason,omitempty"`
	Confidence      float64         `json:"confidence,omitempty"`
	ReceivedAt      time.Time       `json:"received_at"`
}

// RiskReferencePrice 仓位计算只使用第一笔入场单的价格
func (d *TradeDecision) RiskReferencePrice() decimal.Decimal {
	if len(d.LimitPlan.Orders) == 0 {
		return decimal.Zero
	}
	return d.LimitPlan.Orders[0].Price
}

func (d *TradeDecision) CancelAfter() time.Duration {
	if d.LimitPlan.CancelIf.TimeoutMin <= 0 {
		return 0
	}
	return time.Duration(d.LimitPlan.CancelIf.TimeoutMin) * time.Minute
}
