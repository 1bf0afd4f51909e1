package risk

import (
	"edgerelay/internal/model"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Sizing 仓位计算的中间结果，用于日志和报告
type Sizing struct {
	RiskAmount  decimal.Decimal // 账户余额 × 风险比例
	PerUnitRisk decimal.Decimal // |入场价 - 止损价|
	RawQuantity decimal.Decimal // 未按步长取整的数量
	Quantity    decimal.Decimal
}

// ComputeQuantity 根据风险比例计算下单数量：
// 数量 = 余额 × 风险% / |入场 - 止损|，向下取整到数量步长
func ComputeQuantity(balance, riskPct, entry, stop decimal.Decimal, rules model.InstrumentRules) (*Sizing, error) {
	if !riskPct.IsPositive() {
		return nil, fmt.Errorf("%w: risk_per_trade_pct must be positive, got %s", model.ErrInvalidRiskInput, riskPct)
	}
	perUnit := entry.Sub(stop).Abs()
	if !perUnit.IsPositive() {
		return nil, fmt.Errorf("%w: entry %s equals stop loss", model.ErrInvalidRiskInput, entry)
	}

	s := &Sizing{
		RiskAmount:  balance.Mul(riskPct).Div(hundred),
		PerUnitRisk: perUnit,
	}
	s.RawQuantity = s.RiskAmount.Div(perUnit)
	s.Quantity = FloorToStep(s.RawQuantity, rules.QtyStep)

	if err := CheckMinimums(s.Quantity, entry, rules); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckMinimums 数量低于交易所最小下单量或最小名义价值时返回 ErrInsufficientSize
func CheckMinimums(qty, price decimal.Decimal, rules model.InstrumentRules) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: quantity rounds to %s", model.ErrInsufficientSize, qty)
	}
	if rules.MinQty.IsPositive() && qty.LessThan(rules.MinQty) {
		return fmt.Errorf("%w: quantity %s below min qty %s", model.ErrInsufficientSize, qty, rules.MinQty)
	}
	notional := qty.Mul(price)
	if rules.MinNotional.IsPositive() && notional.LessThan(rules.MinNotional) {
		return fmt.Errorf("%w: notional %s below min notional %s", model.ErrInsufficientSize, notional.StringFixed(4), rules.MinNotional)
	}
	return nil
}

// FloorToStep 向下取整到 step 的整数倍，step<=0 时原样返回
func FloorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}

// RoundToTick 四舍五入到最近的价格精度
func RoundToTick(v, tick decimal.Decimal) decimal.Decimal {
	if !tick.IsPositive() {
		return v
	}
	return v.Div(tick).Round(0).Mul(tick)
}
