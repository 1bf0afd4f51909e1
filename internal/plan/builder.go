package plan

import (
	"edgerelay/internal/model"
	"edgerelay/internal/risk"
	"edgerelay/pkg/logger"
	"edgerelay/utils/idgen"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Builder 把交易决策展开为有序的订单计划
type Builder struct {
	// 单笔风险比例上限（%）
	MaxRiskPct decimal.Decimal
	// 止损止盈是否设置 reduceOnly
	ReduceOnlyProtective bool

	NewID func() string
	Now   func() time.Time
}

func NewBuilder(maxRiskPct float64, reduceOnly bool) *Builder {
	return &Builder{
		MaxRiskPct:           decimal.NewFromFloat(maxRiskPct),
		ReduceOnlyProtective: reduceOnly,
		NewID:                idgen.NextID,
		Now:                  time.Now,
	}
}

// Build 校验决策并计算每条订单的价格和数量。
// 顺序固定为：入场单 -> 止损单 -> 止盈单
func (b *Builder) Build(d *model.TradeDecision, balance decimal.Decimal, rules model.InstrumentRules) (*model.OrderPlan, error) {
	return b.BuildWithID("", d, balance, rules)
}

// BuildWithID 使用调用方预先分配的计划id，id 为空时自动生成
func (b *Builder) BuildWithID(id string, d *model.TradeDecision, balance decimal.Decimal, rules model.InstrumentRules) (*model.OrderPlan, error) {
	if err := validate(d); err != nil {
		return nil, err
	}
	if b.MaxRiskPct.IsPositive() && d.RiskPerTradePct.GreaterThan(b.MaxRiskPct) {
		return nil, fmt.Errorf("%w: risk_per_trade_pct %s exceeds max %s", model.ErrInvalidRiskInput, d.RiskPerTradePct, b.MaxRiskPct)
	}

	lp := d.LimitPlan
	// 止损必须在每一笔入场价的正确一侧
	for i, o := range lp.Orders {
		if err := checkStopSide(d.Side, o.Price, lp.StopLoss); err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i+1, err)
		}
	}

	stop := risk.RoundToTick(lp.StopLoss, rules.TickSize)
	entries := make([]decimal.Decimal, len(lp.Orders))
	for i, o := range lp.Orders {
		entries[i] = risk.RoundToTick(o.Price, rules.TickSize)
		if entries[i].Equal(stop) {
			return nil, fmt.Errorf("%w: entry #%d %s collapses onto stop loss after tick rounding", model.ErrInvalidRiskInput, i+1, o.Price)
		}
	}

	ref := risk.RoundToTick(d.RiskReferencePrice(), rules.TickSize)
	sizing, err := risk.ComputeQuantity(balance, d.RiskPerTradePct, ref, stop, rules)
	if err != nil {
		return nil, err
	}

	if id == "" {
		id = b.newID()
	}
	p := &model.OrderPlan{
		ID:            id,
		Symbol:        d.Symbol,
		Side:          d.Side,
		Balance:       balance,
		RiskPct:       d.RiskPerTradePct,
		RiskAmount:    sizing.RiskAmount,
		TotalQuantity: sizing.Quantity,
		Rules:         rules,
		CancelAfter:   d.CancelAfter(),
		CreatedAt:     b.now(),
	}

	for i, o := range lp.Orders {
		qty := legQuantity(sizing.Quantity, o.SizePct, rules.QtyStep)
		if !qty.IsPositive() {
			warn(p, fmt.Sprintf("entry #%d dropped: size_pct %s gives quantity %s", i+1, o.SizePct, qty))
			continue
		}
		// 入场单被交易所拒绝会终止整个计划，这里提前失败
		if err := risk.CheckMinimums(qty, entries[i], rules); err != nil {
			return nil, fmt.Errorf("entry #%d: %w", i+1, err)
		}
		p.Intents = append(p.Intents, model.OrderIntent{
			Role:          model.RoleEntry,
			Leg:           i + 1,
			Side:          d.Side.EntrySide(),
			OrderType:     model.Limit,
			Price:         entries[i],
			Quantity:      qty,
			SizePct:       o.SizePct,
			ClientOrderID: fmt.Sprintf("%s-e%d", id, i+1),
		})
	}
	if len(p.Intents) == 0 {
		return nil, fmt.Errorf("%w: every entry leg rounds to zero quantity", model.ErrInsufficientSize)
	}

	// 止损按计划总数量，不按实际成交数量
	p.Intents = append(p.Intents, model.OrderIntent{
		Role:          model.RoleStopLoss,
		Leg:           1,
		Side:          d.Side.CloseSide(),
		OrderType:     model.StopMarket,
		Price:         stop,
		Quantity:      sizing.Quantity,
		SizePct:       hundred,
		ReduceOnly:    b.ReduceOnlyProtective,
		ClientOrderID: id + "-sl",
	})

	for i, tp := range lp.TakeProfits {
		qty := legQuantity(sizing.Quantity, tp.SizePct, rules.QtyStep)
		if !qty.IsPositive() {
			warn(p, fmt.Sprintf("take profit #%d dropped: size_pct %s gives quantity %s", i+1, tp.SizePct, qty))
			continue
		}
		price := risk.RoundToTick(tp.Price, rules.TickSize)
		if err := risk.CheckMinimums(qty, price, rules); err != nil {
			warn(p, fmt.Sprintf("take profit #%d dropped: %v", i+1, err))
			continue
		}
		if !beyond(d.Side, price, ref) {
			warn(p, fmt.Sprintf("take profit #%d price %s is not beyond entry %s", i+1, price, ref))
		}
		p.Intents = append(p.Intents, model.OrderIntent{
			Role:          model.RoleTakeProfit,
			Leg:           i + 1,
			Side:          d.Side.CloseSide(),
			OrderType:     model.Limit,
			Price:         price,
			Quantity:      qty,
			SizePct:       tp.SizePct,
			ReduceOnly:    b.ReduceOnlyProtective,
			ClientOrderID: fmt.Sprintf("%s-tp%d", id, i+1),
		})
	}

	logger.Info("order plan built",
		logger.Pair("plan_id", p.ID),
		logger.Pair("symbol", p.Symbol),
		logger.Pair("side", p.Side),
		logger.Pair("balance", balance.String()),
		logger.Pair("risk_amount", sizing.RiskAmount.String()),
		logger.Pair("per_unit_risk", sizing.PerUnitRisk.String()),
		logger.Pair("quantity", sizing.Quantity.String()),
		logger.Pair("legs", len(p.Intents)))
	return p, nil
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return idgen.NextID()
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func warn(p *model.OrderPlan, msg string) {
	p.AddWarning(msg)
	logger.Warn(msg, logger.Pair("plan_id", p.ID))
}

func legQuantity(total, sizePct, step decimal.Decimal) decimal.Decimal {
	return risk.FloorToStep(total.Mul(sizePct).Div(hundred), step)
}

func validate(d *model.TradeDecision) error {
	if d == nil {
		return fmt.Errorf("%w: empty decision", model.ErrInvalidPlan)
	}
	if d.Action != "" && d.Action != model.ActionOpenLimit {
		return fmt.Errorf("%w: unsupported action %q", model.ErrInvalidPlan, d.Action)
	}
	if d.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", model.ErrInvalidPlan)
	}
	if !d.Side.Valid() {
		return fmt.Errorf("%w: side must be long or short, got %q", model.ErrInvalidPlan, d.Side)
	}
	lp := d.LimitPlan
	if len(lp.Orders) == 0 {
		return fmt.Errorf("%w: limit_plan.orders is empty", model.ErrInvalidPlan)
	}
	if !lp.StopLoss.IsPositive() {
		return fmt.Errorf("%w: stop_loss must be positive", model.ErrInvalidPlan)
	}
	for i, o := range lp.Orders {
		if !o.Price.IsPositive() {
			return fmt.Errorf("%w: entry #%d price must be positive", model.ErrInvalidPlan, i+1)
		}
		if o.SizePct.IsNegative() || o.SizePct.GreaterThan(hundred) {
			return fmt.Errorf("%w: entry #%d size_pct out of range", model.ErrInvalidPlan, i+1)
		}
	}
	for i, tp := range lp.TakeProfits {
		if !tp.Price.IsPositive() {
			return fmt.Errorf("%w: take profit #%d price must be positive", model.ErrInvalidPlan, i+1)
		}
		if tp.SizePct.IsNegative() || tp.SizePct.GreaterThan(hundred) {
			return fmt.Errorf("%w: take profit #%d size_pct out of range", model.ErrInvalidPlan, i+1)
		}
	}
	return nil
}

// 多单止损在入场价下方，空单止损在入场价上方
func checkStopSide(side model.Side, entry, stop decimal.Decimal) error {
	if entry.Equal(stop) {
		return fmt.Errorf("%w: entry %s equals stop loss", model.ErrInvalidRiskInput, entry)
	}
	if !beyond(side, entry, stop) {
		return fmt.Errorf("%w: stop loss %s is on the wrong side of %s entry %s", model.ErrInvalidPlan, stop, side, entry)
	}
	return nil
}

// beyond 对于多单 a > b，对于空单 a < b
func beyond(side model.Side, a, b decimal.Decimal) bool {
	if side == model.SideShort {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}
