package webhook

import (
	"edgerelay/internal/model"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var (
	validate = validator.New()
	trans    ut.Translator
)

func init() {
	uni := ut.New(en.New())
	trans, _ = uni.GetTranslator("en")
	_ = entrans.RegisterDefaultTranslations(validate, trans)

	// 错误信息里使用 json 字段名
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

type document struct {
	Intent     string    `json:"intent" validate:"required"`
	Trade      *tradeDoc `json:"trade" validate:"required"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
}

type tradeDoc struct {
	Action     string        `json:"action"`
	Symbol     string        `json:"symbol" validate:"required"`
	Side       string        `json:"side" validate:"required,oneof=long short"`
	Risk       *riskDoc      `json:"risk"`
	LimitPlan  *limitPlanDoc `json:"limit_plan" validate:"required"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
}

type riskDoc struct {
	RiskPerTradePct *decimal.Decimal `json:"risk_per_trade_pct"`
}

type priceLegDoc struct {
	Price   *decimal.Decimal `json:"price" validate:"required"`
	SizePct *decimal.Decimal `json:"size_pct" validate:"required"`
}

type cancelIfDoc struct {
	Condition  string `json:"condition"`
	TimeoutMin int    `json:"timeout_min" validate:"gte=0"`
}

type limitPlanDoc struct {
	Orders      []priceLegDoc    `json:"orders" validate:"required,min=1,dive"`
	StopLoss    *decimal.Decimal `json:"stop_loss" validate:"required"`
	TakeProfits []priceLegDoc    `json:"take_profits" validate:"required,min=1,dive"`
	CancelIf    *cancelIfDoc     `json:"cancel_if"`
}

// ParseTradeDecision 把 webhook 原始 body 解析为 TradeDecision。
// 非法 JSON 或 intent 不匹配返回 ErrMalformedDocument；字段缺失或取值非法返回 ErrInvalidPlan；
// 风险比例 <= 0 返回 ErrInvalidRiskInput。未给出风险比例时使用 defaultRiskPct
func ParseTradeDecision(raw []byte, defaultRiskPct decimal.Decimal) (*model.TradeDecision, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", model.ErrMalformedDocument)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid JSON", model.ErrMalformedDocument)
	}
	if intent := gjson.GetBytes(raw, "intent"); intent.String() != model.IntentTradeDecision {
		return nil, fmt.Errorf("%w: intent must be %q, got %q", model.ErrMalformedDocument, model.IntentTradeDecision, intent.String())
	}
	if !gjson.GetBytes(raw, "trade").IsObject() {
		return nil, fmt.Errorf("%w: trade must be an object", model.ErrInvalidPlan)
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidPlan, err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidPlan, describe(err))
	}

	t := doc.Trade
	d := &model.TradeDecision{
		Action:     strings.TrimSpace(t.Action),
		Symbol:     strings.ToUpper(strings.TrimSpace(t.Symbol)),
		Side:       model.Side(t.Side),
		Reason:     firstNonEmpty(t.Reason, doc.Reason),
		Confidence: t.Confidence,
		ReceivedAt: time.Now(),
		LimitPlan: model.LimitPlan{
			StopLoss: *t.LimitPlan.StopLoss,
		},
	}
	if d.Confidence == 0 {
		d.Confidence = doc.Confidence
	}
	if d.Action != "" && d.Action != model.ActionOpenLimit {
		return nil, fmt.Errorf("%w: unsupported action %q", model.ErrInvalidPlan, d.Action)
	}

	if t.Risk == nil || t.Risk.RiskPerTradePct == nil {
		d.RiskPerTradePct = defaultRiskPct
		d.RiskDefaulted = true
	} else {
		d.RiskPerTradePct = *t.Risk.RiskPerTradePct
	}
	if !d.RiskPerTradePct.IsPositive() {
		return nil, fmt.Errorf("%w: risk_per_trade_pct must be positive, got %s", model.ErrInvalidRiskInput, d.RiskPerTradePct)
	}

	for _, o := range t.LimitPlan.Orders {
		d.LimitPlan.Orders = append(d.LimitPlan.Orders, model.EntryOrder{Price: *o.Price, SizePct: *o.SizePct})
	}
	for _, tp := range t.LimitPlan.TakeProfits {
		d.LimitPlan.TakeProfits = append(d.LimitPlan.TakeProfits, model.TakeProfitLeg{Price: *tp.Price, SizePct: *tp.SizePct})
	}
	if c := t.LimitPlan.CancelIf; c != nil {
		d.LimitPlan.CancelIf = model.CancelIf{Condition: c.Condition, TimeoutMin: c.TimeoutMin}
	}
	return d, nil
}

// describe 只保留第一个校验失败的字段
func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return strings.TrimPrefix(fe.Namespace(), "document.") + ": " + fe.Translate(trans)
	}
	return err.Error()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
