package okx

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"fmt"
	"strconv"
	"strings"

	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/okx/futures"
	"github.com/shopspring/decimal"
)

/*
合约交易需要设置tdMode
| 值          | 含义   |
| ---------- | ---- |
| `cross`    | 全仓模式 |
| `isolated` | 逐仓模式 |
*/

// 开平仓方向：开多/开空用于入场单，平多/平空用于止损止盈
func futuresSide(order *model.Order) goexmodel.OrderSide {
	closing := order.Role == model.RoleStopLoss || order.Role == model.RoleTakeProfit
	switch {
	case order.PosSide == model.SideShort && closing:
		return goexmodel.Futures_CloseSell
	case order.PosSide == model.SideShort:
		return goexmodel.Futures_OpenSell
	case closing:
		return goexmodel.Futures_CloseBuy
	default:
		return goexmodel.Futures_OpenBuy
	}
}

// ToContracts 币数量换算为张数，计划数量已按 lotSz×ctVal 取整
func ToContracts(qty, ctVal decimal.Decimal) decimal.Decimal {
	if !ctVal.IsPositive() {
		return qty
	}
	return qty.Div(ctVal)
}

// clOrdId 只允许字母和数字
func clientOrderID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

// 限价单，Quantity 的单位为币，下单时换算为张
func (e *Okx) PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	pair, err := e.toCurrencyPair(order.Symbol)
	if err != nil {
		return nil, err
	}
	posSide := string(order.PosSide)
	if err := e.setLeverage(pair.Symbol, posSide); err != nil {
		return nil, err
	}

	opts := []goexmodel.OptionParameter{
		{Key: "tdMode", Value: e.cfg.MarginMode},
		{Key: "posSide", Value: posSide},
	}
	if order.ClientOrderID != "" {
		opts = append(opts, goexmodel.OptionParameter{Key: "clOrdId", Value: clientOrderID(order.ClientOrderID)})
	}
	if order.ReduceOnly {
		opts = append(opts, goexmodel.OptionParameter{Key: "reduceOnly", Value: "true"})
	}

	sz := ToContracts(order.Quantity, decimal.NewFromFloat(pair.ContractVal))
	created, _, err := e.prv.CreateOrder(pair, sz.InexactFloat64(), order.Price.InexactFloat64(),
		futuresSide(order), goexmodel.OrderType_Limit, opts...)
	if err != nil {
		return nil, classify("create order", err)
	}

	logger.Info("okx order created",
		logger.Pair("inst_id", pair.Symbol),
		logger.Pair("role", order.Role),
		logger.Pair("sz", sz.String()),
		logger.Pair("price", order.Price.String()),
		logger.Pair("order_id", created.Id))
	return &model.OrderResponse{
		OrderId:       created.Id,
		ClientOrderID: order.ClientOrderID,
		Status:        int(created.Status),
	}, nil
}

// PlaceStopOrder 止损走策略委托（conditional），触发后市价平仓
func (e *Okx) PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error) {
	pair, err := e.toCurrencyPair(order.Symbol)
	if err != nil {
		return nil, err
	}
	side := "sell"
	if order.Side == model.Buy {
		side = "buy"
	}
	sz := ToContracts(order.Quantity, decimal.NewFromFloat(pair.ContractVal))

	algoID, err := e.algo.place(ctx, &algoOrderReq{
		InstId:          pair.Symbol,
		TdMode:          e.cfg.MarginMode,
		Side:            side,
		PosSide:         string(order.PosSide),
		OrdType:         "conditional",
		Sz:              sz.String(),
		SlTriggerPx:     order.TriggerPrice.String(),
		SlOrdPx:         "-1", // -1 表示市价止损
		SlTriggerPxType: "last",
		ReduceOnly:      order.ReduceOnly,
		AlgoClOrdId:     clientOrderID(order.ClientOrderID),
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.algoIDs[algoID] = true
	e.mu.Unlock()

	logger.Info("okx stop order created",
		logger.Pair("inst_id", pair.Symbol),
		logger.Pair("sz", sz.String()),
		logger.Pair("trigger", order.TriggerPrice.String()),
		logger.Pair("algo_id", algoID))
	return &model.OrderResponse{
		OrderId:       algoID,
		ClientOrderID: order.ClientOrderID,
	}, nil
}

// setLeverage 设置合约杠杆，每个 instId+posSide 只设置一次
// marginMode 保证金模式：isolated（逐仓）或 cross（全仓）
// posSide    持仓方向：long（做多）、short（做空）
func (e *Okx) setLeverage(instId, posSide string) error {
	key := instId + ":" + posSide
	e.mu.Lock()
	done := e.leverage[key]
	e.mu.Unlock()
	if done {
		return nil
	}

	okxPrv, ok := e.prv.(*futures.PrvApi)
	if !ok {
		return fmt.Errorf("无法设置杠杆，Prv() 必须是合约")
	}
	marginMode := e.cfg.MarginMode
	if marginMode != string(model.OrderMgnModeIsolated) && marginMode != string(model.OrderMgnModeCross) {
		return fmt.Errorf("不支持的保证金模式: %s", marginMode)
	}
	opts := []goexmodel.OptionParameter{{Key: "mgnMode", Value: marginMode}}
	if marginMode == string(model.OrderMgnModeIsolated) {
		opts = append(opts, goexmodel.OptionParameter{Key: "posSide", Value: posSide})
	}
	if _, err := okxPrv.SetLeverage(instId, strconv.Itoa(e.cfg.Leverage), opts...); err != nil {
		return classify("set leverage", err)
	}

	e.mu.Lock()
	e.leverage[key] = true
	e.mu.Unlock()
	return nil
}
