package okx

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/account"
	"edgerelay/pkg/logger"
	"fmt"
	"strings"
	"sync"
	"time"

	goexv2 "github.com/nntaoli-project/goex/v2"
	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/options"
	"github.com/shopspring/decimal"
)

type Config struct {
	ApiKey      string
	SecretKey   string
	Passphrase  string
	Testnet     bool   // 模拟盘，需要在模拟交易下创建 apikey
	BaseURL     string // 公开接口和策略委托接口的地址，测试时覆盖
	Leverage    int
	MarginMode  string // isolated / cross
	MinNotional decimal.Decimal
	Timeout     time.Duration
	RetryCount  int
}

// Okx USDT 永续合约（swap），下单数量以张为单位，对外统一换算为币数量
type Okx struct {
	cfg     Config
	prv     goexv2.IPrvRest
	pub     goexv2.IPubRest
	account *account.Service
	public  *PublicClient
	algo    *algoClient

	mu       sync.Mutex
	loaded   bool
	leverage map[string]bool // instId+posSide 已设置杠杆
	algoIDs  map[string]bool // 止损单走策略委托接口
	pairs    map[string]goexmodel.CurrencyPair
}

func New(cfg Config) *Okx {
	if cfg.MarginMode == "" {
		cfg.MarginMode = string(model.OrderMgnModeIsolated)
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 10
	}
	if cfg.Testnet {
		goexv2.DefaultHttpCli.SetHeaders("x-simulated-trading", "1") // 设置为模拟环境
	}
	opts := []options.ApiOption{
		options.WithApiKey(cfg.ApiKey),
		options.WithApiSecretKey(cfg.SecretKey),
		options.WithPassphrase(cfg.Passphrase),
	}
	pub := goexv2.OKx.Swap
	prv := pub.NewPrvApi(opts...)
	return &Okx{
		cfg:      cfg,
		prv:      prv,
		pub:      pub,
		account:  account.NewAccountService(prv),
		public:   NewPublicClient(cfg.BaseURL, cfg.Timeout, cfg.RetryCount),
		algo:     newAlgoClient(cfg),
		leverage: make(map[string]bool),
		algoIDs:  make(map[string]bool),
		pairs:    make(map[string]goexmodel.CurrencyPair),
	}
}

func (e *Okx) Name() string { return "okx" }

// splitSymbol "HYPE/USDT" / "HYPE-USDT-SWAP" / "HYPEUSDT" -> HYPE, USDT
func splitSymbol(symbol string) (string, string, error) {
	symbol = strings.ToUpper(symbol)
	if i := strings.Index(symbol, ":"); i >= 0 {
		symbol = symbol[:i]
	}
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 { // 防止BTC-USDT-SWAP
		parts = strings.Split(symbol, "-")
	}
	if len(parts) >= 2 {
		return parts[0], parts[1], nil
	}
	for _, q := range []string{"USDT", "USDC", "USD"} {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return strings.TrimSuffix(symbol, q), q, nil
		}
	}
	return "", "", fmt.Errorf("%w: invalid symbol format %q, expected like HYPE/USDT", model.ErrInvalidPlan, symbol)
}

// ToInstId HYPE/USDT -> HYPE-USDT-SWAP
func ToInstId(symbol string) (string, error) {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + "-" + quote + "-SWAP", nil
}

// 创建订单时需要先调用GetExchangeInfo加载交易对
func (e *Okx) toCurrencyPair(symbol string) (goexmodel.CurrencyPair, error) {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return goexmodel.CurrencyPair{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.pairs[base+quote]; ok {
		return p, nil
	}
	if !e.loaded {
		if _, _, err := e.pub.GetExchangeInfo(); err != nil {
			return goexmodel.CurrencyPair{}, &model.TransportError{Op: "exchange info", Err: err}
		}
		e.loaded = true
	}
	pair, err := e.pub.NewCurrencyPair(base, quote)
	if err != nil {
		return goexmodel.CurrencyPair{}, fmt.Errorf("%w: %s is not tradable: %v", model.ErrInvalidPlan, symbol, err)
	}
	e.pairs[base+quote] = pair
	return pair, nil
}

func (e *Okx) isAlgo(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.algoIDs[orderID]
}

// 取消订单
func (e *Okx) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if e.isAlgo(orderID) {
		instId, err := ToInstId(symbol)
		if err != nil {
			return err
		}
		return e.algo.cancel(ctx, instId, orderID)
	}

	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return err
	}
	if _, err = e.prv.CancelOrder(pair, orderID); err != nil {
		return classify("cancel order", err)
	}
	return nil
}

// 获取订单状态，数量换算为币
func (e *Okx) GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return nil, err
	}
	ctVal := decimal.NewFromFloat(pair.ContractVal)
	if !ctVal.IsPositive() {
		ctVal = decimal.NewFromInt(1)
	}

	if e.isAlgo(orderID) {
		info, err := e.algo.status(ctx, orderID)
		if err != nil {
			return nil, err
		}
		sz := dec(info.Sz).Mul(ctVal)
		filled := dec(info.ActualSz).Mul(ctVal)
		return &model.OrderStatus{
			OrderID:   info.AlgoId,
			Status:    model.NormalizeOrderState(info.State),
			Filled:    filled,
			Remaining: sz.Sub(filled),
		}, nil
	}

	info, _, err := e.prv.GetOrderInfo(pair, orderID)
	if err != nil {
		return nil, classify("get order", err)
	}
	qty := decimal.NewFromFloat(info.Qty).Mul(ctVal)
	filled := decimal.NewFromFloat(info.ExecutedQty).Mul(ctVal)
	return &model.OrderStatus{
		OrderID:   info.Id,
		Status:    model.NormalizeOrderState(info.Status.String()),
		Filled:    filled,
		Remaining: qty.Sub(filled),
	}, nil
}

// GetBalance 账户总权益（与 Bybit walletBalance 含义一致）
func (e *Okx) GetBalance(ctx context.Context, coin string) (decimal.Decimal, error) {
	acc, err := e.account.GetAccount(ctx, coin)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Total, nil
}

func (e *Okx) Instrument(ctx context.Context, symbol string) (*model.InstrumentRules, error) {
	instId, err := ToInstId(symbol)
	if err != nil {
		return nil, err
	}
	list, err := e.public.GetInstruments(ctx, "SWAP", instId)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: symbol %s not listed", model.ErrInvalidPlan, symbol)
	}
	rules := list[0].Rules(e.cfg.MinNotional)
	return &rules, nil
}

// classify goex 不区分拒单和网络错误，只能按错误信息判断
func classify(op string, err error) error {
	msg := err.Error()
	for _, kw := range []string{"sCode", "\"code\":\"5", "Insufficient", "insufficient", "not exist"} {
		if strings.Contains(msg, kw) {
			logger.Warn("okx request rejected", logger.Pair("op", op), logger.Err(err))
			return &model.RejectionError{Code: "okx", Reason: msg}
		}
	}
	return &model.TransportError{Op: op, Err: err}
}
