package exchange

import (
	"edgerelay/conf"
	"edgerelay/internal/consts"
	"edgerelay/internal/exchange/bybit"
	"edgerelay/internal/exchange/okx"
	"fmt"

	"github.com/shopspring/decimal"
)

// 模拟盘初始资金
var paperBalance = decimal.NewFromInt(10000)

// New 按配置创建交易所客户端，外层包装串行化和限速
func New(cfg *conf.Config) (*GuardedExchange, error) {
	var inner Exchange
	switch cfg.Exchange.Driver {
	case consts.DriverBybit:
		inner = bybit.New(bybit.Config{
			ApiKey:     cfg.Bybit.ApiKey,
			SecretKey:  cfg.Bybit.SecretKey,
			Testnet:    cfg.Exchange.Testnet,
			RecvWindow: cfg.Exchange.RecvWindow,
			Timeout:    cfg.Exchange.Timeout,
			RetryCount: cfg.Exchange.RetryCount,
		})
	case consts.DriverOkx:
		inner = okx.New(okx.Config{
			ApiKey:      cfg.Okx.ApiKey,
			SecretKey:   cfg.Okx.SecretKey,
			Passphrase:  cfg.Okx.Password,
			Testnet:     cfg.Exchange.Testnet,
			Leverage:    cfg.Okx.Leverage,
			MarginMode:  cfg.Okx.MarginMode,
			MinNotional: decimal.NewFromFloat(cfg.Risk.MinNotional),
			Timeout:     cfg.Exchange.Timeout,
			RetryCount:  cfg.Exchange.RetryCount,
		})
	case consts.DriverPaper:
		inner = NewSimulatedExchange(paperBalance)
	default:
		return nil, fmt.Errorf("unsupported exchange driver: %s", cfg.Exchange.Driver)
	}
	return NewGuardedExchange(inner, cfg.Exchange.RateLimitPerSec), nil
}
