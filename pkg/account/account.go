package account

import (
	"context"
	"edgerelay/internal/model"
	"fmt"
	"time"

	goexv2 "github.com/nntaoli-project/goex/v2"
	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/shopspring/decimal"
)

// BalanceFetcher 是 goex 私有接口中查询余额的部分
type BalanceFetcher interface {
	GetAccount(coin string) (map[string]goexmodel.Account, []byte, error)
}

var _ BalanceFetcher = (goexv2.IPrvRest)(nil)

type Service struct {
	prv     BalanceFetcher
	timeout time.Duration
}

// NewAccountService 创建账户服务，prv是goex私有API客户端
func NewAccountService(prv BalanceFetcher) *Service {
	return &Service{prv: prv, timeout: 10 * time.Second}
}

// GetAccount 查询指定币种的账户余额
func (s *Service) GetAccount(ctx context.Context, coin string) (*Account, error) {
	// goex私有方法没有context，临时用超时控制
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		bal map[string]goexmodel.Account
		err error
	}
	// 带缓冲，超时返回后 goroutine 不会阻塞
	ch := make(chan result, 1)

	go func() {
		bal, _, err := s.prv.GetAccount(coin)
		ch <- result{bal, err}
	}()

	select {
	case <-timeoutCtx.Done():
		return nil, &model.TransportError{Op: "get account", Err: timeoutCtx.Err()}
	case r := <-ch:
		if r.err != nil {
			return nil, &model.TransportError{Op: "get account", Err: r.err}
		}
		acc, ok := r.bal[coin]
		if !ok {
			return nil, &model.TransportError{Op: "get account", Err: fmt.Errorf("account info not found for coin %s", coin)}
		}
		return &Account{
			Currency:  coin,
			Total:     decimal.NewFromFloat(acc.Balance),
			Available: decimal.NewFromFloat(acc.AvailableBalance),
			Frozen:    decimal.NewFromFloat(acc.FrozenBalance),
		}, nil
	}
}
