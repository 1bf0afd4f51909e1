package account

import (
	"context"
	"edgerelay/internal/model"
	"errors"
	"testing"
	"time"

	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	bal   map[string]goexmodel.Account
	err   error
	delay time.Duration
}

func (f *fakeFetcher) GetAccount(coin string) (map[string]goexmodel.Account, []byte, error) {
	time.Sleep(f.delay)
	return f.bal, nil, f.err
}

func TestGetAccount(t *testing.T) {
	svc := NewAccountService(&fakeFetcher{bal: map[string]goexmodel.Account{
		"USDT": {Balance: 1200.5, AvailableBalance: 1000, FrozenBalance: 200.5},
	}})

	acc, err := svc.GetAccount(context.Background(), "USDT")
	require.NoError(t, err)
	assert.True(t, acc.Total.Equal(decimal.RequireFromString("1200.5")))
	assert.True(t, acc.Available.Equal(decimal.NewFromInt(1000)))

	_, err = svc.GetAccount(context.Background(), "BTC")
	assert.ErrorIs(t, err, model.ErrTransportFailure)
}

func TestGetAccountErrors(t *testing.T) {
	svc := NewAccountService(&fakeFetcher{err: errors.New("401 unauthorized")})
	_, err := svc.GetAccount(context.Background(), "USDT")
	assert.ErrorIs(t, err, model.ErrTransportFailure)

	slow := NewAccountService(&fakeFetcher{delay: 200 * time.Millisecond})
	slow.timeout = 10 * time.Millisecond
	_, err = slow.GetAccount(context.Background(), "USDT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
