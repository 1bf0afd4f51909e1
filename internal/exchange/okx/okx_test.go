package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"edgerelay/internal/model"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInstId(t *testing.T) {
	for in, want := range map[string]string{
		"HYPE/USDT":      "HYPE-USDT-SWAP",
		"hype/usdt:USDT": "HYPE-USDT-SWAP",
		"BTC-USDT-SWAP":  "BTC-USDT-SWAP",
		"SOLUSDT":        "SOL-USDT-SWAP",
	} {
		got, err := ToInstId(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ToInstId("HYPE")
	assert.ErrorIs(t, err, model.ErrInvalidPlan)
}

func TestFuturesSide(t *testing.T) {
	assert.Equal(t, goexmodel.Futures_OpenBuy, futuresSide(&model.Order{PosSide: model.SideLong, Role: model.RoleEntry}))
	assert.Equal(t, goexmodel.Futures_CloseBuy, futuresSide(&model.Order{PosSide: model.SideLong, Role: model.RoleTakeProfit}))
	assert.Equal(t, goexmodel.Futures_OpenSell, futuresSide(&model.Order{PosSide: model.SideShort, Role: model.RoleEntry}))
	assert.Equal(t, goexmodel.Futures_CloseSell, futuresSide(&model.Order{PosSide: model.SideShort, Role: model.RoleStopLoss}))
}

func TestContractsAndClientID(t *testing.T) {
	sz := ToContracts(decimal.RequireFromString("78.9"), decimal.RequireFromString("0.1"))
	assert.True(t, sz.Equal(decimal.NewFromInt(789)), sz.String())
	assert.Equal(t, "1001tp2", clientOrderID("1001-tp2"))
}

func TestInstrumentRulesInCoins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/public/instruments", r.URL.Path)
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		assert.Equal(t, "HYPE-USDT-SWAP", r.URL.Query().Get("instId"))
		_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"instId":"HYPE-USDT-SWAP","instType":"SWAP",
			"state":"live","tickSz":"0.001","minSz":"1","lotSz":"1","ctVal":"0.1"}]}`))
	}))
	defer srv.Close()

	ex := New(Config{BaseURL: srv.URL, MinNotional: decimal.NewFromInt(5)})
	rules, err := ex.Instrument(context.Background(), "HYPE/USDT")
	require.NoError(t, err)
	assert.True(t, rules.MinQty.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, rules.QtyStep.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, rules.TickSize.Equal(decimal.RequireFromString("0.001")))
	assert.True(t, rules.ContractValue.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, rules.MinNotional.Equal(decimal.NewFromInt(5)))
}

func TestAlgoClientSignsAndPlaces(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		ts := r.Header.Get("OK-ACCESS-TIMESTAMP")
		mac := hmac.New(sha256.New, []byte("s"))
		mac.Write([]byte(ts + r.Method + r.URL.Path + body))
		assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), r.Header.Get("OK-ACCESS-SIGN"))
		assert.Equal(t, "p", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "1", r.Header.Get("x-simulated-trading"))

		switch r.URL.Path {
		case "/api/v5/trade/order-algo":
			_, _ = w.Write([]byte(`{"code":"0","msg":"","data":[{"algoId":"a-1","sCode":"0","sMsg":""}]}`))
		case "/api/v5/trade/cancel-algos":
			_, _ = w.Write([]byte(`{"code":"1","msg":"","data":[{"algoId":"a-1","sCode":"51000","sMsg":"Parameter algoId error"}]}`))
		}
	}))
	defer srv.Close()

	c := newAlgoClient(Config{ApiKey: "k", SecretKey: "s", Passphrase: "p", Testnet: true, BaseURL: srv.URL})
	id, err := c.place(context.Background(), &algoOrderReq{InstId: "HYPE-USDT-SWAP", OrdType: "conditional",
		Side: "sell", Sz: "789", SlTriggerPx: "44.1336", SlOrdPx: "-1"})
	require.NoError(t, err)
	assert.Equal(t, "a-1", id)
	assert.Contains(t, body, `"slTriggerPx":"44.1336"`)

	err = c.cancel(context.Background(), "HYPE-USDT-SWAP", "a-1")
	var rej *model.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "51000", rej.Code)
	assert.Contains(t, body, `[{"algoId":"a-1"`)
}

// 需要模拟盘 apikey，设置 OKX_API_KEY 等环境变量后运行
func TestOkxSwapLive(t *testing.T) {
	if os.Getenv("OKX_API_KEY") == "" {
		t.Skip("OKX_API_KEY not set")
	}
	ex := New(Config{
		ApiKey:     os.Getenv("OKX_API_KEY"),
		SecretKey:  os.Getenv("OKX_SECRET_KEY"),
		Passphrase: os.Getenv("OKX_PASSPHRASE"),
		Testnet:    true,
	})
	bal, err := ex.GetBalance(context.Background(), "USDT")
	require.NoError(t, err)
	t.Logf("USDT balance: %s", bal)
}
