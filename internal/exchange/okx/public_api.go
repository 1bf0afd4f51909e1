package okx

import (
	"context"
	"edgerelay/internal/model"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// okx的公开接口，不需要apikey

const defaultBaseURL = "https://www.okx.com"

// PublicClient 封装了与 OKX 公开 REST API 通信所需的一切
type PublicClient struct {
	http *resty.Client
}

func NewPublicClient(baseURL string, timeout time.Duration, retries int) *PublicClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &PublicClient{http: newRestClient(baseURL, timeout, retries)}
}

func newRestClient(baseURL string, timeout time.Duration, retries int) *resty.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})
}

// GetInstruments 获取交易产品列表
// instType: SPOT, SWAP, FUTURES 等，instId 为空时返回全部
func (c *PublicClient) GetInstruments(ctx context.Context, instType, instId string) ([]InstrumentRaw, error) {
	req := c.http.R().SetContext(ctx).SetQueryParam("instType", instType)
	if instId != "" {
		req.SetQueryParam("instId", instId)
	}

	var instruments []InstrumentRaw
	if err := doRequest(req, http.MethodGet, "/api/v5/public/instruments", &instruments); err != nil {
		return nil, err
	}
	return instruments, nil
}

// OKX API 的标准 JSON 格式：{"code":"0", "msg":"", "data":[...]}
type apiResponse struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doRequest(req *resty.Request, method, path string, result any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return &model.TransportError{Op: method + " " + path, Err: err}
	}
	if resp.StatusCode() >= http.StatusInternalServerError || resp.StatusCode() == http.StatusUnauthorized {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("http status %d", resp.StatusCode())}
	}

	var ar apiResponse
	if err := json.Unmarshal(resp.Body(), &ar); err != nil {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	if ar.Code != "0" {
		return rejection(ar.Code, ar.Msg, ar.Data)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(ar.Data, result); err != nil {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// InstrumentRaw 对应 OKX API 返回的单个交易对信息
type InstrumentRaw struct {
	InstId   string `json:"instId"`   // 交易对 ID (如 HYPE-USDT-SWAP)
	InstType string `json:"instType"` // 交易对类型 (SPOT/SWAP/FUTURES)
	State    string `json:"state"`    // 交易状态 (如 live)

	TickSz string `json:"tickSz"` // 价格精度
	MinSz  string `json:"minSz"`  // 最小下单张数
	LotSz  string `json:"lotSz"`  // 下单张数步长
	CtVal  string `json:"ctVal"`  // 合约面值（每张多少币）
}

// Rules 转换为以币为单位的下单规则
func (r InstrumentRaw) Rules(minNotional decimal.Decimal) model.InstrumentRules {
	ctVal := dec(r.CtVal)
	if !ctVal.IsPositive() {
		ctVal = decimal.NewFromInt(1)
	}
	return model.InstrumentRules{
		Symbol:        r.InstId,
		MinQty:        dec(r.MinSz).Mul(ctVal),
		QtyStep:       dec(r.LotSz).Mul(ctVal),
		MinNotional:   minNotional,
		TickSize:      dec(r.TickSz),
		ContractValue: ctVal,
	}
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}
