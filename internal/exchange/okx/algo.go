package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"edgerelay/internal/model"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// algoClient 策略委托（止损）接口。
// cancel-algos 需要数组请求体，goex 的 DoAuthRequest 只能传 url.Values，所以单独签名
type algoClient struct {
	http       *resty.Client
	apiKey     string
	secretKey  string
	passphrase string
	simulated  bool
	now        func() time.Time
}

func newAlgoClient(cfg Config) *algoClient {
	c := &algoClient{
		apiKey:     cfg.ApiKey,
		secretKey:  cfg.SecretKey,
		passphrase: cfg.Passphrase,
		simulated:  cfg.Testnet,
		now:        time.Now,
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	c.http = newRestClient(base, cfg.Timeout, cfg.RetryCount).OnBeforeRequest(c.sign)
	return c
}

// sign 签名 = base64(hmac_sha256(secret, timestamp + method + requestPath + body))
func (c *algoClient) sign(_ *resty.Client, r *resty.Request) error {
	ts := c.now().UTC().Format("2006-01-02T15:04:05.000Z")

	path := r.URL
	var body string
	if r.Method == http.MethodGet {
		if q := r.QueryParam.Encode(); q != "" {
			path += "?" + q
		}
	} else if b, ok := r.Body.([]byte); ok {
		body = string(b)
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + r.Method + path + body))

	r.SetHeader("OK-ACCESS-KEY", c.apiKey)
	r.SetHeader("OK-ACCESS-SIGN", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	r.SetHeader("OK-ACCESS-TIMESTAMP", ts)
	r.SetHeader("OK-ACCESS-PASSPHRASE", c.passphrase)
	if c.simulated {
		r.SetHeader("x-simulated-trading", "1")
	}
	return nil
}

type algoOrderReq struct {
	InstId          string `json:"instId"`
	TdMode          string `json:"tdMode"`
	Side            string `json:"side"`
	PosSide         string `json:"posSide,omitempty"`
	OrdType         string `json:"ordType"`
	Sz              string `json:"sz"`
	SlTriggerPx     string `json:"slTriggerPx"`
	SlOrdPx         string `json:"slOrdPx"`
	SlTriggerPxType string `json:"slTriggerPxType"`
	ReduceOnly      bool   `json:"reduceOnly,omitempty"`
	AlgoClOrdId     string `json:"algoClOrdId,omitempty"`
}

type cancelAlgoReq struct {
	AlgoId string `json:"algoId"`
	InstId string `json:"instId"`
}

type algoInfo struct {
	AlgoId   string `json:"algoId"`
	State    string `json:"state"`
	Sz       string `json:"sz"`
	ActualSz string `json:"actualSz"`
}

func (c *algoClient) post(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}
	return doRequest(c.http.R().SetContext(ctx).SetBody(data), http.MethodPost, path, result)
}

func (c *algoClient) place(ctx context.Context, req *algoOrderReq) (string, error) {
	var res []struct {
		AlgoId string `json:"algoId"`
		SCode  string `json:"sCode"`
		SMsg   string `json:"sMsg"`
	}
	if err := c.post(ctx, "/api/v5/trade/order-algo", req, &res); err != nil {
		return "", err
	}
	if len(res) == 0 {
		return "", &model.TransportError{Op: "order-algo", Err: fmt.Errorf("empty response")}
	}
	if res[0].SCode != "" && res[0].SCode != "0" {
		return "", &model.RejectionError{Code: res[0].SCode, Reason: res[0].SMsg}
	}
	return res[0].AlgoId, nil
}

func (c *algoClient) cancel(ctx context.Context, instId, algoId string) error {
	return c.post(ctx, "/api/v5/trade/cancel-algos", []cancelAlgoReq{{AlgoId: algoId, InstId: instId}}, nil)
}

func (c *algoClient) status(ctx context.Context, algoId string) (*algoInfo, error) {
	req := c.http.R().SetContext(ctx).SetQueryParam("algoId", algoId)
	var res []algoInfo
	if err := doRequest(req, http.MethodGet, "/api/v5/trade/order-algo", &res); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, &model.RejectionError{Code: "order_not_exists", Reason: "algo order " + algoId + " not found"}
	}
	return &res[0], nil
}

// rejection 批量接口的错误码在 data[0].sCode 中
func rejection(code, msg string, data []byte) error {
	if s := gjson.GetBytes(data, "0.sCode"); s.Exists() && s.String() != "0" {
		code = s.String()
		if m := gjson.GetBytes(data, "0.sMsg").String(); m != "" {
			msg = m
		}
	}
	return &model.RejectionError{Code: code, Reason: msg}
}
