package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const (
	MainnetURL = "https://api.bybit.com"
	TestnetURL = "https://api-testnet.bybit.com"

	categoryLinear = "linear"

	// orderLinkId 重复，说明同一个订单已经下过
	retCodeDuplicateLinkID = 110072
)

// 鉴权、签名、权限、IP 白名单类错误，按网络/鉴权失败处理而不是拒单
var authRetCodes = map[int]bool{
	10002: true, // 时间戳超出 recvWindow
	10003: true, // api key 无效
	10004: true, // 签名错误
	10005: true, // 权限不足
	10007: true, // 用户鉴权失败
	10009: true, // IP 被封禁
	10010: true, // IP 不在白名单
	33004: true, // api key 过期
}

type Config struct {
	ApiKey     string
	SecretKey  string
	Testnet    bool
	BaseURL    string // 不为空时覆盖 Testnet 对应的地址
	RecvWindow int    // 毫秒
	Timeout    time.Duration
	RetryCount int
}

// Client Bybit v5 REST 客户端，只覆盖下单需要的接口
type Client struct {
	http       *resty.Client
	apiKey     string
	secretKey  string
	recvWindow string
	now        func() time.Time
}

// 统一的返回结构 {"retCode":0,"retMsg":"OK","result":{...}}
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = MainnetURL
		if cfg.Testnet {
			base = TestnetURL
		}
	}
	if cfg.RecvWindow <= 0 {
		cfg.RecvWindow = 5000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		apiKey:     cfg.ApiKey,
		secretKey:  cfg.SecretKey,
		recvWindow: strconv.Itoa(cfg.RecvWindow),
		now:        time.Now,
	}
	c.http = resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetHeader("Content-Type", "application/json").
		// 只重试网络错误和 5xx，业务错误（retCode != 0）不重试
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		}).
		// 每次重试都重新签名，时间戳保持在 recvWindow 内
		OnBeforeRequest(c.sign)
	return c
}

// sign 签名 = hex(hmac_sha256(secret, timestamp + apiKey + recvWindow + queryString|body))
func (c *Client) sign(_ *resty.Client, r *resty.Request) error {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)

	var payload string
	if r.Method == http.MethodGet {
		payload = r.QueryParam.Encode()
	} else if b, ok := r.Body.([]byte); ok {
		payload = string(b)
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(ts + c.apiKey + c.recvWindow + payload))

	r.SetHeader("X-BAPI-API-KEY", c.apiKey)
	r.SetHeader("X-BAPI-TIMESTAMP", ts)
	r.SetHeader("X-BAPI-RECV-WINDOW", c.recvWindow)
	r.SetHeader("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
	r.SetHeader("X-BAPI-SIGN-TYPE", "2")
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	req := c.http.R().SetContext(ctx).SetQueryString(query.Encode())
	return c.do(req, http.MethodGet, path, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", path, err)
	}
	req := c.http.R().SetContext(ctx).SetBody(data)
	return c.do(req, http.MethodPost, path, out)
}

func (c *Client) do(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return &model.TransportError{Op: method + " " + path, Err: err}
	}

	status := resp.StatusCode()
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized ||
		status == http.StatusForbidden || status == http.StatusTooManyRequests {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("http status %d", status)}
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	if authRetCodes[env.RetCode] {
		logger.Error("bybit auth failed",
			logger.Pair("path", path),
			logger.Pair("ret_code", env.RetCode),
			logger.Pair("ret_msg", env.RetMsg))
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("auth failed: %s (retCode %d)", env.RetMsg, env.RetCode)}
	}
	if env.RetCode != 0 {
		logger.Warn("bybit request rejected",
			logger.Pair("path", path),
			logger.Pair("ret_code", env.RetCode),
			logger.Pair("ret_msg", env.RetMsg))
		return &model.RejectionError{Code: strconv.Itoa(env.RetCode), Reason: env.RetMsg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &model.TransportError{Op: method + " " + path, Err: fmt.Errorf("decode result: %w", err)}
	}
	return nil
}
