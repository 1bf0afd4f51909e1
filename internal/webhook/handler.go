package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"edgerelay/conf"
	"edgerelay/internal/consts"
	"edgerelay/internal/model"
	"edgerelay/pkg/errors"
	"edgerelay/pkg/errors/ecode"
	"edgerelay/pkg/logger"
	"edgerelay/utils/idgen"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// 请求体上限
const maxBodySize = 1 << 20

// Relay 执行一个已解析的交易决策
type Relay interface {
	Execute(ctx context.Context, planID string, d *model.TradeDecision) (*model.ExecutionReport, error)
}

// Result 同步模式返回执行报告；异步模式只返回计划id
type Result struct {
	Status string                 `json:"status"`
	PlanID string                 `json:"plan_id"`
	Report *model.ExecutionReport `json:"report,omitempty"`
}

type WebhookHandler struct {
	relay       Relay
	cfg         conf.WebhookConfig
	defaultRisk decimal.Decimal

	// 后台执行的任务，关闭时等待
	wg sync.WaitGroup
}

func NewWebhookHandler(relay Relay, cfg conf.WebhookConfig, defaultRiskPct float64) *WebhookHandler {
	return &WebhookHandler{
		relay:       relay,
		cfg:         cfg,
		defaultRisk: decimal.NewFromFloat(defaultRiskPct),
	}
}

// Handle 接收 webhook：验签 -> 解析 -> 执行，结果通过 callback 返回
func (wh *WebhookHandler) Handle(r *http.Request, callback func(res *Result, err error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		callback(nil, errors.Wrap(err, ecode.ValidateErr, "failed to read body"))
		return
	}
	defer r.Body.Close()

	// 配置了密钥才验签
	if wh.cfg.Secret != "" {
		signature := r.Header.Get(consts.Signature)
		if signature == "" {
			callback(nil, errors.WithCode(ecode.RequireAuthErr, "missing signature"))
			return
		}
		if !VerifySignature(wh.cfg.Secret, body, signature) {
			callback(nil, errors.WithCode(ecode.RequireAuthErr, "invalid signature"))
			return
		}
	}

	d, err := ParseTradeDecision(body, wh.defaultRisk)
	if err != nil {
		logger.Warn("webhook rejected", logger.Err(err), logger.Pair("body", string(body)))
		callback(nil, err)
		return
	}
	logger.Info("trade decision received",
		logger.Pair("symbol", d.Symbol),
		logger.Pair("side", d.Side),
		logger.Pair("risk_pct", d.RiskPerTradePct.String()),
		logger.Pair("risk_defaulted", d.RiskDefaulted),
		logger.Pair("entries", len(d.LimitPlan.Orders)))

	planID := idgen.NextID()
	if wh.cfg.Async {
		wh.executeAsync(planID, d)
		callback(&Result{Status: "accepted", PlanID: planID}, nil)
		return
	}

	report, err := wh.relay.Execute(r.Context(), planID, d)
	if err != nil {
		callback(nil, err)
		return
	}
	callback(&Result{Status: string(report.Status), PlanID: planID, Report: report}, ReportError(report))
}

// executeAsync 请求返回后继续执行，结果只写日志和执行记录
func (wh *WebhookHandler) executeAsync(planID string, d *model.TradeDecision) {
	timeout := wh.cfg.AsyncTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	wh.wg.Add(1)
	go func() {
		defer wh.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("async execution panic", logger.Pair("plan_id", planID), logger.Pair("panic", fmt.Sprint(r)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		report, err := wh.relay.Execute(ctx, planID, d)
		if err != nil {
			logger.Error("async execution failed", logger.Pair("plan_id", planID), logger.Err(err))
			return
		}
		logger.Info("async execution finished", logger.Pair("plan_id", planID), logger.Pair("status", report.Status))
	}()
}

// Wait 等待所有后台执行结束
func (wh *WebhookHandler) Wait() {
	wh.wg.Wait()
}

// ReportError 已提交订单的结果：全部成功返回 nil，否则返回对应的错误码
func ReportError(report *model.ExecutionReport) error {
	switch report.Status {
	case model.ExecutionPlaced:
		return nil
	case model.ExecutionAborted:
		return errors.WithReport(ecode.ExchangeRejection, "entry order failed, plan aborted")
	}
	if report.Unprotected {
		return errors.WithReport(ecode.PartialExecution, "stop loss failed, position unprotected")
	}
	return errors.WithReport(ecode.PartialExecution, "some take profit orders failed")
}

// VerifySignature hex(hmac_sha256(secret, body))
func VerifySignature(secret string, body []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expectedMAC := h.Sum(nil)
	providedMAC, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(providedMAC, expectedMAC)
}

// Sign 生成签名，调用方和测试使用
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
