package service

import (
	"context"
	"edgerelay/internal/canceller"
	"edgerelay/internal/exchange"
	"edgerelay/internal/execution"
	"edgerelay/internal/model"
	"edgerelay/internal/plan"
	"edgerelay/pkg/logger"
	"edgerelay/pkg/recorder"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var metricDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "edgerelay_decisions_total", Help: "Trade decisions processed by final status",
}, []string{"status"})

func init() {
	prometheus.MustRegister(metricDecisions)
}

// RelayService 一个交易决策的完整处理流程：
// 余额 -> 下单规则 -> 订单计划 -> 顺序提交 -> 超时撤单 -> 执行记录
type RelayService struct {
	ex         exchange.Exchange
	rules      *InstrumentService
	builder    *plan.Builder
	seq        *execution.Sequencer
	canceller  *canceller.Canceller
	journal    recorder.Recorder
	settleCoin string
	now        func() time.Time
}

func NewRelayService(
	ex exchange.Exchange,
	rules *InstrumentService,
	builder *plan.Builder,
	c *canceller.Canceller,
	journal recorder.Recorder,
	settleCoin string) *RelayService {
	if journal == nil {
		journal = recorder.Nop{}
	}
	return &RelayService{
		ex:         ex,
		rules:      rules,
		builder:    builder,
		seq:        execution.NewSequencer(ex),
		canceller:  c,
		journal:    journal,
		settleCoin: settleCoin,
		now:        time.Now,
	}
}

// Execute 下单前的错误直接返回，不提交任何订单；
// 提交之后的失败体现在报告的状态和每条订单的结果里
func (s *RelayService) Execute(ctx context.Context, planID string, d *model.TradeDecision) (*model.ExecutionReport, error) {
	p, err := s.prepare(ctx, planID, d, nil)
	if err != nil {
		s.reject(planID, d, err)
		return nil, err
	}

	res := s.seq.Submit(ctx, p)
	report := s.report(p, d, res)

	if p.CancelAfter > 0 && s.canceller != nil {
		if at, ok := s.canceller.Schedule(canceller.NewTask(p, res), p.CancelAfter); ok {
			report.CancelAt = &at
		}
	}

	metricDecisions.WithLabelValues(string(report.Status)).Inc()
	s.record(report)
	return report, nil
}

// Preview 只生成订单计划不下单，balance 不为空时不查询余额
func (s *RelayService) Preview(ctx context.Context, d *model.TradeDecision, balance *decimal.Decimal) (*model.OrderPlan, error) {
	return s.prepare(ctx, "", d, balance)
}

func (s *RelayService) prepare(ctx context.Context, planID string, d *model.TradeDecision, balance *decimal.Decimal) (*model.OrderPlan, error) {
	var bal decimal.Decimal
	if balance != nil {
		bal = *balance
	} else {
		// 余额每次请求都重新获取
		b, err := s.ex.GetBalance(ctx, s.settleCoin)
		if err != nil {
			return nil, fmt.Errorf("get %s balance: %w", s.settleCoin, err)
		}
		bal = b
	}

	rules, err := s.rules.Rules(ctx, d.Symbol)
	if err != nil {
		return nil, err
	}
	return s.builder.BuildWithID(planID, d, bal, rules)
}

func (s *RelayService) report(p *model.OrderPlan, d *model.TradeDecision, res *model.SubmissionResult) *model.ExecutionReport {
	r := &model.ExecutionReport{
		PlanID:        p.ID,
		Symbol:        p.Symbol,
		Side:          p.Side,
		Status:        res.Status(),
		Balance:       p.Balance,
		RiskPct:       p.RiskPct,
		TotalQuantity: p.TotalQuantity,
		Unprotected:   res.Unprotected,
		Legs:          res.Legs,
		Warnings:      p.Warnings,
		Reason:        d.Reason,
		Confidence:    d.Confidence,
		ReceivedAt:    d.ReceivedAt,
		FinishedAt:    s.now(),
	}
	if err := res.Err(); err != nil {
		r.Error = err.Error()
	}
	return r
}

func (s *RelayService) reject(planID string, d *model.TradeDecision, err error) {
	metricDecisions.WithLabelValues(string(model.ExecutionRejected)).Inc()
	logger.Warn("trade decision rejected before submission",
		logger.Pair("plan_id", planID),
		logger.Pair("symbol", d.Symbol),
		logger.Err(err))
	s.record(&model.ExecutionReport{
		PlanID:     planID,
		Symbol:     d.Symbol,
		Side:       d.Side,
		Status:     model.ExecutionRejected,
		RiskPct:    d.RiskPerTradePct,
		Error:      err.Error(),
		Reason:     d.Reason,
		Confidence: d.Confidence,
		ReceivedAt: d.ReceivedAt,
		FinishedAt: s.now(),
	})
}

func (s *RelayService) record(r *model.ExecutionReport) {
	if err := s.journal.Record(r); err != nil {
		logger.Error("write execution journal failed", logger.Pair("plan_id", r.PlanID), logger.Err(err))
	}
}
