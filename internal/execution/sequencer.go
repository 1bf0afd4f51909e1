package execution

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Exchange 提交计划需要的交易所操作
type Exchange interface {
	PlaceLimitOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	PlaceStopOrder(ctx context.Context, order *model.Order) (*model.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Sequencer 按计划顺序逐个提交订单，不做重试，重试由交易所客户端负责
type Sequencer struct {
	ex     Exchange
	policy Policy

	// 入场单失败时撤销已下的入场单
	rollback        bool
	rollbackTimeout time.Duration
}

func NewSequencer(ex Exchange) *Sequencer {
	return &Sequencer{
		ex:              ex,
		policy:          DefaultPolicy,
		rollback:        true,
		rollbackTimeout: 10 * time.Second,
	}
}

func (s *Sequencer) WithPolicy(p Policy) *Sequencer {
	s.policy = p
	return s
}

func (s *Sequencer) WithRollback(enabled bool) *Sequencer {
	s.rollback = enabled
	return s
}

// Submit 每个订单意图都会产生一条结果，包括被跳过的
func (s *Sequencer) Submit(ctx context.Context, plan *model.OrderPlan) *model.SubmissionResult {
	res := &model.SubmissionResult{
		PlanID: plan.ID,
		Legs:   make([]model.LegResult, 0, len(plan.Intents)),
	}

	for _, intent := range plan.Intents {
		if res.Aborted {
			res.Legs = append(res.Legs, model.LegResult{
				Intent: intent,
				Status: model.LegSkipped,
				Reason: "entry failed, plan aborted",
			})
			continue
		}

		leg := s.submitOne(ctx, plan, intent)
		if leg.Status == model.LegRejected {
			s.onFailure(plan, res, &leg)
		}
		res.Legs = append(res.Legs, leg)

		if res.Aborted && s.rollback {
			s.rollbackEntries(ctx, plan, res)
		}
	}

	logger.Info("order plan submitted",
		logger.Pair("plan_id", plan.ID),
		logger.Pair("status", res.Status()),
		logger.Pair("unprotected", res.Unprotected))
	return res
}

func (s *Sequencer) submitOne(ctx context.Context, plan *model.OrderPlan, intent model.OrderIntent) model.LegResult {
	order := intent.ToOrder(plan.Symbol, plan.Side)

	var (
		resp *model.OrderResponse
		err  error
	)
	if intent.OrderType == model.StopMarket {
		resp, err = s.ex.PlaceStopOrder(ctx, order)
	} else {
		resp, err = s.ex.PlaceLimitOrder(ctx, order)
	}

	leg := model.LegResult{Intent: intent}
	if err != nil {
		leg.Status = model.LegRejected
		leg.Reason = err.Error()
		leg.ErrorKind = model.ErrorKind(err)
		leg.Err = err
		return leg
	}
	leg.Status = model.LegPlaced
	leg.OrderID = resp.OrderId
	return leg
}

func (s *Sequencer) onFailure(plan *model.OrderPlan, res *model.SubmissionResult, leg *model.LegResult) {
	fields := []logger.Field{
		logger.Pair("plan_id", plan.ID),
		logger.Pair("role", leg.Intent.Role),
		logger.Pair("leg", leg.Intent.Leg),
		logger.Pair("kind", leg.ErrorKind),
		logger.Err(leg.Err),
	}

	switch s.policy.OnFailure(leg.Intent.Role) {
	case AbortRemaining:
		leg.Fatal = true
		res.Aborted = true
		logger.Error("entry order failed, aborting plan", fields...)
	case ContinueCritical:
		leg.Critical = true
		res.Unprotected = true
		logger.Error("stop loss order failed, position unprotected", fields...)
	case ContinueIsolated:
		logger.Warn("take profit order failed", fields...)
	}
}

// rollbackEntries 撤销本计划已成功的入场单，避免留下没有止损的挂单
func (s *Sequencer) rollbackEntries(ctx context.Context, plan *model.OrderPlan, res *model.SubmissionResult) {
	// 请求超时后仍然需要撤单
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.rollbackTimeout)
	defer cancel()

	var errs error
	for i := range res.Legs {
		leg := &res.Legs[i]
		if leg.Intent.Role != model.RoleEntry || leg.Status != model.LegPlaced || leg.RolledBack {
			continue
		}
		if err := s.ex.CancelOrder(cctx, plan.Symbol, leg.OrderID); err != nil {
			leg.Reason = "rollback failed: " + err.Error()
			errs = multierr.Append(errs, fmt.Errorf("cancel %s: %w", leg.OrderID, err))
			continue
		}
		leg.RolledBack = true
		leg.Reason = "cancelled after a later entry failed"
	}
	if errs != nil {
		logger.Error("rollback of placed entries failed", logger.Pair("plan_id", plan.ID), logger.Err(errs))
	}
}
