package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type LegStatus string

const (
	LegPlaced   LegStatus = "placed"
	LegRejected LegStatus = "rejected"
	LegSkipped  LegStatus = "skipped"
)

// LegResult 单个订单意图的提交结果
type LegResult struct {
	Intent     OrderIntent `json:"intent"`
	Status     LegStatus   `json:"status"`
	OrderID    string      `json:"order_id,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ErrorKind  string      `json:"error_kind,omitempty"`  // exchange_rejection / transport_failure
	Fatal      bool        `json:"fatal,omitempty"`       // 入场单失败，终止后续订单
	Critical   bool        `json:"critical,omitempty"`    // 止损单失败，仓位没有保护
	RolledBack bool        `json:"rolled_back,omitempty"` // 已下单但因后续入场单失败被撤销
	Err        error       `json:"-"`
}

type ExecutionStatus string

const (
	// 所有订单都已下单
	ExecutionPlaced ExecutionStatus = "placed"
	// 入场单成功，部分保护单失败
	ExecutionPartial ExecutionStatus = "partial"
	// 入场单失败，计划终止
	ExecutionAborted ExecutionStatus = "aborted"
	// 下单前校验失败，没有提交任何订单
	ExecutionRejected ExecutionStatus = "rejected"
)

// SubmissionResult 一个计划所有订单的提交结果，顺序与计划一致
type SubmissionResult struct {
	PlanID      string      `json:"plan_id"`
	Legs        []LegResult `json:"legs"`
	Aborted     bool        `json:"aborted"`
	Unprotected bool        `json:"unprotected"`
}

func (r *SubmissionResult) Status() ExecutionStatus {
	if r.Aborted {
		return ExecutionAborted
	}
	for _, leg := range r.Legs {
		if leg.Status != LegPlaced {
			return ExecutionPartial
		}
	}
	return ExecutionPlaced
}

// Placed 返回某个角色已成功下单（且未被撤销）的订单
func (r *SubmissionResult) Placed(role OrderRole) []LegResult {
	var out []LegResult
	for _, leg := range r.Legs {
		if leg.Intent.Role == role && leg.Status == LegPlaced && !leg.RolledBack {
			out = append(out, leg)
		}
	}
	return out
}

// Err 合并所有失败订单的错误
func (r *SubmissionResult) Err() error {
	var errs error
	for _, leg := range r.Legs {
		if leg.Status == LegRejected && leg.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s#%d: %w", leg.Intent.Role, leg.Intent.Leg, leg.Err))
		}
	}
	return errs
}

// ExecutionReport 返回给 webhook 调用方并写入执行日志
type ExecutionReport struct {
	PlanID        string          `json:"plan_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Status        ExecutionStatus `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
	RiskPct       decimal.Decimal `json:"risk_pct"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	Unprotected   bool            `json:"unprotected"`
	Legs          []LegResult     `json:"legs"`
	Warnings      []string        `json:"warnings,omitempty"`
	CancelAt      *time.Time      `json:"cancel_at,omitempty"`
	Error         string          `json:"error,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Confidence    float64         `json:"confidence,omitempty"`
	ReceivedAt    time.Time       `json:"received_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}
