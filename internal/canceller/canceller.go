package canceller

import (
	"context"
	"edgerelay/internal/model"
	"edgerelay/pkg/logger"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Exchange 撤单需要的交易所操作
type Exchange interface {
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*model.OrderStatus, error)
}

// Task 一个计划到期后需要检查的订单
type Task struct {
	PlanID     string
	Symbol     string
	Entries    []model.LegResult
	Protective []model.LegResult
}

// NewTask 只包含已下单且未被撤销的订单，没有入场单时返回 nil
func NewTask(plan *model.OrderPlan, res *model.SubmissionResult) *Task {
	entries := res.Placed(model.RoleEntry)
	if len(entries) == 0 {
		return nil
	}
	return &Task{
		PlanID:     plan.ID,
		Symbol:     plan.Symbol,
		Entries:    entries,
		Protective: append(res.Placed(model.RoleStopLoss), res.Placed(model.RoleTakeProfit)...),
	}
}

// Outcome 一次到期检查的结果
type Outcome struct {
	Cancelled        []string
	Filled           decimal.Decimal
	ProtectiveClosed bool
}

// Canceller 入场单超时未成交时撤单，任务只保存在内存中
type Canceller struct {
	ex      Exchange
	timeout time.Duration // 单次撤单任务的超时

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	closed bool
}

func New(ex Exchange) *Canceller {
	return &Canceller{
		ex:      ex,
		timeout: 30 * time.Second,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule 在 after 之后执行撤单检查，返回计划的执行时间
func (c *Canceller) Schedule(task *Task, after time.Duration) (time.Time, bool) {
	if task == nil || after <= 0 {
		return time.Time{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return time.Time{}, false
	}
	if t, ok := c.timers[task.PlanID]; ok {
		t.Stop()
	}

	at := time.Now().Add(after)
	c.timers[task.PlanID] = time.AfterFunc(after, func() {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		delete(c.timers, task.PlanID)
		c.wg.Add(1)
		c.mu.Unlock()
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if _, err := c.Run(ctx, task); err != nil {
			logger.Error("timeout cancellation failed", logger.Pair("plan_id", task.PlanID), logger.Err(err))
		}
	})

	logger.Info("cancellation scheduled",
		logger.Pair("plan_id", task.PlanID),
		logger.Pair("entries", len(task.Entries)),
		logger.Pair("at", at))
	return at, true
}

// Run 立即执行撤单检查：未完全成交的入场单撤销；
// 入场单一点都没有成交时，止损止盈也一起撤销
func (c *Canceller) Run(ctx context.Context, task *Task) (*Outcome, error) {
	out := &Outcome{Filled: decimal.Zero}
	var errs error

	for _, leg := range task.Entries {
		st, err := c.ex.GetOrderStatus(ctx, task.Symbol, leg.OrderID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("status %s: %w", leg.OrderID, err))
			continue
		}
		out.Filled = out.Filled.Add(st.Filled)
		if !st.IsOpen() {
			continue
		}
		if err := c.ex.CancelOrder(ctx, task.Symbol, leg.OrderID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel %s: %w", leg.OrderID, err))
			continue
		}
		out.Cancelled = append(out.Cancelled, leg.OrderID)
	}

	// 状态查询失败时无法确认是否成交，保留保护单
	if errs == nil && out.Filled.IsZero() {
		for _, leg := range task.Protective {
			if err := c.ex.CancelOrder(ctx, task.Symbol, leg.OrderID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("cancel %s %s: %w", leg.Intent.Role, leg.OrderID, err))
				continue
			}
			out.Cancelled = append(out.Cancelled, leg.OrderID)
		}
		out.ProtectiveClosed = true
	}

	logger.Info("timeout cancellation done",
		logger.Pair("plan_id", task.PlanID),
		logger.Pair("cancelled", out.Cancelled),
		logger.Pair("filled", out.Filled.String()))
	return out, errs
}

// Cancel 取消尚未执行的任务
func (c *Canceller) Cancel(planID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.timers[planID]
	if !ok {
		return false
	}
	delete(c.timers, planID)
	return t.Stop()
}

func (c *Canceller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Stop 停止所有未执行的任务，并等待执行中的任务结束
func (c *Canceller) Stop() {
	c.mu.Lock()
	c.closed = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}
