package execution

import "edgerelay/internal/model"

// Action 某个角色的订单失败后，计划如何继续
type Action int

const (
	// 终止剩余订单，并撤销本计划已下的入场单
	AbortRemaining Action = iota
	// 继续提交，但标记仓位没有保护
	ContinueCritical
	// 继续提交，失败只影响自己
	ContinueIsolated
)

func (a Action) String() string {
	switch a {
	case AbortRemaining:
		return "abort_remaining"
	case ContinueCritical:
		return "continue_critical"
	case ContinueIsolated:
		return "continue_isolated"
	}
	return "unknown"
}

// Policy 角色 -> 失败处理
type Policy map[model.OrderRole]Action

// DefaultPolicy 入场单失败没有仓位需要保护；止损失败仍尝试止盈
var DefaultPolicy = Policy{
	model.RoleEntry:      AbortRemaining,
	model.RoleStopLoss:   ContinueCritical,
	model.RoleTakeProfit: ContinueIsolated,
}

// OnFailure 未知角色按最严格的方式处理
func (p Policy) OnFailure(role model.OrderRole) Action {
	if a, ok := p[role]; ok {
		return a
	}
	return AbortRemaining
}
