package account

import "github.com/shopspring/decimal"

type Account struct {
	Currency  string          // 如 "USDT"
	Total     decimal.Decimal // 总资产
	Available decimal.Decimal // 可用资产
	Frozen    decimal.Decimal // 冻结资产（如挂单锁定的部分）
}
