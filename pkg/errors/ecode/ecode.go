package ecode

// 业务错误码，0 表示成功
const (
	Success = 0

	// 请求/文档错误
	ValidateErr      = 10001
	InvalidPlan      = 10002
	InvalidRiskInput = 10003
	InsufficientSize = 10004

	// 执行结果
	ExchangeRejection = 20001
	TransportFailure  = 20002
	PartialExecution  = 20003

	RequireAuthErr  = 40001
	TooManyRequests = 40002
	NotFoundErr     = 40004

	Unknown = 50000
)

var messages = map[int]string{
	Success:           "success",
	ValidateErr:       "malformed document",
	InvalidPlan:       "invalid plan",
	InvalidRiskInput:  "invalid risk input",
	InsufficientSize:  "insufficient size",
	ExchangeRejection: "exchange rejection",
	TransportFailure:  "transport failure",
	PartialExecution:  "partial execution",
	RequireAuthErr:    "invalid signature",
	TooManyRequests:   "duplicate request",
	NotFoundErr:       "not found",
	Unknown:           "internal error",
}

func Message(code int) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[Unknown]
}
