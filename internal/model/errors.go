package model

import (
	"errors"
	"fmt"
)

// 错误分类，用 errors.Is 判断
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrInvalidRiskInput  = errors.New("invalid risk input")
	ErrInsufficientSize  = errors.New("insufficient size")
	ErrExchangeRejection = errors.New("exchange rejection")
	ErrTransportFailure  = errors.New("transport failure")
)

const (
	KindExchangeRejection = "exchange_rejection"
	KindTransportFailure  = "transport_failure"
)

// RejectionError 交易所明确拒绝了订单
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("exchange rejected order: %s (code %s)", e.Reason, e.Code)
}

func (e *RejectionError) Unwrap() error { return ErrExchangeRejection }

// TransportError 网络或鉴权失败
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransportFailure, e.Err} }

// ErrorKind 对提交错误分类；无法识别的错误按网络错误处理
func ErrorKind(err error) string {
	if errors.Is(err, ErrExchangeRejection) {
		return KindExchangeRejection
	}
	return KindTransportFailure
}

// PreSubmission 是否为下单前即可发现的错误
func PreSubmission(err error) bool {
	return errors.Is(err, ErrMalformedDocument) ||
		errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrInvalidRiskInput) ||
		errors.Is(err, ErrInsufficientSize)
}
