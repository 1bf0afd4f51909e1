package errors

import (
	"edgerelay/internal/model"
	"edgerelay/pkg/errors/ecode"
	stderrors "errors"
	"net/http"
)

// Error 携带业务错误码的错误
type Error struct {
	Code    int
	Message string
	cause   error
	// 订单已提交，执行结果随响应返回
	reported bool
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func WithCode(code int, msg string) error {
	return &Error{Code: code, Message: msg}
}

// WithReport 用于已经提交过订单的结果，错误码只描述执行结果
func WithReport(code int, msg string) error {
	return &Error{Code: code, Message: msg, reported: true}
}

func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, cause: err}
}

// DecodeErr 解析错误码和错误信息，nil 表示成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, ecode.Message(ecode.Success)
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code, e.Error()
	}
	return FromDomain(err), err.Error()
}

// FromDomain 把领域错误映射为错误码
func FromDomain(err error) int {
	switch {
	case err == nil:
		return ecode.Success
	case stderrors.Is(err, model.ErrMalformedDocument):
		return ecode.ValidateErr
	case stderrors.Is(err, model.ErrInvalidPlan):
		return ecode.InvalidPlan
	case stderrors.Is(err, model.ErrInvalidRiskInput):
		return ecode.InvalidRiskInput
	case stderrors.Is(err, model.ErrInsufficientSize):
		return ecode.InsufficientSize
	case stderrors.Is(err, model.ErrExchangeRejection):
		return ecode.ExchangeRejection
	case stderrors.Is(err, model.ErrTransportFailure):
		return ecode.TransportFailure
	}
	return ecode.Unknown
}

// StatusOf 返回 err 对应的 http 状态码。
// 带执行报告的结果总是 200，其余按错误码决定
func StatusOf(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.reported {
		return http.StatusOK
	}
	code, _ := DecodeErr(err)
	return HTTPStatus(code)
}

// HTTPStatus 错误码对应的 http 状态码
func HTTPStatus(code int) int {
	switch code {
	case ecode.Success:
		return http.StatusOK
	case ecode.ValidateErr, ecode.InvalidPlan, ecode.InvalidRiskInput, ecode.InsufficientSize:
		return http.StatusBadRequest
	case ecode.RequireAuthErr:
		return http.StatusUnauthorized
	case ecode.TooManyRequests:
		return http.StatusTooManyRequests
	case ecode.NotFoundErr:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
