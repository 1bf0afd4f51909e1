package errors

import (
	"edgerelay/internal/model"
	"edgerelay/pkg/errors/ecode"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeErr(t *testing.T) {
	code, msg := DecodeErr(nil)
	assert.Equal(t, ecode.Success, code)
	assert.Equal(t, "success", msg)

	code, msg = DecodeErr(WithCode(ecode.RequireAuthErr, "bad signature"))
	assert.Equal(t, ecode.RequireAuthErr, code)
	assert.Equal(t, "bad signature", msg)

	wrapped := Wrap(fmt.Errorf("stop above entry: %w", model.ErrInvalidPlan), ecode.InvalidPlan, "build plan")
	code, msg = DecodeErr(wrapped)
	assert.Equal(t, ecode.InvalidPlan, code)
	assert.Contains(t, msg, "stop above entry")
	assert.ErrorIs(t, wrapped, model.ErrInvalidPlan)
}

func TestFromDomain(t *testing.T) {
	cases := map[error]int{
		model.ErrMalformedDocument:                     ecode.ValidateErr,
		fmt.Errorf("x: %w", model.ErrInvalidRiskInput): ecode.InvalidRiskInput,
		model.ErrInsufficientSize:                      ecode.InsufficientSize,
		&model.RejectionError{Code: "110007"}:          ecode.ExchangeRejection,
		&model.TransportError{Op: "balance", Err: fmt.Errorf("eof")}: ecode.TransportFailure,
		fmt.Errorf("boom"): ecode.Unknown,
	}
	for err, want := range cases {
		assert.Equal(t, want, FromDomain(err), err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(ecode.Success))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ecode.ExchangeRejection))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ecode.InsufficientSize))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ecode.RequireAuthErr))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(ecode.TooManyRequests))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ecode.TransportFailure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ecode.Unknown))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusOK, StatusOf(WithReport(ecode.ExchangeRejection, "plan aborted")))
	assert.Equal(t, http.StatusOK, StatusOf(WithReport(ecode.PartialExecution, "stop loss failed")))

	// 下单前的交易所错误没有执行报告
	rej := &model.RejectionError{Code: "10003", Reason: "API key is invalid."}
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("get USDT balance: %w", rej)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(WithCode(ecode.ExchangeRejection, "cancel failed")))
	assert.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("x: %w", model.ErrInsufficientSize)))

	code, msg := DecodeErr(WithReport(ecode.PartialExecution, "some take profit orders failed"))
	assert.Equal(t, ecode.PartialExecution, code)
	assert.Equal(t, "some take profit orders failed", msg)
}
