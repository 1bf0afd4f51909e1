package webhook

import (
	"bytes"
	"context"
	"edgerelay/conf"
	"edgerelay/internal/model"
	"edgerelay/pkg/errors"
	"edgerelay/pkg/errors/ecode"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Execute(ctx context.Context, planID string, d *model.TradeDecision) (*model.ExecutionReport, error) {
	args := m.Called(ctx, planID, d)
	r, _ := args.Get(0).(*model.ExecutionReport)
	return r, args.Error(1)
}

func post(body string, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	return req
}

func handle(wh *WebhookHandler, r *http.Request) (*Result, error) {
	var (
		res *Result
		err error
	)
	wh.Handle(r, func(rr *Result, e error) {
		res, err = rr, e
	})
	return res, err
}

func TestHandleSyncPlaced(t *testing.T) {
	relay := new(MockRelay)
	relay.On("Execute", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&model.ExecutionReport{PlanID: "p", Status: model.ExecutionPlaced}, nil)

	wh := NewWebhookHandler(relay, conf.WebhookConfig{}, 0.4)
	res, err := handle(wh, post(sampleDoc, ""))

	require.NoError(t, err)
	assert.Equal(t, "placed", res.Status)
	require.NotNil(t, res.Report)
	relay.AssertNumberOfCalls(t, "Execute", 1)
}

func TestHandlePartialAndAbortedCodes(t *testing.T) {
	relay := new(MockRelay)
	relay.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.ExecutionReport{Status: model.ExecutionPartial, Unprotected: true}, nil).Once()
	relay.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.ExecutionReport{Status: model.ExecutionAborted}, nil).Once()

	wh := NewWebhookHandler(relay, conf.WebhookConfig{}, 0.4)

	res, err := handle(wh, post(sampleDoc, ""))
	require.NotNil(t, res)
	code, msg := errors.DecodeErr(err)
	assert.Equal(t, ecode.PartialExecution, code)
	assert.Contains(t, msg, "unprotected")

	res, err = handle(wh, post(sampleDoc, ""))
	require.NotNil(t, res.Report)
	code, _ = errors.DecodeErr(err)
	assert.Equal(t, ecode.ExchangeRejection, code)
}

func TestHandleRejectsMalformedWithoutExecuting(t *testing.T) {
	relay := new(MockRelay)
	wh := NewWebhookHandler(relay, conf.WebhookConfig{}, 0.4)

	res, err := handle(wh, post(`{"intent":"chat"}`, ""))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrMalformedDocument)
	code, _ := errors.DecodeErr(err)
	assert.Equal(t, 400, errors.HTTPStatus(code))
	relay.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSignature(t *testing.T) {
	relay := new(MockRelay)
	relay.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.ExecutionReport{Status: model.ExecutionPlaced}, nil)
	wh := NewWebhookHandler(relay, conf.WebhookConfig{Secret: "s3cret"}, 0.4)

	_, err := handle(wh, post(sampleDoc, ""))
	code, _ := errors.DecodeErr(err)
	assert.Equal(t, ecode.RequireAuthErr, code)

	_, err = handle(wh, post(sampleDoc, Sign("other", []byte(sampleDoc))))
	code, _ = errors.DecodeErr(err)
	assert.Equal(t, ecode.RequireAuthErr, code)
	assert.Equal(t, 401, errors.HTTPStatus(code))

	_, err = handle(wh, post(sampleDoc, Sign("s3cret", []byte(sampleDoc))))
	assert.NoError(t, err)
	relay.AssertNumberOfCalls(t, "Execute", 1)
}

func TestHandleAsyncReturnsBeforeExecution(t *testing.T) {
	relay := new(MockRelay)
	release := make(chan struct{})
	var done int32
	relay.On("Execute", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-release
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			if hasDeadline {
				atomic.StoreInt32(&done, 1)
			}
		}).
		Return(&model.ExecutionReport{Status: model.ExecutionPlaced}, nil)

	wh := NewWebhookHandler(relay, conf.WebhookConfig{Async: true, AsyncTimeout: time.Second}, 0.4)
	res, err := handle(wh, post(sampleDoc, ""))
	require.NoError(t, err)
	assert.Equal(t, "accepted", res.Status)
	assert.NotEmpty(t, res.PlanID)
	assert.Nil(t, res.Report)

	close(release)
	wh.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&done))
	relay.AssertCalled(t, "Execute", mock.Anything, res.PlanID, mock.Anything)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig := Sign("k", body)
	assert.True(t, VerifySignature("k", body, sig))
	assert.False(t, VerifySignature("k", body, "zz"))
	assert.False(t, VerifySignature("k", []byte(`{"a":2}`), sig))
}
