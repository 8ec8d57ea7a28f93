package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStandard(t *testing.T) {
	assert.Nil(t, AsStandard(nil))

	plain := stderrors.New("disk full")
	std := AsStandard(plain)
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "disk full", std.Details)
	assert.ErrorIs(t, std, plain)

	wrapped := fmt.Errorf("turn: %w", NewSessionNotFoundError("t-1"))
	assert.Equal(t, ErrCodeSessionNotFound, AsStandard(wrapped).Code)
	assert.True(t, HasCode(wrapped, ErrCodeSessionNotFound))
	assert.False(t, HasCode(plain, ErrCodeSessionNotFound))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	err := NewSalesAgentTimeoutError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, err.Retryable)
	assert.Equal(t, "StandardError[SALES_AGENT_TIMEOUT]: Sales assistant did not answer in time", err.Error())
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
	}{
		{name: "directory outage retries", err: NewDirectoryError(stderrors.New("conn refused")), expectedRetries: 3},
		{name: "sales timeout retries once", err: NewSalesAgentTimeoutError(context.DeadlineExceeded), expectedRetries: 1},
		{name: "unknown session does not retry", err: NewSessionNotFoundError("t-9"), expectedRetries: 0},
		{name: "bad document does not retry", err: NewInvalidDocumentError("empty"), expectedRetries: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
			require.Contains(t, vars, "timestamp")
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeInvalidRequest))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrCodeSessionNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrCodeSessionBusy))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(ErrCodeSalesAgentTimeout))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrCodeDirectoryUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeSessionStoreFailed))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeSalesAgentFailed))
	assert.Equal(t, "SESSION", GetErrorCategory(ErrCodeSessionStoreFailed))
	assert.Equal(t, "DIRECTORY", GetErrorCategory(ErrCodeDirectoryUnavailable))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidRequest))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeSanctionRenderFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidRequest))
}
