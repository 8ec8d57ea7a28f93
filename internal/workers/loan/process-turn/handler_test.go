package processturn

import (
	"context"
	"testing"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	gotThread string
	gotText   string
	result    *conversation.TurnResult
	err       error
}

func (s *stubService) ProcessTurn(_ context.Context, threadID, text string) (*conversation.TurnResult, error) {
	s.gotThread, s.gotText = threadID, text
	return s.result, s.err
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    Input
		service  *stubService
		wantErr  errors.ErrorCode
		validate func(t *testing.T, out *Output)
	}{
		{
			name:  "turn completes",
			input: Input{ThreadID: "t-1", Message: "24"},
			service: &stubService{result: &conversation.TurnResult{
				Reply:          "Excellent choice!",
				Stage:          models.StageEnd,
				Decision:       models.DecisionApprovedInstant,
				SanctionLetter: "Sanction_Letter_9999999901_ABC.pdf",
			}},
			validate: func(t *testing.T, out *Output) {
				assert.Equal(t, "END", out.Stage)
				assert.Equal(t, "APPROVED_INSTANT", out.Decision)
				assert.Equal(t, "Sanction_Letter_9999999901_ABC.pdf", out.SanctionLetter)
			},
		},
		{
			name:  "sales stage reply",
			input: Input{ThreadID: "t-2", Message: "hi"},
			service: &stubService{result: &conversation.TurnResult{
				Reply: "Personal loans from 12% p.a.",
				Stage: models.StageSales,
			}},
			validate: func(t *testing.T, out *Output) {
				assert.Equal(t, "SALES", out.Stage)
				assert.Empty(t, out.Decision)
			},
		},
		{
			name:    "missing thread",
			input:   Input{ThreadID: "  ", Message: "hi"},
			service: &stubService{},
			wantErr: errors.ErrCodeInvalidRequest,
		},
		{
			name:    "service error passes through",
			input:   Input{ThreadID: "t-3", Message: "hi"},
			service: &stubService{err: errors.NewSalesAgentTimeoutError(context.DeadlineExceeded)},
			wantErr: errors.ErrCodeSalesAgentTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&Config{Timeout: time.Second}, tt.service, logger.NewTestLogger(t))

			out, err := h.execute(context.Background(), &tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input.ThreadID, tt.service.gotThread)
			assert.Equal(t, tt.input.Message, tt.service.gotText)
			tt.validate(t, out)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 45*time.Second, LoadConfig(config.WorkerConfig{Timeout: 45000}).Timeout)
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
}
