package resolvesalaryslip

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	gotThread string
	gotDoc    conversation.Document
	result    *conversation.UploadResult
	err       error
}

func (s *stubResolver) ResolveUpload(_ context.Context, threadID string, doc conversation.Document) (*conversation.UploadResult, error) {
	s.gotThread, s.gotDoc = threadID, doc
	return s.result, s.err
}

func encoded(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestHandler_Execute(t *testing.T) {
	approved := &conversation.UploadResult{
		Processed:      true,
		Decision:       models.DecisionApprovedWithDocs,
		Reply:          "Received your Salary Slip. Everything looks good! Your loan is APPROVED. ✅",
		Stage:          models.StageEnd,
		SanctionLetter: "Sanction_Letter_9999999901_0A1B2C3D4E.pdf",
	}

	tests := []struct {
		name     string
		input    Input
		service  *stubResolver
		wantErr  errors.ErrorCode
		validate func(t *testing.T, out *Output, svc *stubResolver)
	}{
		{
			name:    "approved with documents",
			input:   Input{ThreadID: "t-1", FileName: "/tmp/uploads/slip.pdf", ContentBase64: encoded("%PDF-1.4")},
			service: &stubResolver{result: approved},
			validate: func(t *testing.T, out *Output, svc *stubResolver) {
				assert.True(t, out.Processed)
				assert.Equal(t, "APPROVED_WITH_DOCS", out.Decision)
				assert.Equal(t, "END", out.Stage)
				assert.Equal(t, approved.SanctionLetter, out.SanctionLetter)
				assert.Equal(t, "slip.pdf", svc.gotDoc.Name)
				assert.Equal(t, []byte("%PDF-1.4"), svc.gotDoc.Content)
			},
		},
		{
			name:  "session not waiting for a slip",
			input: Input{ThreadID: "t-2", ContentBase64: encoded("x")},
			service: &stubResolver{result: &conversation.UploadResult{
				Processed: false,
				Reply:     "I am not expecting a file right now. Let's chat first.",
				Stage:     models.StageSales,
			}},
			validate: func(t *testing.T, out *Output, svc *stubResolver) {
				assert.False(t, out.Processed)
				assert.Empty(t, out.Decision)
				assert.Equal(t, "salary_slip", svc.gotDoc.Name)
			},
		},
		{
			name:    "bad base64",
			input:   Input{ThreadID: "t-3", ContentBase64: "%%%"},
			service: &stubResolver{},
			wantErr: errors.ErrCodeInvalidDocument,
		},
		{
			name:    "missing thread",
			input:   Input{ContentBase64: encoded("x")},
			service: &stubResolver{},
			wantErr: errors.ErrCodeInvalidRequest,
		},
		{
			name:    "unknown session",
			input:   Input{ThreadID: "t-4", ContentBase64: encoded("x")},
			service: &stubResolver{err: errors.NewSessionNotFoundError("t-4")},
			wantErr: errors.ErrCodeSessionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&Config{Timeout: time.Second, MaxDocumentMB: 1}, tt.service, logger.NewTestLogger(t))

			out, err := h.execute(context.Background(), &tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input.ThreadID, tt.service.gotThread)
			tt.validate(t, out, tt.service)
		})
	}
}

func TestHandler_Execute_DocumentTooLarge(t *testing.T) {
	svc := &stubResolver{}
	h := NewHandler(&Config{Timeout: time.Second, MaxDocumentMB: 1}, svc, logger.NewNoOpLogger())

	big := base64.StdEncoding.EncodeToString(make([]byte, 1<<20+1))
	_, err := h.execute(context.Background(), &Input{ThreadID: "t-1", ContentBase64: big})

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidDocument))
	assert.Empty(t, svc.gotThread)
}
