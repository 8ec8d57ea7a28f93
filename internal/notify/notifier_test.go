package notify

import (
	"context"
	"errors"
	"testing"

	"loan-assistant/internal/common/config"
	apperrors "loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func testConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "loans@example.com"
	cfg.SMS.Enabled = true
	cfg.SMS.SenderID = "LOANS"
	cfg.SMS.CountryCode = "+91"
	cfg.DownloadBaseURL = "https://loans.example.com/"
	return cfg
}

func sanction() Sanction {
	return Sanction{
		Name:         "Rahul Sharma",
		Phone:        "9999999901",
		Email:        "rahul@example.com",
		Amount:       decimal.NewFromInt(150000),
		TenureMonths: 24,
		EMI:          decimal.RequireFromString("7061.02"),
		Letter:       "Sanction_Letter_9999999901_ABC.pdf",
	}
}

func TestNotifier_SanctionIssued(t *testing.T) {
	var sms *sns.PublishInput
	var mail *ses.SendEmailInput

	n := NewNotifier(testConfig(),
		&MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			mail = params
			return &ses.SendEmailOutput{}, nil
		}},
		&MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			sms = params
			return &sns.PublishOutput{}, nil
		}},
		logger.NewNoOpLogger(),
	)

	require.NoError(t, n.SanctionIssued(context.Background(), sanction()))

	require.NotNil(t, sms)
	assert.Equal(t, "+919999999901", *sms.PhoneNumber)
	assert.Contains(t, *sms.Message, "Rs. 150,000 for 24 months")
	assert.Contains(t, *sms.Message, "https://loans.example.com/sanction/Sanction_Letter_9999999901_ABC.pdf")
	assert.Equal(t, "LOANS", *sms.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)

	require.NotNil(t, mail)
	assert.Equal(t, []string{"rahul@example.com"}, mail.Destination.ToAddresses)
	assert.Equal(t, "loans@example.com", *mail.Source)
	assert.Contains(t, *mail.Message.Body.Text.Data, "Rs. 7,061.02")
}

func TestNotifier_ChannelFailures(t *testing.T) {
	n := NewNotifier(testConfig(),
		&MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("ses throttled")
		}},
		&MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return &sns.PublishOutput{}, nil
		}},
		logger.NewNoOpLogger(),
	)

	err := n.SanctionIssued(context.Background(), sanction())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationSendFailed))
	assert.Contains(t, err.Error(), "email")
}

func TestNotifier_DisabledChannels(t *testing.T) {
	cfg := testConfig()
	cfg.Email.Enabled = false
	cfg.SMS.Enabled = false

	called := false
	n := NewNotifier(cfg,
		&MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			called = true
			return nil, nil
		}},
		&MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			called = true
			return nil, nil
		}},
		logger.NewNoOpLogger(),
	)

	require.NoError(t, n.SanctionIssued(context.Background(), sanction()))
	assert.False(t, called)
}

func TestNotifier_SkipsMissingEmail(t *testing.T) {
	var emails int
	n := NewNotifier(testConfig(),
		&MockSESService{SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			emails++
			return &ses.SendEmailOutput{}, nil
		}},
		&MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return &sns.PublishOutput{}, nil
		}},
		logger.NewNoOpLogger(),
	)

	s := sanction()
	s.Email = ""
	require.NoError(t, n.SanctionIssued(context.Background(), s))
	assert.Zero(t, emails)
}
