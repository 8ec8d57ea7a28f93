// Package notify tells customers that their sanction letter is ready.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"loan-assistant/internal/common/config"
	apperrors "loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/underwriting"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/shopspring/decimal"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Sanction describes an issued letter.
type Sanction struct {
	Name         string
	Phone        string
	Email        string
	Amount       decimal.Decimal
	TenureMonths int
	EMI          decimal.Decimal
	Letter       string
}

// Notifier sends SMS and e-mail notices. A nil client disables its channel.
type Notifier struct {
	cfg    config.NotificationConfig
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

func NewNotifier(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	n := &Notifier{cfg: cfg, logger: logger.ForComponent(log, "notify")}
	if cfg.Email.Enabled {
		n.ses = sesClient
	}
	if cfg.SMS.Enabled {
		n.sns = snsClient
	}
	return n
}

// SanctionIssued notifies over every enabled channel. Each failing channel
// contributes a NOTIFICATION_SEND_FAILED error.
func (n *Notifier) SanctionIssued(ctx context.Context, s Sanction) error {
	var errs []error

	if n.sns != nil && s.Phone != "" {
		if err := n.sendSMS(ctx, s); err != nil {
			errs = append(errs, apperrors.NewNotificationError("sms", err))
		}
	}
	if n.ses != nil && s.Email != "" {
		if err := n.sendEmail(ctx, s); err != nil {
			errs = append(errs, apperrors.NewNotificationError("email", err))
		}
	}

	if len(errs) == 0 {
		n.logger.Info("sanction notice sent", map[string]interface{}{"letter": s.Letter})
	}
	return errors.Join(errs...)
}

func (n *Notifier) sendSMS(ctx context.Context, s Sanction) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(n.cfg.SMS.CountryCode + s.Phone),
		Message: aws.String(fmt.Sprintf(
			"Your personal loan of Rs. %s for %d months is sanctioned. EMI: Rs. %s. Download: %s",
			underwriting.FormatAmount(s.Amount), s.TenureMonths, underwriting.FormatAmount(s.EMI), n.downloadURL(s.Letter))),
	}
	if n.cfg.SMS.SenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: aws.String("String"), StringValue: aws.String(n.cfg.SMS.SenderID)},
			"AWS.SNS.SMS.SMSType":  {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		}
	}

	_, err := n.sns.Publish(ctx, input)
	return err
}

func (n *Notifier) sendEmail(ctx context.Context, s Sanction) error {
	subject := "Your personal loan is sanctioned"
	text := fmt.Sprintf("Dear %s,\n\nYour personal loan of Rs. %s for %d months has been sanctioned.\n"+
		"Monthly EMI: Rs. %s\n\nDownload your sanction letter: %s\n",
		s.Name, underwriting.FormatAmount(s.Amount), s.TenureMonths, underwriting.FormatAmount(s.EMI), n.downloadURL(s.Letter))

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{
			ToAddresses: []string{s.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(text)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return err
}

func (n *Notifier) downloadURL(letter string) string {
	return strings.TrimRight(n.cfg.DownloadBaseURL, "/") + "/sanction/" + letter
}
