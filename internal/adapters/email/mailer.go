package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"eventcheckout/internal/observability"
)

// Mailer sends transactional emails. Delivery is fire-and-forget from
// the caller's point of view; failures are logged, never propagated.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SESConfig holds credentials for AWS SES.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Config selects and configures a mail provider.
type Config struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
}

// NewMailer creates a mailer from config. Provider "ses" uses AWS SES;
// "noop" or unknown logs and drops the message.
func NewMailer(cfg Config, logger observability.Logger) Mailer {
	switch cfg.Provider {
	case "ses":
		awsCfg := aws.Config{
			Region: cfg.SES.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					cfg.SES.AccessKeyID,
					cfg.SES.SecretAccessKey,
					"",
				),
			),
		}
		return &sesMailer{
			client:      ses.NewFromConfig(awsCfg),
			fromAddress: cfg.FromAddress,
			fromName:    cfg.FromName,
			logger:      logger,
		}
	default:
		if cfg.Provider != "noop" && cfg.Provider != "" {
			logger.WithField("provider", cfg.Provider).Warn("unknown email provider, using noop")
		}
		return &noopMailer{logger: logger}
	}
}

type sesMailer struct {
	client      *ses.Client
	fromAddress string
	fromName    string
	logger      observability.Logger
}

func (s *sesMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	source := s.fromAddress
	if s.fromName != "" {
		source = fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}
	input := &ses.SendEmailInput{
		Source: aws.String(source),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("send email via SES: %w", err)
	}
	s.logger.WithField("message_id", aws.ToString(result.MessageId)).Debug("email sent")
	return nil
}

type noopMailer struct {
	logger observability.Logger
}

func (n *noopMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	n.logger.WithField("to", to).WithField("subject", subject).Info("email suppressed (noop mailer)")
	return nil
}
