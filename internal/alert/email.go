package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/devrev/inde-monitor/internal/model"
	"go.uber.org/zap"
)

// SESAPI is the part of the SES v2 client used to send alert mail
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailNotifier mails every new alert through Amazon SES
type EmailNotifier struct {
	client SESAPI
	from   string
	to     []string
	logger *zap.Logger
}

// NewEmailNotifier creates an email notifier over an existing SES client
func NewEmailNotifier(client SESAPI, from string, to []string, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{
		client: client,
		from:   from,
		to:     append([]string(nil), to...),
		logger: logger,
	}
}

// NewSESEmailNotifier loads the default AWS credential chain and builds an
// SES-backed notifier. An empty region defers to the environment.
func NewSESEmailNotifier(ctx context.Context, region, from string, to []string, logger *zap.Logger) (*EmailNotifier, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewEmailNotifier(sesv2.NewFromConfig(cfg), from, to, logger), nil
}

// Notify implements Notifier
func (n *EmailNotifier) Notify(ctx context.Context, alert model.Alert) error {
	subject := fmt.Sprintf("[INDE %s] %s", strings.ToUpper(string(alert.Level)), alert.Service)
	body := fmt.Sprintf("Alert: %s\nLevel: %s\nService: %s\nMessage: %s\nTriggered at: %s\n",
		alert.ID, alert.Level, alert.Service, alert.Message, alert.Timestamp.Format("2006-01-02 15:04:05 MST"))

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination: &types.Destination{
			ToAddresses: n.to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	}

	result, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	messageID := ""
	if result != nil && result.MessageId != nil {
		messageID = *result.MessageId
	}
	n.logger.Debug("Alert email sent",
		zap.String("alert_id", alert.ID),
		zap.Strings("to", n.to),
		zap.String("message_id", messageID))
	return nil
}
