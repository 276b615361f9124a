// Package notify tells applicants about status changes by email (SES) and,
// when their phone is verified, by SMS (SNS).
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	accounts "portal/internal/accounts/models"
	"portal/internal/applications/models"
	"portal/internal/platform/config"
	dErrors "portal/pkg/domain-errors"
	"portal/pkg/platform/circuit"
)

// EmailSender is satisfied by *sesv2.Client.
type EmailSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SMSSender is satisfied by *sns.Client.
type SMSSender interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends status-change messages. While the breaker is open sends are
// skipped until the cooldown admits a probe.
type Notifier struct {
	email   EmailSender
	sms     SMSSender
	from    string
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(n *Notifier) {
		n.breaker = b
	}
}

func New(email EmailSender, sms SMSSender, from string, opts ...Option) *Notifier {
	n := &Notifier{
		email: email,
		sms:   sms,
		from:  from,
		breaker: circuit.New("notify",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(30*time.Second),
		),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewFromConfig builds SES and SNS clients from the default AWS credential chain.
func NewFromConfig(ctx context.Context, cfg config.NotifyConfig, opts ...Option) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return New(sesv2.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), cfg.SenderEmail, opts...), nil
}

// StatusChanged emails the applicant and texts them when their phone is
// verified. Both channels are attempted; their errors are joined.
func (n *Notifier) StatusChanged(ctx context.Context, recipient *accounts.Account, app *models.Application) error {
	if recipient == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "notification recipient is required")
	}
	if !n.breaker.Allow() {
		return dErrors.New(dErrors.CodeUnavailable, "notifications suspended")
	}

	subject, body := render(app)
	var errs []error
	if recipient.Email != "" {
		_, err := n.email.SendEmail(ctx, &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(n.from),
			Destination:      &sestypes.Destination{ToAddresses: []string{recipient.Email}},
			Content: &sestypes.EmailContent{
				Simple: &sestypes.Message{
					Subject: &sestypes.Content{Data: aws.String(subject)},
					Body:    &sestypes.Body{Text: &sestypes.Content{Data: aws.String(body)}},
				},
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send email: %w", err))
		}
	}
	if n.sms != nil && recipient.Phone != "" && recipient.PhoneVerified() {
		_, err := n.sms.Publish(ctx, &sns.PublishInput{
			PhoneNumber: aws.String(recipient.Phone),
			Message:     aws.String(body),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("send sms: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "notification circuit opened", "breaker", n.breaker.Name())
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "notification delivery failed")
	}
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "notification circuit closed", "breaker", n.breaker.Name())
	}
	return nil
}

func render(app *models.Application) (string, string) {
	title := string(app.ServiceName)
	if entry, err := models.LookupService(string(app.ServiceName)); err == nil {
		title = entry.Title
	}
	subject := fmt.Sprintf("Your %s application is %s", title, statusLabel(app.Status))
	body := subject + "."
	if app.ReferenceNumber != "" {
		body += " Reference number: " + app.ReferenceNumber + "."
	}
	return subject, body
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusInProgress:
		return "under review"
	case models.StatusCompleted:
		return "approved"
	case models.StatusRejected:
		return "rejected"
	case models.StatusPending:
		return "pending review"
	}
	return string(s)
}
