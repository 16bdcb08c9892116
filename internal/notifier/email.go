package notifier

import (
	"context"
	"fmt"
	"strings"

	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESService is the subset of the SES client used for delivery.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailConfig struct {
	Enabled       bool
	FromEmail     string
	OperatorEmail string
}

// EmailNotifier mails the operator about submissions and owners about
// review outcomes.
type EmailNotifier struct {
	cfg       EmailConfig
	ses       SESService
	templates map[string]models.NotificationTemplate
	logger    logger.Logger
}

func NewEmailNotifier(cfg EmailConfig, sesClient SESService, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:       cfg,
		ses:       sesClient,
		templates: defaultTemplates(),
		logger:    log.WithFields(map[string]interface{}{"subscriber": "email"}),
	}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Accepts(kind events.Kind) bool {
	return kind == events.KindListingSubmitted || kind == events.KindListingStatusChanged
}

// configured reports whether a mail provider is usable.
func (n *EmailNotifier) configured() bool {
	return n.cfg.Enabled && n.ses != nil && strings.TrimSpace(n.cfg.FromEmail) != ""
}

func (n *EmailNotifier) Handle(ctx context.Context, e events.Event) error {
	if !n.configured() {
		n.logger.Warn("mail provider not configured, skipping", map[string]interface{}{
			"event":     string(e.Kind()),
			"listingId": e.ListingID(),
		})
		return fmt.Errorf("%w: mail provider not configured", ErrSkipped)
	}

	switch ev := e.(type) {
	case events.ListingSubmitted:
		return n.onSubmitted(ctx, ev)
	case events.ListingStatusChanged:
		return n.onStatusChanged(ctx, ev)
	default:
		return nil
	}
}

func (n *EmailNotifier) onSubmitted(ctx context.Context, ev events.ListingSubmitted) error {
	to := strings.TrimSpace(n.cfg.OperatorEmail)
	if to == "" {
		n.logger.Warn("operator email not configured, skipping", map[string]interface{}{
			"listingId": ev.Listing.ID,
		})
		return fmt.Errorf("%w: no operator email", ErrSkipped)
	}
	return n.send(ctx, to, TemplateListingSubmitted, listingData(ev.Listing))
}

func (n *EmailNotifier) onStatusChanged(ctx context.Context, ev events.ListingStatusChanged) error {
	if ev.Listing.OwnerContact == nil || strings.TrimSpace(*ev.Listing.OwnerContact) == "" {
		n.logger.Info("listing has no owner contact, skipping", map[string]interface{}{
			"listingId": ev.Listing.ID,
			"status":    string(ev.NewStatus),
		})
		return fmt.Errorf("%w: no owner contact", ErrSkipped)
	}

	var templateType string
	switch ev.NewStatus {
	case models.StatusApproved:
		templateType = TemplateListingApproved
	case models.StatusRejected:
		templateType = TemplateListingRejected
	default:
		return fmt.Errorf("%w: no template for status %s", ErrSkipped, ev.NewStatus)
	}

	return n.send(ctx, strings.TrimSpace(*ev.Listing.OwnerContact), templateType, listingData(ev.Listing))
}

func (n *EmailNotifier) send(ctx context.Context, to, templateType string, data map[string]interface{}) error {
	tmpl, ok := n.templates[templateType]
	if !ok {
		return fmt.Errorf("template not found for type: %s", templateType)
	}

	subject := renderTemplate(tmpl.Subject, data)
	body := renderTemplate(tmpl.Body, data)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.FromEmail),
	})
	if err != nil {
		return &DeliveryError{Recipient: to, Err: err}
	}

	n.logger.Info("email sent", map[string]interface{}{
		"template": templateType,
		"to":       to,
	})
	return nil
}
