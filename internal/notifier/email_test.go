package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/events"
	"affiliate-marketplace/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendEmailFunc == nil {
		return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
	}
	return m.SendEmailFunc(ctx, params, optFns...)
}

func createTestConfig() EmailConfig {
	return EmailConfig{
		Enabled:       true,
		FromEmail:     "noreply@marketplace.example",
		OperatorEmail: "ops@marketplace.example",
	}
}

func createTestListing() models.Listing {
	contact := "owner@example.com"
	promo := "https://acme.example/kit.zip"
	return models.Listing{
		ID:                  12,
		OwnerID:             "user-1",
		OwnerContact:        &contact,
		Name:                "Acme Affiliates",
		Description:         "Sell widgets",
		URL:                 "https://acme.example",
		CommissionStructure: "20% recurring",
		PaymentTerms:        "Net 30",
		AffiliateSignupURL:  "https://acme.example/join",
		PromoMaterials:      &promo,
		Status:              models.StatusPending,
		CreatedAt:           time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEmailNotifier_Submitted_MailsOperatorWithAllFields(t *testing.T) {
	mock := &MockSESService{}
	n := NewEmailNotifier(createTestConfig(), mock, logger.NewTestLogger(t))

	err := n.Handle(context.Background(), events.NewListingSubmitted(createTestListing(), time.Now()))

	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	in := mock.calls[0]
	assert.Equal(t, []string{"ops@marketplace.example"}, in.Destination.ToAddresses)
	assert.Equal(t, "noreply@marketplace.example", aws.ToString(in.Source))
	assert.Equal(t, "New affiliate listing submitted: Acme Affiliates", aws.ToString(in.Message.Subject.Data))

	body := aws.ToString(in.Message.Body.Text.Data)
	for _, want := range []string{
		"ID: 12", "Sell widgets", "https://acme.example/join", "20% recurring", "Net 30",
		"https://acme.example/kit.zip", "user-1", "owner@example.com",
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "{{")
}

func TestEmailNotifier_StatusChanged_UsesOutcomeTemplate(t *testing.T) {
	tests := []struct {
		status  models.ListingStatus
		subject string
	}{
		{models.StatusApproved, "Your listing Acme Affiliates has been approved"},
		{models.StatusRejected, "Your listing Acme Affiliates was not approved"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			mock := &MockSESService{}
			n := NewEmailNotifier(createTestConfig(), mock, logger.NewNoOpLogger())
			listing := createTestListing()
			listing.Status = tt.status

			err := n.Handle(context.Background(), events.NewListingStatusChanged(listing, models.StatusPending, "admin", time.Now()))

			require.NoError(t, err)
			require.Len(t, mock.calls, 1)
			assert.Equal(t, []string{"owner@example.com"}, mock.calls[0].Destination.ToAddresses)
			assert.Equal(t, tt.subject, aws.ToString(mock.calls[0].Message.Subject.Data))
		})
	}
}

func TestEmailNotifier_NoOwnerContactSkips(t *testing.T) {
	mock := &MockSESService{}
	n := NewEmailNotifier(createTestConfig(), mock, logger.NewNoOpLogger())
	listing := createTestListing()
	listing.OwnerContact = nil
	listing.Status = models.StatusApproved

	err := n.Handle(context.Background(), events.NewListingStatusChanged(listing, models.StatusPending, "admin", time.Now()))

	assert.ErrorIs(t, err, ErrSkipped)
	assert.Empty(t, mock.calls)
}

func TestEmailNotifier_UnconfiguredProviderSkips(t *testing.T) {
	for name, cfg := range map[string]EmailConfig{
		"disabled":    {Enabled: false, FromEmail: "a@b.co", OperatorEmail: "ops@b.co"},
		"no from":     {Enabled: true, OperatorEmail: "ops@b.co"},
		"no operator": {Enabled: true, FromEmail: "a@b.co"},
	} {
		t.Run(name, func(t *testing.T) {
			mock := &MockSESService{}
			n := NewEmailNotifier(cfg, mock, logger.NewNoOpLogger())

			err := n.Handle(context.Background(), events.NewListingSubmitted(createTestListing(), time.Now()))

			assert.ErrorIs(t, err, ErrSkipped)
			assert.Empty(t, mock.calls)
		})
	}
}

func TestEmailNotifier_NilClientSkips(t *testing.T) {
	n := NewEmailNotifier(createTestConfig(), nil, logger.NewNoOpLogger())
	err := n.Handle(context.Background(), events.NewListingSubmitted(createTestListing(), time.Now()))
	assert.ErrorIs(t, err, ErrSkipped)
}

func TestEmailNotifier_DeliveryErrorCarriesRecipient(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, errors.New("MessageRejected")
		},
	}
	n := NewEmailNotifier(createTestConfig(), mock, logger.NewNoOpLogger())

	err := n.Handle(context.Background(), events.NewListingSubmitted(createTestListing(), time.Now()))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkipped)
	assert.Equal(t, "ops@marketplace.example", recipientOf(err))
}

func TestEmailNotifier_Accepts(t *testing.T) {
	n := NewEmailNotifier(createTestConfig(), nil, logger.NewNoOpLogger())
	assert.True(t, n.Accepts(events.KindListingSubmitted))
	assert.True(t, n.Accepts(events.KindListingStatusChanged))
	assert.False(t, n.Accepts(events.KindListingWithdrawn))
}

func TestRenderTemplate(t *testing.T) {
	got := renderTemplate("Hi {{name}}, id {{id}}{{missing}}.", map[string]interface{}{
		"name": "Ann",
		"id":   int64(4),
	})
	assert.Equal(t, "Hi Ann, id 4.", got)
}
