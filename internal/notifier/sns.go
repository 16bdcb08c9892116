package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"affiliate-marketplace/internal/common/logger"
	"affiliate-marketplace/internal/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher forwards every domain event to a topic for consumers outside
// this service. Subscribers filter on the "kind" message attribute.
type SNSPublisher struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(client SNSService, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"subscriber": "sns"}),
	}
}

func (p *SNSPublisher) Name() string { return "sns" }

func (p *SNSPublisher) Accepts(events.Kind) bool { return true }

func (p *SNSPublisher) Handle(ctx context.Context, e events.Event) error {
	if p.client == nil || p.topicARN == "" {
		return fmt.Errorf("%w: sns topic not configured", ErrSkipped)
	}

	body, err := json.Marshal(events.ToMessage(e))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(e.Kind())),
			},
		},
	})
	if err != nil {
		return &DeliveryError{Recipient: p.topicARN, Err: err}
	}

	fields := map[string]interface{}{"event": string(e.Kind())}
	if out != nil {
		fields["messageId"] = aws.ToString(out.MessageId)
	}
	p.logger.Debug("event published", fields)
	return nil
}
