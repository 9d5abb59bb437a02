package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-payment-notify/internal/config"
	"github.com/go-payment-notify/internal/domain"
)

// Publisher fans order events out to subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

type publisher struct {
	client   *sns.Client
	topicARN string
}

// NewPublisher returns nil when no topic is configured; callers treat a nil
// Publisher as "events disabled".
func NewPublisher(awsCfg aws.Config, cfg *config.Config) Publisher {
	if cfg.SNSTopicARN == "" {
		return nil
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})
	return &publisher{client: client, topicARN: cfg.SNSTopicARN}
}

func (p *publisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: eventAttributes(ev),
	})
	return err
}

// eventAttributes lets subscribers filter on type and status without parsing the body.
func eventAttributes(ev domain.OrderEvent) map[string]types.MessageAttributeValue {
	return map[string]types.MessageAttributeValue{
		"event_type": {DataType: aws.String("String"), StringValue: aws.String(ev.Type)},
		"status":     {DataType: aws.String("String"), StringValue: aws.String(string(ev.Status))},
	}
}
