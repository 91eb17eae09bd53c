package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the slice of the SNS client the sink uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes degradation events to an SNS topic.
type SNSSink struct {
	client   SNSAPI
	topicArn string
}

func NewSNSSink(ctx context.Context, region, topicArn string) (*SNSSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SNSSink{
		client:   sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}, nil
}

func NewSNSSinkWithClient(client SNSAPI, topicArn string) *SNSSink {
	return &SNSSink{client: client, topicArn: topicArn}
}

func (s *SNSSink) Send(ctx context.Context, event Event) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"Provider": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Provider)),
			},
			"Kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Kind)),
			},
		},
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
