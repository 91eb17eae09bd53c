package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the slice of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQS carries archival tasks through one SQS queue. Received tasks keep
// their receipt handle so Ack can delete them after a successful save,
// which gives at-least-once delivery.
type SQS struct {
	client   SQSAPI
	queueURL string
}

func NewSQS(ctx context.Context, region, queueURL string) (*SQS, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQS{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func NewSQSWithClient(client SQSAPI, queueURL string) *SQS {
	return &SQS{client: client, queueURL: queueURL}
}

func (q *SQS) Enqueue(ctx context.Context, task Task) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"ExperimentID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(task.Experiment.ID),
			},
		},
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (q *SQS) Dequeue(ctx context.Context, max int) ([]Task, error) {
	if max <= 0 {
		max = 1
	}
	if max > 10 {
		// SQS caps a single receive at ten messages.
		max = 10
	}

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       20,
		MessageAttributeNames: []string{"All"},
	}

	result, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	tasks := make([]Task, 0, len(result.Messages))
	for _, msg := range result.Messages {
		var task Task
		if err := json.Unmarshal([]byte(*msg.Body), &task); err != nil {
			slog.Warn("failed to unmarshal archival task", "error", err)
			continue
		}
		if msg.ReceiptHandle != nil {
			task.receiptHandle = *msg.ReceiptHandle
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

func (q *SQS) Ack(ctx context.Context, task Task) error {
	if task.receiptHandle == "" {
		return nil
	}

	input := &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(task.receiptHandle),
	}

	if _, err := q.client.DeleteMessage(ctx, input); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
