package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

const queueAlreadyExists = "QueueAlreadyExists"

type messageEnqueuer interface {
	Create(ctx context.Context, o *azqueue.CreateOptions) (azqueue.CreateResponse, error)
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueuePublisher sends board events to an Azure Storage queue.
type QueuePublisher struct {
	queue messageEnqueuer
}

// NewQueuePublisher creates a publisher for the named queue.
func NewQueuePublisher(connStr, queueName string) (*QueuePublisher, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 30,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &QueuePublisher{queue: q}, nil
}

// EnsureQueue creates the queue if it does not exist yet.
func (p *QueuePublisher) EnsureQueue(ctx context.Context) error {
	_, err := p.queue.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == queueAlreadyExists {
			return nil
		}
		return err
	}
	return nil
}

// Publish enqueues the JSON encoded event.
func (p *QueuePublisher) Publish(ctx context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}
