package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type Consumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, job SESJob) error

// PollConcurrent processes messages with a worker pool. Messages are deleted
// only after the handler succeeds; failures are left for SQS redrive.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan types.Message, workers*2)
	errCh := make(chan error, 1)

	sendErr := func(err error) {
		select {
		case errCh <- err:
		default:
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, m, handler)
			}
		}()
	}

	// Producer: fetch messages and enqueue for workers
	go func() {
		defer close(jobs)

		for {
			if ctx.Err() != nil {
				sendErr(ctx.Err())
				return
			}

			out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
				QueueUrl:            &c.QueueURL,
				MaxNumberOfMessages: c.MaxMessages,
				WaitTimeSeconds:     c.WaitTimeSeconds,
				VisibilityTimeout:   c.VisibilityTimeout,
			})
			if err != nil {
				if ctx.Err() != nil {
					sendErr(ctx.Err())
					return
				}
				slog.Error("sqs receive message failed", "err", err)
				time.Sleep(500 * time.Millisecond)
				continue
			}

			for _, m := range out.Messages {
				select {
				case jobs <- m:
				case <-ctx.Done():
					sendErr(ctx.Err())
					return
				}
			}
		}
	}()

	// Wait for shutdown signal (ctx canceled) or producer signals error
	err := <-errCh

	// Let workers finish whatever is already in `jobs` (channel will be closed by producer)
	wg.Wait()
	return err
}

func (c *Consumer) handle(ctx context.Context, m types.Message, handler Handler) {
	// Poison / invalid messages are deleted so they don't loop forever.
	if m.Body == nil {
		c.delete(ctx, m)
		return
	}
	var job SESJob
	if err := json.Unmarshal([]byte(*m.Body), &job); err != nil {
		slog.Error("sqs bad ses job payload", "err", err, "sqs_message_id", deref(m.MessageId))
		c.delete(ctx, m)
		return
	}

	if err := handler(ctx, job); err != nil {
		// do NOT delete => SQS redrive/DLQ handles it
		slog.Error("sqs ses job handler error", "err", err, "ses_email_id", job.DeliveryID, "event_type", job.Event.EventType)
		return
	}
	c.delete(ctx, m)
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	// A finished job is acknowledged even while shutting down.
	_, err := c.SQS.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		slog.Error("sqs delete message failed", "err", err, "sqs_message_id", deref(m.MessageId))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
