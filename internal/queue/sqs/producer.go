package sqsqueue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"mailevents/internal/ses"
)

// API is the subset of the SQS client used by the producer and consumer.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SESJob is one SES notification keyed by the SES message id it refers to.
// Keep it small; SQS has a 256KB message size limit.
type SESJob struct {
	DeliveryID string    `json:"deliveryId"`
	Event      ses.Event `json:"event"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type sesJobBody struct {
	DeliveryID string          `json:"deliveryId"`
	Event      json.RawMessage `json:"event"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

type Producer struct {
	SQS      API
	QueueURL string
	// GroupBuckets bounds the number of FIFO message groups.
	GroupBuckets int
}

// Enqueue publishes the raw SES event. On FIFO queues events for the same
// delivery id share a message group and identical bodies are deduplicated
// within the SQS deduplication window.
func (p *Producer) Enqueue(ctx context.Context, deliveryID string, event json.RawMessage) error {
	body, err := json.Marshal(sesJobBody{DeliveryID: deliveryID, Event: event, ReceivedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if isFIFO(p.QueueURL) {
		in.MessageGroupId = str(messageGroupIDBucketed(deliveryID, p.GroupBuckets))
		in.MessageDeduplicationId = str(dedupID(deliveryID, event))
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func isFIFO(queueURL string) bool { return strings.HasSuffix(queueURL, ".fifo") }

const defaultGroupBuckets = 2000

func messageGroupIDBucketed(deliveryID string, buckets int) string {
	if buckets <= 0 {
		buckets = defaultGroupBuckets
	}
	h := fnv.New32a()
	h.Write([]byte(deliveryID))
	return fmt.Sprintf("ses-%d", h.Sum32()%uint32(buckets))
}

func dedupID(deliveryID string, event []byte) string {
	sum := sha256.Sum256(append([]byte(deliveryID+":"), event...))
	return hex.EncodeToString(sum[:])
}

func str(s string) *string { return &s }
