package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueReceiveBatches(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, "a"))
	require.NoError(t, q.Send(ctx, "b"))
	require.NoError(t, q.Send(ctx, "c"))

	msgs, err := q.Receive(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)

	msgs, err = q.Receive(ctx, 5, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryQueueReceiveTimesOutAndCancels(t *testing.T) {
	q := NewMemoryQueue(1)

	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublisherAssignsID(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, NewPublisher(q).Enqueue(context.Background(), InboundJob{ClinicID: "c1", ChatID: "1", Text: "x"}))

	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	var job InboundJob
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Body), &job))
	assert.NotEmpty(t, job.ID)
}

type fakeSQS struct {
	sent     []string
	deleted  []string
	messages []types.Message
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("id-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	n := int(in.MaxNumberOfMessages)
	if n > len(f.messages) {
		n = len(f.messages)
	}
	out := f.messages[:n]
	f.messages = f.messages[n:]
	return &sqs.ReceiveMessageOutput{Messages: out}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSQueue(t *testing.T) {
	fake := &fakeSQS{messages: []types.Message{
		{MessageId: aws.String("m1"), Body: aws.String(`{"clinic_id":"c1"}`), ReceiptHandle: aws.String("r1")},
	}}
	q := NewSQSQueue(fake, "https://sqs.local/queue")
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, "payload"))
	assert.Equal(t, []string{"payload"}, fake.sent)

	msgs, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, QueueMessage{ID: "m1", Body: `{"clinic_id":"c1"}`, ReceiptHandle: "r1"}, msgs[0])

	require.NoError(t, q.Delete(ctx, "r1"))
	require.NoError(t, q.Delete(ctx, ""))
	assert.Equal(t, []string{"r1"}, fake.deleted)
}
