package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue carries inbound chat jobs from the webhook to the workers.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received queue entry.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// InboundJob is one operator message waiting to be answered.
type InboundJob struct {
	ID       string `json:"id"`
	ClinicID string `json:"clinic_id"`
	ChatID   string `json:"chat_id"`
	UpdateID int64  `json:"update_id"`
	Text     string `json:"text"`
}

// Publisher enqueues inbound jobs.
type Publisher struct {
	queue Queue
}

func NewPublisher(queue Queue) *Publisher {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	return &Publisher{queue: queue}
}

// Enqueue assigns an id when missing and sends the job.
func (p *Publisher) Enqueue(ctx context.Context, job InboundJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("messaging: encode job: %w", err)
	}
	if err := p.queue.Send(ctx, string(body)); err != nil {
		return fmt.Errorf("messaging: enqueue job: %w", err)
	}
	return nil
}
