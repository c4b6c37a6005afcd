package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/conversation"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultReceiveWait   = 2
	defaultReceiveBatch  = 1
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	replyTimeout         = 10 * time.Second
)

// MessageProcessor answers one inbound text for a clinic.
type MessageProcessor interface {
	Handle(ctx context.Context, clinicID, text string) conversation.Reply
}

// Worker consumes inbound jobs, runs them through the assistant and posts
// the reply back to the originating chat.
type Worker struct {
	queue     Queue
	processor MessageProcessor
	replies   TextSender
	observer  InboundObserver
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			seconds = 0
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many jobs one receive may return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			size = 1
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

func NewWorker(queue Queue, processor MessageProcessor, replies TextSender, observer InboundObserver, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if processor == nil {
		panic("messaging: processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveBatch,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:     queue,
		processor: processor,
		replies:   replies,
		observer:  observer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("inbound worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("inbound worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive inbound jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage processes one queue entry and always deletes it: the
// assistant has already persisted whatever it could, so redelivery would
// duplicate records.
func (w *Worker) HandleMessage(ctx context.Context, msg QueueMessage) {
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	var job InboundJob
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode inbound job", "error", err, "msg_id", msg.ID)
		w.observe("invalid")
		return
	}
	if job.ClinicID == "" || job.ChatID == "" {
		w.logger.Error("inbound job missing routing", "job_id", job.ID)
		w.observe("invalid")
		return
	}

	reply := w.processor.Handle(ctx, job.ClinicID, job.Text)
	w.logger.Info("inbound job processed",
		"job_id", job.ID,
		"clinic_id", job.ClinicID,
		"command", reply.Command,
		"kind", reply.Kind,
		"success", reply.Success,
	)

	if w.replies == nil || reply.Text == "" {
		w.observe("processed")
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	if err := w.replies.SendText(sendCtx, job.ChatID, reply.Text); err != nil {
		w.logger.Error("failed to send reply", "error", err, "job_id", job.ID, "clinic_id", job.ClinicID)
		w.observe("reply_failed")
		return
	}
	w.observe("replied")
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete inbound job", "error", err)
	}
}

func (w *Worker) observe(status string) {
	if w.observer != nil {
		w.observer.ObserveInbound("worker", status)
	}
}
