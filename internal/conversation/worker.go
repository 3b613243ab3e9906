package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// EventProcessor handles one inbound event end to end. Satisfied by Service.
type EventProcessor interface {
	Process(ctx context.Context, event InboundEvent) (TurnResult, error)
}

// Worker consumes inbound events from the queue and invokes the processor.
// The default is a single consumer goroutine pulling one message per poll:
// messages from the same customer must be processed in arrival order, and a
// single serial consumer is the simplest arrangement that guarantees it.
type Worker struct {
	processor EventProcessor
	queue     queueClient
	metrics   *metrics.PipelineMetrics
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	metrics          *metrics.PipelineMetrics
}

const (
	defaultWorkerCount  = 1
	defaultWaitSeconds  = 2
	defaultBatchSize    = 1
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeoutSecs   = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines. Values
// above 1 trade per-customer ordering for throughput.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithPipelineMetrics wires turn metrics collection.
func WithPipelineMetrics(m *metrics.PipelineMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer around the provided processor.
func NewWorker(processor EventProcessor, queue queueClient, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if processor == nil {
		panic("conversation: processor cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		processor: processor,
		queue:     queue,
		metrics:   cfg.metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches consumer goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all consumer goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive inbound events", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

// handleMessage processes one queue message. A decode failure is a poison
// message and is deleted; a processing failure leaves the message on the
// queue so the broker redelivers it after the visibility timeout.
func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode inbound event job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	if msg.ReceiveCount > 1 {
		w.logger.Warn("processing redelivered inbound event",
			"job_id", payload.ID, "receive_count", msg.ReceiveCount)
	}

	started := time.Now()
	result, err := w.processor.Process(ctx, payload.Event)
	elapsed := time.Since(started)

	if err != nil {
		w.logger.Error("inbound event processing failed",
			"error", err, "job_id", payload.ID, "from", payload.Event.From)
		w.metrics.ObserveTurn(string(result.Intention), "error", elapsed.Seconds())
		return
	}

	w.logger.Debug("inbound event processed",
		"job_id", payload.ID, "intention", string(result.Intention),
		"outcome", string(result.Outcome), "elapsed_ms", elapsed.Milliseconds())
	w.metrics.ObserveTurn(string(result.Intention), "ok", elapsed.Seconds())
	if result.Outcome != OutcomeNone {
		w.metrics.ObserveStaffNotification(string(result.Outcome))
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSecs*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete processed event job", "error", err)
	}
}
