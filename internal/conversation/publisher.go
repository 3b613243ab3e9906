package conversation

import (
	"context"
	"fmt"

	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// Publisher enqueues inbound customer messages for asynchronous processing.
// The webhook edge stays fast and the pipeline's ordering guarantee comes
// from the consumer side, not from here.
type Publisher struct {
	queue  queueClient
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:  queue,
		logger: logger,
	}
}

// EnqueueInbound publishes one inbound event job.
func (p *Publisher) EnqueueInbound(ctx context.Context, event InboundEvent) error {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, body, err := encodePayload(queuePayload{Event: event})
	if err != nil {
		return err
	}

	if err := p.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("conversation: failed to enqueue inbound event: %w", err)
	}

	p.logger.Debug("inbound event enqueued", "job_id", payload.ID, "from", event.From)
	return nil
}
