package messaging

import (
	"context"
	"net/http"
	"time"

	"github.com/mesavia/restaurant-ai-platform/internal/conversation"
	"github.com/mesavia/restaurant-ai-platform/internal/observability/metrics"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

// emptyTwiML acknowledges a webhook without sending an immediate reply; the
// actual response goes out asynchronously once the pipeline has processed
// the message.
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundPublisher enqueues inbound events for the pipeline worker.
type InboundPublisher interface {
	EnqueueInbound(ctx context.Context, event conversation.InboundEvent) error
}

// WebhookHandler receives Twilio WhatsApp webhooks and hands them to the
// queue. It does no conversation work itself; the edge must stay fast
// enough to answer within Twilio's webhook timeout.
type WebhookHandler struct {
	publisher  InboundPublisher
	authToken  string
	webhookURL string
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
}

// NewWebhookHandler builds the inbound webhook handler. An empty authToken
// disables signature validation, for local development only.
func NewWebhookHandler(publisher InboundPublisher, authToken, webhookURL string, m *metrics.MessagingMetrics, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		publisher:  publisher,
		authToken:  authToken,
		webhookURL: webhookURL,
		metrics:    m,
		logger:     logger,
	}
}

// HandleInbound is the POST handler for the WhatsApp webhook endpoint.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if h.authToken != "" && !ValidateTwilioSignature(r, h.authToken, h.webhookURL) {
		h.logger.Warn("rejected webhook with invalid signature", "remote", r.RemoteAddr)
		h.metrics.ObserveInbound("rejected")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	req, err := ParseWhatsAppWebhook(r)
	if err != nil {
		h.logger.Warn("malformed inbound webhook", "error", err)
		h.metrics.ObserveInbound("malformed")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	event := conversation.InboundEvent{
		MessageID:   req.MessageSid,
		From:        req.From,
		To:          req.To,
		ProfileName: req.ProfileName,
		Body:        req.Body,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := h.publisher.EnqueueInbound(r.Context(), event); err != nil {
		h.logger.Error("failed to enqueue inbound event", "error", err, "message_sid", req.MessageSid)
		h.metrics.ObserveInbound("enqueue_failed")
		// 5xx so Twilio retries delivery.
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveInbound("accepted")
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}
