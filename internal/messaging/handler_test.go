package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesavia/restaurant-ai-platform/internal/conversation"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

type capturePublisher struct {
	events []conversation.InboundEvent
	err    error
}

func (p *capturePublisher) EnqueueInbound(_ context.Context, event conversation.InboundEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

const testWebhookURL = "https://orders.example.com/webhooks/whatsapp"

func signedWebhookRequest(t *testing.T, authToken string, form url.Values) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", computeSignature(buildSignaturePayload(testWebhookURL, form), authToken))
	return req
}

func inboundForm() url.Values {
	form := url.Values{}
	form.Set("MessageSid", "SM123")
	form.Set("AccountSid", "AC456")
	form.Set("From", "whatsapp:+5218110000001")
	form.Set("To", "whatsapp:+5218100000000")
	form.Set("Body", "quiero 2 tacos")
	form.Set("ProfileName", "Ana")
	return form
}

func TestHandleInboundEnqueuesNormalizedEvent(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewWebhookHandler(publisher, "token-abc", testWebhookURL, nil, logging.New("error"))

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, signedWebhookRequest(t, "token-abc", inboundForm()))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<Response>")

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, "SM123", event.MessageID)
	assert.Equal(t, "+5218110000001", event.From)
	assert.Equal(t, "+5218100000000", event.To)
	assert.Equal(t, "Ana", event.ProfileName)
	assert.Equal(t, "quiero 2 tacos", event.Body)
	assert.False(t, event.ReceivedAt.IsZero())
}

func TestHandleInboundRejectsBadSignature(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewWebhookHandler(publisher, "token-abc", testWebhookURL, nil, logging.New("error"))

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, signedWebhookRequest(t, "wrong-token", inboundForm()))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, publisher.events)
}

func TestHandleInboundMissingSignatureRejected(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewWebhookHandler(publisher, "token-abc", testWebhookURL, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(inboundForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleInboundEnqueueFailureReturns500(t *testing.T) {
	publisher := &capturePublisher{err: errors.New("queue down")}
	handler := NewWebhookHandler(publisher, "", testWebhookURL, nil, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(inboundForm().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleInboundMissingAddressesRejected(t *testing.T) {
	publisher := &capturePublisher{}
	handler := NewWebhookHandler(publisher, "", testWebhookURL, nil, logging.New("error"))

	form := inboundForm()
	form.Del("From")
	req := httptest.NewRequest(http.MethodPost, testWebhookURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	handler.HandleInbound(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, publisher.events)
}
