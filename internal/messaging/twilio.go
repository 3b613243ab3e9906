package messaging

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// ValidateTwilioSignature validates that a request came from Twilio.
func ValidateTwilioSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}

	if err := r.ParseForm(); err != nil {
		return false
	}

	payload := buildSignaturePayload(webhookURL, r.PostForm)
	expected := computeSignature(payload, authToken)

	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload creates the payload string for signature
// verification: the full webhook URL followed by every POST parameter in
// key-sorted order, keys and values concatenated.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)

	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	return payload.String()
}

// computeSignature computes the HMAC-SHA1 signature
func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WhatsAppWebhookRequest represents an incoming Twilio WhatsApp webhook.
type WhatsAppWebhookRequest struct {
	MessageSid  string
	AccountSid  string
	From        string // customer, E.164 without channel prefix
	To          string // branch number, E.164 without channel prefix
	Body        string
	ProfileName string
}

// ParseWhatsAppWebhook parses a Twilio WhatsApp webhook request. From/To are
// normalized to bare E.164.
func ParseWhatsAppWebhook(r *http.Request) (*WhatsAppWebhookRequest, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	req := &WhatsAppWebhookRequest{
		MessageSid:  r.FormValue("MessageSid"),
		AccountSid:  r.FormValue("AccountSid"),
		From:        NormalizeE164(r.FormValue("From")),
		To:          NormalizeE164(r.FormValue("To")),
		Body:        r.FormValue("Body"),
		ProfileName: r.FormValue("ProfileName"),
	}
	if req.From == "" || req.To == "" {
		return nil, fmt.Errorf("messaging: webhook missing from/to")
	}

	return req, nil
}
