package messaging

import "strings"

// NormalizeE164 ensures the value begins with + and only contains digits
// afterward. A "whatsapp:" channel prefix is stripped first.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "whatsapp:")
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// WhatsAppAddress renders a phone number in the channel-prefixed form the
// Twilio WhatsApp API expects.
func WhatsAppAddress(value string) string {
	normalized := NormalizeE164(value)
	if normalized == "" {
		return ""
	}
	return "whatsapp:" + normalized
}

func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
