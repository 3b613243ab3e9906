package conversation

import (
	"regexp"
	"strings"
)

// QRResult is the outcome of running a message through the QR gate.
type QRResult int

const (
	// ValidationFailed means the message is not a start marker at all. The
	// gate is a hard gate: no AI call is made for an unvalidated session.
	ValidationFailed QRResult = iota
	// TokenInvalid means the message looked like a start marker but its
	// token does not match the branch's currently issued token.
	TokenInvalid
	// ValidationSuccess means the session is now validated. The triggering
	// message is consumed entirely by the gate.
	ValidationSuccess
	// AlreadyValidated means the conversation passed the gate earlier;
	// the message flows on to the ordering logic as ordinary text.
	AlreadyValidated
)

func (r QRResult) String() string {
	switch r {
	case ValidationFailed:
		return "validation_failed"
	case TokenInvalid:
		return "token_invalid"
	case ValidationSuccess:
		return "validation_success"
	case AlreadyValidated:
		return "already_validated"
	}
	return "unknown"
}

// Start marker: a sentinel prefix followed by the structured token printed
// inside the table QR code.
var startMarkerPattern = regexp.MustCompile(`^🛡️\s*INICIO\s+(QR-\d+-[0-9a-fA-F]+)\s*$`)

// QRGate is the one-shot physical-presence check that runs before any
// ordering logic.
type QRGate struct{}

// NewQRGate returns the gate.
func NewQRGate() *QRGate {
	return &QRGate{}
}

// Check evaluates a message against the gate. issuedToken is the branch's
// currently issued QR token from the catalog. Check never mutates the
// conversation; on ValidationSuccess the caller sets QRValidated and
// persists.
func (g *QRGate) Check(conv *Conversation, message, issuedToken string) QRResult {
	if conv != nil && conv.QRValidated {
		return AlreadyValidated
	}

	m := startMarkerPattern.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return ValidationFailed
	}

	if issuedToken == "" || m[1] != issuedToken {
		return TokenInvalid
	}

	return ValidationSuccess
}
