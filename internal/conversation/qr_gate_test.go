package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const issuedToken = "QR-1700000000000-a1b2c3"

func TestQRGateValidToken(t *testing.T) {
	gate := NewQRGate()
	conv := &Conversation{}

	got := gate.Check(conv, "🛡️ INICIO "+issuedToken, issuedToken)
	assert.Equal(t, ValidationSuccess, got)
	assert.False(t, conv.QRValidated, "gate must not mutate the conversation")
}

func TestQRGateStaleToken(t *testing.T) {
	gate := NewQRGate()
	got := gate.Check(&Conversation{}, "🛡️ INICIO QR-1600000000000-ffffff", issuedToken)
	assert.Equal(t, TokenInvalid, got)
}

func TestQRGateNoIssuedToken(t *testing.T) {
	gate := NewQRGate()
	got := gate.Check(&Conversation{}, "🛡️ INICIO "+issuedToken, "")
	assert.Equal(t, TokenInvalid, got)
}

func TestQRGateOrdinaryMessageFails(t *testing.T) {
	gate := NewQRGate()
	got := gate.Check(&Conversation{}, "hola, quiero ordenar", issuedToken)
	assert.Equal(t, ValidationFailed, got)
}

func TestQRGateTokenEmbeddedInProseFails(t *testing.T) {
	gate := NewQRGate()
	got := gate.Check(&Conversation{}, "mi código es 🛡️ INICIO "+issuedToken, issuedToken)
	assert.Equal(t, ValidationFailed, got)
}

func TestQRGateAlreadyValidatedPassesThrough(t *testing.T) {
	gate := NewQRGate()
	conv := &Conversation{QRValidated: true}

	got := gate.Check(conv, "🛡️ INICIO "+issuedToken, issuedToken)
	assert.Equal(t, AlreadyValidated, got)

	got = gate.Check(conv, "dos tacos por favor", issuedToken)
	assert.Equal(t, AlreadyValidated, got)
}

func TestQRGateNilConversation(t *testing.T) {
	gate := NewQRGate()
	got := gate.Check(nil, "🛡️ INICIO "+issuedToken, issuedToken)
	assert.Equal(t, ValidationSuccess, got)
}

func TestQRResultString(t *testing.T) {
	assert.Equal(t, "validation_success", ValidationSuccess.String())
	assert.Equal(t, "token_invalid", TokenInvalid.String())
}
