package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	"github.com/mesavia/restaurant-ai-platform/internal/orders"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

type fakeWriter struct {
	updates []Conversation
	deleted []string
	failUpd error
}

func (f *fakeWriter) Update(_ context.Context, conv *Conversation) error {
	if f.failUpd != nil {
		return f.failUpd
	}
	f.updates = append(f.updates, *conv)
	return nil
}

func (f *fakeWriter) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeMessenger struct {
	sent    []OutboundReply
	failErr error
}

func (f *fakeMessenger) SendReply(_ context.Context, reply OutboundReply) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.sent = append(f.sent, reply)
	return nil
}

type fakeFinalizer struct {
	created      int
	items        []orders.Item
	finalTotal   float64
	interactions int
}

func (f *fakeFinalizer) CreateOrder(_ context.Context, _, _ string) (*orders.Order, error) {
	f.created++
	return &orders.Order{ID: uuid.New()}, nil
}

func (f *fakeFinalizer) AddOrderItem(_ context.Context, _ uuid.UUID, item orders.Item) error {
	f.items = append(f.items, item)
	return nil
}

func (f *fakeFinalizer) UpdateOrder(_ context.Context, _ uuid.UUID, total float64, interactions int) error {
	f.finalTotal = total
	f.interactions = interactions
	return nil
}

func testConversation() *Conversation {
	return &Conversation{
		ID:          "wa:branch-1:+5218110000001",
		PhoneNumber: "+5218110000001",
		BranchID:    "branch-1",
		QRValidated: true,
		Language:    "es",
		Location:    "mesa 4",
	}
}

func testBranch() *catalog.Branch {
	return &catalog.Branch{
		ID:             "branch-1",
		Name:           "Taquería Centro",
		WhatsAppNumber: "+5218100000000",
		CashierPhone:   "+5218199999999",
	}
}

const orderingReply = "¡Claro! Agregué tus tacos.\n\n" +
	"Pedido completo:\n" +
	"• [ID:itm-1] Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n\n" +
	"¿Algo más?"

const processingReply = "¡Perfecto! Tu pedido está siendo procesado.\n\n" +
	"Pedido completo:\n" +
	"• [ID:itm-1] Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n" +
	"• [ID:itm-7] Agua de Horchata (BEBIDAS): $35.00 x 1 = $35.00"

const billReply = "Aquí está tu cuenta:\n" +
	"• [ID:itm-1] Tacos de Asada (TACOS): $85.00 x 2 = $170.00\n" +
	"Total: $170.00\n" +
	"Un miembro del personal te asistirá con el pago."

func historyWithAssistant(contents ...string) []Message {
	msgs := []Message{{Role: RoleUser, Content: "hola"}}
	for _, c := range contents {
		msgs = append(msgs, Message{Role: RoleAssistant, Content: c})
		msgs = append(msgs, Message{Role: RoleUser, Content: "ok"})
	}
	return msgs
}

func newTestNotifier(w *fakeWriter, m *fakeMessenger, fin OrderFinalizer) *Notifier {
	return NewNotifier(w, m, fin, logging.New("error"))
}

func TestHandleTurnNotifiesInitialOrder(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)
	conv := testConversation()

	outcome, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionPlaceOrder, "quiero 2 tacos de asada", orderingReply,
		historyWithAssistant("¡Bienvenido! ¿En qué mesa estás?"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderNotified, outcome)
	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "+5218199999999", messenger.sent[0].To)
	assert.Contains(t, messenger.sent[0].Body, "Nuevo pedido")
	assert.Contains(t, messenger.sent[0].Body, "mesa 4")
	assert.Contains(t, messenger.sent[0].Body, "2x Tacos de Asada")

	require.Len(t, writer.updates, 1)
	require.Contains(t, conv.LastOrderSent, "Tacos de Asada")
	assert.Equal(t, 2, conv.LastOrderSent["Tacos de Asada"].Quantity)
	assert.NotNil(t, conv.LastOrderSentAt)
}

func TestHandleTurnIsIdempotentOnSameReply(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)
	conv := testConversation()
	history := historyWithAssistant("¡Bienvenido! ¿En qué mesa estás?")

	_, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionPlaceOrder, "quiero 2 tacos", orderingReply, history)
	require.NoError(t, err)

	outcome, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionPlaceOrder, "quiero 2 tacos", orderingReply, history)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNone, outcome)
	assert.Len(t, messenger.sent, 1)
	assert.Len(t, writer.updates, 1)
}

func TestHandleTurnSendsOnlyIncrementalAdditions(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)
	conv := testConversation()
	conv.LastOrderSent = OrderSnapshot{
		"Tacos de Asada": {Price: 85, Quantity: 2, MenuItemID: "itm-1"},
	}

	outcome, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionConfirmOrder, "no, eso es todo", processingReply,
		historyWithAssistant("¡Bienvenido!", orderingReply))

	require.NoError(t, err)
	assert.Equal(t, OutcomeOrderNotified, outcome)
	require.Len(t, messenger.sent, 1)
	body := messenger.sent[0].Body
	assert.Contains(t, body, "Actualización de pedido")
	assert.Contains(t, body, "Agua de Horchata")
	assert.NotContains(t, body, "Tacos de Asada")
}

func TestHandleTurnSkipsTotalQuery(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)

	outcome, err := n.HandleTurn(context.Background(), testConversation(), testBranch(),
		IntentionTotalQuery, "¿cuánto llevo?", processingReply,
		historyWithAssistant("¡Bienvenido!"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, messenger.sent)
	assert.Empty(t, writer.updates)
}

func TestHandleTurnIgnoresFirstAssistantTurnListing(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)

	// A welcome message that echoes the menu must never read as an order.
	welcome := "¡Bienvenido!\n• [ID:itm-1] Tacos de Asada (TACOS): $85.00"
	history := []Message{
		{Role: RoleUser, Content: "hola"},
		{Role: RoleAssistant, Content: welcome},
		{Role: RoleUser, Content: "ok"},
	}

	outcome, err := n.HandleTurn(context.Background(), testConversation(), testBranch(),
		IntentionConfirmOrder, "no, gracias", "¡Perfecto! Tu pedido está siendo procesado.", history)

	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, messenger.sent)
}

func TestHandleTurnBillRequiresBothMarkers(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, nil)
	conv := testConversation()
	conv.LastOrderSent = OrderSnapshot{
		"Tacos de Asada": {Price: 85, Quantity: 2, MenuItemID: "itm-1"},
	}

	// Bill opening without the staff-assist phrase must not finalize.
	partial := "Aquí está tu cuenta:\nTotal: $170.00"
	outcome, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionRequestBill, "la cuenta por favor", partial,
		historyWithAssistant("¡Bienvenido!", orderingReply))

	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, writer.deleted)
}

func TestHandleTurnBillConfirmationFinalizesAndDeletes(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	finalizer := &fakeFinalizer{}
	n := newTestNotifier(writer, messenger, finalizer)
	conv := testConversation()
	conv.LastOrderSent = OrderSnapshot{
		"Tacos de Asada":             {Price: 85, Quantity: 2, MenuItemID: "itm-1"},
		LineKey("Quesadilla", "sin cebolla"): {Price: 60, Quantity: 1},
	}
	history := historyWithAssistant("¡Bienvenido!", orderingReply)

	outcome, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionRequestBill, "la cuenta por favor", billReply, history)

	require.NoError(t, err)
	assert.Equal(t, OutcomeBillNotified, outcome)

	require.Len(t, messenger.sent, 1)
	assert.Contains(t, messenger.sent[0].Body, "Cuenta solicitada")
	assert.Contains(t, messenger.sent[0].Body, "Total: $230.00")

	assert.Equal(t, 1, finalizer.created)
	// The quesadilla has no menu item id and is skipped from the record.
	require.Len(t, finalizer.items, 1)
	assert.Equal(t, "itm-1", finalizer.items[0].MenuItemID)
	assert.InDelta(t, 230.0, finalizer.finalTotal, 0.001)
	assert.Equal(t, len(history)+1, finalizer.interactions)

	assert.Equal(t, []string{conv.ID}, writer.deleted)
}

func TestHandleTurnBillWithEmptySnapshotDoesNothing(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{}
	n := newTestNotifier(writer, messenger, &fakeFinalizer{})

	outcome, err := n.HandleTurn(context.Background(), testConversation(), testBranch(),
		IntentionRequestBill, "la cuenta", billReply, historyWithAssistant("hola"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeNone, outcome)
	assert.Empty(t, messenger.sent)
	assert.Empty(t, writer.deleted)
}

func TestHandleTurnSendFailureKeepsSnapshot(t *testing.T) {
	writer := &fakeWriter{}
	messenger := &fakeMessenger{failErr: errors.New("transport down")}
	n := newTestNotifier(writer, messenger, nil)
	conv := testConversation()

	_, err := n.HandleTurn(context.Background(), conv, testBranch(),
		IntentionPlaceOrder, "quiero 2 tacos", orderingReply,
		historyWithAssistant("¡Bienvenido!"))

	require.Error(t, err)
	assert.Empty(t, conv.LastOrderSent)
	assert.Empty(t, writer.updates)
}
