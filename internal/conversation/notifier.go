package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/mesavia/restaurant-ai-platform/internal/catalog"
	"github.com/mesavia/restaurant-ai-platform/internal/orders"
	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

var notifierTracer = otel.Tracer("mesavia.internal.conversation.notifier")

// OrderFinalizer creates the finalized order record once a bill is
// confirmed. Satisfied by orders.Repository.
type OrderFinalizer interface {
	CreateOrder(ctx context.Context, branchID, customerPhone string) (*orders.Order, error)
	AddOrderItem(ctx context.Context, orderID uuid.UUID, item orders.Item) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, total float64, interactions int) error
}

// NotifyOutcome reports what a turn produced, for metrics and tests.
type NotifyOutcome string

const (
	OutcomeNone          NotifyOutcome = "none"
	OutcomeOrderNotified NotifyOutcome = "order_notified"
	OutcomeBillNotified  NotifyOutcome = "bill_notified"
)

// conversationWriter is the slice of Store the orchestrator needs.
type conversationWriter interface {
	Update(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, id string) error
}

// Notifier decides when kitchen/cashier staff hear about an order and
// composes the message they receive. It is the only component that advances
// the conversation's staff-facing snapshot, which is what makes
// re-processing the same AI reply idempotent: the second pass diffs against
// the already-advanced snapshot and collapses to empty.
type Notifier struct {
	store     conversationWriter
	messenger ReplyMessenger
	finalizer OrderFinalizer
	logger    *logging.Logger
}

// NewNotifier wires the orchestrator.
func NewNotifier(store conversationWriter, messenger ReplyMessenger, finalizer OrderFinalizer, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Notifier{store: store, messenger: messenger, finalizer: finalizer, logger: logger}
}

// HandleTurn runs after each AI reply. history is the transcript up to and
// excluding aiReply. An OutcomeBillNotified result means the conversation
// was deleted, so callers must stop persisting against it.
func (n *Notifier) HandleTurn(
	ctx context.Context,
	conv *Conversation,
	branch *catalog.Branch,
	intention Intention,
	userMessage, aiReply string,
	history []Message,
) (NotifyOutcome, error) {
	if conv == nil {
		return OutcomeNone, nil
	}
	// Informational turns never reach the orchestrator's triggers.
	if intention == IntentionTotalQuery {
		return OutcomeNone, nil
	}

	ctx, span := notifierTracer.Start(ctx, "conversation.notifier.handle_turn")
	defer span.End()

	folded := strings.ToLower(aiReply)

	if n.isBillConfirmation(intention, userMessage, folded) {
		return n.confirmBill(ctx, conv, branch, history)
	}

	if containsAny(folded, processingMarkers) {
		return n.notifyOrder(ctx, conv, branch, findOrderListing(history, aiReply))
	}

	if containsAny(folded, anythingElseMarkers) && n.isOrderingTurn(intention, userMessage) {
		return n.notifyOrder(ctx, conv, branch, findOrderListing(history, aiReply))
	}

	return OutcomeNone, nil
}

// isBillConfirmation requires the customer to have asked for the bill or
// payment AND the reply to carry both the bill-opening and staff-assist
// phrases. Both phrases are required so a running-total answer that merely
// mentions the bill never finalizes the order.
func (n *Notifier) isBillConfirmation(intention Intention, userMessage, foldedReply string) bool {
	userAsked := intention == IntentionRequestBill ||
		intention == IntentionPaymentMethod ||
		containsAny(strings.ToLower(userMessage), billKeywords)
	if !userAsked {
		return false
	}
	return containsAny(foldedReply, billOpeningMarkers) &&
		containsAny(foldedReply, staffAssistMarkers)
}

// isOrderingTurn limits the product-update trigger to turns that are
// actually ordering: a new or amended order, or a closing confirmation.
func (n *Notifier) isOrderingTurn(intention Intention, userMessage string) bool {
	return intention == IntentionPlaceOrder ||
		intention == IntentionConfirmOrder ||
		isConfirmation(strings.ToLower(userMessage))
}

// notifyOrder extracts from listing, diffs against the stored snapshot and
// dispatches the incremental additions. An empty diff means "already told
// staff" and is not an error.
func (n *Notifier) notifyOrder(ctx context.Context, conv *Conversation, branch *catalog.Branch, listing string) (NotifyOutcome, error) {
	if listing == "" {
		return OutcomeNone, nil
	}

	current := ExtractOrder(listing)
	if len(current) == 0 {
		return OutcomeNone, nil
	}

	changes := Diff(conv.LastOrderSent, current)
	if len(changes) == 0 {
		n.logger.Debug("order unchanged since last staff notification",
			"conversation_id", conv.ID)
		return OutcomeNone, nil
	}

	initial := len(conv.LastOrderSent) == 0
	body := composeOrderNotification(conv, changes, initial)
	if err := n.dispatchStaff(ctx, conv, branch, body); err != nil {
		return OutcomeNone, err
	}

	// Advance the snapshot only after a successful dispatch so a failed
	// send is retried with the same diff.
	merged := conv.LastOrderSent.Clone()
	if merged == nil {
		merged = OrderSnapshot{}
	}
	for key, line := range current {
		merged[key] = line
	}
	now := time.Now().UTC()
	conv.LastOrderSent = merged
	conv.LastOrderSentAt = &now
	if err := n.store.Update(ctx, conv); err != nil {
		return OutcomeNone, fmt.Errorf("conversation: failed to persist snapshot: %w", err)
	}

	return OutcomeOrderNotified, nil
}

// confirmBill uses the stored snapshot, never a re-extraction, as the
// authoritative order. It alerts staff, creates the finalized order record
// and deletes the conversation to free the session for a new visit.
func (n *Notifier) confirmBill(ctx context.Context, conv *Conversation, branch *catalog.Branch, history []Message) (NotifyOutcome, error) {
	snapshot := conv.LastOrderSent
	if len(snapshot) == 0 {
		n.logger.Warn("bill confirmed with empty snapshot, nothing to finalize",
			"conversation_id", conv.ID)
		return OutcomeNone, nil
	}

	body := composeBillNotification(conv, snapshot)
	if err := n.dispatchStaff(ctx, conv, branch, body); err != nil {
		return OutcomeNone, err
	}

	if n.finalizer != nil {
		if err := n.finalizeOrder(ctx, conv, snapshot, len(history)+1); err != nil {
			return OutcomeNone, err
		}
	}

	if err := n.store.Delete(ctx, conv.ID); err != nil {
		return OutcomeNone, fmt.Errorf("conversation: failed to close session: %w", err)
	}

	return OutcomeBillNotified, nil
}

func (n *Notifier) finalizeOrder(ctx context.Context, conv *Conversation, snapshot OrderSnapshot, interactions int) error {
	order, err := n.finalizer.CreateOrder(ctx, conv.BranchID, conv.PhoneNumber)
	if err != nil {
		return fmt.Errorf("conversation: failed to create finalized order: %w", err)
	}

	for _, key := range sortedKeys(snapshot) {
		line := snapshot[key]
		if line.MenuItemID == "" {
			n.logger.Warn("skipping order line without menu item id",
				"conversation_id", conv.ID, "line", key)
			continue
		}
		item := orders.Item{
			MenuItemID: line.MenuItemID,
			Name:       productName(key),
			Quantity:   line.Quantity,
			Price:      line.Price,
			Notes:      line.Notes,
		}
		if err := n.finalizer.AddOrderItem(ctx, order.ID, item); err != nil {
			return fmt.Errorf("conversation: failed to add order item: %w", err)
		}
	}

	if err := n.finalizer.UpdateOrder(ctx, order.ID, snapshot.Total(), interactions); err != nil {
		return fmt.Errorf("conversation: failed to finalize order: %w", err)
	}
	return nil
}

func (n *Notifier) dispatchStaff(ctx context.Context, conv *Conversation, branch *catalog.Branch, body string) error {
	if n.messenger == nil || branch == nil || branch.CashierPhone == "" {
		n.logger.Warn("staff notification dropped: no cashier destination",
			"conversation_id", conv.ID)
		return nil
	}
	return n.messenger.SendReply(ctx, OutboundReply{
		ConversationID: conv.ID,
		To:             branch.CashierPhone,
		From:           branch.WhatsAppNumber,
		Body:           body,
	})
}

// findOrderListing locates the most recent assistant message that lists
// order lines. The current reply is the primary candidate; the fallback
// search through history skips the very first assistant turn so a welcome
// message echoing the menu never reads as an order.
func findOrderListing(history []Message, currentReply string) string {
	if len(ExtractOrder(currentReply)) > 0 {
		return currentReply
	}

	firstAssistantIdx := -1
	for i, msg := range history {
		if msg.Role == RoleAssistant {
			firstAssistantIdx = i
			break
		}
	}

	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != RoleAssistant || i == firstAssistantIdx {
			continue
		}
		if len(ExtractOrder(history[i].Content)) > 0 {
			return history[i].Content
		}
	}
	return ""
}

func composeOrderNotification(conv *Conversation, changes OrderSnapshot, initial bool) string {
	var b strings.Builder
	if initial {
		b.WriteString("🔔 Nuevo pedido")
	} else {
		b.WriteString("🔄 Actualización de pedido")
	}
	if conv.Location != "" {
		fmt.Fprintf(&b, " — %s", conv.Location)
	}
	fmt.Fprintf(&b, " (%s)\n", conv.PhoneNumber)

	for _, key := range sortedKeys(changes) {
		line := changes[key]
		fmt.Fprintf(&b, "• %dx %s — $%.2f c/u", line.Quantity, productName(key), line.Price)
		if line.Notes != "" {
			fmt.Fprintf(&b, " [%s]", line.Notes)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Subtotal de esta actualización: $%.2f", changes.Total())
	return b.String()
}

func composeBillNotification(conv *Conversation, snapshot OrderSnapshot) string {
	var b strings.Builder
	b.WriteString("💵 Cuenta solicitada")
	if conv.Location != "" {
		fmt.Fprintf(&b, " — %s", conv.Location)
	}
	fmt.Fprintf(&b, " (%s)\n", conv.PhoneNumber)

	for _, key := range sortedKeys(snapshot) {
		line := snapshot[key]
		fmt.Fprintf(&b, "• %dx %s — $%.2f c/u", line.Quantity, productName(key), line.Price)
		if line.Notes != "" {
			fmt.Fprintf(&b, " [%s]", line.Notes)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Total: $%.2f", snapshot.Total())
	return b.String()
}

func sortedKeys(snapshot OrderSnapshot) []string {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func productName(lineKey string) string {
	name, _, _ := strings.Cut(lineKey, "||")
	return name
}
