package conversation

import (
	"time"
)

// Conversation is one logical chat session for a phone number at a branch.
// Version is the optimistic-concurrency token: every persisted mutation
// increments it, and a stale writer gets ErrVersionConflict instead of
// silently clobbering newer state.
type Conversation struct {
	ID              string
	PhoneNumber     string
	BranchID        string
	Version         int64
	QRValidated     bool
	Language        string
	Location        string
	CustomerName    string
	LastActivity    time.Time
	LastOrderSent   OrderSnapshot
	LastOrderSentAt *time.Time
	Amenities       map[string]int
	CreatedAt       time.Time
}

// Message is a single transcript entry. Append-only, ordered by Timestamp.
type Message struct {
	ID             string
	ConversationID string
	Role           string // "user" or "assistant"
	Content        string
	Timestamp      time.Time
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// OrderLine is one accumulated order entry for a line key.
type OrderLine struct {
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	MenuItemID string  `json:"menu_item_id"`
	Notes      string  `json:"notes,omitempty"`
}

// OrderSnapshot maps line keys to their accumulated order lines. The stored
// snapshot on a conversation is the last state already communicated to staff.
type OrderSnapshot map[string]OrderLine

// LineKey builds the composite key that keeps the same product with
// different customization notes in independent accumulation buckets.
func LineKey(productName, notes string) string {
	if notes == "" {
		return productName
	}
	return productName + "||" + notes
}

// Total returns the snapshot's monetary total.
func (s OrderSnapshot) Total() float64 {
	var total float64
	for _, line := range s {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// Clone returns a deep copy so callers can mutate without aliasing the stored map.
func (s OrderSnapshot) Clone() OrderSnapshot {
	if s == nil {
		return nil
	}
	out := make(OrderSnapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ConversationID builds the stable external key for a branch+phone pair.
func ConversationID(branchID, phone string) string {
	return "wa:" + branchID + ":" + phone
}
