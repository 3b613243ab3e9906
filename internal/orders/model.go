package orders

import (
	"time"

	"github.com/google/uuid"
)

// Order is a finalized order created when a customer confirms their bill.
type Order struct {
	ID            uuid.UUID
	BranchID      string
	CustomerPhone string
	Total         float64
	Interactions  int
	Status        string
	CreatedAt     time.Time
}

// Item is one line of a finalized order.
type Item struct {
	MenuItemID string
	Name       string
	Quantity   int
	Price      float64
	Notes      string
}

const (
	StatusOpen      = "open"
	StatusFinalized = "finalized"
)
