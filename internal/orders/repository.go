package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists finalized orders. Only the bill-confirmation path
// writes here; everything before that lives on the conversation snapshot.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository backed by pgx.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &Repository{pool: pool}
}

// CreateOrder opens an order shell for a branch and customer.
func (r *Repository) CreateOrder(ctx context.Context, branchID, customerPhone string) (*Order, error) {
	order := &Order{
		ID:            uuid.New(),
		BranchID:      branchID,
		CustomerPhone: customerPhone,
		Status:        StatusOpen,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, branch_id, customer_phone, total, interactions, status, created_at)
		VALUES ($1, $2, $3, 0, 0, $4, $5)
	`, order.ID, order.BranchID, order.CustomerPhone, order.Status, order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("orders: failed to create order: %w", err)
	}
	return order, nil
}

// AddOrderItem appends one line to an order.
func (r *Repository) AddOrderItem(ctx context.Context, orderID uuid.UUID, item Item) error {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO order_items (id, order_id, menu_item_id, name, quantity, price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), orderID, item.MenuItemID, item.Name, item.Quantity, item.Price, item.Notes)
	if err != nil {
		return fmt.Errorf("orders: failed to add item: %w", err)
	}
	return nil
}

// UpdateOrder finalizes the order totals and interaction count.
func (r *Repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, total float64, interactions int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET total = $1, interactions = $2, status = $3
		WHERE id = $4
	`, total, interactions, StatusFinalized, orderID)
	if err != nil {
		return fmt.Errorf("orders: failed to update order: %w", err)
	}
	return nil
}
