package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
)

var repoTracer = otel.Tracer("mesavia.internal.catalog.repository")

// ErrBranchNotFound is returned when a branch lookup matches nothing.
var ErrBranchNotFound = errors.New("catalog: branch not found")

// Repository reads branch and menu data from PostgreSQL. The pipeline
// treats it as read-only except for QR token rotation.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a catalog repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Branch retrieves a branch by id.
func (r *Repository) Branch(ctx context.Context, branchID string) (*Branch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog: repository not configured")
	}

	ctx, span := repoTracer.Start(ctx, "catalog.branch")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, restaurant_id, name, whatsapp_number, cashier_phone,
		       qr_token, default_language
		FROM branches
		WHERE id = $1
	`, branchID)
	return scanBranch(row)
}

// BranchByNumber retrieves the branch owning a WhatsApp business number.
// Inbound webhooks resolve their branch through this lookup.
func (r *Repository) BranchByNumber(ctx context.Context, whatsappNumber string) (*Branch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog: repository not configured")
	}

	ctx, span := repoTracer.Start(ctx, "catalog.branch_by_number")
	defer span.End()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, restaurant_id, name, whatsapp_number, cashier_phone,
		       qr_token, default_language
		FROM branches
		WHERE whatsapp_number = $1
	`, whatsappNumber)
	return scanBranch(row)
}

// ActiveMenu lists the branch's active menu items ordered by category then name.
func (r *Repository) ActiveMenu(ctx context.Context, branchID string) ([]MenuItem, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("catalog: repository not configured")
	}

	ctx, span := repoTracer.Start(ctx, "catalog.active_menu")
	defer span.End()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, branch_id, name, category, price, recommended,
		       COALESCE(image_url, ''), active
		FROM menu_items
		WHERE branch_id = $1 AND active = true
		ORDER BY category, name
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to list menu: %w", err)
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var item MenuItem
		if err := rows.Scan(&item.ID, &item.BranchID, &item.Name, &item.Category,
			&item.Price, &item.Recommended, &item.ImageURL, &item.Active); err != nil {
			return nil, fmt.Errorf("catalog: failed to scan menu item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RotateQRToken issues a fresh QR token for the branch and returns it.
// Sessions validated with the previous token stay validated; only new scans
// are checked against the new token.
func (r *Repository) RotateQRToken(ctx context.Context, branchID string) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("catalog: repository not configured")
	}

	ctx, span := repoTracer.Start(ctx, "catalog.rotate_qr_token")
	defer span.End()

	token := NewQRToken()
	result, err := r.db.ExecContext(ctx,
		`UPDATE branches SET qr_token = $1 WHERE id = $2`, token, branchID)
	if err != nil {
		return "", fmt.Errorf("catalog: failed to rotate qr token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("catalog: failed to read rotate result: %w", err)
	}
	if affected == 0 {
		return "", ErrBranchNotFound
	}
	return token, nil
}

func scanBranch(row *sql.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.RestaurantID, &b.Name, &b.WhatsAppNumber,
		&b.CashierPhone, &b.QRToken, &b.DefaultLanguage)
	if err == sql.ErrNoRows {
		return nil, ErrBranchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to scan branch: %w", err)
	}
	return &b, nil
}
