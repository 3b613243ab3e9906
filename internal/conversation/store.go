package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var storeTracer = otel.Tracer("mesavia.internal.conversation.store")

// ErrVersionConflict is returned when a write observed a stale version.
// The caller must reload and retry (or abort) rather than overwrite.
var ErrVersionConflict = errors.New("conversation: version conflict")

// ErrUnvalidatedSnapshot guards the invariant that an unvalidated
// conversation can never hold order lines sent to staff.
var ErrUnvalidatedSnapshot = errors.New("conversation: snapshot not allowed before qr validation")

// Store persists conversations and their transcripts to PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a conversation store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Get retrieves a conversation by its external id. Returns nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.get")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, phone_number, branch_id, version, qr_validated, language,
		       location, customer_name, last_activity, last_order_sent,
		       last_order_sent_at, amenities, created_at
		FROM conversations
		WHERE id = $1
	`, id)
	return scanConversation(row)
}

// GetByPhone retrieves the most recently active conversation for a phone
// number, optionally scoped to a branch. Returns nil when none exists.
func (s *Store) GetByPhone(ctx context.Context, phone, branchID string) (*Conversation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.get_by_phone")
	defer span.End()

	query := `
		SELECT id, phone_number, branch_id, version, qr_validated, language,
		       location, customer_name, last_activity, last_order_sent,
		       last_order_sent_at, amenities, created_at
		FROM conversations
		WHERE phone_number = $1`
	args := []any{phone}
	if branchID != "" {
		query += ` AND branch_id = $2`
		args = append(args, branchID)
	}
	query += ` ORDER BY last_activity DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanConversation(row)
}

// Create inserts a new conversation at version 1.
func (s *Store) Create(ctx context.Context, conv *Conversation) error {
	if s == nil || s.db == nil {
		return errors.New("conversation: store not configured")
	}
	if conv == nil || conv.ID == "" {
		return errors.New("conversation: id required")
	}
	if !conv.QRValidated && len(conv.LastOrderSent) > 0 {
		return ErrUnvalidatedSnapshot
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.create")
	defer span.End()

	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.LastActivity.IsZero() {
		conv.LastActivity = now
	}
	conv.Version = 1

	snapshot, amenities, err := marshalJSONFields(conv)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (
			id, phone_number, branch_id, version, qr_validated, language,
			location, customer_name, last_activity, last_order_sent,
			last_order_sent_at, amenities, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, conv.ID, conv.PhoneNumber, conv.BranchID, conv.Version, conv.QRValidated,
		conv.Language, conv.Location, conv.CustomerName, conv.LastActivity,
		snapshot, conv.LastOrderSentAt, amenities, conv.CreatedAt)
	if err != nil {
		return fmt.Errorf("conversation: failed to create: %w", err)
	}
	return nil
}

// Update persists a mutation using the version as a compare-and-swap token.
// A stale version yields ErrVersionConflict; on success the in-memory
// version is advanced to match the stored row.
func (s *Store) Update(ctx context.Context, conv *Conversation) error {
	if s == nil || s.db == nil {
		return errors.New("conversation: store not configured")
	}
	if conv == nil || conv.ID == "" {
		return errors.New("conversation: id required")
	}
	if !conv.QRValidated && len(conv.LastOrderSent) > 0 {
		return ErrUnvalidatedSnapshot
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.update")
	defer span.End()

	snapshot, amenities, err := marshalJSONFields(conv)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE conversations SET
			phone_number = $1, qr_validated = $2, language = $3, location = $4,
			customer_name = $5, last_activity = $6, last_order_sent = $7,
			last_order_sent_at = $8, amenities = $9, version = version + 1
		WHERE id = $10 AND version = $11
	`, conv.PhoneNumber, conv.QRValidated, conv.Language, conv.Location,
		conv.CustomerName, conv.LastActivity, snapshot, conv.LastOrderSentAt,
		amenities, conv.ID, conv.Version)
	if err != nil {
		return fmt.Errorf("conversation: failed to update: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("conversation: failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	conv.Version++
	return nil
}

// Delete removes a conversation; its messages cascade at the database level.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("conversation: store not configured")
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.delete")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("conversation: failed to delete: %w", err)
	}
	return nil
}

// AppendMessage appends one transcript entry. Append-only: entries are
// never mutated or reordered after insertion.
func (s *Store) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	if s == nil || s.db == nil {
		return errors.New("conversation: store not configured")
	}
	if conversationID == "" {
		return errors.New("conversation: conversationID required")
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.append_message")
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New(), conversationID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("conversation: failed to append message: %w", err)
	}
	return nil
}

// Messages retrieves the limit most recent transcript entries, returned in
// ascending timestamp order. limit <= 0 returns the full transcript. The
// query walks the transcript newest-first so the limit bounds the recent
// window, not the conversation's opening turns.
func (s *Store) Messages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.messages")
	defer span.End()

	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC`
	args := []any{conversationID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("conversation: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteIdleBefore removes every conversation whose last activity is older
// than cutoff and returns the count removed for observability.
func (s *Store) DeleteIdleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("conversation: store not configured")
	}

	ctx, span := storeTracer.Start(ctx, "conversation.store.delete_idle")
	defer span.End()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE last_activity < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("conversation: failed to sweep idle conversations: %w", err)
	}
	return result.RowsAffected()
}

func marshalJSONFields(conv *Conversation) ([]byte, []byte, error) {
	snapshotMap := conv.LastOrderSent
	if snapshotMap == nil {
		snapshotMap = OrderSnapshot{}
	}
	snapshot, err := json.Marshal(snapshotMap)
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: marshal snapshot: %w", err)
	}

	amenitiesMap := conv.Amenities
	if amenitiesMap == nil {
		amenitiesMap = map[string]int{}
	}
	amenities, err := json.Marshal(amenitiesMap)
	if err != nil {
		return nil, nil, fmt.Errorf("conversation: marshal amenities: %w", err)
	}
	return snapshot, amenities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var conv Conversation
	var snapshot, amenities []byte
	var lastOrderSentAt sql.NullTime

	err := row.Scan(
		&conv.ID, &conv.PhoneNumber, &conv.BranchID, &conv.Version,
		&conv.QRValidated, &conv.Language, &conv.Location, &conv.CustomerName,
		&conv.LastActivity, &snapshot, &lastOrderSentAt, &amenities, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to scan: %w", err)
	}

	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &conv.LastOrderSent); err != nil {
			return nil, fmt.Errorf("conversation: unmarshal snapshot: %w", err)
		}
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &conv.Amenities); err != nil {
			return nil, fmt.Errorf("conversation: unmarshal amenities: %w", err)
		}
	}
	if lastOrderSentAt.Valid {
		t := lastOrderSentAt.Time
		conv.LastOrderSentAt = &t
	}
	return &conv, nil
}
