package postgres

import (
	"context"
	"errors"

	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ensure ReceiptStore implements store.ReceiptStore.
var _ store.ReceiptStore = (*ReceiptStore)(nil)

// ReceiptStore implements store.ReceiptStore for PostgreSQL.
type ReceiptStore struct {
	db DB
}

// NewReceiptStore creates a new ReceiptStore instance.
func NewReceiptStore(db DB) *ReceiptStore {
	return &ReceiptStore{db: db}
}

const receiptColumns = `
	id, fingerprint, user_id, retailer, order_number, format, purchase_date,
	storage_key, mime_type, file_size, status, source_ip, user_agent,
	submitted_at, verified_at, verified_by, notes`

// Create inserts a new receipt row. A fingerprint collision surfaces as
// store.ErrDuplicate so callers can distinguish resubmissions from failures.
func (s *ReceiptStore) Create(ctx context.Context, receipt *types.Receipt) error {
	query := `
		INSERT INTO receipts (
			fingerprint, user_id, retailer, order_number, format, purchase_date,
			storage_key, mime_type, file_size, status, source_ip, user_agent, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	err := s.db.QueryRow(ctx, query,
		receipt.Fingerprint,
		receipt.UserID,
		receipt.Retailer,
		receipt.OrderNumber,
		receipt.Format,
		receipt.PurchaseDate,
		receipt.StorageKey,
		receipt.MimeType,
		receipt.FileSize,
		receipt.Status,
		receipt.SourceIP,
		receipt.UserAgent,
		receipt.SubmittedAt,
	).Scan(&receipt.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a receipt by its ID.
func (s *ReceiptStore) GetByID(ctx context.Context, id string) (*types.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, id))
}

// GetByFingerprint retrieves a receipt by its content fingerprint.
func (s *ReceiptStore) GetByFingerprint(ctx context.Context, fingerprint string) (*types.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE fingerprint = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, fingerprint))
}

// TransitionStatus applies a guarded status transition. The WHERE clause pins
// the current status so a concurrent transition makes this one a no-op, which
// is reported as store.ErrConflict.
func (s *ReceiptStore) TransitionStatus(ctx context.Context, id string, from, to types.ReceiptStatus, verifiedBy *string, notes string) error {
	query := `
		UPDATE receipts
		SET status = $1, verified_at = NOW(), verified_by = $2, notes = NULLIF($3, '')
		WHERE id = $4 AND status = $5`

	tag, err := s.db.Exec(ctx, query, to, verifiedBy, notes, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the receipt is gone or it already left the expected status.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

// ListByStatus returns receipts in the given status, newest first.
func (s *ReceiptStore) ListByStatus(ctx context.Context, status types.ReceiptStatus, limit, offset int) ([]*types.Receipt, error) {
	query := `SELECT ` + receiptColumns + `
		FROM receipts
		WHERE status = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*types.Receipt
	for rows.Next() {
		r, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// Delete removes a receipt row by ID.
func (s *ReceiptStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *ReceiptStore) scanOne(row pgx.Row) (*types.Receipt, error) {
	r := &types.Receipt{}
	err := row.Scan(
		&r.ID,
		&r.Fingerprint,
		&r.UserID,
		&r.Retailer,
		&r.OrderNumber,
		&r.Format,
		&r.PurchaseDate,
		&r.StorageKey,
		&r.MimeType,
		&r.FileSize,
		&r.Status,
		&r.SourceIP,
		&r.UserAgent,
		&r.SubmittedAt,
		&r.VerifiedAt,
		&r.VerifiedBy,
		&r.Notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}
