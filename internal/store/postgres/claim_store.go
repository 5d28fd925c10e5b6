package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Ensure ClaimStore implements store.ClaimStore.
var _ store.ClaimStore = (*ClaimStore)(nil)

// ClaimStore implements store.ClaimStore for PostgreSQL.
type ClaimStore struct {
	db DB
}

// NewClaimStore creates a new ClaimStore instance.
func NewClaimStore(db DB) *ClaimStore {
	return &ClaimStore{db: db}
}

const claimColumns = `
	id, receipt_id, user_id, delivery_email, status,
	processed_by, processed_at, delivery_tracking_id, created_at`

// Create inserts a new pending claim. Each receipt carries at most one claim;
// a second insert for the same receipt fails with store.ErrDuplicate.
func (s *ClaimStore) Create(ctx context.Context, claim *types.BonusClaim) error {
	query := `
		INSERT INTO bonus_claims (receipt_id, user_id, delivery_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := s.db.QueryRow(ctx, query,
		claim.ReceiptID,
		claim.UserID,
		claim.DeliveryEmail,
		claim.Status,
		claim.CreatedAt,
	).Scan(&claim.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a claim by its ID.
func (s *ClaimStore) GetByID(ctx context.Context, id string) (*types.BonusClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM bonus_claims WHERE id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, id))
}

// GetByReceiptID retrieves the claim backing a receipt.
func (s *ClaimStore) GetByReceiptID(ctx context.Context, receiptID string) (*types.BonusClaim, error) {
	query := `SELECT ` + claimColumns + ` FROM bonus_claims WHERE receipt_id = $1`
	return s.scanOne(s.db.QueryRow(ctx, query, receiptID))
}

// Approve flips a pending claim to APPROVED and inserts its entitlements in a
// single transaction. The UPDATE joins against the receipt to guarantee the
// claim is only approvable while the receipt is VERIFIED.
func (s *ClaimStore) Approve(ctx context.Context, claimID, processedBy string, entitlements []*types.Entitlement) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE bonus_claims c
		SET status = $1, processed_by = $2, processed_at = NOW()
		FROM receipts r
		WHERE c.id = $3
		  AND c.status = $4
		  AND r.id = c.receipt_id
		  AND r.status = $5`

	tag, err := tx.Exec(ctx, query,
		types.ClaimStatusApproved, processedBy, claimID,
		types.ClaimStatusPending, types.ReceiptStatusVerified)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}

	entitlementQuery := `
		INSERT INTO entitlements (claim_id, asset_slug, access_token, expires_at, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for _, e := range entitlements {
		err := tx.QueryRow(ctx, entitlementQuery,
			e.ClaimID, e.AssetSlug, e.AccessToken, e.ExpiresAt, e.IssuedAt,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to insert entitlement for %s: %w", e.AssetSlug, err)
		}
	}

	return tx.Commit(ctx)
}

// Reject flips a pending claim to REJECTED.
func (s *ClaimStore) Reject(ctx context.Context, claimID, processedBy string) error {
	query := `
		UPDATE bonus_claims
		SET status = $1, processed_by = $2, processed_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := s.db.Exec(ctx, query,
		types.ClaimStatusRejected, processedBy, claimID, types.ClaimStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

// SetDeliveryTracking records the notification reference for the delivery email.
func (s *ClaimStore) SetDeliveryTracking(ctx context.Context, claimID, trackingID string) error {
	query := `UPDATE bonus_claims SET delivery_tracking_id = $1 WHERE id = $2`

	tag, err := s.db.Exec(ctx, query, trackingID, claimID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetEntitlementByToken looks up an issued entitlement by its access token.
func (s *ClaimStore) GetEntitlementByToken(ctx context.Context, token string) (*types.Entitlement, error) {
	query := `
		SELECT id, claim_id, asset_slug, access_token, expires_at, issued_at
		FROM entitlements
		WHERE access_token = $1`

	e := &types.Entitlement{}
	err := s.db.QueryRow(ctx, query, token).Scan(
		&e.ID, &e.ClaimID, &e.AssetSlug, &e.AccessToken, &e.ExpiresAt, &e.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *ClaimStore) scanOne(row pgx.Row) (*types.BonusClaim, error) {
	c := &types.BonusClaim{}
	err := row.Scan(
		&c.ID,
		&c.ReceiptID,
		&c.UserID,
		&c.DeliveryEmail,
		&c.Status,
		&c.ProcessedBy,
		&c.ProcessedAt,
		&c.DeliveryTrackingID,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}
