package store

import (
	"context"

	"github.com/bookbonus/bonus-backend/types"
)

// ReceiptStore handles receipt persistence. Receipt rows are created once at
// submission and only their status and review fields mutate afterwards.
type ReceiptStore interface {
	Create(ctx context.Context, receipt *types.Receipt) error
	GetByID(ctx context.Context, id string) (*types.Receipt, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (*types.Receipt, error)
	// TransitionStatus moves a receipt from one status to another. The
	// transition applies only if the receipt is still in the expected current
	// status; ErrConflict is returned otherwise.
	TransitionStatus(ctx context.Context, id string, from, to types.ReceiptStatus, verifiedBy *string, notes string) error
	ListByStatus(ctx context.Context, status types.ReceiptStatus, limit, offset int) ([]*types.Receipt, error)
	// Delete removes a receipt row. Used to roll back a partially completed
	// submission so the fingerprint does not stay claimed by a dead row.
	Delete(ctx context.Context, id string) error
}

// VerificationStore handles write-once verification attempt records.
type VerificationStore interface {
	Create(ctx context.Context, meta *types.VerificationMetadata) error
	ListByReceipt(ctx context.Context, receiptID string) ([]*types.VerificationMetadata, error)
	// NextAttempt returns the attempt number the next verification run for
	// the receipt should carry, starting at 1.
	NextAttempt(ctx context.Context, receiptID string) (int, error)
}

// ClaimStore handles bonus claims and the entitlements minted when a claim
// is approved.
type ClaimStore interface {
	Create(ctx context.Context, claim *types.BonusClaim) error
	GetByID(ctx context.Context, id string) (*types.BonusClaim, error)
	GetByReceiptID(ctx context.Context, receiptID string) (*types.BonusClaim, error)
	// Approve marks the claim approved and inserts its entitlements in one
	// transaction. Fails with ErrConflict if the claim is not pending or the
	// backing receipt is not verified.
	Approve(ctx context.Context, claimID, processedBy string, entitlements []*types.Entitlement) error
	Reject(ctx context.Context, claimID, processedBy string) error
	SetDeliveryTracking(ctx context.Context, claimID, trackingID string) error
	GetEntitlementByToken(ctx context.Context, token string) (*types.Entitlement, error)
}
