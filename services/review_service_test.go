package services

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReviewService(t *testing.T) (*ReviewService, *memReceiptStore, *fakeClaimStore) {
	t.Helper()
	receipts := newMemReceiptStore()
	claims := newFakeClaimStore()
	fs := storage.NewLocalFileStorage(t.TempDir())
	assets := testAssets(t, fs)
	entitlements := NewEntitlementService(claims, fs, testSigningKey, 24*time.Hour, assets)
	fulfillment := NewFulfillmentService(claims, entitlements, newTestEmailService(), assets)
	return NewReviewService(receipts, fulfillment), receipts, claims
}

func seedPendingReceipt(t *testing.T, receipts *memReceiptStore, claims *fakeClaimStore) *types.Receipt {
	t.Helper()
	receipt := &types.Receipt{
		Fingerprint: "fp-review",
		UserID:      "user-1",
		Retailer:    "Amazon",
		Status:      types.ReceiptStatusPending,
		SubmittedAt: time.Now(),
	}
	require.NoError(t, receipts.Create(context.Background(), receipt))
	require.NoError(t, claims.Create(context.Background(), &types.BonusClaim{
		ReceiptID:     receipt.ID,
		UserID:        "user-1",
		DeliveryEmail: "reader@example.com",
		Status:        types.ClaimStatusPending,
	}))
	return receipt
}

func TestReviewService_Approve(t *testing.T) {
	svc, receipts, claims := newTestReviewService(t)
	receipt := seedPendingReceipt(t, receipts, claims)

	updated, err := svc.Review(context.Background(), receipt.ID, &types.ReviewRequest{
		Action:     types.ReviewActionApprove,
		ReviewerID: "reviewer-1",
		Notes:      "checked against order history",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusVerified, updated.Status)
	require.NotNil(t, updated.VerifiedBy)
	assert.Equal(t, "reviewer-1", *updated.VerifiedBy)

	claim, err := claims.GetByReceiptID(context.Background(), receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusApproved, claim.Status)
	assert.NotEmpty(t, claims.entitlements)
}

func TestReviewService_Reject(t *testing.T) {
	svc, receipts, claims := newTestReviewService(t)
	receipt := seedPendingReceipt(t, receipts, claims)

	updated, err := svc.Review(context.Background(), receipt.ID, &types.ReviewRequest{
		Action:     types.ReviewActionReject,
		ReviewerID: "reviewer-1",
		Notes:      "price edited in image",
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusRejected, updated.Status)

	claim, err := claims.GetByReceiptID(context.Background(), receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ClaimStatusRejected, claim.Status)
	assert.Empty(t, claims.entitlements)
}

func TestReviewService_TerminalReceiptRejectsVerdict(t *testing.T) {
	svc, receipts, claims := newTestReviewService(t)
	receipt := seedPendingReceipt(t, receipts, claims)

	_, err := svc.Review(context.Background(), receipt.ID, &types.ReviewRequest{
		Action: types.ReviewActionReject, ReviewerID: "reviewer-1",
	})
	require.NoError(t, err)

	// A second verdict, in either direction, must fail.
	for _, action := range []types.ReviewAction{types.ReviewActionApprove, types.ReviewActionReject} {
		_, err := svc.Review(context.Background(), receipt.ID, &types.ReviewRequest{
			Action: action, ReviewerID: "reviewer-2",
		})
		requireAppErrorType(t, err, apperrors.InvalidTransitionError)
	}
}

func TestReviewService_UnknownAction(t *testing.T) {
	svc, receipts, claims := newTestReviewService(t)
	receipt := seedPendingReceipt(t, receipts, claims)

	_, err := svc.Review(context.Background(), receipt.ID, &types.ReviewRequest{
		Action: "escalate", ReviewerID: "reviewer-1",
	})
	requireAppErrorType(t, err, apperrors.ValidationError)
}

func TestReviewService_MissingReceipt(t *testing.T) {
	svc, _, _ := newTestReviewService(t)

	_, err := svc.Review(context.Background(), "missing", &types.ReviewRequest{
		Action: types.ReviewActionApprove, ReviewerID: "reviewer-1",
	})
	requireAppErrorType(t, err, apperrors.NotFoundError)
}
