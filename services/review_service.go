package services

import (
	"context"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"go.uber.org/zap"
)

// ReviewService applies explicit reviewer verdicts to pending receipts.
// Rejection is never automatic; it only happens here.
type ReviewService struct {
	receipts    store.ReceiptStore
	fulfillment *FulfillmentService
	log         *zap.SugaredLogger
}

func NewReviewService(receipts store.ReceiptStore, fulfillment *FulfillmentService) *ReviewService {
	return &ReviewService{
		receipts:    receipts,
		fulfillment: fulfillment,
		log:         logger.GetLogger().Named("review-service"),
	}
}

// Review applies a reviewer's verdict. Approving verifies the receipt and
// fulfills its claim; rejecting closes both. Terminal receipts reject the
// verdict with an invalid-transition error.
func (s *ReviewService) Review(ctx context.Context, receiptID string, req *types.ReviewRequest) (*types.Receipt, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperrors.NotFound("Receipt", receiptID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	var target types.ReceiptStatus
	switch req.Action {
	case types.ReviewActionApprove:
		target = types.ReceiptStatusVerified
	case types.ReviewActionReject:
		target = types.ReceiptStatusRejected
	default:
		return nil, apperrors.ValidationFailed("invalid_action",
			"action must be \"approve\" or \"reject\"")
	}

	if receipt.Status.IsTerminal() {
		return nil, apperrors.InvalidStatusTransition(string(receipt.Status), string(target))
	}

	reviewer := req.ReviewerID
	err = s.receipts.TransitionStatus(ctx, receiptID,
		types.ReceiptStatusPending, target, &reviewer, req.Notes)
	if err != nil {
		if err == store.ErrConflict {
			// Raced with another reviewer or the auto-verifier.
			current, getErr := s.receipts.GetByID(ctx, receiptID)
			if getErr == nil {
				return nil, apperrors.InvalidStatusTransition(string(current.Status), string(target))
			}
			return nil, apperrors.InvalidStatusTransition(string(types.ReceiptStatusPending), string(target))
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Infow("Review verdict applied",
		"receiptId", receiptID,
		"action", req.Action,
		"reviewerId", reviewer)

	switch target {
	case types.ReceiptStatusVerified:
		if err := s.fulfillment.FulfillClaim(ctx, receiptID, reviewer); err != nil {
			// The verdict stands; fulfillment can be retried.
			s.log.Errorw("Claim fulfillment failed after approval",
				"receiptId", receiptID, "error", err)
		}
	case types.ReceiptStatusRejected:
		if err := s.fulfillment.RejectClaim(ctx, receiptID, reviewer); err != nil {
			s.log.Errorw("Claim rejection failed after verdict",
				"receiptId", receiptID, "error", err)
		}
	}

	return s.receipts.GetByID(ctx, receiptID)
}
