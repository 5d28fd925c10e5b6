package services

import (
	"context"
	"fmt"

	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"go.uber.org/zap"
)

// FulfillmentService completes the bonus claim behind a verified receipt:
// it issues the entitlements and dispatches the delivery email.
type FulfillmentService struct {
	claims       store.ClaimStore
	entitlements *EntitlementService
	email        *EmailService
	assets       map[string]types.BonusAsset
	log          *zap.SugaredLogger
}

func NewFulfillmentService(claims store.ClaimStore, entitlements *EntitlementService, email *EmailService, assets []types.BonusAsset) *FulfillmentService {
	bySlug := make(map[string]types.BonusAsset, len(assets))
	for _, a := range assets {
		bySlug[a.Slug] = a
	}
	return &FulfillmentService{
		claims:       claims,
		entitlements: entitlements,
		email:        email,
		assets:       bySlug,
		log:          logger.GetLogger().Named("fulfillment-service"),
	}
}

// FulfillClaim approves the receipt's claim, mints entitlements, and sends the
// delivery email. Entitlement issuance is transactional; a failed email does
// not roll it back, since the links can be re-sent.
func (s *FulfillmentService) FulfillClaim(ctx context.Context, receiptID, processedBy string) error {
	claim, err := s.claims.GetByReceiptID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("failed to load claim for receipt %s: %w", receiptID, err)
	}
	if claim.Status != types.ClaimStatusPending {
		s.log.Infow("Claim already processed; skipping fulfillment",
			"claimId", claim.ID, "status", claim.Status)
		return nil
	}

	entitlements, err := s.entitlements.IssueForClaim(ctx, claim, processedBy)
	if err != nil {
		return err
	}

	trackingID, err := s.email.SendDeliveryEmail(ctx, claim, entitlements, s.assets)
	if err != nil {
		s.log.Errorw("Delivery email failed; entitlements remain valid",
			"claimId", claim.ID, "error", err)
		return nil
	}
	if trackingID != "" {
		if err := s.claims.SetDeliveryTracking(ctx, claim.ID, trackingID); err != nil {
			s.log.Errorw("Failed to record delivery tracking ID",
				"claimId", claim.ID, "trackingId", trackingID, "error", err)
		}
	}
	return nil
}

// RejectClaim marks the claim behind a rejected receipt as rejected.
func (s *FulfillmentService) RejectClaim(ctx context.Context, receiptID, processedBy string) error {
	claim, err := s.claims.GetByReceiptID(ctx, receiptID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil
		}
		return fmt.Errorf("failed to load claim for receipt %s: %w", receiptID, err)
	}
	if claim.Status != types.ClaimStatusPending {
		return nil
	}
	if err := s.claims.Reject(ctx, claim.ID, processedBy); err != nil && err != store.ErrConflict {
		return err
	}
	return nil
}
