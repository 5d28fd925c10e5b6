package services

import (
	"context"
	"testing"
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmailService() *EmailService {
	cfg := &config.EmailConfig{
		FromAddress: "bonus@example.com",
		FromName:    "Book Bonus",
		// No API key: the service logs instead of sending.
	}
	return NewEmailServiceWithRegistry(cfg, "https://bonus.example.com", prometheus.NewRegistry())
}

func TestEmailService_LogsWithoutAPIKey(t *testing.T) {
	svc := newTestEmailService()

	claim := &types.BonusClaim{ID: "claim-1", DeliveryEmail: "reader@example.com"}
	entitlements := []*types.Entitlement{
		{ClaimID: "claim-1", AssetSlug: "bonus-chapter", AccessToken: "tok-1", ExpiresAt: time.Now().Add(24 * time.Hour)},
	}
	assets := map[string]types.BonusAsset{
		"bonus-chapter": {Slug: "bonus-chapter", Name: "Bonus Chapter"},
	}

	trackingID, err := svc.SendDeliveryEmail(context.Background(), claim, entitlements, assets)
	require.NoError(t, err)
	assert.Empty(t, trackingID)
}

func TestEmailService_FailsWithoutDeliverableEntitlements(t *testing.T) {
	svc := newTestEmailService()

	claim := &types.BonusClaim{ID: "claim-1", DeliveryEmail: "reader@example.com"}
	// Entitlement references an asset missing from the catalog.
	entitlements := []*types.Entitlement{
		{ClaimID: "claim-1", AssetSlug: "unknown-asset", AccessToken: "tok-1"},
	}

	_, err := svc.SendDeliveryEmail(context.Background(), claim, entitlements, map[string]types.BonusAsset{})
	assert.Error(t, err)
}
