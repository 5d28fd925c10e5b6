package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"go.uber.org/zap"
)

// DefaultBonusAssets is the reward catalog granted to every approved claim.
var DefaultBonusAssets = []types.BonusAsset{
	{Slug: "bonus-chapter", Name: "Bonus Chapter: The Cutting Room Floor", StorageKey: "assets/bonus-chapter.pdf"},
	{Slug: "audiobook-sampler", Name: "Audiobook Sampler", StorageKey: "assets/audiobook-sampler.mp3"},
	{Slug: "wallpaper-pack", Name: "Cover Art Wallpaper Pack", StorageKey: "assets/wallpaper-pack.zip"},
}

// EntitlementService mints and redeems time-boxed access tokens for bonus
// assets. Tokens are HMAC-signed and verified statelessly; the backing
// entitlement row is still checked on redemption so issuance can be audited
// and, if needed, revoked by deleting the row.
type EntitlementService struct {
	claims     store.ClaimStore
	storage    storage.FileStorage
	signingKey []byte
	ttl        time.Duration
	assets     map[string]types.BonusAsset
	log        *zap.SugaredLogger
}

// NewEntitlementService creates an EntitlementService over the given asset
// catalog.
func NewEntitlementService(claims store.ClaimStore, fileStorage storage.FileStorage, signingKey string, ttl time.Duration, assets []types.BonusAsset) *EntitlementService {
	bySlug := make(map[string]types.BonusAsset, len(assets))
	for _, a := range assets {
		bySlug[a.Slug] = a
	}
	return &EntitlementService{
		claims:     claims,
		storage:    fileStorage,
		signingKey: []byte(signingKey),
		ttl:        ttl,
		assets:     bySlug,
		log:        logger.GetLogger().Named("entitlement-service"),
	}
}

// IssueForClaim approves the claim and mints one entitlement per catalog
// asset, all inside the claim store's approval transaction. The claim must be
// PENDING and its receipt VERIFIED or the whole operation fails.
func (s *EntitlementService) IssueForClaim(ctx context.Context, claim *types.BonusClaim, processedBy string) ([]*types.Entitlement, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)

	entitlements := make([]*types.Entitlement, 0, len(s.assets))
	for slug := range s.assets {
		entitlements = append(entitlements, &types.Entitlement{
			ClaimID:     claim.ID,
			AssetSlug:   slug,
			AccessToken: s.signToken(slug, claim.ID, expiresAt),
			ExpiresAt:   expiresAt,
			IssuedAt:    now,
		})
	}

	if err := s.claims.Approve(ctx, claim.ID, processedBy, entitlements); err != nil {
		if err == store.ErrConflict {
			return nil, apperrors.InvalidStatusTransition(string(claim.Status), string(types.ClaimStatusApproved))
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Infow("Entitlements issued",
		"claimId", claim.ID,
		"assets", len(entitlements),
		"expiresAt", expiresAt)
	return entitlements, nil
}

// Redemption is the resolved outcome of a valid access token.
type Redemption struct {
	Asset types.BonusAsset
	// DownloadURL is a short-lived storage URL for the asset content.
	DownloadURL string
	ExpiresAt   time.Time
}

// Redeem validates an access token and resolves it to a download URL.
// Signature and expiry are checked before any storage or database access, so
// forged or expired tokens cost nothing.
func (s *EntitlementService) Redeem(ctx context.Context, token string) (*Redemption, error) {
	slug, expiresAt, err := s.verifyToken(token)
	if err != nil {
		return nil, err
	}
	if time.Now().After(expiresAt) {
		return nil, apperrors.Forbidden("Access link has expired", "Request a fresh delivery email to receive new links")
	}

	entitlement, err := s.claims.GetEntitlementByToken(ctx, token)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperrors.NotFound("Entitlement", token[:min(len(token), 12)])
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	asset, ok := s.assets[entitlement.AssetSlug]
	if !ok || asset.Slug != slug {
		return nil, apperrors.NotFound("Bonus asset", entitlement.AssetSlug)
	}

	url, err := s.storage.GetURL(ctx, asset.StorageKey)
	if err != nil {
		return nil, err
	}

	return &Redemption{
		Asset:       asset,
		DownloadURL: url,
		ExpiresAt:   entitlement.ExpiresAt,
	}, nil
}

// signToken builds an access token: base64url(hexsig|slug|claimID|expiryUnix).
// The signature covers everything after it.
func (s *EntitlementService) signToken(slug, claimID string, expiresAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%d", slug, claimID, expiresAt.Unix())
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(payload))
	sig := hex.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(sig + "|" + payload))
}

// verifyToken checks the token's signature and shape, returning the asset
// slug and expiry it encodes.
func (s *EntitlementService) verifyToken(token string) (string, time.Time, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", time.Time{}, apperrors.Forbidden("Invalid access token", "")
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return "", time.Time{}, apperrors.Forbidden("Invalid access token", "")
	}
	sig, slug, claimID, expiryStr := parts[0], parts[1], parts[2], parts[3]

	expiryUnix, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return "", time.Time{}, apperrors.Forbidden("Invalid access token", "")
	}

	payload := fmt.Sprintf("%s|%s|%s", slug, claimID, expiryStr)
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", time.Time{}, apperrors.Forbidden("Invalid access token", "")
	}

	return slug, time.Unix(expiryUnix, 0), nil
}
