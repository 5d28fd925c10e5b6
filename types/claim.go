package types

import "time"

// ClaimStatus is the lifecycle state of a bonus claim.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "PENDING"
	ClaimStatusApproved ClaimStatus = "APPROVED"
	ClaimStatusRejected ClaimStatus = "REJECTED"
)

// BonusClaim is the entitlement request tied to a receipt. A claim can only
// reach APPROVED when its receipt is VERIFIED; the claim store enforces this
// inside the approval transaction.
type BonusClaim struct {
	ID        string `json:"id"`
	ReceiptID string `json:"receiptId"`
	UserID    string `json:"userId"`
	// DeliveryEmail may differ from the account email.
	DeliveryEmail string      `json:"deliveryEmail"`
	Status        ClaimStatus `json:"status"`
	// ProcessedBy is the reviewer ID, or "system" for automatic approval.
	ProcessedBy *string    `json:"processedBy,omitempty"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	// DeliveryTrackingID is the notification system's reference for the
	// delivery email, when one was dispatched.
	DeliveryTrackingID *string   `json:"deliveryTrackingId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

// BonusAsset describes one piece of reward content an approved claim grants
// access to.
type BonusAsset struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	// StorageKey is the blob storage key of the asset content.
	StorageKey string `json:"-"`
}

// Entitlement is one issued, time-boxed access grant for a bonus asset.
// Entitlements are append-only: re-issuing creates new rows with fresh
// expiries rather than updating old ones.
type Entitlement struct {
	ID        string `json:"id"`
	ClaimID   string `json:"claimId"`
	AssetSlug string `json:"assetSlug"`
	// AccessToken is the HMAC-signed token embedded in the download URL.
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	IssuedAt    time.Time `json:"issuedAt"`
}
