package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptStatus is the lifecycle state of a submitted receipt.
// PENDING is the only non-terminal state; VERIFIED and REJECTED are terminal
// and no transition out of them is permitted.
type ReceiptStatus string

const (
	ReceiptStatusPending  ReceiptStatus = "PENDING"
	ReceiptStatusVerified ReceiptStatus = "VERIFIED"
	ReceiptStatusRejected ReceiptStatus = "REJECTED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s ReceiptStatus) IsTerminal() bool {
	return s == ReceiptStatusVerified || s == ReceiptStatusRejected
}

// PurchaseFormat is the declared format of the purchased book.
type PurchaseFormat string

const (
	FormatHardcover PurchaseFormat = "hardcover"
	FormatEbook     PurchaseFormat = "ebook"
	FormatAudiobook PurchaseFormat = "audiobook"
)

// ValidFormat reports whether f is a known purchase format.
func ValidFormat(f PurchaseFormat) bool {
	switch f {
	case FormatHardcover, FormatEbook, FormatAudiobook:
		return true
	}
	return false
}

// Receipt is one uploaded proof-of-purchase document.
type Receipt struct {
	ID string `json:"id"`
	// Fingerprint is the SHA-256 hex digest of the raw uploaded bytes.
	// Globally unique; the dedup key.
	Fingerprint string `json:"fingerprint"`

	UserID      string         `json:"userId"`
	Retailer    string         `json:"retailer"`
	OrderNumber *string        `json:"orderNumber,omitempty"`
	Format      PurchaseFormat `json:"format,omitempty"`
	// PurchaseDate is the user-declared purchase date, if any. The extracted
	// date lives in VerificationMetadata.
	PurchaseDate *time.Time `json:"purchaseDate,omitempty"`

	StorageKey string `json:"-"`
	MimeType   string `json:"mimeType"`
	FileSize   int64  `json:"fileSize"`

	Status ReceiptStatus `json:"status"`

	SourceIP  string `json:"-"`
	UserAgent string `json:"-"`

	SubmittedAt time.Time  `json:"submittedAt"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	// VerifiedBy is the reviewer ID for manual verdicts, or "system" for
	// automatic verification.
	VerifiedBy *string `json:"verifiedBy,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// VerificationMetadata is the write-once record of one automated processing
// attempt for a receipt. Reprocessing inserts a new row with an incremented
// attempt number; prior rows are never mutated.
type VerificationMetadata struct {
	ID        string `json:"id"`
	ReceiptID string `json:"receiptId"`
	Attempt   int    `json:"attempt"`

	// OCRText is the extracted document text after PII redaction. Raw
	// (pre-redaction) text is never persisted.
	OCRText       string  `json:"-"`
	OCRConfidence float64 `json:"ocrConfidence"`

	PIIDetected    []string `json:"piiDetected"`
	RedactionCount int      `json:"redactionCount"`

	Extraction *ReceiptExtraction `json:"extraction,omitempty"`

	FraudSuspected bool     `json:"fraudSuspected"`
	FraudReasons   []string `json:"fraudReasons"`

	// VerificationScore is the deterministic 0-100 composite (see fraud package).
	VerificationScore int `json:"verificationScore"`

	ManualReview       bool   `json:"manualReview"`
	ManualReviewReason string `json:"manualReviewReason,omitempty"`

	StartedAt   time.Time     `json:"startedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"-"`
}

// SubmissionRequest carries a receipt submission through the pipeline.
// FileBytes are validated before anything else runs.
type SubmissionRequest struct {
	UserID        string
	DeliveryEmail string
	Retailer      string
	OrderNumber   *string
	Format        PurchaseFormat
	PurchaseDate  *time.Time

	FileBytes        []byte
	DeclaredMimeType string
	DeclaredFilename string

	SourceIP  string
	UserAgent string
}

// SubmissionResult is the synchronous outcome of a submission: the receipt
// exists and is PENDING; the verification outcome arrives asynchronously.
type SubmissionResult struct {
	ReceiptID string        `json:"receiptId"`
	Status    ReceiptStatus `json:"status"`
}

// ReviewAction is a reviewer's explicit verdict.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// ReviewRequest is a reviewer decision on a pending receipt.
type ReviewRequest struct {
	Action     ReviewAction `json:"action" binding:"required"`
	ReviewerID string       `json:"reviewerId" binding:"required"`
	Notes      string       `json:"notes"`
}

// PriceBand is an inclusive plausible price range for one purchase format.
type PriceBand struct {
	Min decimal.Decimal
	Max decimal.Decimal
}
