package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Confidence thresholds for extraction results:
//   < 0.5: low confidence, LOW_CONFIDENCE fraud reason
//   >= auto-verify score with no manual-review flag: auto-verified
const (
	ExtractionConfidenceLow = 0.5
)

// ReceiptExtraction holds the typed fields derived from a receipt's text by
// the structured-extraction provider, after defensive schema validation.
// Every pointer field is nil when the extractor could not produce a value
// the validator trusts.
type ReceiptExtraction struct {
	Retailer   *string          `json:"retailer"`
	Amount     *decimal.Decimal `json:"amount"`
	Currency   *string          `json:"currency"`
	TitleMatch bool             `json:"titleMatch"`
	// PurchaseDate is only set when it parsed AND passed plausibility checks
	// (not in the future, not unreasonably old).
	PurchaseDate *time.Time `json:"purchaseDate"`
	OrderNumber  *string    `json:"orderNumber"`
	Format       *string    `json:"format"`

	// PIIDetected is the union of categories reported by the extractor and
	// those found by the independent redaction pass.
	PIIDetected []string `json:"piiDetected"`

	// FieldConfidence holds per-field confidence values in [0,1].
	FieldConfidence map[string]float64 `json:"fieldConfidence,omitempty"`
	// Confidence is the overall extraction confidence in [0,1].
	Confidence float64 `json:"confidence"`

	ManualReview       bool   `json:"manualReview"`
	ManualReviewReason string `json:"manualReviewReason,omitempty"`
}

// ConservativeExtraction returns the maximally conservative result used when
// the provider response fails schema validation: all fields null, manual
// review forced, confidence zero.
func ConservativeExtraction(reason string) *ReceiptExtraction {
	return &ReceiptExtraction{
		Confidence:         0,
		ManualReview:       true,
		ManualReviewReason: reason,
	}
}

// OCRResult is the outcome of the text-extraction stage.
type OCRResult struct {
	Text       string
	Confidence float64
}

// RedactionResult is the outcome of the PII redaction stage.
type RedactionResult struct {
	RedactedText string
	Categories   []string
	Count        int
}
