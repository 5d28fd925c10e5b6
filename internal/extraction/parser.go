package extraction

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bookbonus/bonus-backend/types"
	"github.com/shopspring/decimal"
)

// ReasonParseFailure marks a provider response that failed schema validation.
const ReasonParseFailure = "PARSE_FAILURE"

// wireExtraction is the raw JSON shape expected from the provider. Pointers
// distinguish "absent" from zero values during validation.
type wireExtraction struct {
	Retailer           *string            `json:"retailer"`
	Amount             *float64           `json:"amount"`
	Currency           *string            `json:"currency"`
	TitleMatch         *bool              `json:"titleMatch"`
	PurchaseDate       *string            `json:"purchaseDate"`
	OrderNumber        *string            `json:"orderNumber"`
	Format             *string            `json:"format"`
	PIIDetected        []string           `json:"piiDetected"`
	FieldConfidence    map[string]float64 `json:"fieldConfidence"`
	Confidence         *float64           `json:"confidence"`
	ManualReview       *bool              `json:"manualReview"`
	ManualReviewReason *string            `json:"manualReviewReason"`
}

var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	time.RFC3339,
}

// ParseResponse validates the provider's raw response against the expected
// schema and returns the typed extraction. Any failure — non-JSON payload,
// missing required fields, out-of-range confidence — yields the maximally
// conservative result: all fields null, manual review forced, confidence 0.
func ParseResponse(raw string, now time.Time) *types.ReceiptExtraction {
	text := strings.TrimSpace(raw)
	// Models wrap JSON in markdown fences despite instructions.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	// Cut to the outermost JSON object boundaries.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return types.ConservativeExtraction(ReasonParseFailure)
	}
	text = text[start : end+1]

	var wire wireExtraction
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return types.ConservativeExtraction(ReasonParseFailure)
	}

	// Overall confidence is the one required field; without it nothing else
	// can be weighed.
	if wire.Confidence == nil || *wire.Confidence < 0 || *wire.Confidence > 1 {
		return types.ConservativeExtraction(ReasonParseFailure)
	}

	result := &types.ReceiptExtraction{
		Confidence:      *wire.Confidence,
		FieldConfidence: wire.FieldConfidence,
		PIIDetected:     wire.PIIDetected,
	}
	if result.PIIDetected == nil {
		result.PIIDetected = []string{}
	}

	if wire.TitleMatch != nil {
		result.TitleMatch = *wire.TitleMatch
	}
	if wire.ManualReview != nil {
		result.ManualReview = *wire.ManualReview
	}
	if wire.ManualReviewReason != nil && *wire.ManualReviewReason != "" {
		result.ManualReviewReason = *wire.ManualReviewReason
	}

	if wire.Retailer != nil && strings.TrimSpace(*wire.Retailer) != "" {
		retailer := strings.TrimSpace(*wire.Retailer)
		result.Retailer = &retailer
	}
	if wire.OrderNumber != nil && strings.TrimSpace(*wire.OrderNumber) != "" {
		order := strings.TrimSpace(*wire.OrderNumber)
		result.OrderNumber = &order
	}

	// Amounts are only trusted when positive and finite.
	if wire.Amount != nil && *wire.Amount > 0 {
		amount := decimal.NewFromFloat(*wire.Amount)
		result.Amount = &amount
	}

	if wire.Currency != nil {
		cur := strings.ToUpper(strings.TrimSpace(*wire.Currency))
		if len(cur) == 3 {
			result.Currency = &cur
		}
	}

	if wire.Format != nil {
		f := strings.ToLower(strings.TrimSpace(*wire.Format))
		if types.ValidFormat(types.PurchaseFormat(f)) {
			result.Format = &f
		}
	}

	if wire.PurchaseDate != nil {
		if d, ok := parsePlausibleDate(*wire.PurchaseDate, now); ok {
			result.PurchaseDate = &d
		} else {
			// An unparseable or wildly implausible date is dropped and the
			// receipt routed to a human rather than scored on garbage.
			result.ManualReview = true
			if result.ManualReviewReason == "" {
				result.ManualReviewReason = "IMPLAUSIBLE_DATE"
			}
		}
	}

	return result
}

// parsePlausibleDate parses a date string against known formats and rejects
// values that cannot be a real purchase date (more than a day in the future
// is still kept for the fraud rules to flag; more than a year ahead, or
// before 2000, is extraction garbage).
func parsePlausibleDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		d, err := time.Parse(format, s)
		if err != nil {
			continue
		}
		if d.Year() < 2000 || d.After(now.AddDate(1, 0, 0)) {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}
