// Package fraud implements rule-based plausibility checks over extracted
// receipt fields and the composite verification score. Everything here is a
// pure function of its inputs — no clock reads, no randomness — so the same
// extraction always produces the same verdict and reviewers can be shown
// exactly why a receipt scored what it did.
package fraud

import (
	"math"
	"strings"
	"time"

	"github.com/bookbonus/bonus-backend/types"
)

// Reason codes, one per violated rule.
const (
	ReasonLowConfidence    = "LOW_CONFIDENCE"
	ReasonTitleMismatch    = "TITLE_MISMATCH"
	ReasonPriceOutOfRange  = "PRICE_OUT_OF_RANGE"
	ReasonRetailerMismatch = "RETAILER_MISMATCH"
	ReasonDateOutOfRange   = "DATE_OUT_OF_RANGE"
	ReasonDateInFuture     = "DATE_IN_FUTURE"
)

// Score weights. Base confidence contributes up to 40 points, title match 20,
// retailer presence 15, amount-in-range 15, date-valid 10.
const (
	weightConfidence = 40
	weightTitle      = 20
	weightRetailer   = 15
	weightAmount     = 15
	weightDate       = 10
)

// Params holds the configured rule thresholds.
type Params struct {
	MinConfidence float64
	// Staleness is how far back a purchase date may lie.
	Staleness time.Duration
	// Bands maps each purchase format to its plausible price range.
	Bands map[types.PurchaseFormat]types.PriceBand
}

// Result is the verdict of the plausibility check. A fraud verdict is a
// successful computation, not an error; it routes the receipt to manual
// review, never aborts processing.
type Result struct {
	Suspected bool
	Reasons   []string
	// Score is the 0-100 composite verification score.
	Score int
}

// Evaluate runs every rule over the extraction and the submitter's declared
// metadata. declaredRetailer and declaredFormat come from the submission;
// the extracted format takes precedence when both are present. now is passed
// in rather than read from the clock to keep the function reproducible.
func Evaluate(ex *types.ReceiptExtraction, declaredRetailer string, declaredFormat types.PurchaseFormat, now time.Time, p Params) Result {
	res := Result{Reasons: []string{}}

	if ex.Confidence < p.MinConfidence {
		res.Reasons = append(res.Reasons, ReasonLowConfidence)
	}

	if !ex.TitleMatch {
		res.Reasons = append(res.Reasons, ReasonTitleMismatch)
	}

	amountOK := false
	if ex.Amount != nil {
		format := declaredFormat
		if ex.Format != nil {
			format = types.PurchaseFormat(*ex.Format)
		}
		if band, ok := p.Bands[format]; ok {
			if ex.Amount.LessThan(band.Min) || ex.Amount.GreaterThan(band.Max) {
				res.Reasons = append(res.Reasons, ReasonPriceOutOfRange)
			} else {
				amountOK = true
			}
		}
	}

	retailerOK := false
	if ex.Retailer != nil {
		retailerOK = true
		if declaredRetailer != "" &&
			!strings.Contains(strings.ToLower(*ex.Retailer), strings.ToLower(declaredRetailer)) &&
			!strings.Contains(strings.ToLower(declaredRetailer), strings.ToLower(*ex.Retailer)) {
			res.Reasons = append(res.Reasons, ReasonRetailerMismatch)
			retailerOK = false
		}
	}

	dateOK := false
	if ex.PurchaseDate != nil {
		switch {
		case ex.PurchaseDate.After(now):
			res.Reasons = append(res.Reasons, ReasonDateInFuture)
		case now.Sub(*ex.PurchaseDate) > p.Staleness:
			res.Reasons = append(res.Reasons, ReasonDateOutOfRange)
		default:
			dateOK = true
		}
	}

	res.Suspected = len(res.Reasons) > 0

	score := int(math.Round(ex.Confidence * weightConfidence))
	if ex.TitleMatch {
		score += weightTitle
	}
	if retailerOK {
		score += weightRetailer
	}
	if amountOK {
		score += weightAmount
	}
	if dateOK {
		score += weightDate
	}
	if score > 100 {
		score = 100
	}
	res.Score = score

	return res
}
