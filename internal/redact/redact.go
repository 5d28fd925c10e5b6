// Package redact scans OCR text for personally identifying patterns and
// replaces each matched span with a fixed marker. It runs on every
// successfully OCR'd document before anything is persisted; raw PII must not
// reach durable storage or logs past this stage.
package redact

import (
	"regexp"

	"github.com/bookbonus/bonus-backend/types"
)

// Marker replaces every redacted span.
const Marker = "[REDACTED]"

// PII categories reported in VerificationMetadata.
const (
	CategoryEmail         = "email"
	CategoryPhone         = "phone"
	CategoryCreditCard    = "credit_card"
	CategoryGovernmentID  = "government_id"
	CategoryStreetAddress = "street_address"
	CategoryPostalCode    = "postal_code"
	CategoryIPAddress     = "ip_address"
	CategoryName          = "name"
)

type pattern struct {
	category string
	re       *regexp.Regexp
}

// Patterns are applied in order; once a span is replaced by an earlier
// pattern, later patterns cannot re-match it, so an overlapping span yields
// one category entry per category rather than one per pattern. Longer, more
// specific digit patterns run before shorter ones (card before phone).
var patterns = []pattern{
	{CategoryEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
	{CategoryCreditCard, regexp.MustCompile(`\b\d(?:[ \-]?\d){12,18}\b`)},
	{CategoryGovernmentID, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{CategoryPhone, regexp.MustCompile(`\b(?:\+?1[ .\-]?)?(?:\(\d{3}\)|\d{3})[ .\-]?\d{3}[ .\-]?\d{4}\b`)},
	{CategoryIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{CategoryStreetAddress, regexp.MustCompile(`\b\d{1,5} (?:[A-Z][a-z]+ ){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Way)\b\.?`)},
	{CategoryPostalCode, regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b|\b[A-Za-z]\d[A-Za-z] ?\d[A-Za-z]\d\b`)},
	// Capitalized two/three-token name pattern. Deliberately loose: false
	// positives (a merchant name, a book title) are accepted as a
	// safety-over-precision trade-off.
	{CategoryName, regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+){1,2}\b`)},
}

// Redact is a pure function over raw text. It returns the redacted copy, the
// distinct PII categories detected, and the number of spans replaced.
func Redact(text string) types.RedactionResult {
	result := types.RedactionResult{
		RedactedText: text,
		Categories:   []string{},
	}

	for _, p := range patterns {
		matches := p.re.FindAllStringIndex(result.RedactedText, -1)
		if len(matches) == 0 {
			continue
		}
		result.Categories = append(result.Categories, p.category)
		result.Count += len(matches)
		result.RedactedText = p.re.ReplaceAllString(result.RedactedText, Marker)
	}

	return result
}
