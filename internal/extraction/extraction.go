// Package extraction derives typed receipt fields from OCR text using an LLM
// provider. The provider's output is treated as adversarial input: nothing is
// trusted until it survives schema validation and plausibility checks.
package extraction

import (
	"context"
	"errors"

	"google.golang.org/api/googleapi"
)

// Provider returns the raw (untrusted) response text for an extraction prompt.
type Provider interface {
	Extract(ctx context.Context, receiptText string) (string, error)
}

// IsTransient reports whether a provider error is worth retrying. Quota and
// server-side failures are; everything else, including malformed responses,
// is not.
func IsTransient(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= 500 || gerr.Code == 429
	}
	return errors.Is(err, context.DeadlineExceeded)
}
