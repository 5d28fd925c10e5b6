// Package ocr wraps the external OCR provider behind a narrow contract. The
// pipeline owns retries and fallback; this package owns transport, timeouts,
// and mapping provider failures into transient vs. permanent errors.
package ocr

import (
	"context"
	"errors"

	"github.com/bookbonus/bonus-backend/types"
)

// Provider extracts raw text from a receipt document.
type Provider interface {
	ExtractText(ctx context.Context, document []byte, mimeType string) (*types.OCRResult, error)
}

// ProviderError is a failure reported by (or while reaching) the OCR
// provider. Transient errors are retryable; permanent ones are not.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IsTransient reports whether err is worth retrying: provider 5xx responses,
// timeouts, and connection failures. Content-shape rejections (4xx) and
// schema errors are permanent.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
