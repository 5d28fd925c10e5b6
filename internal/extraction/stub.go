package extraction

import (
	"context"
	"time"

	"github.com/bookbonus/bonus-backend/logger"
)

// StubProvider returns a canned extraction response for development mode.
// Config validation refuses to start production with it.
type StubProvider struct {
	Response string
}

// NewStubProvider creates a development stub whose response passes schema
// validation and scores above the auto-verify threshold.
func NewStubProvider() *StubProvider {
	logger.GetLogger().Warn("Using stub extraction provider; responses are canned")
	return &StubProvider{
		Response: `{
  "retailer": "Amazon",
  "amount": 28.99,
  "currency": "USD",
  "titleMatch": true,
  "purchaseDate": "` + yesterday() + `",
  "orderNumber": "112-0000000-0000000",
  "format": "hardcover",
  "piiDetected": [],
  "fieldConfidence": {"retailer": 0.95, "amount": 0.95, "purchaseDate": 0.9, "format": 0.9},
  "confidence": 0.92,
  "manualReview": false,
  "manualReviewReason": null
}`,
	}
}

func (s *StubProvider) Extract(_ context.Context, _ string) (string, error) {
	return s.Response, nil
}

func yesterday() string {
	return time.Now().AddDate(0, 0, -1).Format("2006-01-02")
}
