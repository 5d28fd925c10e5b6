package ocr

import (
	"context"

	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
)

// StubProvider returns a canned OCR result. It exists only for development
// mode; config validation refuses to start production with it.
type StubProvider struct {
	Text       string
	Confidence float64
}

// NewStubProvider creates a development stub with a plausible receipt text.
func NewStubProvider() *StubProvider {
	logger.GetLogger().Warn("Using stub OCR provider; extraction results are canned")
	return &StubProvider{
		Text:       "ORDER CONFIRMATION\nAI-Born (Hardcover)\nTotal: $28.99\nSold by Amazon.com",
		Confidence: 0.99,
	}
}

func (s *StubProvider) ExtractText(_ context.Context, _ []byte, _ string) (*types.OCRResult, error) {
	return &types.OCRResult{Text: s.Text, Confidence: s.Confidence}, nil
}
