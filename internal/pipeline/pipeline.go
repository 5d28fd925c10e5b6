// Package pipeline orchestrates the asynchronous verification of a submitted
// receipt: OCR, PII redaction, structured extraction, plausibility scoring,
// and the auto-verification decision. Every run writes one immutable
// verification attempt record, whatever the outcome.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bookbonus/bonus-backend/internal/extraction"
	"github.com/bookbonus/bonus-backend/internal/fraud"
	"github.com/bookbonus/bonus-backend/internal/ocr"
	"github.com/bookbonus/bonus-backend/internal/redact"
	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"go.uber.org/zap"
)

// Manual-review reasons recorded by the pipeline itself.
const (
	reasonOCRFailure        = "OCR_FAILED"
	reasonExtractionFailure = "EXTRACTION_FAILURE"
	reasonFraudSuspected    = "FRAUD_SUSPECTED"
)

// systemReviewer marks automatic status transitions.
const systemReviewer = "system"

// ClaimFulfiller completes the bonus claim behind a newly verified receipt.
type ClaimFulfiller interface {
	FulfillClaim(ctx context.Context, receiptID, processedBy string) error
}

// Params bundles the tunables for a verification run.
type Params struct {
	Fraud           fraud.Params
	AutoVerifyScore int
	// OCRMaxAttempts and ExtractionMaxAttempts bound retries of transient
	// provider failures. Permanent failures are never retried.
	OCRMaxAttempts        int
	ExtractionMaxAttempts int
	RetryBaseDelay        time.Duration
}

// Verifier runs the verification pipeline for one receipt at a time.
type Verifier struct {
	receipts  store.ReceiptStore
	attempts  store.VerificationStore
	storage   storage.FileStorage
	ocr       ocr.Provider
	extractor extraction.Provider
	fulfiller ClaimFulfiller
	params    Params
	log       *zap.SugaredLogger
}

// NewVerifier wires a Verifier from its stage implementations.
func NewVerifier(
	receipts store.ReceiptStore,
	attempts store.VerificationStore,
	fileStorage storage.FileStorage,
	ocrProvider ocr.Provider,
	extractor extraction.Provider,
	fulfiller ClaimFulfiller,
	params Params,
) *Verifier {
	if params.RetryBaseDelay <= 0 {
		params.RetryBaseDelay = time.Second
	}
	return &Verifier{
		receipts:  receipts,
		attempts:  attempts,
		storage:   fileStorage,
		ocr:       ocrProvider,
		extractor: extractor,
		fulfiller: fulfiller,
		params:    params,
		log:       logger.GetLogger().Named("pipeline"),
	}
}

// Run executes one verification attempt for the receipt. Terminal receipts
// are skipped. A provider failure still records an attempt with a
// manual-review flag; the receipt stays PENDING for a human.
func (v *Verifier) Run(ctx context.Context, receiptID string) error {
	receipt, err := v.receipts.GetByID(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("failed to load receipt %s: %w", receiptID, err)
	}
	if receipt.Status.IsTerminal() {
		v.log.Infow("Skipping verification of terminal receipt",
			"receiptId", receiptID, "status", receipt.Status)
		return nil
	}

	attempt, err := v.attempts.NextAttempt(ctx, receiptID)
	if err != nil {
		return fmt.Errorf("failed to determine attempt number: %w", err)
	}

	startedAt := time.Now().UTC()
	meta := &types.VerificationMetadata{
		ReceiptID: receiptID,
		Attempt:   attempt,
		StartedAt: startedAt,
	}

	document, err := v.loadDocument(ctx, receipt.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to load document for %s: %w", receiptID, err)
	}

	ocrResult, err := v.runOCR(ctx, document, receipt.MimeType)
	if err != nil {
		v.log.Errorw("OCR failed after retries; routing to manual review",
			"receiptId", receiptID, "attempt", attempt, "error", err)
		meta.Extraction = types.ConservativeExtraction(reasonOCRFailure)
		meta.ManualReview = true
		meta.ManualReviewReason = reasonOCRFailure
		return v.persist(ctx, meta)
	}
	meta.OCRConfidence = ocrResult.Confidence

	redacted := redact.Redact(ocrResult.Text)
	meta.OCRText = redacted.RedactedText
	meta.RedactionCount = redacted.Count

	// The raw text feeds extraction in memory only; nothing past this point
	// sees or stores the unredacted form.
	ex := v.runExtraction(ctx, ocrResult.Text)
	meta.Extraction = ex
	meta.PIIDetected = mergeCategories(redacted.Categories, ex.PIIDetected)

	verdict := fraud.Evaluate(ex, receipt.Retailer, receipt.Format, time.Now().UTC(), v.params.Fraud)
	meta.FraudSuspected = verdict.Suspected
	meta.FraudReasons = verdict.Reasons
	meta.VerificationScore = verdict.Score

	if ex.ManualReview {
		meta.ManualReview = true
		meta.ManualReviewReason = ex.ManualReviewReason
	} else if verdict.Suspected {
		meta.ManualReview = true
		meta.ManualReviewReason = reasonFraudSuspected
	}

	if err := v.persist(ctx, meta); err != nil {
		return err
	}

	if !meta.ManualReview && verdict.Score >= v.params.AutoVerifyScore {
		return v.autoVerify(ctx, receipt)
	}

	v.log.Infow("Receipt held for manual review",
		"receiptId", receiptID,
		"attempt", attempt,
		"score", verdict.Score,
		"reason", meta.ManualReviewReason,
		"fraudReasons", verdict.Reasons)
	return nil
}

func (v *Verifier) loadDocument(ctx context.Context, key string) ([]byte, error) {
	rc, err := v.storage.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// runOCR retries transient provider failures with exponential backoff.
func (v *Verifier) runOCR(ctx context.Context, document []byte, mimeType string) (*types.OCRResult, error) {
	var lastErr error
	for attempt := 1; attempt <= v.params.OCRMaxAttempts; attempt++ {
		result, err := v.ocr.ExtractText(ctx, document, mimeType)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !ocr.IsTransient(err) {
			return nil, err
		}
		if attempt < v.params.OCRMaxAttempts {
			if err := v.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// runExtraction never fails the run: provider or parse trouble degrades to a
// conservative extraction that scores zero and demands manual review.
func (v *Verifier) runExtraction(ctx context.Context, receiptText string) *types.ReceiptExtraction {
	var raw string
	var lastErr error
	for attempt := 1; attempt <= v.params.ExtractionMaxAttempts; attempt++ {
		var err error
		raw, err = v.extractor.Extract(ctx, receiptText)
		if err == nil {
			return extraction.ParseResponse(raw, time.Now().UTC())
		}
		lastErr = err
		if !extraction.IsTransient(err) {
			break
		}
		if attempt < v.params.ExtractionMaxAttempts {
			if err := v.backoff(ctx, attempt); err != nil {
				break
			}
		}
	}

	v.log.Errorw("Extraction failed; using conservative fallback", "error", lastErr)
	return types.ConservativeExtraction(reasonExtractionFailure)
}

func (v *Verifier) backoff(ctx context.Context, attempt int) error {
	delay := v.params.RetryBaseDelay * (1 << (attempt - 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func (v *Verifier) persist(ctx context.Context, meta *types.VerificationMetadata) error {
	meta.CompletedAt = time.Now().UTC()
	meta.Duration = meta.CompletedAt.Sub(meta.StartedAt)
	if meta.PIIDetected == nil {
		meta.PIIDetected = []string{}
	}
	if meta.FraudReasons == nil {
		meta.FraudReasons = []string{}
	}
	if err := v.attempts.Create(ctx, meta); err != nil {
		return fmt.Errorf("failed to record verification attempt: %w", err)
	}
	return nil
}

// autoVerify transitions the receipt to VERIFIED and fulfills its claim.
// Losing the transition race to a concurrent reviewer is not an error.
func (v *Verifier) autoVerify(ctx context.Context, receipt *types.Receipt) error {
	reviewer := systemReviewer
	err := v.receipts.TransitionStatus(ctx, receipt.ID,
		types.ReceiptStatusPending, types.ReceiptStatusVerified, &reviewer, "")
	if err != nil {
		if err == store.ErrConflict {
			v.log.Warnw("Receipt already transitioned; skipping auto-verify",
				"receiptId", receipt.ID)
			return nil
		}
		return fmt.Errorf("failed to auto-verify receipt %s: %w", receipt.ID, err)
	}

	v.log.Infow("Receipt auto-verified", "receiptId", receipt.ID)

	if v.fulfiller != nil {
		if err := v.fulfiller.FulfillClaim(ctx, receipt.ID, systemReviewer); err != nil {
			// The receipt is verified; fulfillment can be retried separately.
			v.log.Errorw("Claim fulfillment failed after auto-verify",
				"receiptId", receipt.ID, "error", err)
		}
	}
	return nil
}

// mergeCategories unions the redaction categories with the categories the
// extraction stage reports, deduplicated and sorted for stable storage.
func mergeCategories(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, c := range a {
		seen[c] = struct{}{}
	}
	for _, c := range b {
		seen[c] = struct{}{}
	}
	merged := make([]string, 0, len(seen))
	for c := range seen {
		merged = append(merged, c)
	}
	sort.Strings(merged)
	return merged
}
