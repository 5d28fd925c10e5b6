package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/types"
)

// Ensure VerificationStore implements store.VerificationStore.
var _ store.VerificationStore = (*VerificationStore)(nil)

// VerificationStore implements store.VerificationStore for PostgreSQL.
// Rows are append-only; there is no update path.
type VerificationStore struct {
	db DB
}

// NewVerificationStore creates a new VerificationStore instance.
func NewVerificationStore(db DB) *VerificationStore {
	return &VerificationStore{db: db}
}

// Create inserts one verification attempt record.
func (s *VerificationStore) Create(ctx context.Context, meta *types.VerificationMetadata) error {
	var extractionJSON []byte
	if meta.Extraction != nil {
		var err error
		extractionJSON, err = json.Marshal(meta.Extraction)
		if err != nil {
			return fmt.Errorf("failed to marshal extraction: %w", err)
		}
	}

	query := `
		INSERT INTO verification_metadata (
			receipt_id, attempt, ocr_text, ocr_confidence, pii_detected,
			redaction_count, extraction, fraud_suspected, fraud_reasons,
			verification_score, manual_review, manual_review_reason,
			started_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	return s.db.QueryRow(ctx, query,
		meta.ReceiptID,
		meta.Attempt,
		meta.OCRText,
		meta.OCRConfidence,
		meta.PIIDetected,
		meta.RedactionCount,
		extractionJSON,
		meta.FraudSuspected,
		meta.FraudReasons,
		meta.VerificationScore,
		meta.ManualReview,
		meta.ManualReviewReason,
		meta.StartedAt,
		meta.CompletedAt,
		meta.Duration.Milliseconds(),
	).Scan(&meta.ID)
}

// ListByReceipt returns every attempt for a receipt, oldest first.
func (s *VerificationStore) ListByReceipt(ctx context.Context, receiptID string) ([]*types.VerificationMetadata, error) {
	query := `
		SELECT id, receipt_id, attempt, ocr_text, ocr_confidence, pii_detected,
		       redaction_count, extraction, fraud_suspected, fraud_reasons,
		       verification_score, manual_review, manual_review_reason,
		       started_at, completed_at, duration_ms
		FROM verification_metadata
		WHERE receipt_id = $1
		ORDER BY attempt ASC`

	rows, err := s.db.Query(ctx, query, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*types.VerificationMetadata
	for rows.Next() {
		meta := &types.VerificationMetadata{}
		var extractionJSON []byte
		var durationMs int64
		err := rows.Scan(
			&meta.ID,
			&meta.ReceiptID,
			&meta.Attempt,
			&meta.OCRText,
			&meta.OCRConfidence,
			&meta.PIIDetected,
			&meta.RedactionCount,
			&extractionJSON,
			&meta.FraudSuspected,
			&meta.FraudReasons,
			&meta.VerificationScore,
			&meta.ManualReview,
			&meta.ManualReviewReason,
			&meta.StartedAt,
			&meta.CompletedAt,
			&durationMs,
		)
		if err != nil {
			return nil, err
		}
		meta.Duration = time.Duration(durationMs) * time.Millisecond
		if len(extractionJSON) > 0 {
			meta.Extraction = &types.ReceiptExtraction{}
			if err := json.Unmarshal(extractionJSON, meta.Extraction); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extraction: %w", err)
			}
		}
		attempts = append(attempts, meta)
	}
	return attempts, rows.Err()
}

// NextAttempt returns the attempt number a new verification run should use.
func (s *VerificationStore) NextAttempt(ctx context.Context, receiptID string) (int, error) {
	query := `SELECT COALESCE(MAX(attempt), 0) + 1 FROM verification_metadata WHERE receipt_id = $1`

	var next int
	if err := s.db.QueryRow(ctx, query, receiptID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}
