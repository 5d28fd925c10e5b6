package services

import (
	"bytes"
	"context"
	"time"

	apperrors "github.com/bookbonus/bonus-backend/errors"
	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/internal/upload"
	"github.com/bookbonus/bonus-backend/logger"
	"github.com/bookbonus/bonus-backend/types"
	"go.uber.org/zap"
)

// VerificationRunner runs one verification attempt for a receipt. Satisfied
// by the pipeline verifier.
type VerificationRunner interface {
	Run(ctx context.Context, receiptID string) error
}

// JobSubmitter queues background work. Satisfied by the worker pool.
type JobSubmitter interface {
	Submit(job Job) bool
}

// ReceiptService owns the submission flow: validation, dedup, blob storage,
// persistence, and handoff to the background verification pipeline.
type ReceiptService struct {
	receipts store.ReceiptStore
	attempts store.VerificationStore
	claims   store.ClaimStore
	storage  storage.FileStorage
	verifier VerificationRunner
	pool     JobSubmitter
	log      *zap.SugaredLogger
}

func NewReceiptService(
	receipts store.ReceiptStore,
	attempts store.VerificationStore,
	claims store.ClaimStore,
	fileStorage storage.FileStorage,
	verifier VerificationRunner,
	pool JobSubmitter,
) *ReceiptService {
	return &ReceiptService{
		receipts: receipts,
		attempts: attempts,
		claims:   claims,
		storage:  fileStorage,
		verifier: verifier,
		pool:     pool,
		log:      logger.GetLogger().Named("receipt-service"),
	}
}

// Submit validates and accepts a receipt submission. On success the receipt
// and its pending claim exist durably and a verification job is queued; the
// verification verdict itself arrives asynchronously.
func (s *ReceiptService) Submit(ctx context.Context, req *types.SubmissionRequest) (*types.SubmissionResult, error) {
	validated, err := upload.Validate(req.FileBytes, req.DeclaredMimeType)
	if err != nil {
		return nil, err
	}

	// Fast-path dedup before paying for blob storage. The unique constraint
	// on fingerprint still catches the concurrent-submission race below.
	if existing, err := s.receipts.GetByFingerprint(ctx, validated.Fingerprint); err == nil {
		s.log.Infow("Duplicate submission rejected",
			"fingerprint", logger.MaskFingerprint(validated.Fingerprint),
			"existingReceiptId", existing.ID)
		return nil, apperrors.Duplicate(existing.ID)
	} else if err != store.ErrNotFound {
		return nil, apperrors.NewDatabaseError(err)
	}

	submittedAt := time.Now().UTC()
	key := storage.ReceiptKey(req.UserID, req.DeclaredFilename, submittedAt, validated.Extension)

	if err := s.storage.Save(ctx, key, bytes.NewReader(req.FileBytes), validated.Size, validated.DetectedMime); err != nil {
		return nil, err
	}

	receipt := &types.Receipt{
		Fingerprint:  validated.Fingerprint,
		UserID:       req.UserID,
		Retailer:     req.Retailer,
		OrderNumber:  req.OrderNumber,
		Format:       req.Format,
		PurchaseDate: req.PurchaseDate,
		StorageKey:   key,
		MimeType:     validated.DetectedMime,
		FileSize:     validated.Size,
		Status:       types.ReceiptStatusPending,
		SourceIP:     req.SourceIP,
		UserAgent:    req.UserAgent,
		SubmittedAt:  submittedAt,
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		// The blob is orphaned either way; remove it so rejected duplicates
		// leave nothing behind.
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Errorw("Failed to clean up blob after insert failure",
				"key", key, "error", delErr)
		}
		if err == store.ErrDuplicate {
			existing, lookupErr := s.receipts.GetByFingerprint(ctx, validated.Fingerprint)
			if lookupErr != nil {
				return nil, apperrors.NewDatabaseError(lookupErr)
			}
			return nil, apperrors.Duplicate(existing.ID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	claim := &types.BonusClaim{
		ReceiptID:     receipt.ID,
		UserID:        req.UserID,
		DeliveryEmail: req.DeliveryEmail,
		Status:        types.ClaimStatusPending,
		CreatedAt:     submittedAt,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		// Roll back the receipt row and blob, otherwise the fingerprint stays
		// claimed by a receipt with no claim and every retry reads as a
		// duplicate.
		if delErr := s.receipts.Delete(ctx, receipt.ID); delErr != nil {
			s.log.Errorw("Failed to roll back receipt after claim insert failure",
				"receiptId", receipt.ID, "error", delErr)
		}
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.log.Errorw("Failed to clean up blob after claim insert failure",
				"key", key, "error", delErr)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Infow("Receipt accepted",
		"receiptId", receipt.ID,
		"userId", req.UserID,
		"mimeType", validated.DetectedMime,
		"size", validated.Size,
		"fingerprint", logger.MaskFingerprint(validated.Fingerprint))

	s.enqueueVerification(receipt.ID)

	return &types.SubmissionResult{
		ReceiptID: receipt.ID,
		Status:    receipt.Status,
	}, nil
}

// enqueueVerification hands the receipt to the worker pool. A full queue is
// not fatal: the receipt stays PENDING and can be reprocessed.
func (s *ReceiptService) enqueueVerification(receiptID string) {
	queued := s.pool.Submit(Job{
		Name: "verify-receipt-" + receiptID,
		Execute: func(ctx context.Context) error {
			return s.verifier.Run(ctx, receiptID)
		},
	})
	if !queued {
		s.log.Warnw("Verification queue full; receipt awaits reprocessing",
			"receiptId", receiptID)
	}
}

// ReceiptDetails is a receipt with its verification history.
type ReceiptDetails struct {
	Receipt  *types.Receipt                `json:"receipt"`
	Attempts []*types.VerificationMetadata `json:"attempts"`
}

// Get returns a receipt and its attempt history. Callers may only see their
// own receipts unless they are reviewers; the handler enforces that.
func (s *ReceiptService) Get(ctx context.Context, receiptID string) (*ReceiptDetails, error) {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, apperrors.NotFound("Receipt", receiptID)
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	attempts, err := s.attempts.ListByReceipt(ctx, receiptID)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return &ReceiptDetails{Receipt: receipt, Attempts: attempts}, nil
}

// Reprocess queues another verification attempt for a pending receipt.
func (s *ReceiptService) Reprocess(ctx context.Context, receiptID string) error {
	receipt, err := s.receipts.GetByID(ctx, receiptID)
	if err != nil {
		if err == store.ErrNotFound {
			return apperrors.NotFound("Receipt", receiptID)
		}
		return apperrors.NewDatabaseError(err)
	}
	if receipt.Status.IsTerminal() {
		return apperrors.InvalidStatusTransition(string(receipt.Status), string(types.ReceiptStatusPending))
	}

	s.enqueueVerification(receiptID)
	return nil
}

// ListPendingReview returns pending receipts for the reviewer queue.
func (s *ReceiptService) ListPendingReview(ctx context.Context, limit, offset int) ([]*types.Receipt, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	receipts, err := s.receipts.ListByStatus(ctx, types.ReceiptStatusPending, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}
	return receipts, nil
}
