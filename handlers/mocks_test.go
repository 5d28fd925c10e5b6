package handlers

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bookbonus/bonus-backend/config"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bookbonus/bonus-backend/internal/storage"
	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/middleware"
	"github.com/bookbonus/bonus-backend/services"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// In-memory stores shared by the handler tests.

type stubReceiptStore struct {
	mu       sync.Mutex
	nextID   int
	receipts map[string]*types.Receipt
}

func newStubReceiptStore() *stubReceiptStore {
	return &stubReceiptStore{receipts: make(map[string]*types.Receipt)}
}

func (s *stubReceiptStore) Create(_ context.Context, r *types.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.receipts {
		if existing.Fingerprint == r.Fingerprint {
			return store.ErrDuplicate
		}
	}
	s.nextID++
	r.ID = "receipt-" + strconv.Itoa(s.nextID)
	s.receipts[r.ID] = r
	return nil
}

func (s *stubReceiptStore) GetByID(_ context.Context, id string) (*types.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (s *stubReceiptStore) GetByFingerprint(_ context.Context, fp string) (*types.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.receipts {
		if r.Fingerprint == fp {
			return r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubReceiptStore) TransitionStatus(_ context.Context, id string, from, to types.ReceiptStatus, verifiedBy *string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.receipts[id]
	if !ok {
		return store.ErrNotFound
	}
	if r.Status != from {
		return store.ErrConflict
	}
	r.Status = to
	r.VerifiedBy = verifiedBy
	return nil
}

func (s *stubReceiptStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.receipts, id)
	return nil
}

func (s *stubReceiptStore) ListByStatus(_ context.Context, status types.ReceiptStatus, _, _ int) ([]*types.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Receipt
	for _, r := range s.receipts {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubVerificationStore struct{}

func (stubVerificationStore) Create(context.Context, *types.VerificationMetadata) error { return nil }
func (stubVerificationStore) ListByReceipt(context.Context, string) ([]*types.VerificationMetadata, error) {
	return nil, nil
}
func (stubVerificationStore) NextAttempt(context.Context, string) (int, error) { return 1, nil }

type stubClaimStore struct {
	mu           sync.Mutex
	claims       map[string]*types.BonusClaim
	entitlements map[string]*types.Entitlement
}

func newStubClaimStore() *stubClaimStore {
	return &stubClaimStore{
		claims:       make(map[string]*types.BonusClaim),
		entitlements: make(map[string]*types.Entitlement),
	}
}

func (s *stubClaimStore) Create(_ context.Context, c *types.BonusClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = "claim-" + c.ReceiptID
	s.claims[c.ID] = c
	return nil
}

func (s *stubClaimStore) GetByID(_ context.Context, id string) (*types.BonusClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *stubClaimStore) GetByReceiptID(_ context.Context, receiptID string) (*types.BonusClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.claims {
		if c.ReceiptID == receiptID {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubClaimStore) Approve(_ context.Context, claimID, processedBy string, entitlements []*types.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok || c.Status != types.ClaimStatusPending {
		return store.ErrConflict
	}
	c.Status = types.ClaimStatusApproved
	c.ProcessedBy = &processedBy
	for i, e := range entitlements {
		e.ID = "ent-" + strconv.Itoa(i)
		s.entitlements[e.AccessToken] = entitlements[i]
	}
	return nil
}

func (s *stubClaimStore) Reject(_ context.Context, claimID, processedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok || c.Status != types.ClaimStatusPending {
		return store.ErrConflict
	}
	c.Status = types.ClaimStatusRejected
	c.ProcessedBy = &processedBy
	return nil
}

func (s *stubClaimStore) SetDeliveryTracking(_ context.Context, claimID, trackingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.claims[claimID]; ok {
		c.DeliveryTrackingID = &trackingID
	}
	return nil
}

func (s *stubClaimStore) GetEntitlementByToken(_ context.Context, token string) (*types.Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entitlements[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e, nil
}

// noopRunner skips actual verification in handler tests.
type noopRunner struct{}

func (noopRunner) Run(context.Context, string) error { return nil }

// inlinePool executes jobs synchronously.
type inlinePool struct{}

func (inlinePool) Submit(job services.Job) bool {
	_ = job.Execute(context.Background())
	return true
}

func testAssetContent() io.Reader {
	return bytes.NewReader([]byte("PDF!"))
}

func newQuietEmailService() *services.EmailService {
	cfg := &config.EmailConfig{FromAddress: "bonus@example.com", FromName: "Book Bonus"}
	return services.NewEmailServiceWithRegistry(cfg, "https://bonus.example.com", prometheus.NewRegistry())
}

// testEnv wires real services over the in-memory stores.
type testEnv struct {
	router       *gin.Engine
	receipts     *stubReceiptStore
	claims       *stubClaimStore
	entitlements *services.EntitlementService
	storage      storage.FileStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	receipts := newStubReceiptStore()
	claims := newStubClaimStore()
	fs := storage.NewLocalFileStorage(t.TempDir())

	assets := []types.BonusAsset{
		{Slug: "bonus-chapter", Name: "Bonus Chapter", StorageKey: "assets/bonus-chapter.pdf"},
	}
	for _, a := range assets {
		require.NoError(t, fs.Save(context.Background(), a.StorageKey,
			testAssetContent(), 4, "application/pdf"))
	}

	entitlementSvc := services.NewEntitlementService(claims, fs, testSigningKey, 24*time.Hour, assets)
	emailSvc := newQuietEmailService()
	fulfillment := services.NewFulfillmentService(claims, entitlementSvc, emailSvc, assets)
	receiptSvc := services.NewReceiptService(receipts, stubVerificationStore{}, claims, fs, noopRunner{}, inlinePool{})
	reviewSvc := services.NewReviewService(receipts, fulfillment)

	receiptHandler := NewReceiptHandler(receiptSvc)
	reviewHandler := NewReviewHandler(reviewSvc)
	bonusHandler := NewBonusHandler(entitlementSvc)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.ErrorHandler())

	v1 := r.Group("/v1")
	userRoutes := v1.Group("", middleware.RequireUser())
	userRoutes.POST("/receipts", receiptHandler.Submit)
	userRoutes.GET("/receipts/:id", receiptHandler.Get)

	reviewRoutes := v1.Group("/review", middleware.RequireReviewer("review-key"))
	reviewRoutes.GET("/receipts", receiptHandler.ListPending)
	reviewRoutes.GET("/receipts/:id", receiptHandler.Get)
	reviewRoutes.POST("/receipts/:id", reviewHandler.Review)
	reviewRoutes.POST("/receipts/:id/reprocess", receiptHandler.Reprocess)

	v1.GET("/bonus/:token", bonusHandler.Redeem)

	return &testEnv{
		router:       r,
		receipts:     receipts,
		claims:       claims,
		entitlements: entitlementSvc,
		storage:      fs,
	}
}
