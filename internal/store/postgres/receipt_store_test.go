package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/bookbonus/bonus-backend/internal/store"
	"github.com/bookbonus/bonus-backend/types"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReceiptFixture() *types.Receipt {
	return &types.Receipt{
		Fingerprint: "abc123fingerprint",
		UserID:      "user-1",
		Retailer:    "Amazon",
		Format:      types.FormatHardcover,
		StorageKey:  "receipts/user-1/deadbeef.pdf",
		MimeType:    "application/pdf",
		FileSize:    2048,
		Status:      types.ReceiptStatusPending,
		SourceIP:    "203.0.113.7",
		UserAgent:   "test-agent",
		SubmittedAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReceiptStore_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)
	receipt := newReceiptFixture()

	mock.ExpectQuery(`INSERT INTO receipts`).
		WithArgs(
			receipt.Fingerprint, receipt.UserID, receipt.Retailer, receipt.OrderNumber,
			receipt.Format, receipt.PurchaseDate, receipt.StorageKey, receipt.MimeType,
			receipt.FileSize, receipt.Status, receipt.SourceIP, receipt.UserAgent,
			receipt.SubmittedAt,
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("receipt-uuid-1"))

	require.NoError(t, s.Create(context.Background(), receipt))
	assert.Equal(t, "receipt-uuid-1", receipt.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_Create_FingerprintCollision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)

	mock.ExpectQuery(`INSERT INTO receipts`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "receipts_fingerprint_key"})

	err = s.Create(context.Background(), newReceiptFixture())
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_TransitionStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)
	reviewer := "reviewer-1"

	mock.ExpectExec(`UPDATE receipts`).
		WithArgs(types.ReceiptStatusVerified, &reviewer, "looks legit", "receipt-1", types.ReceiptStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = s.TransitionStatus(context.Background(), "receipt-1",
		types.ReceiptStatusPending, types.ReceiptStatusVerified, &reviewer, "looks legit")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_TransitionStatus_AlreadyTerminal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)

	// The guarded UPDATE matches nothing because the receipt already left
	// PENDING, then the existence check finds the row.
	mock.ExpectExec(`UPDATE receipts`).
		WithArgs(types.ReceiptStatusRejected, (*string)(nil), "", "receipt-1", types.ReceiptStatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	verifiedAt := time.Now()
	verifiedBy := "system"
	mock.ExpectQuery(`SELECT`).
		WithArgs("receipt-1").
		WillReturnRows(receiptRows().AddRow(
			"receipt-1", "fp", "user-1", "Amazon", nil, types.FormatHardcover, nil,
			"key", "application/pdf", int64(2048), types.ReceiptStatusVerified,
			"203.0.113.7", "agent", time.Now(), &verifiedAt, &verifiedBy, nil,
		))

	err = s.TransitionStatus(context.Background(), "receipt-1",
		types.ReceiptStatusPending, types.ReceiptStatusRejected, nil, "")
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_Delete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)

	mock.ExpectExec(`DELETE FROM receipts`).
		WithArgs("receipt-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.NoError(t, s.Delete(context.Background(), "receipt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_Delete_MissingRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)

	mock.ExpectExec(`DELETE FROM receipts`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = s.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptStore_GetByFingerprint_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := NewReceiptStore(mock)

	mock.ExpectQuery(`SELECT`).
		WithArgs("missing-fp").
		WillReturnRows(receiptRows())

	_, err = s.GetByFingerprint(context.Background(), "missing-fp")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func receiptRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "fingerprint", "user_id", "retailer", "order_number", "format",
		"purchase_date", "storage_key", "mime_type", "file_size", "status",
		"source_ip", "user_agent", "submitted_at", "verified_at", "verified_by", "notes",
	})
}
