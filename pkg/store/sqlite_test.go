package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/shopspring/decimal"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) Storage { return newTestSQLiteStore(t) })
}

func TestSQLiteStore_SchemaIsReentrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("second open should tolerate existing columns: %v", err)
	}
	s.Close()
}

func TestSQLiteStore_NullDerivedFields(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()
	mustCreateStaff(t, s, "S1")

	loan := &models.Loan{
		StaffID:      "S1",
		Amount:       decimal.NewFromInt(300),
		TenureMonths: 10,
		Status:       models.LoanStatusApproved,
		RequestedOn:  time.Now(),
	}
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	got, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if got.TotalAmount.Valid || got.PaidAmount.Valid || got.BalanceAmount.Valid {
		t.Errorf("expected NULL derived fields, got total=%v paid=%v balance=%v", got.TotalAmount, got.PaidAmount, got.BalanceAmount)
	}
	if !got.Total().Equal(decimal.NewFromInt(300)) {
		t.Errorf("Total() should fall back to principal, got %s", got.Total())
	}
}
