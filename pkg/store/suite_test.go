package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/shopspring/decimal"
)

func mustCreateStaff(t *testing.T, s Storage, staffID string) *models.Staff {
	t.Helper()
	st := &models.Staff{
		StaffID:      staffID,
		Name:         "Name " + staffID,
		PasswordHash: "hash",
		RegisteredOn: time.Now(),
	}
	if err := s.CreateStaff(context.Background(), st); err != nil {
		t.Fatalf("CreateStaff(%s): %v", staffID, err)
	}
	return st
}

// runStorageSuite exercises the behavior every Storage implementation must share.
func runStorageSuite(t *testing.T, open func(t *testing.T) Storage) {
	t.Run("Admins", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		admin := &models.Admin{Email: "admin@example.com", PasswordHash: "x"}
		if err := s.CreateAdmin(ctx, admin); err != nil {
			t.Fatalf("CreateAdmin: %v", err)
		}
		if admin.ID == 0 {
			t.Fatal("expected admin ID to be assigned")
		}
		got, err := s.GetAdminByEmail(ctx, "admin@example.com")
		if err != nil {
			t.Fatalf("GetAdminByEmail: %v", err)
		}
		if got.ID != admin.ID {
			t.Errorf("ID = %d, want %d", got.ID, admin.ID)
		}
		if _, err := s.GetAdmin(ctx, admin.ID+100); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetAdmin(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("StaffLifecycle", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		a := mustCreateStaff(t, s, "S1")
		b := mustCreateStaff(t, s, "S2")

		pending := false
		list, err := s.ListStaff(ctx, StaffFilter{Approved: &pending})
		if err != nil {
			t.Fatalf("ListStaff: %v", err)
		}
		if len(list) != 2 || list[0].ID != b.ID {
			t.Fatalf("expected 2 pending staff newest first, got %+v", list)
		}

		a.Approved = true
		if err := s.UpdateStaff(ctx, a); err != nil {
			t.Fatalf("UpdateStaff: %v", err)
		}
		got, err := s.GetStaffByStaffID(ctx, "S1")
		if err != nil {
			t.Fatalf("GetStaffByStaffID: %v", err)
		}
		if !got.Approved {
			t.Error("expected S1 to be approved")
		}

		if err := s.DeleteStaff(ctx, b.ID); err != nil {
			t.Fatalf("DeleteStaff: %v", err)
		}
		if _, err := s.GetStaff(ctx, b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetStaff after delete error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteStaff(ctx, b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second DeleteStaff error = %v, want ErrNotFound", err)
		}
		n, err := s.CountStaff(ctx)
		if err != nil || n != 1 {
			t.Errorf("CountStaff = %d, %v; want 1", n, err)
		}
	})

	t.Run("ForeignKeys", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		err := s.CreatePayment(ctx, &models.Payment{
			StaffID:   "NOPE",
			Amount:    decimal.NewFromInt(1),
			Month:     "Jan",
			CreatedOn: time.Now(),
		})
		if !errors.Is(err, ErrForeignKey) {
			t.Errorf("CreatePayment(unknown staff) error = %v, want ErrForeignKey", err)
		}
		err = s.CreateLoan(ctx, &models.Loan{
			StaffID:     "NOPE",
			Amount:      decimal.NewFromInt(1),
			Status:      models.LoanStatusPending,
			RequestedOn: time.Now(),
		})
		if !errors.Is(err, ErrForeignKey) {
			t.Errorf("CreateLoan(unknown staff) error = %v, want ErrForeignKey", err)
		}

		paid := mustCreateStaff(t, s, "S1")
		if err := s.CreatePayment(ctx, &models.Payment{
			StaffID:   "S1",
			Amount:    decimal.NewFromInt(100),
			Month:     "Jan",
			CreatedOn: time.Now(),
		}); err != nil {
			t.Fatalf("CreatePayment: %v", err)
		}
		borrower := mustCreateStaff(t, s, "S2")
		if err := s.CreateLoan(ctx, &models.Loan{
			StaffID:     "S2",
			Amount:      decimal.NewFromInt(100),
			Status:      models.LoanStatusPending,
			RequestedOn: time.Now(),
		}); err != nil {
			t.Fatalf("CreateLoan: %v", err)
		}

		for _, st := range []*models.Staff{paid, borrower} {
			if err := s.DeleteStaff(ctx, st.ID); !errors.Is(err, ErrForeignKey) {
				t.Errorf("DeleteStaff(%s) error = %v, want ErrForeignKey", st.StaffID, err)
			}
		}
		if n, _ := s.CountStaff(ctx); n != 2 {
			t.Errorf("referenced staff must survive, CountStaff = %d", n)
		}
	})

	t.Run("PaymentsOrdering", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustCreateStaff(t, s, "S1")
		mustCreateStaff(t, s, "S2")
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, sid := range []string{"S1", "S2", "S1"} {
			p := &models.Payment{
				StaffID:   sid,
				Amount:    decimal.NewFromInt(int64(100 * (i + 1))),
				Month:     "Jan",
				CreatedOn: base.Add(time.Duration(2-i) * time.Hour),
			}
			if err := s.CreatePayment(ctx, p); err != nil {
				t.Fatalf("CreatePayment: %v", err)
			}
		}

		byDate, err := s.ListPayments(ctx, PaymentFilter{Order: SortByDateDesc})
		if err != nil {
			t.Fatalf("ListPayments: %v", err)
		}
		if len(byDate) != 3 || !byDate[0].Amount.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected oldest-inserted (latest created_on) first, got %+v", byDate)
		}

		mine, err := s.ListPayments(ctx, PaymentFilter{StaffID: "S1", Order: SortByIDAsc})
		if err != nil {
			t.Fatalf("ListPayments(S1): %v", err)
		}
		if len(mine) != 2 || !mine[1].Amount.Equal(decimal.NewFromInt(300)) {
			t.Errorf("unexpected S1 payments: %+v", mine)
		}
	})

	t.Run("LoanFilters", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustCreateStaff(t, s, "S1")
		statuses := []models.LoanStatus{models.LoanStatusApproved, models.LoanStatusPending, models.LoanStatusPaid, models.LoanStatusApproved}
		var ids []int64
		for _, st := range statuses {
			l := &models.Loan{
				StaffID:       "S1",
				Amount:        decimal.NewFromInt(500),
				InterestRate:  decimal.NewFromInt(5),
				TenureMonths:  10,
				TotalAmount:   models.Known(decimal.NewFromInt(525)),
				PaidAmount:    models.Known(decimal.Zero),
				BalanceAmount: models.Known(decimal.NewFromInt(525)),
				Status:        st,
				RequestedOn:   time.Now(),
			}
			if err := s.CreateLoan(ctx, l); err != nil {
				t.Fatalf("CreateLoan: %v", err)
			}
			ids = append(ids, l.ID)
		}

		newest, err := s.GetLoan(ctx, ids[3])
		if err != nil {
			t.Fatalf("GetLoan: %v", err)
		}
		newest.Deleted = true
		if err := s.UpdateLoan(ctx, newest); err != nil {
			t.Fatalf("UpdateLoan: %v", err)
		}

		active, err := s.ListLoans(ctx, LoanFilter{
			StaffID:        "S1",
			Statuses:       []models.LoanStatus{models.LoanStatusApproved, models.LoanStatusPaid},
			ExcludeDeleted: true,
			Order:          SortByIDDesc,
			Limit:          1,
		})
		if err != nil {
			t.Fatalf("ListLoans: %v", err)
		}
		if len(active) != 1 || active[0].ID != ids[2] {
			t.Fatalf("expected newest non-deleted active loan %d, got %+v", ids[2], active)
		}
		if !active[0].TotalAmount.Valid || !active[0].TotalAmount.Decimal.Equal(decimal.NewFromInt(525)) {
			t.Errorf("TotalAmount = %v, want 525", active[0].TotalAmount)
		}

		n, err := s.CountLoans(ctx)
		if err != nil || n != 4 {
			t.Errorf("CountLoans = %d, %v; want 4", n, err)
		}
	})

	t.Run("InTxRollsBack", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		mustCreateStaff(t, s, "S1")
		boom := errors.New("boom")

		err := s.InTx(ctx, func(tx Storage) error {
			if err := tx.CreateLoan(ctx, &models.Loan{
				StaffID:     "S1",
				Amount:      decimal.NewFromInt(10),
				Status:      models.LoanStatusPending,
				RequestedOn: time.Now(),
			}); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTx error = %v, want boom", err)
		}
		if n, _ := s.CountLoans(ctx); n != 0 {
			t.Errorf("expected rollback to discard loan, found %d", n)
		}

		err = s.InTx(ctx, func(tx Storage) error {
			return tx.CreatePayment(ctx, &models.Payment{
				StaffID:   "S1",
				Amount:    decimal.NewFromInt(10),
				Month:     "Feb",
				CreatedOn: time.Now(),
			})
		})
		if err != nil {
			t.Fatalf("InTx commit: %v", err)
		}
		if n, _ := s.CountPayments(ctx); n != 1 {
			t.Errorf("expected committed payment, found %d", n)
		}
	})
}
