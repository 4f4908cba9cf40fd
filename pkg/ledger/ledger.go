package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/mcclellann/staffLoan/pkg/metrics"
	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/mcclellann/staffLoan/pkg/store"
	"github.com/shopspring/decimal"
)

// activeStatuses are the statuses eligible for repayment matching.
var activeStatuses = []models.LoanStatus{models.LoanStatusApproved, models.LoanStatusPaid}

// Ledger handles the business logic for staff, payments and loans.
type Ledger struct {
	storage store.Storage
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ActiveLoan returns the staff member's newest non-deleted loan that is
// approved or paid. It returns ErrNoActiveLoan when there is none.
func ActiveLoan(ctx context.Context, s store.Storage, staffID string) (*models.Loan, error) {
	loans, err := s.ListLoans(ctx, store.LoanFilter{
		StaffID:        staffID,
		Statuses:       activeStatuses,
		ExcludeDeleted: true,
		Order:          store.SortByIDDesc,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return nil, ErrNoActiveLoan
	}
	return loans[0], nil
}

// RequestLoan records a staff-initiated loan request. The rate follows the
// tenure table and totals are computed before the loan is stored.
func (l *Ledger) RequestLoan(ctx context.Context, staffID string, amount decimal.Decimal, tenureMonths int) (*models.Loan, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if tenureMonths < 1 {
		return nil, ErrInvalidTenure
	}
	if _, err := l.storage.GetStaffByStaffID(ctx, staffID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownStaff
		}
		return nil, err
	}

	loan := &models.Loan{
		StaffID:      staffID,
		Amount:       amount,
		InterestRate: RateForTenure(tenureMonths),
		TenureMonths: tenureMonths,
		PaidAmount:   models.Known(decimal.Zero),
		Status:       models.LoanStatusPending,
		RequestedOn:  l.now(),
	}
	ComputeTotals(loan)

	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}

	tier := "standard"
	if tenureMonths == PreferredTenureMonths {
		tier = "preferred"
	}
	metrics.LoanRequests.WithLabelValues(tier).Inc()
	logger.Info(ctx, "loan requested",
		slog.Int64("loan_id", loan.ID),
		slog.String("staff_id", staffID),
		slog.String("amount", amount.String()),
		slog.Int("tenure_months", tenureMonths))
	return loan, nil
}

// ApproveLoan moves a pending loan to approved.
func (l *Ledger) ApproveLoan(ctx context.Context, id int64) (*models.Loan, error) {
	return l.decide(ctx, id, models.LoanStatusApproved)
}

// RejectLoan moves a pending loan to rejected.
func (l *Ledger) RejectLoan(ctx context.Context, id int64) (*models.Loan, error) {
	return l.decide(ctx, id, models.LoanStatusRejected)
}

func (l *Ledger) decide(ctx context.Context, id int64, to models.LoanStatus) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusPending {
		return loan, ErrInvalidTransition
	}
	loan.Status = to
	if err := l.storage.UpdateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan status: %w", err)
	}
	metrics.LoanTransitions.WithLabelValues(string(to)).Inc()
	logger.Info(ctx, "loan decided", slog.Int64("loan_id", id), slog.String("status", string(to)))
	return loan, nil
}

// RecordRepayment applies a repayment directly to a specific active loan.
func (l *Ledger) RecordRepayment(ctx context.Context, loanID int64, amount decimal.Decimal) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Deleted || !loan.Status.Active() {
		return nil, ErrNoActiveLoan
	}
	wasPaid := loan.Status == models.LoanStatusPaid
	if err := ApplyPayment(loan, amount); err != nil {
		return nil, err
	}
	if err := l.storage.UpdateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to update loan balance: %w", err)
	}
	if !wasPaid && loan.Status == models.LoanStatusPaid {
		metrics.LoanTransitions.WithLabelValues(string(models.LoanStatusPaid)).Inc()
	}
	return loan, nil
}

// Staff administration

// ApproveStaff flips the approval flag of a registered staff member.
func (l *Ledger) ApproveStaff(ctx context.Context, id int64) (*models.Staff, error) {
	st, err := l.storage.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Approved = true
	if err := l.storage.UpdateStaff(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to approve staff: %w", err)
	}
	return st, nil
}

// RejectStaff deletes a staff registration. Staff that own payments or loans
// are kept and ErrStaffHasRecords is returned along with the record.
func (l *Ledger) RejectStaff(ctx context.Context, id int64) (*models.Staff, error) {
	st, err := l.storage.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	err = l.storage.DeleteStaff(ctx, id)
	switch {
	case errors.Is(err, store.ErrForeignKey):
		return st, ErrStaffHasRecords
	case err != nil:
		return nil, fmt.Errorf("failed to remove staff %s: %w", st.StaffID, err)
	}
	return st, nil
}

// Views

// Overview is the admin dashboard summary.
type Overview struct {
	StaffCount    int64
	PaymentsCount int64
	LoansCount    int64
	PendingStaff  []*models.Staff
}

// AdminOverview returns record counts and the staff awaiting approval.
func (l *Ledger) AdminOverview(ctx context.Context) (*Overview, error) {
	var (
		ov  Overview
		err error
	)
	if ov.StaffCount, err = l.storage.CountStaff(ctx); err != nil {
		return nil, err
	}
	if ov.PaymentsCount, err = l.storage.CountPayments(ctx); err != nil {
		return nil, err
	}
	if ov.LoansCount, err = l.storage.CountLoans(ctx); err != nil {
		return nil, err
	}
	pending := false
	if ov.PendingStaff, err = l.storage.ListStaff(ctx, store.StaffFilter{Approved: &pending}); err != nil {
		return nil, err
	}
	return &ov, nil
}

// AllStaff lists every staff member, newest first.
func (l *Ledger) AllStaff(ctx context.Context) ([]*models.Staff, error) {
	return l.storage.ListStaff(ctx, store.StaffFilter{})
}

// AllPayments lists every payment, newest first.
func (l *Ledger) AllPayments(ctx context.Context) ([]*models.Payment, error) {
	return l.storage.ListPayments(ctx, store.PaymentFilter{Order: store.SortByIDDesc})
}

// PendingLoans lists loans awaiting a decision, most recently requested first.
func (l *Ledger) PendingLoans(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.ListLoans(ctx, store.LoanFilter{
		Statuses: []models.LoanStatus{models.LoanStatusPending},
		Order:    store.SortByDateDesc,
	})
}

// PaymentsForReport lists payments newest created first.
func (l *Ledger) PaymentsForReport(ctx context.Context) ([]*models.Payment, error) {
	return l.storage.ListPayments(ctx, store.PaymentFilter{Order: store.SortByDateDesc})
}

// LoansForReport lists loans newest requested first.
func (l *Ledger) LoansForReport(ctx context.Context) ([]*models.Loan, error) {
	return l.storage.ListLoans(ctx, store.LoanFilter{Order: store.SortByDateDesc})
}

// Dashboard is the staff member's own view.
type Dashboard struct {
	Payments         []*models.Payment
	Loans            []*models.Loan
	TotalPayments    decimal.Decimal
	OutstandingLoans decimal.Decimal
}

// StaffDashboard loads a staff member's payments and active loans. Loans are
// normalized and any repaired rows are written back before totals are taken.
func (l *Ledger) StaffDashboard(ctx context.Context, staffID string) (*Dashboard, error) {
	payments, err := l.storage.ListPayments(ctx, store.PaymentFilter{StaffID: staffID, Order: store.SortByIDAsc})
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}

	var loans []*models.Loan
	err = l.storage.InTx(ctx, func(tx store.Storage) error {
		loans, err = tx.ListLoans(ctx, store.LoanFilter{
			StaffID:        staffID,
			Statuses:       activeStatuses,
			ExcludeDeleted: true,
			Order:          store.SortByIDDesc,
		})
		if err != nil {
			return err
		}
		for _, loan := range NormalizeDashboardView(loans) {
			if err := tx.UpdateLoan(ctx, loan); err != nil {
				return err
			}
			logger.Debug(ctx, "loan normalized", slog.Int64("loan_id", loan.ID), slog.String("status", string(loan.Status)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for %s: %w", staffID, err)
	}

	return &Dashboard{
		Payments:         payments,
		Loans:            loans,
		TotalPayments:    total,
		OutstandingLoans: OutstandingTotal(loans),
	}, nil
}
