// Package batch ingests admin-uploaded payment and loan CSV files into the
// ledger.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mcclellann/staffLoan/pkg/ledger"
	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/mcclellann/staffLoan/pkg/metrics"
	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/mcclellann/staffLoan/pkg/store"
	"github.com/shopspring/decimal"
)

// ErrBatchProcessingFailed wraps any error that aborted a loan batch. Nothing
// from the batch was committed.
var ErrBatchProcessingFailed = errors.New("batch processing failed")

var (
	PaymentColumns = []string{"staff_id", "amount", "month"}
	LoanColumns    = []string{"staff_id", "amount", "status"}
)

// Statuses in a loan batch that mean "apply this amount to the active loan".
var repaymentStatuses = map[string]bool{
	"paid":      true,
	"repayment": true,
	"paid_part": true,
}

// Level is the category of a Notice, matching the flash categories.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Notice is a user-facing message produced while processing a row.
type Notice struct {
	Level   Level
	Message string
}

// Result summarizes a batch run.
type Result struct {
	Created int
	Repaid  int
	Skipped int
	Notices []Notice

	outcomes []string
}

func (r *Result) notify(level Level, format string, args ...any) {
	r.Notices = append(r.Notices, Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) record(outcome string) {
	switch outcome {
	case metrics.OutcomeCreated:
		r.Created++
	case metrics.OutcomeRepaid:
		r.Repaid++
	default:
		r.Skipped++
	}
	r.outcomes = append(r.outcomes, outcome)
}

func (r *Result) flush(kind string) {
	for _, o := range r.outcomes {
		metrics.BatchRows.WithLabelValues(kind, o).Inc()
	}
	r.outcomes = nil
}

// Processor applies uploaded batches to storage.
type Processor struct {
	storage store.Storage
	now     func() time.Time
}

// NewProcessor creates a Processor over s.
func NewProcessor(s store.Storage) *Processor {
	return &Processor{
		storage: s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// IngestPaymentBatch creates one Payment per row whose staff_id is
// registered. Rows for unknown staff are skipped silently.
//
// Rows are written as they are read, outside any transaction: an invalid
// row aborts the batch but payments from earlier rows stay recorded. The
// returned Result reflects what was written even when err is non-nil.
func (p *Processor) IngestPaymentBatch(ctx context.Context, r io.Reader) (*Result, error) {
	t, err := readTable(r, PaymentColumns)
	if err != nil {
		metrics.BatchRuns.WithLabelValues(metrics.BatchPayments, metrics.ResultRejected).Inc()
		return nil, err
	}

	res := &Result{}
	done := logger.LogDuration(ctx, "payment batch processed", slog.Int("rows", len(t.Rows())))
	defer func() {
		res.flush(metrics.BatchPayments)
		done()
	}()

	for _, row := range t.Rows() {
		if err := p.paymentRow(ctx, row, res); err != nil {
			metrics.BatchRuns.WithLabelValues(metrics.BatchPayments, metrics.ResultFailed).Inc()
			logger.Error(ctx, "payment batch aborted",
				slog.Int("line", row.Line()),
				slog.Int("created", res.Created),
				slog.Any("error", err))
			return res, fmt.Errorf("line %d: %w", row.Line(), err)
		}
	}

	metrics.BatchRuns.WithLabelValues(metrics.BatchPayments, metrics.ResultOK).Inc()
	res.notify(LevelSuccess, "Payments uploaded successfully!")
	return res, nil
}

func (p *Processor) paymentRow(ctx context.Context, row Row, res *Result) error {
	staffID := row.Get("staff_id")
	st, err := p.storage.GetStaffByStaffID(ctx, staffID)
	if errors.Is(err, store.ErrNotFound) {
		res.record(metrics.OutcomeSkippedUnknownStaff)
		return nil
	}
	if err != nil {
		return err
	}

	amount, err := parseAmount(row.Get("amount"))
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidAmount, amount)
	}

	payment := &models.Payment{
		StaffID:   st.StaffID,
		Amount:    amount,
		Month:     row.Get("month"),
		CreatedOn: p.now(),
	}
	if err := p.storage.CreatePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to store payment: %w", err)
	}
	res.record(metrics.OutcomeCreated)
	return nil
}

// IngestLoanBatch processes a loan batch inside a single transaction.
// Rows whose status is paid, repayment or paid_part are repayments applied to
// the staff member's active loan; every other row creates a loan with the
// given principal and no computed interest. Unknown staff and repayments
// without an active loan are skipped with a warning notice.
//
// Any other error rolls back the whole batch and is returned wrapped in
// ErrBatchProcessingFailed.
func (p *Processor) IngestLoanBatch(ctx context.Context, r io.Reader) (*Result, error) {
	t, err := readTable(r, LoanColumns)
	if err != nil {
		metrics.BatchRuns.WithLabelValues(metrics.BatchLoans, metrics.ResultRejected).Inc()
		return nil, err
	}

	done := logger.LogDuration(ctx, "loan batch processed", slog.Int("rows", len(t.Rows())))
	defer done()

	var res *Result
	err = p.storage.InTx(ctx, func(tx store.Storage) error {
		res = &Result{}
		for _, row := range t.Rows() {
			if err := p.loanRow(ctx, tx, row, res); err != nil {
				return fmt.Errorf("line %d: %w", row.Line(), err)
			}
		}
		return nil
	})
	if err != nil {
		metrics.BatchRuns.WithLabelValues(metrics.BatchLoans, metrics.ResultFailed).Inc()
		logger.Error(ctx, "loan batch rolled back", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrBatchProcessingFailed, err)
	}

	res.flush(metrics.BatchLoans)
	metrics.BatchRuns.WithLabelValues(metrics.BatchLoans, metrics.ResultOK).Inc()
	res.notify(LevelSuccess, "Loan data processed successfully!")
	return res, nil
}

func (p *Processor) loanRow(ctx context.Context, tx store.Storage, row Row, res *Result) error {
	staffID := row.Get("staff_id")
	amount, err := parseAmount(row.Get("amount"))
	if err != nil {
		return err
	}
	status := strings.ToLower(row.Get("status"))

	if _, err := tx.GetStaffByStaffID(ctx, staffID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		logger.Warn(ctx, "loan batch row skipped", slog.String("staff_id", staffID), slog.String("reason", "unknown staff"))
		res.notify(LevelWarning, "Staff ID %s not found.", staffID)
		res.record(metrics.OutcomeSkippedUnknownStaff)
		return nil
	}

	if repaymentStatuses[status] {
		return p.repay(ctx, tx, staffID, amount, res)
	}

	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidAmount, amount)
	}
	loan := &models.Loan{
		StaffID:       staffID,
		Amount:        amount,
		InterestRate:  decimal.Zero,
		TenureMonths:  ledger.PreferredTenureMonths,
		TotalAmount:   models.Known(decimal.Zero),
		PaidAmount:    models.Known(decimal.Zero),
		BalanceAmount: models.Known(decimal.Zero),
		Status:        coerceStatus(status),
		RequestedOn:   p.now(),
	}
	if err := tx.CreateLoan(ctx, loan); err != nil {
		return fmt.Errorf("failed to store loan: %w", err)
	}
	res.record(metrics.OutcomeCreated)
	return nil
}

func (p *Processor) repay(ctx context.Context, tx store.Storage, staffID string, amount decimal.Decimal, res *Result) error {
	loan, err := ledger.ActiveLoan(ctx, tx, staffID)
	if errors.Is(err, ledger.ErrNoActiveLoan) {
		logger.Warn(ctx, "loan batch row skipped", slog.String("staff_id", staffID), slog.String("reason", "no active loan"))
		res.notify(LevelWarning, "No active loan found for %s.", staffID)
		res.record(metrics.OutcomeSkippedNoActiveLoan)
		return nil
	}
	if err != nil {
		return err
	}

	if err := ledger.ApplyPayment(loan, amount); err != nil {
		return fmt.Errorf("%w: %s", err, amount)
	}
	if err := tx.UpdateLoan(ctx, loan); err != nil {
		return fmt.Errorf("failed to update loan %d: %w", loan.ID, err)
	}

	if loan.Status == models.LoanStatusPaid && !loan.Balance().IsPositive() {
		res.notify(LevelSuccess, "Loan for %s fully repaid and closed.", staffID)
	} else {
		res.notify(LevelInfo, "%s repaid %s. Remaining: %s", staffID, amount, loan.Balance().StringFixed(2))
	}
	res.record(metrics.OutcomeRepaid)
	return nil
}

// coerceStatus maps a batch status onto the statuses a new loan may take.
func coerceStatus(s string) models.LoanStatus {
	switch st := models.LoanStatus(s); st {
	case models.LoanStatusApproved, models.LoanStatusPending, models.LoanStatusRejected:
		return st
	default:
		return models.LoanStatusPending
	}
}

func readTable(r io.Reader, required []string) (*Table, error) {
	t, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if err := t.Require(required...); err != nil {
		return nil, err
	}
	return t, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}
