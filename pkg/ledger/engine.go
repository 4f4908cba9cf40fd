package ledger

import (
	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/shopspring/decimal"
)

// PreferredTenureMonths is the only tenure that earns the reduced rate.
const PreferredTenureMonths = 10

var (
	hundred       = decimal.NewFromInt(100)
	preferredRate = decimal.NewFromInt(5)
	standardRate  = decimal.NewFromInt(10)
)

// RateForTenure returns the flat interest percentage for a staff loan request.
func RateForTenure(tenureMonths int) decimal.Decimal {
	if tenureMonths == PreferredTenureMonths {
		return preferredRate
	}
	return standardRate
}

// ComputeTotals sets total = principal + principal*rate/100 and resets the
// balance to that total.
func ComputeTotals(loan *models.Loan) {
	interest := loan.Amount.Mul(loan.InterestRate).Div(hundred)
	total := loan.Amount.Add(interest)
	loan.TotalAmount = models.Known(total)
	loan.BalanceAmount = models.Known(total)
}

// ApplyPayment adds amount to the paid total and re-derives the balance.
// It is not idempotent. An active loan whose balance reaches zero becomes
// paid; pending and rejected loans keep their status.
func ApplyPayment(loan *models.Loan, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	paid := loan.Paid().Add(amount)
	loan.PaidAmount = models.Known(paid)
	loan.BalanceAmount = models.Known(decimal.Max(decimal.Zero, loan.Total().Sub(paid)))
	if loan.Status.Active() && !loan.BalanceAmount.Decimal.IsPositive() {
		loan.Status = models.LoanStatusPaid
	}
	return nil
}

// NormalizeDashboardView repairs derived fields before balances are shown and
// returns the loans it changed so callers can persist them.
func NormalizeDashboardView(loans []*models.Loan) []*models.Loan {
	var changed []*models.Loan
	for _, loan := range loans {
		dirty := false
		if !loan.TotalAmount.Valid {
			loan.TotalAmount = models.Known(loan.Amount)
			dirty = true
		}
		if !loan.PaidAmount.Valid {
			loan.PaidAmount = models.Known(decimal.Zero)
			dirty = true
		}
		if !loan.BalanceAmount.Valid || loan.BalanceAmount.Decimal.IsNegative() {
			loan.BalanceAmount = models.Known(loan.TotalAmount.Decimal.Sub(loan.PaidAmount.Decimal))
			dirty = true
		}
		if loan.Status.Active() && loan.Status != models.LoanStatusPaid && !loan.BalanceAmount.Decimal.IsPositive() {
			loan.Status = models.LoanStatusPaid
			dirty = true
		}
		if dirty {
			changed = append(changed, loan)
		}
	}
	return changed
}

// OutstandingTotal sums the positive balances of loans.
func OutstandingTotal(loans []*models.Loan) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range loans {
		if b := l.Balance(); b.IsPositive() {
			sum = sum.Add(b)
		}
	}
	return sum
}
