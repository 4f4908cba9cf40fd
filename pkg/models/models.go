package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a Loan.
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusApproved LoanStatus = "approved"
	LoanStatusRejected LoanStatus = "rejected"
	LoanStatusPaid     LoanStatus = "paid"
)

// Active reports whether a loan in this status can receive repayments.
func (s LoanStatus) Active() bool {
	return s == LoanStatusApproved || s == LoanStatusPaid
}

// Admin is the administrator principal. It shares no table with Staff.
type Admin struct {
	ID           int64  `json:"id" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"column:email;size:120;uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"column:password;size:255;not null"`
}

func (Admin) TableName() string { return "admins" }

// Staff is a self-registered employee. Payments and loans reference StaffID,
// not the numeric ID.
type Staff struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	StaffID      string    `json:"staff_id" gorm:"column:staff_id;size:20;uniqueIndex;not null"`
	Name         string    `json:"name" gorm:"column:name;size:120;not null"`
	PasswordHash string    `json:"-" gorm:"column:password;size:255;not null"`
	Approved     bool      `json:"approved" gorm:"column:approved;not null;default:false"`
	RegisteredOn time.Time `json:"registered_on" gorm:"column:registered_on;not null"`
}

func (Staff) TableName() string { return "staff" }

// Payment is an immutable salary payment fact uploaded by an admin. Staff is
// only declared for the schema's foreign key and is never loaded.
type Payment struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	StaffID   string          `json:"staff_id" gorm:"column:staff_id;size:20;index;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(20,4);not null"`
	Month     string          `json:"month" gorm:"column:month;size:20;not null"`
	CreatedOn time.Time       `json:"created_on" gorm:"column:created_on;not null"`

	Staff *Staff `json:"-" gorm:"foreignKey:StaffID;references:StaffID"`
}

func (Payment) TableName() string { return "payments" }

// Loan is the mutable loan record. TotalAmount, PaidAmount and BalanceAmount
// are nullable so rows written without derived fields can be told apart from
// rows whose derived fields are zero.
type Loan struct {
	ID            int64               `json:"id" gorm:"primaryKey"`
	StaffID       string              `json:"staff_id" gorm:"column:staff_id;size:20;index;not null"`
	Amount        decimal.Decimal     `json:"amount" gorm:"column:amount;type:numeric(20,4);not null"`
	InterestRate  decimal.Decimal     `json:"interest_rate" gorm:"column:interest_rate;type:numeric(10,4);not null;default:0"`
	TenureMonths  int                 `json:"tenure_months" gorm:"column:tenure_months;not null;default:10"`
	TotalAmount   decimal.NullDecimal `json:"total_amount" gorm:"column:total_amount;type:numeric(20,4)"`
	PaidAmount    decimal.NullDecimal `json:"paid_amount" gorm:"column:paid_amount;type:numeric(20,4)"`
	BalanceAmount decimal.NullDecimal `json:"balance_amount" gorm:"column:balance_amount;type:numeric(20,4)"`
	Status        LoanStatus          `json:"status" gorm:"column:status;size:20;index;not null;default:pending"`
	RequestedOn   time.Time           `json:"requested_on" gorm:"column:requested_on;not null"`
	Deleted       bool                `json:"deleted" gorm:"column:deleted;not null;default:false"`

	Staff *Staff `json:"-" gorm:"foreignKey:StaffID;references:StaffID"`
}

func (Loan) TableName() string { return "loans" }

// Total returns the payable total, falling back to the principal when the
// total was never recorded.
func (l *Loan) Total() decimal.Decimal {
	if l.TotalAmount.Valid {
		return l.TotalAmount.Decimal
	}
	return l.Amount
}

// Paid returns the amount repaid so far, zero when unrecorded.
func (l *Loan) Paid() decimal.Decimal {
	if l.PaidAmount.Valid {
		return l.PaidAmount.Decimal
	}
	return decimal.Zero
}

// Balance returns the stored balance, zero when unrecorded.
func (l *Loan) Balance() decimal.Decimal {
	if l.BalanceAmount.Valid {
		return l.BalanceAmount.Decimal
	}
	return decimal.Zero
}

// Known wraps d as a present NullDecimal.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
