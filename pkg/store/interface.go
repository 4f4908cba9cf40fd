package store

import (
	"context"
	"errors"

	"github.com/mcclellann/staffLoan/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrForeignKey is returned when a write would break a staff reference:
	// a payment or loan for an unknown staff id, or deleting staff that
	// still owns payments or loans.
	ErrForeignKey = errors.New("foreign key violation")
)

// SortOrder selects the ordering of list queries.
type SortOrder int

const (
	// SortByIDDesc lists the most recently inserted rows first.
	SortByIDDesc SortOrder = iota
	// SortByIDAsc lists rows in insertion order.
	SortByIDAsc
	// SortByDateDesc orders by created_on (payments) or requested_on (loans), newest first.
	SortByDateDesc
)

// StaffFilter narrows ListStaff. A nil Approved matches both states.
type StaffFilter struct {
	Approved *bool
}

// PaymentFilter narrows ListPayments. An empty StaffID matches everyone.
type PaymentFilter struct {
	StaffID string
	Order   SortOrder
}

// LoanFilter narrows ListLoans. Limit <= 0 means no limit.
type LoanFilter struct {
	StaffID        string
	Statuses       []models.LoanStatus
	ExcludeDeleted bool
	Order          SortOrder
	Limit          int
}

// Storage defines the persistence operations for staff, payments and loans.
type Storage interface {
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	GetAdmin(ctx context.Context, id int64) (*models.Admin, error)
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)

	CreateStaff(ctx context.Context, staff *models.Staff) error
	GetStaff(ctx context.Context, id int64) (*models.Staff, error)
	GetStaffByStaffID(ctx context.Context, staffID string) (*models.Staff, error)
	UpdateStaff(ctx context.Context, staff *models.Staff) error
	DeleteStaff(ctx context.Context, id int64) error
	ListStaff(ctx context.Context, filter StaffFilter) ([]*models.Staff, error)
	CountStaff(ctx context.Context) (int64, error)

	CreatePayment(ctx context.Context, payment *models.Payment) error
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error)
	CountPayments(ctx context.Context) (int64, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id int64) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error)
	CountLoans(ctx context.Context) (int64, error)

	// InTx runs fn against a Storage bound to a single transaction. The
	// transaction commits if fn returns nil and rolls back otherwise. Calling
	// InTx on a Storage that is already transactional reuses the transaction.
	InTx(ctx context.Context, fn func(Storage) error) error

	Close() error
}
