package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcclellann/staffLoan/pkg/models"
)

// GormStore implements Storage on top of GORM. It is used for the postgres
// driver; any gorm.Dialector works.
type GormStore struct {
	db *gorm.DB
	tx bool
}

// NewPostgresStore connects to postgres with the given DSN.
func NewPostgresStore(dsn string) (*GormStore, error) {
	return NewGormStore(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}))
}

// NewGormStore opens a GORM connection with dialector and migrates the schema.
func NewGormStore(dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.AutoMigrate(&models.Admin{}, &models.Staff{}, &models.Payment{}, &models.Loan{}); err != nil {
		return nil, fmt.Errorf("could not migrate schema: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) InTx(ctx context.Context, fn func(Storage) error) error {
	if s.tx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, tx: true})
	})
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	return s.db.WithContext(ctx).Create(admin).Error
}

func (s *GormStore) GetAdmin(ctx context.Context, id int64) (*models.Admin, error) {
	var a models.Admin
	return first(s.db.WithContext(ctx).Where("id = ?", id), &a)
}

func (s *GormStore) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var a models.Admin
	return first(s.db.WithContext(ctx).Where("email = ?", email), &a)
}

func (s *GormStore) CreateStaff(ctx context.Context, staff *models.Staff) error {
	return s.db.WithContext(ctx).Create(staff).Error
}

func (s *GormStore) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	var st models.Staff
	return first(s.db.WithContext(ctx).Where("id = ?", id), &st)
}

func (s *GormStore) GetStaffByStaffID(ctx context.Context, staffID string) (*models.Staff, error) {
	var st models.Staff
	return first(s.db.WithContext(ctx).Where("staff_id = ?", staffID), &st)
}

func (s *GormStore) UpdateStaff(ctx context.Context, staff *models.Staff) error {
	res := s.db.WithContext(ctx).Model(&models.Staff{}).Where("id = ?", staff.ID).Updates(map[string]any{
		"name":     staff.Name,
		"password": staff.PasswordHash,
		"approved": staff.Approved,
	})
	return affected(res)
}

func (s *GormStore) DeleteStaff(ctx context.Context, id int64) error {
	return gormFKError(affected(s.db.WithContext(ctx).Delete(&models.Staff{}, id)))
}

func (s *GormStore) ListStaff(ctx context.Context, filter StaffFilter) ([]*models.Staff, error) {
	q := s.db.WithContext(ctx)
	if filter.Approved != nil {
		q = q.Where("approved = ?", *filter.Approved)
	}
	var out []*models.Staff
	err := q.Order("id desc").Find(&out).Error
	return out, err
}

func (s *GormStore) CountStaff(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Staff{}).Count(&n).Error
	return n, err
}

func (s *GormStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return gormFKError(s.db.WithContext(ctx).Create(payment).Error)
}

func (s *GormStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error) {
	q := s.db.WithContext(ctx)
	if filter.StaffID != "" {
		q = q.Where("staff_id = ?", filter.StaffID)
	}
	var out []*models.Payment
	err := q.Order(gormOrder(filter.Order, "created_on")).Find(&out).Error
	return out, err
}

func (s *GormStore) CountPayments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).Count(&n).Error
	return n, err
}

func (s *GormStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	return gormFKError(s.db.WithContext(ctx).Create(loan).Error)
}

func (s *GormStore) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	var l models.Loan
	return first(s.db.WithContext(ctx).Where("id = ?", id), &l)
}

func (s *GormStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	res := s.db.WithContext(ctx).Model(&models.Loan{}).Where("id = ?", loan.ID).Updates(map[string]any{
		"amount":         loan.Amount,
		"interest_rate":  loan.InterestRate,
		"tenure_months":  loan.TenureMonths,
		"total_amount":   loan.TotalAmount,
		"paid_amount":    loan.PaidAmount,
		"balance_amount": loan.BalanceAmount,
		"status":         string(loan.Status),
		"deleted":        loan.Deleted,
	})
	return affected(res)
}

func (s *GormStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error) {
	q := s.db.WithContext(ctx)
	if filter.StaffID != "" {
		q = q.Where("staff_id = ?", filter.StaffID)
	}
	if filter.ExcludeDeleted {
		q = q.Where("deleted = ?", false)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q = q.Where("status IN ?", statuses)
	}
	q = q.Order(gormOrder(filter.Order, "requested_on"))
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []*models.Loan
	err := q.Find(&out).Error
	return out, err
}

func (s *GormStore) CountLoans(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Loan{}).Count(&n).Error
	return n, err
}

func first[T any](q *gorm.DB, dest *T) (*T, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}

// gormFKError maps the dialect's foreign key violation to ErrForeignKey.
func gormFKError(err error) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func gormOrder(order SortOrder, dateColumn string) string {
	switch order {
	case SortByIDAsc:
		return "id asc"
	case SortByDateDesc:
		return dateColumn + " desc, id desc"
	default:
		return "id desc"
	}
}
