package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/mcclellann/staffLoan/pkg/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx bool
}

// NewSQLiteStore opens (creating if needed) the SQLite database at
// dataSourceName and initializes the schema. Foreign keys and WAL mode are
// enabled through the DSN so every pooled connection gets them.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	if err := ensureDir(dataSourceName); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", withPragmas(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

func withPragmas(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create database directory: %w", err)
	}
	return nil
}

// initSchema creates the tables if they don't already exist and adds columns
// missing from databases created by older versions.
// Money is stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS admins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS staff (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		password TEXT NOT NULL,
		approved INTEGER NOT NULL DEFAULT 0,
		registered_on DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		month TEXT NOT NULL,
		created_on DATETIME NOT NULL,
		FOREIGN KEY(staff_id) REFERENCES staff(staff_id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		staff_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL DEFAULT '0',
		total_amount TEXT,
		paid_amount TEXT,
		balance_amount TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		requested_on DATETIME NOT NULL,
		FOREIGN KEY(staff_id) REFERENCES staff(staff_id)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_staff ON payments(staff_id);
	CREATE INDEX IF NOT EXISTS idx_loans_staff_status ON loans(staff_id, status);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	columns := []string{
		"tenure_months INTEGER NOT NULL DEFAULT 10",
		"deleted INTEGER NOT NULL DEFAULT 0",
	}
	for _, col := range columns {
		_, err := s.db.Exec(fmt.Sprintf("ALTER TABLE loans ADD COLUMN %s", col))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// InTx runs fn inside a database transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Storage) error) error {
	if s.tx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Admins

func (s *SQLiteStore) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	res, err := s.q.ExecContext(ctx, `INSERT INTO admins (email, password) VALUES (?, ?)`, admin.Email, admin.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	admin.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetAdmin(ctx context.Context, id int64) (*models.Admin, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, email, password FROM admins WHERE id = ?`, id)
	return scanAdmin(row)
}

func (s *SQLiteStore) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	row := s.q.QueryRowContext(ctx, `SELECT id, email, password FROM admins WHERE email = ?`, email)
	return scanAdmin(row)
}

func scanAdmin(row *sql.Row) (*models.Admin, error) {
	var a models.Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &a, nil
}

// Staff

const staffColumns = `id, staff_id, name, password, approved, registered_on`

func (s *SQLiteStore) CreateStaff(ctx context.Context, staff *models.Staff) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO staff (staff_id, name, password, approved, registered_on) VALUES (?, ?, ?, ?, ?)`,
		staff.StaffID, staff.Name, staff.PasswordHash, staff.Approved, staff.RegisteredOn.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	staff.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE id = ?`, id)
	return scanStaff(row)
}

func (s *SQLiteStore) GetStaffByStaffID(ctx context.Context, staffID string) (*models.Staff, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+staffColumns+` FROM staff WHERE staff_id = ?`, staffID)
	return scanStaff(row)
}

func (s *SQLiteStore) UpdateStaff(ctx context.Context, staff *models.Staff) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE staff SET name = ?, password = ?, approved = ? WHERE id = ?`,
		staff.Name, staff.PasswordHash, staff.Approved, staff.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeleteStaff(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM staff WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete staff: %w", sqliteFKError(err))
	}
	return requireAffected(res)
}

func (s *SQLiteStore) ListStaff(ctx context.Context, filter StaffFilter) ([]*models.Staff, error) {
	query := `SELECT ` + staffColumns + ` FROM staff`
	var args []any
	if filter.Approved != nil {
		query += ` WHERE approved = ?`
		args = append(args, *filter.Approved)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var out []*models.Staff
	for rows.Next() {
		st, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountStaff(ctx context.Context) (int64, error) {
	return s.count(ctx, "staff")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStaff(row scanner) (*models.Staff, error) {
	var st models.Staff
	if err := row.Scan(&st.ID, &st.StaffID, &st.Name, &st.PasswordHash, &st.Approved, &st.RegisteredOn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan staff row: %w", err)
	}
	return &st, nil
}

// Payments

func (s *SQLiteStore) CreatePayment(ctx context.Context, payment *models.Payment) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO payments (staff_id, amount, month, created_on) VALUES (?, ?, ?, ?)`,
		payment.StaffID, payment.Amount, payment.Month, payment.CreatedOn.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", sqliteFKError(err))
	}
	payment.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) ListPayments(ctx context.Context, filter PaymentFilter) ([]*models.Payment, error) {
	query := `SELECT id, staff_id, amount, month, created_on FROM payments`
	var args []any
	if filter.StaffID != "" {
		query += ` WHERE staff_id = ?`
		args = append(args, filter.StaffID)
	}
	query += orderClause(filter.Order, "created_on")

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var out []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.StaffID, &p.Amount, &p.Month, &p.CreatedOn); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountPayments(ctx context.Context) (int64, error) {
	return s.count(ctx, "payments")
}

// Loans

const loanColumns = `id, staff_id, amount, interest_rate, tenure_months, total_amount, paid_amount, balance_amount, status, requested_on, deleted`

func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO loans (staff_id, amount, interest_rate, tenure_months, total_amount, paid_amount, balance_amount, status, requested_on, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.StaffID, loan.Amount, loan.InterestRate, loan.TenureMonths, loan.TotalAmount, loan.PaidAmount, loan.BalanceAmount,
		string(loan.Status), loan.RequestedOn.UTC(), loan.Deleted,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", sqliteFKError(err))
	}
	loan.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) GetLoan(ctx context.Context, id int64) (*models.Loan, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
	return scanLoan(row)
}

func (s *SQLiteStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE loans SET amount = ?, interest_rate = ?, tenure_months = ?, total_amount = ?, paid_amount = ?, balance_amount = ?, status = ?, deleted = ? WHERE id = ?`,
		loan.Amount, loan.InterestRate, loan.TenureMonths, loan.TotalAmount, loan.PaidAmount, loan.BalanceAmount,
		string(loan.Status), loan.Deleted, loan.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error) {
	var (
		where []string
		args  []any
	)
	if filter.StaffID != "" {
		where = append(where, "staff_id = ?")
		args = append(args, filter.StaffID)
	}
	if filter.ExcludeDeleted {
		where = append(where, "deleted = 0")
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + loanColumns + ` FROM loans`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += orderClause(filter.Order, "requested_on")
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var out []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) CountLoans(ctx context.Context) (int64, error) {
	return s.count(ctx, "loans")
}

func scanLoan(row scanner) (*models.Loan, error) {
	var (
		loan   models.Loan
		status string
	)
	err := row.Scan(&loan.ID, &loan.StaffID, &loan.Amount, &loan.InterestRate, &loan.TenureMonths,
		&loan.TotalAmount, &loan.PaidAmount, &loan.BalanceAmount, &status, &loan.RequestedOn, &loan.Deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan loan row: %w", err)
	}
	loan.Status = models.LoanStatus(status)
	return &loan, nil
}

// helpers

func (s *SQLiteStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func orderClause(order SortOrder, dateColumn string) string {
	switch order {
	case SortByIDAsc:
		return ` ORDER BY id ASC`
	case SortByDateDesc:
		return ` ORDER BY ` + dateColumn + ` DESC, id DESC`
	default:
		return ` ORDER BY id DESC`
	}
}

// sqliteFKError marks SQLite foreign key failures with ErrForeignKey.
func sqliteFKError(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: %v", ErrForeignKey, err)
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
