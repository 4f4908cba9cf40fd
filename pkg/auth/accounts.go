package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcclellann/staffLoan/pkg/logger"
	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/mcclellann/staffLoan/pkg/store"
)

// Accounts handles registration, login checks and the bootstrap admin.
type Accounts struct {
	storage store.Storage
	now     func() time.Time
}

func NewAccounts(s store.Storage) *Accounts {
	return &Accounts{
		storage: s,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterStaff creates an unapproved staff account.
func (a *Accounts) RegisterStaff(ctx context.Context, staffID, name, password string) (*models.Staff, error) {
	staffID = strings.TrimSpace(staffID)
	name = strings.TrimSpace(name)

	_, err := a.storage.GetStaffByStaffID(ctx, staffID)
	if err == nil {
		return nil, ErrDuplicateStaff
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	st := &models.Staff{
		StaffID:      staffID,
		Name:         name,
		PasswordHash: hash,
		RegisteredOn: a.now(),
	}
	if err := a.storage.CreateStaff(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to register staff: %w", err)
	}
	logger.Info(ctx, "staff registered", slog.String("staff_id", staffID))
	return st, nil
}

// AuthenticateStaff checks a staff login. Correct credentials on an
// unapproved account return the staff record together with ErrNotApproved.
func (a *Accounts) AuthenticateStaff(ctx context.Context, staffID, password string) (*models.Staff, error) {
	st, err := a.storage.GetStaffByStaffID(ctx, strings.TrimSpace(staffID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(st.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !st.Approved {
		return st, ErrNotApproved
	}
	return st, nil
}

// AuthenticateAdmin checks an admin login.
func (a *Accounts) AuthenticateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	ad, err := a.storage.GetAdminByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(ad.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return ad, nil
}

// EnsureAdmin creates the admin account for email unless it already exists.
// It reports whether an account was created. An existing account keeps its
// password.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := a.storage.GetAdminByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := a.storage.CreateAdmin(ctx, &models.Admin{Email: email, PasswordHash: hash}); err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}
	logger.Info(ctx, "admin account created", slog.String("email", email))
	return true, nil
}
