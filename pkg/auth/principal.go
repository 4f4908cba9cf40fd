// Package auth resolves the two login roles of the portal and guards
// role-specific operations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/mcclellann/staffLoan/pkg/store"
)

// Role is the prefix of a principal key.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleStaff Role = "Staff"
)

// Principal is the authenticated identity of a request. It is one of
// AdminPrincipal, StaffPrincipal or Anonymous.
type Principal interface {
	// Key is the composite identifier stored in the session, "<Role>-<id>".
	Key() string
	principal()
}

type AdminPrincipal struct {
	ID    int64
	Email string
}

func (p AdminPrincipal) Key() string { return formatKey(RoleAdmin, p.ID) }
func (AdminPrincipal) principal()    {}

type StaffPrincipal struct {
	ID       int64
	StaffID  string
	Name     string
	Approved bool
}

func (p StaffPrincipal) Key() string { return formatKey(RoleStaff, p.ID) }
func (StaffPrincipal) principal()    {}

// Anonymous is the principal of a request without a valid session.
type Anonymous struct{}

func (Anonymous) Key() string { return "" }
func (Anonymous) principal()  {}

func AdminPrincipalFor(a *models.Admin) AdminPrincipal {
	return AdminPrincipal{ID: a.ID, Email: a.Email}
}

func StaffPrincipalFor(s *models.Staff) StaffPrincipal {
	return StaffPrincipal{ID: s.ID, StaffID: s.StaffID, Name: s.Name, Approved: s.Approved}
}

func formatKey(r Role, id int64) string {
	return string(r) + "-" + strconv.FormatInt(id, 10)
}

// ParseKey splits a principal key into its role and numeric id.
func ParseKey(key string) (Role, int64, error) {
	prefix, rest, ok := strings.Cut(key, "-")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	role := Role(prefix)
	if role != RoleAdmin && role != RoleStaff {
		return "", 0, fmt.Errorf("%w: unknown role %q", ErrInvalidKey, prefix)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return role, id, nil
}

// Resolver maps principal keys back to principals.
type Resolver struct {
	storage store.Storage
}

func NewResolver(s store.Storage) *Resolver {
	return &Resolver{storage: s}
}

// Resolve loads the principal named by key. Malformed keys and keys whose
// record no longer exists resolve to Anonymous; only storage failures are
// returned as errors.
func (r *Resolver) Resolve(ctx context.Context, key string) (Principal, error) {
	role, id, err := ParseKey(key)
	if err != nil {
		return Anonymous{}, nil
	}

	switch role {
	case RoleAdmin:
		a, err := r.storage.GetAdmin(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return Anonymous{}, nil
		}
		if err != nil {
			return Anonymous{}, err
		}
		return AdminPrincipalFor(a), nil
	default:
		s, err := r.storage.GetStaff(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return Anonymous{}, nil
		}
		if err != nil {
			return Anonymous{}, err
		}
		return StaffPrincipalFor(s), nil
	}
}

// RequireAdmin admits only admins.
func RequireAdmin(p Principal) error {
	switch p.(type) {
	case AdminPrincipal:
		return nil
	case StaffPrincipal:
		return ErrAccessDenied
	default:
		return ErrUnauthenticated
	}
}

// RequireStaff admits only staff members.
func RequireStaff(p Principal) error {
	switch p.(type) {
	case StaffPrincipal:
		return nil
	case AdminPrincipal:
		return ErrAccessDenied
	default:
		return ErrUnauthenticated
	}
}
