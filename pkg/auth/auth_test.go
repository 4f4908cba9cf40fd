package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mcclellann/staffLoan/pkg/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key     string
		role    Role
		id      int64
		wantErr bool
	}{
		{"Admin-1", RoleAdmin, 1, false},
		{"Staff-42", RoleStaff, 42, false},
		{"Staff-", "", 0, true},
		{"Staff-abc", "", 0, true},
		{"Staff-0", "", 0, true},
		{"Guest-3", "", 0, true},
		{"7", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			role, id, err := ParseKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("got %v, want ErrInvalidKey", err)
				}
				return
			}
			if err != nil || role != tt.role || id != tt.id {
				t.Errorf("ParseKey(%q) = %s, %d, %v", tt.key, role, id, err)
			}
		})
	}
}

func TestPrincipalKeys(t *testing.T) {
	tests := []struct {
		p    Principal
		want string
	}{
		{AdminPrincipal{ID: 3}, "Admin-3"},
		{StaffPrincipal{ID: 9, StaffID: "S9"}, "Staff-9"},
		{Anonymous{}, ""},
	}
	for _, tt := range tests {
		if got := tt.p.Key(); got != tt.want {
			t.Errorf("Expected key %q, got %q", tt.want, got)
		}
	}
}

func TestGuards(t *testing.T) {
	admin := AdminPrincipal{ID: 1}
	staff := StaffPrincipal{ID: 1}
	anon := Anonymous{}

	tests := []struct {
		name  string
		guard func(Principal) error
		p     Principal
		want  error
	}{
		{"admin on admin route", RequireAdmin, admin, nil},
		{"staff on admin route", RequireAdmin, staff, ErrAccessDenied},
		{"anonymous on admin route", RequireAdmin, anon, ErrUnauthenticated},
		{"staff on staff route", RequireStaff, staff, nil},
		{"admin on staff route", RequireStaff, admin, ErrAccessDenied},
		{"anonymous on staff route", RequireStaff, anon, ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.guard(tt.p); err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := NewAccounts(s)

	acc.EnsureAdmin(ctx, "admin@example.com", "adminpass")
	ad, _ := s.GetAdminByEmail(ctx, "admin@example.com")
	st, err := acc.RegisterStaff(ctx, "S1", "Ann", "pw")
	if err != nil {
		t.Fatalf("RegisterStaff: %v", err)
	}

	r := NewResolver(s)
	tests := []struct {
		key  string
		want Principal
	}{
		{AdminPrincipalFor(ad).Key(), AdminPrincipal{ID: ad.ID, Email: "admin@example.com"}},
		{StaffPrincipalFor(st).Key(), StaffPrincipal{ID: st.ID, StaffID: "S1", Name: "Ann"}},
		{"Staff-999", Anonymous{}},
		{"Admin-999", Anonymous{}},
		{"garbage", Anonymous{}},
	}
	for _, tt := range tests {
		got, err := r.Resolve(ctx, tt.key)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	token, expires, err := s.Issue(StaffPrincipal{ID: 5})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expiry should be in the future, got %s", expires)
	}

	key, err := s.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if key != "Staff-5" {
		t.Errorf("Expected key Staff-5, got %s", key)
	}

	other := NewSessions("other", time.Hour)
	if _, err := other.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("wrong secret: got %v, want ErrInvalidSession", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := s.Parse(token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired token: got %v, want ErrInvalidSession", err)
	}

	if _, _, err := s.Issue(Anonymous{}); err == nil {
		t.Error("expected an error issuing an anonymous session")
	}
}

func TestAccounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := NewAccounts(s)

	if _, err := acc.RegisterStaff(ctx, " S1 ", " Ann ", "pw"); err != nil {
		t.Fatalf("RegisterStaff: %v", err)
	}
	if _, err := acc.RegisterStaff(ctx, "S1", "Other", "pw2"); !errors.Is(err, ErrDuplicateStaff) {
		t.Errorf("duplicate: got %v, want ErrDuplicateStaff", err)
	}

	if _, err := acc.AuthenticateStaff(ctx, "S1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := acc.AuthenticateStaff(ctx, "S2", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown staff: got %v, want ErrInvalidCredentials", err)
	}
	st, err := acc.AuthenticateStaff(ctx, "S1", "pw")
	if !errors.Is(err, ErrNotApproved) {
		t.Fatalf("unapproved: got %v, want ErrNotApproved", err)
	}
	if st.Name != "Ann" {
		t.Errorf("Expected trimmed name Ann, got %q", st.Name)
	}

	st.Approved = true
	s.UpdateStaff(ctx, st)
	if _, err := acc.AuthenticateStaff(ctx, "S1", "pw"); err != nil {
		t.Errorf("approved login failed: %v", err)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acc := NewAccounts(s)

	created, err := acc.EnsureAdmin(ctx, "admin@example.com", "adminpass")
	if err != nil || !created {
		t.Fatalf("first EnsureAdmin = %v, %v", created, err)
	}
	created, err = acc.EnsureAdmin(ctx, "admin@example.com", "changed")
	if err != nil || created {
		t.Fatalf("second EnsureAdmin = %v, %v", created, err)
	}

	if _, err := acc.AuthenticateAdmin(ctx, "admin@example.com", "adminpass"); err != nil {
		t.Errorf("original password should still work: %v", err)
	}
	if _, err := acc.AuthenticateAdmin(ctx, "admin@example.com", "changed"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials", err)
	}
}
