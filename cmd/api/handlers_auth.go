package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mcclellann/staffLoan/pkg/auth"
	"github.com/mcclellann/staffLoan/pkg/logger"
)

type adminLoginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type staffLoginForm struct {
	StaffID  string `validate:"required"`
	Password string `validate:"required"`
}

type registerForm struct {
	StaffID  string `validate:"required,max=20"`
	Name     string `validate:"required,max=120"`
	Password string `validate:"required"`
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index", "Home", nil)
}

func (s *Server) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	if p := principalFrom(r); p.Key() != "" {
		redirect(w, r, dashboardFor(p))
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, "admin_login", "Admin Login", nil)
		return
	}

	form := adminLoginForm{Email: r.FormValue("email"), Password: r.FormValue("password")}
	if err := s.validate.Struct(form); err != nil {
		addFlash(r, flashDanger, "Invalid credentials")
		redirect(w, r, "/admin/login")
		return
	}

	admin, err := s.accounts.AuthenticateAdmin(r.Context(), form.Email, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logger.Warn(r.Context(), "admin login failed", slog.String("email", form.Email))
		addFlash(r, flashDanger, "Invalid credentials")
		redirect(w, r, "/admin/login")
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	if err := s.startSession(w, auth.AdminPrincipalFor(admin)); err != nil {
		serverError(w, r, err)
		return
	}
	addFlash(r, flashSuccess, "Logged in as admin")
	redirect(w, r, "/admin/dashboard")
}

func (s *Server) staffLoginHandler(w http.ResponseWriter, r *http.Request) {
	if p := principalFrom(r); p.Key() != "" {
		redirect(w, r, dashboardFor(p))
		return
	}
	if r.Method == http.MethodGet {
		s.render(w, r, "staff_login", "Staff Login", nil)
		return
	}

	form := staffLoginForm{StaffID: r.FormValue("staff_id"), Password: r.FormValue("password")}
	if err := s.validate.Struct(form); err != nil {
		addFlash(r, flashDanger, "Invalid Staff ID or Password")
		redirect(w, r, "/staff/login")
		return
	}

	st, err := s.accounts.AuthenticateStaff(r.Context(), form.StaffID, form.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		logger.Warn(r.Context(), "staff login failed", slog.String("staff_id", form.StaffID))
		addFlash(r, flashDanger, "Invalid Staff ID or Password")
		redirect(w, r, "/staff/login")
		return
	case errors.Is(err, auth.ErrNotApproved):
		addFlash(r, flashWarning, "Your account is not yet approved by the admin.")
		redirect(w, r, "/staff/login")
		return
	case err != nil:
		serverError(w, r, err)
		return
	}

	if err := s.startSession(w, auth.StaffPrincipalFor(st)); err != nil {
		serverError(w, r, err)
		return
	}
	addFlash(r, flashSuccess, fmt.Sprintf("Welcome, %s!", st.Name))
	redirect(w, r, "/staff/dashboard")
}

func (s *Server) staffRegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, "staff_register", "Register", nil)
		return
	}

	form := registerForm{
		StaffID:  r.FormValue("staff_id"),
		Name:     r.FormValue("name"),
		Password: r.FormValue("password"),
	}
	if err := s.validate.Struct(form); err != nil {
		addFlash(r, flashDanger, "Staff ID (max 20 characters), name and password are required.")
		redirect(w, r, "/staff/register")
		return
	}

	_, err := s.accounts.RegisterStaff(r.Context(), form.StaffID, form.Name, form.Password)
	if errors.Is(err, auth.ErrDuplicateStaff) {
		addFlash(r, flashWarning, "Staff ID already registered. Please log in instead.")
		redirect(w, r, "/staff/login")
		return
	}
	if err != nil {
		serverError(w, r, err)
		return
	}
	addFlash(r, flashInfo, "Registration successful. Please wait for admin approval.")
	redirect(w, r, "/staff/login")
}

// logoutHandler serves both roles; the route guard has already checked the role.
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	clearSession(w)

	data := struct{ UserType, LoginURL string }{"Staff", "/staff/login"}
	msg := "Logged out successfully."
	if _, ok := principalFrom(r).(auth.AdminPrincipal); ok {
		data.UserType, data.LoginURL = "Admin", "/admin/login"
		msg = "Admin logged out"
	}
	addFlash(r, flashInfo, msg)

	// The logout page shows the anonymous navigation.
	r = r.WithContext(withPrincipal(r.Context(), auth.Anonymous{}))
	s.render(w, r, "logout", "Logged out", data)
}
