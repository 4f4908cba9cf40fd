package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mcclellann/staffLoan/pkg/auth"
	"github.com/mcclellann/staffLoan/pkg/ledger"
	"github.com/shopspring/decimal"
)

type loanRequestForm struct {
	Amount string `validate:"required,numeric"`
	Tenure string `validate:"required,number"`
}

func (s *Server) staffDashboardHandler(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r).(auth.StaffPrincipal)
	dash, err := s.ledger.StaffDashboard(r.Context(), p.StaffID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "staff_dashboard", "My Dashboard", dash)
}

func (s *Server) requestLoanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, "request_loan", "Request Loan", nil)
		return
	}

	p := principalFrom(r).(auth.StaffPrincipal)
	if p.StaffID == "" {
		addFlash(r, flashWarning, "Your staff ID not assigned yet")
		redirect(w, r, "/staff/dashboard")
		return
	}

	form := loanRequestForm{
		Amount: strings.TrimSpace(r.FormValue("amount")),
		Tenure: strings.TrimSpace(r.FormValue("tenure")),
	}
	amount, tenure, err := s.parseLoanRequest(form)
	if err != nil {
		addFlash(r, flashDanger, "Enter a positive amount and a tenure of at least one month.")
		redirect(w, r, "/staff/request-loan")
		return
	}

	loan, err := s.ledger.RequestLoan(r.Context(), p.StaffID, amount, tenure)
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidTenure):
		addFlash(r, flashDanger, "Enter a positive amount and a tenure of at least one month.")
		redirect(w, r, "/staff/request-loan")
		return
	case err != nil:
		serverError(w, r, err)
		return
	}

	addFlash(r, flashSuccess, fmt.Sprintf("Loan request submitted for %s (%d months at %s%% interest)",
		loan.Amount.StringFixed(2), loan.TenureMonths, loan.InterestRate))
	redirect(w, r, "/staff/dashboard")
}

func (s *Server) parseLoanRequest(form loanRequestForm) (decimal.Decimal, int, error) {
	if err := s.validate.Struct(form); err != nil {
		return decimal.Zero, 0, err
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		return decimal.Zero, 0, err
	}
	tenure, err := strconv.Atoi(form.Tenure)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return amount, tenure, nil
}
