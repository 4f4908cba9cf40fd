package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcclellann/staffLoan/pkg/batch"
	"github.com/mcclellann/staffLoan/pkg/ledger"
	"github.com/mcclellann/staffLoan/pkg/report"
	"github.com/mcclellann/staffLoan/pkg/store"
	"github.com/shopspring/decimal"
)

type repayForm struct {
	Amount string `validate:"required,numeric"`
}

func (s *Server) adminDashboardHandler(w http.ResponseWriter, r *http.Request) {
	ov, err := s.ledger.AdminOverview(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "admin_dashboard", "Admin Dashboard", ov)
}

func (s *Server) manageStaffHandler(w http.ResponseWriter, r *http.Request) {
	staff, err := s.ledger.AllStaff(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "manage_staff", "Manage Staff", staff)
}

func (s *Server) approveStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	st, err := s.ledger.ApproveStaff(r.Context(), id)
	if err != nil {
		notFoundOr(w, r, err)
		return
	}
	addFlash(r, flashSuccess, fmt.Sprintf("%s has been approved successfully!", st.Name))
	redirect(w, r, "/admin/manage-staff")
}

func (s *Server) rejectStaffHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	st, err := s.ledger.RejectStaff(r.Context(), id)
	if errors.Is(err, ledger.ErrStaffHasRecords) {
		addFlash(r, flashDanger, fmt.Sprintf("%s cannot be removed while they have payments or loans on record.", st.Name))
		redirect(w, r, "/admin/manage-staff")
		return
	}
	if err != nil {
		notFoundOr(w, r, err)
		return
	}
	addFlash(r, flashInfo, fmt.Sprintf("%s has been removed successfully.", st.Name))
	redirect(w, r, "/admin/manage-staff")
}

type uploadPage struct {
	Action  string
	Columns string
}

type ingestFunc func(ctx context.Context, r io.Reader) (*batch.Result, error)

func (s *Server) uploadPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, "Upload Payments", "/admin/upload-payments", batch.PaymentColumns, s.processor.IngestPaymentBatch)
}

func (s *Server) uploadLoansHandler(w http.ResponseWriter, r *http.Request) {
	s.handleUpload(w, r, "Upload Loans", "/admin/upload-loans", batch.LoanColumns, s.processor.IngestLoanBatch)
}

// handleUpload renders the upload form on GET and runs ingest over the
// uploaded file on POST. Row notices become flash messages.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, title, action string, columns []string, ingest ingestFunc) {
	cols := strings.Join(columns, ", ")
	if r.Method == http.MethodGet {
		s.render(w, r, "upload", title, uploadPage{Action: action, Columns: cols})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		addFlash(r, flashWarning, "Please choose a CSV file.")
		redirect(w, r, action)
		return
	}
	defer file.Close()

	res, err := ingest(r.Context(), file)
	if res != nil {
		for _, n := range res.Notices {
			addFlash(r, string(n.Level), n.Message)
		}
	}
	switch {
	case errors.Is(err, batch.ErrMissingColumns), errors.Is(err, batch.ErrEmptyFile):
		addFlash(r, flashDanger, "CSV must have columns: "+cols)
		redirect(w, r, action)
		return
	case err != nil:
		addFlash(r, flashDanger, fmt.Sprintf("Error processing file: %v", err))
	}
	redirect(w, r, "/admin/dashboard")
}

func (s *Server) paymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.AllPayments(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "payments", "Payments", payments)
}

func (s *Server) pendingLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.PendingLoans(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "pending_loans", "Pending Loans", loans)
}

func (s *Server) loansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.LoansForReport(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.render(w, r, "loans", "Loans", loans)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	loan, err := s.ledger.ApproveLoan(r.Context(), id)
	if s.decisionFailed(w, r, err) {
		return
	}
	if err == nil {
		addFlash(r, flashSuccess, fmt.Sprintf("Loan ID %d for Staff %s approved successfully!", loan.ID, loan.StaffID))
	} else {
		addFlash(r, flashWarning, fmt.Sprintf("Loan ID %d is already %s.", loan.ID, loan.Status))
	}
	redirect(w, r, "/admin/pending-loans")
}

func (s *Server) rejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	loan, err := s.ledger.RejectLoan(r.Context(), id)
	if s.decisionFailed(w, r, err) {
		return
	}
	if err == nil {
		addFlash(r, flashInfo, fmt.Sprintf("Loan ID %d for Staff %s rejected.", loan.ID, loan.StaffID))
	} else {
		addFlash(r, flashWarning, fmt.Sprintf("Loan ID %d is already %s.", loan.ID, loan.Status))
	}
	redirect(w, r, "/admin/pending-loans")
}

// decisionFailed answers the request for any error other than
// ErrInvalidTransition and reports whether it did.
func (s *Server) decisionFailed(w http.ResponseWriter, r *http.Request, err error) bool {
	if err == nil || errors.Is(err, ledger.ErrInvalidTransition) {
		return false
	}
	notFoundOr(w, r, err)
	return true
}

func (s *Server) repayLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	form := repayForm{Amount: strings.TrimSpace(r.FormValue("amount"))}
	if err := s.validate.Struct(form); err != nil {
		addFlash(r, flashDanger, "Enter a valid repayment amount.")
		redirect(w, r, "/admin/loans")
		return
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		addFlash(r, flashDanger, "Enter a valid repayment amount.")
		redirect(w, r, "/admin/loans")
		return
	}

	loan, err := s.ledger.RecordRepayment(r.Context(), id, amount)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		addFlash(r, flashDanger, "Repayment amount must be positive.")
	case errors.Is(err, ledger.ErrNoActiveLoan):
		addFlash(r, flashWarning, fmt.Sprintf("Loan ID %d is not active.", id))
	case err != nil:
		serverError(w, r, err)
		return
	case !loan.Balance().IsPositive():
		addFlash(r, flashSuccess, fmt.Sprintf("Loan for %s fully repaid and closed.", loan.StaffID))
	default:
		addFlash(r, flashInfo, fmt.Sprintf("%s repaid %s. Remaining: %s", loan.StaffID, amount, loan.Balance().StringFixed(2)))
	}
	redirect(w, r, "/admin/loans")
}

func (s *Server) reportPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.PaymentsForReport(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.sendReport(w, r, report.PaymentsTitle, report.PaymentsFilename, report.PaymentLines(payments))
}

func (s *Server) reportLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.LoansForReport(r.Context())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.sendReport(w, r, report.LoansTitle, report.LoansFilename, report.LoanLines(loans))
}

func (s *Server) sendReport(w http.ResponseWriter, r *http.Request, title, filename string, lines []string) {
	var buf bytes.Buffer
	if err := report.RenderPDF(&buf, title, lines, s.cfg.Report.LinesPerPage); err != nil {
		serverError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	buf.WriteTo(w)
}
