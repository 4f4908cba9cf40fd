// Package report renders payment and loan snapshots as paginated PDF
// documents.
package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/mcclellann/staffLoan/pkg/models"
)

// DefaultLinesPerPage is the number of record lines printed on each page.
const DefaultLinesPerPage = 38

const (
	PaymentsTitle = "Staff Payments Report"
	LoansTitle    = "Staff Loans Report"

	PaymentsFilename = "payments_report.pdf"
	LoansFilename    = "loans_report.pdf"
)

const dateLayout = "2006-01-02"

// PaymentLines formats one line per payment, preserving order.
func PaymentLines(payments []*models.Payment) []string {
	lines := make([]string, 0, len(payments))
	for _, p := range payments {
		lines = append(lines, fmt.Sprintf("Staff ID: %s | Amount: %s | Month: %s | Date: %s",
			p.StaffID, p.Amount.StringFixed(2), p.Month, p.CreatedOn.Format(dateLayout)))
	}
	return lines
}

// LoanLines formats one line per loan, preserving order.
func LoanLines(loans []*models.Loan) []string {
	lines := make([]string, 0, len(loans))
	for _, l := range loans {
		lines = append(lines, fmt.Sprintf("Staff ID: %s | Amount: %s | Status: %s | Date: %s",
			l.StaffID, l.Amount.StringFixed(2), l.Status, l.RequestedOn.Format(dateLayout)))
	}
	return lines
}

// Paginate splits lines into pages of at most perPage lines. An empty input
// yields a single empty page so a report always has at least one page.
func Paginate(lines []string, perPage int) [][]string {
	if perPage <= 0 {
		perPage = DefaultLinesPerPage
	}
	if len(lines) == 0 {
		return [][]string{{}}
	}
	pages := make([][]string, 0, (len(lines)+perPage-1)/perPage)
	for start := 0; start < len(lines); start += perPage {
		end := min(start+perPage, len(lines))
		pages = append(pages, lines[start:end])
	}
	return pages
}

// RenderPDF writes an A4 document with title on the first page followed by
// lines, perPage to a page.
func RenderPDF(w io.Writer, title string, lines []string, perPage int) error {
	const (
		left       = 50.0
		top        = 50.0
		firstLineY = 82.0
		lineHeight = 18.0
	)

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(false, 0)

	for i, page := range Paginate(lines, perPage) {
		pdf.AddPage()
		y := top
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.Text(left, y, title)
			y = firstLineY
		}
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range page {
			pdf.Text(left, y, line)
			y += lineHeight
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render %q: %w", title, err)
	}
	return nil
}
