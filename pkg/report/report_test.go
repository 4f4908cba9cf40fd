package report

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/mcclellann/staffLoan/pkg/models"
	"github.com/shopspring/decimal"
)

func TestPaymentLines(t *testing.T) {
	p := &models.Payment{
		StaffID:   "S1",
		Amount:    decimal.RequireFromString("100.5"),
		Month:     "Jan",
		CreatedOn: time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC),
	}
	got := PaymentLines([]*models.Payment{p})
	want := "Staff ID: S1 | Amount: 100.50 | Month: Jan | Date: 2024-01-31"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestLoanLines(t *testing.T) {
	l := &models.Loan{
		StaffID:     "S2",
		Amount:      decimal.NewFromInt(500),
		Status:      models.LoanStatusApproved,
		RequestedOn: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC),
	}
	got := LoanLines([]*models.Loan{l})
	want := "Staff ID: S2 | Amount: 500.00 | Status: approved | Date: 2024-02-01"
	if len(got) != 1 || got[0] != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestPaginate(t *testing.T) {
	lines := make([]string, 80)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}

	tests := []struct {
		name    string
		lines   []string
		perPage int
		sizes   []int
	}{
		{"default page size", lines, 0, []int{38, 38, 4}},
		{"exact fit", lines[:76], 38, []int{38, 38}},
		{"small pages", lines[:5], 2, []int{2, 2, 1}},
		{"empty", nil, 38, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := Paginate(tt.lines, tt.perPage)
			if len(pages) != len(tt.sizes) {
				t.Fatalf("Expected %d pages, got %d", len(tt.sizes), len(pages))
			}
			for i, size := range tt.sizes {
				if len(pages[i]) != size {
					t.Errorf("page %d: expected %d lines, got %d", i, size, len(pages[i]))
				}
			}
		})
	}

	if Paginate(lines, 38)[1][0] != "line 38" {
		t.Error("pages should keep the input order")
	}
}

func TestRenderPDF(t *testing.T) {
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("Staff ID: S%d | Amount: 1.00 | Month: Jan | Date: 2024-01-01", i)
	}

	var buf bytes.Buffer
	if err := RenderPDF(&buf, PaymentsTitle, lines, DefaultLinesPerPage); err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", buf.Bytes()[:min(buf.Len(), 16)])
	}
}
