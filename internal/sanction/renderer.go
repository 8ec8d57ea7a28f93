// Package sanction renders sanction letters as PDF files.
package sanction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/underwriting"

	"github.com/go-pdf/fpdf"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrLetterExists is returned when the target file is already present.
var ErrLetterExists = errors.New("sanction letter already exists")

// Letter carries the terms printed on a sanction letter.
type Letter struct {
	Name         string
	Phone        string
	Amount       decimal.Decimal
	TenureMonths int
	EMI          decimal.Decimal
}

// IDSource produces the disambiguator used in references and file names.
type IDSource interface {
	NewID() string
}

type uuidSource struct{}

func (uuidSource) NewID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// Renderer writes letters into a directory.
type Renderer struct {
	dir       string
	lender    string
	signatory string
	now       func() time.Time
	ids       IDSource
	logger    logger.Logger
}

type Option func(*Renderer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithIDSource overrides the reference generator.
func WithIDSource(ids IDSource) Option {
	return func(r *Renderer) { r.ids = ids }
}

func NewRenderer(cfg config.SanctionConfig, log logger.Logger, opts ...Option) (*Renderer, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create sanction dir: %w", err)
	}

	r := &Renderer{
		dir:       cfg.OutputDir,
		lender:    cfg.LenderName,
		signatory: cfg.Signatory,
		now:       time.Now,
		ids:       uuidSource{},
		logger:    logger.ForComponent(log, "sanction"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir is the directory letters are written to.
func (r *Renderer) Dir() string {
	return r.dir
}

// Render writes the letter and returns its file name, which is the handle
// stored on the session.
func (r *Renderer) Render(ctx context.Context, l Letter) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := r.ids.NewID()
	issued := r.now()
	ref := fmt.Sprintf("SL/PL/%s/%s", issued.Format("200601"), id)
	name := fmt.Sprintf("Sanction_Letter_%s_%s.pdf", l.Phone, id)
	path := filepath.Join(r.dir, name)

	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrLetterExists, name)
	}

	pdf := r.build(l, ref, issued)

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending letter: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			r.logger.Debug("cleanup pending letter", map[string]interface{}{"error": err.Error()})
		}
	}()

	if err := pdf.Output(pending); err != nil {
		return "", fmt.Errorf("render letter: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit letter: %w", err)
	}

	r.logger.Info("sanction letter issued", map[string]interface{}{
		"reference": ref,
		"file":      name,
		"tenure":    l.TenureMonths,
	})
	return name, nil
}

func (r *Renderer) build(l Letter, ref string, issued time.Time) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Arial", "B", 20)
		pdf.SetTextColor(0, 51, 102)
		pdf.CellFormat(0, 10, tr(strings.ToUpper(r.lender)), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 5, "Financial Services", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		pdf.SetDrawColor(0, 51, 102)
		pdf.SetLineWidth(0.5)
		pdf.Line(10, 30, 200, 30)
		pdf.Ln(10)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-25)
		pdf.SetFont("Arial", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, "This is a computer-generated document and does not require a physical signature.", "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(100, 6, "Ref No: "+ref, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+issued.Format("January 02, 2006"), "", 1, "R", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, "To,", "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(l.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, "Registered Mobile: +91-"+l.Phone, "", 1, "L", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 8, "Subject: Sanction of Personal Loan Application", "", 1, "L", true, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 6, tr(fmt.Sprintf("Dear %s,\n\n"+
		"Thank you for choosing %s. Based on your application and credit appraisal, "+
		"we are pleased to sanction a Personal Loan on the following terms:", l.Name, r.lender)), "", "L", false)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.CellFormat(95, 8, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(95, 8, "Details", "1", 1, "C", true, 0, "")

	row := func(label, value string) {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(95, 8, "  "+label, "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(95, 8, "  "+value, "1", 1, "L", false, 0, "")
	}
	row("Sanctioned Loan Amount", "Rs. "+underwriting.FormatAmount(l.Amount.Round(2)))
	row("Loan Tenure", fmt.Sprintf("%d Months", l.TenureMonths))
	row("Rate of Interest (Fixed)", fmt.Sprintf("%.2f%% p.a.", underwriting.StandardRate))
	row("Equated Monthly Installment (EMI)", "Rs. "+underwriting.FormatAmount(l.EMI))
	row("Processing Fee", "Rs. 0.00 (Waived)")
	row("Pre-payment Charges", "Nil (After 12 EMIs)")
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Key Terms and Conditions:", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, term := range terms {
		pdf.MultiCell(0, 5, term, "", "L", false)
		pdf.Ln(1)
	}
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, tr("For "+r.lender+","), "", 1, "L", false, 0, "")
	pdf.Ln(5)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(60, 15, "[ Digitally Signed ]", "1", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, tr(r.signatory), "", 1, "L", false, 0, "")

	return pdf
}

var terms = []string{
	"1. The loan shall be disbursed to the salary account linked during verification.",
	"2. Interest is calculated on a monthly reducing balance.",
	"3. This sanction is valid for 30 days from the date of issue.",
	"4. Repayment is collected via NACH/e-Mandate on the 5th of every month.",
	"5. Default in payment attracts penal interest of 2% per month on the overdue amount.",
}
