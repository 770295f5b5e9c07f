package render

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
	"github.com/rl1809/inventory-tracker/internal/port"
)

const (
	defaultCompanyName = "Inventory Management System"
	maxDescriptionLen  = 30
	rowHeight          = 7.0
)

// Item table columns; widths in mm sum to the A4 content width.
var columns = []struct {
	title string
	width float64
	align string
}{
	{"Part Number", 36, "L"},
	{"Description", 70, "L"},
	{"Qty", 18, "R"},
	{"Unit Price", 25, "R"},
	{"Total", 25, "R"},
}

type PDFRenderer struct {
	companyName    string
	companyAddress string
	printer        *message.Printer
}

func NewPDFRenderer(companyName, companyAddress string) *PDFRenderer {
	if companyName == "" {
		companyName = defaultCompanyName
	}
	return &PDFRenderer{
		companyName:    companyName,
		companyAddress: companyAddress,
		printer:        message.NewPrinter(language.English),
	}
}

var _ port.DocumentRenderer = (*PDFRenderer)(nil)

func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

// Money formats an amount with two decimals and thousands separators. The
// digits come from the decimal itself, so large amounts stay exact.
func (r *PDFRenderer) Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	return sign + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// truncate shortens s to n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func (r *PDFRenderer) Render(receipt domain.Receipt) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetTitle("Receipt "+receipt.Number, true)
	pdf.SetCreator(r.companyName, true)
	pdf.SetCreationDate(receipt.CreatedAt)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	content := width - left - right

	// Header
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(content, 10, tr(r.companyName), "", 1, "C", false, 0, "")
	if r.companyAddress != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(content, 6, tr(r.companyAddress), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(content, 8, "RECEIPT", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(content/2, 6, tr("Receipt No: "+receipt.Number), "", 0, "L", false, 0, "")
	pdf.CellFormat(content/2, 6, "Date: "+shelflife.FormatDate(receipt.CreatedAt), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	// Customer
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(content, 7, "Customer Information:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(content, 6, tr("Name: "+receipt.Customer.Name), "", 1, "L", false, 0, "")
	pdf.MultiCell(content, 6, tr("Address: "+receipt.Customer.Address), "", "L", false)
	if receipt.Customer.Email != "" {
		pdf.CellFormat(content, 6, tr("Email: "+receipt.Customer.Email), "", 1, "L", false, 0, "")
	}
	if receipt.Customer.Phone != "" {
		pdf.CellFormat(content, 6, tr("Phone: "+receipt.Customer.Phone), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// Items
	pdf.SetFont("Helvetica", "B", 10)
	for _, c := range columns {
		pdf.CellFormat(c.width, rowHeight, c.title, "B", 0, c.align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range receipt.Lines {
		cells := []string{
			line.Part,
			truncate(line.Description, maxDescriptionLen),
			r.printer.Sprintf("%d", line.Quantity),
			r.Money(line.UnitPrice),
			r.Money(line.LineTotal),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, rowHeight, tr(cells[i]), "", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	y := pdf.GetY() + 2
	pdf.Line(left, y, width-right, y)
	pdf.Ln(6)

	// Totals
	labelWidth := content - 60
	totalRow := func(label, value string) {
		pdf.CellFormat(labelWidth, rowHeight, "", "", 0, "L", false, 0, "")
		pdf.CellFormat(35, rowHeight, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(25, rowHeight, value, "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 10)
	totalRow("Subtotal:", r.Money(receipt.Subtotal))
	totalRow(fmt.Sprintf("Tax (%s%%):", receipt.TaxRate.String()), r.Money(receipt.TaxAmount))
	pdf.SetFont("Helvetica", "B", 12)
	totalRow("Grand Total:", r.Money(receipt.GrandTotal))

	// Footer
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(content, 5, "Thank you for your business!", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
