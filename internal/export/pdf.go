package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"
)

// PDFRenderer lays the invoice out on a single A4 page, continuing onto more pages
// when the ledger is long.
type PDFRenderer struct{}

func (PDFRenderer) Format() string      { return FormatPDF }
func (PDFRenderer) ContentType() string { return "application/pdf" }

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Item", 80, "L"},
	{"Qty", 20, "R"},
	{"Unit price", 35, "R"},
	{"Amount", 35, "R"},
}

func (PDFRenderer) Render(w io.Writer, doc Document) error {
	inv := doc.Invoice

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %d", inv.ID), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(0, 10, fmt.Sprintf("Invoice #%d", inv.ID), "", 1, "L", false, 0, "")
	if doc.Issuer != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr("Issued by "+doc.Issuer), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 11)
	field := func(label, value string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(35, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	field("Issue date:", inv.IssueDate)
	if inv.DueDate != nil {
		field("Due date:", *inv.DueDate)
	}
	field("Status:", inv.Status)
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, "Bill to", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 6, tr(doc.Customer.Name), "", 1, "L", false, 0, "")
	for _, s := range []*string{doc.Customer.Address, doc.Customer.Email, doc.Customer.Phone} {
		if s != nil {
			pdf.MultiCell(0, 5, tr(*s), "", "L", false)
		}
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 11)
	for _, l := range inv.Items {
		cells := []string{tr(l.ItemName), strconv.Itoa(l.Quantity), l.UnitPrice, l.Total}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	labelWidth := pdfColumns[0].width + pdfColumns[1].width + pdfColumns[2].width
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(labelWidth, 9, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[3].width, 9, inv.Total, "1", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}
