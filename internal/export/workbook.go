package export

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// WorkbookRenderer writes the invoice as a one-sheet spreadsheet: a header block
// followed by the line table and the total.
type WorkbookRenderer struct{}

const invoiceSheet = "Invoice"

func (WorkbookRenderer) Format() string { return FormatXLSX }
func (WorkbookRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (WorkbookRenderer) Render(w io.Writer, doc Document) error {
	inv := doc.Invoice

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	due := ""
	if inv.DueDate != nil {
		due = *inv.DueDate
	}
	header := [][]any{
		{"Invoice", inv.ID},
		{"Customer", doc.Customer.Name},
		{"Email", deref(doc.Customer.Email)},
		{"Issue date", inv.IssueDate},
		{"Due date", due},
		{"Status", inv.Status},
	}
	row := 1
	for _, h := range header {
		if err := setRow(f, row, h); err != nil {
			return err
		}
		row++
	}

	row++
	if err := setRow(f, row, []any{"Item", "Quantity", "Unit price", "Amount"}); err != nil {
		return err
	}
	for _, l := range inv.Items {
		row++
		if err := setRow(f, row, []any{l.ItemName, l.Quantity, money(l.UnitPrice), money(l.Total)}); err != nil {
			return err
		}
	}
	row++
	if err := setRow(f, row, []any{"Total", nil, nil, money(inv.Total)}); err != nil {
		return err
	}

	if err := f.SetColWidth(invoiceSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(invoiceSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// money converts a two-decimal string back to a number cell. Amounts come from
// StringFixed so parsing cannot fail; a bad value falls back to the text.
func money(s string) any {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return f
}
