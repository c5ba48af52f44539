// Package export renders an invoice aggregate into downloadable documents.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"invoicing-service/internal/core"
)

// Document is everything a renderer needs: the invoice view with its lines and the
// billed customer. Renderers never touch the database.
type Document struct {
	Invoice  core.InvoiceView
	Customer core.Customer
	Issuer   string
}

// Renderer writes one document format.
type Renderer interface {
	Format() string
	ContentType() string
	Render(w io.Writer, doc Document) error
}

// Supported formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ForFormat returns the renderer for format ("pdf" or "xlsx").
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case FormatPDF:
		return PDFRenderer{}, nil
	case FormatXLSX:
		return WorkbookRenderer{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// Filename returns the download name for invoice id in the renderer's format.
func Filename(r Renderer, invoiceID int) string {
	return fmt.Sprintf("invoice-%d.%s", invoiceID, r.Format())
}

// RenderBytes renders doc fully into memory so a failure never produces a truncated response.
func RenderBytes(r Renderer, doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
