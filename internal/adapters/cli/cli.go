// Package cli renders admin command results as plain text.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"invoicing-service/internal/app"
)

// ErrTotalsMismatch is returned by PrintAudit when at least one invoice is out of balance.
var ErrTotalsMismatch = errors.New("stored invoice totals do not match their lines")

// PrintAudit writes the totals audit report. It returns ErrTotalsMismatch when the
// report is not clean so callers can exit non-zero.
func PrintAudit(w io.Writer, result *app.AuditResult) error {
	if len(result.Mismatches) == 0 {
		fmt.Fprintln(w, "All invoice totals match their line items.")
		return nil
	}

	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "  %-10s %-10s %18s %18s\n", "INVOICE", "USER", "STORED", "COMPUTED")
	fmt.Fprintln(w, strings.Repeat("-", 62))
	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "  %-10d %-10d %18s %18s\n", m.InvoiceID, m.UserID, m.Stored.StringFixed(2), m.Computed.StringFixed(2))
	}
	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "%d invoice(s) out of balance. Run `invoicectl reconcile` to repair.\n", len(result.Mismatches))
	return ErrTotalsMismatch
}

// PrintReconcile writes the outcome of a reconcile run.
func PrintReconcile(w io.Writer, invoiceID int, result *app.ReconcileResult) {
	if result.Total != nil {
		fmt.Fprintf(w, "Invoice %d reconciled, total %s.\n", invoiceID, result.Total.StringFixed(2))
		return
	}
	fmt.Fprintf(w, "Reconciled %d invoice(s).\n", result.Invoices)
}

// WriteDocument writes a rendered export to path, or to w when path is "-".
func WriteDocument(w io.Writer, path string, doc *app.DocumentResult) error {
	if path == "" {
		path = doc.Filename
	}
	if path == "-" {
		_, err := w.Write(doc.Data)
		return err
	}
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(w, "Wrote %s (%d bytes).\n", path, len(doc.Data))
	return nil
}
