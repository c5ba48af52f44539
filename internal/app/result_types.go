package app

import (
	"invoicing-service/internal/core"

	"github.com/shopspring/decimal"
)

// UserSession is returned by AuthenticateUser.
type UserSession struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// Principal returns the ownership identity of the session.
func (s UserSession) Principal() core.Principal {
	return core.Principal{UserID: s.UserID, Username: s.Username}
}

// UserResult is returned by Register and GetUser.
type UserResult struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// CustomerListResult is returned by ListCustomers.
type CustomerListResult struct {
	Customers []core.Customer
}

// ItemListResult is returned by ListItems.
type ItemListResult struct {
	Items []core.CatalogItem
}

// InvoiceResult carries one invoice aggregate with its lines.
type InvoiceResult struct {
	Invoice core.InvoiceView
}

// InvoiceListResult is returned by ListInvoices; views carry no lines.
type InvoiceListResult struct {
	Invoices []core.InvoiceView
}

// LineResult carries one ledger line.
type LineResult struct {
	Line core.LineItemView
}

// LineListResult is returned by ListInvoiceLines.
type LineListResult struct {
	Lines []core.LineItemView
}

// DocumentResult is a rendered export.
type DocumentResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AuditResult is returned by AuditTotals.
type AuditResult struct {
	Mismatches []core.TotalMismatch
}

// ReconcileResult is returned by the reconcile operations. Total is set only when a
// single invoice was reconciled.
type ReconcileResult struct {
	Invoices int
	Total    *decimal.Decimal
}
