package app

import (
	"context"

	"invoicing-service/internal/core"
)

// ApplicationService is the single interface the HTTP adapter calls. Every method that
// touches owned data takes the caller's Principal; implementations never read it from
// anywhere else. Implementations contain no transport or display logic.
type ApplicationService interface {
	// Register creates a user account. core.ErrUsernameTaken on duplicates.
	Register(ctx context.Context, req CredentialsRequest) (*UserResult, error)

	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, req CredentialsRequest) (*UserSession, error)

	// GetUser returns the user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	ListCustomers(ctx context.Context, p core.Principal) (*CustomerListResult, error)
	CreateCustomer(ctx context.Context, p core.Principal, in core.CustomerInput) (*core.Customer, error)
	GetCustomer(ctx context.Context, p core.Principal, id int) (*core.Customer, error)
	UpdateCustomer(ctx context.Context, p core.Principal, id int, patch core.CustomerPatch) (*core.Customer, error)
	// DeleteCustomer also removes the customer's invoices and their lines.
	DeleteCustomer(ctx context.Context, p core.Principal, id int) error

	ListItems(ctx context.Context, p core.Principal) (*ItemListResult, error)
	CreateItem(ctx context.Context, p core.Principal, in core.CatalogItemInput) (*core.CatalogItem, error)
	GetItem(ctx context.Context, p core.Principal, id int) (*core.CatalogItem, error)
	// UpdateItem never changes prices already snapshotted onto invoice lines.
	UpdateItem(ctx context.Context, p core.Principal, id int, patch core.CatalogItemPatch) (*core.CatalogItem, error)
	// DeleteItem removes lines that reference the item and reconciles their invoices.
	DeleteItem(ctx context.Context, p core.Principal, id int) error

	// ListInvoices returns the caller's invoices without lines.
	ListInvoices(ctx context.Context, p core.Principal) (*InvoiceListResult, error)
	// GetInvoice returns the invoice with its lines.
	GetInvoice(ctx context.Context, p core.Principal, id int) (*InvoiceResult, error)
	CreateInvoice(ctx context.Context, p core.Principal, in core.InvoiceInput) (*InvoiceResult, error)
	UpdateInvoice(ctx context.Context, p core.Principal, id int, patch core.InvoicePatch) (*InvoiceResult, error)
	DeleteInvoice(ctx context.Context, p core.Principal, id int) error

	ListInvoiceLines(ctx context.Context, p core.Principal, invoiceID int) (*LineListResult, error)
	AddInvoiceLine(ctx context.Context, p core.Principal, invoiceID int, in core.LineInput) (*LineResult, error)
	GetInvoiceLine(ctx context.Context, p core.Principal, lineID int) (*LineResult, error)
	UpdateInvoiceLine(ctx context.Context, p core.Principal, lineID int, patch core.LinePatch) (*LineResult, error)
	DeleteInvoiceLine(ctx context.Context, p core.Principal, lineID int) error

	// ExportInvoice reads the invoice and renders it in format ("pdf" or "xlsx").
	// Rendering happens after the read has completed.
	ExportInvoice(ctx context.Context, p core.Principal, id int, format string) (*DocumentResult, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error
}

// AdminService holds operator tasks that are not scoped to a principal. Only the admin
// CLI may use it.
type AdminService interface {
	// AuditTotals reports every invoice whose stored total differs from its line sum.
	AuditTotals(ctx context.Context) (*AuditResult, error)
	// Reconcile recomputes the stored total of one invoice.
	Reconcile(ctx context.Context, invoiceID int) (*ReconcileResult, error)
	// ReconcileAll recomputes every invoice, one transaction each.
	ReconcileAll(ctx context.Context) (*ReconcileResult, error)
	// ExportForUser renders an invoice on behalf of the user that owns it.
	ExportForUser(ctx context.Context, req ExportRequest) (*DocumentResult, error)
}
