package app

import (
	"context"
	"fmt"

	"invoicing-service/internal/core"
	"invoicing-service/internal/export"

	"github.com/jackc/pgx/v5/pgxpool"
)

type appService struct {
	pool       *pgxpool.Pool
	users      core.UserService
	customers  core.CustomerService
	catalog    core.CatalogService
	invoices   core.InvoiceService
	ledger     core.LedgerService
	reconciler *core.Reconciler
}

// Services bundles the core services the application layer composes.
type Services struct {
	Users      core.UserService
	Customers  core.CustomerService
	Catalog    core.CatalogService
	Invoices   core.InvoiceService
	Ledger     core.LedgerService
	Reconciler *core.Reconciler
}

// NewServices wires every core service against pool.
func NewServices(pool *pgxpool.Pool, phoneRegion string) Services {
	return Services{
		Users:      core.NewUserService(pool),
		Customers:  core.NewCustomerService(pool, phoneRegion),
		Catalog:    core.NewCatalogService(pool),
		Invoices:   core.NewInvoiceService(pool),
		Ledger:     core.NewLedger(pool),
		Reconciler: core.NewReconciler(pool),
	}
}

// NewAppService constructs the ApplicationService used by the HTTP adapter.
func NewAppService(pool *pgxpool.Pool, s Services) ApplicationService {
	return newAppService(pool, s)
}

// NewAdminService constructs the AdminService used by the admin CLI.
func NewAdminService(pool *pgxpool.Pool, s Services) AdminService {
	return newAppService(pool, s)
}

func newAppService(pool *pgxpool.Pool, s Services) *appService {
	return &appService{
		pool:       pool,
		users:      s.Users,
		customers:  s.Customers,
		catalog:    s.Catalog,
		invoices:   s.Invoices,
		ledger:     s.Ledger,
		reconciler: s.Reconciler,
	}
}

var (
	_ ApplicationService = (*appService)(nil)
	_ AdminService       = (*appService)(nil)
)

func (s *appService) Register(ctx context.Context, req CredentialsRequest) (*UserResult, error) {
	u, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return &UserResult{UserID: u.ID, Username: u.Username}, nil
}

func (s *appService) AuthenticateUser(ctx context.Context, req CredentialsRequest) (*UserSession, error) {
	u, err := s.users.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return &UserSession{UserID: u.ID, Username: u.Username}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{UserID: u.ID, Username: u.Username}, nil
}

// Customers

func (s *appService) ListCustomers(ctx context.Context, p core.Principal) (*CustomerListResult, error) {
	customers, err := s.customers.ListCustomers(ctx, p)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) CreateCustomer(ctx context.Context, p core.Principal, in core.CustomerInput) (*core.Customer, error) {
	return s.customers.CreateCustomer(ctx, p, in)
}

func (s *appService) GetCustomer(ctx context.Context, p core.Principal, id int) (*core.Customer, error) {
	return s.customers.GetCustomer(ctx, p, id)
}

func (s *appService) UpdateCustomer(ctx context.Context, p core.Principal, id int, patch core.CustomerPatch) (*core.Customer, error) {
	return s.customers.UpdateCustomer(ctx, p, id, patch)
}

func (s *appService) DeleteCustomer(ctx context.Context, p core.Principal, id int) error {
	return s.customers.DeleteCustomer(ctx, p, id)
}

// Catalog

func (s *appService) ListItems(ctx context.Context, p core.Principal) (*ItemListResult, error) {
	items, err := s.catalog.ListItems(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) CreateItem(ctx context.Context, p core.Principal, in core.CatalogItemInput) (*core.CatalogItem, error) {
	return s.catalog.CreateItem(ctx, p, in)
}

func (s *appService) GetItem(ctx context.Context, p core.Principal, id int) (*core.CatalogItem, error) {
	return s.catalog.GetItem(ctx, p, id)
}

func (s *appService) UpdateItem(ctx context.Context, p core.Principal, id int, patch core.CatalogItemPatch) (*core.CatalogItem, error) {
	return s.catalog.UpdateItem(ctx, p, id, patch)
}

func (s *appService) DeleteItem(ctx context.Context, p core.Principal, id int) error {
	return s.catalog.DeleteItem(ctx, p, id)
}

// Invoices

func (s *appService) ListInvoices(ctx context.Context, p core.Principal) (*InvoiceListResult, error) {
	invoices, err := s.invoices.ListInvoices(ctx, p)
	if err != nil {
		return nil, err
	}
	views := make([]core.InvoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, core.ToView(&invoices[i], false))
	}
	return &InvoiceListResult{Invoices: views}, nil
}

func (s *appService) GetInvoice(ctx context.Context, p core.Principal, id int) (*InvoiceResult, error) {
	inv, err := s.invoices.GetInvoice(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: core.ToView(inv, true)}, nil
}

func (s *appService) CreateInvoice(ctx context.Context, p core.Principal, in core.InvoiceInput) (*InvoiceResult, error) {
	inv, err := s.invoices.CreateInvoice(ctx, p, in)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: core.ToView(inv, true)}, nil
}

func (s *appService) UpdateInvoice(ctx context.Context, p core.Principal, id int, patch core.InvoicePatch) (*InvoiceResult, error) {
	inv, err := s.invoices.UpdateInvoice(ctx, p, id, patch)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: core.ToView(inv, true)}, nil
}

func (s *appService) DeleteInvoice(ctx context.Context, p core.Principal, id int) error {
	return s.invoices.DeleteInvoice(ctx, p, id)
}

// Ledger

func (s *appService) ListInvoiceLines(ctx context.Context, p core.Principal, invoiceID int) (*LineListResult, error) {
	lines, err := s.ledger.ListLines(ctx, p, invoiceID)
	if err != nil {
		return nil, err
	}
	views := make([]core.LineItemView, 0, len(lines))
	for _, l := range lines {
		views = append(views, core.ToLineView(l))
	}
	return &LineListResult{Lines: views}, nil
}

func (s *appService) AddInvoiceLine(ctx context.Context, p core.Principal, invoiceID int, in core.LineInput) (*LineResult, error) {
	line, err := s.ledger.AddLine(ctx, p, invoiceID, in)
	if err != nil {
		return nil, err
	}
	return &LineResult{Line: core.ToLineView(*line)}, nil
}

func (s *appService) GetInvoiceLine(ctx context.Context, p core.Principal, lineID int) (*LineResult, error) {
	line, err := s.ledger.GetLine(ctx, p, lineID)
	if err != nil {
		return nil, err
	}
	return &LineResult{Line: core.ToLineView(*line)}, nil
}

func (s *appService) UpdateInvoiceLine(ctx context.Context, p core.Principal, lineID int, patch core.LinePatch) (*LineResult, error) {
	line, err := s.ledger.UpdateLine(ctx, p, lineID, patch)
	if err != nil {
		return nil, err
	}
	return &LineResult{Line: core.ToLineView(*line)}, nil
}

func (s *appService) DeleteInvoiceLine(ctx context.Context, p core.Principal, lineID int) error {
	return s.ledger.DeleteLine(ctx, p, lineID)
}

// Export

func (s *appService) ExportInvoice(ctx context.Context, p core.Principal, id int, format string) (*DocumentResult, error) {
	renderer, err := export.ForFormat(format)
	if err != nil {
		return nil, &core.ValidationError{Field: "format", Message: err.Error()}
	}

	inv, err := s.invoices.GetInvoice(ctx, p, id)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.GetCustomer(ctx, p, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer of invoice %d: %w", id, err)
	}

	data, err := export.RenderBytes(renderer, export.Document{
		Invoice:  core.ToView(inv, true),
		Customer: *customer,
		Issuer:   p.Username,
	})
	if err != nil {
		return nil, err
	}
	return &DocumentResult{
		Filename:    export.Filename(renderer, id),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *appService) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Admin

func (s *appService) AuditTotals(ctx context.Context) (*AuditResult, error) {
	mismatches, err := s.reconciler.Audit(ctx)
	if err != nil {
		return nil, err
	}
	return &AuditResult{Mismatches: mismatches}, nil
}

func (s *appService) Reconcile(ctx context.Context, invoiceID int) (*ReconcileResult, error) {
	total, err := s.reconciler.ReconcileInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Invoices: 1, Total: &total}, nil
}

func (s *appService) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	n, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Invoices: n}, nil
}

func (s *appService) ExportForUser(ctx context.Context, req ExportRequest) (*DocumentResult, error) {
	u, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return s.ExportInvoice(ctx, u.Principal(), req.InvoiceID, req.Format)
}
