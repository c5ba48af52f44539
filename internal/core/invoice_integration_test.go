package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"invoicing-service/internal/core"
	"invoicing-service/internal/logging"
	"invoicing-service/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type fixture struct {
	pool       *pgxpool.Pool
	users      core.UserService
	customers  core.CustomerService
	catalog    core.CatalogService
	invoices   core.InvoiceService
	ledger     core.LedgerService
	reconciler *core.Reconciler
	alice, bob core.Principal
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every run truncates it.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := migrations.Apply(ctx, pool, logging.Discard()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	_, err = pool.Exec(ctx, `TRUNCATE TABLE invoice_items, invoices, items, customers, users RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	f := &fixture{
		pool:       pool,
		users:      core.NewUserService(pool),
		customers:  core.NewCustomerService(pool, "US"),
		catalog:    core.NewCatalogService(pool),
		invoices:   core.NewInvoiceService(pool),
		ledger:     core.NewLedger(pool),
		reconciler: core.NewReconciler(pool),
	}
	f.alice = f.register(t, "alice")
	f.bob = f.register(t, "bob")
	return f
}

func (f *fixture) register(t *testing.T, username string) core.Principal {
	t.Helper()
	u, err := f.users.Register(context.Background(), username, "password-"+username)
	if err != nil {
		t.Fatalf("Register %s: %v", username, err)
	}
	return u.Principal()
}

func (f *fixture) customer(t *testing.T, p core.Principal, name string) *core.Customer {
	t.Helper()
	c, err := f.customers.CreateCustomer(context.Background(), p, core.CustomerInput{Name: name})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	return c
}

func (f *fixture) item(t *testing.T, p core.Principal, name, price string) *core.CatalogItem {
	t.Helper()
	up := decimal.RequireFromString(price)
	it, err := f.catalog.CreateItem(context.Background(), p, core.CatalogItemInput{Name: name, UnitPrice: &up})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return it
}

func qty(n int) *int { return &n }

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// assertConsistent checks the stored total against the line sum as re-read from the database.
func assertConsistent(t *testing.T, f *fixture, p core.Principal, invoiceID int, want string) {
	t.Helper()
	inv, err := f.invoices.GetInvoice(context.Background(), p, invoiceID)
	if err != nil {
		t.Fatalf("GetInvoice %d: %v", invoiceID, err)
	}
	if !inv.Total.Equal(core.SumLines(inv.Lines)) {
		t.Fatalf("invoice %d: stored total %s != line sum %s", invoiceID, inv.Total, core.SumLines(inv.Lines))
	}
	if got := inv.Total.StringFixed(2); got != want {
		t.Fatalf("invoice %d: total = %s, want %s", invoiceID, got, want)
	}
}

func TestInvoiceLedgerScenarios(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "100.00")

	// A: create with one line of quantity 2
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID, Quantity: qty(2)}},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.Status != core.DefaultInvoiceStatus {
		t.Errorf("status = %q, want %q", inv.Status, core.DefaultInvoiceStatus)
	}
	if got := inv.Total.StringFixed(2); got != "200.00" {
		t.Fatalf("A: total = %s, want 200.00", got)
	}
	if len(inv.Lines) != 1 {
		t.Fatalf("A: %d lines, want 1", len(inv.Lines))
	}
	first := inv.Lines[0]

	// B: add a line with a price override
	second, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, Quantity: qty(1), UnitPrice: price("150.00")})
	if err != nil {
		t.Fatalf("AddLine: %v", err)
	}
	if second.UnitPrice.StringFixed(2) != "150.00" {
		t.Errorf("B: unit price = %s, want override 150.00", second.UnitPrice)
	}
	assertConsistent(t, f, f.alice, inv.ID, "350.00")

	// C: update the first line's quantity only
	updated, err := f.ledger.UpdateLine(ctx, f.alice, first.ID, core.LinePatch{Quantity: qty(3)})
	if err != nil {
		t.Fatalf("UpdateLine: %v", err)
	}
	if updated.Quantity != 3 || updated.UnitPrice.StringFixed(2) != "100.00" {
		t.Errorf("C: line = %+v, unit price must be unchanged", updated)
	}
	assertConsistent(t, f, f.alice, inv.ID, "450.00")

	// D: delete the second line
	if err := f.ledger.DeleteLine(ctx, f.alice, second.ID); err != nil {
		t.Fatalf("DeleteLine: %v", err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "300.00")

	// E: replace with an empty list
	emptied, err := f.invoices.UpdateInvoice(ctx, f.alice, inv.ID, core.InvoicePatch{Items: core.Some([]core.LineInput{})})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if len(emptied.Lines) != 0 || emptied.Total.StringFixed(2) != "0.00" {
		t.Fatalf("E: lines = %d total = %s, want empty ledger and 0.00", len(emptied.Lines), emptied.Total)
	}

	// F: another principal cannot see the invoice
	if _, err := f.invoices.GetInvoice(ctx, f.bob, inv.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("F: err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotPriceSurvivesCatalogChange(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "100.00")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID, Quantity: qty(2)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.catalog.UpdateItem(ctx, f.alice, widget.ID, core.CatalogItemPatch{UnitPrice: core.Some(decimal.RequireFromString("999.99"))})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	got, err := f.invoices.GetInvoice(ctx, f.alice, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Lines[0].UnitPrice.StringFixed(2) != "100.00" {
		t.Errorf("line price changed to %s after catalog edit", got.Lines[0].UnitPrice)
	}
	assertConsistent(t, f, f.alice, inv.ID, "200.00")

	// New lines pick up the new catalog price.
	added, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID})
	if err != nil {
		t.Fatal(err)
	}
	if added.Quantity != 1 || added.UnitPrice.StringFixed(2) != "999.99" {
		t.Errorf("added line = %+v, want quantity 1 at 999.99", added)
	}
	assertConsistent(t, f, f.alice, inv.ID, "1199.99")
}

func TestOwnershipIsolation(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "10.00")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID}},
	})
	if err != nil {
		t.Fatal(err)
	}
	lineID := inv.Lines[0].ID

	checks := map[string]error{}
	_, checks["customer"] = f.customers.GetCustomer(ctx, f.bob, cust.ID)
	_, checks["item"] = f.catalog.GetItem(ctx, f.bob, widget.ID)
	_, checks["invoice"] = f.invoices.GetInvoice(ctx, f.bob, inv.ID)
	_, checks["invoice item"] = f.ledger.GetLine(ctx, f.bob, lineID)
	_, checks["list lines"] = f.ledger.ListLines(ctx, f.bob, inv.ID)
	_, checks["update line"] = f.ledger.UpdateLine(ctx, f.bob, lineID, core.LinePatch{Quantity: qty(5)})
	checks["delete line"] = f.ledger.DeleteLine(ctx, f.bob, lineID)
	checks["delete invoice"] = f.invoices.DeleteInvoice(ctx, f.bob, inv.ID)
	checks["delete item"] = f.catalog.DeleteItem(ctx, f.bob, widget.ID)
	checks["delete customer"] = f.customers.DeleteCustomer(ctx, f.bob, cust.ID)
	for name, err := range checks {
		if !errors.Is(err, core.ErrNotFound) {
			t.Errorf("%s: err = %v, want ErrNotFound", name, err)
		}
	}

	// Bob cannot reference Alice's catalog item or customer from his own invoice.
	bobCust := f.customer(t, f.bob, "Bobco")
	bobInv, err := f.invoices.CreateInvoice(ctx, f.bob, core.InvoiceInput{CustomerID: bobCust.ID})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.ledger.AddLine(ctx, f.bob, bobInv.ID, core.LineInput{ItemID: widget.ID})
	if !errors.Is(err, core.ErrItemNotFound) {
		t.Errorf("foreign item: err = %v, want ErrItemNotFound", err)
	}
	_, err = f.invoices.CreateInvoice(ctx, f.bob, core.InvoiceInput{CustomerID: cust.ID})
	if !errors.Is(err, core.ErrCustomerRequired) {
		t.Errorf("foreign customer: err = %v, want ErrCustomerRequired", err)
	}

	// Alice's data is untouched.
	assertConsistent(t, f, f.alice, inv.ID, "10.00")
}

func TestCascadeDeletes(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "5.00")
	mk := func() *core.Invoice {
		inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
			CustomerID: cust.ID,
			Items:      []core.LineInput{{ItemID: widget.ID}, {ItemID: widget.ID, Quantity: qty(2)}},
		})
		if err != nil {
			t.Fatal(err)
		}
		return inv
	}

	first := mk()
	if err := f.invoices.DeleteInvoice(ctx, f.alice, first.ID); err != nil {
		t.Fatalf("DeleteInvoice: %v", err)
	}
	for _, l := range first.Lines {
		if _, err := f.ledger.GetLine(ctx, f.alice, l.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("line %d after invoice delete: err = %v", l.ID, err)
		}
	}

	second := mk()
	if err := f.customers.DeleteCustomer(ctx, f.alice, cust.ID); err != nil {
		t.Fatalf("DeleteCustomer: %v", err)
	}
	if _, err := f.invoices.GetInvoice(ctx, f.alice, second.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("invoice after customer delete: err = %v", err)
	}
	for _, l := range second.Lines {
		if _, err := f.ledger.GetLine(ctx, f.alice, l.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("line %d after customer delete: err = %v", l.ID, err)
		}
	}
}

func TestCatalogDeleteReconcilesInvoices(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "100.00")
	gadget := f.item(t, f.alice, "Gadget", "7.50")

	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items: []core.LineInput{
			{ItemID: widget.ID, Quantity: qty(2)},
			{ItemID: gadget.ID, Quantity: qty(4)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "230.00")

	if err := f.catalog.DeleteItem(ctx, f.alice, widget.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "30.00")
}

func TestReplaceLinesIsIdempotentAndAtomic(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "12.34")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{CustomerID: cust.ID})
	if err != nil {
		t.Fatal(err)
	}

	lines := []core.LineInput{
		{ItemID: widget.ID, Quantity: qty(3)},
		{ItemID: widget.ID, UnitPrice: price("0.66")},
	}
	for i := 0; i < 2; i++ {
		created, err := f.ledger.ReplaceLines(ctx, f.alice, inv.ID, lines)
		if err != nil {
			t.Fatalf("ReplaceLines #%d: %v", i+1, err)
		}
		if len(created) != 2 || created[0].Position != 1 || created[1].Position != 2 {
			t.Fatalf("ReplaceLines #%d: unexpected lines %+v", i+1, created)
		}
		assertConsistent(t, f, f.alice, inv.ID, "37.68")
	}

	// An unresolvable entry in the middle aborts the whole replacement.
	_, err = f.ledger.ReplaceLines(ctx, f.alice, inv.ID, []core.LineInput{
		{ItemID: widget.ID},
		{ItemID: 999999},
		{ItemID: widget.ID},
	})
	if !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	got, err := f.invoices.GetInvoice(ctx, f.alice, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Lines) != 2 {
		t.Errorf("failed replace left %d lines, want the original 2", len(got.Lines))
	}
	assertConsistent(t, f, f.alice, inv.ID, "37.68")

	// Same through the invoice patch path.
	_, err = f.invoices.UpdateInvoice(ctx, f.alice, inv.ID, core.InvoicePatch{
		Status: core.Some("sent"),
		Items:  core.Some([]core.LineInput{{ItemID: 999999}}),
	})
	if !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	got, err = f.invoices.GetInvoice(ctx, f.alice, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != core.DefaultInvoiceStatus {
		t.Errorf("header change leaked from failed patch: status = %q", got.Status)
	}
}

func TestConcurrentAddsKeepTotalConsistent(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "1.01")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{CustomerID: cust.ID})
	if err != nil {
		t.Fatal(err)
	}

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, Quantity: qty(n + 1)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddLine: %v", err)
		}
	}

	// sum(1..20) = 210 units at 1.01
	assertConsistent(t, f, f.alice, inv.ID, "212.10")

	got, err := f.invoices.GetInvoice(ctx, f.alice, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, l := range got.Lines {
		if seen[l.Position] {
			t.Errorf("duplicate line position %d", l.Position)
		}
		seen[l.Position] = true
	}
}

func TestConcurrentMixedMutations(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "2.50")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID}, {ItemID: widget.ID}, {ItemID: widget.ID}},
	})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for _, l := range inv.Lines {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			_, _ = f.ledger.UpdateLine(ctx, f.alice, id, core.LinePatch{Quantity: qty(4)})
		}(l.ID)
		go func() {
			defer wg.Done()
			_, _ = f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, Quantity: qty(2)})
		}()
	}
	wg.Wait()

	// 3 lines × 4 + 3 lines × 2 = 18 units at 2.50
	assertConsistent(t, f, f.alice, inv.ID, "45.00")
}

func TestValidationPolicies(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "10.00")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{CustomerID: cust.ID})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		run  func() error
	}{
		{"zero quantity", func() error {
			_, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, Quantity: qty(0)})
			return err
		}},
		{"negative override", func() error {
			_, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, UnitPrice: price("-1")})
			return err
		}},
		{"sub-cent override", func() error {
			_, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, UnitPrice: price("1.001")})
			return err
		}},
		{"missing customer", func() error {
			_, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{})
			return err
		}},
		{"due before issue", func() error {
			issue := core.NewDate(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
			due := core.NewDate(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
			_, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{CustomerID: cust.ID, IssueDate: &issue, DueDate: &due})
			return err
		}},
		{"empty status", func() error {
			_, err := f.invoices.UpdateInvoice(ctx, f.alice, inv.ID, core.InvoicePatch{Status: core.Some("  ")})
			return err
		}},
		{"null customer", func() error {
			_, err := f.invoices.UpdateInvoice(ctx, f.alice, inv.ID, core.InvoicePatch{CustomerID: core.Null[int]()})
			return err
		}},
		{"negative catalog price", func() error {
			_, err := f.catalog.CreateItem(ctx, f.alice, core.CatalogItemInput{Name: "Bad", UnitPrice: price("-3")})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !core.IsValidation(err) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}
	assertConsistent(t, f, f.alice, inv.ID, "0.00")
}

func TestInvoiceHeaderPatch(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	acme := f.customer(t, f.alice, "Acme")
	globex := f.customer(t, f.alice, "Globex")
	widget := f.item(t, f.alice, "Widget", "3.00")
	issue := core.NewDate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	due := core.NewDate(time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC))
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: acme.ID,
		IssueDate:  &issue,
		DueDate:    &due,
		Items:      []core.LineInput{{ItemID: widget.ID, Quantity: qty(5)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := f.invoices.UpdateInvoice(ctx, f.alice, inv.ID, core.InvoicePatch{
		CustomerID: core.Some(globex.ID),
		DueDate:    core.Null[core.Date](),
		Status:     core.Some("sent"),
	})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if updated.CustomerID != globex.ID || updated.DueDate != nil || updated.Status != "sent" {
		t.Errorf("patch not applied: %+v", updated)
	}
	if core.NewDate(updated.IssueDate).String() != "2024-01-10" {
		t.Errorf("issue date changed to %s", updated.IssueDate)
	}
	if len(updated.Lines) != 1 {
		t.Errorf("lines changed by a header-only patch: %+v", updated.Lines)
	}
	assertConsistent(t, f, f.alice, inv.ID, "15.00")

	list, err := f.invoices.ListInvoices(ctx, f.alice)
	if err != nil || len(list) != 1 || list[0].Lines != nil {
		t.Errorf("ListInvoices = %+v, %v", list, err)
	}
}

func TestCustomerPatchAndPhone(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	phone := "415 555 2671"
	email := "billing@acme.test"
	c, err := f.customers.CreateCustomer(ctx, f.alice, core.CustomerInput{Name: " Acme ", Email: &email, Phone: &phone})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if c.Name != "Acme" || c.Phone == nil || *c.Phone != "+14155552671" {
		t.Errorf("customer = %+v", c)
	}

	updated, err := f.customers.UpdateCustomer(ctx, f.alice, c.ID, core.CustomerPatch{
		Email:   core.Null[string](),
		Address: core.Some("1 Main St"),
	})
	if err != nil {
		t.Fatalf("UpdateCustomer: %v", err)
	}
	if updated.Email != nil || updated.Address == nil || *updated.Address != "1 Main St" || updated.Name != "Acme" {
		t.Errorf("patch result = %+v", updated)
	}

	bad := "twelve"
	if _, err := f.customers.CreateCustomer(ctx, f.alice, core.CustomerInput{Name: "X", Phone: &bad}); !core.IsValidation(err) {
		t.Errorf("bad phone: err = %v", err)
	}
	if _, err := f.customers.UpdateCustomer(ctx, f.alice, c.ID, core.CustomerPatch{Name: core.Some("")}); !core.IsValidation(err) {
		t.Errorf("empty name: err = %v", err)
	}
}

func TestAuditAndReconcile(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "8.00")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID, Quantity: qty(2)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	mismatches, err := f.reconciler.Audit(ctx)
	if err != nil || len(mismatches) != 0 {
		t.Fatalf("clean audit = %+v, %v", mismatches, err)
	}

	// Corrupt the stored total behind the services' back.
	if _, err := f.pool.Exec(ctx, `UPDATE invoices SET total = 1 WHERE id = $1`, inv.ID); err != nil {
		t.Fatal(err)
	}
	mismatches, err = f.reconciler.Audit(ctx)
	if err != nil || len(mismatches) != 1 || mismatches[0].InvoiceID != inv.ID {
		t.Fatalf("audit = %+v, %v", mismatches, err)
	}
	if mismatches[0].Computed.StringFixed(2) != "16.00" {
		t.Errorf("computed = %s, want 16.00", mismatches[0].Computed)
	}

	total, err := f.reconciler.ReconcileInvoice(ctx, inv.ID)
	if err != nil || total.StringFixed(2) != "16.00" {
		t.Fatalf("ReconcileInvoice = %s, %v", total, err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "16.00")

	n, err := f.reconciler.ReconcileAll(ctx)
	if err != nil || n != 1 {
		t.Errorf("ReconcileAll = %d, %v", n, err)
	}
	if _, err := f.reconciler.ReconcileInvoice(ctx, 424242); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing invoice: err = %v", err)
	}
}

func TestUserRegistrationAndLogin(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	if _, err := f.users.Register(ctx, "alice", "another-password"); !errors.Is(err, core.ErrUsernameTaken) {
		t.Errorf("duplicate username: err = %v", err)
	}
	if _, err := f.users.Register(ctx, "carol", "short"); !core.IsValidation(err) {
		t.Errorf("short password: err = %v", err)
	}

	u, err := f.users.Authenticate(ctx, "alice", "password-alice")
	if err != nil || u.ID != f.alice.UserID {
		t.Fatalf("Authenticate = %+v, %v", u, err)
	}
	for _, creds := range [][2]string{{"alice", "wrong"}, {"nobody", "password-alice"}} {
		if _, err := f.users.Authenticate(ctx, creds[0], creds[1]); !errors.Is(err, core.ErrInvalidCredentials) {
			t.Errorf("Authenticate(%s): err = %v", fmt.Sprint(creds), err)
		}
	}
}

func TestColumnLimitsAreValidationErrors(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "9999999999.99")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{
		CustomerID: cust.ID,
		Items:      []core.LineInput{{ItemID: widget.ID}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// Each value fits its column, but the invoice total would not.
	_, err = f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, Quantity: qty(1000)})
	if !core.IsValidation(err) {
		t.Errorf("overflowing add: err = %v, want validation error", err)
	}
	_, err = f.ledger.UpdateLine(ctx, f.alice, inv.Lines[0].ID, core.LinePatch{Quantity: qty(1000)})
	if !core.IsValidation(err) {
		t.Errorf("overflowing update: err = %v, want validation error", err)
	}
	_, err = f.ledger.ReplaceLines(ctx, f.alice, inv.ID, []core.LineInput{
		{ItemID: widget.ID, Quantity: qty(60)},
		{ItemID: widget.ID, Quantity: qty(60)},
	})
	if !core.IsValidation(err) {
		t.Errorf("overflowing replace: err = %v, want validation error", err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "9999999999.99")

	_, err = f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID, UnitPrice: price("1e50000000")})
	if !core.IsValidation(err) {
		t.Errorf("oversized override: err = %v, want validation error", err)
	}
	_, err = f.catalog.CreateItem(ctx, f.alice, core.CatalogItemInput{Name: "Huge", UnitPrice: price("10000000000")})
	if !core.IsValidation(err) {
		t.Errorf("oversized catalog price: err = %v, want validation error", err)
	}
}

func TestCatalogItemNames(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	_, err := f.catalog.CreateItem(ctx, f.alice, core.CatalogItemInput{Name: "   ", UnitPrice: price("1.00")})
	if !core.IsValidation(err) {
		t.Errorf("blank name: err = %v, want validation error", err)
	}

	widget := f.item(t, f.alice, "  Widget  ", "1.00")
	if widget.Name != "Widget" {
		t.Errorf("name = %q, want trimmed", widget.Name)
	}
	_, err = f.catalog.UpdateItem(ctx, f.alice, widget.ID, core.CatalogItemPatch{Name: core.Some(strings.Repeat("a", 300))})
	if !core.IsValidation(err) {
		t.Errorf("long name: err = %v, want validation error", err)
	}
	got, err := f.catalog.GetItem(ctx, f.alice, widget.ID)
	if err != nil || got.Name != "Widget" {
		t.Errorf("item after rejected patch = %+v, %v", got, err)
	}
}

func TestAddLineRacingItemDelete(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()

	cust := f.customer(t, f.alice, "Acme")
	widget := f.item(t, f.alice, "Widget", "4.00")
	inv, err := f.invoices.CreateInvoice(ctx, f.alice, core.InvoiceInput{CustomerID: cust.ID})
	if err != nil {
		t.Fatal(err)
	}

	// Hold an uncommitted delete of the item so the insert's foreign key check blocks on it.
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, widget.ID); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.ledger.AddLine(ctx, f.alice, inv.ID, core.LineInput{ItemID: widget.ID})
		done <- err
	}()
	time.Sleep(200 * time.Millisecond)
	if err := tx.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if err := <-done; !errors.Is(err, core.ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	assertConsistent(t, f, f.alice, inv.ID, "0.00")
}
