package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// guard resolves ids to entities only when their owning principal is the caller.
// Rows owned by someone else are reported exactly like missing rows: ErrNotFound.
// Ownership is direct for customers, catalog items and invoices and goes through
// the parent invoice for line items.
type guard struct{}

const customerColumns = `id, user_id, name, email, address, phone, created_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Address, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const itemColumns = `id, user_id, name, description, unit_price, created_at`

func scanCatalogItem(row pgx.Row) (*CatalogItem, error) {
	var it CatalogItem
	err := row.Scan(&it.ID, &it.UserID, &it.Name, &it.Description, &it.UnitPrice, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

const invoiceColumns = `id, user_id, customer_id, issue_date, due_date, status, total, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.UserID, &inv.CustomerID, &inv.IssueDate, &inv.DueDate,
		&inv.Status, &inv.Total, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// notFound maps pgx.ErrNoRows to ErrNotFound and wraps anything else.
func notFound(err error, kind string, id int) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s %d: %w", kind, id, err)
}

func (guard) customer(ctx context.Context, q pgxQuerier, p Principal, id int) (*Customer, error) {
	c, err := scanCustomer(q.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 AND user_id = $2`,
		id, p.UserID,
	))
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return c, nil
}

func (guard) catalogItem(ctx context.Context, q pgxQuerier, p Principal, id int) (*CatalogItem, error) {
	it, err := scanCatalogItem(q.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND user_id = $2`,
		id, p.UserID,
	))
	if err != nil {
		return nil, notFound(err, "item", id)
	}
	return it, nil
}

// invoice loads the invoice header. With lock set the row is locked FOR UPDATE, which
// serializes every ledger mutation against the same invoice until the caller's
// transaction ends.
func (guard) invoice(ctx context.Context, q pgxQuerier, p Principal, id int, lock bool) (*Invoice, error) {
	sql := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND user_id = $2`
	if lock {
		sql += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, sql, id, p.UserID))
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	return inv, nil
}

// lineInvoiceID returns the id of the invoice owning line id, checked against the caller.
func (guard) lineInvoiceID(ctx context.Context, q pgxQuerier, p Principal, id int) (int, error) {
	var invoiceID int
	err := q.QueryRow(ctx, `
		SELECT li.invoice_id
		FROM invoice_items li
		JOIN invoices i ON i.id = li.invoice_id
		WHERE li.id = $1 AND i.user_id = $2
	`, id, p.UserID).Scan(&invoiceID)
	if err != nil {
		return 0, notFound(err, "invoice item", id)
	}
	return invoiceID, nil
}

// lineItem loads a line item through its parent invoice's owner.
func (guard) lineItem(ctx context.Context, q pgxQuerier, p Principal, id int) (*LineItem, error) {
	li, err := scanLineItem(q.QueryRow(ctx, `
		SELECT `+lineColumns+`
		FROM invoice_items li
		JOIN invoices i ON i.id = li.invoice_id
		JOIN items it ON it.id = li.item_id
		WHERE li.id = $1 AND i.user_id = $2
	`, id, p.UserID))
	if err != nil {
		return nil, notFound(err, "invoice item", id)
	}
	return li, nil
}
