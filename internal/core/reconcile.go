package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// reconcileTotal recomputes the invoice total from the lines visible to q and stores it.
// It runs unconditionally after every ledger mutation, inside the mutation's transaction
// and while the caller holds the invoice row lock, so the committed total always
// matches the committed lines. Any failure aborts the enclosing mutation.
func reconcileTotal(ctx context.Context, q pgxQuerier, invoiceID int) (decimal.Decimal, error) {
	rows, err := q.Query(ctx, `
		SELECT quantity, unit_price
		FROM invoice_items
		WHERE invoice_id = $1
	`, invoiceID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile invoice %d: failed to read lines: %w", invoiceID, err)
	}
	defer rows.Close()

	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.Quantity, &l.UnitPrice); err != nil {
			return decimal.Zero, fmt.Errorf("reconcile invoice %d: failed to scan line: %w", invoiceID, err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("reconcile invoice %d: %w", invoiceID, err)
	}

	total := SumLines(lines)
	if err := validateTotal(total); err != nil {
		return decimal.Zero, err
	}
	tag, err := q.Exec(ctx,
		`UPDATE invoices SET total = $1, updated_at = NOW() WHERE id = $2`,
		total, invoiceID,
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("reconcile invoice %d: failed to store total: %w", invoiceID, err)
	}
	if tag.RowsAffected() != 1 {
		return decimal.Zero, fmt.Errorf("reconcile invoice %d: %w", invoiceID, ErrNotFound)
	}
	return total, nil
}

// Reconciler exposes reconciliation and the totals audit to operators. These calls are
// not scoped to a principal and must only be reachable from admin tooling.
type Reconciler struct {
	pool *pgxpool.Pool
}

// NewReconciler constructs a Reconciler backed by PostgreSQL.
func NewReconciler(pool *pgxpool.Pool) *Reconciler {
	return &Reconciler{pool: pool}
}

// ReconcileInvoice locks one invoice and rewrites its stored total.
func (r *Reconciler) ReconcileInvoice(ctx context.Context, invoiceID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id int
		err := tx.QueryRow(ctx, `SELECT id FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID).Scan(&id)
		if err != nil {
			return notFound(err, "invoice", invoiceID)
		}
		total, err = reconcileTotal(ctx, tx, invoiceID)
		return err
	})
	return total, err
}

// ReconcileAll reconciles every invoice, each in its own transaction, and returns how
// many were processed.
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM invoices ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	n := 0
	for _, id := range ids {
		if _, err := r.ReconcileInvoice(ctx, id); err != nil {
			if IsNotFound(err) {
				continue // deleted since listing
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// Audit reports every invoice whose stored total differs from the sum of its lines.
func (r *Reconciler) Audit(ctx context.Context) ([]TotalMismatch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.user_id, i.total, COALESCE(SUM(li.quantity * li.unit_price), 0)
		FROM invoices i
		LEFT JOIN invoice_items li ON li.invoice_id = i.id
		GROUP BY i.id, i.user_id, i.total
		HAVING i.total <> COALESCE(SUM(li.quantity * li.unit_price), 0)
		ORDER BY i.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to audit invoice totals: %w", err)
	}
	defer rows.Close()

	var mismatches []TotalMismatch
	for rows.Next() {
		var m TotalMismatch
		if err := rows.Scan(&m.InvoiceID, &m.UserID, &m.Stored, &m.Computed); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		mismatches = append(mismatches, m)
	}
	return mismatches, rows.Err()
}
