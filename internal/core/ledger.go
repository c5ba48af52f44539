package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerService owns the line items of an invoice. Every mutation runs in a single
// transaction that locks the invoice row, changes the lines and reconciles the stored
// total before committing.
type LedgerService interface {
	ListLines(ctx context.Context, p Principal, invoiceID int) ([]LineItem, error)
	GetLine(ctx context.Context, p Principal, lineID int) (*LineItem, error)

	// AddLine appends a line priced by the catalog resolver. Quantity defaults to 1.
	AddLine(ctx context.Context, p Principal, invoiceID int, in LineInput) (*LineItem, error)
	// UpdateLine applies only the fields present in patch.
	UpdateLine(ctx context.Context, p Principal, lineID int, patch LinePatch) (*LineItem, error)
	DeleteLine(ctx context.Context, p Principal, lineID int) error
	// ReplaceLines discards the invoice's lines and creates lines in order. It is
	// all-or-nothing: an unresolvable item leaves the previous ledger untouched.
	ReplaceLines(ctx context.Context, p Principal, invoiceID int, lines []LineInput) ([]LineItem, error)
}

type Ledger struct {
	pool  *pgxpool.Pool
	guard guard
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

const lineColumns = `li.id, li.invoice_id, li.item_id, it.name, li.position, li.quantity, li.unit_price`

func scanLineItem(row pgx.Row) (*LineItem, error) {
	var l LineItem
	err := row.Scan(&l.ID, &l.InvoiceID, &l.ItemID, &l.ItemName, &l.Position, &l.Quantity, &l.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// linesOf returns the invoice's lines in position order. Ownership must already be checked.
func linesOf(ctx context.Context, q pgxQuerier, invoiceID int) ([]LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT `+lineColumns+`
		FROM invoice_items li
		JOIN items it ON it.id = li.item_id
		WHERE li.invoice_id = $1
		ORDER BY li.position, li.id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of invoice %d: %w", invoiceID, err)
	}
	defer rows.Close()

	lines := []LineItem{}
	for rows.Next() {
		l, err := scanLineItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines of invoice %d: %w", invoiceID, err)
	}
	return lines, nil
}

func (l *Ledger) ListLines(ctx context.Context, p Principal, invoiceID int) ([]LineItem, error) {
	if _, err := l.guard.invoice(ctx, l.pool, p, invoiceID, false); err != nil {
		return nil, err
	}
	return linesOf(ctx, l.pool, invoiceID)
}

func (l *Ledger) GetLine(ctx context.Context, p Principal, lineID int) (*LineItem, error) {
	return l.guard.lineItem(ctx, l.pool, p, lineID)
}

func (l *Ledger) AddLine(ctx context.Context, p Principal, invoiceID int, in LineInput) (*LineItem, error) {
	if err := validateLineInput(in); err != nil {
		return nil, err
	}

	var added *LineItem
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := l.guard.invoice(ctx, tx, p, invoiceID, true); err != nil {
			return err
		}

		var next int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM invoice_items WHERE invoice_id = $1`,
			invoiceID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute line position: %w", err)
		}

		added, err = insertLine(ctx, tx, l.guard, p, invoiceID, next, in)
		if err != nil {
			return err
		}
		_, err = reconcileTotal(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// insertLine resolves the price and writes one line. The caller holds the invoice lock.
func insertLine(ctx context.Context, tx pgx.Tx, g guard, p Principal, invoiceID, position int, in LineInput) (*LineItem, error) {
	item, price, err := resolvePrice(ctx, tx, g, p, in.ItemID, in.UnitPrice)
	if err != nil {
		return nil, err
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}

	line := &LineItem{
		InvoiceID: invoiceID,
		ItemID:    item.ID,
		ItemName:  item.Name,
		Position:  position,
		Quantity:  qty,
		UnitPrice: price,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice_items (invoice_id, item_id, position, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, invoiceID, item.ID, position, qty, price).Scan(&line.ID)
	if err != nil {
		// The item was deleted by a transaction that committed after it was resolved.
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, itemNotFound(item.ID)
		}
		return nil, fmt.Errorf("failed to insert line for item %d: %w", item.ID, err)
	}
	return line, nil
}

// replaceLines deletes every line of the invoice and inserts lines in order. The caller
// holds the invoice lock and reconciles afterwards.
func replaceLines(ctx context.Context, tx pgx.Tx, g guard, p Principal, invoiceID int, lines []LineInput) ([]LineItem, error) {
	for _, in := range lines {
		if err := validateLineInput(in); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
		return nil, fmt.Errorf("failed to clear lines of invoice %d: %w", invoiceID, err)
	}

	created := make([]LineItem, 0, len(lines))
	for i, in := range lines {
		line, err := insertLine(ctx, tx, g, p, invoiceID, i+1, in)
		if err != nil {
			return nil, err
		}
		created = append(created, *line)
	}
	return created, nil
}

func (l *Ledger) ReplaceLines(ctx context.Context, p Principal, invoiceID int, lines []LineInput) ([]LineItem, error) {
	var created []LineItem
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		if _, err := l.guard.invoice(ctx, tx, p, invoiceID, true); err != nil {
			return err
		}
		var err error
		created, err = replaceLines(ctx, tx, l.guard, p, invoiceID, lines)
		if err != nil {
			return err
		}
		_, err = reconcileTotal(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// lockLine finds the line's invoice, locks it and re-reads the line under the lock.
// A line removed by a concurrent transaction is reported as not found.
func (l *Ledger) lockLine(ctx context.Context, tx pgx.Tx, p Principal, lineID int) (*LineItem, error) {
	invoiceID, err := l.guard.lineInvoiceID(ctx, tx, p, lineID)
	if err != nil {
		return nil, err
	}
	if _, err := l.guard.invoice(ctx, tx, p, invoiceID, true); err != nil {
		return nil, err
	}
	return l.guard.lineItem(ctx, tx, p, lineID)
}

func (l *Ledger) UpdateLine(ctx context.Context, p Principal, lineID int, patch LinePatch) (*LineItem, error) {
	if err := validateLinePatch(patch); err != nil {
		return nil, err
	}

	var updated *LineItem
	err := inTx(ctx, l.pool, func(tx pgx.Tx) error {
		line, err := l.lockLine(ctx, tx, p, lineID)
		if err != nil {
			return err
		}
		if patch.Quantity != nil {
			line.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			line.UnitPrice = *patch.UnitPrice
		}

		_, err = tx.Exec(ctx,
			`UPDATE invoice_items SET quantity = $1, unit_price = $2 WHERE id = $3`,
			line.Quantity, line.UnitPrice, line.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update line %d: %w", lineID, err)
		}
		if _, err := reconcileTotal(ctx, tx, line.InvoiceID); err != nil {
			return err
		}
		updated = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (l *Ledger) DeleteLine(ctx context.Context, p Principal, lineID int) error {
	return inTx(ctx, l.pool, func(tx pgx.Tx) error {
		line, err := l.lockLine(ctx, tx, p, lineID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, line.ID); err != nil {
			return fmt.Errorf("failed to delete line %d: %w", lineID, err)
		}
		_, err = reconcileTotal(ctx, tx, line.InvoiceID)
		return err
	})
}
