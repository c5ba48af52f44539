package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceService manages invoice headers. Creating an invoice with items and replacing
// its items through a patch go through the same ledger path as the line endpoints.
type InvoiceService interface {
	// ListInvoices returns the caller's invoices without lines, newest first.
	ListInvoices(ctx context.Context, p Principal) ([]Invoice, error)
	// GetInvoice returns the invoice with its lines.
	GetInvoice(ctx context.Context, p Principal, id int) (*Invoice, error)
	CreateInvoice(ctx context.Context, p Principal, in InvoiceInput) (*Invoice, error)
	// UpdateInvoice applies header fields present in patch and, when patch.Items is set,
	// replaces the ledger. Both happen in one transaction.
	UpdateInvoice(ctx context.Context, p Principal, id int, patch InvoicePatch) (*Invoice, error)
	DeleteInvoice(ctx context.Context, p Principal, id int) error
}

type invoiceService struct {
	pool  *pgxpool.Pool
	guard guard
	now   func() time.Time
}

// NewInvoiceService constructs an InvoiceService backed by PostgreSQL.
func NewInvoiceService(pool *pgxpool.Pool) InvoiceService {
	return &invoiceService{pool: pool, now: time.Now}
}

func (s *invoiceService) ListInvoices(ctx context.Context, p Principal) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE user_id = $1
		ORDER BY issue_date DESC, id DESC
	`, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *invoiceService) GetInvoice(ctx context.Context, p Principal, id int) (*Invoice, error) {
	inv, err := s.guard.invoice(ctx, s.pool, p, id, false)
	if err != nil {
		return nil, err
	}
	if inv.Lines, err = linesOf(ctx, s.pool, id); err != nil {
		return nil, err
	}
	return inv, nil
}

// checkCustomer resolves customerID under the caller. Both a missing id and one owned
// by another principal are a validation failure of the payload, not a 404.
func (s *invoiceService) checkCustomer(ctx context.Context, q pgxQuerier, p Principal, customerID int) error {
	if customerID <= 0 {
		return ErrCustomerRequired
	}
	if _, err := s.guard.customer(ctx, q, p, customerID); err != nil {
		if IsNotFound(err) {
			return ErrCustomerRequired
		}
		return err
	}
	return nil
}

func validateStatus(status string) error {
	if err := validate.Var(status, "required,max=32"); err != nil {
		return invalid("status", "must be a non-empty token of at most 32 characters")
	}
	return nil
}

func validateDates(issue time.Time, due *time.Time) error {
	if due != nil && due.Before(issue) {
		return invalid("due_date", "must not be before issue_date")
	}
	return nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, p Principal, in InvoiceInput) (*Invoice, error) {
	issue := NewDate(s.now())
	if in.IssueDate != nil {
		issue = *in.IssueDate
	}
	var due *time.Time
	if in.DueDate != nil {
		due = &in.DueDate.Time
	}
	if err := validateDates(issue.Time, due); err != nil {
		return nil, err
	}
	status := DefaultInvoiceStatus
	if in.Status != nil {
		status = strings.TrimSpace(*in.Status)
		if err := validateStatus(status); err != nil {
			return nil, err
		}
	}

	var created *Invoice
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.checkCustomer(ctx, tx, p, in.CustomerID); err != nil {
			return err
		}

		inv, err := scanInvoice(tx.QueryRow(ctx, `
			INSERT INTO invoices (user_id, customer_id, issue_date, due_date, status, total)
			VALUES ($1, $2, $3, $4, $5, 0)
			RETURNING `+invoiceColumns,
			p.UserID, in.CustomerID, issue.Time, due, status,
		))
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		// The new row is invisible to other transactions until commit, so no lock is needed.
		if inv.Lines, err = replaceLines(ctx, tx, s.guard, p, inv.ID, in.Items); err != nil {
			return err
		}
		if inv.Total, err = reconcileTotal(ctx, tx, inv.ID); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *invoiceService) UpdateInvoice(ctx context.Context, p Principal, id int, patch InvoicePatch) (*Invoice, error) {
	var updated *Invoice
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		inv, err := s.guard.invoice(ctx, tx, p, id, true)
		if err != nil {
			return err
		}
		if err := s.applyInvoicePatch(ctx, tx, p, inv, patch); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE invoices
			SET customer_id = $1, issue_date = $2, due_date = $3, status = $4, updated_at = NOW()
			WHERE id = $5
		`, inv.CustomerID, inv.IssueDate, inv.DueDate, inv.Status, id)
		if err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", id, err)
		}

		if patch.Items.Set {
			var items []LineInput
			if !patch.Items.Null {
				items = patch.Items.Value
			}
			if _, err := replaceLines(ctx, tx, s.guard, p, id, items); err != nil {
				return err
			}
		}
		if _, err := reconcileTotal(ctx, tx, id); err != nil {
			return err
		}

		updated, err = s.guard.invoice(ctx, tx, p, id, false)
		if err != nil {
			return err
		}
		updated.Lines, err = linesOf(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *invoiceService) applyInvoicePatch(ctx context.Context, q pgxQuerier, p Principal, inv *Invoice, patch InvoicePatch) error {
	if patch.CustomerID.Set {
		if patch.CustomerID.Null {
			return ErrCustomerRequired
		}
		if err := s.checkCustomer(ctx, q, p, patch.CustomerID.Value); err != nil {
			return err
		}
		inv.CustomerID = patch.CustomerID.Value
	}
	if patch.IssueDate.Set {
		if patch.IssueDate.Null {
			return invalid("issue_date", "must not be null")
		}
		inv.IssueDate = patch.IssueDate.Value.Time
	}
	if patch.DueDate.Set {
		if patch.DueDate.Null {
			inv.DueDate = nil
		} else {
			due := patch.DueDate.Value.Time
			inv.DueDate = &due
		}
	}
	if patch.Status.Set {
		status := strings.TrimSpace(patch.Status.Value)
		if patch.Status.Null {
			status = ""
		}
		if err := validateStatus(status); err != nil {
			return err
		}
		inv.Status = status
	}
	return validateDates(inv.IssueDate, inv.DueDate)
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, p Principal, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	return nil
}
