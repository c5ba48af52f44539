package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogService manages the principal's catalog of billable items.
type CatalogService interface {
	CreateItem(ctx context.Context, p Principal, in CatalogItemInput) (*CatalogItem, error)
	ListItems(ctx context.Context, p Principal) ([]CatalogItem, error)
	GetItem(ctx context.Context, p Principal, id int) (*CatalogItem, error)
	// UpdateItem applies the patch. Existing line items keep their snapshot prices.
	UpdateItem(ctx context.Context, p Principal, id int, patch CatalogItemPatch) (*CatalogItem, error)
	// DeleteItem removes the item and every line referencing it, then reconciles the
	// totals of the affected invoices in the same transaction.
	DeleteItem(ctx context.Context, p Principal, id int) error
}

type catalogService struct {
	pool  *pgxpool.Pool
	guard guard
}

// NewCatalogService constructs a CatalogService backed by PostgreSQL.
func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

// resolvePrice is the catalog resolver shared by every ledger operation. The returned
// price is copied onto the line; it is never re-derived from the catalog later.
func resolvePrice(ctx context.Context, q pgxQuerier, g guard, p Principal, itemID int, override *decimal.Decimal) (*CatalogItem, decimal.Decimal, error) {
	it, err := g.catalogItem(ctx, q, p, itemID)
	if err != nil {
		if IsNotFound(err) {
			return nil, decimal.Zero, itemNotFound(itemID)
		}
		return nil, decimal.Zero, err
	}
	if override != nil {
		if err := ValidatePrice("unit_price", *override); err != nil {
			return nil, decimal.Zero, err
		}
		return it, *override, nil
	}
	return it, it.UnitPrice, nil
}

func (s *catalogService) CreateItem(ctx context.Context, p Principal, in CatalogItemInput) (*CatalogItem, error) {
	if err := prepareCatalogItem(&in); err != nil {
		return nil, err
	}

	it, err := scanCatalogItem(s.pool.QueryRow(ctx, `
		INSERT INTO items (user_id, name, description, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING `+itemColumns,
		p.UserID, in.Name, in.Description, *in.UnitPrice,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return it, nil
}

func (s *catalogService) ListItems(ctx context.Context, p Principal) ([]CatalogItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE user_id = $1
		ORDER BY id
	`, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []CatalogItem{}
	for rows.Next() {
		it, err := scanCatalogItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *catalogService) GetItem(ctx context.Context, p Principal, id int) (*CatalogItem, error) {
	return s.guard.catalogItem(ctx, s.pool, p, id)
}

func (s *catalogService) UpdateItem(ctx context.Context, p Principal, id int, patch CatalogItemPatch) (*CatalogItem, error) {
	var updated *CatalogItem
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		it, err := s.guard.catalogItem(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if err := applyCatalogItemPatch(it, patch); err != nil {
			return err
		}
		updated, err = scanCatalogItem(tx.QueryRow(ctx, `
			UPDATE items
			SET name = $1, description = $2, unit_price = $3
			WHERE id = $4 AND user_id = $5
			RETURNING `+itemColumns,
			it.Name, it.Description, it.UnitPrice, id, p.UserID,
		))
		if err != nil {
			return fmt.Errorf("failed to update item %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyCatalogItemPatch(it *CatalogItem, patch CatalogItemPatch) error {
	if patch.Name.Set {
		if patch.Name.Null {
			return invalid("name", "is required")
		}
		it.Name = patch.Name.Value
	}
	if patch.Description.Set {
		it.Description = patch.Description.Ptr()
	}
	if patch.UnitPrice.Set {
		if patch.UnitPrice.Null {
			return invalid("unit_price", "is required")
		}
		it.UnitPrice = patch.UnitPrice.Value
	}

	// Validate the merged record the same way as a new item.
	merged := CatalogItemInput{Name: it.Name, Description: it.Description, UnitPrice: &it.UnitPrice}
	if err := prepareCatalogItem(&merged); err != nil {
		return err
	}
	it.Name, it.Description, it.UnitPrice = merged.Name, merged.Description, *merged.UnitPrice
	return nil
}

func (s *catalogService) DeleteItem(ctx context.Context, p Principal, id int) error {
	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := s.guard.catalogItem(ctx, tx, p, id); err != nil {
			return err
		}
		// Blocks new lines referencing the item until the delete commits.
		if _, err := tx.Exec(ctx, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, id); err != nil {
			return fmt.Errorf("failed to lock item %d: %w", id, err)
		}

		// Lock the invoices whose ledgers lose lines, in id order so concurrent deletes
		// cannot deadlock against each other.
		rows, err := tx.Query(ctx, `
			SELECT id FROM invoices
			WHERE id IN (SELECT DISTINCT invoice_id FROM invoice_items WHERE item_id = $1)
			ORDER BY id
			FOR UPDATE
		`, id)
		if err != nil {
			return fmt.Errorf("failed to lock invoices referencing item %d: %w", id, err)
		}
		invoiceIDs, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return fmt.Errorf("failed to lock invoices referencing item %d: %w", id, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, p.UserID); err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}

		for _, invoiceID := range invoiceIDs {
			if _, err := reconcileTotal(ctx, tx, invoiceID); err != nil {
				return err
			}
		}
		return nil
	})
}
