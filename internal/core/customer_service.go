package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerService provides plain CRUD over the caller's customers.
type CustomerService interface {
	CreateCustomer(ctx context.Context, p Principal, in CustomerInput) (*Customer, error)
	ListCustomers(ctx context.Context, p Principal) ([]Customer, error)
	GetCustomer(ctx context.Context, p Principal, id int) (*Customer, error)
	UpdateCustomer(ctx context.Context, p Principal, id int, patch CustomerPatch) (*Customer, error)
	// DeleteCustomer cascades to the customer's invoices and their lines.
	DeleteCustomer(ctx context.Context, p Principal, id int) error
}

type customerService struct {
	pool        *pgxpool.Pool
	guard       guard
	phoneRegion string
}

// NewCustomerService constructs a CustomerService. Phone numbers without a country
// prefix are parsed against phoneRegion.
func NewCustomerService(pool *pgxpool.Pool, phoneRegion string) CustomerService {
	return &customerService{pool: pool, phoneRegion: phoneRegion}
}

func (s *customerService) normalizePhone(phone *string) (*string, error) {
	phone = normalizeOptional(phone)
	if phone == nil {
		return nil, nil
	}
	e164, err := NormalizePhone(*phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}
	return &e164, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, p Principal, in CustomerInput) (*Customer, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeOptional(in.Email)
	if err := Validate(in); err != nil {
		return nil, err
	}
	phone, err := s.normalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}

	c, err := scanCustomer(s.pool.QueryRow(ctx, `
		INSERT INTO customers (user_id, name, email, address, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+customerColumns,
		p.UserID, in.Name, in.Email, normalizeOptional(in.Address), phone,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return c, nil
}

func (s *customerService) ListCustomers(ctx context.Context, p Principal) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE user_id = $1
		ORDER BY name, id
	`, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	customers := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

func (s *customerService) GetCustomer(ctx context.Context, p Principal, id int) (*Customer, error) {
	return s.guard.customer(ctx, s.pool, p, id)
}

func (s *customerService) UpdateCustomer(ctx context.Context, p Principal, id int, patch CustomerPatch) (*Customer, error) {
	var updated *Customer
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		c, err := s.guard.customer(ctx, tx, p, id)
		if err != nil {
			return err
		}
		if err := s.applyCustomerPatch(c, patch); err != nil {
			return err
		}
		updated, err = scanCustomer(tx.QueryRow(ctx, `
			UPDATE customers
			SET name = $1, email = $2, address = $3, phone = $4
			WHERE id = $5 AND user_id = $6
			RETURNING `+customerColumns,
			c.Name, c.Email, c.Address, c.Phone, id, p.UserID,
		))
		if err != nil {
			return fmt.Errorf("failed to update customer %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *customerService) applyCustomerPatch(c *Customer, patch CustomerPatch) error {
	if patch.Name.Set {
		name := strings.TrimSpace(patch.Name.Value)
		if patch.Name.Null || name == "" {
			return invalid("name", "is required")
		}
		c.Name = name
	}
	if patch.Email.Set {
		c.Email = normalizeOptional(patch.Email.Ptr())
	}
	if patch.Address.Set {
		c.Address = normalizeOptional(patch.Address.Ptr())
	}
	if patch.Phone.Set {
		phone, err := s.normalizePhone(patch.Phone.Ptr())
		if err != nil {
			return err
		}
		c.Phone = phone
	}
	// Re-run tag validation over the merged record.
	return Validate(CustomerInput{Name: c.Name, Email: c.Email, Address: c.Address, Phone: c.Phone})
}

func (s *customerService) DeleteCustomer(ctx context.Context, p Principal, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1 AND user_id = $2`, id, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}
