package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultInvoiceStatus is assigned when an invoice is created without a status.
const DefaultInvoiceStatus = "draft"

// Principal is the authenticated owner of data. Every customer, catalog item and
// invoice carries the owning principal's user id; line items inherit it from their invoice.
type Principal struct {
	UserID   int
	Username string
}

// Customer is a billable party owned by one principal.
type Customer struct {
	ID        int       `json:"id"`
	UserID    int       `json:"-"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Address   *string   `json:"address"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"-"`
}

// CatalogItem is a reusable price template. Its unit price is copied onto line items
// when they are created and never read back afterwards.
type CatalogItem struct {
	ID          int             `json:"id"`
	UserID      int             `json:"-"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"-"`
}

// Invoice is the invoice header. Total is the stored value maintained by the reconciler.
// Lines is only populated when the invoice was loaded together with its ledger.
type Invoice struct {
	ID         int
	UserID     int
	CustomerID int
	IssueDate  time.Time
	DueDate    *time.Time
	Status     string
	Total      decimal.Decimal
	Lines      []LineItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineItem is one entry of an invoice's ledger. UnitPrice is a snapshot taken at
// creation time (or the caller's override) and is independent of the catalog afterwards.
type LineItem struct {
	ID        int
	InvoiceID int
	ItemID    int
	ItemName  string // joined from items
	Position  int
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity × unit price.
func (l LineItem) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines returns the exact sum of the line totals, zero for an empty ledger.
func SumLines(lines []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// LineInput describes a line to add to an invoice. A nil Quantity means 1; a nil
// UnitPrice means "use the catalog price at resolution time".
type LineInput struct {
	ItemID    int              `json:"item_id" validate:"required"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// LinePatch updates an existing line. Absent fields are left unchanged.
type LinePatch struct {
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CustomerInput is the payload for creating a customer.
type CustomerInput struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// CustomerPatch updates a customer. A field set to JSON null clears optional values.
type CustomerPatch struct {
	Name    Optional[string] `json:"name"`
	Email   Optional[string] `json:"email"`
	Address Optional[string] `json:"address"`
	Phone   Optional[string] `json:"phone"`
}

// CatalogItemInput is the payload for creating a catalog item.
type CatalogItemInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Description *string          `json:"description,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"required"`
}

// CatalogItemPatch updates a catalog item. Existing line items keep their snapshot price.
type CatalogItemPatch struct {
	Name        Optional[string]          `json:"name"`
	Description Optional[string]          `json:"description"`
	UnitPrice   Optional[decimal.Decimal] `json:"unit_price"`
}

// InvoiceInput is the payload for creating an invoice with its initial ledger.
type InvoiceInput struct {
	CustomerID int         `json:"customer_id"`
	IssueDate  *Date       `json:"issue_date,omitempty"`
	DueDate    *Date       `json:"due_date,omitempty"`
	Status     *string     `json:"status,omitempty"`
	Items      []LineInput `json:"items"`
}

// InvoicePatch updates invoice header fields and, when Items is set, replaces the
// whole ledger.
type InvoicePatch struct {
	CustomerID Optional[int]         `json:"customer_id"`
	IssueDate  Optional[Date]        `json:"issue_date"`
	DueDate    Optional[Date]        `json:"due_date"`
	Status     Optional[string]      `json:"status"`
	Items      Optional[[]LineInput] `json:"items"`
}

// TotalMismatch is reported by the totals audit for an invoice whose stored total
// differs from the sum of its lines.
type TotalMismatch struct {
	InvoiceID int
	UserID    int
	Stored    decimal.Decimal
	Computed  decimal.Decimal
}
