package core

// InvoiceView is the wire form of an invoice aggregate. Items is nil for list views and
// non-nil (possibly empty) for detail views. Amounts are strings with two
// fractional digits so clients never see binary floating point.
type InvoiceView struct {
	ID         int            `json:"id"`
	CustomerID int            `json:"customer_id"`
	IssueDate  string         `json:"issue_date"`
	DueDate    *string        `json:"due_date"`
	Status     string         `json:"status"`
	Total      string         `json:"total"`
	Items      []LineItemView `json:"items,omitzero"`
}

// LineItemView is the wire form of one ledger line.
type LineItemView struct {
	ID        int    `json:"id"`
	InvoiceID int    `json:"invoice_id"`
	ItemID    int    `json:"item_id"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Total     string `json:"total"`
}

// ToLineView converts a line item to its wire form.
func ToLineView(l LineItem) LineItemView {
	return LineItemView{
		ID:        l.ID,
		InvoiceID: l.InvoiceID,
		ItemID:    l.ItemID,
		ItemName:  l.ItemName,
		Quantity:  l.Quantity,
		UnitPrice: l.UnitPrice.StringFixed(priceScale),
		Total:     l.LineTotal().StringFixed(priceScale),
	}
}

// ToView converts an invoice to its wire form. The stored total is authoritative; lines
// are only emitted when includeLines is set.
func ToView(inv *Invoice, includeLines bool) InvoiceView {
	v := InvoiceView{
		ID:         inv.ID,
		CustomerID: inv.CustomerID,
		IssueDate:  NewDate(inv.IssueDate).String(),
		Status:     inv.Status,
		Total:      inv.Total.StringFixed(priceScale),
	}
	if inv.DueDate != nil {
		due := NewDate(*inv.DueDate).String()
		v.DueDate = &due
	}
	if includeLines {
		v.Items = make([]LineItemView, 0, len(inv.Lines))
		for _, l := range inv.Lines {
			v.Items = append(v.Items, ToLineView(l))
		}
	}
	return v
}

// CatalogItemView is the wire form of a catalog item.
type CatalogItemView struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UnitPrice   string  `json:"unit_price"`
}

// ToItemView converts a catalog item to its wire form.
func ToItemView(it CatalogItem) CatalogItemView {
	return CatalogItemView{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		UnitPrice:   it.UnitPrice.StringFixed(priceScale),
	}
}
