package core

import (
	"encoding/json"
	"testing"
)

func TestOptionalTriState(t *testing.T) {
	var p CustomerPatch
	if err := json.Unmarshal([]byte(`{"name": "Acme", "email": null}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Name.Set || p.Name.Null || p.Name.Value != "Acme" {
		t.Errorf("name = %+v, want present value", p.Name)
	}
	if !p.Email.Set || !p.Email.Null || p.Email.Ptr() != nil {
		t.Errorf("email = %+v, want explicit null", p.Email)
	}
	if p.Address.Set || p.Phone.Set {
		t.Errorf("absent fields reported as set: %+v %+v", p.Address, p.Phone)
	}
}

func TestInvoicePatchItems(t *testing.T) {
	var p InvoicePatch
	if err := json.Unmarshal([]byte(`{"items": [{"item_id": 4, "quantity": 2}], "due_date": "2024-03-01"}`), &p); err != nil {
		t.Fatal(err)
	}
	if !p.Items.Set || len(p.Items.Value) != 1 || p.Items.Value[0].ItemID != 4 || *p.Items.Value[0].Quantity != 2 {
		t.Errorf("items = %+v", p.Items)
	}
	if !p.DueDate.Set || p.DueDate.Value.String() != "2024-03-01" {
		t.Errorf("due_date = %+v", p.DueDate)
	}
	if p.CustomerID.Set {
		t.Error("customer_id should be absent")
	}
}

func TestDate(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-02-29"`), &d); err != nil {
		t.Fatalf("leap day: %v", err)
	}
	out, err := json.Marshal(d)
	if err != nil || string(out) != `"2024-02-29"` {
		t.Errorf("Marshal = %s, %v", out, err)
	}

	for _, bad := range []string{`"2023-02-29"`, `"02/01/2024"`, `20240201`} {
		if err := json.Unmarshal([]byte(bad), &d); err == nil {
			t.Errorf("expected error for %s", bad)
		}
	}
}
