package orders

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validCandidate() Candidate {
	return Candidate{
		UserID: "user-1",
		Items:  []ItemInput{{ProductID: "p1", Qty: 1}},
		ShippingAddress: ShippingAddress{
			FullName: "Budi", Street: "Jl. Merdeka 5", City: "Bandung", State: "Jabar",
			Zip: "40111", Country: "ID", Phone: "0812",
		},
		PaymentMethod: "cod",
	}
}

func TestCandidate_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Candidate)
		field  string
	}{
		{name: "valid", mutate: func(c *Candidate) {}},
		{name: "missing purchaser", mutate: func(c *Candidate) { c.UserID = " " }, field: "user_id"},
		{name: "no items", mutate: func(c *Candidate) { c.Items = nil }, field: "items"},
		{name: "empty product id", mutate: func(c *Candidate) { c.Items[0].ProductID = "" }, field: "items[0].product_id"},
		{name: "zero quantity", mutate: func(c *Candidate) { c.Items[0].Qty = 0 }, field: "items[0].quantity"},
		{name: "missing city", mutate: func(c *Candidate) { c.ShippingAddress.City = "" }, field: "shipping_address.city"},
		{name: "missing phone", mutate: func(c *Candidate) { c.ShippingAddress.Phone = "" }, field: "shipping_address.phone"},
		{name: "alpha zip", mutate: func(c *Candidate) { c.ShippingAddress.Zip = "40A11" }, field: "shipping_address.zip"},
		{name: "missing payment method", mutate: func(c *Candidate) { c.PaymentMethod = "" }, field: "payment_method"},
		{name: "negative tax", mutate: func(c *Candidate) { c.Tax = decimal.NewFromInt(-1) }, field: "tax"},
		{name: "negative discount", mutate: func(c *Candidate) { c.Discount = decimal.NewFromInt(-1) }, field: "discount"},
		{name: "sub-cent tax", mutate: func(c *Candidate) { c.Tax = decimal.RequireFromString("0.005") }, field: "tax"},
		{name: "sub-cent shipping", mutate: func(c *Candidate) { c.ShippingCost = decimal.RequireFromString("4.999") }, field: "shipping_cost"},
		{name: "trailing zero scale allowed", mutate: func(c *Candidate) { c.Discount = decimal.RequireFromString("1.500") }},
		{name: "discount above subtotal allowed", mutate: func(c *Candidate) { c.Discount = decimal.NewFromInt(1_000_000) }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := validCandidate()
			tc.mutate(&c)
			err := c.Validate()
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, ve.Field)
			}
		})
	}
}
