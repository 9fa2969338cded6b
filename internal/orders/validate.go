package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate checks a candidate before any transaction is opened. Discount is
// deliberately not compared against the subtotal.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "purchaser is required"}
	}
	if len(c.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one line item is required"}
	}
	for i, it := range c.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return &ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Reason: "is required"}
		}
		if it.Qty <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be positive"}
		}
	}
	if err := c.ShippingAddress.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.PaymentMethod) == "" {
		return &ValidationError{Field: "payment_method", Reason: "is required"}
	}
	for _, m := range []struct {
		field string
		v     decimal.Decimal
	}{
		{"tax", c.Tax},
		{"shipping_cost", c.ShippingCost},
		{"discount", c.Discount},
	} {
		if m.v.IsNegative() {
			return &ValidationError{Field: m.field, Reason: "must not be negative"}
		}
		if !fitsMoneyScale(m.v) {
			return &ValidationError{Field: m.field, Reason: "must have at most 2 decimal places"}
		}
	}
	return nil
}

// Money is stored as NUMERIC(14, 2); amounts must already be at that scale.
const moneyScale = 2

func fitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyScale))
}

func (a ShippingAddress) Validate() error {
	for _, f := range []struct{ name, v string }{
		{"full_name", a.FullName},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
		{"phone", a.Phone},
	} {
		if strings.TrimSpace(f.v) == "" {
			return &ValidationError{Field: "shipping_address." + f.name, Reason: "is required"}
		}
	}
	for _, r := range strings.TrimSpace(a.Zip) {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "shipping_address.zip", Reason: "must be numeric"}
		}
	}
	return nil
}
