package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Customer struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

// LineRequest asks for Quantity units of Part. UnitPrice is supplied by the
// caller and is never looked up.
type LineRequest struct {
	Part      string
	Quantity  int
	UnitPrice decimal.Decimal
}

type ReceiptRequest struct {
	Customer Customer
	Lines    []LineRequest
	TaxRate  decimal.Decimal
}

func (r ReceiptRequest) Validate() error {
	v := ValidationErrors{}
	if strings.TrimSpace(r.Customer.Name) == "" {
		v.Add("customer.name", "customer name is required")
	}
	if strings.TrimSpace(r.Customer.Address) == "" {
		v.Add("customer.address", "customer address is required")
	}
	if r.Customer.Email != "" && !LooksLikeEmail(r.Customer.Email) {
		v.Add("customer.email", "invalid email format")
	}
	if len(r.Lines) == 0 {
		v.Add("items", "at least one item is required")
	}
	for _, line := range r.Lines {
		if strings.TrimSpace(line.Part) == "" {
			v.Add("items.jwl_part", "part number is required")
		}
		if line.Quantity < 1 {
			v.Add("items.qty", "quantity must be a positive integer")
		}
		if line.UnitPrice.IsNegative() {
			v.Add("items.unit_price", "unit price must be non-negative")
		}
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(hundred) {
		v.Add("tax_rate", "tax rate must be between 0 and 100")
	}
	return v.Err()
}

// Allocation records how many units a line took from one lot.
type Allocation struct {
	LotID    int64
	Batch    string
	Quantity int
}

type ReceiptLine struct {
	Part        string
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
	Allocations []Allocation
}

type Totals struct {
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

type Receipt struct {
	Number    string
	CreatedAt time.Time
	Customer  Customer
	Lines     []ReceiptLine
	TaxRate   decimal.Decimal
	Totals
}

// LooksLikeEmail is a shallow local@domain.tld check.
func LooksLikeEmail(s string) bool {
	at := strings.LastIndex(s, "@")
	if at < 1 || at == len(s)-1 || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
