package service

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

var hundred = decimal.NewFromInt(100)

// LineTotal is quantity × unit price, exact.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// CalculateTotals recomputes every figure from the lines; caller supplied
// line totals are ignored. No rounding happens here.
func CalculateTotals(lines []domain.ReceiptLine, taxRate decimal.Decimal) domain.Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineTotal(line.Quantity, line.UnitPrice))
	}

	tax := subtotal.Mul(taxRate).Div(hundred)

	return domain.Totals{
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}
}
