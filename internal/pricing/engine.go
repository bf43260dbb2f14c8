// Package pricing turns a cart of line items plus discount and tax
// configuration into a fully reconciled invoice breakdown. The engine is
// pure: no I/O, no clock, no errors. Inputs are trusted to be validated by
// the caller; discount shares are still clamped so a line can never end up
// with a negative taxable base.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/money"
)

// DiscountType enumerates supported discount shapes.
type DiscountType string

const (
	DiscountNone    DiscountType = "NONE"
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

// TaxMethod determines whether tax is embedded in or added on top of a price.
type TaxMethod string

const (
	TaxInclusive TaxMethod = "INCLUSIVE"
	TaxExclusive TaxMethod = "EXCLUSIVE"
)

// Discount is a line- or invoice-level discount. Percent values are clamped
// to [0,100]; fixed values are clamped to the base they apply to.
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// TaxOverride forces a rate and method for every line when supplied at the
// invoice level.
type TaxOverride struct {
	Rate   decimal.Decimal
	Method TaxMethod
}

// Line is one cart entry as the engine sees it: authoritative unit price and
// tax metadata resolved by the caller, plus an optional line discount.
type Line struct {
	ProductID string
	Quantity  int64
	UnitPrice decimal.Decimal
	Discount  *Discount
	TaxRate   decimal.Decimal
	TaxMethod TaxMethod
}

// PricedLine is the engine's per-line output. Never mutated after Compute
// returns.
type PricedLine struct {
	ProductID             string          `json:"productId"`
	Quantity              int64           `json:"quantity"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	LineBase              decimal.Decimal `json:"lineBase"`
	LineDiscountAmount    decimal.Decimal `json:"lineDiscountAmount"`
	InvoiceDiscountAmount decimal.Decimal `json:"invoiceDiscountAmount"`
	TaxRate               decimal.Decimal `json:"taxRate"`
	TaxMethod             TaxMethod       `json:"taxMethod"`
	LineTaxAmount         decimal.Decimal `json:"lineTaxAmount"`
	LineTotal             decimal.Decimal `json:"lineTotal"`
}

// Result aggregates the priced lines and invoice totals. Line order matches
// input order; the last line carries the allocation remainder, so order is
// meaningful.
type Result struct {
	Lines           []PricedLine    `json:"lines"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountTotal   decimal.Decimal `json:"discountTotal"`
	TaxTotal        decimal.Decimal `json:"taxTotal"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
	InvoiceDiscount Discount        `json:"invoiceDiscount"`
}

var hundred = decimal.NewFromInt(100)

// discountAmount applies a discount to base. Shared by line- and
// invoice-level discounts.
func discountAmount(d Discount, base decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DiscountPercent:
		pct := money.Clamp(d.Value, money.Zero, hundred)
		return money.Round(base.Mul(pct).Div(hundred))
	case DiscountFixed:
		return money.Round(money.Clamp(d.Value, money.Zero, base))
	default:
		return money.Zero
	}
}

// Compute prices the cart. An empty cart yields a zero-valued result with a
// NONE invoice discount; this is a valid terminal case, not an error.
//
// Invoice-level discounts are allocated across lines proportionally to each
// line's net-before-invoice amount, with the last line receiving the exact
// remainder instead of its proportional share. That correction is what makes
// the per-line allocations sum to the invoice discount despite per-line
// rounding.
func Compute(lines []Line, invoiceDiscount Discount, taxOverride *TaxOverride) Result {
	if invoiceDiscount.Type == "" {
		invoiceDiscount.Type = DiscountNone
	}
	if len(lines) == 0 {
		return Result{InvoiceDiscount: Discount{Type: DiscountNone}}
	}

	priced := make([]PricedLine, len(lines))
	subtotal := money.Zero
	discountable := money.Zero
	for i, ln := range lines {
		unit := money.Round(ln.UnitPrice)
		base := money.Round(decimal.NewFromInt(ln.Quantity).Mul(unit))
		lineDiscount := money.Zero
		if ln.Discount != nil {
			lineDiscount = discountAmount(*ln.Discount, base)
		}
		priced[i] = PricedLine{
			ProductID:          ln.ProductID,
			Quantity:           ln.Quantity,
			UnitPrice:          unit,
			LineBase:           base,
			LineDiscountAmount: lineDiscount,
			TaxRate:            ln.TaxRate,
			TaxMethod:          ln.TaxMethod,
		}
		if taxOverride != nil {
			priced[i].TaxRate = taxOverride.Rate
			priced[i].TaxMethod = taxOverride.Method
		}
		subtotal = subtotal.Add(base)
		discountable = discountable.Add(base.Sub(lineDiscount))
	}
	subtotal = money.Round(subtotal)
	discountable = money.Round(discountable)

	invoiceDiscountTotal := discountAmount(invoiceDiscount, discountable)

	// Proportional allocation with exact-remainder correction on the last
	// line. A naive split drifts by a cent on uneven bases.
	weight := money.Zero
	if discountable.IsPositive() {
		weight = invoiceDiscountTotal.Div(discountable)
	}
	allocated := money.Zero
	for i := range priced {
		net := priced[i].LineBase.Sub(priced[i].LineDiscountAmount)
		var share decimal.Decimal
		if i == len(priced)-1 {
			share = invoiceDiscountTotal.Sub(allocated)
		} else {
			share = money.Round(net.Mul(weight))
		}
		share = money.Clamp(share, money.Zero, net)
		priced[i].InvoiceDiscountAmount = share
		allocated = allocated.Add(share)
	}

	taxTotal := money.Zero
	grandTotal := money.Zero
	lineDiscountTotal := money.Zero
	for i := range priced {
		taxable := money.Round(priced[i].LineBase.
			Sub(priced[i].LineDiscountAmount).
			Sub(priced[i].InvoiceDiscountAmount))
		rate := priced[i].TaxRate
		switch priced[i].TaxMethod {
		case TaxInclusive:
			divisor := hundred.Add(rate)
			if divisor.IsPositive() {
				priced[i].LineTaxAmount = money.Round(taxable.Mul(rate).Div(divisor))
			} else {
				priced[i].LineTaxAmount = money.Zero
			}
			priced[i].LineTotal = taxable
		default:
			priced[i].LineTaxAmount = money.Round(taxable.Mul(rate).Div(hundred))
			priced[i].LineTotal = money.Round(taxable.Add(priced[i].LineTaxAmount))
		}
		taxTotal = taxTotal.Add(priced[i].LineTaxAmount)
		grandTotal = grandTotal.Add(priced[i].LineTotal)
		lineDiscountTotal = lineDiscountTotal.Add(priced[i].LineDiscountAmount)
	}

	return Result{
		Lines:           priced,
		Subtotal:        subtotal,
		DiscountTotal:   money.Round(lineDiscountTotal.Add(invoiceDiscountTotal)),
		TaxTotal:        money.Round(taxTotal),
		GrandTotal:      money.Round(grandTotal),
		InvoiceDiscount: invoiceDiscount,
	}
}
