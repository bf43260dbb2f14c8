// Package sales implements invoice settlement: it prices a cart against
// authoritative product data, guards stock under row locks, and persists the
// sale aggregate in a single transaction.
package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// Product is the slice of the catalog the settlement core consumes. Rows are
// loaded under an exclusive lock during settlement; StockQty is the only
// cross-request mutable state this core touches.
type Product struct {
	ID        uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	TaxMethod pricing.TaxMethod
	StockQty  int64
}

// Sale is the persisted aggregate produced by settlement. Header totals are
// populated from the pricing engine's aggregates and never recomputed from
// the persisted rows afterwards.
type Sale struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceNo     string          `json:"invoiceNo"`
	CustomerID    *uuid.UUID      `json:"customerId,omitempty"`
	ActorID       string          `json:"actorId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountTotal decimal.Decimal `json:"discountTotal"`
	TaxTotal      decimal.Decimal `json:"taxTotal"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	PaymentMethod string          `json:"paymentMethod"`
	CreatedAt     time.Time       `json:"createdAt"`
	Items         []SaleItem      `json:"items"`
	Payments      []SalePayment   `json:"payments"`
}

// SaleItem is one persisted invoice line.
type SaleItem struct {
	ID                    uuid.UUID       `json:"id"`
	SaleID                uuid.UUID       `json:"saleId"`
	ProductID             uuid.UUID       `json:"productId"`
	Quantity              int64           `json:"quantity"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	LineDiscountAmount    decimal.Decimal `json:"lineDiscountAmount"`
	InvoiceDiscountAmount decimal.Decimal `json:"invoiceDiscountAmount"`
	TaxAmount             decimal.Decimal `json:"taxAmount"`
	LineTotal             decimal.Decimal `json:"lineTotal"`
}

// SalePayment is an append-only payment row attached to a sale header.
type SalePayment struct {
	ID     uuid.UUID       `json:"id"`
	SaleID uuid.UUID       `json:"saleId"`
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt time.Time       `json:"paidAt"`
}

// DiscountInput carries a caller-declared discount.
type DiscountInput struct {
	Type  string  `json:"type" validate:"omitempty,oneof=NONE PERCENT FIXED"`
	Value float64 `json:"value" validate:"gte=0"`
}

// TaxOverrideInput forces rate and method for every line of the invoice.
type TaxOverrideInput struct {
	Rate   float64 `json:"rate" validate:"gte=0"`
	Method string  `json:"method" validate:"required,oneof=INCLUSIVE EXCLUSIVE"`
}

// CartLineInput is one requested line. The declared product is re-read under
// lock during settlement; unit prices always come from the catalog.
type CartLineInput struct {
	ProductID string         `json:"productId" validate:"required,uuid4"`
	Quantity  int64          `json:"quantity" validate:"required,gt=0"`
	Discount  *DiscountInput `json:"discount,omitempty" validate:"omitempty"`
}

// CreateInput is the settlement request body.
type CreateInput struct {
	CustomerID    *string           `json:"customerId,omitempty" validate:"omitempty,uuid4"`
	PaymentMethod string            `json:"paymentMethod" validate:"required,oneof=CASH CARD TRANSFER QRIS"`
	PaidAmount    float64           `json:"paidAmount" validate:"gte=0"`
	Discount      *DiscountInput    `json:"discount,omitempty" validate:"omitempty"`
	TaxOverride   *TaxOverrideInput `json:"taxOverride,omitempty" validate:"omitempty"`
	Lines         []CartLineInput   `json:"lines" validate:"required,min=1,dive"`
}

// PreviewInput prices a cart without touching stock or persisting anything.
// Lines may be empty; an empty cart previews to zero totals.
type PreviewInput struct {
	Discount    *DiscountInput    `json:"discount,omitempty" validate:"omitempty"`
	TaxOverride *TaxOverrideInput `json:"taxOverride,omitempty" validate:"omitempty"`
	Lines       []CartLineInput   `json:"lines" validate:"dive"`
}

// InsufficientStockError identifies the offending product and the quantity
// still available under lock.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}
