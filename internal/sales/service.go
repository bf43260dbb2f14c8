package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/invoice"
	"github.com/noah-isme/backend-kasir/internal/money"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/pricing"
)

// ErrInvalidInput is returned when the provided payload fails validation.
var ErrInvalidInput = errors.New("sales: invalid input")

// Service orchestrates settlement: pricing, stock guarding, identifier
// allocation, and persistence in one transaction.
type Service struct {
	Store    Store
	Validate *validator.Validate
	Events   *events.Bus
	Logger   zerolog.Logger

	InvoicePrefix     string
	AllocMaxAttempts  int
	LowStockThreshold int64
	DefaultTaxRate    decimal.Decimal
	DefaultTaxMethod  pricing.TaxMethod
	Now               func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateInvoice settles a cart into a persisted sale. Either the whole
// aggregate commits (header, items, payment, stock decrements) or nothing
// does; the commit is the only success signal.
func (s *Service) CreateInvoice(ctx context.Context, actorID string, in CreateInput) (Sale, error) {
	start := time.Now()
	sale, err := s.createInvoice(ctx, actorID, in)
	result := "committed"
	if err != nil {
		result = "aborted"
	}
	obs.ObserveSettlement(result, time.Since(start))
	return sale, err
}

func (s *Service) createInvoice(ctx context.Context, actorID string, in CreateInput) (Sale, error) {
	if s == nil || s.Store == nil {
		return Sale{}, errors.New("sales: service not configured")
	}
	if err := s.validate(in); err != nil {
		return Sale{}, err
	}

	var customerID *uuid.UUID
	if in.CustomerID != nil {
		parsed, err := uuid.Parse(*in.CustomerID)
		if err != nil {
			return Sale{}, fmt.Errorf("%w: customer id: %v", ErrInvalidInput, err)
		}
		customerID = &parsed
	}
	lineIDs := make([]uuid.UUID, len(in.Lines))
	for i, ln := range in.Lines {
		id, err := uuid.Parse(ln.ProductID)
		if err != nil {
			return Sale{}, fmt.Errorf("%w: product id %q: %v", ErrInvalidInput, ln.ProductID, err)
		}
		lineIDs[i] = id
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return Sale{}, fmt.Errorf("sales: begin settlement: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lock product rows in cart line order. Each transaction only ever
	// locks the products in its own cart, so disjoint carts cannot
	// deadlock against each other.
	locked := make(map[uuid.UUID]Product, len(lineIDs))
	order := make([]uuid.UUID, 0, len(lineIDs))
	for _, id := range lineIDs {
		if _, ok := locked[id]; ok {
			continue
		}
		p, err := tx.ProductForUpdate(ctx, id)
		if err != nil {
			return Sale{}, err
		}
		locked[id] = p
		order = append(order, id)
	}

	// PRICING: one engine invocation against the locked, authoritative
	// unit prices and tax metadata. Caller-declared prices are ignored.
	engineLines := make([]pricing.Line, len(in.Lines))
	for i, ln := range in.Lines {
		p := locked[lineIDs[i]]
		engineLines[i] = pricing.Line{
			ProductID: p.ID.String(),
			Quantity:  ln.Quantity,
			UnitPrice: p.UnitPrice,
			Discount:  toEngineDiscount(ln.Discount),
			TaxRate:   p.TaxRate,
			TaxMethod: p.TaxMethod,
		}
		if engineLines[i].TaxMethod == "" {
			engineLines[i].TaxRate = s.DefaultTaxRate
			engineLines[i].TaxMethod = s.DefaultTaxMethod
		}
	}
	invoiceDiscount := pricing.Discount{Type: pricing.DiscountNone}
	if d := toEngineDiscount(in.Discount); d != nil {
		invoiceDiscount = *d
	}
	result := pricing.Compute(engineLines, invoiceDiscount, toEngineTaxOverride(in.TaxOverride))

	// STOCK_CHECK: verify and decrement under the locks. Any shortfall
	// aborts the whole invoice.
	required := make(map[uuid.UUID]int64, len(order))
	for i, ln := range in.Lines {
		required[lineIDs[i]] += ln.Quantity
	}
	newQty := make(map[uuid.UUID]int64, len(order))
	for _, id := range order {
		p := locked[id]
		need := required[id]
		if p.StockQty < need {
			return Sale{}, &InsufficientStockError{ProductID: id, Requested: need, Available: p.StockQty}
		}
		newQty[id] = p.StockQty - need
		if err := tx.UpdateStock(ctx, id, newQty[id]); err != nil {
			return Sale{}, fmt.Errorf("sales: decrement stock: %w", err)
		}
	}

	// PERSISTING: allocate the invoice number inside the transaction and
	// write the aggregate. Header totals come from the engine, never from
	// re-summing persisted rows.
	alloc := invoice.Allocator{
		Exists:      tx.InvoiceNumberExists,
		Prefix:      s.InvoicePrefix,
		MaxAttempts: s.AllocMaxAttempts,
		Now:         s.Now,
		OnAttempt:   obs.ObserveInvoiceAllocAttempt,
	}
	invoiceNo, err := alloc.Next(ctx)
	if err != nil {
		return Sale{}, err
	}

	sale := Sale{
		ID:            uuid.New(),
		InvoiceNo:     invoiceNo,
		CustomerID:    customerID,
		ActorID:       actorID,
		Subtotal:      result.Subtotal,
		DiscountTotal: result.DiscountTotal,
		TaxTotal:      result.TaxTotal,
		GrandTotal:    result.GrandTotal,
		DiscountType:  string(result.InvoiceDiscount.Type),
		DiscountValue: result.InvoiceDiscount.Value,
		PaymentMethod: in.PaymentMethod,
		CreatedAt:     s.now(),
	}
	items := make([]SaleItem, len(result.Lines))
	for i, pl := range result.Lines {
		items[i] = SaleItem{
			ID:                    uuid.New(),
			SaleID:                sale.ID,
			ProductID:             lineIDs[i],
			Quantity:              pl.Quantity,
			UnitPrice:             pl.UnitPrice,
			LineDiscountAmount:    pl.LineDiscountAmount,
			InvoiceDiscountAmount: pl.InvoiceDiscountAmount,
			TaxAmount:             pl.LineTaxAmount,
			LineTotal:             pl.LineTotal,
		}
	}
	sale.Items = items

	if err := tx.InsertSale(ctx, sale); err != nil {
		return Sale{}, fmt.Errorf("sales: persist header: %w", err)
	}
	if err := tx.InsertSaleItems(ctx, items); err != nil {
		return Sale{}, fmt.Errorf("sales: persist items: %w", err)
	}
	if in.PaidAmount > 0 {
		payment := SalePayment{
			ID:     uuid.New(),
			SaleID: sale.ID,
			Method: in.PaymentMethod,
			Amount: money.FromFloat(in.PaidAmount),
			PaidAt: sale.CreatedAt,
		}
		if err := tx.InsertSalePayment(ctx, payment); err != nil {
			return Sale{}, fmt.Errorf("sales: persist payment: %w", err)
		}
		sale.Payments = []SalePayment{payment}
	}

	if err := tx.Commit(ctx); err != nil {
		return Sale{}, fmt.Errorf("sales: commit settlement: %w", err)
	}

	// Side-channel notifications never block or roll back the sale.
	s.emitPostCommit(ctx, sale, locked, newQty)

	return sale, nil
}

// Preview prices a cart without locking stock or persisting anything.
func (s *Service) Preview(ctx context.Context, in PreviewInput) (pricing.Result, error) {
	if s == nil || s.Store == nil {
		return pricing.Result{}, errors.New("sales: service not configured")
	}
	if s.Validate != nil {
		if err := s.Validate.Struct(in); err != nil {
			return pricing.Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	ids := make([]uuid.UUID, len(in.Lines))
	for i, ln := range in.Lines {
		id, err := uuid.Parse(ln.ProductID)
		if err != nil {
			return pricing.Result{}, fmt.Errorf("%w: product id %q: %v", ErrInvalidInput, ln.ProductID, err)
		}
		ids[i] = id
	}
	products, err := s.Store.ProductsByIDs(ctx, ids)
	if err != nil {
		return pricing.Result{}, err
	}
	engineLines := make([]pricing.Line, len(in.Lines))
	for i, ln := range in.Lines {
		p, ok := products[ids[i]]
		if !ok {
			return pricing.Result{}, fmt.Errorf("%w: %s", ErrProductNotFound, ids[i])
		}
		engineLines[i] = pricing.Line{
			ProductID: p.ID.String(),
			Quantity:  ln.Quantity,
			UnitPrice: p.UnitPrice,
			Discount:  toEngineDiscount(ln.Discount),
			TaxRate:   p.TaxRate,
			TaxMethod: p.TaxMethod,
		}
		if engineLines[i].TaxMethod == "" {
			engineLines[i].TaxRate = s.DefaultTaxRate
			engineLines[i].TaxMethod = s.DefaultTaxMethod
		}
	}
	invoiceDiscount := pricing.Discount{Type: pricing.DiscountNone}
	if d := toEngineDiscount(in.Discount); d != nil {
		invoiceDiscount = *d
	}
	return pricing.Compute(engineLines, invoiceDiscount, toEngineTaxOverride(in.TaxOverride)), nil
}

// GetSale returns the persisted aggregate.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	if s == nil || s.Store == nil {
		return Sale{}, errors.New("sales: service not configured")
	}
	return s.Store.GetSale(ctx, id)
}

// ListSales returns a page of sale headers.
func (s *Service) ListSales(ctx context.Context, limit, offset int) ([]Sale, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("sales: service not configured")
	}
	return s.Store.ListSales(ctx, limit, offset)
}

func (s *Service) validate(in CreateInput) error {
	if s.Validate == nil {
		return nil
	}
	if err := s.Validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) emitPostCommit(ctx context.Context, sale Sale, locked map[uuid.UUID]Product, newQty map[uuid.UUID]int64) {
	if s.Events != nil {
		payload := map[string]any{
			"saleId":     sale.ID.String(),
			"invoiceNo":  sale.InvoiceNo,
			"grandTotal": sale.GrandTotal,
			"actorId":    sale.ActorID,
		}
		if _, err := s.Events.Emit(ctx, events.TopicSaleCreated, sale.ID, payload); err != nil {
			s.Logger.Error().Err(err).Str("sale_id", sale.ID.String()).Msg("emit sale.created")
		}
	}
	threshold := s.LowStockThreshold
	if threshold <= 0 {
		return
	}
	for id, remaining := range newQty {
		prev := locked[id].StockQty
		if prev >= threshold && remaining < threshold {
			obs.ObserveLowStock()
			if s.Events == nil {
				continue
			}
			payload := map[string]any{
				"productId": id.String(),
				"name":      locked[id].Name,
				"remaining": remaining,
				"threshold": threshold,
			}
			if _, err := s.Events.Emit(ctx, events.TopicStockLow, id, payload); err != nil {
				s.Logger.Error().Err(err).Str("product_id", id.String()).Msg("emit stock.low")
			}
		}
	}
}

func toEngineDiscount(d *DiscountInput) *pricing.Discount {
	if d == nil || d.Type == "" || d.Type == string(pricing.DiscountNone) {
		return nil
	}
	return &pricing.Discount{
		Type:  pricing.DiscountType(d.Type),
		Value: decimal.NewFromFloat(d.Value),
	}
}

func toEngineTaxOverride(t *TaxOverrideInput) *pricing.TaxOverride {
	if t == nil {
		return nil
	}
	return &pricing.TaxOverride{
		Rate:   decimal.NewFromFloat(t.Rate),
		Method: pricing.TaxMethod(t.Method),
	}
}
