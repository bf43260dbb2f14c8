package sales_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/invoice"
	"github.com/noah-isme/backend-kasir/internal/pricing"
	"github.com/noah-isme/backend-kasir/internal/sales"
)

// memStore is an in-memory sales.Store. A store-wide mutex held from the
// first ProductForUpdate until Commit/Rollback stands in for row locks, so
// concurrent settlements serialise the same way they would on Postgres.
type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]sales.Product
	sales    map[uuid.UUID]sales.Sale
	byNumber map[string]uuid.UUID

	numbersAlwaysTaken bool
}

func newMemStore(products ...sales.Product) *memStore {
	s := &memStore{
		products: map[uuid.UUID]sales.Product{},
		sales:    map[uuid.UUID]sales.Sale{},
		byNumber: map[string]uuid.UUID{},
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) Begin(context.Context) (sales.Tx, error) {
	return &memTx{store: s, stagedStock: map[uuid.UUID]int64{}}, nil
}

func (s *memStore) ProductsByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]sales.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]sales.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *memStore) GetSale(_ context.Context, id uuid.UUID) (sales.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return sales.Sale{}, sales.ErrSaleNotFound
	}
	return sale, nil
}

func (s *memStore) ListSales(context.Context, int, int) ([]sales.Sale, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sales.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, sale)
	}
	return out, int64(len(out)), nil
}

type memTx struct {
	store       *memStore
	locked      bool
	stagedStock map[uuid.UUID]int64
	stagedSale  *sales.Sale
	done        bool
}

func (t *memTx) lock() {
	if !t.locked {
		t.store.mu.Lock()
		t.locked = true
	}
}

func (t *memTx) release() {
	if t.locked {
		t.store.mu.Unlock()
		t.locked = false
	}
}

func (t *memTx) ProductForUpdate(_ context.Context, id uuid.UUID) (sales.Product, error) {
	t.lock()
	p, ok := t.store.products[id]
	if !ok {
		return sales.Product{}, sales.ErrProductNotFound
	}
	return p, nil
}

func (t *memTx) UpdateStock(_ context.Context, id uuid.UUID, qty int64) error {
	if _, ok := t.store.products[id]; !ok {
		return sales.ErrProductNotFound
	}
	t.stagedStock[id] = qty
	return nil
}

func (t *memTx) InvoiceNumberExists(_ context.Context, number string) (bool, error) {
	if t.store.numbersAlwaysTaken {
		return true, nil
	}
	_, taken := t.store.byNumber[number]
	return taken, nil
}

func (t *memTx) InsertSale(_ context.Context, sale sales.Sale) error {
	t.stagedSale = &sale
	return nil
}

func (t *memTx) InsertSaleItems(_ context.Context, items []sales.SaleItem) error {
	if t.stagedSale == nil {
		return errors.New("header not inserted")
	}
	t.stagedSale.Items = items
	return nil
}

func (t *memTx) InsertSalePayment(_ context.Context, payment sales.SalePayment) error {
	if t.stagedSale == nil {
		return errors.New("header not inserted")
	}
	t.stagedSale.Payments = append(t.stagedSale.Payments, payment)
	return nil
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	t.done = true
	for id, qty := range t.stagedStock {
		p := t.store.products[id]
		p.StockQty = qty
		t.store.products[id] = p
	}
	if t.stagedSale != nil {
		t.store.sales[t.stagedSale.ID] = *t.stagedSale
		t.store.byNumber[t.stagedSale.InvoiceNo] = t.stagedSale.ID
	}
	t.release()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.release()
	return nil
}

type captureEventStore struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (s *captureEventStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := events.DomainEvent{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload, OccurredAt: time.Now()}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *captureEventStore) topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Topic
	}
	return out
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func product(price string, stock int64) sales.Product {
	return sales.Product{
		ID:        uuid.New(),
		Name:      "test product",
		UnitPrice: dec(price),
		TaxRate:   dec("10"),
		TaxMethod: pricing.TaxExclusive,
		StockQty:  stock,
	}
}

func newService(store *memStore, eventStore *captureEventStore) *sales.Service {
	svc := &sales.Service{
		Store:             store,
		Validate:          validator.New(),
		Logger:            zerolog.Nop(),
		InvoicePrefix:     "INV",
		LowStockThreshold: 3,
		DefaultTaxMethod:  pricing.TaxExclusive,
	}
	if eventStore != nil {
		svc.Events = &events.Bus{Store: eventStore}
	}
	return svc
}

func TestCreateInvoiceCommitsAggregate(t *testing.T) {
	p1 := product("60", 10)
	p2 := product("40", 10)
	store := newMemStore(p1, p2)
	eventStore := &captureEventStore{}
	svc := newService(store, eventStore)

	sale, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		PaidAmount:    99,
		Discount:      &sales.DiscountInput{Type: "PERCENT", Value: 10},
		Lines: []sales.CartLineInput{
			{ProductID: p1.ID.String(), Quantity: 1},
			{ProductID: p2.ID.String(), Quantity: 1},
		},
	})
	require.NoError(t, err)

	// Totals come from the engine: subtotal 100, 10% invoice discount,
	// 10% exclusive tax on the discounted base.
	require.True(t, sale.Subtotal.Equal(dec("100.00")), "subtotal %s", sale.Subtotal)
	require.True(t, sale.DiscountTotal.Equal(dec("10.00")), "discount %s", sale.DiscountTotal)
	require.True(t, sale.TaxTotal.Equal(dec("9.00")), "tax %s", sale.TaxTotal)
	require.True(t, sale.GrandTotal.Equal(dec("99.00")), "grand %s", sale.GrandTotal)
	require.Regexp(t, `^INV-\d{6}-\d{6}-\d{3}$`, sale.InvoiceNo)
	require.Equal(t, "cashier-1", sale.ActorID)
	require.Len(t, sale.Items, 2)
	require.Len(t, sale.Payments, 1)
	require.True(t, sale.Payments[0].Amount.Equal(dec("99.00")))

	persisted, err := store.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, sale.InvoiceNo, persisted.InvoiceNo)
	require.EqualValues(t, 9, store.products[p1.ID].StockQty)
	require.EqualValues(t, 9, store.products[p2.ID].StockQty)

	require.Contains(t, eventStore.topics(), events.TopicSaleCreated)
}

func TestCreateInvoiceOversellAborts(t *testing.T) {
	p := product("25", 2)
	store := newMemStore(p)
	svc := newService(store, nil)

	_, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		Lines:         []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 3}},
	})

	var insufficient *sales.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, p.ID, insufficient.ProductID)
	require.EqualValues(t, 3, insufficient.Requested)
	require.EqualValues(t, 2, insufficient.Available)

	// No partial writes: stock untouched, nothing persisted.
	require.EqualValues(t, 2, store.products[p.ID].StockQty)
	require.Empty(t, store.sales)
}

func TestCreateInvoiceMissingProductAborts(t *testing.T) {
	store := newMemStore()
	svc := newService(store, nil)

	_, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		Lines:         []sales.CartLineInput{{ProductID: uuid.NewString(), Quantity: 1}},
	})
	require.ErrorIs(t, err, sales.ErrProductNotFound)
	require.Empty(t, store.sales)
}

func TestCreateInvoiceDuplicateLinesShareStock(t *testing.T) {
	p := product("10", 3)
	store := newMemStore(p)
	svc := newService(store, nil)

	_, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		Lines: []sales.CartLineInput{
			{ProductID: p.ID.String(), Quantity: 2},
			{ProductID: p.ID.String(), Quantity: 2},
		},
	})
	var insufficient *sales.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 4, insufficient.Requested)
	require.EqualValues(t, 3, store.products[p.ID].StockQty)
}

func TestCreateInvoiceAllocationExhausted(t *testing.T) {
	p := product("10", 5)
	store := newMemStore(p)
	store.numbersAlwaysTaken = true
	svc := newService(store, nil)

	_, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		Lines:         []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 1}},
	})
	require.ErrorIs(t, err, invoice.ErrAllocationExhausted)
	// Allocation failure rolls back the stock decrement too.
	require.EqualValues(t, 5, store.products[p.ID].StockQty)
	require.Empty(t, store.sales)
}

func TestCreateInvoiceRejectsInvalidInput(t *testing.T) {
	p := product("10", 5)
	store := newMemStore(p)
	svc := newService(store, nil)

	cases := []sales.CreateInput{
		{PaymentMethod: "CASH"}, // no lines
		{PaymentMethod: "BARTER", Lines: []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 1}}},
		{PaymentMethod: "CASH", Lines: []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 0}}},
		{PaymentMethod: "CASH", Lines: []sales.CartLineInput{{ProductID: "not-a-uuid", Quantity: 1}}},
		{PaymentMethod: "CASH", PaidAmount: -1, Lines: []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 1}}},
		{PaymentMethod: "CASH", Discount: &sales.DiscountInput{Type: "HALFOFF"}, Lines: []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 1}}},
	}
	for i, in := range cases {
		_, err := svc.CreateInvoice(context.Background(), "cashier-1", in)
		require.ErrorIs(t, err, sales.ErrInvalidInput, "case %d", i)
	}
	require.Empty(t, store.sales)
}

func TestConcurrentSettlementSharedStock(t *testing.T) {
	p := product("10", 1)
	store := newMemStore(p)
	svc := newService(store, nil)

	in := sales.CreateInput{
		PaymentMethod: "CASH",
		Lines:         []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 1}},
	}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateInvoice(context.Background(), "cashier-1", in)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, failed int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		failed++
		var insufficient *sales.InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, failed)
	require.EqualValues(t, 0, store.products[p.ID].StockQty)
}

func TestCreateInvoiceEmitsLowStockOnCrossing(t *testing.T) {
	p := product("10", 3) // threshold 3: 3 -> 1 crosses below
	store := newMemStore(p)
	eventStore := &captureEventStore{}
	svc := newService(store, eventStore)

	_, err := svc.CreateInvoice(context.Background(), "cashier-1", sales.CreateInput{
		PaymentMethod: "CASH",
		Lines:         []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)
	require.Contains(t, eventStore.topics(), events.TopicStockLow)
}

func TestPreviewLeavesStockUntouched(t *testing.T) {
	p := product("100", 5)
	store := newMemStore(p)
	svc := newService(store, nil)

	res, err := svc.Preview(context.Background(), sales.PreviewInput{
		Discount: &sales.DiscountInput{Type: "FIXED", Value: 30},
		Lines:    []sales.CartLineInput{{ProductID: p.ID.String(), Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, res.Subtotal.Equal(dec("200.00")))
	require.True(t, res.DiscountTotal.Equal(dec("30.00")))
	require.True(t, res.GrandTotal.Equal(dec("187.00")), "grand %s", res.GrandTotal)
	require.EqualValues(t, 5, store.products[p.ID].StockQty)
	require.Empty(t, store.sales)
}

func TestPreviewEmptyCart(t *testing.T) {
	store := newMemStore()
	svc := newService(store, nil)

	res, err := svc.Preview(context.Background(), sales.PreviewInput{})
	require.NoError(t, err)
	require.Empty(t, res.Lines)
	require.True(t, res.Subtotal.IsZero())
	require.True(t, res.GrandTotal.IsZero())
	require.Equal(t, pricing.DiscountNone, res.InvoiceDiscount.Type)
}
