package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrProductNotFound indicates a referenced product row does not exist.
var ErrProductNotFound = errors.New("sales: product not found")

// ErrSaleNotFound indicates the requested sale could not be located.
var ErrSaleNotFound = errors.New("sales: sale not found")

// Store abstracts the relational store behind settlement. The pgx
// implementation lives in internal/repo; tests substitute an in-memory one.
type Store interface {
	// Begin opens the settlement transaction. All writes performed through
	// the returned Tx become visible atomically on Commit.
	Begin(ctx context.Context) (Tx, error)

	// ProductsByIDs loads products without locking, for cart previews.
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)

	// GetSale returns a fully-materialised sale aggregate.
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)

	// ListSales returns a page of sale headers newest-first plus the total count.
	ListSales(ctx context.Context, limit, offset int) ([]Sale, int64, error)
}

// Tx is one settlement unit of work. Rollback after Commit is a no-op so it
// can sit in a defer.
type Tx interface {
	// ProductForUpdate loads the product row under an exclusive lock held
	// until the transaction ends. Returns ErrProductNotFound when absent.
	ProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)

	// UpdateStock writes the product's new quantity. The caller must hold
	// the row lock from a prior ProductForUpdate in the same transaction.
	UpdateStock(ctx context.Context, id uuid.UUID, qty int64) error

	// InvoiceNumberExists probes persisted sale headers for the candidate.
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)

	// InsertSale writes the sale header.
	InsertSale(ctx context.Context, sale Sale) error

	// InsertSaleItems writes all invoice lines for the header.
	InsertSaleItems(ctx context.Context, items []SaleItem) error

	// InsertSalePayment appends a payment row.
	InsertSalePayment(ctx context.Context, payment SalePayment) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
