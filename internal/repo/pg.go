// Package repo provides the pgx-backed implementation of the settlement
// store. Stock rows are locked with SELECT ... FOR UPDATE for the lifetime
// of the settlement transaction.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-kasir/internal/sales"
)

// SalesStore implements sales.Store on a pgx connection pool.
type SalesStore struct {
	Pool *pgxpool.Pool
}

// Begin opens the settlement transaction.
func (s SalesStore) Begin(ctx context.Context) (sales.Tx, error) {
	if s.Pool == nil {
		return nil, errors.New("repo: pool not configured")
	}
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return salesTx{tx: tx}, nil
}

// ProductsByIDs loads products without locking, for cart previews.
func (s SalesStore) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]sales.Product, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, name, unit_price, tax_rate, tax_method, stock_qty
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uuid.UUID]sales.Product, len(ids))
	for rows.Next() {
		var p sales.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.UnitPrice, &p.TaxRate, &p.TaxMethod, &p.StockQty); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// GetSale returns the sale aggregate with its items and payments.
func (s SalesStore) GetSale(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	var sale sales.Sale
	err := s.Pool.QueryRow(ctx, `
		SELECT id, invoice_no, customer_id, actor_id,
		       subtotal, discount_total, tax_total, grand_total,
		       discount_type, discount_value, payment_method, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(
		&sale.ID, &sale.InvoiceNo, &sale.CustomerID, &sale.ActorID,
		&sale.Subtotal, &sale.DiscountTotal, &sale.TaxTotal, &sale.GrandTotal,
		&sale.DiscountType, &sale.DiscountValue, &sale.PaymentMethod, &sale.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sales.Sale{}, sales.ErrSaleNotFound
		}
		return sales.Sale{}, err
	}

	itemRows, err := s.Pool.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price,
		       line_discount_amount, invoice_discount_amount, tax_amount, line_total
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return sales.Sale{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var it sales.SaleItem
		if err := itemRows.Scan(
			&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice,
			&it.LineDiscountAmount, &it.InvoiceDiscountAmount, &it.TaxAmount, &it.LineTotal,
		); err != nil {
			return sales.Sale{}, err
		}
		sale.Items = append(sale.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return sales.Sale{}, err
	}

	payRows, err := s.Pool.Query(ctx, `
		SELECT id, sale_id, method, amount, paid_at
		FROM sale_payments
		WHERE sale_id = $1
		ORDER BY paid_at
	`, id)
	if err != nil {
		return sales.Sale{}, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p sales.SalePayment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.PaidAt); err != nil {
			return sales.Sale{}, err
		}
		sale.Payments = append(sale.Payments, p)
	}
	return sale, payRows.Err()
}

// ListSales returns a page of sale headers newest-first plus the total count.
func (s SalesStore) ListSales(ctx context.Context, limit, offset int) ([]sales.Sale, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM sales`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, invoice_no, customer_id, actor_id,
		       subtotal, discount_total, tax_total, grand_total,
		       discount_type, discount_value, payment_method, created_at
		FROM sales
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]sales.Sale, 0, limit)
	for rows.Next() {
		var sale sales.Sale
		if err := rows.Scan(
			&sale.ID, &sale.InvoiceNo, &sale.CustomerID, &sale.ActorID,
			&sale.Subtotal, &sale.DiscountTotal, &sale.TaxTotal, &sale.GrandTotal,
			&sale.DiscountType, &sale.DiscountValue, &sale.PaymentMethod, &sale.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, sale)
	}
	return out, total, rows.Err()
}

type salesTx struct {
	tx pgx.Tx
}

func (t salesTx) ProductForUpdate(ctx context.Context, id uuid.UUID) (sales.Product, error) {
	var p sales.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, unit_price, tax_rate, tax_method, stock_qty
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.TaxRate, &p.TaxMethod, &p.StockQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return sales.Product{}, fmt.Errorf("%w: %s", sales.ErrProductNotFound, id)
		}
		return sales.Product{}, err
	}
	return p, nil
}

func (t salesTx) UpdateStock(ctx context.Context, id uuid.UUID, qty int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products SET stock_qty = $2, updated_at = now() WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", sales.ErrProductNotFound, id)
	}
	return nil
}

func (t salesTx) InvoiceNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sales WHERE invoice_no = $1)
	`, number).Scan(&exists)
	return exists, err
}

func (t salesTx) InsertSale(ctx context.Context, sale sales.Sale) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sales (
			id, invoice_no, customer_id, actor_id,
			subtotal, discount_total, tax_total, grand_total,
			discount_type, discount_value, payment_method, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		sale.ID, sale.InvoiceNo, sale.CustomerID, sale.ActorID,
		sale.Subtotal, sale.DiscountTotal, sale.TaxTotal, sale.GrandTotal,
		sale.DiscountType, sale.DiscountValue, sale.PaymentMethod, sale.CreatedAt,
	)
	return err
}

func (t salesTx) InsertSaleItems(ctx context.Context, items []sales.SaleItem) error {
	for i, it := range items {
		_, err := t.tx.Exec(ctx, `
			INSERT INTO sale_items (
				id, sale_id, product_id, position, quantity, unit_price,
				line_discount_amount, invoice_discount_amount, tax_amount, line_total
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			it.ID, it.SaleID, it.ProductID, i, it.Quantity, it.UnitPrice,
			it.LineDiscountAmount, it.InvoiceDiscountAmount, it.TaxAmount, it.LineTotal,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t salesTx) InsertSalePayment(ctx context.Context, payment sales.SalePayment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO sale_payments (id, sale_id, method, amount, paid_at)
		VALUES ($1, $2, $3, $4, $5)
	`, payment.ID, payment.SaleID, payment.Method, payment.Amount, payment.PaidAt)
	return err
}

func (t salesTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t salesTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
