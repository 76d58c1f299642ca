package orders

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, price_cents, currency, category, image_url, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, description, price_cents, currency, category, image_url, created_at, updated_at
		FROM products ORDER BY category, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.Category, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateOrder persists the order row and then its items. A failed item insert
// is logged and skipped rather than aborting: a placed order must not be lost
// over one bad line item.
func (r *Repo) CreateOrder(ctx context.Context, o Order, items []OrderItem) (int64, error) {
	var orderID int64
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(customer_name, customer_email, customer_phone, delivery_address,
		                   delivery_phone, status, total_cents, currency, tx_ref)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id`,
		o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.DeliveryAddress,
		o.DeliveryPhone, o.Status, o.TotalCents, o.Currency, o.TxRef).Scan(&orderID)
	if err != nil {
		return 0, err
	}

	for _, it := range items {
		_, err := r.DB.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, price_cents, note)
			VALUES ($1,$2,$3,$4,$5)`,
			orderID, it.ProductID, it.Quantity, it.PriceCents, it.Note)
		if err != nil {
			log.Printf("order %d: insert item product=%d failed: %v", orderID, it.ProductID, err)
		}
	}
	return orderID, nil
}

func (r *Repo) GetOrder(ctx context.Context, id int64) (Order, error) {
	return r.getOrder(ctx, `SELECT id, customer_name, customer_email, customer_phone, delivery_address,
		delivery_phone, status, total_cents, currency, tx_ref, order_date
		FROM orders WHERE id=$1`, id)
}

func (r *Repo) GetOrderByTxRef(ctx context.Context, txRef string) (Order, error) {
	return r.getOrder(ctx, `SELECT id, customer_name, customer_email, customer_phone, delivery_address,
		delivery_phone, status, total_cents, currency, tx_ref, order_date
		FROM orders WHERE tx_ref=$1`, txRef)
}

func (r *Repo) getOrder(ctx context.Context, q string, arg any) (Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, q, arg).Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.DeliveryAddress, &o.DeliveryPhone, &o.Status, &o.TotalCents, &o.Currency, &o.TxRef, &o.OrderDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) GetOrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, COALESCE(p.name, ''), oi.quantity, oi.price_cents, oi.note
		FROM order_items oi
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id=$1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.PriceCents, &it.Note); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetTxRef stores the charge reference on the order before the provider call
// so a late callback can always be correlated.
func (r *Repo) SetTxRef(ctx context.Context, orderID int64, txRef string) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET tx_ref=$2 WHERE id=$1`, orderID, txRef)
	return err
}

func (r *Repo) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2 WHERE id=$1`, orderID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveTransaction inserts the transaction keyed by tx_ref. The false return
// means a transaction for this tx_ref already exists (duplicate callback).
func (r *Repo) SaveTransaction(ctx context.Context, t Transaction) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO transactions(order_id, tx_ref, payment_method, payment_status, amount_cents, currency, payment_provider)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tx_ref) DO NOTHING`,
		t.OrderID, t.TxRef, t.PaymentMethod, t.PaymentStatus, t.AmountCents, t.Currency, t.PaymentProvider)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// SaveReview inserts at most one review per order.
func (r *Repo) SaveReview(ctx context.Context, rev Review) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO reviews(order_id, phone_number, rating, comment)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO NOTHING`,
		rev.OrderID, rev.PhoneNumber, rev.Rating, rev.Comment)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) CustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	var c Customer
	err := r.DB.QueryRow(ctx, `
		SELECT id, phone, name, email, role, state, created_at, updated_at
		FROM customers WHERE phone=$1`, phone).
		Scan(&c.ID, &c.Phone, &c.Name, &c.Email, &c.Role, &c.State, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (r *Repo) SaveAddress(ctx context.Context, phone, address, deliveryPhone string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO addresses(customer_id, address, phone_number)
		SELECT id, $2, $3 FROM customers WHERE phone=$1`,
		phone, address, deliveryPhone)
	return err
}

func (r *Repo) ListAddresses(ctx context.Context, phone string, limit int) ([]Address, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT a.id, a.customer_id, a.address, a.phone_number
		FROM addresses a
		JOIN customers c ON c.id = a.customer_id
		WHERE c.phone=$1
		ORDER BY a.id DESC
		LIMIT $2`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.Address, &a.PhoneNumber); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
