package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id          BIGSERIAL PRIMARY KEY,
		phone       TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL DEFAULT 'WhatsApp User',
		email       TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT 'customer',
		state       TEXT NOT NULL DEFAULT '',
		context     JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL,
		currency    TEXT NOT NULL DEFAULT 'TZS',
		category    TEXT NOT NULL DEFAULT '',
		image_url   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               BIGSERIAL PRIMARY KEY,
		customer_name    TEXT NOT NULL,
		customer_email   TEXT NOT NULL DEFAULT '',
		customer_phone   TEXT NOT NULL,
		delivery_address TEXT NOT NULL,
		delivery_phone   TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'pending',
		total_cents      BIGINT NOT NULL,
		currency         TEXT NOT NULL DEFAULT 'TZS',
		tx_ref           TEXT NOT NULL DEFAULT '',
		order_date       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_tx_ref_idx ON orders (tx_ref)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id          BIGSERIAL PRIMARY KEY,
		order_id    BIGINT NOT NULL REFERENCES orders(id),
		product_id  BIGINT NOT NULL,
		quantity    INT NOT NULL,
		price_cents BIGINT NOT NULL,
		note        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id               BIGSERIAL PRIMARY KEY,
		order_id         BIGINT NOT NULL REFERENCES orders(id),
		tx_ref           TEXT NOT NULL UNIQUE,
		transaction_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		payment_method   TEXT NOT NULL DEFAULT 'mobile_money',
		payment_status   TEXT NOT NULL,
		amount_cents     BIGINT NOT NULL,
		currency         TEXT NOT NULL DEFAULT 'TZS',
		payment_provider TEXT NOT NULL DEFAULT 'flutterwave'
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL UNIQUE REFERENCES orders(id),
		phone_number TEXT NOT NULL,
		rating       INT NOT NULL,
		comment      TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS addresses (
		id           BIGSERIAL PRIMARY KEY,
		customer_id  BIGINT NOT NULL REFERENCES customers(id),
		address      TEXT NOT NULL,
		phone_number TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		name  TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so this is safe to run
// on every boot.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
