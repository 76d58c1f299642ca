package convo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Homeboy20/kwetupizza-bot/internal/redisx"
)

// Store persists conversation contexts on the customer row, whole-document
// read-modify-write. Backups for the 'continue' command live in Redis.
type Store struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Get returns the context for phone, creating the customer record with a
// default context on first contact. It never fails with "not found".
func (s *Store) Get(ctx context.Context, phone string) (Context, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `
		INSERT INTO customers(phone, state, context)
		VALUES ($1, '', '{}'::jsonb)
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING context`, phone).Scan(&raw)
	if err != nil {
		return Context{}, fmt.Errorf("get context: %w", err)
	}
	return DecodeContext(raw)
}

// Set upserts the context, stamping LastActivity.
func (s *Store) Set(ctx context.Context, phone string, c Context) error {
	c.LastActivity = time.Now().UTC()
	raw, err := EncodeContext(c)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO customers(phone, state, context)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET state = EXCLUDED.state, context = EXCLUDED.context, updated_at = now()`,
		phone, string(c.Awaiting), raw)
	return err
}

// Reset puts the context back to defaults, preserving customer identity.
func (s *Store) Reset(ctx context.Context, phone string) error {
	return s.Set(ctx, phone, Default())
}

// Backup snapshots the context so the customer can resume with 'continue'
// after a timeout reset.
func (s *Store) Backup(ctx context.Context, phone string, c Context) error {
	raw, err := EncodeContext(c)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyContextBackup, phone)
	return s.Redis.Set(ctx, key, raw, redisx.TTLContextBackup).Err()
}

// RestoreBackup returns the last snapshot, if one exists, and re-activates it.
func (s *Store) RestoreBackup(ctx context.Context, phone string) (Context, bool, error) {
	key := fmt.Sprintf(redisx.KeyContextBackup, phone)
	raw, err := s.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Context{}, false, nil
	}
	if err != nil {
		return Context{}, false, err
	}
	c, err := DecodeContext(raw)
	if err != nil {
		return Context{}, false, err
	}
	if err := s.Set(ctx, phone, c); err != nil {
		return Context{}, false, err
	}
	return c, true, nil
}
