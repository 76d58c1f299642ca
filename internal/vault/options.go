package vault

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OptionStore persists named settings, encrypting the value of every secure
// option. Components never read the raw stored value directly.
type OptionStore struct {
	DB    *pgxpool.Pool
	Vault *Vault
}

func (s *OptionStore) SetSecureOption(ctx context.Context, name, plaintext string) error {
	enc, err := s.Vault.Encrypt(plaintext)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO options(name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value`,
		name, enc)
	return err
}

// GetSecureOption returns the decrypted value for name, or "" when the option
// is unset. Legacy plaintext values (stored before encryption was enabled) are
// returned as-is.
func (s *OptionStore) GetSecureOption(ctx context.Context, name string) (string, error) {
	var stored string
	err := s.DB.QueryRow(ctx, `SELECT value FROM options WHERE name=$1`, name).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	plain, err := s.Vault.Decrypt(stored)
	if errors.Is(err, ErrNotEncrypted) {
		return stored, nil
	}
	return plain, err
}
