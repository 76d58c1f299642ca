// Package vault encrypts provider credentials at rest. Values are encrypted
// with AES-256-CBC under a per-installation key; each call uses a fresh random
// IV which is prepended to the ciphertext before base64 encoding.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrNotEncrypted marks a stored value that predates encryption. Callers
	// treat the raw value as the plaintext rather than failing.
	ErrNotEncrypted = errors.New("vault: value is not encrypted")

	// ErrDecrypt marks ciphertext that cannot be decrypted (corrupt data or
	// wrong key).
	ErrDecrypt = errors.New("vault: decrypt failed")
)

type Vault struct {
	key []byte
}

// GenerateKey returns a fresh 32-byte key, base64 encoded for storage.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func New(keyB64 string) (*Vault, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("vault: bad key encoding: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault: key must be 32 bytes, got %d", len(key))
	}
	return &Vault{key: key}, nil
}

// Encrypt returns base64(iv || AES-256-CBC(plaintext)). Empty input yields
// empty output.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Values that do not have the shape of vault
// ciphertext return ErrNotEncrypted so callers can fall back to treating the
// stored value as legacy plaintext. Structurally valid ciphertext that fails
// to decrypt returns ErrDecrypt.
func (v *Vault) Decrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", ErrNotEncrypted
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrNotEncrypted
	}
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", err
	}
	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	unpadded, ok := unpad(pt)
	if !ok {
		return "", ErrDecrypt
	}
	return string(unpadded), nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
