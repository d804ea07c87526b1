package identity

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	minimumSealerSecretLength = 16
	sealerKeyInfo             = "ninwallet identifier sealing v1"
)

var (
	ErrInvalidSealerSecret = errors.New("invalid sealer secret")
	ErrSealedValueInvalid  = errors.New("sealed value invalid")
)

// Sealer encrypts identifiers at rest with XChaCha20-Poly1305.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key from secret with HKDF-SHA256.
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < minimumSealerSecretLength {
		return nil, fmt.Errorf("%w: must be at least %d bytes", ErrInvalidSealerSecret, minimumSealerSecretLength)
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSealerSecret, err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSealerSecret, err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns base64url(nonce || ciphertext).
func (sealer *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, sealer.aead.NonceSize(), sealer.aead.NonceSize()+len(plaintext)+sealer.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := sealer.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (sealer *Sealer) Open(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValueInvalid, err)
	}
	nonceSize := sealer.aead.NonceSize()
	if len(raw) < nonceSize+sealer.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrSealedValueInvalid)
	}
	plaintext, err := sealer.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValueInvalid, err)
	}
	return string(plaintext), nil
}
