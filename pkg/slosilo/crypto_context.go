package slosilo

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

type signer interface {
	Sign(data []byte) ([]byte, error)
	Verify(data, signature []byte) (bool, error)
}

type hmacSigner []byte

func (h hmacSigner) Sign(data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, h)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (h hmacSigner) Verify(data, signature []byte) (bool, error) {
	expected, _ := h.Sign(data)
	return hmac.Equal(expected, signature), nil
}

// CryptoContext signs, verifies, encrypts and decrypts token data for one
// entity. Ciphertexts are bound to the context id. A CryptoContext is
// immutable and safe for concurrent use.
type CryptoContext struct {
	id          string
	kind        KeyKind
	fingerprint string
	cipher      SymmetricCipher
	signer      signer
}

func NewCryptoContext(id string, m KeyMaterial) (*CryptoContext, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("crypto context %q: %w", id, err)
	}

	cipher, err := NewSymmetric(m.Encryption)
	if err != nil {
		return nil, err
	}

	var s signer = hmacSigner(append([]byte(nil), m.HMAC...))
	if m.Signing != nil {
		s = m.Signing
	}

	return &CryptoContext{
		id:          id,
		kind:        m.Kind(),
		fingerprint: m.Fingerprint(),
		cipher:      cipher,
		signer:      s,
	}, nil
}

func (c *CryptoContext) ID() string          { return c.id }
func (c *CryptoContext) Kind() KeyKind       { return c.kind }
func (c *CryptoContext) Fingerprint() string { return c.fingerprint }

func (c *CryptoContext) Encrypt(plaintext []byte) ([]byte, error) {
	return c.cipher.Encrypt([]byte(c.id), plaintext)
}

func (c *CryptoContext) Decrypt(ciphertext []byte) ([]byte, error) {
	return c.cipher.Decrypt([]byte(c.id), ciphertext)
}

func (c *CryptoContext) Sign(data []byte) ([]byte, error) {
	return c.signer.Sign(data)
}

// Verify returns false without error for a signature that does not match.
func (c *CryptoContext) Verify(data, signature []byte) (bool, error) {
	return c.signer.Verify(data, signature)
}
