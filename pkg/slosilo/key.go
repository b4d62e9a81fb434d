package slosilo

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
)

const saltSize = 32

var (
	ErrShortSignature = errors.New("signature is shorter than its salt")
	ErrNotRSAKey      = errors.New("PEM block is not an RSA private key")
)

// Key is an RSA key that signs token data. A signature is PKCS#1 v1.5 over
// SHA-256(salt || data), with the salt appended.
type Key struct {
	privateKey  *rsa.PrivateKey
	fingerprint string
}

func newKey(pkey *rsa.PrivateKey) (*Key, error) {
	der, err := x509.MarshalPKIXPublicKey(&pkey.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: pkey, fingerprint: hex.EncodeToString(sha256Digest(der))}, nil
}

// NewKey restores a key from its PKCS#1 DER serialization.
func NewKey(der []byte) (*Key, error) {
	pkey, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, err
	}
	return newKey(pkey)
}

// ParseKeyPEM reads an "RSA PRIVATE KEY" PEM block.
func ParseKeyPEM(data []byte) (*Key, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, ErrNotRSAKey
	}
	return NewKey(block.Bytes)
}

// GenerateKey generates a new 2048-bit RSA signing key.
func GenerateKey() (*Key, error) {
	pkey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return newKey(pkey)
}

func (k *Key) Serialize() []byte {
	return x509.MarshalPKCS1PrivateKey(k.privateKey)
}

func (k *Key) PrivateRSAPem() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: k.Serialize(),
	})
}

func (k *Key) PublicPem() ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.privateKey.PublicKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Fingerprint is the hex SHA-256 of the DER public key.
func (k *Key) Fingerprint() string {
	return k.fingerprint
}

// Sign signs data with a fresh random salt.
func (k *Key) Sign(data []byte) ([]byte, error) {
	salt, err := RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	return k.signWithSalt(data, salt)
}

func (k *Key) signWithSalt(data, salt []byte) ([]byte, error) {
	signature, err := rsa.SignPKCS1v15(rand.Reader, k.privateKey, crypto.SHA256, sha256Digest(concat(salt, data)))
	if err != nil {
		return nil, err
	}
	return concat(signature, salt), nil
}

// Verify reports whether signature is valid for data. Only a signature too
// short to hold a salt is an error.
func (k *Key) Verify(data, signature []byte) (bool, error) {
	if len(signature) <= saltSize {
		return false, ErrShortSignature
	}
	split := len(signature) - saltSize
	salt, sig := signature[split:], signature[:split]

	err := rsa.VerifyPKCS1v15(&k.privateKey.PublicKey, crypto.SHA256, sha256Digest(concat(salt, data)), sig)
	return err == nil, nil
}

func sha256Digest(value []byte) []byte {
	sum := sha256.Sum256(value)
	return sum[:]
}

func concat(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
