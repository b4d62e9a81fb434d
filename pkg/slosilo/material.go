package slosilo

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyKind names the signing scheme of a key set.
type KeyKind string

const (
	// KindSession keys sign with HMAC-SHA256.
	KindSession KeyKind = "session"
	// KindRSA keys sign with an RSA key.
	KindRSA KeyKind = "rsa"
)

const hmacKeySize = 32

var (
	ErrEncryptionKeySize = fmt.Errorf("encryption key must be %d bytes", KeySize)
	ErrHMACKeySize       = fmt.Errorf("HMAC key must be at least %d bytes", hmacKeySize)
	ErrNoSigner          = errors.New("key material needs exactly one of an HMAC key or a signing key")
	ErrUnknownKeyKind    = errors.New("unknown key kind")
)

// KeyMaterial is the secret material behind a crypto context: an AES-256
// encryption key plus either an HMAC key or an RSA signing key.
type KeyMaterial struct {
	Encryption []byte
	HMAC       []byte
	Signing    *Key
}

func (m KeyMaterial) Kind() KeyKind {
	if m.Signing != nil {
		return KindRSA
	}
	return KindSession
}

func (m KeyMaterial) Validate() error {
	if len(m.Encryption) != KeySize {
		return ErrEncryptionKeySize
	}
	if (m.Signing == nil) == (len(m.HMAC) == 0) {
		return ErrNoSigner
	}
	if m.Signing == nil && len(m.HMAC) < hmacKeySize {
		return ErrHMACKeySize
	}
	return nil
}

// Serialize packs the material as the encryption key followed by the HMAC
// key or the PKCS#1 DER signing key.
func (m KeyMaterial) Serialize() []byte {
	if m.Signing != nil {
		return concat(m.Encryption, m.Signing.Serialize())
	}
	return concat(m.Encryption, m.HMAC)
}

// ParseKeyMaterial reverses Serialize.
func ParseKeyMaterial(kind KeyKind, data []byte) (KeyMaterial, error) {
	if len(data) <= KeySize {
		return KeyMaterial{}, ErrEncryptionKeySize
	}
	m := KeyMaterial{Encryption: append([]byte(nil), data[:KeySize]...)}
	rest := data[KeySize:]

	switch kind {
	case KindSession:
		m.HMAC = append([]byte(nil), rest...)
	case KindRSA:
		key, err := NewKey(rest)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("signing key: %w", err)
		}
		m.Signing = key
	default:
		return KeyMaterial{}, fmt.Errorf("%w: %q", ErrUnknownKeyKind, kind)
	}

	return m, m.Validate()
}

// Fingerprint identifies the material without revealing it. RSA material
// uses the public key fingerprint.
func (m KeyMaterial) Fingerprint() string {
	if m.Signing != nil {
		return m.Signing.Fingerprint()
	}
	return hex.EncodeToString(sha256Digest(m.Serialize()))
}

// GenerateSessionKeys returns random encryption and HMAC keys.
func GenerateSessionKeys() (KeyMaterial, error) {
	enc, err := RandomBytes(KeySize)
	if err != nil {
		return KeyMaterial{}, err
	}
	mac, err := RandomBytes(hmacKeySize)
	if err != nil {
		return KeyMaterial{}, err
	}
	return KeyMaterial{Encryption: enc, HMAC: mac}, nil
}

// GenerateRSAKeys returns a random encryption key and a new RSA signing key.
func GenerateRSAKeys() (KeyMaterial, error) {
	enc, err := RandomBytes(KeySize)
	if err != nil {
		return KeyMaterial{}, err
	}
	key, err := GenerateKey()
	if err != nil {
		return KeyMaterial{}, err
	}
	return KeyMaterial{Encryption: enc, Signing: key}, nil
}

// DeriveSessionKeys expands a pre-shared key into session keys with
// HKDF-SHA256. The id is mixed into the info string so different contexts
// never share keys.
func DeriveSessionKeys(psk []byte, id string) (KeyMaterial, error) {
	if len(psk) == 0 {
		return KeyMaterial{}, errors.New("pre-shared key is empty")
	}

	r := hkdf.New(sha256.New, psk, nil, []byte("msl-wiretap session keys "+id))
	out := make([]byte, KeySize+hmacKeySize)
	if _, err := io.ReadFull(r, out); err != nil {
		return KeyMaterial{}, err
	}

	return KeyMaterial{Encryption: out[:KeySize], HMAC: out[KeySize:]}, nil
}
