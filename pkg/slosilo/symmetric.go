package slosilo

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

const (
	ivSize       = 12
	tagSize      = aes.BlockSize
	versionMagic = byte('G')
	headerSize   = 1 + tagSize + ivSize

	// KeySize is the AES-256 key length used for data keys and session
	// encryption keys.
	KeySize = 32
)

var (
	ErrCiphertextTooShort = errors.New("ciphertext is too short")
	ErrUnknownVersion     = errors.New("ciphertext has an unknown version")
	ErrShortNonce         = errors.New("nonce is too short")
)

// SymmetricCipher encrypts with AES-GCM. The additional authenticated data
// binds a ciphertext to its owner, e.g. a keystore id or a crypto context id.
type SymmetricCipher interface {
	Decrypt(aad, packedText []byte) ([]byte, error)
	Encrypt(aad, plainText []byte) ([]byte, error)
}

type Symmetric struct {
	aesgcm cipher.AEAD
}

func NewSymmetric(key []byte) (*Symmetric, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}

	return &Symmetric{aesgcm: aesgcm}, nil
}

func (s *Symmetric) Decrypt(aad, packedText []byte) ([]byte, error) {
	cipherText, iv, err := UnpackCipherData(packedText)
	if err != nil {
		return nil, err
	}
	return s.aesgcm.Open(nil, iv, cipherText, aad)
}

func (s *Symmetric) Encrypt(aad, plainText []byte) ([]byte, error) {
	// Never use more than 2^32 random nonces with a given key because of
	// the risk of a repeat.
	nonce, err := RandomBytes(ivSize)
	if err != nil {
		return nil, err
	}
	return s.encrypt(aad, plainText, nonce)
}

func (s *Symmetric) encrypt(aad, plainText, nonce []byte) ([]byte, error) {
	if len(nonce) < ivSize {
		return nil, ErrShortNonce
	}
	sealed := s.aesgcm.Seal(nil, nonce[:ivSize], plainText, aad)
	return PackCipherData(sealed, nonce), nil
}

func RandomBytes(size int) ([]byte, error) {
	value := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, value); err != nil {
		return nil, err
	}
	return value, nil
}

// PackCipherData lays a sealed GCM message out as version || tag || iv ||
// ciphertext.
func PackCipherData(sealed, iv []byte) []byte {
	split := len(sealed) - tagSize
	tag, cipherText := sealed[split:], sealed[:split]

	data := make([]byte, 0, headerSize+len(cipherText))
	data = append(data, versionMagic)
	data = append(data, tag...)
	data = append(data, iv[:ivSize]...)
	return append(data, cipherText...)
}

// UnpackCipherData reverses PackCipherData, returning the sealed message
// (ciphertext || tag) and the iv.
func UnpackCipherData(packedText []byte) ([]byte, []byte, error) {
	if len(packedText) < headerSize {
		return nil, nil, ErrCiphertextTooShort
	}
	if packedText[0] != versionMagic {
		return nil, nil, ErrUnknownVersion
	}

	tag := packedText[1 : 1+tagSize]
	iv := packedText[1+tagSize : headerSize]
	sealed := concat(packedText[headerSize:], tag)

	return sealed, iv, nil
}
