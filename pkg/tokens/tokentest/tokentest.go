// Package tokentest builds signed and encrypted tokens for tests.
package tokentest

import (
	"encoding/base64"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
)

// Issuer signs token data and encrypts payloads. *slosilo.CryptoContext
// satisfies it.
type Issuer interface {
	Sign(data []byte) ([]byte, error)
	Encrypt(plaintext []byte) ([]byte, error)
}

// Builder assembles a token envelope. The zero-value fields are valid: a
// renewal window of 100, an expiration of 200 and serial numbers of 1.
type Builder struct {
	issuer     Issuer
	codec      tokens.Codec
	cipherKey  string
	data       tokens.Tree
	payload    tokens.Tree
	rawCipher  []byte
	omitCipher bool
	corrupt    bool
}

func newBuilder(issuer Issuer, ordinalKey, cipherKey string) *Builder {
	return &Builder{
		issuer:    issuer,
		codec:     tokens.JSONCodec{},
		cipherKey: cipherKey,
		data: tokens.Tree{
			tokens.KeyRenewalWindow: int64(100),
			tokens.KeyExpiration:    int64(200),
			ordinalKey:              int64(1),
			tokens.KeySerialNumber:  int64(1),
		},
		payload: tokens.Tree{},
	}
}

// MasterToken starts a master token with sequence number 1.
func MasterToken(issuer Issuer) *Builder {
	return newBuilder(issuer, tokens.KeySequenceNumber, tokens.KeySessionData)
}

// UserIDToken starts a user ID token bound to master token serial number 1.
func UserIDToken(issuer Issuer) *Builder {
	return newBuilder(issuer, tokens.KeyMasterTokenSerialNumber, tokens.KeyUserData)
}

// Set sets a token data field as given, bypassing encryption for the
// ciphertext key. A nil value removes the field.
func (b *Builder) Set(key string, value any) *Builder {
	if value == nil {
		delete(b.data, key)
		b.omitCipher = b.omitCipher || key == b.cipherKey
		return b
	}
	b.data[key] = value
	return b
}

// Payload sets the tree encrypted into the session or user data.
func (b *Builder) Payload(payload tokens.Tree) *Builder {
	b.payload = payload
	return b
}

// RawCiphertext replaces the encrypted payload with bytes as given.
func (b *Builder) RawCiphertext(ct []byte) *Builder {
	b.rawCipher = ct
	return b
}

// Codec selects the tree encoding. CBOR envelopes carry byte strings.
func (b *Builder) Codec(codec tokens.Codec) *Builder {
	b.codec = codec
	return b
}

// CorruptSignature flips a bit of the signature so verification fails.
func (b *Builder) CorruptSignature() *Builder {
	b.corrupt = true
	return b
}

// Wire returns the envelope as a tree.
func (b *Builder) Wire() (tokens.Tree, error) {
	ciphertext := b.rawCipher
	if ciphertext == nil {
		plaintext, err := b.codec.Encode(b.payload)
		if err != nil {
			return nil, err
		}
		ciphertext, err = b.issuer.Encrypt(plaintext)
		if err != nil {
			return nil, err
		}
	}

	data := b.data.Clone()
	if _, set := data[b.cipherKey]; !set && !b.omitCipher {
		data[b.cipherKey] = b.field(ciphertext)
	}

	tokenData, err := b.codec.Encode(data)
	if err != nil {
		return nil, err
	}
	signature, err := b.issuer.Sign(tokenData)
	if err != nil {
		return nil, err
	}
	if b.corrupt && len(signature) > 0 {
		signature[0] ^= 0x01
	}

	return tokens.Tree{
		tokens.KeyTokenData: b.field(tokenData),
		tokens.KeySignature: b.field(signature),
	}, nil
}

// Bytes returns the encoded envelope.
func (b *Builder) Bytes() ([]byte, error) {
	wire, err := b.Wire()
	if err != nil {
		return nil, err
	}
	return b.codec.Encode(wire)
}

func (b *Builder) field(v []byte) any {
	if b.codec.Name() == "cbor" {
		return v
	}
	return base64.StdEncoding.EncodeToString(v)
}
