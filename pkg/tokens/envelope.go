package tokens

import (
	"encoding/base64"
	"unicode/utf8"
)

// Wire keys.
const (
	KeyTokenData               = "tokendata"
	KeySignature               = "signature"
	KeyRenewalWindow           = "renewalwindow"
	KeyExpiration              = "expiration"
	KeySequenceNumber          = "sequencenumber"
	KeySerialNumber            = "serialnumber"
	KeySessionData             = "sessiondata"
	KeyMasterTokenSerialNumber = "mtserialnumber"
	KeyUserData                = "userdata"
)

// MaxLong is the largest sequence or serial number a token may carry (2^53).
const MaxLong int64 = 9007199254740992

// Envelope is the signed outer layer of a token.
type Envelope struct {
	TokenData []byte
	Signature []byte
}

// CryptoContext verifies token signatures and decrypts token payloads. It
// must be safe for concurrent use.
type CryptoContext interface {
	// Verify reports whether signature is valid for data. An error means
	// the signature could not be checked at all.
	Verify(data, signature []byte) (bool, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

func decodeEnvelope(token TokenKind, wire Tree) (Envelope, error) {
	tokenData, err := fieldBytes(token, wire, KeyTokenData)
	if err != nil {
		return Envelope{}, err
	}
	if len(tokenData) == 0 {
		return Envelope{}, newError(token, CodeTokenDataMissing, KeyTokenData)
	}

	signature, err := fieldBytes(token, wire, KeySignature)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{TokenData: tokenData, Signature: signature}, nil
}

// fieldBytes decodes a base64 text field, or copies a binary one.
func fieldBytes(token TokenKind, tree Tree, key string) ([]byte, error) {
	v, ok := tree[key]
	if !ok {
		return nil, newError(token, CodeMissingField, key).wrap(errFieldAbsent)
	}

	switch v := v.(type) {
	case string:
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, newError(token, CodeInvalidBase64, key).wrap(err)
		}
		return b, nil
	case []byte:
		return append([]byte(nil), v...), nil
	default:
		return nil, newError(token, CodeMissingField, key).wrap(errNotAString)
	}
}

// verifySignature never fails: any error from the crypto context, including
// a panic, counts as an untrusted signature.
func verifySignature(crypto CryptoContext, env Envelope) (verified bool) {
	defer func() {
		if recover() != nil {
			verified = false
		}
	}()

	ok, err := crypto.Verify(env.TokenData, env.Signature)
	if err != nil {
		return false
	}
	return ok
}

func rawText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return base64.StdEncoding.EncodeToString(data)
}
