package tokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeCrypto treats ciphertext as plaintext so tests control the payload
// directly.
type fakeCrypto struct {
	verified    bool
	verifyErr   error
	verifyPanic bool
	decryptErr  error
	decrypts    int
}

func (f *fakeCrypto) Verify(data, signature []byte) (bool, error) {
	if f.verifyPanic {
		panic("verifier blew up")
	}
	return f.verified, f.verifyErr
}

func (f *fakeCrypto) Decrypt(ciphertext []byte) ([]byte, error) {
	f.decrypts++
	if f.decryptErr != nil {
		return nil, f.decryptErr
	}
	return ciphertext, nil
}

var errBadKey = errors.New("bad key")

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func masterTokenData(renewal, expiration, sequence, serial any) Tree {
	return Tree{
		KeyRenewalWindow:  renewal,
		KeyExpiration:     expiration,
		KeySequenceNumber: sequence,
		KeySerialNumber:   serial,
		KeySessionData:    b64(`{"x":1}`),
	}
}

func userIDTokenData(renewal, expiration, mtSerial, serial any) Tree {
	return Tree{
		KeyRenewalWindow:           renewal,
		KeyExpiration:              expiration,
		KeyMasterTokenSerialNumber: mtSerial,
		KeySerialNumber:            serial,
		KeyUserData:                b64(`{"identity":"alice"}`),
	}
}

func wrap(t *testing.T, tokenData Tree) Tree {
	t.Helper()
	raw, err := json.Marshal(tokenData)
	require.NoError(t, err)
	return Tree{
		KeyTokenData: base64.StdEncoding.EncodeToString(raw),
		KeySignature: b64("signature"),
	}
}

func encodeJSON(t *testing.T, tree Tree) string {
	t.Helper()
	raw, err := json.Marshal(tree)
	require.NoError(t, err)
	return string(raw)
}
