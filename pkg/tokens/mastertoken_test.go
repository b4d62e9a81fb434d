package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMasterToken_VerifiedDecryptsSessionData(t *testing.T) {
	crypto := &fakeCrypto{verified: true}
	dec := NewDecoder(crypto)

	mt, err := dec.ParseMasterToken(wrap(t, masterTokenData(100, 200, 1, 42)))
	require.NoError(t, err)

	assert.True(t, mt.Verified)
	assert.True(t, mt.IsDecrypted())
	assert.Equal(t, 1, crypto.decrypts)
	assert.Equal(t, int64(100), mt.RenewalWindow)
	assert.Equal(t, int64(200), mt.Expiration)
	assert.Equal(t, int64(1), mt.SequenceNumber)
	assert.Equal(t, int64(42), mt.SerialNumber)
	assert.JSONEq(t,
		`{"renewalwindow":100,"expiration":200,"sequencenumber":1,"serialnumber":42,"sessiondata":{"x":1}}`,
		encodeJSON(t, mt.Tree()))
}

func TestParseMasterToken_UnverifiedOmitsSessionData(t *testing.T) {
	tests := []struct {
		name   string
		crypto *fakeCrypto
	}{
		{name: "signature mismatch", crypto: &fakeCrypto{verified: false}},
		{name: "verifier error", crypto: &fakeCrypto{verified: true, verifyErr: errBadKey}},
		{name: "verifier panic", crypto: &fakeCrypto{verifyPanic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, err := NewDecoder(tt.crypto).ParseMasterToken(wrap(t, masterTokenData(100, 200, 1, 42)))
			require.NoError(t, err)

			assert.False(t, mt.Verified)
			assert.False(t, mt.IsDecrypted())
			assert.Zero(t, tt.crypto.decrypts)

			tree := mt.Tree()
			assert.NotContains(t, tree, KeySessionData)
			assert.JSONEq(t,
				`{"renewalwindow":100,"expiration":200,"sequencenumber":1,"serialnumber":42}`,
				encodeJSON(t, tree))
		})
	}
}

func TestParseMasterToken_ExpiresBeforeRenewal(t *testing.T) {
	for _, verified := range []bool{true, false} {
		crypto := &fakeCrypto{verified: verified}
		// The ordering check wins over the out-of-range serial number.
		_, err := NewDecoder(crypto).ParseMasterToken(wrap(t, masterTokenData(100, 50, 1, -1)))

		assert.ErrorIs(t, err, ErrExpiresBeforeRenewal)
		kind, ok := KindOf(err)
		assert.True(t, ok)
		assert.Equal(t, KindValidation, kind)
		assert.Zero(t, crypto.decrypts)
	}
}

func TestParseMasterToken_EqualRenewalAndExpiration(t *testing.T) {
	_, err := NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, masterTokenData(100, 100, 0, 0)))
	assert.NoError(t, err)
}

func TestParseMasterToken_Ranges(t *testing.T) {
	tests := []struct {
		name      string
		sequence  int64
		serial    int64
		wantField string
	}{
		{name: "negative serial", sequence: 1, serial: -1, wantField: KeySerialNumber},
		{name: "serial above max", sequence: 1, serial: MaxLong + 1, wantField: KeySerialNumber},
		{name: "negative sequence", sequence: -1, serial: 1, wantField: KeySequenceNumber},
		{name: "sequence above max", sequence: MaxLong + 1, serial: 1, wantField: KeySequenceNumber},
		{name: "sequence reported before serial", sequence: -1, serial: -1, wantField: KeySequenceNumber},
		{name: "bounds accepted", sequence: MaxLong, serial: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(&fakeCrypto{verified: true}).
				ParseMasterToken(wrap(t, masterTokenData(100, 200, tt.sequence, tt.serial)))

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, OutOfRange(tt.wantField))
			assert.ErrorIs(t, err, ErrOutOfRange)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, TokenMasterToken, e.Token)
			assert.Equal(t, tt.wantField, e.Field)
		})
	}
}

func TestParseMasterToken_Envelope(t *testing.T) {
	tests := []struct {
		name      string
		wire      Tree
		wantErr   error
		wantField string
	}{
		{
			name:      "missing tokendata",
			wire:      Tree{KeySignature: b64("sig")},
			wantErr:   ErrMissingField,
			wantField: KeyTokenData,
		},
		{
			name:      "missing signature",
			wire:      Tree{KeyTokenData: b64(`{}`)},
			wantErr:   ErrMissingField,
			wantField: KeySignature,
		},
		{
			name:      "tokendata not a string",
			wire:      Tree{KeyTokenData: 12, KeySignature: b64("sig")},
			wantErr:   ErrMissingField,
			wantField: KeyTokenData,
		},
		{
			name:      "tokendata not base64",
			wire:      Tree{KeyTokenData: "%%%", KeySignature: b64("sig")},
			wantErr:   ErrInvalidBase64,
			wantField: KeyTokenData,
		},
		{
			name:      "signature not base64",
			wire:      Tree{KeyTokenData: b64(`{}`), KeySignature: "not base64!"},
			wantErr:   ErrInvalidBase64,
			wantField: KeySignature,
		},
		{
			name:      "empty tokendata",
			wire:      Tree{KeyTokenData: "", KeySignature: b64("sig")},
			wantErr:   ErrTokenDataMissing,
			wantField: KeyTokenData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(tt.wire)
			assert.ErrorIs(t, err, tt.wantErr)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantField, e.Field)
			assert.Equal(t, KindEncoding, e.Kind)
		})
	}
}

func TestParseMasterToken_TokenData(t *testing.T) {
	withoutSessionData := masterTokenData(100, 200, 1, 1)
	delete(withoutSessionData, KeySessionData)

	withoutSerial := masterTokenData(100, 200, 1, 1)
	delete(withoutSerial, KeySerialNumber)

	tests := []struct {
		name      string
		wire      Tree
		wantField string
	}{
		{
			name:      "not a tree",
			wire:      Tree{KeyTokenData: b64("renewalwindow=100,expiration=50"), KeySignature: b64("sig")},
			wantField: KeyTokenData,
		},
		{
			name:      "missing serial number",
			wire:      wrap(t, withoutSerial),
			wantField: KeySerialNumber,
		},
		{
			name:      "missing session data",
			wire:      wrap(t, withoutSessionData),
			wantField: KeySessionData,
		},
		{
			name:      "expiration overflows int64",
			wire:      wrap(t, masterTokenData(100, "99999999999999999999", 1, 1)),
			wantField: KeyExpiration,
		},
		{
			name:      "fractional renewal window",
			wire:      wrap(t, masterTokenData(1.5, 200, 1, 1)),
			wantField: KeyRenewalWindow,
		},
		{
			name:      "non-numeric sequence number",
			wire:      wrap(t, masterTokenData(100, 200, true, 1)),
			wantField: KeySequenceNumber,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(tt.wire)
			assert.ErrorIs(t, err, ErrTokenDataParse)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantField, e.Field)
			assert.NotEmpty(t, e.Raw)
		})
	}
}

func TestParseMasterToken_NumericStrings(t *testing.T) {
	mt, err := NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, masterTokenData("100", "200", "3", "4")))
	require.NoError(t, err)
	assert.Equal(t, int64(3), mt.SequenceNumber)
	assert.Equal(t, int64(4), mt.SerialNumber)
}

func TestParseMasterToken_Payload(t *testing.T) {
	t.Run("decrypt failure", func(t *testing.T) {
		crypto := &fakeCrypto{verified: true, decryptErr: errBadKey}
		mt, err := NewDecoder(crypto).ParseMasterToken(wrap(t, masterTokenData(100, 200, 1, 1)))

		assert.Nil(t, mt)
		assert.ErrorIs(t, err, ErrDecryptFailed)
		assert.ErrorIs(t, err, errBadKey)
		kind, _ := KindOf(err)
		assert.Equal(t, KindCrypto, kind)
	})

	t.Run("empty ciphertext", func(t *testing.T) {
		data := masterTokenData(100, 200, 1, 1)
		data[KeySessionData] = ""
		_, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(wrap(t, data))
		assert.ErrorIs(t, err, ErrCiphertextMissing)
	})

	t.Run("empty ciphertext is not decrypted when unverified", func(t *testing.T) {
		data := masterTokenData(100, 200, 1, 1)
		data[KeySessionData] = ""
		mt, err := NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, data))
		require.NoError(t, err)
		assert.NotContains(t, mt.Tree(), KeySessionData)
	})

	t.Run("ciphertext not base64", func(t *testing.T) {
		data := masterTokenData(100, 200, 1, 1)
		data[KeySessionData] = "***"
		_, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(wrap(t, data))
		assert.ErrorIs(t, err, ErrInvalidBase64)
	})

	t.Run("plaintext not a tree", func(t *testing.T) {
		data := masterTokenData(100, 200, 1, 1)
		data[KeySessionData] = b64(`{"encryptionkey":"secret"`)
		_, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(wrap(t, data))
		assert.ErrorIs(t, err, ErrPayloadParse)

		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Empty(t, e.Raw)
		assert.NotContains(t, e.Error(), "secret")
	})
}

func TestParseMasterToken_ExtraCleartextFieldsKept(t *testing.T) {
	data := masterTokenData(100, 200, 1, 1)
	data["issuer"] = "netflix"

	mt, err := NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, data))
	require.NoError(t, err)
	assert.Equal(t, "netflix", mt.Tree()["issuer"])
}

func TestParseMasterToken_NoInternalSizeLimit(t *testing.T) {
	// Input bounding is the caller's job: a large token decodes as long as
	// it is well formed.
	data := masterTokenData(100, 200, 1, 1)
	data["padding"] = strings.Repeat("a", 4<<20)

	mt, err := NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, data))
	require.NoError(t, err)
	assert.Len(t, mt.Tree()["padding"], 4<<20)
}

func TestMasterTokenTreeIsACopy(t *testing.T) {
	mt, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(wrap(t, masterTokenData(100, 200, 1, 1)))
	require.NoError(t, err)

	tree := mt.Tree()
	tree[KeySerialNumber] = "tampered"
	session, ok := tree.Object(KeySessionData)
	require.True(t, ok)
	session["x"] = "tampered"

	fresh := mt.Tree()
	assert.NotEqual(t, "tampered", fresh[KeySerialNumber])
	freshSession, _ := fresh.Object(KeySessionData)
	assert.NotEqual(t, "tampered", freshSession["x"])
}

func TestDecodeMasterToken(t *testing.T) {
	dec := NewDecoder(&fakeCrypto{verified: true})

	raw := encodeJSON(t, wrap(t, masterTokenData(100, 200, 1, 7)))
	mt, err := dec.DecodeMasterToken([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int64(7), mt.SerialNumber)

	out, err := mt.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, encodeJSON(t, mt.Tree()), string(out))

	_, err = dec.DecodeMasterToken([]byte(`{"tokendata":`))
	assert.ErrorIs(t, err, ErrEnvelopeParse)

	_, err = dec.DecodeMasterToken([]byte(`null`))
	assert.ErrorIs(t, err, ErrEnvelopeParse)

	_, err = dec.DecodeMasterToken([]byte(`{} {}`))
	assert.ErrorIs(t, err, ErrEnvelopeParse)
}

func TestMasterTokenTimes(t *testing.T) {
	mt := &MasterToken{RenewalWindow: 100, Expiration: 200}

	assert.False(t, mt.IsRenewable(time.Unix(99, 0)))
	assert.True(t, mt.IsRenewable(time.Unix(100, 0)))
	assert.False(t, mt.IsExpired(time.Unix(199, 0)))
	assert.True(t, mt.IsExpired(time.Unix(200, 0)))
}

func TestMasterTokenIsNewerThan(t *testing.T) {
	tests := []struct {
		name       string
		this, that MasterToken
		want       bool
	}{
		{
			name: "higher sequence number",
			this: MasterToken{SequenceNumber: 2},
			that: MasterToken{SequenceNumber: 1},
			want: true,
		},
		{
			name: "lower sequence number",
			this: MasterToken{SequenceNumber: 1},
			that: MasterToken{SequenceNumber: 2},
			want: false,
		},
		{
			name: "equal sequence, later expiration",
			this: MasterToken{SequenceNumber: 5, Expiration: 300},
			that: MasterToken{SequenceNumber: 5, Expiration: 200},
			want: true,
		},
		{
			name: "equal sequence, same expiration",
			this: MasterToken{SequenceNumber: 5, Expiration: 200},
			that: MasterToken{SequenceNumber: 5, Expiration: 200},
			want: false,
		},
		{
			name: "wrapped around",
			this: MasterToken{SequenceNumber: 0},
			that: MasterToken{SequenceNumber: MaxLong},
			want: true,
		},
		{
			name: "wrapped around, reversed",
			this: MasterToken{SequenceNumber: MaxLong},
			that: MasterToken{SequenceNumber: 0},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.this.IsNewerThan(&tt.that))
		})
	}
}

func TestMasterTokenIdentity(t *testing.T) {
	data := masterTokenData(100, 200, 1, 1)
	data[KeySessionData] = b64(`{"identity":"device-1"}`)

	mt, err := NewDecoder(&fakeCrypto{verified: true}).ParseMasterToken(wrap(t, data))
	require.NoError(t, err)
	assert.Equal(t, "device-1", mt.Identity())

	mt, err = NewDecoder(&fakeCrypto{}).ParseMasterToken(wrap(t, data))
	require.NoError(t, err)
	assert.Empty(t, mt.Identity())
}
