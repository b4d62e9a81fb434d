package wiretap

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens/tokentest"
)

func newContext(t *testing.T, id string) *slosilo.CryptoContext {
	t.Helper()
	keys, err := slosilo.GenerateSessionKeys()
	require.NoError(t, err)
	ctx, err := slosilo.NewCryptoContext(id, keys)
	require.NoError(t, err)
	return ctx
}

// captureAudit redirects the default audit logger for the test.
func captureAudit(t *testing.T) *bytes.Buffer {
	t.Helper()
	t.Setenv("AUDIT_DATABASE_URL", "")
	audit.SetEnabled(true)
	buf := &bytes.Buffer{}
	audit.DefaultLogger.SetWriter(buf)
	t.Cleanup(func() { audit.DefaultLogger.SetWriter(os.Stdout) })
	return buf
}

func wire(t *testing.T, b *tokentest.Builder) tokens.Tree {
	t.Helper()
	w, err := b.Wire()
	require.NoError(t, err)
	return w
}

func encode(t *testing.T, tree tokens.Tree) []byte {
	t.Helper()
	data, err := tokens.JSONCodec{}.Encode(tree)
	require.NoError(t, err)
	return data
}

func TestInspectHeader(t *testing.T) {
	buf := captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{KeyID: "device-1"})

	header := tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).
			Set(tokens.KeySerialNumber, 7).
			Payload(tokens.Tree{"identity": "device-1"})),
		KeyHeaderData: tokens.Tree{
			"messageid": 42,
			KeyUserIDToken: wire(t, tokentest.UserIDToken(ctx).
				Set(tokens.KeyMasterTokenSerialNumber, 7).
				Payload(tokens.Tree{"identity": "alice"})),
		},
	}

	report, err := inspector.Inspect(encode(t, header), Origin{Source: "capture.json"})
	require.NoError(t, err)

	assert.False(t, report.ErrorHeader)
	assert.NotEmpty(t, report.RequestID)
	assert.Equal(t, 2, report.Tokens())
	require.NotNil(t, report.MasterToken)
	assert.True(t, report.MasterToken.Verified)
	assert.Equal(t, int64(7), report.MasterToken.SerialNumber)
	require.NotNil(t, report.UserIDToken)
	assert.Equal(t, "alice", report.UserIDToken.Identity())
	assert.Same(t, report.MasterToken, report.UserIDToken.MasterToken)

	mt, ok := report.Header.Object(KeyMasterToken)
	require.True(t, ok)
	assert.Equal(t, tokens.Tree{"identity": "device-1"}, mt[tokens.KeySessionData])
	assert.False(t, mt.Has(tokens.KeyTokenData))

	hd, ok := report.Header.Object(KeyHeaderData)
	require.True(t, ok)
	assert.Equal(t, json.Number("42"), hd["messageid"])
	uit, ok := hd.Object(KeyUserIDToken)
	require.True(t, ok)
	assert.Equal(t, tokens.Tree{"identity": "alice"}, uit[tokens.KeyUserData])

	log := buf.String()
	assert.Equal(t, 2, strings.Count(log, " token-decode "))
	assert.Contains(t, log, " inspect ")
	assert.Contains(t, log, `source="capture.json"`)
	assert.Contains(t, log, `tokens="2"`)
}

func TestInspectHeaderDoesNotModifyInput(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	mtWire := wire(t, tokentest.MasterToken(ctx))
	header := tokens.Tree{KeyMasterToken: mtWire}

	_, err := inspector.InspectHeader(header, Origin{})
	require.NoError(t, err)
	assert.Equal(t, mtWire, header[KeyMasterToken])
}

func TestInspectKeyResponseMasterTokenBindsUserIDToken(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	header := tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).Set(tokens.KeySerialNumber, 1)),
		KeyHeaderData: tokens.Tree{
			KeyKeyResponseData: tokens.Tree{
				"scheme":       "SYMMETRIC_WRAPPED",
				KeyMasterToken: wire(t, tokentest.MasterToken(ctx).Set(tokens.KeySerialNumber, 2)),
			},
			KeyUserIDToken: wire(t, tokentest.UserIDToken(ctx).Set(tokens.KeyMasterTokenSerialNumber, 2)),
		},
	}

	report, err := inspector.InspectHeader(header, Origin{})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Tokens())
	assert.Same(t, report.KeyResponseMasterToken, report.UserIDToken.MasterToken)

	hd, _ := report.Header.Object(KeyHeaderData)
	kr, ok := hd.Object(KeyKeyResponseData)
	require.True(t, ok)
	assert.Equal(t, "SYMMETRIC_WRAPPED", kr["scheme"])
	krmt, ok := kr.Object(KeyMasterToken)
	require.True(t, ok)
	assert.Equal(t, json.Number("2"), krmt[tokens.KeySerialNumber])
}

func TestInspectUserIDTokenAgainstHeaderMasterTokenMismatch(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	header := tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).Set(tokens.KeySerialNumber, 1)),
		KeyHeaderData: tokens.Tree{
			KeyUserIDToken: wire(t, tokentest.UserIDToken(ctx).Set(tokens.KeyMasterTokenSerialNumber, 9)),
		},
	}

	_, err := inspector.InspectHeader(header, Origin{})
	assert.ErrorIs(t, err, tokens.ErrSerialMismatch)
	assert.Equal(t, "mastertoken_serial_mismatch", ErrorCode(err))
}

func TestInspectUserIDTokenWithoutMasterToken(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	header := tokens.Tree{
		KeyHeaderData: tokens.Tree{
			KeyUserIDToken: wire(t, tokentest.UserIDToken(ctx)),
		},
	}

	_, err := inspector.InspectHeader(header, Origin{})
	assert.ErrorIs(t, err, tokens.ErrSerialMismatch)
}

func TestInspectErrorHeader(t *testing.T) {
	buf := captureAudit(t)
	inspector := NewInspector(newContext(t, "device-1"), Options{})

	errorData := tokens.Tree{"errorcode": json.Number("5"), "errormsg": "entity re-authenticate"}
	report, err := inspector.InspectHeader(tokens.Tree{
		KeyErrorData:   errorData,
		KeyMasterToken: "ignored",
	}, Origin{Source: "http"})
	require.NoError(t, err)

	assert.True(t, report.ErrorHeader)
	assert.Equal(t, 0, report.Tokens())
	assert.Equal(t, errorData, report.Header[KeyErrorData])
	assert.Equal(t, "ignored", report.Header[KeyMasterToken])
	assert.Contains(t, buf.String(), "inspected error message from http")
}

func TestInspectMalformedHeader(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	tests := []struct {
		name   string
		header tokens.Tree
	}{
		{"master token string", tokens.Tree{KeyMasterToken: "abc"}},
		{"user ID token list", tokens.Tree{KeyHeaderData: tokens.Tree{KeyUserIDToken: []any{}}}},
		{"key response master token number", tokens.Tree{KeyHeaderData: tokens.Tree{
			KeyKeyResponseData: tokens.Tree{KeyMasterToken: 1},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inspector.InspectHeader(tt.header, Origin{})
			assert.ErrorIs(t, err, ErrMalformedHeader)
			assert.Equal(t, "malformed_header", ErrorCode(err))
		})
	}

	_, err := inspector.Inspect([]byte(`[1, 2]`), Origin{})
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestInspectHeaderDataNotAnObject(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	report, err := inspector.InspectHeader(tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx)),
		KeyHeaderData:  "c2VhbGVk",
	}, Origin{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tokens())
	assert.Equal(t, "c2VhbGVk", report.Header[KeyHeaderData])
}

func TestInspectTooLarge(t *testing.T) {
	buf := captureAudit(t)
	inspector := NewInspector(newContext(t, "device-1"), Options{MaxMessageSize: 8})

	_, err := inspector.Inspect([]byte(`{"headerdata": {}}`), Origin{Source: "stdin"})
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Equal(t, "too_large", ErrorCode(err))
	assert.Contains(t, buf.String(), "failed to inspect message from stdin")
}

func TestInspectRequireVerified(t *testing.T) {
	captureAudit(t)
	issuer := newContext(t, "device-1")
	other := newContext(t, "device-1")

	header := tokens.Tree{KeyMasterToken: wire(t, tokentest.MasterToken(issuer))}

	report, err := NewInspector(other, Options{}).InspectHeader(header, Origin{})
	require.NoError(t, err)
	assert.False(t, report.MasterToken.Verified)
	assert.False(t, report.MasterToken.IsDecrypted())

	_, err = NewInspector(other, Options{RequireVerified: true}).InspectHeader(header, Origin{})
	assert.ErrorIs(t, err, ErrUntrusted)
	assert.Equal(t, "untrusted", ErrorCode(err))

	_, err = NewInspector(issuer, Options{RequireVerified: true}).InspectHeader(header, Origin{})
	assert.NoError(t, err)
}

func TestInspectorMasterToken(t *testing.T) {
	buf := captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{KeyID: "device-1"})

	data, err := tokentest.MasterToken(ctx).Set(tokens.KeySequenceNumber, 12).Bytes()
	require.NoError(t, err)

	mt, err := inspector.MasterToken(data, Origin{RequestID: "req-1", ClientIP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(12), mt.SequenceNumber)

	log := buf.String()
	assert.Contains(t, log, `request="req-1"`)
	assert.Contains(t, log, `ip="10.0.0.1"`)
	assert.Contains(t, log, "decoded verified mastertoken 1 with key device-1")

	buf.Reset()
	data, err = tokentest.MasterToken(ctx).Set(tokens.KeyExpiration, 50).Bytes()
	require.NoError(t, err)
	_, err = inspector.MasterToken(data, Origin{})
	assert.ErrorIs(t, err, tokens.ErrExpiresBeforeRenewal)
	assert.Contains(t, buf.String(), "failed to decode mastertoken with key device-1")

	_, err = inspector.MasterToken([]byte("nope"), Origin{})
	assert.ErrorIs(t, err, tokens.ErrEnvelopeParse)
}

func TestInspectorUserIDToken(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	pair := tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).Set(tokens.KeySerialNumber, 3)),
		KeyUserIDToken: wire(t, tokentest.UserIDToken(ctx).
			Set(tokens.KeyMasterTokenSerialNumber, 3).
			Payload(tokens.Tree{"identity": "bob"})),
	}

	uit, err := inspector.UserIDToken(encode(t, pair), Origin{})
	require.NoError(t, err)
	assert.Equal(t, "bob", uit.Identity())
	assert.True(t, uit.IsBoundTo(uit.MasterToken))

	_, err = inspector.UserIDToken(encode(t, tokens.Tree{KeyUserIDToken: pair[KeyUserIDToken]}), Origin{})
	assert.ErrorIs(t, err, ErrMalformedHeader)

	_, err = inspector.UserIDToken(encode(t, tokens.Tree{KeyMasterToken: pair[KeyMasterToken]}), Origin{})
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestInspectCBOR(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{Codec: tokens.CBORCodec{}})

	header := tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).Codec(tokens.CBORCodec{})),
	}
	data, err := tokens.CBORCodec{}.Encode(header)
	require.NoError(t, err)

	report, err := inspector.Inspect(data, Origin{})
	require.NoError(t, err)
	assert.True(t, report.MasterToken.Verified)
}

func TestFromConfig(t *testing.T) {
	source, err := store.ParseFileKeyStore([]byte(`
keys:
  device-1:
    psk: c2VjcmV0
`))
	require.NoError(t, err)

	cfg := &config.WiretapConfig{Format: "cbor", MaxMessageSize: 64, KeyID: "device-1", RequireVerified: true}
	inspector, err := FromConfig(cfg, source)
	require.NoError(t, err)
	assert.Equal(t, "cbor", inspector.Codec().Name())
	assert.Equal(t, Options{KeyID: "device-1", RequireVerified: true, MaxMessageSize: 64, Codec: tokens.CBORCodec{}}, inspector.opts)

	cfg.KeyID = "device-2"
	_, err = FromConfig(cfg, source)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	cfg.KeyID = ""
	_, err = FromConfig(cfg, source)
	assert.Error(t, err)

	cfg.KeyID, cfg.Format = "device-1", "xml"
	_, err = FromConfig(cfg, source)
	assert.Error(t, err)
}

func TestErrorCodeUnknown(t *testing.T) {
	assert.Equal(t, "", ErrorCode(errors.New("boom")))
}

func TestReportWriteText(t *testing.T) {
	captureAudit(t)
	ctx := newContext(t, "device-1")
	inspector := NewInspector(ctx, Options{})

	report, err := inspector.InspectHeader(tokens.Tree{
		KeyMasterToken: wire(t, tokentest.MasterToken(ctx).
			Set(tokens.KeySerialNumber, 5).
			Payload(tokens.Tree{"identity": "device-1"})),
	}, Origin{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, report.WriteText(&out, time.Unix(300, 0)))
	text := out.String()
	assert.Contains(t, text, "master token 5 (verified)")
	assert.Contains(t, text, "expiration     1970-01-01T00:03:20Z (expired)")
	assert.Contains(t, text, "identity       device-1")

	body, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"sessiondata":{"identity":"device-1"}`)
}

func TestReportWriteTextErrorHeader(t *testing.T) {
	report := &Report{
		ErrorHeader: true,
		Header:      tokens.Tree{KeyErrorData: tokens.Tree{"errorcode": 5, "errormsg": "expired"}},
	}

	var out bytes.Buffer
	require.NoError(t, report.WriteText(&out, time.Now()))
	assert.Equal(t, "error header\n  errorcode      5\n  errormsg       expired\n", out.String())
}
