package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens/tokentest"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

type testServer struct {
	*server.Server
	ctx *slosilo.CryptoContext
}

func newTestServer(t *testing.T, cfg *config.WiretapConfig) *testServer {
	t.Helper()
	audit.SetEnabled(false)
	t.Cleanup(func() { audit.SetEnabled(true) })

	keys, err := slosilo.GenerateSessionKeys()
	require.NoError(t, err)
	ctx, err := slosilo.NewCryptoContext("device-1", keys)
	require.NoError(t, err)

	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = config.DefaultMaxMessageSize
	}
	cfg.KeyID = "device-1"

	inspector := wiretap.NewInspector(ctx, wiretap.Options{
		KeyID:           cfg.KeyID,
		RequireVerified: cfg.RequireVerified,
		MaxMessageSize:  cfg.MaxMessageSize,
	})

	s := server.NewServer(inspector, cfg, "127.0.0.1", "0")
	RegisterAll(s)
	return &testServer{Server: s, ctx: ctx}
}

func (s *testServer) wire(t *testing.T, b *tokentest.Builder) tokens.Tree {
	t.Helper()
	w, err := b.Wire()
	require.NoError(t, err)
	return w
}

func (s *testServer) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorField(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := decodeResponse(t, w)
	e, ok := body["error"].(map[string]interface{})
	require.True(t, ok, "response has no error: %s", w.Body.String())
	return e
}
