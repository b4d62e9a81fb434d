package integration

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/tokens/tokentest"
)

func skipUnlessIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration tests. Set INTEGRATION_TEST=1 to run.")
	}
}

func TestFeatures(t *testing.T) {
	skipUnlessIntegration(t)
	audit.SetEnabled(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tc, err := NewTestContext(ctx)
	if err != nil {
		t.Fatalf("Failed to create test context: %v", err)
	}
	defer tc.Close(ctx)

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			steps := NewStepsContext(tc)
			steps.RegisterSteps(sc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("Non-zero status returned, failed to run feature tests")
	}
}

func TestKeyStorePostgres(t *testing.T) {
	skipUnlessIntegration(t)
	audit.SetEnabled(false)

	ctx := context.Background()
	tc, err := NewTestContext(ctx)
	require.NoError(t, err)
	defer tc.Close(ctx)

	keys, err := tc.KeyStore.List()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, RSAEntity, keys[1].ID)
	assert.Equal(t, string(slosilo.KindRSA), keys[1].Kind)
	assert.Equal(t, SessionEntity, keys[0].ID)
	assert.Equal(t, string(slosilo.KindSession), keys[0].Kind)

	// The stored row never holds the key material in the clear.
	var stored store.StoredKey
	require.NoError(t, tc.DB.Where("id = ?", SessionEntity).First(&stored).Error)
	derived, err := slosilo.DeriveSessionKeys([]byte(sessionPSK), SessionEntity)
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Key), string(derived.Encryption))

	// A second keystore over the same table decodes tokens issued with the
	// derived keys.
	reopened, err := store.NewKeyStore(tc.DB, tc.DataKey)
	require.NoError(t, err)
	cryptoCtx, err := reopened.CryptoContext(SessionEntity)
	require.NoError(t, err)
	assert.Equal(t, derived.Fingerprint(), cryptoCtx.Fingerprint())

	issuer, err := slosilo.NewCryptoContext(SessionEntity, derived)
	require.NoError(t, err)
	data, err := tokentest.MasterToken(issuer).Payload(tokens.Tree{"x": 1}).Bytes()
	require.NoError(t, err)

	mt, err := tokens.NewDecoder(cryptoCtx).DecodeMasterToken(data)
	require.NoError(t, err)
	assert.True(t, mt.Verified)
	assert.True(t, mt.IsDecrypted())

	// Deleting a key removes it and a wrong data key cannot read the rest.
	require.NoError(t, reopened.Delete(SessionEntity))
	_, err = reopened.CryptoContext(SessionEntity)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	assert.ErrorIs(t, reopened.Delete(SessionEntity), store.ErrKeyNotFound)

	wrongKey := make([]byte, slosilo.KeySize)
	other, err := store.NewKeyStore(tc.DB, wrongKey)
	require.NoError(t, err)
	_, err = other.CryptoContext(RSAEntity)
	assert.Error(t, err)
}
