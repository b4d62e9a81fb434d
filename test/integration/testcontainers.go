package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/msl-wiretap/db"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
)

// Entities seeded into the keystore of every test context.
const (
	SessionEntity = "device-1"
	RSAEntity     = "issuer-rsa"
	sessionPSK    = "integration pre-shared key"
)

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	DB          *gorm.DB
	RawDB       *sql.DB
	Container   testcontainers.Container
	DatabaseURL string
	DataKey     []byte
	KeyStore    *store.KeyStore
	HTTPClient  *http.Client
	InlineMode  bool
	BinaryPath  string
}

// NewTestContext creates a new test context with PostgreSQL testcontainer.
// Modes:
//   - Inline mode (default): servers run in-process
//   - Binary mode: Set WIRETAP_BINARY to the path of the wiretapctl binary
func NewTestContext(ctx context.Context) (*TestContext, error) {
	binaryPath := os.Getenv("WIRETAP_BINARY")
	if binaryPath != "" {
		if _, err := os.Stat(binaryPath); err != nil {
			return nil, fmt.Errorf("WIRETAP_BINARY path does not exist: %s", binaryPath)
		}
		log.Printf("Using binary: %s", binaryPath)
	} else {
		log.Println("Using inline server mode")
	}

	pgContainer, connStr, err := startPostgres(ctx)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rawDB, err := gdb.DB()
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get raw db: %w", err)
	}

	if err := runMigrations(rawDB); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	dataKey := make([]byte, slosilo.KeySize)
	for i := range dataKey {
		dataKey[i] = byte(i)
	}

	keystore, err := store.NewKeyStore(gdb, dataKey)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, err
	}
	if err := seedKeys(keystore); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to seed keys: %w", err)
	}

	return &TestContext{
		DB:          gdb,
		RawDB:       rawDB,
		Container:   pgContainer,
		DatabaseURL: connStr,
		DataKey:     dataKey,
		KeyStore:    keystore,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		InlineMode:  binaryPath == "",
		BinaryPath:  binaryPath,
	}, nil
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("wiretap_test"),
		tcpostgres.WithUsername("wiretap"),
		tcpostgres.WithPassword("wiretap"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get connection string: %w", err)
	}
	return pgContainer, connStr, nil
}

func seedKeys(keystore *store.KeyStore) error {
	session, err := slosilo.DeriveSessionKeys([]byte(sessionPSK), SessionEntity)
	if err != nil {
		return err
	}
	if err := keystore.Put(SessionEntity, session); err != nil {
		return err
	}

	rsaKeys, err := slosilo.GenerateRSAKeys()
	if err != nil {
		return err
	}
	return keystore.Put(RSAEntity, rsaKeys)
}

// waitForServer polls the server until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.RawDB != nil {
		_ = tc.RawDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// runMigrations applies the embedded migrations
func runMigrations(rawDB *sql.DB) error {
	migrations, err := fs.Sub(db.Migrations, "migrations")
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations, ".")
	if err != nil {
		return err
	}
	driver, err := migratepostgres.WithInstance(rawDB, &migratepostgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
