package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/db"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
)

// keyCmd represents the key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage entity keys in the database keystore",
	Long: `Manage the keys that decode tokens. Keys are stored encrypted with
WIRETAP_DATA_KEY in the database at DATABASE_URL.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'key' requires a subcommand (generate, derive, list, delete)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
}

func openKeyStore() (*store.KeyStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	audit.SetEnabled(cfg.AuditEnabled)

	dataKey, err := config.DataKey()
	if err != nil {
		return nil, err
	}
	return db.OpenKeyStore(db.Config{}, dataKey)
}

// storeKey saves the material under id and records the change.
func storeKey(keystore *store.KeyStore, id, operation string, m slosilo.KeyMaterial) error {
	err := keystore.Put(id, m)

	event := audit.KeyEvent{KeyID: id, Operation: operation, Success: err == nil}
	if err != nil {
		event.ErrorMessage = err.Error()
	} else {
		event.Kind = string(m.Kind())
		event.Fingerprint = m.Fingerprint()
	}
	audit.Log(event)

	return err
}
