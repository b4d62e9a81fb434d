package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/config"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/db"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// addInspectorFlags registers the flags that override configuration for
// commands that decode tokens.
func addInspectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("key-id", "", "entity whose keys decode the tokens (overrides key_id)")
	cmd.Flags().String("keys-file", "", "YAML keys file (overrides keys_file)")
	cmd.Flags().String("format", "", "message encoding, json or cbor (overrides format)")
	cmd.Flags().Bool("require-verified", false, "fail on tokens whose signature does not verify")
}

func loadConfig(cmd *cobra.Command) (*config.WiretapConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("key-id"); flags.Changed("key-id") {
		cfg.KeyID = v
	}
	if v, _ := flags.GetString("keys-file"); flags.Changed("keys-file") {
		cfg.KeysFile = v
	}
	if v, _ := flags.GetString("format"); flags.Changed("format") {
		cfg.Format = v
	}
	if v, _ := flags.GetBool("require-verified"); flags.Changed("require-verified") {
		cfg.RequireVerified = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	audit.SetEnabled(cfg.AuditEnabled)
	return cfg, nil
}

// openKeySource uses the keys file when one is configured and the
// database keystore otherwise.
func openKeySource(cfg *config.WiretapConfig) (store.Source, error) {
	if cfg.KeysFile != "" {
		keys, err := store.LoadFileKeyStore(cfg.KeysFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load keys file: %w", err)
		}
		return keys, nil
	}

	dataKey, err := config.DataKey()
	if err != nil {
		return nil, err
	}
	keystore, err := db.OpenKeyStore(db.Config{}, dataKey)
	if err != nil {
		return nil, err
	}
	return keystore, nil
}

func loadInspector(cmd *cobra.Command) (*wiretap.Inspector, *config.WiretapConfig, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	source, err := openKeySource(cfg)
	if err != nil {
		return nil, nil, err
	}

	inspector, err := wiretap.FromConfig(cfg, source)
	if err != nil {
		return nil, nil, err
	}
	return inspector, cfg, nil
}
