package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
)

// keyDeriveCmd represents the key > derive command
var keyDeriveCmd = &cobra.Command{
	Use:   "derive <id>",
	Short: "Derive an entity's session keys from a pre-shared key",
	Long: `Derive an entity's session keys from a pre-shared key and store them.

The Base64-encoded pre-shared key is read from WIRETAP_KEY_PSK so it never
appears on the command line.

Example:
  WIRETAP_KEY_PSK=c2VjcmV0 wiretapctl key derive device-1`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := deriveKey(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to derive key: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	keyCmd.AddCommand(keyDeriveCmd)
}

func deriveKey(id string) error {
	pskB64, ok := os.LookupEnv("WIRETAP_KEY_PSK")
	if !ok {
		return errors.New("WIRETAP_KEY_PSK environment variable is required")
	}
	psk, err := base64.StdEncoding.DecodeString(pskB64)
	if err != nil {
		return fmt.Errorf("failed to decode WIRETAP_KEY_PSK: %w", err)
	}

	m, err := slosilo.DeriveSessionKeys(psk, id)
	if err != nil {
		return err
	}

	keystore, err := openKeyStore()
	if err != nil {
		return err
	}
	if err := storeKey(keystore, id, "derive", m); err != nil {
		return err
	}

	fmt.Printf("Derived session key %s (%s)\n", id, m.Fingerprint())
	return nil
}
