package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo"
)

// keyGenerateCmd represents the key > generate command
var keyGenerateCmd = &cobra.Command{
	Use:   "generate <id>",
	Short: "Generate random keys for an entity",
	Long: `Generate random keys for an entity and store them.

Session keys sign with HMAC-SHA256; rsa keys sign with a 2048 bit RSA key.
Both encrypt with AES-256-GCM.

Example:
  wiretapctl key generate device-1
  wiretapctl key generate --kind rsa issuer-1`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kind, _ := cmd.Flags().GetString("kind")

		if err := generateKey(args[0], slosilo.KeyKind(kind)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate key: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	keyCmd.AddCommand(keyGenerateCmd)
	keyGenerateCmd.Flags().String("kind", string(slosilo.KindSession), "Key kind (session or rsa)")
}

func generateKey(id string, kind slosilo.KeyKind) error {
	var (
		m   slosilo.KeyMaterial
		err error
	)
	switch kind {
	case slosilo.KindSession:
		m, err = slosilo.GenerateSessionKeys()
	case slosilo.KindRSA:
		m, err = slosilo.GenerateRSAKeys()
	default:
		return fmt.Errorf("%w: %s", slosilo.ErrUnknownKeyKind, kind)
	}
	if err != nil {
		return err
	}

	keystore, err := openKeyStore()
	if err != nil {
		return err
	}
	if err := storeKey(keystore, id, "generate", m); err != nil {
		return err
	}

	fmt.Printf("Generated %s key %s (%s)\n", kind, id, m.Fingerprint())
	return nil
}
