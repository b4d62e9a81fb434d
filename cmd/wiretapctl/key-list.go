package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// keyListCmd represents the key > list command
var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the entities in the keystore",
	Run: func(cmd *cobra.Command, args []string) {
		if err := listKeys(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list keys: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	keyCmd.AddCommand(keyListCmd)
}

func listKeys() error {
	keystore, err := openKeyStore()
	if err != nil {
		return err
	}

	keys, err := keystore.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No keys stored")
		return nil
	}

	fmt.Printf("%-32s %-8s %s\n", "ID", "KIND", "FINGERPRINT")
	for _, k := range keys {
		fmt.Printf("%-32s %-8s %s\n", k.ID, k.Kind, k.Fingerprint)
	}
	return nil
}
