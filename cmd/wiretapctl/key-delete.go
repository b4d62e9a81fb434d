package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/audit"
)

// keyDeleteCmd represents the key > delete command
var keyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entity's keys from the keystore",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := deleteKey(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to delete key: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	keyCmd.AddCommand(keyDeleteCmd)
}

func deleteKey(id string) error {
	keystore, err := openKeyStore()
	if err != nil {
		return err
	}

	err = keystore.Delete(id)
	event := audit.KeyEvent{KeyID: id, Operation: "delete", Success: err == nil}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	audit.Log(event)
	if err != nil {
		return err
	}

	fmt.Printf("Deleted key %s\n", id)
	return nil
}
