package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wiretapctl",
	Short: "Decode and inspect captured MSL tokens",
	Long: `Decode, verify and inspect the master tokens and user ID tokens of
captured MSL messages, and manage the keys used to decode them.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
