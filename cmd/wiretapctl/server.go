package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/server"
	"github.com/doodlesbykumbi/msl-wiretap/pkg/server/endpoints"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if p, err := strconv.Atoi(defaultPort()); err == nil {
		return p
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the token inspection API",
	Long: `Run the token inspection API

The server decodes tokens with the configured key_id. Keys come from the
keys_file when set, otherwise from the database keystore, which requires
the environment variables WIRETAP_DATA_KEY and DATABASE_URL.

By default, database migrations are run on startup when the database
keystore is used. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if cfg.KeysFile == "" && !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		inspector, cfg, err := loadInspector(cmd)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Unable to load keys:", err)
			os.Exit(1)
		}

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		s := server.NewServer(inspector, cfg, host, port)

		endpoints.RegisterAll(s)

		log.Printf("Running server at http://%s...\n", s.Addr())
		log.Fatal(s.Start())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	addInspectorFlags(serverCmd)
	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}
