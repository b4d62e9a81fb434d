package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/server/endpoints"
)

// waitCmd represents the wait command
var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the inspection API to be ready",
	Long: `Wait for the inspection API to be ready by polling the status endpoint.

This command will repeatedly check the server status until it responds
successfully or the maximum number of retries is reached.

Example:
  wiretapctl wait
  wiretapctl wait --port 3000 --retries 60`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		retries, _ := cmd.Flags().GetInt("retries")

		status, err := waitForServer(port, retries)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server did not become ready: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("msl-wiretap %s is ready (key %s)\n", status.Version, status.KeyID)
	},
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().IntP("port", "p", defaultPortInt(), "Server port to check")
	waitCmd.Flags().IntP("retries", "r", 90, "Number of retries")
}

func waitForServer(port, retries int) (*endpoints.StatusResponse, error) {
	url := fmt.Sprintf("http://localhost:%d/?format=json", port)
	client := &http.Client{Timeout: 2 * time.Second}

	fmt.Println("Waiting for msl-wiretap to be ready...")

	for i := 0; i < retries; i++ {
		resp, err := client.Get(url)
		if err == nil {
			var status endpoints.StatusResponse
			decodeErr := json.NewDecoder(resp.Body).Decode(&status)
			_ = resp.Body.Close()
			if resp.StatusCode < 300 && decodeErr == nil {
				fmt.Println()
				return &status, nil
			}
		}

		fmt.Print(".")
		time.Sleep(1 * time.Second)
	}

	fmt.Println()
	return nil, fmt.Errorf("msl-wiretap is not ready after %d seconds", retries)
}
