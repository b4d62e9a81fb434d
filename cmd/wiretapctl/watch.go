package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Inspect captured messages as they are written to a directory",
	Long: `Watch a directory and inspect every message written into it.

Each file created or modified in the directory is read as one captured
message header and its decoded tokens are printed. Failures are reported
and the watch continues.

Example:
  wiretapctl watch --keys-file keys.yml --key-id device-1 /var/spool/msl`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := watchCaptures(cmd, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to watch captures: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addInspectorFlags(watchCmd)
	watchCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

func watchCaptures(cmd *cobra.Command, dir string) error {
	output, _ := cmd.Flags().GetString("output")

	inspector, _, err := loadInspector(cmd)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	fmt.Printf("Watching %s for captured messages\n", dir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			inspectCapture(inspector, event.Name, output)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		case <-sigChan:
			fmt.Println("\nShutting down...")
			return nil
		}
	}
}

func inspectCapture(inspector *wiretap.Inspector, path, output string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		return
	}
	if len(data) == 0 {
		return
	}

	name := filepath.Base(path)
	fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), name)
	if err := inspectData(os.Stdout, inspector, data, wiretap.Origin{Source: name}, "header", output); err != nil {
		fmt.Fprintf(os.Stderr, "Error inspecting %s: %v\n", name, err)
	}
}
