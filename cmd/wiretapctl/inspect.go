package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/wiretap"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Decode the tokens of a captured message",
	Long: `Decode the tokens of a captured message header.

The message is read from the file, or from standard input when no file or
"-" is given. Every token in the header is verified, validated and, when
its signature verifies, decrypted. With --kind the input is a single master
token, or a {"mastertoken", "useridtoken"} pair.

Example:
  wiretapctl inspect capture.json
  wiretapctl inspect --kind mastertoken --output json token.json
  cat capture.cbor | wiretapctl inspect --format cbor`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(cmd, args); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to inspect message: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	addInspectorFlags(inspectCmd)
	inspectCmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	inspectCmd.Flags().String("kind", "header", "Input kind (header, mastertoken or useridtoken)")
}

func readInput(args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, "stdin", err
	}
	data, err := os.ReadFile(args[0])
	return data, filepath.Base(args[0]), err
}

func runInspect(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	kind, _ := cmd.Flags().GetString("kind")
	if output != "text" && output != "json" {
		return fmt.Errorf("invalid output format: %s", output)
	}

	inspector, _, err := loadInspector(cmd)
	if err != nil {
		return err
	}

	data, source, err := readInput(args)
	if err != nil {
		return err
	}

	return inspectData(os.Stdout, inspector, data, wiretap.Origin{Source: source}, kind, output)
}

func inspectData(w io.Writer, inspector *wiretap.Inspector, data []byte, origin wiretap.Origin, kind, output string) error {
	var result interface{}
	switch kind {
	case "header":
		report, err := inspector.Inspect(data, origin)
		if err != nil {
			return err
		}
		if output == "text" {
			return report.WriteText(w, time.Now())
		}
		result = report
	case "mastertoken":
		mt, err := inspector.MasterToken(data, origin)
		if err != nil {
			return err
		}
		result = mt
	case "useridtoken":
		uit, err := inspector.UserIDToken(data, origin)
		if err != nil {
			return err
		}
		result = uit
	default:
		return fmt.Errorf("invalid kind: %s", kind)
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(body))
	return err
}
