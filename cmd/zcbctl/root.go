package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/internal/applog"
)

var (
	verbose bool
	logFile string
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "zcbctl",
	Short: "Inspect and build ZIP code blocked sequence-set stores",
	Long: `zcbctl converts CSV ZIP code data into a blocked sequence-set store
or a legacy length-indicated file, and inspects, searches, and verifies the
result.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applog.Init(applog.Options{Verbose: verbose, File: logFile})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write JSON logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error to the CLI's exit-code contract: 1 for usage or
// I/O errors, 2 for a verification mismatch, matching what the root
// command's caller already reported to stderr.
func exitCodeFor(err error) int {
	if err == errVerificationMismatch {
		return 2
	}
	return 1
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
