package main

import (
	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/ingest"
	"github.com/jpare/zipstore/internal/applog"
)

func init() {
	rootCmd.AddCommand(newConvertCmd())
}

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <csv> <zcd>",
		Short: "Build a legacy length-indicated file plus a flat primary-key index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], args[1])
		},
	}
}

func runConvert(csvPath, zcdPath string) error {
	indexPath := zcdPath + ".idx"
	applog.Info("convert starting", "csv", csvPath, "data", zcdPath, "index", indexPath)
	result, err := ingest.ConvertLegacy(csvPath, zcdPath, indexPath)
	if err != nil {
		return err
	}
	applog.Info("convert finished", "records", result.RecordCount)
	printInfo("wrote %d records to %s (index: %s)\n", result.RecordCount, zcdPath, indexPath)
	return nil
}
