package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/ingest"
	"github.com/jpare/zipstore/internal/applog"
)

func init() {
	rootCmd.AddCommand(newConvertBlockedCmd())
}

func newConvertBlockedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert-blocked <csv> <zcb> [blockSize] [minBlockSize]",
		Short: "Build a blocked sequence set plus a flat block index",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			blockSize := ingest.DefaultBlockSize
			minBlockSize := ingest.DefaultMinBlockSize
			var err error
			if len(args) >= 3 {
				if blockSize, err = strconv.Atoi(args[2]); err != nil {
					return err
				}
			}
			if len(args) == 4 {
				if minBlockSize, err = strconv.Atoi(args[3]); err != nil {
					return err
				}
			}
			return runConvertBlocked(args[0], args[1], blockSize, minBlockSize)
		},
	}
}

func runConvertBlocked(csvPath, zcbPath string, blockSize, minBlockSize int) error {
	indexPath := zcbPath + ".idx"
	applog.Info("convert-blocked starting", "csv", csvPath, "data", zcbPath, "index", indexPath, "blockSize", blockSize, "minBlockSize", minBlockSize)
	result, err := ingest.ConvertBlocked(csvPath, zcbPath, indexPath, blockSize, minBlockSize)
	if err != nil {
		return err
	}
	applog.Info("convert-blocked finished", "records", result.RecordCount, "blocks", result.BlockCount, "duplicates", result.DuplicateCount)
	printInfo("wrote %d records across %d block(s) to %s (index: %s)\n", result.RecordCount, result.BlockCount, zcbPath, indexPath)
	if result.DuplicateCount > 0 {
		printInfo("skipped %d duplicate zip(s)\n", result.DuplicateCount)
	}
	return nil
}
