package main

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
)

func init() {
	rootCmd.AddCommand(newHeaderCmd())
}

func newHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "header <file>",
		Short: "Print the header of a sequence-set or B+ tree file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeader(args[0])
		},
	}
}

func runHeader(path string) error {
	pf, err := pagedfile.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer pf.Close()

	prefix, err := pf.ReadAt(0, 4)
	if err != nil {
		return err
	}

	if bytes.Equal(prefix, header.Magic[:]) {
		hdr, err := header.ReadSeqSetHeader(pf)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(hdr)
		}
		printInfo("sequence-set file: %s\n", path)
		printInfo("  version: %d\n", hdr.Version)
		printInfo("  blockSize: %d  minBlockSize: %d\n", hdr.BlockSize, hdr.MinBlockSize)
		printInfo("  recordCount: %d  blockCount: %d\n", hdr.RecordCount, hdr.BlockCount)
		printInfo("  indexFileName: %s\n", hdr.IndexFileName)
		printInfo("  schema: %s\n", hdr.Schema)
		printInfo("  staleFlag: %d\n", hdr.StaleFlag)
		return nil
	}

	hdr, err := header.ReadTreeHeader(pf)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(hdr)
	}
	printInfo("B+ tree file: %s\n", path)
	printInfo("  dataFileName: %s\n", hdr.DataFileName)
	printInfo("  height: %d  blockSize: %d\n", hdr.Height, hdr.BlockSize)
	printInfo("  rootIndexRBN: %d  indexStartRBN: %d  indexBlockCount: %d\n", hdr.RootIndexRBN, hdr.IndexStartRBN, hdr.IndexBlockCount)
	return nil
}
