package main

import (
	"errors"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/flatindex"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/seqset"
)

func init() {
	rootCmd.AddCommand(newZcdSearchCmd())
}

func newZcdSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zcd-search <zcd> <idx> <zip>...",
		Short: "Look up one or more zip codes in a blocked sequence-set file via its flat block index",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			zips := make([]uint32, len(args)-2)
			for i, a := range args[2:] {
				n, err := strconv.ParseUint(a, 10, 32)
				if err != nil {
					return err
				}
				zips[i] = uint32(n)
			}
			return runZcdSearch(args[0], args[1], zips)
		},
	}
}

func runZcdSearch(zcdPath, idxPath string, zips []uint32) error {
	pf, err := pagedfile.OpenReadOnly(zcdPath)
	if err != nil {
		return err
	}
	defer pf.Close()
	hdr, err := header.ReadSeqSetHeader(pf)
	if err != nil {
		return err
	}

	idxFile, err := os.Open(idxPath)
	if err != nil {
		return err
	}
	defer idxFile.Close()
	idx, err := flatindex.Load(idxFile)
	if err != nil {
		return err
	}

	e := seqset.New(pf, &hdr, idx)
	for _, zip := range zips {
		rec, err := e.Search(zip)
		if errors.Is(err, errs.ErrNotFound) {
			printInfo("%d: not found\n", zip)
			continue
		}
		if err != nil {
			return err
		}
		printInfo("%d: %s,%s,%s,%s,%s\n", zip, rec.Location, rec.State, rec.County, formatFloat(rec.Lat), formatFloat(rec.Lon))
	}
	return nil
}
