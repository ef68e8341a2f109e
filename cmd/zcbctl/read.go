package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/recfmt"
	"github.com/jpare/zipstore/seqset"
)

func init() {
	rootCmd.AddCommand(newReadCmd())
}

func newReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <zcd> [count]",
		Short: "Print records from a blocked sequence-set file in key order",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return err
				}
				count = n
			}
			return runRead(args[0], count)
		},
	}
}

func runRead(path string, count int) error {
	pf, err := pagedfile.OpenMapped(path)
	if err != nil {
		return err
	}
	defer pf.Close()

	hdr, err := header.ReadSeqSetHeader(pf)
	if err != nil {
		return err
	}
	e := seqset.New(pf, &hdr, nil)

	var recs []recfmt.ZipRecord
	err = e.WalkRecords(func(rec recfmt.ZipRecord) error {
		if count > 0 && len(recs) >= count {
			return errStopWalk
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil && err != errStopWalk {
		return err
	}

	if jsonOut {
		return printJSON(recs)
	}
	for _, rec := range recs {
		printInfo("%d,%s,%s,%s,%s\n", rec.Zip, rec.Location, rec.State, rec.County, floatPair(rec.Lat, rec.Lon))
	}
	return nil
}

func floatPair(lat, lon float64) string {
	return formatFloat(lat) + "," + formatFloat(lon)
}
