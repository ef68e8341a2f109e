package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/flatindex"
	"github.com/jpare/zipstore/internal/applog"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/recfmt"
	"github.com/jpare/zipstore/seqset"
)

// Interactive flag state for the app subcommand. -A takes one CSV-shaped
// argument ("zip,city,state,county,lat,lon") rather than six separate
// positional values, since cobra/pflag flags don't natively consume a
// variable run of following tokens the way the original's argv parser did.
// Likewise pflag shorthands are a single character, so the two-letter
// dump flags are spelled out as --logical-dump/--physical-dump; only
// -F/-S/-A/-R keep their original single-letter form.
var (
	appFile   string
	appSearch string
	appAdd    string
	appRemove string
	appLD     string
	appPD     string
)

func init() {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Interactive single-file operations: search, add, remove, dump",
		Long: `app opens one blocked sequence-set file and applies whichever of
-S/-A/-R/--logical-dump/--physical-dump are present, in that order: search,
then add, then remove, then a logical dump, then a physical dump.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp()
		},
	}
	cmd.Flags().StringVarP(&appFile, "file", "F", "", "sequence-set file to operate on (required)")
	cmd.Flags().StringVarP(&appSearch, "search", "S", "", "zip to search for")
	cmd.Flags().StringVarP(&appAdd, "add", "A", "", "record to add, as zip,city,state,county,lat,lon")
	cmd.Flags().StringVarP(&appRemove, "remove", "R", "", "zip to remove")
	cmd.Flags().StringVar(&appLD, "logical-dump", "", "write a logical (active+available list) dump to this file")
	cmd.Flags().StringVar(&appPD, "physical-dump", "", "write a physical (RBN-order) dump to this file")
	_ = cmd.MarkFlagRequired("file")
	rootCmd.AddCommand(cmd)
}

func runApp() error {
	pf, err := pagedfile.Open(appFile)
	if err != nil {
		return err
	}
	defer pf.Close()

	hdr, err := header.ReadSeqSetHeader(pf)
	if err != nil {
		return err
	}

	indexPath := hdr.IndexFileName
	if indexPath == "" {
		indexPath = appFile + ".idx"
	}
	idx, err := loadOrBuildIndex(indexPath, seqset.New(pf, &hdr, nil))
	if err != nil {
		return err
	}

	e := seqset.New(pf, &hdr, idx)
	dirty := false

	if appSearch != "" {
		if err := appRunSearch(e); err != nil {
			return err
		}
	}
	if appAdd != "" {
		if err := appRunAdd(e, idx); err != nil {
			return err
		}
		dirty = true
	}
	if appRemove != "" {
		if err := appRunRemove(e, idx); err != nil {
			return err
		}
		dirty = true
	}
	if appLD != "" {
		if err := appRunLogicalDump(e); err != nil {
			return err
		}
	}
	if appPD != "" {
		if err := appRunPhysicalDump(e); err != nil {
			return err
		}
	}

	if dirty {
		if err := e.Flush(); err != nil {
			return err
		}
		f, err := os.Create(indexPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := flatindex.Save(f, idx); err != nil {
			return err
		}
	}
	return nil
}

func loadOrBuildIndex(path string, w flatindex.SequenceSetWalker) (*flatindex.Index, error) {
	f, err := os.Open(path)
	if err != nil {
		applog.Debug("index file absent, will rebuild in memory", "path", path)
		return flatindex.BuildFromSequenceSet(w)
	}
	defer f.Close()
	return flatindex.Load(f)
}

func appRunSearch(e *seqset.Engine) error {
	zip, err := strconv.ParseUint(appSearch, 10, 32)
	if err != nil {
		return err
	}
	rec, err := e.Search(uint32(zip))
	if errors.Is(err, errs.ErrNotFound) {
		printInfo("%d: not found\n", zip)
		return nil
	}
	if err != nil {
		return err
	}
	printInfo("%d: %s,%s,%s,%s,%s\n", rec.Zip, rec.Location, rec.State, rec.County, formatFloat(rec.Lat), formatFloat(rec.Lon))
	return nil
}

func appRunAdd(e *seqset.Engine, idx *flatindex.Index) error {
	rec, err := recfmt.ParseCSV(appAdd)
	if err != nil {
		return err
	}
	res, err := e.Insert(rec)
	if err != nil {
		return err
	}
	for _, d := range res.Deltas {
		if d.Removed {
			continue
		}
		if err := idx.UpdateLastKey(d.RBN, d.LastKey); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				idx.InsertEntry(d.LastKey, d.RBN)
				continue
			}
			return err
		}
	}
	printInfo("added %d\n", rec.Zip)
	return nil
}

func appRunRemove(e *seqset.Engine, idx *flatindex.Index) error {
	zip, err := strconv.ParseUint(appRemove, 10, 32)
	if err != nil {
		return err
	}
	res, err := e.Remove(uint32(zip))
	if err != nil {
		return err
	}
	for _, d := range res.Deltas {
		if d.Removed {
			if err := idx.RemoveEntry(d.RBN); err != nil {
				return err
			}
			continue
		}
		if err := idx.UpdateLastKey(d.RBN, d.LastKey); err != nil {
			return err
		}
	}
	printInfo("removed %d\n", zip)
	return nil
}

func appRunLogicalDump(e *seqset.Engine) error {
	dump, err := e.DumpLogical()
	if err != nil {
		return err
	}
	f, err := os.Create(appLD)
	if err != nil {
		return err
	}
	defer f.Close()
	fmt.Fprintf(f, "active: %v\n", dump.ActiveRBNs)
	fmt.Fprintf(f, "available: %v\n", dump.AvailableRBNs)
	printInfo("wrote logical dump to %s\n", appLD)
	return nil
}

func appRunPhysicalDump(e *seqset.Engine) error {
	entries, err := e.DumpPhysical()
	if err != nil {
		return err
	}
	f, err := os.Create(appPD)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, pe := range entries {
		if pe.IsAvailable {
			fmt.Fprintf(f, "%d: available, succ=%d\n", pe.RBN, pe.SucceedingRBN)
			continue
		}
		fmt.Fprintf(f, "%d: active, prec=%d succ=%d zips=%v\n", pe.RBN, pe.PrecedingRBN, pe.SucceedingRBN, pe.Zips)
	}
	printInfo("wrote physical dump to %s\n", appPD)
	return nil
}
