package main

// sc-dedup groups barcode-resolved reads by (cell barcode, gene bin)
// and collapses each group's UMIs into molecule counts by directional
// clustering.
//
// Inputs are the per-read tag table written by sc-extract and a TSV of
// alignment coordinates (read_id, chrom, start, end).  Reads aligned
// outside any annotated gene fall back to a genomic-window bin, so
// every aligned read with a corrected barcode is counted.
//
// Example:
//
//    sc-dedup -tags=out/sample1.tags.tsv -alignments=aligned.tsv \
//        -features=genes.tsv -output-prefix=out/sample1

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/singlecell/genebin"
	"github.com/grailbio/singlecell/kit"
	"github.com/grailbio/singlecell/tags"
	"github.com/grailbio/singlecell/umicluster"
)

type dedupFlags struct {
	tagsPath       string
	alignmentsPath string
	featuresPath   string
	outputPrefix   string
}

// alignment is one row of the alignment coordinate table.
type alignment struct {
	readID string
	chrom  string
	start  int
	end    int
}

func openInput(ctx context.Context, path string) (file.File, io.Reader) {
	in, err := file.Open(ctx, path)
	if err != nil {
		log.Panicf("open %v: %v", path, err)
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return in, r
}

// readTags loads the tag table, preserving row order for output.
func readTags(ctx context.Context, path string) ([]tags.ReadTags, map[string]int) {
	in, r := openInput(ctx, path)
	tr := tags.NewReader(r)
	var (
		rows  []tags.ReadTags
		index = make(map[string]int)
	)
	for {
		t, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Panicf("read %v: %v", path, err)
		}
		index[t.ReadID] = len(rows)
		rows = append(rows, t)
	}
	if err := in.Close(ctx); err != nil {
		log.Panicf("close %v: %v", path, err)
	}
	log.Printf("Read %d tag rows from %s", len(rows), path)
	return rows, index
}

func readAlignments(ctx context.Context, path string) []alignment {
	in, r := openInput(ctx, path)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var (
		out  []alignment
		line int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 4 {
			log.Panicf("%v: line %d: want 4 columns (read_id, chrom, start, end), got %d", path, line, len(cols))
		}
		start, err := strconv.Atoi(cols[2])
		if err != nil {
			log.Panicf("%v: line %d: bad start %q", path, line, cols[2])
		}
		end, err := strconv.Atoi(cols[3])
		if err != nil {
			log.Panicf("%v: line %d: bad end %q", path, line, cols[3])
		}
		out = append(out, alignment{readID: cols[0], chrom: cols[1], start: start, end: end})
	}
	once := errors.Once{}
	once.Set(scanner.Err())
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		log.Panicf("read %v: %v", path, err)
	}
	log.Printf("Read %d alignments from %s", len(out), path)
	return out
}

func loadAnnotation(ctx context.Context, path string, window int) *genebin.Annotation {
	if path == "" {
		return nil
	}
	in, r := openInput(ctx, path)
	a, err := genebin.Load(r, window)
	once := errors.Once{}
	once.Set(err)
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		log.Panicf("load features %v: %v", path, err)
	}
	return a
}

// assignGroups joins tag rows with alignments and partitions the
// joined reads into (barcode, bin) groups.  It records each read's bin
// in its tag row and reports how many reads were dropped at the join.
func assignGroups(rows []tags.ReadTags, index map[string]int, alns []alignment, ann *genebin.Annotation, window, ceiling int) *umicluster.GroupSet {
	set := umicluster.NewGroupSet(ceiling)
	var untagged, uncorrected int
	for _, a := range alns {
		i, ok := index[a.readID]
		if !ok {
			untagged++
			continue
		}
		t := &rows[i]
		if t.CorrectedBarcode == "" || t.UncorrectedUMI == "" {
			uncorrected++
			continue
		}
		var bin string
		if ann != nil {
			bin = ann.Resolve(a.chrom, a.start, a.end)
		} else {
			bin = genebin.WindowBin(a.chrom, a.start, a.end, window)
		}
		t.Gene = bin
		set.Add(umicluster.Key{Barcode: t.CorrectedBarcode, Bin: bin}, a.readID, t.UncorrectedUMI)
	}
	log.Printf("Stats: %d groups, %d alignments without tags, %d reads without corrected barcode",
		set.Len(), untagged, uncorrected)
	return set
}

// applyAssignments fills the corrected UMI of every clustered read
// from its group's UMI assignment map.
func applyAssignments(rows []tags.ReadTags, index map[string]int, groups []*umicluster.Group, results []umicluster.Result) {
	for gi, g := range groups {
		assign := results[gi].Assignments
		for _, r := range g.Reads {
			i, ok := index[r.ID]
			if !ok {
				continue
			}
			rows[i].CorrectedUMI = assign[r.UMI]
		}
	}
}

func writeCounts(ctx context.Context, path string, results []umicluster.Result) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#barcode\tbin\tmolecules\treads\tsubsampled")
	er := errors.Once{}
	er.Set(w.EndLine())
	for _, r := range results {
		w.WriteString(r.Key.Barcode)
		w.WriteString(r.Key.Bin)
		w.WriteUint32(uint32(r.Molecules))
		w.WriteUint32(uint32(r.Reads))
		w.WriteUint32(uint32(r.Subsampled))
		er.Set(w.EndLine())
	}
	er.Set(w.Flush())
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
	log.Printf("Wrote %d group counts to %s", len(results), path)
}

func writeTags(ctx context.Context, path string, rows []tags.ReadTags) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	w, err := tags.NewWriter(out.Writer(ctx))
	if err != nil {
		log.Panic(err)
	}
	er := errors.Once{}
	for i := range rows {
		er.Set(w.Write(rows[i]))
	}
	er.Set(w.Flush())
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
}

func writeSummary(ctx context.Context, path string, stats umicluster.Stats) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	w := tsv.NewWriter(out.Writer(ctx))
	er := errors.Once{}
	row := func(name string, value int) {
		w.WriteString(name)
		w.WriteString(fmt.Sprint(value))
		er.Set(w.EndLine())
	}
	row("groups", stats.Groups)
	row("reads_clustered", stats.Reads)
	row("reads_subsampled", stats.Subsampled)
	row("molecules", stats.Molecules)
	er.Set(w.Flush())
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
}

func run(ctx context.Context, flags dedupFlags, cfg kit.Config) {
	if flags.tagsPath == "" || flags.alignmentsPath == "" {
		log.Fatal("-tags and -alignments are required")
	}
	if flags.outputPrefix == "" {
		log.Fatal("-output-prefix is required")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	parallelism := cfg.ClusterWorkers
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}

	rows, index := readTags(ctx, flags.tagsPath)
	alns := readAlignments(ctx, flags.alignmentsPath)
	ann := loadAnnotation(ctx, flags.featuresPath, cfg.GenomicWindow)

	set := assignGroups(rows, index, alns, ann, cfg.GenomicWindow, cfg.MaxGroupReads)
	groups := set.Groups()
	results, err := umicluster.Dedup(groups, cfg.UMIClusterED, parallelism)
	if err != nil {
		log.Panic(err)
	}
	applyAssignments(rows, index, groups, results)

	stats := umicluster.Summarize(results)
	log.Printf("Stats: %d molecules from %d reads in %d groups (%d subsampled)",
		stats.Molecules, stats.Reads, stats.Groups, stats.Subsampled)

	writeCounts(ctx, flags.outputPrefix+".dedup_counts.tsv", results)
	writeTags(ctx, flags.outputPrefix+".dedup_tags.tsv", rows)
	writeSummary(ctx, flags.outputPrefix+".dedup_summary.tsv", stats)
}

func main() {
	cfg := kit.DefaultConfig
	flags := dedupFlags{}
	flag.StringVar(&flags.tagsPath, "tags", "", "Per-read tag table written by sc-extract.")
	flag.StringVar(&flags.alignmentsPath, "alignments", "", "TSV of alignment coordinates: read_id, chrom, start, end.")
	flag.StringVar(&flags.featuresPath, "features", "", `Gene feature table: chrom, start, end, gene.
If empty, every read is binned by genomic window.`)
	flag.StringVar(&flags.outputPrefix, "output-prefix", "", "Prefix for output files (<prefix>.dedup_counts.tsv etc).")
	flag.IntVar(&cfg.UMIClusterED, "umi-cluster-ed", cfg.UMIClusterED, "Maximum edit distance between UMIs joined during clustering.")
	flag.IntVar(&cfg.GenomicWindow, "genomic-window", cfg.GenomicWindow, "Window size (bp) for bins outside annotated genes.")
	flag.IntVar(&cfg.MaxGroupReads, "max-group-reads", cfg.MaxGroupReads, "Per-group read ceiling; reads beyond it are subsampled.")
	flag.IntVar(&cfg.ClusterWorkers, "workers", cfg.ClusterWorkers, "Worker parallelism. 0 selects the CPU count.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	run(ctx, flags, cfg)
	log.Printf("All done")
}
