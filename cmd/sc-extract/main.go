package main

// sc-extract scans raw single-cell nanopore FASTQ files, locates the
// adapter probe on read ends, and resolves candidate cell barcodes
// against a per-sample whitelist.
//
// The run has two phases:
//
//   1. Scan every read, extract barcode/UMI candidates, and tally
//      high-quality barcodes.
//
//   2. Build (or load) the whitelist, correct every candidate against
//      it, and write the per-read tag table plus the barcode rank
//      table and run summary.
//
// Example:
//
//    sc-extract -kit=3prime:v3 -input=reads.fastq.gz -output-prefix=out/sample1
//
// Example with an externally supplied whitelist:
//
//    sc-extract -kit=3prime:v3 -input=reads.fastq.gz -whitelist=barcodes.txt -output-prefix=out/sample1

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/singlecell/encoding/fastq"
	"github.com/grailbio/singlecell/extract"
	"github.com/grailbio/singlecell/kit"
	"github.com/grailbio/singlecell/tags"
	"github.com/grailbio/singlecell/whitelist"
)

// Collection of options set via cmdline flags.
type extractFlags struct {
	input         string
	kitSpec       string
	outputPrefix  string
	whitelistPath string
	kneeMethod    string
	cellCount     int
	readCountThr  int
}

// A uint64 sequence number defines a total ordering of reads from
// multiple fastq files, so the per-read tag table is emitted in order
// of appearance regardless of worker scheduling.  The sequence is a
// combination of <file index, read index within the file>.
func newSeq(fileseq, readseq uint) uint64 {
	return (uint64(fileseq) << 48) | uint64(readseq)
}

const invalidSeq = math.MaxUint64

type req struct {
	seq  uint64
	read fastq.Read
}

type res struct {
	seq       uint64
	candidate extract.Candidate

	// stats is sent as the very last record, with seq=invalidSeq.
	stats extract.Stats
}

func processRequests(reqCh chan req, resCh chan res, ex *extract.Extractor) {
	stats := extract.Stats{}
	for req := range reqCh {
		c, _, ok := ex.Extract(&req.read, &stats)
		if !ok {
			continue
		}
		resCh <- res{seq: req.seq, candidate: c}
	}
	resCh <- res{seq: invalidSeq, stats: stats}
}

func readFASTQ(ctx context.Context, reqCh chan req, fileseq uint, path string) int {
	in, err := file.Open(ctx, path)
	if err != nil {
		log.Panicf("open %v: %v", path, err)
	}
	var inr io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(inr, in.Name()); u != nil {
		inr = u
	}
	sc := fastq.NewScanner(inr)
	var (
		read  fastq.Read
		nRead uint
	)
	for sc.Scan(&read) {
		nRead++
		if nRead%(1024*1024) == 0 {
			log.Printf("%s: %dMi reads", path, nRead/(1024*1024))
		}
		reqCh <- req{newSeq(fileseq, nRead), read}
	}
	log.Printf("Processed %d reads in %s", nRead, path)
	once := errors.Once{}
	once.Set(sc.Err())
	once.Set(in.Close(ctx))
	if err := once.Err(); err != nil {
		log.Panicf("close %v: %v", path, err)
	}
	return sc.Malformed()
}

func processFASTQ(ctx context.Context, fileseq uint, path string, ex *extract.Extractor, parallelism int) ([]res, extract.Stats) {
	reqCh := make(chan req, 1024*64)
	resCh := make(chan res, 1024)

	wg1 := sync.WaitGroup{}
	for i := 0; i < parallelism; i++ {
		wg1.Add(1)
		go func() {
			processRequests(reqCh, resCh, ex)
			wg1.Done()
		}()
	}

	wg2 := sync.WaitGroup{}
	wg2.Add(1)
	var (
		results []res
		stats   extract.Stats
	)
	go func() {
		for res := range resCh {
			if res.seq == invalidSeq {
				stats = stats.Merge(res.stats)
				continue
			}
			results = append(results, res)
		}
		wg2.Done()
	}()

	stats.MalformedRecords += readFASTQ(ctx, reqCh, fileseq, path)
	close(reqCh)
	wg1.Wait()
	close(resCh)
	wg2.Wait()
	return results, stats
}

func extractCandidates(ctx context.Context, paths []string, ex *extract.Extractor, parallelism int) ([]extract.Candidate, extract.Stats) {
	var (
		allResultsMu sync.Mutex
		allResults   []res
		allStats     extract.Stats
		wg           sync.WaitGroup
	)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			c, stats := processFASTQ(ctx, uint(i), paths[i], ex, parallelism)
			allResultsMu.Lock()
			allResults = append(allResults, c...)
			allStats = allStats.Merge(stats)
			allResultsMu.Unlock()
			wg.Done()
		}(i)
	}
	wg.Wait()
	sort.SliceStable(allResults, func(i, j int) bool {
		return allResults[i].seq < allResults[j].seq
	})
	candidates := make([]extract.Candidate, len(allResults))
	for i := range allResults {
		candidates[i] = allResults[i].candidate
	}
	log.Printf("Stats: Finished extraction: %+v", allStats)
	return candidates, allStats
}

// buildWhitelist either loads an externally supplied whitelist or
// selects one from the high-quality barcode tally by knee detection.
// The ranked tally is returned alongside for the rank table output.
func buildWhitelist(ctx context.Context, flags extractFlags, cfg kit.Config, candidates []extract.Candidate) (*whitelist.Whitelist, []whitelist.BarcodeCount) {
	counter := whitelist.NewCounter()
	for i := range candidates {
		if candidates[i].HighQuality {
			counter.Add(candidates[i].Barcode)
		}
	}
	ranked := counter.Sorted()
	log.Printf("Tallied %d distinct high-quality barcodes over %d observations", counter.Distinct(), counter.Total())

	if flags.whitelistPath != "" {
		in, err := file.Open(ctx, flags.whitelistPath)
		if err != nil {
			log.Panicf("open %v: %v", flags.whitelistPath, err)
		}
		wl, err := whitelist.Load(in.Reader(ctx))
		once := errors.Once{}
		once.Set(err)
		once.Set(in.Close(ctx))
		if err := once.Err(); err != nil {
			log.Panicf("load whitelist %v: %v", flags.whitelistPath, err)
		}
		log.Printf("Loaded %d whitelist entries from %s", wl.Len(), flags.whitelistPath)
		return wl, ranked
	}

	opts := whitelist.KneeOpts{
		ExpectedCells:      cfg.ExpectedCells,
		CellCount:          flags.cellCount,
		ReadCountThreshold: flags.readCountThr,
	}
	switch flags.kneeMethod {
	case "quantile":
		opts.Method = whitelist.KneeQuantile
	case "distance":
		opts.Method = whitelist.KneeDistance
	default:
		log.Panicf("unknown knee method %q, want quantile or distance", flags.kneeMethod)
	}
	cells, err := whitelist.SelectCells(ranked, opts)
	if err != nil {
		log.Panic(err)
	}
	wl, err := whitelist.FromCounts(cells)
	if err != nil {
		log.Panic(err)
	}
	log.Printf("Selected %d cells from %d ranked barcodes", wl.Len(), len(ranked))
	return wl, ranked
}

// correctCandidates resolves every candidate against the whitelist and
// returns the per-read tag rows in input order.
func correctCandidates(candidates []extract.Candidate, wl *whitelist.Whitelist, cfg kit.Config, parallelism int) ([]tags.ReadTags, whitelist.CorrectionStats) {
	corrector := whitelist.NewCorrector(wl, cfg.MaxBarcodeED, cfg.MinBarcodeEDGap)
	rows := make([]tags.ReadTags, len(candidates))
	shardStats := make([]whitelist.CorrectionStats, parallelism)
	shardSize := (len(candidates) + parallelism - 1) / parallelism
	err := traverse.Each(parallelism, func(shard int) error {
		start := shard * shardSize
		if start >= len(candidates) {
			return nil
		}
		end := start + shardSize
		if end > len(candidates) {
			end = len(candidates)
		}
		stats := &shardStats[shard]
		for i := start; i < end; i++ {
			c := &candidates[i]
			rows[i] = tags.ReadTags{
				ReadID:             c.ReadID,
				UncorrectedBarcode: c.Barcode,
				BarcodeQual:        c.BarcodeQual,
				UncorrectedUMI:     c.UMI,
				UMIQual:            c.UMIQual,
			}
			if corrected, _, ok := corrector.Correct(c.Barcode, stats); ok {
				rows[i].CorrectedBarcode = corrected
			}
		}
		return nil
	})
	if err != nil {
		log.Panic(err)
	}
	stats := whitelist.CorrectionStats{}
	for _, s := range shardStats {
		stats = stats.Merge(s)
	}
	return rows, stats
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
	log.Printf("Wrote %d tag rows to %s", len(rows), path)
}

func writeRankTable(ctx context.Context, path string, ranked []whitelist.BarcodeCount, wl *whitelist.Whitelist) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#rank\tbarcode\treads\twhitelisted")
	er := errors.Once{}
	er.Set(w.EndLine())
	for i, bc := range ranked {
		w.WriteUint32(uint32(i + 1))
		w.WriteString(bc.Barcode)
		w.WriteUint32(uint32(bc.Count))
		if wl.Contains(bc.Barcode) {
			w.WriteString("Y")
		} else {
			w.WriteString("N")
		}
		er.Set(w.EndLine())
	}
	er.Set(w.Flush())
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
}

func writeWhitelist(ctx context.Context, path string, wl *whitelist.Whitelist) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	er := errors.Once{}
	er.Set(wl.Write(out.Writer(ctx)))
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
	log.Printf("Wrote %d whitelist entries to %s", wl.Len(), path)
}

func writeSummary(ctx context.Context, path string, es extract.Stats, wl *whitelist.Whitelist, cs whitelist.CorrectionStats) {
	out, err := file.Create(ctx, path)
	if err != nil {
		log.Panic(err)
	}
	w := tsv.NewWriter(out.Writer(ctx))
	er := errors.Once{}
	row := func(name, value string) {
		w.WriteString(name)
		w.WriteString(value)
		er.Set(w.EndLine())
	}
	row("total_reads", fmt.Sprint(es.TotalReads))
	row("mean_read_length", fmt.Sprintf("%.1f", es.MeanReadLength()))
	row("full_length_fwd", fmt.Sprint(es.FullLengthFwd))
	row("full_length_rev", fmt.Sprint(es.FullLengthRev))
	row("unstranded", fmt.Sprint(es.Unstranded))
	row("short_probe_window", fmt.Sprint(es.ShortProbeWindow))
	row("malformed_records", fmt.Sprint(es.MalformedRecords))
	row("candidates", fmt.Sprint(es.Candidates))
	row("high_quality_candidates", fmt.Sprint(es.HighQuality))
	row("low_quality_candidates", fmt.Sprint(es.LowQuality))
	row("whitelist_size", fmt.Sprint(wl.Len()))
	row("corrections_attempted", fmt.Sprint(cs.Total))
	row("corrections_accepted", fmt.Sprint(cs.Accepted))
	row("corrections_exact", fmt.Sprint(cs.Exact))
	row("corrections_rejected", fmt.Sprint(cs.Rejected))
	row("correction_rate", fmt.Sprintf("%.4f", cs.AcceptedRate()))
	er.Set(w.Flush())
	er.Set(out.Close(ctx))
	if er.Err() != nil {
		log.Panicf("write %v: %v", path, er.Err())
	}
}

func run(ctx context.Context, flags extractFlags, cfg kit.Config) {
	if flags.input == "" {
		log.Fatal("-input is required")
	}
	if flags.outputPrefix == "" {
		log.Fatal("-output-prefix is required")
	}
	k, err := kit.Parse(flags.kitSpec)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	parallelism := cfg.ExtractWorkers
	if parallelism == 0 {
		parallelism = runtime.NumCPU()
	}
	log.Printf("Kit %s: barcode %dbp, UMI %dbp, probe %s", k, k.BarcodeLen, k.UMILen, k.Probe(cfg.AdapterSuffixLen))

	ex := extract.New(k, cfg)
	paths := strings.Split(flags.input, ",")
	candidates, es := extractCandidates(ctx, paths, ex, parallelism)

	wl, ranked := buildWhitelist(ctx, flags, cfg, candidates)
	rows, cs := correctCandidates(candidates, wl, cfg, parallelism)
	log.Printf("Stats: corrected %d of %d candidates (%d exact)", cs.Accepted, cs.Total, cs.Exact)

	writeTags(ctx, flags.outputPrefix+".tags.tsv", rows)
	writeRankTable(ctx, flags.outputPrefix+".barcode_counts.tsv", ranked, wl)
	writeWhitelist(ctx, flags.outputPrefix+".whitelist.txt", wl)
	writeSummary(ctx, flags.outputPrefix+".summary.tsv", es, wl, cs)
}

func main() {
	cfg := kit.DefaultConfig
	flags := extractFlags{}
	flag.StringVar(&flags.input, "input", "", "Comma-separated list of FASTQ files (optionally gzipped).")
	flag.StringVar(&flags.kitSpec, "kit", "3prime:v3", "Kit specifier as name:version.")
	flag.StringVar(&flags.outputPrefix, "output-prefix", "", "Prefix for output files (<prefix>.tags.tsv etc).")
	flag.StringVar(&flags.whitelistPath, "whitelist", "", `Externally supplied whitelist, one barcode per line.
If set, knee detection is skipped and candidates are corrected against this list.`)
	flag.StringVar(&flags.kneeMethod, "knee-method", "quantile", "Whitelist knee heuristic: quantile or distance.")
	flag.IntVar(&flags.cellCount, "cell-count", 0, "If positive, take the top N ranked barcodes outright instead of knee detection.")
	flag.IntVar(&flags.readCountThr, "read-count-threshold", 0, "If positive, take every barcode with at least this many reads instead of knee detection.")
	flag.IntVar(&cfg.AdapterSuffixLen, "adapter-suffix-len", cfg.AdapterSuffixLen, "Length of the adapter suffix used as the alignment probe.")
	flag.IntVar(&cfg.MinProbeScore, "min-probe-score", cfg.MinProbeScore, "Minimum local-alignment score for a probe match.")
	flag.IntVar(&cfg.MinBarcodeQual, "min-barcode-qual", cfg.MinBarcodeQual, "Minimum per-base barcode quality for the high-quality tally.")
	flag.IntVar(&cfg.MaxBarcodeED, "max-barcode-ed", cfg.MaxBarcodeED, "Maximum edit distance for barcode correction.")
	flag.IntVar(&cfg.MinBarcodeEDGap, "min-barcode-ed-gap", cfg.MinBarcodeEDGap, "Minimum edit-distance gap between the nearest and second-nearest whitelist entries.")
	flag.IntVar(&cfg.ExpectedCells, "expected-cells", cfg.ExpectedCells, "Rough prior on the number of cells in the sample.")
	flag.IntVar(&cfg.ExtractWorkers, "workers", cfg.ExtractWorkers, "Worker parallelism. 0 selects the CPU count.")

	cleanup := grail.Init()
	defer cleanup()
	ctx := vcontext.Background()

	run(ctx, flags, cfg)
	log.Printf("All done")
}
