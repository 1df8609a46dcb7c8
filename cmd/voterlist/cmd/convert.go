package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/VotersList/internal/batch"
	"github.com/JonMunkholm/VotersList/internal/config"
	"github.com/JonMunkholm/VotersList/internal/core"
	"github.com/JonMunkholm/VotersList/internal/extract"
)

type convertFlags struct {
	input        string
	output       string
	fromCSV      bool
	bom          bool
	gzip         bool
	workers      int
	skipLeading  int
	skipTrailing int
	databaseURL  string
	s3Bucket     string
	s3Prefix     string
	s3Region     string
	s3Endpoint   string
}

func newConvertCmd(a *app) *cobra.Command {
	f := &convertFlags{}

	c := &cobra.Command{
		Use:   "convert [input-dir]",
		Short: "Convert every register PDF in a directory",
		Long: `Convert reads every *.pdf in the input directory (default: PDF), writes
<name>.pdf.csv for each one and finally extraction_report.log listing the
rows that did not have 8 columns.

Documents are converted concurrently. A document that cannot be read is
reported and does not stop the others; the command then exits non-zero.

With --from-csv, tables already extracted to *.csv are converted instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.input = args[0]
				a.cfg.Output.InputDir = args[0]
			}
			f.apply(cmd, a.cfg)
			if err := a.validate(); err != nil {
				return err
			}
			return a.runConvert(cmd, f.fromCSV)
		},
	}

	fl := c.Flags()
	fl.StringVarP(&f.input, "input", "i", "", "directory of documents to convert (overrides INPUT_DIR)")
	fl.StringVarP(&f.output, "output", "o", "", "directory for CSV files and the report (overrides OUTPUT_DIR)")
	fl.BoolVar(&f.fromCSV, "from-csv", false, "read pre-extracted CSV tables instead of PDFs")
	fl.BoolVar(&f.bom, "bom", false, "prefix each CSV with a UTF-8 byte order mark")
	fl.BoolVar(&f.gzip, "gzip", false, "gzip each CSV (<name>.csv.gz)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "documents converted at once (overrides OUTPUT_WORKERS)")
	fl.IntVar(&f.skipLeading, "skip-leading", 0, "cover pages to drop (overrides EXTRACT_SKIP_LEADING_PAGES)")
	fl.IntVar(&f.skipTrailing, "skip-trailing", 0, "summary pages to drop (overrides EXTRACT_SKIP_TRAILING_PAGES)")
	fl.StringVar(&f.databaseURL, "database-url", "", "store documents and records in Postgres (overrides DATABASE_URL)")
	fl.StringVar(&f.s3Bucket, "s3-bucket", "", "write artifacts to this S3 bucket instead of --output")
	fl.StringVar(&f.s3Prefix, "s3-prefix", "", "key prefix for S3 artifacts")
	fl.StringVar(&f.s3Region, "s3-region", "", "S3 region (overrides S3_REGION)")
	fl.StringVar(&f.s3Endpoint, "s3-endpoint", "", "custom S3 endpoint, e.g. MinIO (implies path-style addressing)")

	return c
}

// apply copies the flags the user set onto cfg.
func (f *convertFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("input") {
		cfg.Output.InputDir = f.input
	}
	if changed("output") {
		cfg.Output.Dir = f.output
	}
	if changed("bom") {
		cfg.Output.BOM = f.bom
	}
	if changed("gzip") {
		cfg.Output.Compression = core.CompressionNone
		if f.gzip {
			cfg.Output.Compression = core.CompressionGzip
		}
	}
	if changed("workers") {
		cfg.Output.Workers = f.workers
	}
	if changed("skip-leading") {
		cfg.Extract.SkipLeadingPages = f.skipLeading
	}
	if changed("skip-trailing") {
		cfg.Extract.SkipTrailingPages = f.skipTrailing
	}
	if changed("database-url") {
		cfg.Database.URL = f.databaseURL
	}
	if changed("s3-bucket") {
		cfg.Storage.Backend = config.StorageS3
		cfg.Storage.S3Bucket = f.s3Bucket
	}
	if changed("s3-prefix") {
		cfg.Storage.S3Prefix = f.s3Prefix
	}
	if changed("s3-region") {
		cfg.Storage.S3Region = f.s3Region
	}
	if changed("s3-endpoint") {
		cfg.Storage.S3Endpoint = f.s3Endpoint
		cfg.Storage.S3ForcePathStyle = true
	}
}

func (a *app) runConvert(cmd *cobra.Command, fromCSV bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snk, err := a.openSink(ctx)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	var extractor batch.Extractor = extract.PDF{Options: a.extractOptions()}
	if fromCSV {
		extractor = extract.CSV{}
	}

	runner := &batch.Runner{
		Extractor: extractor,
		Sink:      snk,
		Limiter:   core.NewDocumentLimiter(a.cfg.Output.Workers, core.DefaultSlotWait),
		Options: batch.Options{
			Workers: a.cfg.Output.Workers,
			Output:  a.outputOptions(),
		},
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		runner.Store = st
	}

	summary, err := runner.Run(ctx, a.cfg.Output.InputDir)
	if summary != nil {
		printSummary(cmd, summary)
	}
	if err != nil {
		return err
	}
	if n := summary.Failed(); n > 0 {
		return fmt.Errorf("%d of %d documents failed, see %s", n, summary.Documents, core.ReportFileName)
	}
	return nil
}

func printSummary(cmd *cobra.Command, s *batch.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Documents:  %d (%d converted, %d failed, %d already stored)\n",
		s.Documents, s.Converted, s.Failed(), s.Duplicates)
	fmt.Fprintf(out, "Rows:       %d written, %d skipped, %d invalid\n",
		s.RowsWritten, s.RowsSkipped, s.RowsInvalid)
	fmt.Fprintf(out, "Duration:   %s\n", s.Duration.Round(time.Millisecond))
	for _, f := range s.Failures {
		fmt.Fprintf(out, "  failed: %s: %v\n", f.Source, f.Err)
	}
}
