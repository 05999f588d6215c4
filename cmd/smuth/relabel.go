package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smuth-go/smuth/internal/duckdb"
	"github.com/smuth-go/smuth/internal/evidence"
	"github.com/smuth-go/smuth/internal/output"
	"github.com/smuth-go/smuth/internal/relabel"
	"github.com/smuth-go/smuth/internal/vcf"
)

// storeBatchSize is the number of evidence rows buffered per DuckDB append.
const storeBatchSize = 10000

// pipelineOptions configures a relabel or evidence run.
type pipelineOptions struct {
	inputPath   string
	outputPath  string // relabeled VCF; empty disables VCF output
	tablePath   string // evidence table; "-" is stdout
	dbPath      string
	skipInvalid bool
	dryRun      bool
	workers     int
	cfg         evidence.Config
}

func addEvidenceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("error-rate", evidence.DefaultBaseErrorRate, "Per-base sequencing error rate")
	f.Float64("pvalue", evidence.DefaultPValueThreshold, "Tail-probability threshold separating presence from absence")
	f.Int("workers", 0, "Number of relabel workers (default: number of CPUs)")
	f.String("db", "", "DuckDB file to store per-sample evidence (optional)")
	f.Bool("skip-invalid", false, "Log and skip malformed records instead of aborting")
}

// bindEvidenceFlags binds the shared flags of the running command to viper.
// Binding happens at run time because relabel and evidence share keys.
func bindEvidenceFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag(keyErrorRate, cmd.Flags().Lookup("error-rate"))
	_ = viper.BindPFlag(keyPValue, cmd.Flags().Lookup("pvalue"))
	_ = viper.BindPFlag(keyWorkers, cmd.Flags().Lookup("workers"))
}

func newRelabelCmd() *cobra.Command {
	var opts pipelineOptions

	cmd := &cobra.Command{
		Use:   "relabel [flags] <input.vcf>",
		Short: "Relabel genotype calls contradicted by read evidence",
		Long: `Relabel reads a multi-sample VCF (plain, gzipped, or '-' for stdin), scores
each sample's alternate reads against a sequencing-error model, and rewrites
the GT of samples whose call the evidence contradicts. All other FORMAT
sub-fields are preserved.`,
		Example: `  smuth relabel input.vcf > relabeled.vcf
  smuth relabel -o relabeled.vcf --table evidence.tsv input.vcf.gz
  smuth relabel --error-rate 0.01 --pvalue 0.05 --db runs.duckdb input.vcf`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindEvidenceFlags(cmd)
			opts.inputPath = args[0]
			if opts.outputPath == "" {
				opts.outputPath = "-"
			}
			return runPipeline(cmd.Context(), cmd, opts)
		},
	}

	addEvidenceFlags(cmd)
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output VCF file (default: stdout)")
	cmd.Flags().StringVar(&opts.tablePath, "table", "", "Write a per-sample evidence table to this file")

	return cmd
}

func newEvidenceCmd() *cobra.Command {
	var opts pipelineOptions

	cmd := &cobra.Command{
		Use:   "evidence [flags] <input.vcf>",
		Short: "Report per-sample evidence without relabeling",
		Example: `  smuth evidence input.vcf
  smuth evidence -o evidence.tsv --db runs.duckdb input.vcf`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bindEvidenceFlags(cmd)
			opts.inputPath = args[0]
			opts.dryRun = true
			if opts.tablePath == "" {
				opts.tablePath = "-"
			}
			return runPipeline(cmd.Context(), cmd, opts)
		},
	}

	addEvidenceFlags(cmd)
	cmd.Flags().StringVarP(&opts.tablePath, "output", "o", "", "Output table file (default: stdout)")

	return cmd
}

// runPipeline streams records through parser, worker pool and writers.
func runPipeline(ctx context.Context, cmd *cobra.Command, opts pipelineOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts.cfg = evidenceConfig()
	opts.workers = viper.GetInt(keyWorkers)
	opts.dbPath, _ = cmd.Flags().GetString("db")
	opts.skipInvalid, _ = cmd.Flags().GetBool("skip-invalid")

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	engine, err := evidence.NewEngine(opts.cfg)
	if err != nil {
		return &usageError{msg: err.Error()}
	}

	parser, err := vcf.NewParser(opts.inputPath)
	if err != nil {
		return err
	}
	defer parser.Close()

	logger.Info("reading input",
		zap.String("path", opts.inputPath),
		zap.Int("samples", len(parser.SampleNames())),
		zap.Float64("base_error_rate", opts.cfg.BaseErrorRate),
		zap.Float64("pvalue_threshold", opts.cfg.PValueThreshold))

	sink, err := openSinks(cmd.OutOrStdout(), parser, opts)
	if err != nil {
		return err
	}
	defer sink.close()

	if sink.store != nil {
		fp, err := duckdb.StatFile(opts.inputPath)
		if err != nil {
			return fmt.Errorf("stat input: %w", err)
		}
		run, err := sink.store.BeginRun(fp, opts.cfg)
		if err != nil {
			return err
		}
		sink.runID = run.ID
		logger.Info("storing evidence", zap.String("db", opts.dbPath), zap.String("run_id", run.ID))
	}

	rl := relabel.NewRelabeler(engine)
	rl.SetLogger(logger)
	rl.SetDryRun(opts.dryRun)

	g, gctx := errgroup.WithContext(ctx)
	items := make(chan relabel.WorkItem, 2*max(opts.workers, 1))

	var skipped int
	g.Go(func() error {
		var err error
		skipped, err = readRecords(gctx, parser, items, opts.skipInvalid, logger)
		return err
	})

	var records, changedRecords, changedSamples, presentSamples int
	results := rl.Parallel(items, opts.workers)
	g.Go(func() error {
		return relabel.OrderedCollect(results, func(r relabel.WorkResult) error {
			if r.Err != nil {
				return fmt.Errorf("line %d: %w", r.Line, r.Err)
			}
			records++
			presentSamples += evidence.CountPresent(r.Result.Verdicts)
			if r.Result.Changed > 0 {
				changedRecords++
				changedSamples += r.Result.Changed
			}
			return sink.write(r)
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := sink.flush(); err != nil {
		return err
	}

	logger.Info("done",
		zap.Int("records", records),
		zap.Int("relabeled_records", changedRecords),
		zap.Int("relabeled_samples", changedSamples),
		zap.Int("present_samples", presentSamples),
		zap.Int("skipped", skipped))
	return nil
}

// readRecords feeds records from r into items until EOF, then closes items.
// With skipInvalid, malformed records are logged and counted instead of
// ending the run.
func readRecords(ctx context.Context, r vcf.RecordReader, items chan<- relabel.WorkItem, skipInvalid bool, logger *zap.Logger) (int, error) {
	defer close(items)

	skipped, seq := 0, 0
	for {
		rec, err := r.Next()
		if err != nil {
			var perr *vcf.ParseError
			if skipInvalid && errors.As(err, &perr) {
				logger.Warn("skipping malformed record", zap.Error(err))
				skipped++
				continue
			}
			return skipped, err
		}
		if rec == nil {
			return skipped, nil
		}
		select {
		case items <- relabel.WorkItem{Seq: seq, Line: r.LineNumber(), Record: rec}:
			seq++
		case <-ctx.Done():
			return skipped, ctx.Err()
		}
	}
}

// sinks fans each relabeled record out to the configured outputs.
type sinks struct {
	vcfOut  *output.VCFWriter
	table   *output.TabWriter
	store   *duckdb.Store
	runID   string
	samples []string
	pending []duckdb.EvidenceRow
	closers []io.Closer
}

func openSinks(stdout io.Writer, input vcf.RecordReader, opts pipelineOptions) (*sinks, error) {
	s := &sinks{samples: input.SampleNames()}

	open := func(path string) (io.Writer, error) {
		if path == "-" {
			return stdout, nil
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		s.closers = append(s.closers, f)
		return f, nil
	}

	if opts.outputPath != "" {
		w, err := open(opts.outputPath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.vcfOut = output.NewVCFWriter(w, input.Header(), opts.cfg)
		if err := s.vcfOut.WriteHeader(); err != nil {
			s.close()
			return nil, fmt.Errorf("write vcf header: %w", err)
		}
	}

	if opts.tablePath != "" {
		w, err := open(opts.tablePath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.table = output.NewTabWriter(w, input.SampleNames())
		if err := s.table.WriteHeader(); err != nil {
			s.close()
			return nil, fmt.Errorf("write table header: %w", err)
		}
	}

	if opts.dbPath != "" {
		store, err := duckdb.Open(opts.dbPath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.store = store
		s.closers = append(s.closers, store)
	}

	return s, nil
}

func (s *sinks) write(r relabel.WorkResult) error {
	if s.vcfOut != nil {
		if err := s.vcfOut.Write(r.Record); err != nil {
			return fmt.Errorf("write vcf: %w", err)
		}
	}
	if s.table != nil {
		if err := s.table.Write(r.Record, r.Result.Verdicts); err != nil {
			return fmt.Errorf("write table: %w", err)
		}
	}
	if s.store != nil {
		s.pending = append(s.pending, duckdb.NewEvidenceRows(r.Record, r.Result.Verdicts, s.samples)...)
		if len(s.pending) >= storeBatchSize {
			if err := s.store.WriteEvidence(s.runID, s.pending); err != nil {
				return err
			}
			s.pending = s.pending[:0]
		}
	}
	return nil
}

func (s *sinks) flush() error {
	if s.vcfOut != nil {
		if err := s.vcfOut.Flush(); err != nil {
			return fmt.Errorf("flush vcf: %w", err)
		}
	}
	if s.table != nil {
		if err := s.table.Flush(); err != nil {
			return fmt.Errorf("flush table: %w", err)
		}
	}
	if s.store != nil && len(s.pending) > 0 {
		if err := s.store.WriteEvidence(s.runID, s.pending); err != nil {
			return err
		}
		s.pending = nil
	}
	return nil
}

func (s *sinks) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}
