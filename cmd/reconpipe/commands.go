package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/config"
	"github.com/hamed0406/reconpipe/internal/domain"
	"github.com/hamed0406/reconpipe/internal/logging"
	"github.com/hamed0406/reconpipe/internal/pipeline"
	"github.com/hamed0406/reconpipe/internal/probe"
	"github.com/hamed0406/reconpipe/internal/sink"
	"github.com/hamed0406/reconpipe/internal/source"
)

func resolveCmd() *cobra.Command {
	cfg := config.FromEnv(config.VariantResolve)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve hostnames from stdin, IPv4 first then IPv6",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, cfg, "resolve", nil, true,
				func(l *zap.Logger) (probe.Prober, error) { return probe.ForResolve(cfg, l) },
				// two sequential stages
				2*cfg.Timeout+time.Second,
				func(out, diag io.Writer, opts sink.Options) (sink.Sink, error) {
					return sink.NewLineSink(out, diag, opts), nil
				})
		},
	}
	cfg.BindFlags(cmd.Flags(), config.VariantResolve)
	return cmd
}

func fetchCmd() *cobra.Command {
	cfg := config.FromEnv(config.VariantFetch)
	cmd := &cobra.Command{
		Use:   "fetch [urls...]",
		Short: "Fetch URLs and report status, title, headers and body",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, cfg, "fetch", args, false,
				func(l *zap.Logger) (probe.Prober, error) { return probe.ForFetch(cfg, l) },
				cfg.Timeout+time.Second,
				func(out, diag io.Writer, opts sink.Options) (sink.Sink, error) {
					if cfg.OutputFile == "" {
						return sink.NewReportSink(out, diag, opts), nil
					}
					// the JSON document replaces the report; stdout stays empty
					f, err := os.Create(cfg.OutputFile)
					if err != nil {
						return nil, domain.NewConfigError("json_output", "%v", err)
					}
					return &fileSink{Sink: sink.NewJSONSink(f, diag, opts), f: f}, nil
				})
		},
	}
	cfg.BindFlags(cmd.Flags(), config.VariantFetch)
	return cmd
}

func downloadCmd() *cobra.Command {
	cfg := config.FromEnv(config.VariantDownload)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the URLs read from stdin into a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, cfg, "download", nil, true,
				func(l *zap.Logger) (probe.Prober, error) { return probe.ForDownload(cfg, l) },
				cfg.Timeout+time.Second,
				func(out, diag io.Writer, opts sink.Options) (sink.Sink, error) {
					return sink.NewLineSink(out, diag, opts), nil
				})
		},
	}
	cfg.BindFlags(cmd.Flags(), config.VariantDownload)
	return cmd
}

type (
	proberFactory func(*zap.Logger) (probe.Prober, error)
	sinkFactory   func(out, diag io.Writer, opts sink.Options) (sink.Sink, error)
)

// execute wires source -> pool -> sink for one subcommand, using the
// command's input and output streams. stdinAlways reads stdin even when it is
// a terminal; otherwise stdin is only read when piped.
func execute(cmd *cobra.Command, cfg config.Config, op string, args []string, stdinAlways bool,
	newProber proberFactory, hardTimeout time.Duration, newSink sinkFactory) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()

	var in io.Reader
	if stdin := cmd.InOrStdin(); stdinAlways || !isTerminal(stdin) {
		in = stdin
	}
	if in == nil && len(args) == 0 {
		return domain.NewConfigError("targets", "no URLs given and nothing piped on stdin")
	}

	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Verbose: cfg.Verbose})
	if err != nil {
		return domain.NewConfigError("log_dir", "%v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("op", op))

	prober, err := newProber(logger)
	if err != nil {
		return err
	}
	pool, err := pipeline.NewPool(pipeline.PoolConfig{
		Workers:     cfg.MaxConcurrency,
		Prober:      prober,
		Logger:      logger,
		HardTimeout: hardTimeout,
	})
	if err != nil {
		return err
	}

	opts := sink.Options{
		ShowFailures: cfg.ShowFailures,
		Colour:       !cfg.NoColour && !color.NoColor,
		Prettify:     cfg.Prettify,
		Logger:       logger,
	}
	s, err := newSink(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}

	targets, readErr := source.Stream(ctx, args, in)
	sum, err := pipeline.Run(ctx, targets, pool, s)
	var rerr error
	if ctx.Err() == nil {
		rerr = <-readErr
	} else {
		// a reader blocked on a terminal never returns after an interrupt
		select {
		case rerr = <-readErr:
		default:
		}
	}
	if rerr != nil {
		logger.Error("input_failed", zap.Error(rerr))
		err = multierr.Append(err, fmt.Errorf("%w: %v", errInput, rerr))
	}

	logger.Info("run_done",
		zap.Int("workers", cfg.MaxConcurrency),
		zap.Int64("dispatched", sum.Dispatched),
		zap.Int64("succeeded", sum.Succeeded),
		zap.Int64("empty", sum.Empty),
		zap.Int64("failed", sum.Failed),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return err
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// fileSink closes the underlying file once the wrapped sink has flushed.
type fileSink struct {
	sink.Sink
	f *os.File
}

func (s *fileSink) Close() error {
	return multierr.Append(s.Sink.Close(), s.f.Close())
}
