package sink

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

type Options struct {
	// ShowFailures writes failed targets to the diagnostic writer. Failures
	// are always logged at debug level either way.
	ShowFailures bool
	Colour       bool
	// Prettify re-indents HTML bodies in the fetch report.
	Prettify bool
	Logger   *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func paint(enabled bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// LineSink writes `<result> <target>` lines to out as results arrive.
type LineSink struct {
	out  io.Writer
	diag io.Writer
	opts Options
	log  *zap.Logger

	result *color.Color
	target *color.Color
	warn   *color.Color
}

func NewLineSink(out, diag io.Writer, opts Options) *LineSink {
	return &LineSink{
		out:    out,
		diag:   diag,
		opts:   opts,
		log:    opts.logger(),
		result: paint(opts.Colour, color.FgHiYellow),
		target: paint(opts.Colour, color.FgHiBlue),
		warn:   paint(opts.Colour, color.FgHiRed),
	}
}

func (s *LineSink) Consume(r domain.Result) error {
	if r.Outcome.Kind == domain.KindFailure {
		reportFailure(s.diag, s.warn, s.opts, s.log, r)
		return nil
	}
	if resp := r.Outcome.Response; resp != nil {
		responseAdvisories(s.diag, s.warn, resp)
	}
	for _, l := range Render(r) {
		if _, err := fmt.Fprintf(s.out, "%s %s\n", s.result.Sprint(l.Result), s.target.Sprint(l.Target)); err != nil {
			return err
		}
	}
	return nil
}

func (s *LineSink) Close() error { return flush(s.out) }

func reportFailure(diag io.Writer, c *color.Color, opts Options, log *zap.Logger, r domain.Result) {
	log.Debug("probe_failed", zap.String("target", string(r.Target)), zap.String("reason", r.Outcome.Reason))
	if opts.ShowFailures && diag != nil {
		fmt.Fprintln(diag, c.Sprintf("[!] %s: %s", r.Target, r.Outcome.Reason))
	}
}

func responseAdvisories(diag io.Writer, c *color.Color, resp *domain.Response) {
	if diag == nil {
		return
	}
	if resp.RateLimited {
		fmt.Fprintf(diag, "%s For URL: %s\n",
			c.Sprintf("[~] Response code: %d. Probably rate limited.", resp.StatusCode), resp.URL)
	}
	if resp.Truncated {
		fmt.Fprintf(diag, "%s For URL: %s\n",
			c.Sprintf("[~] Body truncated after %d bytes.", len(resp.Body)), resp.URL)
	}
}

type flusher interface{ Flush() error }

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
