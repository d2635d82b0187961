package sink

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

const ruleWidth = 80

// ReportSink prints a human-readable block per fetched response: URL, status,
// title, headers and body.
type ReportSink struct {
	out  io.Writer
	diag io.Writer
	opts Options
	log  *zap.Logger

	cyan, green, gray, yellow, pink, red *color.Color
}

func NewReportSink(out, diag io.Writer, opts Options) *ReportSink {
	return &ReportSink{
		out:    out,
		diag:   diag,
		opts:   opts,
		log:    opts.logger(),
		cyan:   paint(opts.Colour, color.FgHiCyan),
		green:  paint(opts.Colour, color.FgGreen),
		gray:   paint(opts.Colour, color.FgHiBlack),
		yellow: paint(opts.Colour, color.FgHiYellow),
		pink:   paint(opts.Colour, color.FgHiMagenta),
		red:    paint(opts.Colour, color.FgHiRed),
	}
}

func (s *ReportSink) Consume(r domain.Result) error {
	switch r.Outcome.Kind {
	case domain.KindFailure:
		reportFailure(s.diag, s.yellow, s.opts, s.log, r)
		return nil
	case domain.KindEmpty:
		return nil
	}
	resp := r.Outcome.Response
	if resp == nil {
		return nil
	}
	responseAdvisories(s.diag, s.red, resp)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n\n", s.cyan.Sprint("URL:"), resp.URL)
	fmt.Fprintf(&b, "%s %d\n\n", s.green.Sprint("Status:"), resp.StatusCode)
	if resp.Title != nil {
		fmt.Fprintf(&b, "%s %s\n\n", s.gray.Sprint("Title:"), *resp.Title)
	} else {
		b.WriteString("Title: None\n\n")
	}
	fmt.Fprintf(&b, "%s\n\n", s.yellow.Sprint("Headers:"))
	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s %s\n", s.gray.Sprint(k+":"), resp.Headers[k])
	}
	fmt.Fprintf(&b, "\n%s\n\n", s.pink.Sprint("Response Body:"))
	body := resp.Body
	if s.opts.Prettify && isHTML(resp.Headers) {
		body = indentHTML(body)
	}
	b.WriteString(body)
	b.WriteString("\n")
	if resp.Truncated {
		fmt.Fprintf(&b, "%s\n", s.red.Sprintf("[body truncated after %d bytes]", len(resp.Body)))
	}
	b.WriteString(s.gray.Sprint(strings.Repeat("─", ruleWidth)))
	b.WriteString("\n")

	_, err := io.WriteString(s.out, b.String())
	return err
}

func (s *ReportSink) Close() error { return flush(s.out) }
