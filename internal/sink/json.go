package sink

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/hamed0406/reconpipe/internal/domain"
)

// JSONSink collects fetched responses and writes them as one indented JSON
// array when closed. Nothing is written to w before Close.
type JSONSink struct {
	w       io.Writer
	diag    io.Writer
	opts    Options
	log     *zap.Logger
	warn    *color.Color
	records []domain.Response
}

func NewJSONSink(w, diag io.Writer, opts Options) *JSONSink {
	return &JSONSink{
		w:       w,
		diag:    diag,
		opts:    opts,
		log:     opts.logger(),
		warn:    paint(opts.Colour, color.FgHiRed),
		records: []domain.Response{},
	}
}

func (s *JSONSink) Consume(r domain.Result) error {
	switch r.Outcome.Kind {
	case domain.KindFailure:
		reportFailure(s.diag, s.warn, s.opts, s.log, r)
	case domain.KindSuccess:
		if resp := r.Outcome.Response; resp != nil {
			responseAdvisories(s.diag, s.warn, resp)
			s.records = append(s.records, *resp)
		}
	}
	return nil
}

func (s *JSONSink) Close() error {
	enc := json.NewEncoder(s.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.records); err != nil {
		return err
	}
	return flush(s.w)
}

// NDJSONSink writes one JSON object per result and flushes after each, so a
// streaming HTTP client sees results in completion order.
type NDJSONSink struct {
	enc *json.Encoder
	w   io.Writer
}

type ndjsonRecord struct {
	Target     string      `json:"target"`
	Kind       domain.Kind `json:"kind"`
	Values     []string    `json:"values,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Title      *string     `json:"title,omitempty"`
	URL        string      `json:"url,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Truncated  bool        `json:"truncated,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

func NewNDJSONSink(w io.Writer) *NDJSONSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONSink{enc: enc, w: w}
}

func (s *NDJSONSink) Consume(r domain.Result) error {
	rec := ndjsonRecord{
		Target:     string(r.Target),
		Kind:       r.Outcome.Kind,
		Values:     r.Outcome.Values,
		Reason:     r.Outcome.Reason,
		DurationMS: r.Duration.Milliseconds(),
	}
	if resp := r.Outcome.Response; resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.Title = resp.Title
		rec.URL = resp.URL
		rec.Truncated = resp.Truncated
	}
	if err := s.enc.Encode(rec); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (s *NDJSONSink) Close() error { return flush(s.w) }
