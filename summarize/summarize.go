// Copyright © 2024 The ELPS authors

// Package summarize produces function summaries of WAT documents.
//
// A document is streamed once through the lexer, the function extractor and
// the metrics collector.  Memory use is bounded by the scanner window and
// the retained entries, not by the size of the document.
package summarize

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/luthersystems/watsum/extract"
	"github.com/luthersystems/watsum/filter"
	"github.com/luthersystems/watsum/metrics"
	"github.com/luthersystems/watsum/parser/lexer"
	"github.com/luthersystems/watsum/parser/token"
	"github.com/luthersystems/watsum/report"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName names the tracer summaries are recorded with.
const TracerName = "watsum"

// Stdout is the destination of the output path "-".
const Stdout = "-"

// Option customizes a Summarizer.
type Option func(*Summarizer)

// WithStdout sets the writer used for the output path "-".
func WithStdout(w io.Writer) Option {
	return func(s *Summarizer) {
		s.stdout = w
	}
}

// WithWindowSize sets the scanner window size in bytes.
func WithWindowSize(n int) Option {
	return func(s *Summarizer) {
		s.window = n
	}
}

// Summarizer summarizes documents with a fixed configuration.  It holds no
// per-document state and may be reused.
type Summarizer struct {
	cfg    Config
	c      *compiled
	stdout io.Writer
	window int
}

// New validates cfg and returns a Summarizer.  A nil cfg uses DefaultConfig.
func New(cfg *Config, opts ...Option) (*Summarizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	s := &Summarizer{
		cfg:    *cfg,
		c:      c,
		stdout: os.Stdout,
		window: token.DefaultWindowSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration s was built from.
func (s *Summarizer) Config() Config {
	return s.cfg
}

func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(TracerName)
}

// Run summarizes the document read from r.  Name identifies the document in
// locations and in the report.  Malformed input is recorded as anomalies;
// only a read failure or cancellation is an error.
func (s *Summarizer) Run(ctx context.Context, r io.Reader, name string) (*report.Report, error) {
	ctx, span := tracer().Start(ctx, "summarize", trace.WithAttributes(semconv.CodeFilepath(name)))
	defer span.End()

	stream := lexer.NewStream(lexer.New(token.NewScannerSize(name, r, s.window)))
	acc := newAccumulator(name, s.cfg.MaxEntries, s.c)
	stats, err := extract.New(stream, stream.Anomalies()).Run(ctx, acc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s: %w", ErrInput, name, err)
	}
	rep := acc.rep
	rep.TotalFunctionsFound = stats.Found
	rep.Anomalies = stream.Anomalies()

	span.SetAttributes(
		attribute.Int("watsum.functions.found", stats.Found),
		attribute.Int("watsum.functions.retained", len(rep.Entries)),
		attribute.Int("watsum.functions.excluded", rep.Excluded),
		attribute.Int("watsum.anomalies", rep.Anomalies.Total()),
	)
	Logger().Debug("summarized document",
		zap.String("source", name),
		zap.Int("found", stats.Found),
		zap.Int("retained", len(rep.Entries)),
		zap.Int("excluded", rep.Excluded),
		zap.Bool("truncated", rep.Truncated()))
	if rep.Anomalies.Total() > 0 {
		Logger().Warn("malformed input",
			zap.String("source", name),
			zap.Stringer("anomalies", rep.Anomalies),
			zap.Int("discarded", stats.Discarded))
	}
	return rep, nil
}

// Render writes rep in the configured format.
func (s *Summarizer) Render(w io.Writer, rep *report.Report) error {
	return s.c.writer.Write(w, rep)
}

// SummarizeFile summarizes the file at in and writes the rendered report
// to out, creating or replacing it.  Out "-" or "" is stdout.
func (s *Summarizer) SummarizeFile(ctx context.Context, in, out string) (*report.Report, error) {
	ctx, span := tracer().Start(ctx, "summarize-file")
	defer span.End()

	f, err := os.Open(in) //#nosec G304
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %w", ErrInput, err)
	}
	defer f.Close() //nolint:errcheck
	rep, err := s.Summarize(ctx, f, in, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rep, nil
}

// Summarize summarizes the document read from r and writes the rendered
// report to out.  The output is opened only after the whole input has been
// summarized, so a failed run leaves no partial report.
func (s *Summarizer) Summarize(ctx context.Context, r io.Reader, name, out string) (*report.Report, error) {
	rep, err := s.Run(ctx, r, name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := s.Render(&buf, rep); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if err := s.writeOutput(out, buf.Bytes()); err != nil {
		return nil, err
	}
	Logger().Info("wrote summary",
		zap.String("source", name),
		zap.String("output", out),
		zap.Int("bytes", buf.Len()))
	return rep, nil
}

func (s *Summarizer) writeOutput(out string, b []byte) error {
	if out == "" || out == Stdout {
		if _, err := s.stdout.Write(b); err != nil {
			return fmt.Errorf("%w: stdout: %w", ErrOutput, err)
		}
		return nil
	}
	f, err := os.Create(out) //#nosec G304
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("%w: %s: %w", ErrOutput, out, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutput, out, err)
	}
	return nil
}

// accumulator collects report entries as functions close.
type accumulator struct {
	rep       *report.Report
	max       int
	filter    *filter.Expr
	collector *metrics.Collector
}

var _ extract.Handler = (*accumulator)(nil)

func newAccumulator(name string, max int, c *compiled) *accumulator {
	return &accumulator{
		rep: &report.Report{
			Source: name,
			Filter: c.filter.String(),
		},
		max:       max,
		filter:    c.filter,
		collector: metrics.NewCollector(c.metrics),
	}
}

func (a *accumulator) OpenFunc(sp *extract.Span) bool {
	// Past the cap a function is only measured when the filter needs its
	// metrics to count exclusions.
	if len(a.rep.Entries) >= a.max && a.filter == nil {
		return false
	}
	a.collector.Begin(sp)
	return true
}

func (a *accumulator) FuncToken(sp *extract.Span, tok *token.Token) {
	a.collector.Visit(tok)
}

func (a *accumulator) CloseFunc(sp *extract.Span) {
	m := a.collector.End()
	if !a.filter.Match(&m) {
		a.rep.Excluded++
		return
	}
	if len(a.rep.Entries) < a.max {
		a.rep.Entries = append(a.rep.Entries, report.NewEntry(sp, m))
	}
}
