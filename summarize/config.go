// Copyright © 2024 The ELPS authors

package summarize

import (
	"errors"
	"fmt"

	"github.com/luthersystems/watsum/filter"
	"github.com/luthersystems/watsum/metrics"
	"github.com/luthersystems/watsum/report"
)

var (
	// ErrInput is wrapped by errors reading or scanning the input document.
	ErrInput = errors.New("input")
	// ErrOutput is wrapped by errors writing the rendered report.
	ErrOutput = errors.New("output")
	// ErrConfig is wrapped by configuration errors.
	ErrConfig = errors.New("config")
)

// DefaultMaxEntries is the default cap on retained functions.
const DefaultMaxEntries = 5000

// Config holds the recognized options.  Field tags name the configuration
// keys.
type Config struct {
	// MaxEntries caps the number of retained functions.  Functions past the
	// cap are counted but not summarized.
	MaxEntries int `mapstructure:"max_entries"`
	// Keywords classify callee names.
	Keywords []string `mapstructure:"keyword_set"`
	// FlaggedCallsLimit caps flagged callees per function.  Zero keeps all.
	FlaggedCallsLimit int    `mapstructure:"flagged_calls_limit"`
	ImportMode        string `mapstructure:"import_mode"`
	Filter            string `mapstructure:"filter"`
	Format            string `mapstructure:"format"`
	NameWidth         int    `mapstructure:"name_width"`
	Label             string `mapstructure:"flagged_label"`
}

// DefaultConfig returns the default options.
func DefaultConfig() *Config {
	return &Config{
		MaxEntries:        DefaultMaxEntries,
		Keywords:          append([]string(nil), metrics.DefaultKeywords...),
		FlaggedCallsLimit: metrics.DefaultFlaggedLimit,
		ImportMode:        string(metrics.ImportLexical),
		Format:            string(report.FormatText),
		Label:             report.DefaultLabel,
	}
}

// Validate checks every option.  The returned error wraps ErrConfig.
func (c *Config) Validate() error {
	_, err := c.compile()
	return err
}

type compiled struct {
	metrics *metrics.Config
	filter  *filter.Expr
	writer  *report.Writer
}

func (c *Config) compile() (*compiled, error) {
	if c.MaxEntries < 0 {
		return nil, fmt.Errorf("%w: max_entries must not be negative: %d", ErrConfig, c.MaxEntries)
	}
	if c.FlaggedCallsLimit < 0 {
		return nil, fmt.Errorf("%w: flagged_calls_limit must not be negative: %d", ErrConfig, c.FlaggedCallsLimit)
	}
	if c.NameWidth < 0 {
		return nil, fmt.Errorf("%w: name_width must not be negative: %d", ErrConfig, c.NameWidth)
	}
	mode, err := metrics.ParseImportMode(c.ImportMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	format, err := report.ParseFormat(c.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	expr, err := filter.Parse(c.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return &compiled{
		metrics: &metrics.Config{
			Keywords:     c.Keywords,
			FlaggedLimit: c.FlaggedCallsLimit,
			ImportMode:   mode,
		},
		filter: expr,
		writer: &report.Writer{
			Format:    format,
			NameWidth: c.NameWidth,
			Label:     c.Label,
		},
	}, nil
}
