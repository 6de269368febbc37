// Copyright © 2024 The ELPS authors

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/luthersystems/watsum/metrics"
	"github.com/luthersystems/watsum/report"
	"github.com/luthersystems/watsum/summarize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// configFlags maps configuration keys to the flags that set them.
var configFlags = map[string]string{
	"max_entries":         "max-entries",
	"keyword_set":         "keywords",
	"flagged_calls_limit": "flagged-calls-limit",
	"import_mode":         "import-mode",
	"filter":              "filter",
	"format":              "format",
	"name_width":          "name-width",
	"flagged_label":       "label",
}

// SummarizeCommand returns the summarize command.
func SummarizeCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts)
	var (
		output   string
		outDir   string
		excludes []string
		quiet    bool
	)
	defaults := summarize.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "summarize [flags] <file.wat|dir/...>...",
		Short: "Summarize the functions of WAT documents",
		Long: `Summarize the top-level functions of WebAssembly text documents.

Each function is reduced to one line holding its size, the number of memory
loads and stores, branches and calls, and the callees whose names match a
capability keyword. Function bounds are found by matching parens, so
comments and strings never produce or hide a function.

A single input is written to --output (stdout by default). Several inputs
need --out-dir and are written to <dir>/<base>.summary.<ext>. A directory
argument ending in "/..." expands to every .wat file below it. The input "-"
reads stdin.

Malformed input is not an error: unterminated strings and comments are
closed, functions left open at end of input are discarded, and each anomaly
is reported on stderr.

Exit codes:
  0  Summaries written
  1  An input could not be read or an output could not be written
  2  Bad invocation (invalid flags or configuration)

Metrics:
` + metrics.AnalyzerDoc(metrics.DefaultAnalyzers()) + `
Filters select functions by metric, e.g. --filter 'loads>=10, calls>0'.

Examples:
  watsum summarize app.wat                        # Summary on stdout
  watsum summarize -o app.txt app.wat             # Summary into a file
  watsum summarize --format sarif -o app.sarif app.wat
  watsum summarize --out-dir out ./wasm/...       # Every .wat below ./wasm
  watsum summarize --keywords socket,fetch --label Net app.wat`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageError(errors.New("at least one input is required"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && outDir != "" {
				return usageError(errors.New("--output and --out-dir are mutually exclusive"))
			}
			if err := bindConfigFlags(cmd.Flags()); err != nil {
				return usageError(err)
			}
			conf, err := loadConfig()
			if err != nil {
				return usageError(err)
			}
			s, err := summarize.New(conf, summarize.WithStdout(cfg.stdout))
			if err != nil {
				return usageError(err)
			}
			renderer, err := newRenderer(cfg.root.color)
			if err != nil {
				return usageError(err)
			}
			inputs, err := expandArgs(args, excludes)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return usageError(errors.New("no input files"))
			}
			if len(inputs) > 1 && outDir == "" {
				return usageError(fmt.Errorf("%d inputs need --out-dir", len(inputs)))
			}
			outs := []string{output}
			if outDir != "" {
				format, _ := report.ParseFormat(conf.Format)
				outs, err = outputPaths(outDir, inputs, format)
				if err != nil {
					return usageError(err)
				}
				if err := os.MkdirAll(outDir, 0755); err != nil {
					return fmt.Errorf("%w: %w", summarize.ErrOutput, err)
				}
			}
			if quiet {
				summarize.SetLogger(summarize.Logger().WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel)))
			}
			for i, in := range inputs {
				rep, err := summarizeInput(cmd, s, in, outs[i])
				if err != nil {
					renderError(renderer, cfg.stderr, err)
					return err
				}
				if !quiet {
					if err := renderAnomalies(renderer, cfg.stderr, rep.Anomalies); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "",
		`Write the summary to this file ("-" for stdout).`)
	flags.StringVar(&outDir, "out-dir", "",
		"Write one summary per input into this directory.")
	flags.Int("max-entries", defaults.MaxEntries,
		"Maximum number of functions listed per input.")
	flags.StringSlice("keywords", defaults.Keywords,
		"Capability keywords matched against callee names.")
	flags.Int("flagged-calls-limit", defaults.FlaggedCallsLimit,
		"Flagged callees listed per function (0 for all).")
	flags.String("import-mode", defaults.ImportMode,
		`How imports are detected: "lexical" or "structural".`)
	flags.String("filter", "",
		"Only list functions matching this filter.")
	flags.String("format", defaults.Format,
		`Output format: "text", "json" or "sarif".`)
	flags.Int("name-width", 0,
		"Truncate function names to this width (0 for no limit).")
	flags.String("label", defaults.Label,
		"Name of the flagged-call suffix in text output.")
	flags.StringArrayVar(&excludes, "exclude", nil,
		"Glob pattern for files to exclude (may be repeated).")
	flags.BoolVarP(&quiet, "quiet", "q", false,
		"Do not report input anomalies.")
	return cmd
}

func bindConfigFlags(flags *pflag.FlagSet) error {
	for key, name := range configFlags {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig reads the summary options from viper.
func loadConfig() (*summarize.Config, error) {
	conf := summarize.DefaultConfig()
	if err := viper.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("%w: %w", summarize.ErrConfig, err)
	}
	return conf, conf.Validate()
}

// outputPaths names the summary of each input under dir as
// <base>.summary.<ext>.  Inputs sharing a base name are named after their
// path relative to the closest directory containing all of them, with
// separators replaced by "_".
func outputPaths(dir string, inputs []string, format report.Format) ([]string, error) {
	stems := make([]string, len(inputs))
	byStem := make(map[string][]int)
	for i, in := range inputs {
		stems[i] = stem(filepath.Base(in))
		if in == summarize.Stdout {
			stems[i] = "stdin"
		}
		byStem[stems[i]] = append(byStem[stems[i]], i)
	}
	for _, idx := range byStem {
		if len(idx) < 2 {
			continue
		}
		paths := make([]string, 0, len(idx))
		for _, i := range idx {
			if inputs[i] != summarize.Stdout {
				paths = append(paths, filepath.Clean(inputs[i]))
			}
		}
		root := commonDir(paths)
		for _, i := range idx {
			if inputs[i] == summarize.Stdout {
				continue
			}
			rel, err := filepath.Rel(root, filepath.Clean(inputs[i]))
			if err != nil {
				return nil, err
			}
			stems[i] = strings.ReplaceAll(filepath.ToSlash(stem(rel)), "/", "_")
		}
	}
	outs := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i, in := range inputs {
		outs[i] = filepath.Join(dir, stems[i]+".summary."+format.Ext())
		if prev, ok := seen[outs[i]]; ok {
			return nil, fmt.Errorf("inputs %s and %s would both be written to %s", prev, in, outs[i])
		}
		seen[outs[i]] = in
	}
	return outs, nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return "."
	}
	dir := filepath.Dir(paths[0])
	for _, p := range paths[1:] {
		for !within(p, dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				return dir
			}
			dir = parent
		}
	}
	return dir
}

func within(path, dir string) bool {
	if dir == "." {
		return !filepath.IsAbs(path) && !strings.HasPrefix(path, "..")
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

func summarizeInput(cmd *cobra.Command, s *summarize.Summarizer, in, out string) (*report.Report, error) {
	if in == summarize.Stdout {
		return s.Summarize(cmd.Context(), cmd.InOrStdin(), "<stdin>", out)
	}
	return s.SummarizeFile(cmd.Context(), in, out)
}
