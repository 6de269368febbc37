// Copyright © 2018 The ELPS authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/luthersystems/watsum/summarize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Exit codes.
const (
	exitOK    = 0
	exitRun   = 1
	exitUsage = 2
)

// envPrefix prefixes environment variables naming configuration keys, e.g.
// WATSUM_MAX_ENTRIES.
const envPrefix = "WATSUM"

type rootOptions struct {
	cfgFile  string
	color    string
	logLevel string
	trace    bool

	shutdown func(context.Context) error
}

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

// exitCode maps a command error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, summarize.ErrConfig) {
		return exitUsage
	}
	return exitRun
}

// NewRootCommand returns the watsum command with its subcommands.
func NewRootCommand(opts ...Option) *cobra.Command {
	cfg := newCmdConfig(opts)
	ropts := cfg.root

	root := &cobra.Command{
		Use:   "watsum",
		Short: "watsum summarizes WebAssembly text functions",
		Long: `watsum condenses very large WebAssembly text (.wat) documents into a
per-function summary that is small enough to read, diff or grep.

Getting started:
  watsum summarize app.wat              Summarize a document to stdout
  watsum summarize -o app.txt app.wat   Write the summary to a file
  watsum summarize --help               Describe metrics, filters and formats

Configuration:
  Options are read from $HOME/.watsum.yaml (or --config), from environment
  variables prefixed with WATSUM_ (e.g. WATSUM_MAX_ENTRIES=100), and from
  flags, in increasing order of precedence. Recognized keys are max_entries,
  keyword_set, flagged_calls_limit, import_mode, filter, format, name_width
  and flagged_label.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ropts.setup(cfg.stderr)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if ropts.shutdown == nil {
				return nil
			}
			err := ropts.shutdown(cmd.Context())
			ropts.shutdown = nil
			return err
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
	root.SetOut(cfg.stdout)
	root.SetErr(cfg.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&ropts.cfgFile, "config", "", "config file (default is $HOME/.watsum.yaml)")
	flags.StringVar(&ropts.color, "color", "auto",
		`Control colored output: "auto", "always", or "never".`)
	flags.StringVar(&ropts.logLevel, "log-level", "warn",
		`Log level: "debug", "info", "warn" or "error".`)
	flags.BoolVar(&ropts.trace, "trace", false,
		"Log a trace span for each pipeline stage.")

	root.AddCommand(SummarizeCommand(append(opts, withRoot(ropts))...))
	return root
}

// setup installs the logger, reads configuration and starts tracing.
func (r *rootOptions) setup(stderr io.Writer) error {
	logger, err := newLogger(r.logLevel, stderr)
	if err != nil {
		return usageError(err)
	}
	summarize.SetLogger(logger)
	if err := initConfig(r.cfgFile, logger); err != nil {
		return usageError(err)
	}
	if r.trace {
		r.shutdown = startTracing(logger)
	}
	return nil
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cfgFile string, logger *zap.Logger) error {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("%w: %w", summarize.ErrConfig, err)
		}
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Debug("no home directory", zap.Error(err))
			return nil
		}
		// Search config in home directory with name ".watsum" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".watsum")
		err = viper.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return fmt.Errorf("%w: %w", summarize.ErrConfig, err)
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("using config file", zap.String("path", used))
	}
	return nil
}

var rootCmd = NewRootCommand()

// Execute runs the root command and exits with its exit code.  This is
// called by main.main().
func Execute() {
	os.Exit(run(rootCmd, os.Stderr))
}

func run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err != nil {
		fmt.Fprintf(stderr, "watsum: %v\n", err)
	}
	return exitCode(err)
}
