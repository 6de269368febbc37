// Copyright © 2024 The ELPS authors

package cmd

import (
	"io"
	"os"
)

// Option configures an exported command factory (NewRootCommand,
// SummarizeCommand).
type Option func(*cmdConfig)

type cmdConfig struct {
	stdout io.Writer
	stderr io.Writer

	// shared with subcommands once the root command parses its flags
	root *rootOptions
}

// WithStdout sets where reports written to "-" go.  Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(c *cmdConfig) { c.stdout = w }
}

// WithStderr sets where diagnostics and logs go.  Defaults to os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(c *cmdConfig) { c.stderr = w }
}

func newCmdConfig(opts []Option) *cmdConfig {
	c := &cmdConfig{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.root == nil {
		c.root = &rootOptions{color: "auto", logLevel: "warn"}
	}
	return c
}

// withRoot shares the root command's parsed flags with a subcommand.
func withRoot(r *rootOptions) Option {
	return func(c *cmdConfig) { c.root = r }
}
