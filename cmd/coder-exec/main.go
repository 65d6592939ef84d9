// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Coder-exec runs a command and relays its output line by line,
// prefixing each line with its channel so interleaved stdout and
// stderr stay attributable after capture. The child's exit code
// becomes this process's exit code, and killing coder-exec kills the
// child's whole process group.
//
// Usage:
//
//	coder-exec [flags] -- <command> [args...]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/coder-foundation/coder/lib/process"
	"github.com/coder-foundation/coder/lib/version"
)

func main() {
	code, err := run()
	if err != nil {
		process.Fatal(err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var (
		workDir     string
		env         []string
		timeout     time.Duration
		quiet       bool
		showVersion bool
	)

	pflag.StringVar(&workDir, "dir", "", "working directory for the command")
	pflag.StringArrayVar(&env, "env", nil, "extra NAME=value environment entries (repeatable)")
	pflag.DurationVar(&timeout, "timeout", 0, "kill the command after this duration (0 means no limit)")
	pflag.BoolVar(&quiet, "quiet", false, "suppress the stdout/stderr line prefixes")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("coder-exec %s\n", version.Info())
		return 0, nil
	}

	args := pflag.Args()
	if len(args) == 0 {
		return 0, fmt.Errorf("no command given; usage: coder-exec [flags] -- <command> [args...]")
	}

	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := process.Run(ctx, process.Spec{
		Command:  args[0],
		Args:     args[1:],
		Dir:      workDir,
		Env:      env,
		OnStdout: lineWriter(os.Stdout, "out", quiet),
		OnStderr: lineWriter(os.Stderr, "err", quiet),
		Logger:   logger,
	})
	if err == nil {
		return 0, nil
	}

	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, nil
	}
	return 0, err
}

// lineWriter returns the per-line callback for one output channel.
func lineWriter(destination *os.File, prefix string, quiet bool) func(string) {
	return func(line string) {
		if quiet {
			fmt.Fprintln(destination, line)
			return
		}
		fmt.Fprintf(destination, "%s| %s\n", prefix, line)
	}
}

// newLogger builds the CLI logger: text handler on a terminal, JSON
// when piped or redirected.
func newLogger() *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
