// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/coder-foundation/coder/lib/stream"
)

// ExitError reports that the child process ran to completion but exited
// with a nonzero status. Callers that relay the child's status branch
// on this type; every other error from Run means the process could not
// be spawned or observed at all.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return "process exited with code " + strconv.Itoa(e.Code)
}

// Spec describes a child process to run.
type Spec struct {
	// Command is the binary to execute, resolved via PATH.
	Command string

	// Args are passed to the command verbatim.
	Args []string

	// Dir is the working directory. Empty means inherit.
	Dir string

	// Env entries in "NAME=value" form are appended to the inherited
	// environment.
	Env []string

	// OnStdout and OnStderr receive each complete output line, without
	// its trailing newline, in the order the process wrote them. A
	// final unterminated line is delivered when the process closes the
	// descriptor; output that ends cleanly with a newline produces no
	// trailing empty line. A nil callback discards that channel's
	// output.
	OnStdout func(line string)
	OnStderr func(line string)

	// Logger receives spawn and exit diagnostics. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// Run spawns the command and delivers its output line by line until
// the process exits and both output pipes drain. A nonzero exit status
// is returned as *ExitError; any other failure (spawn, pipe, signal,
// context cancellation) is returned as an ordinary wrapped error.
//
// The child runs in its own process group so that context cancellation
// kills the command and all of its children. Without Setpgid only the
// direct child receives the signal; grandchildren survive and hold the
// output pipes open, and Run would block draining them.
func Run(ctx context.Context, spec Spec) error {
	logger := spec.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("opening stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", spec.Command, err)
	}
	logger.Debug("process started", "command", spec.Command, "pid", cmd.Process.Pid)

	// The pipes are owned by the streams from here on. exec.Cmd.Wait
	// must not run until both streams finish reading, or it closes the
	// pipes out from under them.
	outDone := pumpLines(stdout, spec.OnStdout)
	errDone := pumpLines(stderr, spec.OnStderr)
	<-outDone
	<-errDone

	waitErr := cmd.Wait()
	if waitErr == nil {
		logger.Debug("process exited", "command", spec.Command, "code", 0)
		return nil
	}

	var exitError *exec.ExitError
	if errors.As(waitErr, &exitError) {
		code := exitError.ExitCode()
		logger.Debug("process exited", "command", spec.Command, "code", code)
		return &ExitError{Code: code}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("running %s: %w", spec.Command, ctxErr)
	}
	return fmt.Errorf("running %s: %w", spec.Command, waitErr)
}

// pumpLines splits one output pipe into lines and feeds the callback.
// The returned channel closes when the pipe reaches EOF or fails and
// every line has been delivered.
//
// Empty lines are held back until the next line arrives: the splitter
// ends every stream with a flush of whatever followed the last newline,
// so for clean-ending output the very last delivery is an empty string
// that is not a line the process wrote. Holding empties lets that
// flush be dropped at end of stream without delaying real output.
func pumpLines(pipe io.ReadCloser, onLine func(string)) <-chan struct{} {
	if onLine == nil {
		onLine = func(string) {}
	}
	s := stream.FromReader(pipe)
	pendingEmpties := 0
	stream.SplitLines(s, func(line string) {
		if line == "" {
			pendingEmpties++
			return
		}
		for ; pendingEmpties > 0; pendingEmpties-- {
			onLine("")
		}
		onLine(line)
	})

	done := make(chan struct{})
	go func() {
		<-s.Done()
		keep := pendingEmpties
		if s.Err() == nil && keep > 0 {
			// On a clean end the last held empty is the splitter's
			// end-of-stream flush, not a line the process wrote. A
			// failed pipe never flushed, so every held empty is real.
			keep--
		}
		for ; keep > 0; keep-- {
			onLine("")
		}
		close(done)
	}()
	return done
}
