// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package process runs child processes with their stdout and stderr
// delivered as whole lines, and provides the binary entrypoint helpers
// shared by Coder binaries:
//
//   - Run spawns a command and invokes a callback per complete output
//     line, reporting a nonzero exit as *ExitError.
//   - Fatal reports a fatal error to stderr when the structured logger
//     may not be initialized (pre-logger), then exits.
package process
