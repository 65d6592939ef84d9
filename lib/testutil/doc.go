// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Coder packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. Stream and
// extraction tests use these to turn a would-be hang (a pipeline stage
// waiting forever on input after an upstream failure) into a bounded
// test failure.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// directory names or line payloads.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Coder-internal dependencies.
package testutil
