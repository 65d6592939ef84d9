// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "strings"

// lineSplitter accumulates bytes between newline boundaries. It never
// fails on its own: a stream error is the stream's concern and is not
// translated into a splitter error.
type lineSplitter struct {
	remainder string
	onLine    func(line string)
}

func (splitter *lineSplitter) Feed(chunk []byte) error {
	text := splitter.remainder + string(chunk)
	segments := strings.Split(text, "\n")
	// Every segment but the last ended at a newline and is a complete
	// line. The last segment is either empty (the chunk ended exactly
	// on a newline) or a partial line awaiting more data.
	for _, line := range segments[:len(segments)-1] {
		splitter.onLine(line)
	}
	splitter.remainder = segments[len(segments)-1]
	return nil
}

func (splitter *lineSplitter) Finish() error {
	splitter.onLine(splitter.remainder)
	splitter.remainder = ""
	return nil
}

func (splitter *lineSplitter) Fail(err error) {}

// SplitLines delivers the stream's content to onLine one line at a
// time, in arrival order, with the trailing "\n" stripped (carriage
// returns are left to the caller). At stream end the remainder is
// flushed exactly once — even when empty, so the callback fires at
// least once per stream. The sequence of emitted lines is independent
// of how the producer chunked the bytes.
//
// SplitLines resumes the stream; completion is observed through the
// stream's Done channel.
func SplitLines(s *Stream, onLine func(line string)) {
	Bind(s, &lineSplitter{onLine: onLine})
}
