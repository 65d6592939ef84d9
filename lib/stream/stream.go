// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream models push-delivered byte streams and the staged
// pipelines that consume them.
//
// A Stream carries an ordered sequence of byte chunks from a single
// producer to a single subscriber, terminated by exactly one end or
// error event. Streams are created paused: the producer blocks until
// the consumer has attached its handlers and called Resume, so no
// chunk is ever lost to the window between stream creation and
// listener wiring.
//
// A Stage is one step of a processing pipeline (a decompressor, an
// archive writer). Stages are chained by construction — each stage
// holds the next — and the chain carries one invariant: when a stage
// fails, it destroys the next stage with the same error. A failure
// anywhere upstream therefore reaches the terminal stage instead of
// leaving it waiting forever on input that will never arrive.
package stream

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned by Push and End after the stream has already
// ended or failed.
var ErrClosed = errors.New("stream: already closed")

// Handlers receives a stream's events. Data is invoked once per chunk
// in arrival order; exactly one of End or Error follows the last chunk.
// A non-nil error returned from Data is propagated to the producer
// through Push, telling it to stop.
type Handlers struct {
	Data  func(chunk []byte) error
	End   func() error
	Error func(err error)
}

// Stream is a pausable push byte stream. The producer calls Push, End,
// and Fail from a single goroutine; the consumer calls Subscribe,
// Pause, and Resume. All three producer calls block while the stream
// is paused, which is both the loss-prevention handshake and the
// backpressure mechanism: a paused or slow consumer stalls the
// producer instead of dropping or buffering chunks.
type Stream struct {
	mu       sync.Mutex
	gate     *sync.Cond
	paused   bool
	closed   bool
	err      error
	handlers Handlers
	done     chan struct{}
}

// New returns a paused stream with no subscriber. Call Subscribe and
// then Resume to start the flow.
func New() *Stream {
	s := &Stream{paused: true, done: make(chan struct{})}
	s.gate = sync.NewCond(&s.mu)
	return s
}

// Subscribe attaches the event handlers. It must be called before the
// stream is resumed; later calls replace the handlers and are only
// safe while the stream is paused.
func (s *Stream) Subscribe(handlers Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = handlers
}

// Pause stops event delivery. Producer calls block until Resume.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume opens the gate and unblocks any waiting producer call.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.gate.Broadcast()
}

// waitOpen blocks until the stream is flowing (or closed) and returns
// the current handlers. Callers must not hold the lock.
func (s *Stream) waitOpen() (Handlers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.closed {
		s.gate.Wait()
	}
	return s.handlers, !s.closed
}

// Push delivers one chunk to the subscriber, blocking while the stream
// is paused. The chunk may be retained by the subscriber; the producer
// must not reuse it. Returns ErrClosed after End or Fail, or the error
// returned by the subscriber's Data handler.
func (s *Stream) Push(chunk []byte) error {
	handlers, open := s.waitOpen()
	if !open {
		return ErrClosed
	}
	if handlers.Data == nil {
		return nil
	}
	return handlers.Data(chunk)
}

// End signals that no more chunks will arrive and invokes the End
// handler exactly once. Like Push, it blocks while paused. Returns the
// handler's error, or ErrClosed if the stream already ended or failed.
func (s *Stream) End() error {
	handlers, open := s.close(nil)
	if !open {
		return ErrClosed
	}
	var err error
	if handlers.End != nil {
		err = handlers.End()
	}
	close(s.done)
	return err
}

// Fail signals that the producer encountered an error. The Error
// handler is invoked exactly once; a second Fail (or a Fail after End)
// is ignored. Like Push, it blocks while paused so a pre-wiring error
// is not lost.
func (s *Stream) Fail(err error) {
	handlers, open := s.close(err)
	if !open {
		return
	}
	if handlers.Error != nil {
		handlers.Error(err)
	}
	close(s.done)
}

// close marks the stream closed and records the terminal error. It
// reports whether this call performed the transition.
func (s *Stream) close(err error) (Handlers, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.paused && !s.closed {
		s.gate.Wait()
	}
	if s.closed {
		return Handlers{}, false
	}
	s.closed = true
	s.err = err
	return s.handlers, true
}

// Done is closed after the terminal event (end or error) has been
// fully dispatched to the subscriber.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err returns the stream's terminal error, or nil if the stream ended
// normally or has not terminated yet.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FromReader bridges a pull-based byte source into a paused Stream. A
// goroutine reads chunks and pushes them until EOF (End), a read error
// (Fail), or a subscriber error (the stream is failed with it). The
// reader is closed when the goroutine exits, so the stream owns the
// reader's lifetime — callers hand over, for example, an HTTP response
// body or a process pipe and observe completion through the stream.
func FromReader(reader io.ReadCloser) *Stream {
	s := New()
	go func() {
		defer reader.Close()
		buffer := make([]byte, 32*1024)
		for {
			n, readErr := reader.Read(buffer)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				if pushErr := s.Push(chunk); pushErr != nil {
					if pushErr != ErrClosed {
						s.Fail(pushErr)
					}
					return
				}
			}
			if readErr == io.EOF {
				_ = s.End()
				return
			}
			if readErr != nil {
				s.Fail(readErr)
				return
			}
		}
	}()
	return s
}
