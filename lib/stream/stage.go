// Copyright 2026 The Coder Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Stage is one step of a byte pipeline. Feed delivers a chunk, Finish
// signals that no more chunks will arrive and blocks until the stage
// (and everything downstream) has drained, and Fail destroys the stage
// with an upstream error.
//
// Every stage implementation must uphold the cascade invariant: its
// own failure — whether delivered via Fail or discovered internally —
// destroys the next stage with that error, exactly once. Finish and
// Fail are mutually exclusive terminal calls.
type Stage interface {
	Feed(chunk []byte) error
	Finish() error
	Fail(err error)
}

// Bind wires a stream to the first stage of a pipeline and resumes the
// stream: chunks feed the stage, end finishes it, and a stream error
// destroys it. Subscribe-then-Resume ordering means the first chunk
// cannot arrive before the stage is listening.
func Bind(s *Stream, first Stage) {
	s.Subscribe(Handlers{
		Data:  first.Feed,
		End:   first.Finish,
		Error: first.Fail,
	})
	s.Resume()
}

// TransformStage adapts a pull-based decoder (gzip, zstd, lz4) into a
// Stage. Fed chunks enter an in-process pipe; a pump goroutine reads
// the decoder's output and feeds it to the next stage. The pump is the
// only place decode errors surface, and it routes them into the next
// stage per the cascade invariant.
type TransformStage struct {
	name  string
	next  Stage
	input *io.PipeWriter
	done  chan struct{}

	// terminal guards the single terminal action: recording the
	// stage's outcome and either finishing or failing the next stage.
	terminal sync.Once
	err      error
}

// NewTransform returns a running transform stage. The open function
// wraps the stage's input (the raw fed bytes) in a decoding reader; it
// is called on the pump goroutine because decoders like gzip read a
// header from the input during construction.
func NewTransform(name string, open func(io.Reader) (io.Reader, error), next Stage) *TransformStage {
	reader, writer := io.Pipe()
	stage := &TransformStage{
		name:  name,
		next:  next,
		input: writer,
		done:  make(chan struct{}),
	}
	go stage.pump(reader, open)
	return stage
}

func (stage *TransformStage) pump(reader *io.PipeReader, open func(io.Reader) (io.Reader, error)) {
	defer close(stage.done)

	decoded, err := open(reader)
	if err != nil {
		wrapped := fmt.Errorf("%s: %w", stage.name, err)
		stage.fail(wrapped)
		reader.CloseWithError(wrapped)
		return
	}
	if closer, ok := decoded.(io.Closer); ok {
		// Decoders like zstd hold resources until closed.
		defer closer.Close()
	}

	buffer := make([]byte, 32*1024)
	for {
		n, readErr := decoded.Read(buffer)
		if n > 0 {
			if feedErr := stage.next.Feed(buffer[:n]); feedErr != nil {
				stage.fail(feedErr)
				reader.CloseWithError(feedErr)
				return
			}
		}
		if readErr == io.EOF {
			stage.terminal.Do(func() {
				stage.err = stage.next.Finish()
			})
			return
		}
		if readErr != nil {
			stage.fail(fmt.Errorf("%s: %w", stage.name, readErr))
			return
		}
	}
}

// fail records the stage's outcome and destroys the next stage,
// exactly once across internal errors and external Fail calls.
func (stage *TransformStage) fail(err error) {
	stage.terminal.Do(func() {
		stage.err = err
		stage.next.Fail(err)
	})
}

// Feed writes a chunk into the decoder's input. Blocks until the pump
// has consumed it — backpressure travels through the pipe. Returns an
// error after the stage has failed.
func (stage *TransformStage) Feed(chunk []byte) error {
	if _, err := stage.input.Write(chunk); err != nil {
		return fmt.Errorf("%s: %w", stage.name, err)
	}
	return nil
}

// Finish closes the input, waits for the pump to drain the decoder
// into the next stage, and returns the pipeline's outcome.
func (stage *TransformStage) Finish() error {
	stage.input.Close()
	<-stage.done
	return stage.err
}

// Fail destroys the stage with an upstream error: the next stage is
// failed with the same error and the pump is unblocked.
func (stage *TransformStage) Fail(err error) {
	stage.fail(err)
	stage.input.CloseWithError(err)
}

// SinkStage is a terminal Stage driving a consumer function that reads
// the staged bytes to completion (a tar extractor, a file writer). The
// consumer runs on its own goroutine; Wait exposes its outcome as the
// pipeline's completion.
type SinkStage struct {
	name  string
	input *io.PipeWriter
	done  chan struct{}

	terminal sync.Once
	err      error
}

// NewSink returns a running sink stage around the consumer.
func NewSink(name string, consume func(io.Reader) error) *SinkStage {
	reader, writer := io.Pipe()
	stage := &SinkStage{
		name:  name,
		input: writer,
		done:  make(chan struct{}),
	}
	go func() {
		err := consume(reader)
		if err != nil {
			err = fmt.Errorf("%s: %w", stage.name, err)
		}
		// Unblock a producer still writing after a consumer error.
		reader.CloseWithError(err)
		stage.terminal.Do(func() {
			stage.err = err
		})
		close(stage.done)
	}()
	return stage
}

// Feed writes a chunk to the consumer, blocking until it is read.
func (stage *SinkStage) Feed(chunk []byte) error {
	if _, err := stage.input.Write(chunk); err != nil {
		return fmt.Errorf("%s: %w", stage.name, err)
	}
	return nil
}

// Finish closes the input, waits for the consumer to complete, and
// returns its outcome.
func (stage *SinkStage) Finish() error {
	stage.input.Close()
	<-stage.done
	return stage.err
}

// Fail destroys the sink with an upstream error. The error becomes the
// stage's outcome (taking precedence over whatever the interrupted
// consumer returns) and the consumer's input is poisoned so it stops.
func (stage *SinkStage) Fail(err error) {
	stage.terminal.Do(func() {
		stage.err = err
	})
	stage.input.CloseWithError(err)
}

// Wait blocks until the consumer completes and returns the pipeline's
// outcome. If ctx is cancelled first, the sink is failed with ctx.Err()
// and Wait returns after the consumer has actually stopped — a
// cancelled extraction never leaves the consumer running.
func (stage *SinkStage) Wait(ctx context.Context) error {
	select {
	case <-stage.done:
		return stage.err
	case <-ctx.Done():
		stage.Fail(ctx.Err())
		<-stage.done
		return stage.err
	}
}
