// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine adapts a local inference server into the chat capability.
package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// =============================================================================
// TOKEN STREAM
// =============================================================================

// TokenStream is the per-turn handle consumers use to read streamed tokens.
// Tokens() yields fragments in order; Wait() blocks until the stream is done
// and returns the accumulated text or the terminal error. After the channel
// closes no more tokens are ever delivered through the handle.
type TokenStream interface {
	Tokens() <-chan string
	Wait() (string, error)
}

// Stream reads NDJSON chat responses from the server and delivers the content
// fragments. One Stream corresponds to exactly one generation turn.
type Stream struct {
	tokens chan string
	done   chan struct{}

	// Set by the producer goroutine before done is closed.
	text string
	err  error
}

// newStream starts a producer goroutine that owns body and closes it when the
// stream ends for any reason.
func newStream(ctx context.Context, body io.ReadCloser) *Stream {
	s := &Stream{
		tokens: make(chan string, 32),
		done:   make(chan struct{}),
	}
	go s.run(ctx, body)
	return s
}

// Tokens returns the channel of content fragments. The channel is closed when
// the stream ends, whether by completion, error, or cancellation.
func (s *Stream) Tokens() <-chan string {
	return s.tokens
}

// Wait blocks until the stream has ended and returns the full accumulated
// text. On cancellation it returns the context error and the partial text
// accumulated so far; callers decide whether to keep it.
func (s *Stream) Wait() (string, error) {
	<-s.done
	return s.text, s.err
}

func (s *Stream) run(ctx context.Context, body io.ReadCloser) {
	defer close(s.done)
	defer close(s.tokens)
	defer body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp ChatResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// A malformed line mid-stream means the envelope may be an error.
			var se serverError
			if json.Unmarshal(line, &se) == nil && se.Error != "" {
				s.text = sb.String()
				s.err = mapServerError(0, line)
				return
			}
			continue
		}

		if resp.Message.Content != "" {
			select {
			case s.tokens <- resp.Message.Content:
				sb.WriteString(resp.Message.Content)
			case <-ctx.Done():
				s.text = sb.String()
				s.err = ctx.Err()
				return
			}
		}

		if resp.Done {
			s.text = sb.String()
			return
		}
	}

	s.text = sb.String()
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			s.err = ctx.Err()
			return
		}
		s.err = &ClientError{Code: CodeConnection, Message: "stream interrupted", Cause: err}
		return
	}
	if ctx.Err() != nil {
		s.err = ctx.Err()
	}
	// Body ended without a done marker and without a scanner error: treat the
	// partial text as the final answer rather than dropping it.
}
