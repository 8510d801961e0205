package adapter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/m-mizutani/kristal/pkg/model"
)

var dataPrefix = []byte("data: ")

// Stream decodes a `data: <json>` line stream into events. It is pulled one
// event at a time, can not be restarted, and releases the body on every exit
// path: end of stream, read failure, or Close.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader

	event model.StreamEvent
	err   error
	done  bool

	closeOnce sync.Once
	closeErr  error
}

// NewStream wraps body. The stream owns body from now on.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next advances to the next decodable event. Lines without the data prefix
// and data lines that are not a JSON object are skipped. A partial line left
// at end of stream is discarded.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			s.done = true
			if !errors.Is(err, io.EOF) {
				s.err = newNetworkError("Failed to read response stream", err)
			}
			s.Close()
			return false
		}

		line = bytes.TrimRight(line[:len(line)-1], "\r")
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}

		var ev model.StreamEvent
		if err := json.Unmarshal(line[len(dataPrefix):], &ev); err != nil || ev == nil {
			continue
		}

		s.event = ev
		return true
	}
}

// Event returns the event decoded by the last successful Next
func (s *Stream) Event() model.StreamEvent {
	return s.event
}

// Err returns the read failure that ended the stream, if any
func (s *Stream) Err() error {
	return s.err
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.done = true
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// All yields the remaining events and closes the stream when iteration ends,
// including when the consumer breaks out early.
func (s *Stream) All() iter.Seq[model.StreamEvent] {
	return func(yield func(model.StreamEvent) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Event()) {
				return
			}
		}
	}
}
