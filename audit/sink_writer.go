package audit

import (
	"context"
	"io"
	"sync"
)

// WriterSink writes audit lines to an io.Writer such as stdout.
type WriterSink struct {
	mu   sync.Mutex
	name string
	w    io.Writer
}

// NewWriterSink creates a WriterSink.
func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, w: w}
}

func (s *WriterSink) Write(_ context.Context, entry []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(entry); err != nil {
		return err
	}
	_, err := s.w.Write([]byte{'\n'})
	return err
}

// Close closes the writer when it is an io.Closer.
func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *WriterSink) Name() string { return s.name }
func (s *WriterSink) Type() string { return "writer" }
