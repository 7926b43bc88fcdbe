package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stephnangue/appcred/logger"
)

// ErrSinkClosed is returned by writes to a closed BufferedSink.
var ErrSinkClosed = errors.New("audit sink is closed")

// BufferedSink batches entries in memory and hands them to the wrapped sink
// when the batch is full, on a timer, and on Close.
type BufferedSink struct {
	mu      sync.Mutex
	sink    Sink
	pending [][]byte
	size    int
	closed  bool

	flushPeriod time.Duration
	stop        chan struct{}
	stopped     chan struct{}
	log         *logger.GatedLogger
}

// BufferedSinkConfig contains configuration for buffered sink
type BufferedSinkConfig struct {
	Sink        Sink
	BufferSize  int           // Entries held before a flush (default 100)
	FlushPeriod time.Duration // Time between automatic flushes (default 5s)
	Logger      *logger.GatedLogger
}

// NewBufferedSink creates a new buffered sink
func NewBufferedSink(config BufferedSinkConfig) (*BufferedSink, error) {
	if config.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushPeriod <= 0 {
		config.FlushPeriod = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logger.NewNullLogger()
	}

	bs := &BufferedSink{
		sink:        config.Sink,
		pending:     make([][]byte, 0, config.BufferSize),
		size:        config.BufferSize,
		flushPeriod: config.FlushPeriod,
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
		log:         config.Logger,
	}
	go bs.flushLoop()
	return bs, nil
}

// Write queues a copy of entry.
func (bs *BufferedSink) Write(ctx context.Context, entry []byte) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.closed {
		return ErrSinkClosed
	}
	bs.pending = append(bs.pending, append([]byte(nil), entry...))
	if len(bs.pending) >= bs.size {
		return bs.flushLocked(ctx)
	}
	return nil
}

// Flush writes every queued entry to the wrapped sink.
func (bs *BufferedSink) Flush(ctx context.Context) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.flushLocked(ctx)
}

// flushLocked keeps entries that could not be written for the next flush.
func (bs *BufferedSink) flushLocked(ctx context.Context) error {
	for i, entry := range bs.pending {
		if err := bs.sink.Write(ctx, entry); err != nil {
			bs.pending = bs.pending[i:]
			return fmt.Errorf("failed to write buffered entry: %w", err)
		}
	}
	bs.pending = bs.pending[:0]
	return nil
}

func (bs *BufferedSink) flushLoop() {
	defer close(bs.stopped)

	ticker := time.NewTicker(bs.flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := bs.Flush(context.Background()); err != nil {
				bs.log.Warn("periodic audit flush failed",
					logger.String("sink", bs.sink.Name()),
					logger.Err(err))
			}
		case <-bs.stop:
			return
		}
	}
}

// Close stops the timer, flushes what is left and closes the wrapped sink.
func (bs *BufferedSink) Close() error {
	bs.mu.Lock()
	if bs.closed {
		bs.mu.Unlock()
		return nil
	}
	bs.closed = true
	bs.mu.Unlock()

	close(bs.stop)
	<-bs.stopped

	if err := bs.Flush(context.Background()); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	return bs.sink.Close()
}

// Name returns the sink name
func (bs *BufferedSink) Name() string {
	return bs.sink.Name()
}

// Type returns the sink type
func (bs *BufferedSink) Type() string {
	return "buffered-" + bs.sink.Type()
}
