package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink writes audit logs to a file rotated by lumberjack
type FileSink struct {
	mu     sync.Mutex
	path   string
	writer *lumberjack.Logger
}

// FileSinkConfig contains configuration for file sink
type FileSinkConfig struct {
	Path       string
	MaxSizeMB  int  // Rotate when the file reaches this size (0 = lumberjack default of 100MB)
	MaxBackups int  // Number of rotated files to keep (0 = all)
	MaxAgeDays int  // Days to keep rotated files (0 = forever)
	Compress   bool // Gzip rotated files
}

// NewFileSink creates a new file sink
func NewFileSink(config FileSinkConfig) (*FileSink, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("file path is required")
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &FileSink{
		path: config.Path,
		writer: &lumberjack.Logger{
			Filename:   config.Path,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		},
	}, nil
}

// Write writes an entry to the file
func (s *FileSink) Write(_ context.Context, entry []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := make([]byte, 0, len(entry)+1)
	line = append(append(line, entry...), '\n')
	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

// Rotate closes the current file and starts a new one.
func (s *FileSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Rotate()
}

// Close closes the file
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}

// Name returns the sink name
func (s *FileSink) Name() string {
	return s.path
}

// Type returns the sink type
func (s *FileSink) Type() string {
	return "file"
}
