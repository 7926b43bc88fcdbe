package logger

import (
	"fmt"
	"io"
	"os"
)

// Config holds the configuration for the logger
type Config struct {
	Level        LogLevel
	Format       OutputFormat
	Outputs      []io.Writer
	Subsystem    string
	FileConfig   *FileConfig
	EnableCaller bool
}

// FileConfig holds file rotation configuration
type FileConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// DefaultConfig returns a console configuration at info level
func DefaultConfig() *Config {
	return &Config{
		Level:   InfoLevel,
		Format:  DefaultFormat,
		Outputs: []io.Writer{os.Stderr},
	}
}

// DefaultFileConfig returns a rotation policy for the given file
func DefaultFileConfig(filename string) *FileConfig {
	return &FileConfig{
		Filename:   filename,
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 10,
		Compress:   true,
	}
}

// ProductionConfig returns a JSON configuration that also writes to a rotated file
func ProductionConfig(appName string) *Config {
	return &Config{
		Level:        InfoLevel,
		Format:       JSONFormat,
		Outputs:      []io.Writer{os.Stderr},
		FileConfig:   DefaultFileConfig(fmt.Sprintf("logs/%s.log", appName)),
		EnableCaller: true,
	}
}

// NewTestLogger returns a gated logger with an open gate writing JSON to w.
func NewTestLogger(w io.Writer) *GatedLogger {
	l, _ := NewGatedLogger(&Config{
		Level:   TraceLevel,
		Format:  JSONFormat,
		Outputs: []io.Writer{w},
	}, GatedWriterConfig{Underlying: w, InitialState: GateOpen})
	return l
}

// NewNullLogger returns a logger that discards everything.
func NewNullLogger() *GatedLogger {
	return NewTestLogger(io.Discard)
}
