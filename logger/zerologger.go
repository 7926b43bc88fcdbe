package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

func (f StringField) apply(e *zerolog.Event) *zerolog.Event   { return e.Str(f.Key, f.Value) }
func (f IntField) apply(e *zerolog.Event) *zerolog.Event      { return e.Int(f.Key, f.Value) }
func (f BoolField) apply(e *zerolog.Event) *zerolog.Event     { return e.Bool(f.Key, f.Value) }
func (f DurationField) apply(e *zerolog.Event) *zerolog.Event { return e.Dur(f.Key, f.Value) }
func (f ErrorField) apply(e *zerolog.Event) *zerolog.Event    { return e.AnErr(f.Key, f.Value) }
func (f AnyField) apply(e *zerolog.Event) *zerolog.Event      { return e.Interface(f.Key, f.Value) }

func (f StringField) key() string   { return f.Key }
func (f IntField) key() string      { return f.Key }
func (f BoolField) key() string     { return f.Key }
func (f DurationField) key() string { return f.Key }
func (f ErrorField) key() string    { return f.Key }
func (f AnyField) key() string      { return f.Key }

func (f StringField) value() any   { return f.Value }
func (f IntField) value() any      { return f.Value }
func (f BoolField) value() any     { return f.Value }
func (f DurationField) value() any { return f.Value }
func (f ErrorField) value() any {
	if f.Value == nil {
		return nil
	}
	return f.Value.Error()
}
func (f AnyField) value() any { return f.Value }

// ZerologLogger implements Logger using zerolog
type ZerologLogger struct {
	base       zerolog.Logger // without the module field
	logger     zerolog.Logger
	subsystem  string
	fileWriter *lumberjack.Logger
}

// NewZerologLogger creates a new ZerologLogger from config. A nil config
// uses DefaultConfig.
func NewZerologLogger(config *Config) Logger {
	if config == nil {
		config = DefaultConfig()
	}

	var writers []io.Writer
	var fileWriter *lumberjack.Logger

	if config.FileConfig != nil {
		if err := os.MkdirAll(filepath.Dir(config.FileConfig.Filename), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
		} else {
			fileWriter = &lumberjack.Logger{
				Filename:   config.FileConfig.Filename,
				MaxSize:    config.FileConfig.MaxSize,
				MaxAge:     config.FileConfig.MaxAge,
				MaxBackups: config.FileConfig.MaxBackups,
				Compress:   config.FileConfig.Compress,
				LocalTime:  true,
			}
			writers = append(writers, fileWriter)
		}
	}

	for _, output := range config.Outputs {
		if config.Format == DefaultFormat {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: "15:04:05",
				PartsOrder: []string{
					zerolog.TimestampFieldName,
					zerolog.LevelFieldName,
					"module",
					zerolog.MessageFieldName,
				},
			})
		} else {
			writers = append(writers, output)
		}
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	lvl := config.Level.zerolog()
	// The global level gates every logger; only ever lower it.
	if zerolog.GlobalLevel() > lvl {
		zerolog.SetGlobalLevel(lvl)
	}

	zctx := zerolog.New(w).Level(lvl).With().Timestamp()
	if config.EnableCaller {
		zctx = zctx.CallerWithSkipFrameCount(4)
	}
	return newChild(zctx.Logger(), config.Subsystem, fileWriter)
}

func newChild(base zerolog.Logger, subsystem string, fw *lumberjack.Logger) *ZerologLogger {
	l := base
	if subsystem != "" {
		l = base.With().Str("module", subsystem).Logger()
	}
	return &ZerologLogger{
		base:       base,
		logger:     l,
		subsystem:  subsystem,
		fileWriter: fw,
	}
}

func (zl *ZerologLogger) log(level zerolog.Level, msg string, fields []TypedField) {
	event := zl.logger.WithLevel(level)
	if event == nil {
		return
	}
	for _, f := range fields {
		event = f.apply(event)
	}
	event.Msg(msg)
}

func (zl *ZerologLogger) Trace(msg string, fields ...TypedField) {
	zl.log(zerolog.TraceLevel, msg, fields)
}

func (zl *ZerologLogger) Debug(msg string, fields ...TypedField) {
	zl.log(zerolog.DebugLevel, msg, fields)
}

func (zl *ZerologLogger) Info(msg string, fields ...TypedField) {
	zl.log(zerolog.InfoLevel, msg, fields)
}

func (zl *ZerologLogger) Warn(msg string, fields ...TypedField) {
	zl.log(zerolog.WarnLevel, msg, fields)
}

func (zl *ZerologLogger) Error(msg string, fields ...TypedField) {
	zl.log(zerolog.ErrorLevel, msg, fields)
}

func (zl *ZerologLogger) Tracef(format string, args ...any) { zl.logger.Trace().Msgf(format, args...) }
func (zl *ZerologLogger) Debugf(format string, args ...any) { zl.logger.Debug().Msgf(format, args...) }
func (zl *ZerologLogger) Infof(format string, args ...any)  { zl.logger.Info().Msgf(format, args...) }
func (zl *ZerologLogger) Warnf(format string, args ...any)  { zl.logger.Warn().Msgf(format, args...) }
func (zl *ZerologLogger) Errorf(format string, args ...any) { zl.logger.Error().Msgf(format, args...) }

// WithSubsystem creates a child logger tagged with a nested module name
func (zl *ZerologLogger) WithSubsystem(name string) Logger {
	sub := name
	if zl.subsystem != "" {
		sub = zl.subsystem + "." + name
	}
	return newChild(zl.base, sub, zl.fileWriter)
}

// WithFields creates a child logger carrying the given fields on every entry
func (zl *ZerologLogger) WithFields(fields ...TypedField) Logger {
	if len(fields) == 0 {
		return zl
	}
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.key()] = f.value()
	}
	return newChild(zl.base.With().Fields(m).Logger(), zl.subsystem, zl.fileWriter)
}

// IsLevelEnabled checks if a log level is enabled
func (zl *ZerologLogger) IsLevelEnabled(level LogLevel) bool {
	return zl.logger.GetLevel() <= level.zerolog()
}

// Close releases the rotated log file, if any
func (zl *ZerologLogger) Close() error {
	if zl.fileWriter != nil {
		return zl.fileWriter.Close()
	}
	return nil
}
