// Package logging provides the structured logger used throughout the ring
// node, client, and monitoring surface. It wraps zerolog with rotation
// (lumberjack) and optional async writing (diode).
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is a map of fields to attach to a log entry.
type Fields map[string]any

var (
	instance *Logger
	once     sync.Once
	mu       sync.RWMutex

	timeFormatOnce sync.Once
	stackOnce      sync.Once
	callerSkipOnce sync.Once
)

// Logger wraps zerolog with dynamic level updates and a persistent field set.
type Logger struct {
	*zerolog.Logger
	config *Config
	fields Fields
	mu     sync.RWMutex
}

// Config holds logger configuration.
type Config struct {
	Level                string         `json:"level" yaml:"level"`
	Format               string         `json:"format" yaml:"format"`
	TimestampFormat      string         `json:"timestamp_format" yaml:"timestamp_format"`
	Console              ConsoleConfig  `json:"console" yaml:"console"`
	File                 FileConfig     `json:"file" yaml:"file"`
	Sampling             SamplingConfig `json:"sampling" yaml:"sampling"`
	Fields               Fields         `json:"fields" yaml:"fields"`
	CallerSkipFrameCount int            `json:"caller_skip_frame_count" yaml:"caller_skip_frame_count"`
	EnableCaller         bool           `json:"enable_caller" yaml:"enable_caller"`
	EnableStackTrace     bool           `json:"enable_stack_trace" yaml:"enable_stack_trace"`
	AsyncWrite           bool           `json:"async_write" yaml:"async_write"`
	BufferSize           int            `json:"buffer_size" yaml:"buffer_size"`
}

// ConsoleConfig controls console output.
type ConsoleConfig struct {
	Enable     bool   `json:"enable" yaml:"enable"`
	NoColor    bool   `json:"no_color" yaml:"no_color"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
	Output     string `json:"output" yaml:"output"`
}

// FileConfig controls rotated file output.
type FileConfig struct {
	Enable     bool   `json:"enable" yaml:"enable"`
	Path       string `json:"path" yaml:"path"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	LocalTime  bool   `json:"local_time" yaml:"local_time"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// SamplingConfig controls log sampling under high volume.
type SamplingConfig struct {
	Enable     bool   `json:"enable" yaml:"enable"`
	Initial    uint32 `json:"initial" yaml:"initial"`
	Thereafter uint32 `json:"thereafter" yaml:"thereafter"`
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:           "info",
		Format:          "console",
		TimestampFormat: time.RFC3339Nano,
		Console: ConsoleConfig{
			Enable:     true,
			TimeFormat: "15:04:05.000",
			Output:     "stdout",
		},
		File: FileConfig{
			Enable:     false,
			Path:       "torus.log",
			MaxSize:    100,
			MaxAge:     30,
			MaxBackups: 10,
			LocalTime:  true,
			Compress:   true,
		},
		Sampling: SamplingConfig{
			Enable:     false,
			Initial:    100,
			Thereafter: 100,
		},
		Fields:               make(Fields),
		CallerSkipFrameCount: 2,
		EnableCaller:         true,
		EnableStackTrace:     true,
		AsyncWrite:           false,
		BufferSize:           10000,
	}
}

// Init builds a logger from config and installs it as the global instance.
func Init(config *Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}
	SetGlobal(logger)
	return nil
}

// New builds a logger from config. A nil config uses DefaultConfig.
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if config.Console.Enable {
		var output io.Writer = os.Stdout
		if config.Console.Output == "stderr" {
			output = os.Stderr
		}

		if config.Format == "console" {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: config.Console.TimeFormat,
				NoColor:    config.Console.NoColor,
			})
		} else {
			writers = append(writers, output)
		}
	}

	if config.File.Enable {
		if err := os.MkdirAll(filepath.Dir(config.File.Path), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.File.Path,
			MaxSize:    config.File.MaxSize,
			MaxAge:     config.File.MaxAge,
			MaxBackups: config.File.MaxBackups,
			LocalTime:  config.File.LocalTime,
			Compress:   config.File.Compress,
		})
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	if config.AsyncWrite {
		writer = diode.NewWriter(writer, config.BufferSize, time.Second, func(missed int) {
			fmt.Fprintf(os.Stderr, "logger dropped %d messages\n", missed)
		})
	}

	if config.EnableCaller {
		callerSkipOnce.Do(func() {
			zerolog.CallerSkipFrameCount = config.CallerSkipFrameCount
		})
	}

	ctx := zerolog.New(writer).Level(level).With().Timestamp()
	if config.EnableCaller {
		ctx = ctx.Caller()
	}
	for k, v := range config.Fields {
		ctx = ctx.Interface(k, v)
	}

	if config.EnableStackTrace {
		stackOnce.Do(func() {
			zerolog.ErrorStackMarshaler = func(err error) any {
				return fmt.Sprintf("%+v", err)
			}
		})
	}

	var zl zerolog.Logger
	if config.Sampling.Enable {
		zl = ctx.Logger().Sample(&zerolog.BasicSampler{N: config.Sampling.Initial})
	} else {
		zl = ctx.Logger()
	}

	if config.TimestampFormat != "" {
		timeFormatOnce.Do(func() {
			zerolog.TimeFieldFormat = config.TimestampFormat
		})
	}

	return &Logger{Logger: &zl, config: config, fields: make(Fields)}, nil
}

// SetGlobal installs l as the process-wide logger.
func SetGlobal(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	instance = l
}

// Get returns the process-wide logger, lazily building a default one.
func Get() *Logger {
	once.Do(func() {
		if instance == nil {
			l, _ := New(DefaultConfig())
			instance = l
		}
	})
	return instance
}

// WithContext returns a child logger carrying trace/request IDs found on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	zctx := l.Logger.With()
	if traceID := ctx.Value("trace_id"); traceID != nil {
		zctx = zctx.Str("trace_id", fmt.Sprint(traceID))
	}
	if reqID := ctx.Value("request_id"); reqID != nil {
		zctx = zctx.Str("request_id", fmt.Sprint(reqID))
	}

	zl := zctx.Logger()
	return &Logger{Logger: &zl, config: l.config, fields: l.fields}
}

// UpdateLevel changes the logger's minimum level at runtime.
func (l *Logger) UpdateLevel(level string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	newLogger := l.Logger.Level(lvl)
	l.Logger = &newLogger
	l.config.Level = level
	return nil
}

// WithFields returns a child logger with fields merged into every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))

	l.mu.RLock()
	for k, v := range l.fields {
		merged[k] = v
	}
	base := l.Logger
	l.mu.RUnlock()

	for k, v := range fields {
		merged[k] = v
	}

	ctx := base.With()
	for k, v := range merged {
		ctx = ctx.Interface(k, v)
	}

	zl := ctx.Logger()
	return &Logger{Logger: &zl, config: l.config, fields: merged}
}

// WithError returns a child logger with error details attached.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields(Fields{"error": err.Error(), "error_type": fmt.Sprintf("%T", err)})
}

// Debug logs at debug level on the global logger.
func Debug() *zerolog.Event { return Get().Debug() }

// Info logs at info level on the global logger.
func Info() *zerolog.Event { return Get().Info() }

// Warn logs at warn level on the global logger.
func Warn() *zerolog.Event { return Get().Warn() }

// Error logs at error level on the global logger.
func Error() *zerolog.Event { return Get().Error() }

// Fatal logs at fatal level on the global logger and exits.
func Fatal() *zerolog.Event { return Get().Fatal() }

// Close waits 100ms when async writing is enabled so the diode writer can
// drain buffered entries; it does not close the underlying writers.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.config.AsyncWrite {
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
