package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with typed fields. Warn and error entries are also
// handed to the attached LogCollector, which backs the /api/logs panel.
type Logger struct {
	zl        zerolog.Logger
	collector *atomic.Pointer[LogCollector]
	fields    []Field
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // defaults to RFC3339Nano
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat
	zerolog.DurationFieldUnit = time.Millisecond

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05.000"}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(4).
		Logger()

	return &Logger{zl: zl, collector: new(atomic.Pointer[LogCollector])}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop(), collector: new(atomic.Pointer[LogCollector])}
}

// With returns a child logger that adds fields to every entry. The child
// shares the parent's collector.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		k, v := f.GetKeyValue()
		ctx = ctx.Interface(k, v)
	}
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{zl: ctx.Logger(), collector: l.collector, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(l.zl.Debug(), "", msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(l.zl.Info(), "", msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(l.zl.Warn(), "warn", msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(l.zl.Error(), "error", msg, fields) }

// log writes the event and, for panel levels, records it in the collector.
// It must be called directly from the exported level methods so the caller
// frame lines up.
func (l *Logger) log(event *zerolog.Event, panel, msg string, fields []Field) {
	if event != nil {
		for _, f := range fields {
			f.AddTo(event)
		}
		event.Msg(msg)
	}
	if panel == "" {
		return
	}
	c := l.collector.Load()
	if c == nil {
		return
	}

	fieldMap := make(map[string]interface{}, len(l.fields)+len(fields))
	for _, list := range [][]Field{l.fields, fields} {
		for _, f := range list {
			k, v := f.GetKeyValue()
			fieldMap[k] = v
		}
	}
	c.AddLog(panel, msg, fieldMap, callerOf(3))
}

// callerOf formats the frame skip levels up as dir/file.go:line.
func callerOf(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	if i := strings.LastIndex(file, "/"); i > 0 {
		if j := strings.LastIndex(file[:i], "/"); j >= 0 {
			file = file[j+1:]
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// AddCollector attaches a new collector, closing any previous one.
func (l *Logger) AddCollector(config *CollectionConfig) *LogCollector {
	c := NewLogCollector(config)
	if old := l.collector.Swap(c); old != nil {
		old.Close()
	}
	return c
}

// Collector returns the attached collector, or nil.
func (l *Logger) Collector() *LogCollector { return l.collector.Load() }

// Field types for structured logging.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type StringField struct {
	Key   string
	Value string
}

func (f StringField) AddTo(event *zerolog.Event)         { event.Str(f.Key, f.Value) }
func (f StringField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type StringsField struct {
	Key   string
	Value []string
}

func (f StringsField) AddTo(event *zerolog.Event)         { event.Strs(f.Key, f.Value) }
func (f StringsField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type IntField struct {
	Key   string
	Value int
}

func (f IntField) AddTo(event *zerolog.Event)         { event.Int(f.Key, f.Value) }
func (f IntField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type Int64Field struct {
	Key   string
	Value int64
}

func (f Int64Field) AddTo(event *zerolog.Event)         { event.Int64(f.Key, f.Value) }
func (f Int64Field) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type Float64Field struct {
	Key   string
	Value float64
}

func (f Float64Field) AddTo(event *zerolog.Event)         { event.Float64(f.Key, f.Value) }
func (f Float64Field) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type DurationField struct {
	Key   string
	Value time.Duration
}

func (f DurationField) AddTo(event *zerolog.Event)         { event.Dur(f.Key, f.Value) }
func (f DurationField) GetKeyValue() (string, interface{}) { return f.Key, f.Value.String() }

type ErrorField struct {
	Value error
}

func (f ErrorField) AddTo(event *zerolog.Event) { event.Err(f.Value) }
func (f ErrorField) GetKeyValue() (string, interface{}) {
	if f.Value == nil {
		return zerolog.ErrorFieldName, nil
	}
	return zerolog.ErrorFieldName, f.Value.Error()
}

type AnyField struct {
	Key   string
	Value interface{}
}

func (f AnyField) AddTo(event *zerolog.Event)         { event.Interface(f.Key, f.Value) }
func (f AnyField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

func String(key, value string) Field                 { return StringField{Key: key, Value: value} }
func Strings(key string, value []string) Field       { return StringsField{Key: key, Value: value} }
func Int(key string, value int) Field                { return IntField{Key: key, Value: value} }
func Int64(key string, value int64) Field            { return Int64Field{Key: key, Value: value} }
func Float64(key string, value float64) Field        { return Float64Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return DurationField{Key: key, Value: value} }
func Error(err error) Field                          { return ErrorField{Value: err} }
func Any(key string, value interface{}) Field        { return AnyField{Key: key, Value: value} }
