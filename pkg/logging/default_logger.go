// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Verify DefaultLogger implements Logger at compile time.
var _ Logger = (*DefaultLogger)(nil)

// LoggerOptions configures a DefaultLogger instance.
type LoggerOptions struct {
	// Level sets the minimum log level to output.
	Level Level
	// Format selects the output format (FormatText or FormatJSON).
	// Ignored if Formatter is set.
	Format Format
	// Formatter sets a custom formatter for log output.
	// If nil, a formatter is derived from Format, TimeFormat, and ShowLevel.
	Formatter Formatter
	// Output sets the io.Writer for log output. Defaults to os.Stderr.
	Output io.Writer
	// Source tags every entry emitted by this logger. Defaults to frontend.
	Source Source
	// TimeFormat sets the time format for text logs. Defaults to empty (no timestamp).
	// Only used when Formatter is nil.
	TimeFormat string
	// ShowLevel controls whether to show the log level in text output.
	// Only used when Formatter is nil.
	ShowLevel bool
}

// DefaultLogger renders entries to a writer with configurable level and
// pluggable formatter. It is the console mirror of the Aggregator's record.
type DefaultLogger struct {
	mu        sync.Mutex
	level     Level
	source    Source
	formatter Formatter
	out       io.Writer
	fields    map[string]interface{}
}

// NewLogger creates a console logger with the specified verbosity.
// If verbose is true, the level is set to LevelDebug; otherwise LevelInfo.
func NewLogger(verbose bool) *DefaultLogger {
	level := LevelInfo
	if verbose {
		level = LevelDebug
	}
	return &DefaultLogger{
		level:     level,
		source:    SourceFrontend,
		formatter: &TextFormatter{ShowLevel: true},
		out:       os.Stderr,
	}
}

// NewLoggerWithOptions creates a new DefaultLogger with the specified options.
func NewLoggerWithOptions(opts LoggerOptions) *DefaultLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	source := opts.Source
	if source == "" {
		source = SourceFrontend
	}

	formatter := opts.Formatter
	if formatter == nil {
		switch opts.Format {
		case FormatJSON:
			formatter = &JSONFormatter{TimeFormat: opts.TimeFormat}
		default:
			formatter = &TextFormatter{
				TimeFormat: opts.TimeFormat,
				ShowLevel:  opts.ShowLevel,
			}
		}
	}

	return &DefaultLogger{
		level:     opts.Level,
		source:    source,
		formatter: formatter,
		out:       out,
	}
}

// WithFields returns a new Logger with the given fields added to all entries.
// The original logger is not modified.
func (l *DefaultLogger) WithFields(fields map[string]interface{}) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &DefaultLogger{
		level:     l.level,
		source:    l.source,
		formatter: l.formatter,
		out:       l.out,
		fields:    merged,
	}
}

// WithField returns a new Logger with the given field added to all entries.
func (l *DefaultLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel sets the minimum log level.
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level.
func (l *DefaultLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetOutput sets the output writer.
func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

// log writes a log entry at the given level.
func (l *DefaultLogger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now(),
		Level:     level,
		Source:    l.source,
		Message:   fmt.Sprintf(format, args...),
		Context:   l.fields,
	}

	data, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(l.out, "logging error: %v\n", err)
		return
	}

	_, _ = l.out.Write(data)
}

// Debug logs a message at debug level.
func (l *DefaultLogger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs a message at info level.
func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Success logs a step-completed message.
func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.log(LevelSuccess, format, args...)
}

// Warning logs a message at warning level.
func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.log(LevelWarning, format, args...)
}

// Error logs a message at error level.
func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}
