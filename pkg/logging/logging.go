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

// Package logging provides the structured event model for the signing
// workflow. Every component (workflow engine, backend client, card session,
// token adapter) emits source-tagged entries into a shared Aggregator, an
// append-only ordered sequence that the UI layer consumes. A Logger interface
// and a console DefaultLogger mirror the same entries for terminal output,
// and a Formatter interface makes the rendering pluggable (text, JSON).
package logging

import "strings"

// Level represents the severity level of a log entry.
type Level int

const (
	// LevelDebug is the most verbose level, used for protocol details.
	LevelDebug Level = iota
	// LevelInfo is used for general informational messages.
	LevelInfo
	// LevelSuccess marks the successful completion of a workflow step.
	LevelSuccess
	// LevelWarning indicates a degraded but non-fatal condition.
	LevelWarning
	// LevelError indicates a failure.
	LevelError
	// LevelSilent disables all logging output.
	LevelSilent
)

// String returns the string representation of a level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSilent:
		return "silent"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level.
// Returns LevelInfo if the string is not recognized.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "success":
		return LevelSuccess
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "silent", "none", "off":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Source identifies which component emitted a log entry.
type Source string

const (
	// SourceFrontend is the workflow engine and CLI layer.
	SourceFrontend Source = "frontend"
	// SourceBackend is the document preparation/finalization/verification service.
	SourceBackend Source = "backend"
	// SourceCard is the smart-card middleware session.
	SourceCard Source = "card"
	// SourceToken is the PKCS#11 token service.
	SourceToken Source = "token"
)

// ParseSource parses a string into a Source.
// Unrecognized strings map to SourceBackend, since the only free-form source
// strings this program sees come from backend response log arrays.
func ParseSource(s string) Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "frontend":
		return SourceFrontend
	case "card":
		return SourceCard
	case "token":
		return SourceToken
	default:
		return SourceBackend
	}
}

// Format represents the output format for console log rendering.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs structured JSON logs.
	FormatJSON
)

// String returns the string representation of a format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a string into a Format.
// Returns FormatText if the string is not recognized.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Logger defines the interface for source-tagged leveled logging.
//
// Implementations include DefaultLogger (console output) and the loggers
// returned by Aggregator.Source, which record entries in the aggregator.
type Logger interface {
	// Debug logs a message at debug level with printf-style formatting.
	Debug(format string, args ...interface{})
	// Info logs a message at info level with printf-style formatting.
	Info(format string, args ...interface{})
	// Success logs a step-completed message with printf-style formatting.
	Success(format string, args ...interface{})
	// Warning logs a message at warning level with printf-style formatting.
	Warning(format string, args ...interface{})
	// Error logs a message at error level with printf-style formatting.
	Error(format string, args ...interface{})

	// GetLevel returns the current minimum log level.
	GetLevel() Level

	// WithField returns a new Logger with the given key-value pair attached
	// to every subsequent entry's context.
	WithField(key string, value interface{}) Logger
	// WithFields returns a new Logger with the given context fields attached.
	WithFields(fields map[string]interface{}) Logger
}

// Default returns a console Logger at info level.
func Default() Logger {
	return NewLogger(false)
}

// EnsureLogger returns l if non-nil, otherwise a default console logger.
// Use this to provide a fallback when no logger is configured.
func EnsureLogger(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
