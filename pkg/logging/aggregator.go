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
	"sync"
	"time"
)

// Aggregator is an append-only, ordered sequence of log entries shared by
// all workflow components. Ordering is emission order. Entries are never
// mutated or removed except by an explicit Clear.
//
// An optional mirror logger receives every appended entry, so the same
// events can be rendered on a console while the aggregator keeps the record.
type Aggregator struct {
	mu      sync.Mutex
	entries []Entry
	mirror  Logger
}

// NewAggregator creates an empty aggregator.
// If mirror is non-nil, every appended entry is also forwarded to it.
func NewAggregator(mirror Logger) *Aggregator {
	return &Aggregator{mirror: mirror}
}

// Append records an entry. A zero timestamp is filled with the current time.
func (a *Aggregator) Append(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	a.mu.Lock()
	a.entries = append(a.entries, entry)
	mirror := a.mirror
	a.mu.Unlock()

	if mirror != nil {
		forward(mirror, entry)
	}
}

// Record builds an entry from its parts and appends it.
func (a *Aggregator) Record(level Level, source Source, message string, context map[string]interface{}) {
	a.Append(Entry{
		Level:   level,
		Source:  source,
		Message: message,
		Context: context,
	})
}

// Entries returns a snapshot copy of all recorded entries in emission order.
func (a *Aggregator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of recorded entries.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Clear removes all recorded entries.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}

// Source returns a Logger that records entries tagged with the given source.
// Components hold one of these rather than the aggregator itself.
func (a *Aggregator) Source(source Source) Logger {
	return &sourceLogger{agg: a, source: source}
}

// forward replays an entry onto a plain Logger, preserving level and context.
func forward(l Logger, entry Entry) {
	if len(entry.Context) > 0 {
		l = l.WithFields(entry.Context)
	}
	msg := entry.Message
	if entry.Source != "" {
		l = l.WithField("source", string(entry.Source))
	}

	switch entry.Level {
	case LevelDebug:
		l.Debug("%s", msg)
	case LevelInfo:
		l.Info("%s", msg)
	case LevelSuccess:
		l.Success("%s", msg)
	case LevelWarning:
		l.Warning("%s", msg)
	case LevelError:
		l.Error("%s", msg)
	}
}

// Verify sourceLogger implements Logger at compile time.
var _ Logger = (*sourceLogger)(nil)

// sourceLogger appends every message to the aggregator under a fixed source.
type sourceLogger struct {
	agg    *Aggregator
	source Source
	fields map[string]interface{}
}

func (s *sourceLogger) log(level Level, format string, args ...interface{}) {
	s.agg.Record(level, s.source, fmt.Sprintf(format, args...), s.fields)
}

func (s *sourceLogger) Debug(format string, args ...interface{}) {
	s.log(LevelDebug, format, args...)
}

func (s *sourceLogger) Info(format string, args ...interface{}) {
	s.log(LevelInfo, format, args...)
}

func (s *sourceLogger) Success(format string, args ...interface{}) {
	s.log(LevelSuccess, format, args...)
}

func (s *sourceLogger) Warning(format string, args ...interface{}) {
	s.log(LevelWarning, format, args...)
}

func (s *sourceLogger) Error(format string, args ...interface{}) {
	s.log(LevelError, format, args...)
}

// GetLevel always reports debug: the aggregator records everything and
// filtering is a rendering concern.
func (s *sourceLogger) GetLevel() Level {
	return LevelDebug
}

func (s *sourceLogger) WithFields(fields map[string]interface{}) Logger {
	merged := make(map[string]interface{}, len(s.fields)+len(fields))
	for k, v := range s.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &sourceLogger{agg: s.agg, source: s.source, fields: merged}
}

func (s *sourceLogger) WithField(key string, value interface{}) Logger {
	return s.WithFields(map[string]interface{}{key: value})
}
