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
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is a single structured log event.
//
// Entries are append-only: once recorded in an Aggregator they are never
// mutated or removed except by an explicit Clear.
type Entry struct {
	// Timestamp is the time the entry was emitted.
	Timestamp time.Time
	// Level is the severity of the entry.
	Level Level
	// Source identifies the emitting component.
	Source Source
	// Message is the human-readable message.
	Message string
	// Context contains optional structured key-value pairs.
	Context map[string]interface{}
}

// Formatter renders an Entry into bytes for console output.
//
// Built-in formatters are TextFormatter and JSONFormatter. Custom formatters
// can be plugged into a DefaultLogger for specialized output.
type Formatter interface {
	Format(entry Entry) ([]byte, error)
}

// TextFormatter outputs human-readable text logs.
type TextFormatter struct {
	// TimeFormat sets the time format string. Empty disables timestamps.
	TimeFormat string
	// ShowLevel controls whether to show the level prefix (e.g., [info]).
	ShowLevel bool
}

// Format formats an entry as a single text line.
// Context keys are sorted so output is stable.
func (f *TextFormatter) Format(entry Entry) ([]byte, error) {
	var parts []string

	if f.TimeFormat != "" {
		parts = append(parts, entry.Timestamp.Format(f.TimeFormat))
	}

	if f.ShowLevel {
		parts = append(parts, fmt.Sprintf("[%s]", entry.Level))
	}

	if entry.Source != "" {
		parts = append(parts, fmt.Sprintf("(%s)", entry.Source))
	}

	parts = append(parts, entry.Message)

	if len(entry.Context) > 0 {
		keys := make([]string, 0, len(entry.Context))
		for k := range entry.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fieldParts := make([]string, 0, len(keys))
		for _, k := range keys {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", k, entry.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("{%s}", strings.Join(fieldParts, ", ")))
	}

	return []byte(strings.Join(parts, " ") + "\n"), nil
}

// jsonEntry is the serialization format for JSON log output.
type jsonEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Source    string                 `json:"source,omitempty"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// JSONFormatter outputs structured JSON logs.
type JSONFormatter struct {
	// TimeFormat sets the time format string. Defaults to time.RFC3339.
	TimeFormat string
}

// Format formats an entry as a JSON object.
func (f *JSONFormatter) Format(entry Entry) ([]byte, error) {
	timeFmt := f.TimeFormat
	if timeFmt == "" {
		timeFmt = time.RFC3339
	}

	je := jsonEntry{
		Timestamp: entry.Timestamp.Format(timeFmt),
		Level:     entry.Level.String(),
		Source:    string(entry.Source),
		Message:   entry.Message,
	}
	if len(entry.Context) > 0 {
		je.Context = entry.Context
	}

	data, err := json.Marshal(je)
	if err != nil {
		fallback := fmt.Sprintf(`{"level":"%s","message":%q,"error":"json marshal failed"}`+"\n",
			entry.Level, entry.Message)
		return []byte(fallback), nil
	}

	return append(data, '\n'), nil
}
