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
	"testing"
	"time"
)

func TestTextFormatter_SortsContextKeys(t *testing.T) {
	f := &TextFormatter{ShowLevel: true}
	out, err := f.Format(Entry{
		Level:   LevelWarning,
		Source:  SourceCard,
		Message: "session expired",
		Context: map[string]interface{}{"reader": "Reader 0", "attempt": 2},
	})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	want := "[warning] (card) session expired {attempt=2, reader=Reader 0}\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}
}

func TestJSONFormatter_RoundTrips(t *testing.T) {
	f := &JSONFormatter{}
	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	out, err := f.Format(Entry{
		Timestamp: ts,
		Level:     LevelError,
		Source:    SourceBackend,
		Message:   "prepare failed",
		Context:   map[string]interface{}{"code": "PDF_MALFORMED"},
	})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["level"] != "error" || decoded["source"] != "backend" || decoded["message"] != "prepare failed" {
		t.Errorf("decoded = %v", decoded)
	}
	if decoded["timestamp"] != ts.Format(time.RFC3339) {
		t.Errorf("timestamp = %v", decoded["timestamp"])
	}
}
