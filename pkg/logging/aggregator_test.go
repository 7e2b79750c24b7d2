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
	"testing"
	"time"
)

func TestAggregator_PreservesEmissionOrder(t *testing.T) {
	agg := NewAggregator(nil)
	frontend := agg.Source(SourceFrontend)
	card := agg.Source(SourceCard)

	frontend.Info("step sign started")
	card.Debug("connecting to reader")
	card.Error("card removed")
	frontend.Warning("retrying")

	entries := agg.Entries()
	if len(entries) != 4 {
		t.Fatalf("Len = %d, want 4", len(entries))
	}
	wantMessages := []string{"step sign started", "connecting to reader", "card removed", "retrying"}
	wantSources := []Source{SourceFrontend, SourceCard, SourceCard, SourceFrontend}
	for i, e := range entries {
		if e.Message != wantMessages[i] || e.Source != wantSources[i] {
			t.Errorf("entry %d = %q (%s), want %q (%s)", i, e.Message, e.Source, wantMessages[i], wantSources[i])
		}
	}
}

func TestAggregator_FillsZeroTimestamps(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Append(Entry{Level: LevelInfo, Source: SourceBackend, Message: "no timestamp"})

	ts := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	agg.Append(Entry{Timestamp: ts, Level: LevelInfo, Source: SourceBackend, Message: "with timestamp"})

	entries := agg.Entries()
	if entries[0].Timestamp.IsZero() {
		t.Errorf("zero timestamp was not filled")
	}
	if !entries[1].Timestamp.Equal(ts) {
		t.Errorf("explicit timestamp was replaced: %v", entries[1].Timestamp)
	}
}

func TestAggregator_EntriesReturnsSnapshot(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(LevelInfo, SourceFrontend, "first", nil)

	snapshot := agg.Entries()
	agg.Record(LevelInfo, SourceFrontend, "second", nil)

	if len(snapshot) != 1 {
		t.Errorf("snapshot grew after later appends: %d entries", len(snapshot))
	}
	if agg.Len() != 2 {
		t.Errorf("Len = %d, want 2", agg.Len())
	}
}

func TestAggregator_ClearRemovesEntries(t *testing.T) {
	agg := NewAggregator(nil)
	agg.Record(LevelError, SourceCard, "stale", nil)
	agg.Clear()
	if agg.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", agg.Len())
	}
}

// recordingLogger captures mirrored messages.
type recordingLogger struct {
	messages []string
	fields   map[string]interface{}
}

func (r *recordingLogger) log(msg string) { r.messages = append(r.messages, msg) }

func (r *recordingLogger) Debug(format string, args ...interface{})   { r.log(sprintf(format, args)) }
func (r *recordingLogger) Info(format string, args ...interface{})    { r.log(sprintf(format, args)) }
func (r *recordingLogger) Success(format string, args ...interface{}) { r.log(sprintf(format, args)) }
func (r *recordingLogger) Warning(format string, args ...interface{}) { r.log(sprintf(format, args)) }
func (r *recordingLogger) Error(format string, args ...interface{})   { r.log(sprintf(format, args)) }
func (r *recordingLogger) GetLevel() Level                            { return LevelDebug }

func (r *recordingLogger) WithField(key string, value interface{}) Logger {
	return r.WithFields(map[string]interface{}{key: value})
}

func (r *recordingLogger) WithFields(fields map[string]interface{}) Logger {
	merged := map[string]interface{}{}
	for k, v := range r.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	r.fields = merged
	return r
}

func sprintf(format string, args []interface{}) string {
	return fmt.Sprintf(format, args...)
}

func TestAggregator_MirrorsToLogger(t *testing.T) {
	mirror := &recordingLogger{}
	agg := NewAggregator(mirror)

	agg.Source(SourceCard).Info("session opened")

	if len(mirror.messages) != 1 {
		t.Fatalf("mirror received %d messages, want 1", len(mirror.messages))
	}
	if got := mirror.fields["source"]; got != "card" {
		t.Errorf("mirror source field = %v, want card", got)
	}
}
