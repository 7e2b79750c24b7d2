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

package digest

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "AAAA", "AAAA"},
		{"padding stripped", "Ab==", "Ab"},
		{"whitespace stripped", " Ab \n", "Ab"},
		{"inner whitespace", "A b\tcd", "Abcd"},
		{"empty", "", ""},
		{"only padding", "==", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConsistent_PaddingOnlyDifference(t *testing.T) {
	if !Consistent("Ab==", "Ab") {
		t.Error("digests differing only by padding must match")
	}
}

func TestConsistent_Mismatch(t *testing.T) {
	if Consistent("AAAA", "BBBB") {
		t.Error("distinct digests must not match")
	}
}

func TestConsistent_CaseSensitive(t *testing.T) {
	// Base64 is case sensitive; normalization must not fold case.
	if Consistent("abcd", "ABCD") {
		t.Error("base64 comparison must be case sensitive")
	}
}
