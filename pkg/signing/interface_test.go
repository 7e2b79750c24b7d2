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

package signing

import "testing"

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"mock", MethodMock, false},
		{"card", MethodCardSession, false},
		{"cardsession", MethodCardSession, false},
		{"pkcs11", MethodPKCS11, false},
		{"token", MethodPKCS11, false},
		{"hsm", MethodMock, true},
		{"", MethodMock, true},
	}
	for _, tc := range tests {
		got, err := ParseMethod(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseMethod(%q) error = %v, wantErr %t", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseMethod(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMethodString_RoundTrips(t *testing.T) {
	for _, m := range []Method{MethodMock, MethodCardSession, MethodPKCS11} {
		got, err := ParseMethod(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMethod(%q) = %v, %v", m.String(), got, err)
		}
	}
}
