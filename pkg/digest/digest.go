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

// Package digest implements the consistency check between the digest the
// preparation service computed over the signed attributes and the digest a
// signing backend reports having signed. The check is the fail-closed gate
// in front of the finalize step: a mismatch means the backend signed
// something other than what was prepared.
package digest

import "strings"

// Normalize canonicalizes a base64 digest string for comparison: all
// whitespace is removed and trailing '=' padding is stripped, so values that
// differ only in padding or formatting compare equal.
func Normalize(b64 string) string {
	var b strings.Builder
	b.Grow(len(b64))
	for _, r := range b64 {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), "=")
}

// Consistent reports whether a backend-reported digest matches the expected
// digest computed upstream. Both values are normalized before the
// byte-for-byte comparison.
func Consistent(expectedB64, reportedB64 string) bool {
	return Normalize(expectedB64) == Normalize(reportedB64)
}
