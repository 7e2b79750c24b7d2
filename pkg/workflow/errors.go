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

package workflow

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a workflow failure for programmatic handling.
type ErrorKind int

const (
	// KindUnknown indicates an unclassified error.
	KindUnknown ErrorKind = iota

	// KindNotReady indicates a step was invoked while its readiness
	// predicate was false. This is a caller bug, not a runtime condition.
	KindNotReady

	// KindWrongPin indicates the card middleware rejected the PIN.
	// Recoverable by re-prompting; the workflow stays at the sign step.
	KindWrongPin

	// KindCardOperationFailed indicates a generic hardware or session
	// failure. Recoverable by re-attempting the whole sign step.
	KindCardOperationFailed

	// KindDigestMismatch indicates the backend-reported digest does not
	// match the digest prepared upstream. Fatal for the current run.
	KindDigestMismatch

	// KindMissingArtifact indicates a backend call succeeded but returned
	// no certificate or signature where one was required.
	KindMissingArtifact

	// KindNetworkOrService indicates any other network or service fault,
	// reported verbatim. The user may retry.
	KindNetworkOrService
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotReady:
		return "NotReady"
	case KindWrongPin:
		return "WrongPin"
	case KindCardOperationFailed:
		return "CardOperationFailed"
	case KindDigestMismatch:
		return "DigestMismatch"
	case KindMissingArtifact:
		return "MissingArtifact"
	case KindNetworkOrService:
		return "NetworkOrServiceError"
	default:
		return "UnknownError"
	}
}

// Error is the structured error type for workflow failures.
//
// It carries the failure category, the step during which it occurred, a
// human-readable message, and the underlying cause. Step handlers catch every
// condition at the step boundary, log it, and return one of these; the
// workflow state is left untouched so the step can be retried.
type Error struct {
	// Kind categorizes the error.
	Kind ErrorKind

	// Step is the workflow step during which the error occurred.
	Step Step

	// Message is a human-readable description of what went wrong.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a workflow error.
func NewError(kind ErrorKind, step Step, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Step:    step,
		Message: message,
		Cause:   cause,
	}
}

// IsKind reports whether err is (or wraps) a workflow Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindUnknown when err is not a workflow
// Error.
func KindOf(err error) ErrorKind {
	var wErr *Error
	if errors.As(err, &wErr) {
		return wErr.Kind
	}
	return KindUnknown
}
