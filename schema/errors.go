// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
)

// Error is a structured error with a machine-readable code. Callers
// use errors.As to branch on the code:
//
//	var babbleErr *schema.Error
//	if errors.As(err, &babbleErr) {
//	    if babbleErr.Code == schema.ErrCodeForbidden { ... }
//	}
//
// The code survives the socket protocol round-trip, so remote callers
// see the same taxonomy as in-process ones.
type Error struct {
	// Code is the machine-readable error code.
	Code string `cbor:"code"`
	// Message is the human-readable description.
	Message string `cbor:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("babble: %s: %s", e.Code, e.Message)
}

// Error codes.
const (
	// ErrCodeUnauthenticated: the caller has no valid identity. The
	// UI treats this as a redirect-to-login condition, never a
	// silent retry.
	ErrCodeUnauthenticated = "unauthenticated"

	// ErrCodePreconditionFailed: an invariant the operation requires
	// does not hold (e.g. signaling between users who are not both
	// in the babble room). The operation aborts with no partial
	// effect.
	ErrCodePreconditionFailed = "precondition_failed"

	// ErrCodeForbidden: the caller lacks rights over the targeted
	// record (e.g. deleting another user's signal).
	ErrCodeForbidden = "forbidden"

	// ErrCodeMediaAccessDenied: local microphone permission was
	// refused. Fatal to the babble-join flow; surfaced distinctly
	// from network errors so the UI can point at system settings
	// instead of retrying.
	ErrCodeMediaAccessDenied = "media_access_denied"

	// ErrCodeTransientNetwork: a relay or store call failed due to
	// connectivity. Safe to retry with backoff at the call site.
	ErrCodeTransientNetwork = "transient_network"
)

// Unauthenticated returns an ErrCodeUnauthenticated error.
func Unauthenticated(format string, args ...any) *Error {
	return &Error{Code: ErrCodeUnauthenticated, Message: fmt.Sprintf(format, args...)}
}

// PreconditionFailed returns an ErrCodePreconditionFailed error.
func PreconditionFailed(format string, args ...any) *Error {
	return &Error{Code: ErrCodePreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

// Forbidden returns an ErrCodeForbidden error.
func Forbidden(format string, args ...any) *Error {
	return &Error{Code: ErrCodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// MediaAccessDenied returns an ErrCodeMediaAccessDenied error.
func MediaAccessDenied(format string, args ...any) *Error {
	return &Error{Code: ErrCodeMediaAccessDenied, Message: fmt.Sprintf(format, args...)}
}

// TransientNetwork returns an ErrCodeTransientNetwork error wrapping
// the underlying cause in the message.
func TransientNetwork(format string, args ...any) *Error {
	return &Error{Code: ErrCodeTransientNetwork, Message: fmt.Sprintf(format, args...)}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code string) bool {
	var babbleErr *Error
	if errors.As(err, &babbleErr) {
		return babbleErr.Code == code
	}
	return false
}
