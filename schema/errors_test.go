// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCode(t *testing.T) {
	err := Forbidden("signal %s belongs to %s", "sig-abc", "user/ada")

	if !IsCode(err, ErrCodeForbidden) {
		t.Error("IsCode(Forbidden, forbidden) = false")
	}
	if IsCode(err, ErrCodePreconditionFailed) {
		t.Error("IsCode matched the wrong code")
	}
	if IsCode(errors.New("plain"), ErrCodeForbidden) {
		t.Error("IsCode matched a plain error")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := PreconditionFailed("sender not in room")
	wrapped := fmt.Errorf("sending signal: %w", inner)

	if !IsCode(wrapped, ErrCodePreconditionFailed) {
		t.Error("IsCode failed to unwrap")
	}

	var babbleErr *Error
	if !errors.As(wrapped, &babbleErr) {
		t.Fatal("errors.As failed to extract *Error")
	}
	if babbleErr.Message != "sender not in room" {
		t.Errorf("Message = %q", babbleErr.Message)
	}
}

func TestSignalKindValidate(t *testing.T) {
	for _, kind := range []SignalKind{SignalOffer, SignalAnswer, SignalICECandidate} {
		if err := kind.Validate(); err != nil {
			t.Errorf("Validate(%q) failed: %v", kind, err)
		}
	}
	if err := SignalKind("renegotiate").Validate(); err == nil {
		t.Error("Validate accepted an unknown kind")
	}
}
