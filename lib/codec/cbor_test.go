// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type sampleRequest struct {
	Action  string `cbor:"action"`
	User    string `cbor:"user,omitempty"`
	Channel string `cbor:"channel,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRequest{
		Action:  "typing.start",
		User:    "user/ada",
		Channel: "channel/general",
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded sampleRequest
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip = %+v, want %+v", decoded, original)
	}
}

func TestDeterministicEncoding(t *testing.T) {
	value := map[string]any{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("second Marshal failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("deterministic encoding produced different bytes for the same value")
	}
}

func TestAnyTargetDecodesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"kind": "offer", "sdp": "v=0"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if asMap["kind"] != "offer" {
		t.Errorf("kind = %v, want offer", asMap["kind"])
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buffer bytes.Buffer
	if err := NewEncoder(&buffer).Encode(sampleRequest{Action: "signal.poll"}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var decoded sampleRequest
	if err := NewDecoder(&buffer).Decode(&decoded); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Action != "signal.poll" {
		t.Errorf("Action = %q, want signal.poll", decoded.Action)
	}
}
