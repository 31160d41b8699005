// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spyglass-foundation/spyglass/lib/peercred"
)

var buildTime = time.Date(2026, 3, 14, 9, 26, 53, 987654321, time.UTC)

func TestBuildNetworkPeer(t *testing.T) {
	t.Parallel()

	event := Build([]byte(`{"tool_name":"Bash","nested":{"b":1,"a":2}}`),
		"PreToolUse", peercred.NetworkPeer{Address: "127.0.0.1"}, buildTime)

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Metadata first, payload fields after, nested order preserved.
	want := `{"_ts":"2026-03-14T09:26:53+00:00","_event":"PreToolUse",` +
		`"_client":"127.0.0.1","tool_name":"Bash","nested":{"b":1,"a":2}}`
	if string(encoded) != want {
		t.Errorf("envelope = %s, want %s", encoded, want)
	}
}

func TestBuildLocalPeer(t *testing.T) {
	t.Parallel()

	peer := peercred.LocalPeer{PID: 4242, UID: 1000, GID: 1000}
	event := Build([]byte(`{}`), "Stop", peer, buildTime)

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"_ts":"2026-03-14T09:26:53+00:00","_event":"Stop",` +
		`"_peer_pid":4242,"_peer_uid":1000,"_peer_gid":1000}`
	if string(encoded) != want {
		t.Errorf("envelope = %s, want %s", encoded, want)
	}
}

func TestBuildUnknownPeerOmitsProvenance(t *testing.T) {
	t.Parallel()

	event := Build(nil, "SessionStart", peercred.Unknown{}, buildTime)

	for _, key := range []string{"_client", "_peer_pid", "_peer_uid", "_peer_gid"} {
		if event.Has(key) {
			t.Errorf("unknown peer should not contribute %q", key)
		}
	}
	if got := event.Len(); got != 2 {
		t.Errorf("field count = %d, want 2 (_ts and _event only)", got)
	}
}

func TestBuildTimestampIsUTC(t *testing.T) {
	t.Parallel()

	eastern := time.FixedZone("UTC+11", 11*3600)
	local := time.Date(2026, 3, 14, 20, 26, 53, 0, eastern)

	event := Build(nil, "Stop", peercred.Unknown{}, local)
	value, _ := event.Get("_ts")
	if value != "2026-03-14T09:26:53+00:00" {
		t.Errorf("_ts = %v, want the UTC rendering", value)
	}
}

func TestBuildInvalidJSONWrappedAsRaw(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not JSON at all", "hello world"},
		{"truncated object", `{"a":`},
		{"trailing garbage", `{"a":1} extra`},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			event := Build([]byte(test.body), "Unknown", peercred.Unknown{}, buildTime)
			value, ok := event.Get("_raw")
			if !ok {
				t.Fatal("invalid JSON body should appear under _raw")
			}
			if value != test.body {
				t.Errorf("_raw = %q, want %q", value, test.body)
			}
		})
	}
}

func TestBuildNonObjectJSONContributesNoFields(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`[1,2,3]`, `"a string"`, `42`, `true`, `null`} {
		event := Build([]byte(body), "Stop", peercred.Unknown{}, buildTime)
		if event.Has("_raw") {
			t.Errorf("body %s is valid JSON, should not be wrapped as _raw", body)
		}
		if got := event.Len(); got != 2 {
			t.Errorf("body %s: field count = %d, want 2 (metadata only)", body, got)
		}
	}
}

func TestBuildEmptyBody(t *testing.T) {
	t.Parallel()

	for _, body := range [][]byte{nil, {}} {
		event := Build(body, "Notification", peercred.Unknown{}, buildTime)
		if got := event.Len(); got != 2 {
			t.Errorf("body %q: field count = %d, want 2", body, got)
		}
	}
}

// Whitespace is a body like any other: it fails to decode, so it lands
// under _raw instead of vanishing.
func TestBuildWhitespaceBodyWrappedAsRaw(t *testing.T) {
	t.Parallel()

	for _, body := range []string{" ", "   \r\n", "\t\n"} {
		event := Build([]byte(body), "Notification", peercred.Unknown{}, buildTime)
		value, ok := event.Get("_raw")
		if !ok {
			t.Fatalf("body %q: whitespace-only body should appear under _raw", body)
		}
		if value != body {
			t.Errorf("_raw = %q, want %q", value, body)
		}
	}
}

// A payload key that collides with a metadata key overwrites the
// metadata value while keeping the metadata position. Sharp edge,
// intentionally preserved.
func TestBuildPayloadOverwritesMetadata(t *testing.T) {
	t.Parallel()

	event := Build([]byte(`{"_event":"Forged","x":1}`),
		"PreToolUse", peercred.Unknown{}, buildTime)

	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"_ts":"2026-03-14T09:26:53+00:00","_event":"Forged","x":1}`
	if string(encoded) != want {
		t.Errorf("envelope = %s, want %s", encoded, want)
	}
}

func TestDecodePreservesFieldOrder(t *testing.T) {
	t.Parallel()

	input := `{"zebra":1,"apple":{"y":true,"b":null},"mango":[1,"two",3.5]}`
	value, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != input {
		t.Errorf("round trip = %s, want %s", encoded, input)
	}
}

func TestDecodeNumbersKeepWireText(t *testing.T) {
	t.Parallel()

	// 1e2 and 0.10 would come back as 100 and 0.1 through float64.
	input := `{"a":1e2,"b":0.10,"c":9007199254740993}`
	value, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	encoded, _ := json.Marshal(value)
	if string(encoded) != input {
		t.Errorf("round trip = %s, want %s", encoded, input)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{"a":1}{"b":2}`)); err == nil {
		t.Error("two concatenated values should not decode")
	}
}

func TestDecodeObjectRejectsNonObjects(t *testing.T) {
	t.Parallel()

	if _, err := DecodeObject([]byte(`[1,2]`)); err == nil {
		t.Error("array should be rejected")
	}
	if _, err := DecodeObject([]byte(`{"a":1}`)); err != nil {
		t.Errorf("object rejected: %v", err)
	}
}

func TestSetKeepsPositionOnOverwrite(t *testing.T) {
	t.Parallel()

	event := New()
	event.Set("first", 1)
	event.Set("second", 2)
	event.Set("first", 10)

	fields := event.Fields()
	if fields[0].Key != "first" || fields[0].Value != 10 {
		t.Errorf("fields[0] = %+v, want first=10 in original position", fields[0])
	}
	if event.Len() != 2 {
		t.Errorf("len = %d, want 2", event.Len())
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	event := New()
	event.Set("a", 1)
	event.Set("b", 2)
	event.Set("c", 3)
	event.Delete("b")

	if event.Has("b") {
		t.Error("deleted key still present")
	}
	encoded, _ := json.Marshal(event)
	if string(encoded) != `{"a":1,"c":3}` {
		t.Errorf("after delete = %s, want {\"a\":1,\"c\":3}", encoded)
	}

	// Index must stay consistent: overwrite after delete hits the
	// right slot.
	event.Set("c", 30)
	encoded, _ = json.Marshal(event)
	if string(encoded) != `{"a":1,"c":30}` {
		t.Errorf("after re-set = %s, want {\"a\":1,\"c\":30}", encoded)
	}
}

func TestMarshalEscapesKeys(t *testing.T) {
	t.Parallel()

	event := New()
	event.Set(`quote"key`, "value")
	encoded, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(encoded), `"quote\"key"`) {
		t.Errorf("key not escaped: %s", encoded)
	}
}
