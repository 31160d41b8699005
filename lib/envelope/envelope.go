// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope builds the enriched event record emitted for every
// observed hook: server metadata fields (underscore-prefixed) followed
// by the payload's own fields in their original order.
//
// encoding/json's map type would destroy field order, so Envelope is
// an insertion-ordered key/value sequence with its own JSON and YAML
// encodings. Order matters to consumers: metadata first makes the
// stream scannable, and payload fields appearing as the sender wrote
// them keeps diffs against client logs meaningful.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spyglass-foundation/spyglass/lib/peercred"
)

// Field is one key/value pair in an Envelope. Values are one of:
// string, bool, nil, json.Number, int32, uint32, []any, or *Envelope
// (nested object).
type Field struct {
	Key   string
	Value any
}

// Envelope is an insertion-ordered mapping from field name to
// JSON-compatible value. Setting an existing key overwrites the value
// in place, preserving the key's original position.
type Envelope struct {
	fields []Field
	index  map[string]int
}

// New returns an empty envelope.
func New() *Envelope {
	return &Envelope{index: make(map[string]int)}
}

// Set inserts or overwrites a field. Overwriting keeps the key at its
// original position — last write wins on value, first write wins on
// position.
func (e *Envelope) Set(key string, value any) {
	if position, exists := e.index[key]; exists {
		e.fields[position].Value = value
		return
	}
	e.index[key] = len(e.fields)
	e.fields = append(e.fields, Field{Key: key, Value: value})
}

// Get returns the value for key and whether it is present.
func (e *Envelope) Get(key string) (any, bool) {
	position, exists := e.index[key]
	if !exists {
		return nil, false
	}
	return e.fields[position].Value, true
}

// Delete removes key if present. Remaining fields keep their relative
// order.
func (e *Envelope) Delete(key string) {
	position, exists := e.index[key]
	if !exists {
		return
	}
	e.fields = append(e.fields[:position], e.fields[position+1:]...)
	delete(e.index, key)
	for i := position; i < len(e.fields); i++ {
		e.index[e.fields[i].Key] = i
	}
}

// Has reports whether key is present.
func (e *Envelope) Has(key string) bool {
	_, exists := e.index[key]
	return exists
}

// Len returns the number of fields.
func (e *Envelope) Len() int {
	return len(e.fields)
}

// Fields returns the fields in insertion order. The returned slice is
// the envelope's own backing array; callers must not mutate it.
func (e *Envelope) Fields() []Field {
	return e.fields
}

// TimeLayout is the timestamp format on the wire: UTC, second
// precision, explicit +00:00 offset.
const TimeLayout = "2006-01-02T15:04:05+00:00"

// Build constructs the enriched envelope for one event. Metadata goes
// in first: _ts and _event, then the provenance fields for the peer
// variant (_client for network peers; _peer_pid, _peer_uid, _peer_gid
// for local peers; nothing for unknown). Payload fields follow in
// their original order.
//
// Any non-empty payload that is not valid JSON is wrapped as
// {"_raw": <body>}, whitespace-only bodies included — the server
// never drops an event for malformed input. Only a zero-length body
// contributes nothing. A payload that is valid JSON but not an object
// contributes no fields (there are no keys to merge). A payload key
// that collides with a metadata key silently overwrites the metadata
// value; this sharp edge is observed behavior, kept deliberately and
// pinned by tests.
func Build(body []byte, eventName string, peer peercred.Provenance, now time.Time) *Envelope {
	envelope := New()
	envelope.Set("_ts", now.UTC().Format(TimeLayout))
	envelope.Set("_event", eventName)

	switch p := peer.(type) {
	case peercred.NetworkPeer:
		envelope.Set("_client", p.Address)
	case peercred.LocalPeer:
		envelope.Set("_peer_pid", p.PID)
		envelope.Set("_peer_uid", p.UID)
		envelope.Set("_peer_gid", p.GID)
	}

	if len(body) == 0 {
		return envelope
	}

	payload, err := Decode(body)
	if err != nil {
		envelope.Set("_raw", string(body))
		return envelope
	}
	if object, ok := payload.(*Envelope); ok {
		for _, field := range object.Fields() {
			envelope.Set(field.Key, field.Value)
		}
	}
	return envelope
}

// Decode parses a JSON value preserving object field order. Objects
// decode to *Envelope, arrays to []any, numbers to json.Number (the
// original textual representation survives re-encoding), and the
// scalar types to their Go equivalents.
func Decode(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	value, err := decodeValue(decoder)
	if err != nil {
		return nil, err
	}

	// Anything after the first value makes the input not-JSON.
	if _, err := decoder.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return value, nil
}

// DecodeObject parses a JSON object preserving field order, rejecting
// non-object input. Used by consumers of the event stream (the query
// tool) where a line is an envelope by contract.
func DecodeObject(data []byte) (*Envelope, error) {
	value, err := Decode(data)
	if err != nil {
		return nil, err
	}
	object, ok := value.(*Envelope)
	if !ok {
		return nil, errors.New("JSON value is not an object")
	}
	return object, nil
}

func decodeValue(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}

	delim, isDelim := token.(json.Delim)
	if !isDelim {
		// string, json.Number, bool, or nil.
		return token, nil
	}

	switch delim {
	case '{':
		object := New()
		for decoder.More() {
			keyToken, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not string", keyToken)
			}
			value, err := decodeValue(decoder)
			if err != nil {
				return nil, err
			}
			object.Set(key, value)
		}
		if _, err := decoder.Token(); err != nil { // consume '}'
			return nil, err
		}
		return object, nil

	case '[':
		items := []any{}
		for decoder.More() {
			value, err := decodeValue(decoder)
			if err != nil {
				return nil, err
			}
			items = append(items, value)
		}
		if _, err := decoder.Token(); err != nil { // consume ']'
			return nil, err
		}
		return items, nil
	}

	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}

// MarshalJSON encodes the envelope as a JSON object with fields in
// insertion order. Nested *Envelope values marshal recursively.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for i, field := range e.fields {
		if i > 0 {
			buffer.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("marshaling field %q: %w", field.Key, err)
		}
		buffer.Write(value)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

// FormatNumber renders the numeric envelope value types as their wire
// text. Shared by the YAML encoder and tests.
func FormatNumber(value any) (string, bool) {
	switch n := value.(type) {
	case json.Number:
		return n.String(), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	}
	return "", false
}
