// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire implements the observatory's hand-rolled HTTP/1.1
// subset: request decoding, response encoding, and query-string
// parsing.
//
// The server deliberately does not use net/http. Hook clients send one
// tiny request per connection and the server must keep working when
// the request is malformed or truncated — a framework's strictness is
// a liability here, and parsing the bytes directly keeps the peer
// socket available for kernel credential lookups. Decoding never
// fails; missing pieces degrade to defaults.
package wire
