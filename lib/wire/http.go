// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is one decoded HTTP request. It lives for the duration of a
// single connection: the observatory protocol is strictly one request
// per connection, no pipelining, no keep-alive.
type Request struct {
	// Method is the HTTP method token from the request line. Empty
	// when the request line is missing or blank.
	Method string

	// Path is the request target including the raw query string
	// (e.g. "/hook?event=PreToolUse"). Defaults to "/" when absent.
	Path string

	// Body is whatever followed the blank line in the initial read.
	// It may be shorter than the declared content-length; the caller
	// completes it by reading more from the connection.
	Body []byte

	// Headers maps lower-cased header names to values. Duplicate
	// headers keep the last value seen.
	Headers map[string]string
}

// ParseRequest decodes a raw request buffer. It never fails: a missing
// request line yields an empty method and "/" as the path, and header
// lines without a ": " separator are skipped. This forgiving posture
// matches the server's role — it observes traffic, it does not police
// protocol conformance.
func ParseRequest(data []byte) Request {
	request := Request{
		Path:    "/",
		Headers: make(map[string]string),
	}

	text := string(data)
	headerSection := text
	if separator := strings.Index(text, "\r\n\r\n"); separator >= 0 {
		headerSection = text[:separator]
		request.Body = []byte(text[separator+4:])
	}

	lines := strings.Split(headerSection, "\r\n")

	// Request line: "POST /hook?event=PreToolUse HTTP/1.1".
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) > 0 {
		request.Method = parts[0]
	}
	if len(parts) > 1 && parts[1] != "" {
		request.Path = parts[1]
	}

	for _, line := range lines[1:] {
		name, value, found := strings.Cut(line, ": ")
		if !found {
			continue
		}
		request.Headers[strings.ToLower(name)] = value
	}

	return request
}

// ContentLength returns the declared content-length header value, or
// false when the header is absent or not a number.
func (r *Request) ContentLength() (int, bool) {
	value, ok := r.Headers["content-length"]
	if !ok {
		return 0, false
	}
	length, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || length < 0 {
		return 0, false
	}
	return length, true
}

// Query returns the raw query string portion of the path, or "" when
// the path has no "?".
func (r *Request) Query() string {
	_, query, found := strings.Cut(r.Path, "?")
	if !found {
		return ""
	}
	return query
}

// reasonPhrase maps the status codes this server actually emits. The
// table is deliberately tiny: anything else renders as "Unknown".
func reasonPhrase(status int) string {
	switch status {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	default:
		return "Unknown"
	}
}

// BuildResponse encodes a minimal HTTP/1.1 response: status line,
// Content-Type: application/json, an exact Content-Length, blank line,
// body. No chunked encoding and no keep-alive — the connection closes
// after the response is written.
func BuildResponse(status int, body []byte) []byte {
	header := fmt.Sprintf("HTTP/1.1 %d %s\r\nContent-Type: application/json\r\nContent-Length: %d\r\n\r\n",
		status, reasonPhrase(status), len(body))
	return append([]byte(header), body...)
}

// ParseQuery splits a raw query string into key-value pairs. Pairs are
// separated by "&" and split on the first "="; segments without an "="
// are dropped, but an empty key (as in "=value") is kept. Duplicate
// keys keep the last value. Values are taken literally — no
// percent-decoding, hook installers never need it.
func ParseQuery(query string) map[string]string {
	values := make(map[string]string)
	for _, pair := range strings.Split(query, "&") {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		values[key] = value
	}
	return values
}
