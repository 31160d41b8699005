// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin

package peercred

import "net"

// fromUnixConn is the fallback for platforms without a peer-credential
// facility. Events from local sockets on these platforms carry no
// provenance rather than a guessed one.
func fromUnixConn(*net.UnixConn) Provenance {
	return Unknown{}
}
