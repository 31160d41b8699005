// Copyright 2026 The Spyglass Authors
// SPDX-License-Identifier: Apache-2.0

// Package peercred resolves the provenance of an accepted connection:
// the network address of a TCP peer, or the kernel-asserted process,
// user, and group identity of a unix-socket peer.
//
// Unix-socket credentials come from getsockopt on the accepted
// descriptor (SO_PEERCRED on Linux, LOCAL_PEERCRED on Darwin). They
// are recorded by the kernel at connect time and cannot be forged by
// the connecting process. Platforms without a credential facility
// degrade to Unknown — resolution never fails a request.
package peercred

import "net"

// Provenance is the origin record attached to every observed event.
// Exactly one of the three variants is produced per connection.
type Provenance interface {
	provenance()
}

// NetworkPeer is the provenance of a TCP connection. Only the remote
// address is knowable — TCP carries no peer identity.
type NetworkPeer struct {
	// Address is the peer's IP address, without the port.
	Address string
}

// LocalPeer is the kernel-asserted identity of a unix-socket peer.
type LocalPeer struct {
	// PID is the connecting process id, or -1 on platforms that
	// report only user and group (Darwin's LOCAL_PEERCRED).
	PID int32

	// UID and GID are always present when resolution succeeds.
	UID uint32
	GID uint32
}

// Unknown is the provenance when credential resolution failed or the
// platform has no credential facility.
type Unknown struct{}

func (NetworkPeer) provenance() {}
func (LocalPeer) provenance()   {}
func (Unknown) provenance()     {}

// Resolve produces the provenance for an accepted connection. Unix
// connections go through the platform credential lookup; everything
// else is treated as a network peer identified by its remote address.
// Resolve never blocks and never fails — errors degrade to Unknown.
func Resolve(conn net.Conn) Provenance {
	if unixConn, ok := conn.(*net.UnixConn); ok {
		return fromUnixConn(unixConn)
	}

	address := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(address); err == nil {
		address = host
	}
	return NetworkPeer{Address: address}
}
